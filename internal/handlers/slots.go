package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tuturuuu/meetsync/internal/cache"
	"github.com/tuturuuu/meetsync/internal/model"
	"github.com/tuturuuu/meetsync/internal/schedule"
	"github.com/tuturuuu/meetsync/internal/storage"
)

type SlotHandler struct {
	plans  PlanStore
	blocks BlockStore
	cache  SlotCache
	logger *slog.Logger
}

func NewSlotHandler(plans PlanStore, blocks BlockStore, slotCache SlotCache, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{plans: plans, blocks: blocks, cache: slotCache, logger: logger}
}

type slotItem struct {
	StartTime               string   `json:"start_time"`
	EndTime                 string   `json:"end_time"`
	AvailableCount          int      `json:"available_count"`
	TotalParticipants       int      `json:"total_participants"`
	AvailableParticipantIDs []string `json:"available_participant_ids"`
	Score                   int      `json:"score"`
}

type slotsResponse struct {
	PlanID   string     `json:"plan_id"`
	Mode     string     `json:"mode"`
	Timezone string     `json:"timezone"`
	Slots    []slotItem `json:"slots"`
}

// List computes the ranked candidate slots for a plan.
//
// mode selects intersection (default) or union aggregation. tz re-expresses
// the response in a viewer timezone; the computation itself always runs on
// absolute instants, so the zone only changes presentation. participants
// restricts the computation to a comma-separated subset of participant ids.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	q := r.URL.Query()

	mode, err := schedule.ParseMode(q.Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	plan, err := h.plans.Get(r.Context(), planID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		h.logger.Error("plan load failed", "err", err)
		http.Error(w, "failed to load plan", http.StatusInternalServerError)
		return
	}

	// The plan's stored zone was validated at creation; failing to load it now
	// means tzdata drifted underneath us, which is a server fault.
	planLoc, err := schedule.LoadZone(plan.Timezone)
	if err != nil {
		h.logger.Error("plan timezone no longer resolves", "plan_id", planID, "tz", plan.Timezone, "err", err)
		http.Error(w, "plan timezone is unavailable", http.StatusInternalServerError)
		return
	}

	viewerTZ := strings.TrimSpace(q.Get("tz"))
	viewerLoc := planLoc
	if viewerTZ != "" {
		viewerLoc, err = schedule.LoadZone(viewerTZ)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		viewerTZ = plan.Timezone
	}

	participantsParam := strings.TrimSpace(q.Get("participants"))
	variant := cache.Variant(string(mode), viewerTZ, participantsParam)
	payload, version, ok := h.cache.Get(r.Context(), planID, variant)
	if ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	participants, err := h.plans.ListParticipants(r.Context(), planID)
	if err != nil {
		h.logger.Error("participants load failed", "err", err)
		http.Error(w, "failed to load participants", http.StatusInternalServerError)
		return
	}
	participants = filterParticipants(participants, participantsParam)
	if len(participants) == 0 {
		http.Error(w, "plan has no matching participants", http.StatusBadRequest)
		return
	}

	windows, err := schedule.PlanWindows(plan.Dates, plan.StartHour, plan.EndHour, planLoc)
	if err != nil {
		h.logger.Error("stored plan windows are invalid", "plan_id", planID, "err", err)
		http.Error(w, "plan windows are invalid", http.StatusInternalServerError)
		return
	}

	blocks, err := h.blocks.LoadBlocks(r.Context(), planID)
	if err != nil {
		h.logger.Error("timeblocks load failed", "err", err)
		http.Error(w, "failed to load time blocks", http.StatusInternalServerError)
		return
	}

	freeByParticipant := make(map[string][]schedule.Interval, len(participants))
	for _, p := range participants {
		freeByParticipant[p.ID] = nil
	}
	byParticipant := map[string][]schedule.Interval{}
	for _, b := range blocks {
		if _, tracked := freeByParticipant[b.ParticipantID]; !tracked {
			continue
		}
		byParticipant[b.ParticipantID] = append(byParticipant[b.ParticipantID], schedule.Interval{Start: b.StartAt, End: b.EndAt})
	}
	for pid, claimed := range byParticipant {
		merged, err := schedule.Merge(claimed)
		if err != nil {
			h.logger.Error("stored time block is invalid", "plan_id", planID, "participant_id", pid, "err", err)
			http.Error(w, "stored time blocks are invalid", http.StatusInternalServerError)
			return
		}
		freeByParticipant[pid] = schedule.ClipToWindows(merged, windows)
	}

	slots, err := schedule.Aggregate(freeByParticipant, mode)
	if err != nil {
		var inputErr *schedule.InputError
		if errors.As(err, &inputErr) {
			http.Error(w, inputErr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("slot aggregation failed", "err", err)
		http.Error(w, "slot aggregation failed", http.StatusInternalServerError)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		iv := schedule.InZone(schedule.Interval{Start: s.Start, End: s.End}, viewerLoc)
		items = append(items, slotItem{
			StartTime:               iv.Start.Format(time.RFC3339),
			EndTime:                 iv.End.Format(time.RFC3339),
			AvailableCount:          s.AvailableCount,
			TotalParticipants:       s.TotalParticipants,
			AvailableParticipantIDs: s.Available,
			Score:                   s.Score,
		})
	}

	resp := slotsResponse{PlanID: planID, Mode: string(mode), Timezone: viewerTZ, Slots: items}
	payload, err = json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to encode slots", http.StatusInternalServerError)
		return
	}
	// Stored under the version observed before the blocks were loaded; a write
	// that raced this request has already bumped it, orphaning this entry.
	if err := h.cache.Set(r.Context(), planID, variant, version, payload); err != nil {
		h.logger.Warn("slot cache store failed", "plan_id", planID, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func filterParticipants(all []model.Participant, param string) []model.Participant {
	if param == "" {
		return all
	}
	wanted := map[string]bool{}
	for _, id := range strings.Split(param, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	out := make([]model.Participant, 0, len(wanted))
	for _, p := range all {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out
}
