package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tuturuuu/meetsync/internal/model"
	"github.com/tuturuuu/meetsync/internal/storage"
)

type TimeBlockHandler struct {
	plans  PlanStore
	blocks BlockStore
	cache  SlotCache
	logger *slog.Logger
	secret string
}

func NewTimeBlockHandler(plans PlanStore, blocks BlockStore, cache SlotCache, logger *slog.Logger, secret string) *TimeBlockHandler {
	return &TimeBlockHandler{plans: plans, blocks: blocks, cache: cache, logger: logger, secret: secret}
}

type createBlockRequest struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

type createBlockResponse struct {
	BlockID string `json:"block_id"`
}

type deleteBlocksResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *TimeBlockHandler) Create(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	caller, err := identityFromRequest(r, h.secret)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if caller.isGuest() && caller.PlanID != planID {
		http.Error(w, "guest session is bound to another plan", http.StatusForbidden)
		return
	}

	var req createBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		http.Error(w, "start_at must be RFC 3339", http.StatusBadRequest)
		return
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		http.Error(w, "end_at must be RFC 3339", http.StatusBadRequest)
		return
	}
	if !endAt.After(startAt) {
		http.Error(w, "end_at must be after start_at", http.StatusBadRequest)
		return
	}

	if _, err := h.plans.Get(r.Context(), planID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		h.logger.Error("plan load failed", "err", err)
		http.Error(w, "failed to load plan", http.StatusInternalServerError)
		return
	}

	block := &model.TimeBlock{
		PlanID:        planID,
		ParticipantID: caller.ID,
		IsGuest:       caller.isGuest(),
		StartAt:       startAt.UTC(),
		EndAt:         endAt.UTC(),
	}
	id, err := h.blocks.SaveBlock(r.Context(), block)
	if err != nil {
		h.logger.Error("timeblock save failed", "err", err)
		http.Error(w, "failed to save time block", http.StatusInternalServerError)
		return
	}
	if err := h.cache.Invalidate(r.Context(), planID); err != nil {
		h.logger.Warn("slot cache invalidation failed", "plan_id", planID, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createBlockResponse{BlockID: id})
}

// Delete removes every block the caller has recorded on the plan. Callers can
// only clear their own availability.
func (h *TimeBlockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	caller, err := identityFromRequest(r, h.secret)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if caller.isGuest() && caller.PlanID != planID {
		http.Error(w, "guest session is bound to another plan", http.StatusForbidden)
		return
	}

	deleted, err := h.blocks.DeleteBlocksForParticipant(r.Context(), planID, caller.ID, caller.isGuest())
	if err != nil {
		h.logger.Error("timeblock delete failed", "err", err)
		http.Error(w, "failed to delete time blocks", http.StatusInternalServerError)
		return
	}
	if deleted > 0 {
		if err := h.cache.Invalidate(r.Context(), planID); err != nil {
			h.logger.Warn("slot cache invalidation failed", "plan_id", planID, "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(deleteBlocksResponse{Deleted: deleted})
}
