package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tuturuuu/meetsync/internal/model"
	"github.com/tuturuuu/meetsync/internal/schedule"
	"github.com/tuturuuu/meetsync/internal/storage"
)

type PlanHandler struct {
	plans  PlanStore
	logger *slog.Logger
	secret string
}

func NewPlanHandler(plans PlanStore, logger *slog.Logger, secret string) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger, secret: secret}
}

type createPlanRequest struct {
	Name      string   `json:"name"`
	Timezone  string   `json:"timezone"`
	Dates     []string `json:"dates"`
	StartHour int      `json:"start_hour"`
	EndHour   int      `json:"end_hour"`
}

type createPlanResponse struct {
	PlanID string `json:"plan_id"`
}

type planResponse struct {
	PlanID       string              `json:"plan_id"`
	Name         string              `json:"name"`
	Timezone     string              `json:"timezone"`
	CreatorID    string              `json:"creator_id"`
	Dates        []string            `json:"dates"`
	StartHour    int                 `json:"start_hour"`
	EndHour      int                 `json:"end_hour"`
	CreatedAt    string              `json:"created_at"`
	Participants []model.Participant `json:"participants"`
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromRequest(r, h.secret)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if caller.isGuest() {
		http.Error(w, "guests cannot create plans", http.StatusForbidden)
		return
	}

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" || req.Timezone == "" || len(req.Dates) == 0 {
		http.Error(w, "name, timezone, and dates are required", http.StatusBadRequest)
		return
	}
	if req.StartHour == 0 && req.EndHour == 0 {
		req.StartHour, req.EndHour = 9, 17
	}

	loc, err := schedule.LoadZone(req.Timezone)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Validates dates and hours; the windows themselves are recomputed on read.
	if _, err := schedule.PlanWindows(req.Dates, req.StartHour, req.EndHour, loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	plan := &model.Plan{
		Name:      req.Name,
		Timezone:  req.Timezone,
		CreatorID: caller.ID,
		Dates:     req.Dates,
		StartHour: req.StartHour,
		EndHour:   req.EndHour,
	}
	id, err := h.plans.Create(r.Context(), plan)
	if err != nil {
		h.logger.Error("plan create failed", "err", err)
		http.Error(w, "failed to create plan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createPlanResponse{PlanID: id})
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
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

	participants, err := h.plans.ListParticipants(r.Context(), planID)
	if err != nil {
		h.logger.Error("participants load failed", "err", err)
		http.Error(w, "failed to load participants", http.StatusInternalServerError)
		return
	}
	if participants == nil {
		participants = []model.Participant{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(planResponse{
		PlanID:       plan.ID,
		Name:         plan.Name,
		Timezone:     plan.Timezone,
		CreatorID:    plan.CreatorID,
		Dates:        plan.Dates,
		StartHour:    plan.StartHour,
		EndHour:      plan.EndHour,
		CreatedAt:    plan.CreatedAt.UTC().Format(time.RFC3339),
		Participants: participants,
	})
}
