package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tuturuuu/meetsync/internal/guest"
	"github.com/tuturuuu/meetsync/internal/storage"
)

// bcrypt hashes at most 72 input bytes; the stored 32-byte hex salt is
// prepended to the password before hashing, so anything longer fails outright.
const maxGuestPasswordBytes = 40

type GuestHandler struct {
	plans    PlanStore
	resolver *guest.Resolver
	logger   *slog.Logger
}

func NewGuestHandler(plans PlanStore, resolver *guest.Resolver, logger *slog.Logger) *GuestHandler {
	return &GuestHandler{plans: plans, resolver: resolver, logger: logger}
}

type guestLoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type guestLoginResponse struct {
	GuestID      string `json:"guest_id"`
	SessionToken string `json:"session_token"`
	ExpiresAt    string `json:"expires_at"`
	Created      bool   `json:"created"`
}

func (h *GuestHandler) Login(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")

	var req guestLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		http.Error(w, "name and password required", http.StatusBadRequest)
		return
	}
	if len(req.Password) > maxGuestPasswordBytes {
		http.Error(w, "password too long", http.StatusBadRequest)
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

	session, created, err := h.resolver.ResolveOrCreate(r.Context(), planID, req.Name, req.Password)
	if err != nil {
		var authErr *guest.AuthenticationError
		if errors.As(err, &authErr) {
			http.Error(w, authErr.Error(), http.StatusUnauthorized)
			return
		}
		var conflictErr *guest.ConflictError
		if errors.As(err, &conflictErr) {
			http.Error(w, conflictErr.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("guest login failed", "err", err)
		http.Error(w, "guest login failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(guestLoginResponse{
		GuestID:      session.GuestID,
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt.UTC().Format(time.RFC3339),
		Created:      created,
	})
}
