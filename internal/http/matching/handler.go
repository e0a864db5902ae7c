package matching

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clearledger/reconcile/internal/matching"
)

type Handler struct {
	svc *matching.Service
}

func NewHandler(svc *matching.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id query parameter is required", http.StatusBadRequest)
		return
	}

	rules, err := h.svc.Rules(r.Context(), accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(rules); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type createRuleRequest struct {
	AccountID  string               `json:"account_id"`
	Name       string               `json:"name"`
	Conditions []matching.Condition `json:"conditions"`
	Priority   int                  `json:"priority"`
	Enabled    bool                 `json:"enabled"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.AccountID == "" || req.Name == "" || len(req.Conditions) == 0 {
		http.Error(w, "account_id, name, and conditions are required", http.StatusBadRequest)
		return
	}

	rule := &matching.Rule{
		ID:         uuid.New(),
		AccountID:  req.AccountID,
		Name:       req.Name,
		Conditions: req.Conditions,
		Priority:   req.Priority,
		Enabled:    req.Enabled,
		Provenance: matching.ProvenanceUser,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.svc.AddRule(r.Context(), rule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(rule); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
