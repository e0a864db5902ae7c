package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile/internal/report"
	"github.com/clearledger/reconcile/internal/session"
	"github.com/clearledger/reconcile/internal/statement"
)

const defaultSuggestionLimit = 5

type Handler struct {
	svc *session.Service
}

func NewHandler(svc *session.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/automatch", h.autoMatch)
	r.Get("/{id}/suggestions", h.suggestions)
	r.Post("/{id}/matches", h.manualMatch)
	r.Delete("/{id}/matches/{matchID}", h.unmatch)
	r.Post("/{id}/adjustments", h.addAdjustment)
	r.Delete("/{id}/adjustments/{adjustmentID}", h.removeAdjustment)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Get("/{id}/report", h.report)
}

type createSessionRequest struct {
	AccountID            string                          `json:"account_id"`
	PeriodStart          time.Time                       `json:"period_start"`
	PeriodEnd            time.Time                       `json:"period_end"`
	OpeningBalance       decimal.Decimal                 `json:"opening_balance"`
	ClosingBalance       decimal.Decimal                 `json:"closing_balance"`
	BankTransactions     []statement.BankTransaction     `json:"bank_transactions"`
	InternalTransactions []statement.InternalTransaction `json:"internal_transactions"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Create(r.Context(), session.CreateParams{
		AccountID:            req.AccountID,
		PeriodStart:          req.PeriodStart,
		PeriodEnd:            req.PeriodEnd,
		OpeningBalance:       req.OpeningBalance,
		ClosingBalance:       req.ClosingBalance,
		BankTransactions:     req.BankTransactions,
		InternalTransactions: req.InternalTransactions,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) autoMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.AutoMatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	bankTxID := r.URL.Query().Get("bank_tx")
	if bankTxID == "" {
		http.Error(w, "bank_tx query parameter is required", http.StatusBadRequest)
		return
	}

	limit := defaultSuggestionLimit

	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	suggestions, err := h.svc.Suggestions(r.Context(), id, bankTxID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, suggestions)
}

type manualMatchRequest struct {
	BankTransactionID     string `json:"bank_transaction_id"`
	InternalTransactionID string `json:"internal_transaction_id"`
}

func (h *Handler) manualMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req manualMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.BankTransactionID == "" || req.InternalTransactionID == "" {
		http.Error(w, "bank_transaction_id and internal_transaction_id are required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.ManualMatch(r.Context(), id, req.BankTransactionID, req.InternalTransactionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) unmatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Unmatch(r.Context(), id, matchID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type addAdjustmentRequest struct {
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        session.AdjustmentType `json:"type"`
	CreatedBy   string                 `json:"created_by"`
}

func (h *Handler) addAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req addAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Description == "" {
		http.Error(w, "description is required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.AddAdjustment(r.Context(), id, session.Adjustment{
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Type,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) removeAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	adjustmentID, err := uuid.Parse(chi.URLParam(r, "adjustmentID"))
	if err != nil {
		http.Error(w, "invalid adjustment id", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.RemoveAdjustment(r.Context(), id, adjustmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Reject)
}

type approveRequest struct {
	ApproverID string `json:"approver_id"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.ApproverID == "" {
		http.Error(w, "approver_id is required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Approve(r.Context(), id, req.ApproverID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report.Generate(sess))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*session.Session, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	sess, err := op(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error      string                 `json:"error"`
	Validation []statement.FieldError `json:"validation,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validation statement.ValidationErrors
		notFound   *session.NotFoundError
		conflict   *session.ConflictError
		immutable  *session.ImmutableStateError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      "invalid transactions",
			Validation: validation,
		})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &conflict), errors.As(err, &immutable), errors.Is(err, session.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.Error("session operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
