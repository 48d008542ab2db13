package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/infra/logging"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.apiKey == "" || req.APIKey != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("session mint failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// paymentView is the wire shape of a payment record; decimals go out as
// strings to keep them exact.
type paymentView struct {
	ID               int64      `json:"id"`
	Reference        string     `json:"reference"`
	TenantID         int64      `json:"tenant_id"`
	RequesterUserID  int64      `json:"requester_user_id"`
	Method           string     `json:"method"`
	PlanType         string     `json:"plan_type"`
	Action           string     `json:"action"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	TransactionID    *string    `json:"transaction_id,omitempty"`
	TransactionProof *string    `json:"transaction_proof,omitempty"`
	Status           string     `json:"status"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy      *int64     `json:"confirmed_by,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toPaymentView(p *model.PaymentRecord) paymentView {
	return paymentView{
		ID:               p.ID,
		Reference:        p.Reference,
		TenantID:         p.TenantID,
		RequesterUserID:  p.RequesterUserID,
		Method:           string(p.Method),
		PlanType:         p.PlanType,
		Action:           string(p.Action),
		Amount:           p.Amount.StringFixed(3),
		Currency:         p.Currency,
		TransactionID:    p.TransactionID,
		TransactionProof: p.TransactionProof,
		Status:           string(p.Status),
		ConfirmedAt:      p.ConfirmedAt,
		ConfirmedBy:      p.ConfirmedBy,
		Notes:            p.Notes,
		CreatedAt:        p.CreatedAt,
	}
}

func (s *Server) listPendingHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := s.payments.ListPending(r.Context(), 100)
	if err != nil {
		s.log.Error().Err(err).Msg("list pending failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	views := make([]paymentView, 0, len(pending))
	for _, p := range pending {
		views = append(views, toPaymentView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": views})
}

func paymentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}
	s.withReviewLock(w, r, id, func() {
		p, err := s.review.Approve(r.Context(), s.reviewerID, id)
		if s.writeDecisionError(w, err, id, "confirm") {
			return
		}
		writeJSON(w, http.StatusOK, toPaymentView(p))
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.withReviewLock(w, r, id, func() {
		p, err := s.payments.Reject(r.Context(), id, s.reviewerID, req.Reason)
		if s.writeDecisionError(w, err, id, "reject") {
			return
		}
		s.notifyRequester(r, p, "❌ Your payment "+p.Reference+" was rejected.\nReason: "+req.Reason)
		writeJSON(w, http.StatusOK, toPaymentView(p))
	})
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentID(r)
	if !ok {
		http.Error(w, "Invalid payment id", http.StatusBadRequest)
		return
	}
	s.withReviewLock(w, r, id, func() {
		p, err := s.payments.Cancel(r.Context(), id)
		if s.writeDecisionError(w, err, id, "cancel") {
			return
		}
		writeJSON(w, http.StatusOK, toPaymentView(p))
	})
}

// writeDecisionError maps domain errors onto HTTP statuses; reports whether
// the response is already written.
func (s *Server) writeDecisionError(w http.ResponseWriter, err error, paymentID int64, op string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Payment not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyProcessed):
		http.Error(w, "Payment already processed", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "Invalid request", http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Int64("payment_id", paymentID).Str("op", op).Msg("review decision failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
	return true
}

func (s *Server) notifyRequester(r *http.Request, p *model.PaymentRecord, text string) {
	if s.bot == nil {
		return
	}
	if err := s.bot.SendMessage(r.Context(), p.RequesterUserID, text); err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).
			Int64("tg_id", p.RequesterUserID).Msg("requester notification failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
