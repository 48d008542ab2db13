package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/catalog"
	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
	"telegram-invoicing-crm/internal/domain/ports/repository"
	"telegram-invoicing-crm/internal/infra/metrics"
)

var _ ReviewUseCase = (*reviewUC)(nil)

// ReviewUseCase drives the admin side of the payment state machine. Every
// entry point authorizes the caller first; unauthorized callers get
// domain.ErrUnauthorized and no state is touched.
type ReviewUseCase interface {
	IsAdmin(userID int64) bool
	// Approve confirms a pending payment and notifies the requester.
	Approve(ctx context.Context, adminID, paymentID int64) (*model.PaymentRecord, error)
	// BeginReject starts the reason sub-flow: the admin's next free-text
	// message completes the rejection.
	BeginReject(ctx context.Context, adminID, paymentID int64) error
	// CompleteReject consumes the admin's reason text and finishes the reject.
	CompleteReject(ctx context.Context, adminID int64, reason string) (*model.PaymentRecord, error)
	// AwaitingReason reports whether the admin is mid reject sub-flow.
	AwaitingReason(ctx context.Context, adminID int64) (bool, error)
}

type reviewUC struct {
	payments PaymentUseCase
	state    repository.FlowStateRepository
	bot      adapter.ChatBotAdapter
	plans    *catalog.Catalog
	admins   map[int64]struct{}
	log      *zerolog.Logger
}

func NewReviewUseCase(
	payments PaymentUseCase,
	state repository.FlowStateRepository,
	bot adapter.ChatBotAdapter,
	plans *catalog.Catalog,
	adminIDs []int64,
	logger *zerolog.Logger,
) *reviewUC {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	l := logger.With().Str("component", "ReviewUC").Logger()
	return &reviewUC{payments: payments, state: state, bot: bot, plans: plans, admins: admins, log: &l}
}

func (u *reviewUC) IsAdmin(userID int64) bool {
	_, ok := u.admins[userID]
	return ok
}

func rejectMarker(paymentID int64) string {
	return fmt.Sprintf("reject_pending:%d", paymentID)
}

func (u *reviewUC) Approve(ctx context.Context, adminID, paymentID int64) (*model.PaymentRecord, error) {
	if !u.IsAdmin(adminID) {
		return nil, domain.ErrUnauthorized
	}
	p, err := u.payments.ConfirmPending(ctx, paymentID, adminID, nil)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			metrics.IncAdminDecision("approve", "already_processed")
		}
		return p, err
	}
	metrics.IncAdminDecision("approve", "ok")

	planName := u.plans.DisplayName(p.PlanType)
	msg := fmt.Sprintf("✅ Your payment %s has been approved.\nPlan %s is now active.", p.Reference, planName)
	if err := u.bot.SendMessage(ctx, p.RequesterUserID, msg); err != nil {
		u.log.Error().Err(err).Int64("tg_id", p.RequesterUserID).Int64("payment_id", p.ID).
			Msg("failed to notify requester of approval")
	}
	return p, nil
}

func (u *reviewUC) BeginReject(ctx context.Context, adminID, paymentID int64) error {
	if !u.IsAdmin(adminID) {
		return domain.ErrUnauthorized
	}
	p, err := u.payments.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status != model.PaymentStatusPending {
		return domain.ErrAlreadyProcessed
	}

	if err := u.state.Set(ctx, repository.UserScope(adminID), &model.FlowState{
		Flow:      model.FlowAwaitingRejectReason,
		PaymentID: paymentID,
	}); err != nil {
		return err
	}
	// Cross-cutting marker so other instances/admins can see the payment is
	// mid-rejection.
	return u.state.Set(ctx, repository.GlobalScope(rejectMarker(paymentID)), &model.FlowState{
		Flow:      model.FlowAwaitingRejectReason,
		PaymentID: paymentID,
	})
}

func (u *reviewUC) AwaitingReason(ctx context.Context, adminID int64) (bool, error) {
	st, err := u.state.Get(ctx, repository.UserScope(adminID))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Flow == model.FlowAwaitingRejectReason, nil
}

func (u *reviewUC) CompleteReject(ctx context.Context, adminID int64, reason string) (*model.PaymentRecord, error) {
	if !u.IsAdmin(adminID) {
		return nil, domain.ErrUnauthorized
	}
	st, err := u.state.Get(ctx, repository.UserScope(adminID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoActiveFlow
	}
	if err != nil {
		return nil, err
	}
	if st.Flow != model.FlowAwaitingRejectReason {
		return nil, domain.ErrNoActiveFlow
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		// Keep the sub-flow alive so the admin can resend a usable reason.
		return nil, domain.ErrInvalidArgument
	}

	p, err := u.payments.Reject(ctx, st.PaymentID, adminID, reason)

	// Terminal path either way: the sub-flow must not survive completion.
	_ = u.state.Clear(ctx, repository.UserScope(adminID))
	_ = u.state.Clear(ctx, repository.GlobalScope(rejectMarker(st.PaymentID)))

	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			metrics.IncAdminDecision("reject", "already_processed")
		}
		return p, err
	}
	metrics.IncAdminDecision("reject", "ok")

	msg := fmt.Sprintf("❌ Your payment %s was rejected.\nReason: %s\nYou can submit a new proof at any time.", p.Reference, reason)
	if err := u.bot.SendMessage(ctx, p.RequesterUserID, msg); err != nil {
		u.log.Error().Err(err).Int64("tg_id", p.RequesterUserID).Int64("payment_id", p.ID).
			Msg("failed to notify requester of rejection")
	}
	return p, nil
}
