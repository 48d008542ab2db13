package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/repository"
	"telegram-invoicing-crm/internal/infra/logging"
	"telegram-invoicing-crm/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PlanActivator is the slice of the tenant use case the payment store needs:
// applying a confirmed payment's plan to its tenant. Split out so tests can
// count activations.
type PlanActivator interface {
	ActivateForPayment(ctx context.Context, p *model.PaymentRecord) (*model.Tenant, error)
}

type PaymentUseCase interface {
	// Create opens a pending record with a freshly generated unique reference.
	Create(ctx context.Context, in CreatePaymentInput) (*model.PaymentRecord, error)
	Get(ctx context.Context, id int64) (*model.PaymentRecord, error)
	ListPending(ctx context.Context, limit int) ([]*model.PaymentRecord, error)
	// ConfirmPending flips pending->confirmed and activates the plan exactly
	// once. The second of two racing callers gets domain.ErrAlreadyProcessed.
	ConfirmPending(ctx context.Context, paymentID, reviewerID int64, notes *string) (*model.PaymentRecord, error)
	// Reject flips pending->rejected; reason is mandatory.
	Reject(ctx context.Context, paymentID, reviewerID int64, reason string) (*model.PaymentRecord, error)
	// Cancel flips pending->cancelled. No chat flow calls this today; it backs
	// the dashboard's withdraw action.
	Cancel(ctx context.Context, paymentID int64) (*model.PaymentRecord, error)
}

type CreatePaymentInput struct {
	TenantID      int64
	RequesterID   int64
	Method        model.PaymentMethod
	PlanType      string
	Action        model.PaymentAction
	Amount        decimal.Decimal
	Currency      string
	ProofPath     *string
	TransactionID *string
}

type paymentUC struct {
	payments  repository.PaymentRepository
	activator PlanActivator
	log       *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, activator PlanActivator, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, activator: activator, log: &l}
}

func (u *paymentUC) Create(ctx context.Context, in CreatePaymentInput) (*model.PaymentRecord, error) {
	ref, err := generateReference(ctx, u.payments)
	if err != nil {
		return nil, err
	}
	p, err := model.NewPaymentRecord(ref, in.TenantID, in.RequesterID, in.Method, in.PlanType, in.Action, in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	p.TransactionProof = in.ProofPath
	p.TransactionID = in.TransactionID
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Int64("tenant_id", p.TenantID).Str("reference", p.Reference).Str("plan", p.PlanType).Msg("payment record created")
	return p, nil
}

func (u *paymentUC) Get(ctx context.Context, id int64) (*model.PaymentRecord, error) {
	return u.payments.FindByID(ctx, nil, id)
}

func (u *paymentUC) ListPending(ctx context.Context, limit int) ([]*model.PaymentRecord, error) {
	return u.payments.ListPending(ctx, nil, limit)
}

func (u *paymentUC) ConfirmPending(ctx context.Context, paymentID, reviewerID int64, notes *string) (*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ConfirmPending")()
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusPending {
		return p, domain.ErrAlreadyProcessed
	}

	now := time.Now()
	won, err := u.payments.UpdateStatusIfPending(ctx, nil, paymentID, model.PaymentStatusConfirmed, &reviewerID, notes, &now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race against a concurrent review.
		return p, domain.ErrAlreadyProcessed
	}

	p.Status = model.PaymentStatusConfirmed
	p.ConfirmedAt = &now
	p.ConfirmedBy = &reviewerID
	p.Notes = notes
	p.UpdatedAt = now
	metrics.IncPayment(string(model.PaymentStatusConfirmed))
	metrics.AddPaymentRevenue(p.Currency, p.Amount)

	// The status flip is durably committed; activation runs exactly once, on
	// the winning path only.
	if _, err := u.activator.ActivateForPayment(ctx, p); err != nil {
		u.log.Error().Err(err).Int64("payment_id", p.ID).Int64("tenant_id", p.TenantID).
			Msg("payment confirmed but plan activation failed")
		return p, err
	}
	return p, nil
}

func (u *paymentUC) Reject(ctx context.Context, paymentID, reviewerID int64, reason string) (*model.PaymentRecord, error) {
	if reason == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusPending {
		return p, domain.ErrAlreadyProcessed
	}

	won, err := u.payments.UpdateStatusIfPending(ctx, nil, paymentID, model.PaymentStatusRejected, &reviewerID, &reason, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		return p, domain.ErrAlreadyProcessed
	}

	p.Status = model.PaymentStatusRejected
	p.ConfirmedBy = &reviewerID
	p.Notes = &reason
	p.UpdatedAt = time.Now()
	metrics.IncPayment(string(model.PaymentStatusRejected))
	return p, nil
}

func (u *paymentUC) Cancel(ctx context.Context, paymentID int64) (*model.PaymentRecord, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusPending {
		return p, domain.ErrAlreadyProcessed
	}
	won, err := u.payments.UpdateStatusIfPending(ctx, nil, paymentID, model.PaymentStatusCancelled, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		return p, domain.ErrAlreadyProcessed
	}
	p.Status = model.PaymentStatusCancelled
	p.UpdatedAt = time.Now()
	metrics.IncPayment(string(model.PaymentStatusCancelled))
	return p, nil
}
