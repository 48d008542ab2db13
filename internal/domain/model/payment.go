package model

import (
	"time"

	"github.com/shopspring/decimal"

	"telegram-invoicing-crm/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // awaiting admin review
	PaymentStatusConfirmed PaymentStatus = "confirmed" // admin approved; plan activated
	PaymentStatusRejected  PaymentStatus = "rejected"  // admin rejected with a reason
	PaymentStatusCancelled PaymentStatus = "cancelled" // withdrawn before review
)

type PaymentMethod string

const (
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

type PaymentAction string

const (
	PaymentActionNew      PaymentAction = "new"
	PaymentActionRenew    PaymentAction = "renew"
	PaymentActionUpgrade  PaymentAction = "upgrade"
	PaymentActionCreation PaymentAction = "creation"
)

// ReferencePrefix starts every human-readable payment reference.
const ReferencePrefix = "PAY-"

// PaymentRecord is a single payment attempt with its review lifecycle.
// Records are kept forever as an audit trail.
type PaymentRecord struct {
	ID               int64
	Reference        string // immutable, globally unique
	TenantID         int64
	RequesterUserID  int64 // Telegram id of the submitter
	Method           PaymentMethod
	PlanType         string // key into the plan catalog
	Action           PaymentAction
	Amount           decimal.Decimal // in the tenant's accounting currency
	Currency         string
	TransactionID    *string // free-text id supplied instead of a file
	TransactionProof *string // asset store path
	Status           PaymentStatus
	ConfirmedAt      *time.Time
	ConfirmedBy      *int64  // admin Telegram id
	Notes            *string // rejection reason or admin note
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPaymentRecord validates and constructs a pending record. The reference
// must already be generated (and collision-checked) by the caller.
func NewPaymentRecord(reference string, tenantID, requesterID int64, method PaymentMethod, planType string, action PaymentAction, amount decimal.Decimal, currency string) (*PaymentRecord, error) {
	if reference == "" || tenantID == 0 || requesterID == 0 || planType == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentRecord{
		Reference:       reference,
		TenantID:        tenantID,
		RequesterUserID: requesterID,
		Method:          method,
		PlanType:        planType,
		Action:          action,
		Amount:          amount,
		Currency:        currency,
		Status:          PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (p *PaymentRecord) IsZero() bool { return p == nil || p.Reference == "" }

// CanTransition reports whether moving to next is legal. Pending is the only
// non-terminal status.
func (p *PaymentRecord) CanTransition(next PaymentStatus) bool {
	if p.Status != PaymentStatusPending {
		return false
	}
	switch next {
	case PaymentStatusConfirmed, PaymentStatusRejected, PaymentStatusCancelled:
		return true
	}
	return false
}
