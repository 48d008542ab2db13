package repository

import (
	"context"
	"time"

	"telegram-invoicing-crm/internal/domain/model"
)

type PaymentRepository interface {
	// Save inserts a new record and assigns its numeric id.
	Save(ctx context.Context, qx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, qx Tx, id int64) (*model.PaymentRecord, error)
	FindByReference(ctx context.Context, qx Tx, reference string) (*model.PaymentRecord, error)
	// ReferenceExists backs the generate-check-retry loop for new references.
	ReferenceExists(ctx context.Context, qx Tx, reference string) (bool, error)
	ListPending(ctx context.Context, qx Tx, limit int) ([]*model.PaymentRecord, error)
	// UpdateStatusIfPending flips the status only when it is still pending and
	// reports whether this caller won the transition. It is the sole guard
	// against two concurrent reviews both activating a plan.
	UpdateStatusIfPending(ctx context.Context, qx Tx, id int64, status model.PaymentStatus, reviewerID *int64, notes *string, confirmedAt *time.Time) (bool, error)
}
