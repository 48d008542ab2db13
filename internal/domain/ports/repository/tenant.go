package repository

import (
	"context"
	"time"

	"telegram-invoicing-crm/internal/domain/model"
)

type TenantRepository interface {
	// Save inserts a new tenant and assigns its numeric id.
	Save(ctx context.Context, qx Tx, t *model.Tenant) error
	FindByID(ctx context.Context, qx Tx, id int64) (*model.Tenant, error)
	// UpdatePlan persists plan_status, the window dates and is_active.
	UpdatePlan(ctx context.Context, qx Tx, t *model.Tenant) error
	// ListLapsed returns active tenants whose plan window ended before asOf.
	ListLapsed(ctx context.Context, qx Tx, asOf time.Time, limit int) ([]*model.Tenant, error)
	Deactivate(ctx context.Context, qx Tx, id int64) error
}
