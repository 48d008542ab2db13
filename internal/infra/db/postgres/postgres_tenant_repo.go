package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/repository"
)

var _ repository.TenantRepository = (*tenantRepo)(nil)

type tenantRepo struct{ pool *pgxpool.Pool }

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

const tenantColumns = `id, name, email, plan_status, plan_start_date, plan_end_date, is_active,
currency, timezone, created_at, updated_at`

func (r *tenantRepo) Save(ctx context.Context, qx repository.Tx, t *model.Tenant) error {
	const q = `
INSERT INTO tenants (name, email, plan_status, plan_start_date, plan_end_date, is_active, currency, timezone, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id;`

	row, err := pickRow(ctx, r.pool, qx, q,
		t.Name, t.Email, t.PlanStatus, t.PlanStartDate, t.PlanEndDate, t.IsActive,
		t.Currency, t.Timezone, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&t.ID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	t := &model.Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.PlanStatus, &t.PlanStartDate, &t.PlanEndDate,
		&t.IsActive, &t.Currency, &t.Timezone, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *tenantRepo) FindByID(ctx context.Context, qx repository.Tx, id int64) (*model.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, qx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanTenant(row)
}

func (r *tenantRepo) UpdatePlan(ctx context.Context, qx repository.Tx, t *model.Tenant) error {
	const q = `
UPDATE tenants
SET plan_status=$2, plan_start_date=$3, plan_end_date=$4, is_active=$5, updated_at=NOW()
WHERE id=$1;`

	tag, err := execSQL(ctx, r.pool, qx, q, t.ID, t.PlanStatus, t.PlanStartDate, t.PlanEndDate, t.IsActive)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *tenantRepo) ListLapsed(ctx context.Context, qx repository.Tx, asOf time.Time, limit int) ([]*model.Tenant, error) {
	const q = `SELECT ` + tenantColumns + `
FROM tenants WHERE is_active AND plan_end_date IS NOT NULL AND plan_end_date < $1
ORDER BY plan_end_date ASC LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, qx, q, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *tenantRepo) Deactivate(ctx context.Context, qx repository.Tx, id int64) error {
	tag, err := execSQL(ctx, r.pool, qx, `UPDATE tenants SET is_active=FALSE, updated_at=NOW() WHERE id=$1;`, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
