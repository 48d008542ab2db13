package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, reference, tenant_id, requester_user_id, method, plan_type, action,
amount, currency, transaction_id, transaction_proof, status, confirmed_at, confirmed_by, notes,
created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (
  reference, tenant_id, requester_user_id, method, plan_type, action,
  amount, currency, transaction_id, transaction_proof, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id;`

	row, err := pickRow(ctx, r.pool, qx, q,
		p.Reference, p.TenantID, p.RequesterUserID, p.Method, p.PlanType, p.Action,
		p.Amount, p.Currency, p.TransactionID, p.TransactionProof, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&p.ID); err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation, the reference collided
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	err := row.Scan(&p.ID, &p.Reference, &p.TenantID, &p.RequesterUserID, &p.Method, &p.PlanType,
		&p.Action, &p.Amount, &p.Currency, &p.TransactionID, &p.TransactionProof, &p.Status,
		&p.ConfirmedAt, &p.ConfirmedBy, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, qx repository.Tx, id int64) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, qx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByReference(ctx context.Context, qx repository.Tx, reference string) (*model.PaymentRecord, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT `+paymentColumns+` FROM payments WHERE reference=$1;`, reference)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ReferenceExists(ctx context.Context, qx repository.Tx, reference string) (bool, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT EXISTS (SELECT 1 FROM payments WHERE reference=$1);`, reference)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *paymentRepo) ListPending(ctx context.Context, qx repository.Tx, limit int) ([]*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' ORDER BY created_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, qx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// UpdateStatusIfPending is the compare-and-set behind every status
// transition. The WHERE clause carries the guard: of N racing reviewers
// exactly one sees RowsAffected()==1.
func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id int64, status model.PaymentStatus, reviewerID *int64, notes *string, confirmedAt *time.Time) (bool, error) {
	const q = `
UPDATE payments
SET status=$2, confirmed_by=$3, notes=$4, confirmed_at=$5, updated_at=NOW()
WHERE id=$1 AND status='pending';`

	tag, err := execSQL(ctx, r.pool, qx, q, id, status, reviewerID, notes, confirmedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}
