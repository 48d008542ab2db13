package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/repository"
	"telegram-invoicing-crm/internal/infra/metrics"
)

var _ TenantUseCase = (*tenantUC)(nil)
var _ PlanActivator = (*tenantUC)(nil)

type TenantUseCase interface {
	// CreateInactive registers a company awaiting payment approval.
	CreateInactive(ctx context.Context, name, email, currency, timezone string) (*model.Tenant, error)
	Get(ctx context.Context, id int64) (*model.Tenant, error)
	ActivateForPayment(ctx context.Context, p *model.PaymentRecord) (*model.Tenant, error)
	// DeactivateLapsed flips is_active off for tenants whose window ended.
	DeactivateLapsed(ctx context.Context) (int, error)
}

type tenantUC struct {
	tenants repository.TenantRepository
	txm     repository.TransactionManager
	log     *zerolog.Logger
}

// NewTenantUseCase builds the tenant service. txm may be nil; activation then
// runs without a surrounding transaction, which is fine for in-memory repos.
func NewTenantUseCase(tenants repository.TenantRepository, txm repository.TransactionManager, logger *zerolog.Logger) *tenantUC {
	l := logger.With().Str("component", "TenantUC").Logger()
	return &tenantUC{tenants: tenants, txm: txm, log: &l}
}

func (u *tenantUC) CreateInactive(ctx context.Context, name, email, currency, timezone string) (*model.Tenant, error) {
	t, err := model.NewTenant(name, email, currency, timezone)
	if err != nil {
		return nil, err
	}
	if err := u.tenants.Save(ctx, nil, t); err != nil {
		return nil, err
	}
	u.log.Info().Int64("tenant_id", t.ID).Str("name", t.Name).Msg("tenant created (inactive)")
	return t, nil
}

func (u *tenantUC) Get(ctx context.Context, id int64) (*model.Tenant, error) {
	return u.tenants.FindByID(ctx, nil, id)
}

// ActivateForPayment applies the purchased plan window to the payment's
// tenant: an expired or missing window starts now, an unexpired one is
// extended from its current end so early renewals keep remaining paid time.
func (u *tenantUC) ActivateForPayment(ctx context.Context, p *model.PaymentRecord) (*model.Tenant, error) {
	var t *model.Tenant
	apply := func(ctx context.Context, tx repository.Tx) error {
		found, err := u.tenants.FindByID(ctx, tx, p.TenantID)
		if err != nil {
			return err
		}
		found.ActivatePlan(model.PlanStatus(strings.ToLower(p.PlanType)), time.Now())
		if err := u.tenants.UpdatePlan(ctx, tx, found); err != nil {
			return err
		}
		t = found
		return nil
	}

	// Extension stacks on the current end date, so the read and the write
	// must see the same row version.
	var err error
	if u.txm != nil {
		err = u.txm.WithTx(ctx, pgx.TxOptions{}, apply)
	} else {
		err = apply(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	metrics.IncPlanActivation(p.PlanType)
	u.log.Info().Int64("tenant_id", t.ID).Str("plan", string(t.PlanStatus)).
		Time("plan_end", *t.PlanEndDate).Msg("plan activated")
	return t, nil
}

func (u *tenantUC) DeactivateLapsed(ctx context.Context) (int, error) {
	lapsed, err := u.tenants.ListLapsed(ctx, nil, time.Now(), 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range lapsed {
		if err := u.tenants.Deactivate(ctx, nil, t.ID); err != nil {
			u.log.Error().Err(err).Int64("tenant_id", t.ID).Msg("deactivate lapsed tenant")
			continue
		}
		n++
	}
	return n, nil
}
