package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-invoicing-crm/internal/domain/model"
)

func TestTenantUC_CreateInactive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemTenantRepo()
	uc := NewTenantUseCase(repo, nil, testLogger())

	tn, err := uc.CreateInactive(ctx, "Acme SARL", "billing@acme.test", "USD", "Africa/Dakar")
	if err != nil {
		t.Fatalf("CreateInactive: %v", err)
	}
	if tn.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if tn.IsActive {
		t.Fatal("new tenant must start inactive")
	}
	if tn.PlanStatus != model.PlanStatusFree {
		t.Fatalf("expected free status, got %s", tn.PlanStatus)
	}
}

func TestTenantUC_ActivateForPayment_NoWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemTenantRepo()
	uc := NewTenantUseCase(repo, nil, testLogger())
	tn, _ := uc.CreateInactive(ctx, "Acme", "", "USD", "")

	before := time.Now()
	p := &model.PaymentRecord{ID: 1, TenantID: tn.ID, PlanType: "PREMIUM", Amount: decimal.NewFromInt(19900)}
	got, err := uc.ActivateForPayment(ctx, p)
	if err != nil {
		t.Fatalf("ActivateForPayment: %v", err)
	}
	after := time.Now()

	if !got.IsActive || got.PlanStatus != model.PlanStatusPremium {
		t.Fatalf("unexpected tenant: active=%v status=%s", got.IsActive, got.PlanStatus)
	}
	if got.PlanStartDate.Before(before) || got.PlanStartDate.After(after) {
		t.Fatalf("start should be ~now, got %s", got.PlanStartDate)
	}
	wantEnd := model.AddMonth(*got.PlanStartDate)
	if !got.PlanEndDate.Equal(wantEnd) {
		t.Fatalf("end = %s, want %s", got.PlanEndDate, wantEnd)
	}
}

func TestTenantUC_ActivateForPayment_ExpiredWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemTenantRepo()
	uc := NewTenantUseCase(repo, nil, testLogger())
	tn, _ := uc.CreateInactive(ctx, "Acme", "", "USD", "")

	yesterday := time.Now().Add(-24 * time.Hour)
	lastMonth := yesterday.AddDate(0, -1, 0)
	tn.PlanStartDate = &lastMonth
	tn.PlanEndDate = &yesterday
	if err := repo.UpdatePlan(ctx, nil, tn); err != nil {
		t.Fatalf("seed window: %v", err)
	}

	before := time.Now()
	got, err := uc.ActivateForPayment(ctx, &model.PaymentRecord{TenantID: tn.ID, PlanType: "BASIC"})
	if err != nil {
		t.Fatalf("ActivateForPayment: %v", err)
	}
	// Expired window: new start is now, not the old end.
	if got.PlanStartDate.Before(before) {
		t.Fatalf("start %s should not predate confirm time", got.PlanStartDate)
	}
	if !got.PlanEndDate.Equal(model.AddMonth(*got.PlanStartDate)) {
		t.Fatalf("end should be start+1 month, got %s", got.PlanEndDate)
	}
}

func TestTenantUC_ActivateForPayment_StacksOnFutureEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemTenantRepo()
	uc := NewTenantUseCase(repo, nil, testLogger())
	tn, _ := uc.CreateInactive(ctx, "Acme", "", "USD", "")

	start := time.Now().AddDate(0, 0, -20)
	end := time.Now().AddDate(0, 0, 10) // 10 paid days remain
	tn.PlanStartDate = &start
	tn.PlanEndDate = &end
	tn.IsActive = true
	if err := repo.UpdatePlan(ctx, nil, tn); err != nil {
		t.Fatalf("seed window: %v", err)
	}

	got, err := uc.ActivateForPayment(ctx, &model.PaymentRecord{TenantID: tn.ID, PlanType: "PREMIUM"})
	if err != nil {
		t.Fatalf("ActivateForPayment: %v", err)
	}
	// Early renewal: the new window stacks onto the old end.
	if !got.PlanStartDate.Equal(end) {
		t.Fatalf("start = %s, want old end %s", got.PlanStartDate, end)
	}
	if !got.PlanEndDate.Equal(model.AddMonth(end)) {
		t.Fatalf("end = %s, want old end + 1 month", got.PlanEndDate)
	}
}

func TestTenantUC_DeactivateLapsed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemTenantRepo()
	uc := NewTenantUseCase(repo, nil, testLogger())

	fresh, _ := uc.CreateInactive(ctx, "Fresh", "", "USD", "")
	stale, _ := uc.CreateInactive(ctx, "Stale", "", "USD", "")

	now := time.Now()
	future := now.AddDate(0, 1, 0)
	past := now.Add(-time.Hour)
	freshStart := now.AddDate(0, -1, 0)

	fresh.PlanStartDate, fresh.PlanEndDate, fresh.IsActive = &freshStart, &future, true
	stale.PlanStartDate, stale.PlanEndDate, stale.IsActive = &freshStart, &past, true
	_ = repo.UpdatePlan(ctx, nil, fresh)
	_ = repo.UpdatePlan(ctx, nil, stale)

	n, err := uc.DeactivateLapsed(ctx)
	if err != nil {
		t.Fatalf("DeactivateLapsed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deactivation, got %d", n)
	}
	gotStale, _ := uc.Get(ctx, stale.ID)
	if gotStale.IsActive {
		t.Fatal("stale tenant still active")
	}
	gotFresh, _ := uc.Get(ctx, fresh.ID)
	if !gotFresh.IsActive {
		t.Fatal("fresh tenant was deactivated")
	}
}
