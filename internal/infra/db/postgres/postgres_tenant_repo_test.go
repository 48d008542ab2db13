//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
)

func TestTenantRepo_SaveFindUpdatePlan(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewTenantRepo(testPool)
	tn := seedTenant(t)

	got, err := repo.FindByID(ctx, nil, tn.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.IsActive || got.PlanStatus != model.PlanStatusFree {
		t.Fatalf("fresh tenant wrong: %+v", got)
	}

	now := time.Now().Truncate(time.Second)
	end := model.AddMonth(now)
	got.PlanStatus = model.PlanStatusPremium
	got.PlanStartDate = &now
	got.PlanEndDate = &end
	got.IsActive = true
	if err := repo.UpdatePlan(ctx, nil, got); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}

	back, _ := repo.FindByID(ctx, nil, tn.ID)
	if !back.IsActive || back.PlanStatus != model.PlanStatusPremium || back.PlanEndDate == nil {
		t.Fatalf("plan not persisted: %+v", back)
	}
	if !back.PlanEndDate.Equal(end) {
		t.Fatalf("end date drifted: %v vs %v", back.PlanEndDate, end)
	}
}

func TestTenantRepo_ListLapsedAndDeactivate(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewTenantRepo(testPool)
	tn := seedTenant(t)

	past := time.Now().Add(-48 * time.Hour)
	start := past.Add(-30 * 24 * time.Hour)
	tn.PlanStatus = model.PlanStatusBasic
	tn.PlanStartDate = &start
	tn.PlanEndDate = &past
	tn.IsActive = true
	if err := repo.UpdatePlan(ctx, nil, tn); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}

	lapsed, err := repo.ListLapsed(ctx, nil, time.Now(), 10)
	if err != nil || len(lapsed) != 1 {
		t.Fatalf("ListLapsed = %v, %v", lapsed, err)
	}

	if err := repo.Deactivate(ctx, nil, tn.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	lapsed, _ = repo.ListLapsed(ctx, nil, time.Now(), 10)
	if len(lapsed) != 0 {
		t.Fatalf("deactivated tenant still listed: %+v", lapsed)
	}

	if err := repo.Deactivate(ctx, nil, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
