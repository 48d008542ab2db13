//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
)

func seedTenant(t *testing.T) *model.Tenant {
	t.Helper()
	tn, err := model.NewTenant("Acme", "billing@acme.test", "USD", "UTC")
	if err != nil {
		t.Fatalf("new tenant: %v", err)
	}
	if err := NewTenantRepo(testPool).Save(context.Background(), nil, tn); err != nil {
		t.Fatalf("save tenant: %v", err)
	}
	return tn
}

func seedPayment(t *testing.T, tenantID int64, ref string) *model.PaymentRecord {
	t.Helper()
	p, err := model.NewPaymentRecord(ref, tenantID, 777, model.PaymentMethodMobileMoney,
		"premium", model.PaymentActionRenew, decimal.RequireFromString("19.900"), "USD")
	if err != nil {
		t.Fatalf("new payment: %v", err)
	}
	if err := NewPaymentRepo(testPool).Save(context.Background(), nil, p); err != nil {
		t.Fatalf("save payment: %v", err)
	}
	return p
}

func TestPaymentRepo_SaveAndFind(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	tn := seedTenant(t)

	p := seedPayment(t, tn.ID, "PAY-INTTEST01")
	if p.ID == 0 {
		t.Fatal("id not assigned on insert")
	}

	got, err := repo.FindByID(ctx, nil, p.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Reference != "PAY-INTTEST01" || got.Status != model.PaymentStatusPending {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if !got.Amount.Equal(decimal.RequireFromString("19.900")) {
		t.Fatalf("amount mismatch: %s", got.Amount)
	}

	byRef, err := repo.FindByReference(ctx, nil, "PAY-INTTEST01")
	if err != nil || byRef.ID != p.ID {
		t.Fatalf("FindByReference: %v %v", byRef, err)
	}
}

func TestPaymentRepo_DuplicateReference(t *testing.T) {
	cleanup(t)
	tn := seedTenant(t)
	seedPayment(t, tn.ID, "PAY-DUPREF0001")

	p, _ := model.NewPaymentRecord("PAY-DUPREF0001", tn.ID, 778, model.PaymentMethodBankTransfer,
		"basic", model.PaymentActionRenew, decimal.RequireFromString("9.900"), "USD")
	err := NewPaymentRepo(testPool).Save(context.Background(), nil, p)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	exists, err := NewPaymentRepo(testPool).ReferenceExists(context.Background(), nil, "PAY-DUPREF0001")
	if err != nil || !exists {
		t.Fatalf("ReferenceExists = %v, %v", exists, err)
	}
}

func TestPaymentRepo_UpdateStatusIfPending_CAS(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	tn := seedTenant(t)
	p := seedPayment(t, tn.ID, "PAY-CASTEST01")

	admin := int64(100)
	now := time.Now()

	won, err := repo.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusConfirmed, &admin, nil, &now)
	if err != nil || !won {
		t.Fatalf("first CAS: won=%v err=%v", won, err)
	}
	won, err = repo.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusRejected, &admin, nil, nil)
	if err != nil || won {
		t.Fatalf("second CAS must lose: won=%v err=%v", won, err)
	}

	got, _ := repo.FindByID(ctx, nil, p.ID)
	if got.Status != model.PaymentStatusConfirmed {
		t.Fatalf("loser overwrote status: %s", got.Status)
	}
}

func TestPaymentRepo_UpdateStatusIfPending_Concurrent(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	tn := seedTenant(t)
	p := seedPayment(t, tn.ID, "PAY-RACETEST1")

	const racers = 8
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			now := time.Now()
			won, err := repo.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusConfirmed, &admin, nil, &now)
			if err != nil {
				t.Errorf("CAS error: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(int64(100 + i))
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestPaymentRepo_ListPending(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	tn := seedTenant(t)

	first := seedPayment(t, tn.ID, "PAY-PENDING01")
	second := seedPayment(t, tn.ID, "PAY-PENDING02")
	admin := int64(100)
	now := time.Now()
	if won, err := repo.UpdateStatusIfPending(ctx, nil, second.ID, model.PaymentStatusConfirmed, &admin, nil, &now); err != nil || !won {
		t.Fatalf("confirm second: %v", err)
	}

	pending, err := repo.ListPending(ctx, nil, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}
