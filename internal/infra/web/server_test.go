package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/usecase"
)

type fakePayments struct {
	usecase.PaymentUseCase
	pending []*model.PaymentRecord
	reject  func(id, reviewerID int64, reason string) (*model.PaymentRecord, error)
	cancel  func(id int64) (*model.PaymentRecord, error)
}

func (f *fakePayments) ListPending(ctx context.Context, limit int) ([]*model.PaymentRecord, error) {
	return f.pending, nil
}

func (f *fakePayments) Reject(ctx context.Context, id, reviewerID int64, reason string) (*model.PaymentRecord, error) {
	return f.reject(id, reviewerID, reason)
}

func (f *fakePayments) Cancel(ctx context.Context, id int64) (*model.PaymentRecord, error) {
	return f.cancel(id)
}

type fakeReview struct {
	usecase.ReviewUseCase
	approve func(adminID, paymentID int64) (*model.PaymentRecord, error)
}

func (f *fakeReview) Approve(ctx context.Context, adminID, paymentID int64) (*model.PaymentRecord, error) {
	return f.approve(adminID, paymentID)
}

type fakeLocker struct {
	held bool
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.held {
		return "", domain.ErrLockHeld
	}
	return "token", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error { return nil }

const testAPIKey = "test-api-key"

func testRecord() *model.PaymentRecord {
	return &model.PaymentRecord{
		ID:              42,
		Reference:       "PAY-WEBTEST01",
		TenantID:        1,
		RequesterUserID: 777,
		Method:          model.PaymentMethodMobileMoney,
		PlanType:        "premium",
		Action:          model.PaymentActionRenew,
		Amount:          decimal.RequireFromString("19.900"),
		Currency:        "USD",
		Status:          model.PaymentStatusPending,
		CreatedAt:       time.Now(),
	}
}

type webFixture struct {
	payments *fakePayments
	review   *fakeReview
	locker   *fakeLocker
	srv      *httptest.Server
	token    string
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()
	nop := zerolog.Nop()
	f := &webFixture{
		payments: &fakePayments{},
		review:   &fakeReview{},
		locker:   &fakeLocker{},
	}
	auth := NewAuthManager("test-secret", false, "", 30*time.Minute)
	server := NewServer(f.payments, f.review, nil, f.locker, auth, testAPIKey, 100, &nop)
	f.srv = httptest.NewServer(server.Router())
	t.Cleanup(f.srv.Close)

	// Log in once; the bearer token authenticates the rest.
	body, _ := json.Marshal(loginRequest{APIKey: testAPIKey})
	resp, err := http.Post(f.srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	f.token = out["token"]
	return f
}

func (f *webFixture) do(t *testing.T, method, path string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestServer_LoginRejectsWrongKey(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	body, _ := json.Marshal(loginRequest{APIKey: "wrong"})
	resp, err := http.Post(f.srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestServer_UnauthenticatedRequest(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/v1/payments/pending")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_ListPending(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.payments.pending = []*model.PaymentRecord{testRecord()}

	resp := f.do(t, http.MethodGet, "/api/v1/payments/pending", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Payments []paymentView `json:"payments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Payments) != 1 || out.Payments[0].Reference != "PAY-WEBTEST01" {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if out.Payments[0].Amount != "19.900" {
		t.Fatalf("amount not exact: %q", out.Payments[0].Amount)
	}
}

func TestServer_Confirm(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.review.approve = func(adminID, paymentID int64) (*model.PaymentRecord, error) {
		if adminID != 100 || paymentID != 42 {
			t.Fatalf("approve called with %d/%d", adminID, paymentID)
		}
		rec := testRecord()
		rec.Status = model.PaymentStatusConfirmed
		return rec, nil
	}

	resp := f.do(t, http.MethodPost, "/api/v1/payments/42/confirm", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestServer_ConfirmAlreadyProcessed(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.review.approve = func(adminID, paymentID int64) (*model.PaymentRecord, error) {
		return nil, domain.ErrAlreadyProcessed
	}
	resp := f.do(t, http.MethodPost, "/api/v1/payments/42/confirm", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestServer_RejectRequiresReason(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.payments.reject = func(id, reviewerID int64, reason string) (*model.PaymentRecord, error) {
		if reason == "" {
			return nil, domain.ErrInvalidArgument
		}
		rec := testRecord()
		rec.Status = model.PaymentStatusRejected
		rec.Notes = &reason
		return rec, nil
	}

	body, _ := json.Marshal(rejectRequest{Reason: ""})
	resp := f.do(t, http.MethodPost, "/api/v1/payments/42/reject", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	body, _ = json.Marshal(rejectRequest{Reason: "illegible receipt"})
	resp2 := f.do(t, http.MethodPost, "/api/v1/payments/42/reject", body)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}
}

func TestServer_LockHeldConflict(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.locker.held = true
	resp := f.do(t, http.MethodPost, "/api/v1/payments/42/confirm", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}
