package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
	"telegram-invoicing-crm/internal/domain/ports/repository"
)

// memPaymentRepo is an in-memory PaymentRepository used by unit tests. Its
// UpdateStatusIfPending is a real compare-and-set under a mutex so race tests
// exercise the same guarantee the SQL version gives.
type memPaymentRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]*model.PaymentRecord
	refs  map[string]struct{}

	// collideNext makes the next N ReferenceExists calls report a collision.
	collideNext int
	refChecks   int
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: map[int64]*model.PaymentRecord{}, refs: map[string]struct{}{}}
}

func (m *memPaymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.refs[p.Reference]; dup {
		return domain.ErrAlreadyExists
	}
	m.seq++
	p.ID = m.seq
	cp := *p
	m.store[p.ID] = &cp
	m.refs[p.Reference] = struct{}{}
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id int64) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByReference(ctx context.Context, qx repository.Tx, ref string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Reference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ReferenceExists(ctx context.Context, qx repository.Tx, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refChecks++
	if m.collideNext > 0 {
		m.collideNext--
		return true, nil
	}
	_, ok := m.refs[ref]
	return ok, nil
}

func (m *memPaymentRepo) ListPending(ctx context.Context, qx repository.Tx, limit int) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id int64, status model.PaymentStatus, reviewerID *int64, notes *string, confirmedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.ConfirmedBy = reviewerID
	p.Notes = notes
	p.ConfirmedAt = confirmedAt
	p.UpdatedAt = time.Now()
	return true, nil
}

// memTenantRepo is an in-memory TenantRepository.
type memTenantRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]*model.Tenant
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{store: map[int64]*model.Tenant{}}
}

func (m *memTenantRepo) Save(ctx context.Context, qx repository.Tx, t *model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = m.seq
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *memTenantRepo) FindByID(ctx context.Context, qx repository.Tx, id int64) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenantRepo) UpdatePlan(ctx context.Context, qx repository.Tx, t *model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.PlanStatus = t.PlanStatus
	cur.PlanStartDate = t.PlanStartDate
	cur.PlanEndDate = t.PlanEndDate
	cur.IsActive = t.IsActive
	cur.UpdatedAt = t.UpdatedAt
	return nil
}

func (m *memTenantRepo) ListLapsed(ctx context.Context, qx repository.Tx, asOf time.Time, limit int) ([]*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Tenant
	for _, t := range m.store {
		if t.IsActive && t.PlanEndDate != nil && t.PlanEndDate.Before(asOf) {
			cp := *t
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memTenantRepo) Deactivate(ctx context.Context, qx repository.Tx, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.IsActive = false
	return nil
}

// memStateRepo is an in-memory FlowStateRepository.
type memStateRepo struct {
	mu    sync.Mutex
	store map[string]*model.FlowState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{store: map[string]*model.FlowState{}}
}

func (m *memStateRepo) Set(ctx context.Context, scope repository.Scope, st *model.FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *st
	m.store[scope.Key()] = &cp
	return nil
}

func (m *memStateRepo) Get(ctx context.Context, scope repository.Scope) (*model.FlowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.store[scope.Key()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memStateRepo) Clear(ctx context.Context, scope repository.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, scope.Key())
	return nil
}

func (m *memStateRepo) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.store {
		out = append(out, k)
	}
	return out
}

// sentMessage captures one outbound send for assertions.
type sentMessage struct {
	ChatID  int64
	Text    string
	Kind    string // message|buttons|photo|document
	Asset   string
	Buttons [][]adapter.Button
}

type mockBot struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (b *mockBot) record(m sentMessage) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, m)
	return nil
}

func (b *mockBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.record(sentMessage{ChatID: chatID, Text: text, Kind: "message"})
}

func (b *mockBot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.Button) error {
	return b.record(sentMessage{ChatID: chatID, Text: text, Kind: "buttons", Buttons: rows})
}

func (b *mockBot) SendPhoto(ctx context.Context, chatID int64, assetPath, caption string, rows [][]adapter.Button) error {
	return b.record(sentMessage{ChatID: chatID, Text: caption, Kind: "photo", Asset: assetPath, Buttons: rows})
}

func (b *mockBot) SendDocument(ctx context.Context, chatID int64, assetPath, caption string, rows [][]adapter.Button) error {
	return b.record(sentMessage{ChatID: chatID, Text: caption, Kind: "document", Asset: assetPath, Buttons: rows})
}

func (b *mockBot) sentTo(chatID int64) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type mockFetcher struct {
	data map[string][]byte
	err  error
}

func (f *mockFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.data[fileID]
	if !ok {
		return nil, domain.ErrExternalFetch
	}
	return d, nil
}

type mockAssets struct {
	mu    sync.Mutex
	seq   int
	saved map[string][]byte
	err   error
}

func newMockAssets() *mockAssets {
	return &mockAssets{saved: map[string][]byte{}}
}

func (a *mockAssets) Save(ctx context.Context, data []byte, mimeType string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	ext, ok := model.AllowedProofMIME[strings.ToLower(mimeType)]
	if !ok {
		return "", domain.ErrUnsupportedInput
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	path := fmt.Sprintf("proofs/test%d.%s", a.seq, ext)
	a.saved[path] = data
	return path, nil
}

// countingActivator counts activations without touching tenants.
type countingActivator struct {
	calls atomic.Int64
	err   error
}

func (c *countingActivator) ActivateForPayment(ctx context.Context, p *model.PaymentRecord) (*model.Tenant, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.calls.Add(1)
	return &model.Tenant{ID: p.TenantID, IsActive: true}, nil
}
