package repository

import (
	"context"
	"fmt"

	"telegram-invoicing-crm/internal/domain/model"
)

// Scope addresses one conversation-state slot: either a chat participant
// (keyed by Telegram id) or a named cross-cutting slot shared by all
// instances, e.g. an admin+payment reject-reason pair.
type Scope struct {
	key string
}

func UserScope(tgID int64) Scope    { return Scope{key: fmt.Sprintf("u:%d", tgID)} }
func GlobalScope(name string) Scope { return Scope{key: "g:" + name} }
func (s Scope) Key() string         { return s.key }

// FlowStateRepository stores the resumable state between two unrelated
// inbound events. It must be backed by shared storage: in a multi-instance
// deployment a flow started on one instance resumes on another.
//
// Get returns domain.ErrNotFound when no flow is in progress; callers treat
// that as FlowNone, never as a failure.
type FlowStateRepository interface {
	Set(ctx context.Context, scope Scope, state *model.FlowState) error
	Get(ctx context.Context, scope Scope) (*model.FlowState, error)
	Clear(ctx context.Context, scope Scope) error
}
