package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/repository"
)

var _ repository.FlowStateRepository = (*StateRepo)(nil)

// StateRepo keeps conversational flow state in Redis so any bot instance can
// continue a flow another instance started. Entries expire; an abandoned flow
// simply vanishes.
type StateRepo struct {
	client *Client
	ttl    time.Duration
}

func NewStateRepo(client *Client, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{client: client, ttl: ttl}
}

func stateKey(scope repository.Scope) string {
	return "flow_state:" + scope.Key()
}

func (s *StateRepo) Set(ctx context.Context, scope repository.Scope, st *model.FlowState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey(scope), data, s.ttl)
}

func (s *StateRepo) Get(ctx context.Context, scope repository.Scope) (*model.FlowState, error) {
	data, err := s.client.Get(ctx, stateKey(scope))
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var st model.FlowState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StateRepo) Clear(ctx context.Context, scope repository.Scope) error {
	return s.client.Del(ctx, stateKey(scope))
}
