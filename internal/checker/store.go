package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const flowKeyPrefix = "symptom_checker_flow:"

type FlowStore interface {
	// Load returns ErrNoFlow when nothing is stored for token.
	Load(ctx context.Context, token string) (*FlowState, error)
	Save(ctx context.Context, token string, f *FlowState) error
	Delete(ctx context.Context, token string) error
}

type redisFlowStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisFlowStore(rdb *goredis.Client, ttl time.Duration) FlowStore {
	return &redisFlowStore{rdb: rdb, ttl: ttl}
}

func flowKey(token string) string { return flowKeyPrefix + token }

func (s *redisFlowStore) Load(ctx context.Context, token string) (*FlowState, error) {
	raw, err := s.rdb.Get(ctx, flowKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNoFlow
		}
		return nil, fmt.Errorf("load flow: %w", err)
	}
	var f FlowState
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	f.upgrade()
	return &f, nil
}

// Save refreshes the TTL on every write, so an idle flow expires ttl after
// its last answer.
func (s *redisFlowStore) Save(ctx context.Context, token string, f *FlowState) error {
	f.Version = flowVersion
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}
	return s.rdb.Set(ctx, flowKey(token), raw, s.ttl).Err()
}

func (s *redisFlowStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, flowKey(token)).Err()
}
