package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insurego/claims-gateway/internal/policy"
)

const (
	verifyKeyPrefix = "session:verify:"
	watchSetKey     = "policy:watch"
	flagKeyPrefix   = "policy:status:"
)

// flagTTL keeps stale expiry flags from accumulating for policies no user
// looks at anymore.
const flagTTL = 7 * 24 * time.Hour

// SessionStore holds session-scoped verification state and the expiry
// monitor's policy watchlist. It implements claim.VerificationStore and
// policy.Watchlist.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, verificationTTL time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    verificationTTL,
	}
}

func verifyKey(userID, policyNumber string) string {
	return fmt.Sprintf("%s%s:%s", verifyKeyPrefix, userID, policyNumber)
}

func (s *SessionStore) Put(ctx context.Context, userID, policyNumber string, p policy.Policy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode verified policy: %w", err)
	}
	if err := s.client.Set(ctx, verifyKey(userID, policyNumber), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, userID, policyNumber string) (*policy.Policy, error) {
	data, err := s.client.Get(ctx, verifyKey(userID, policyNumber)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load verification: %w", err)
	}

	var p policy.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode verified policy: %w", err)
	}
	return &p, nil
}

func (s *SessionStore) Watch(ctx context.Context, policyNumber string) error {
	if err := s.client.SAdd(ctx, watchSetKey, policyNumber).Err(); err != nil {
		return fmt.Errorf("watch policy: %w", err)
	}
	return nil
}

func (s *SessionStore) Watched(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, watchSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load watched policies: %w", err)
	}
	return members, nil
}

func (s *SessionStore) Flag(ctx context.Context, policyNumber string, status policy.Status) error {
	if err := s.client.Set(ctx, flagKeyPrefix+policyNumber, string(status), flagTTL).Err(); err != nil {
		return fmt.Errorf("flag policy status: %w", err)
	}
	return nil
}
