package claim

import (
	"context"
	"sync"
	"time"

	"github.com/insurego/claims-gateway/internal/policy"
)

// VerificationStore remembers successful policy verifications per session so
// that filing can be gated on them. Entries are TTL-bounded and never
// persisted beyond the session scope.
type VerificationStore interface {
	Put(ctx context.Context, userID, policyNumber string, p policy.Policy) error
	Get(ctx context.Context, userID, policyNumber string) (*policy.Policy, error)
}

type memoryEntry struct {
	policy    policy.Policy
	expiresAt time.Time
}

// MemoryStore is an in-process VerificationStore. It backs tests and serves
// as a single-instance fallback when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, userID, policyNumber string, p policy.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID+"\x00"+policyNumber] = memoryEntry{
		policy:    p,
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID, policyNumber string) (*policy.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "\x00" + policyNumber
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}

	p := entry.policy
	return &p, nil
}
