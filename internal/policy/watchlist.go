package policy

import (
	"context"
	"sync"
)

// MemoryWatchlist is an in-process Watchlist for tests and single-instance
// fallback deployments.
type MemoryWatchlist struct {
	mu      sync.Mutex
	members map[string]bool
	flags   map[string]Status
}

func NewMemoryWatchlist() *MemoryWatchlist {
	return &MemoryWatchlist{
		members: make(map[string]bool),
		flags:   make(map[string]Status),
	}
}

func (m *MemoryWatchlist) Watch(_ context.Context, policyNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[policyNumber] = true
	return nil
}

func (m *MemoryWatchlist) Watched(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.members))
	for number := range m.members {
		out = append(out, number)
	}
	return out, nil
}

func (m *MemoryWatchlist) Flag(_ context.Context, policyNumber string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[policyNumber] = status
	return nil
}

// Flagged returns the last flag recorded for a policy, for tests.
func (m *MemoryWatchlist) Flagged(policyNumber string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.flags[policyNumber]
	return s, ok
}
