// Package memory keeps the most recent report cycles in a bounded ring.
package memory

import (
	"context"
	"sync"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/ports"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
)

// DefaultCapacity is used when New receives a non-positive capacity.
const DefaultCapacity = 64

// Journal is an in-memory cycle journal with RW locking.
type Journal struct {
	mu    sync.RWMutex
	ring  []domain.Cycle
	next  int
	count int
}

var (
	_ ports.JournalReader = (*Journal)(nil)
	_ journal.Observer    = (*Journal)(nil)
)

// New returns an empty journal holding at most capacity cycles.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{ring: make([]domain.Cycle, capacity)}
}

// Notify records c, evicting the oldest cycle when full.
func (j *Journal) Notify(_ context.Context, c domain.Cycle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ring[j.next] = c
	j.next = (j.next + 1) % len(j.ring)
	if j.count < len(j.ring) {
		j.count++
	}
	return nil
}

// Recent returns up to limit cycles, newest first.
func (j *Journal) Recent(_ context.Context, limit int) ([]domain.Cycle, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if limit > j.count {
		limit = j.count
	}
	if limit <= 0 {
		return nil, nil
	}
	out := make([]domain.Cycle, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.ring)) % len(j.ring)
		out = append(out, j.ring[idx])
	}
	return out, nil
}

// Ping always succeeds.
func (j *Journal) Ping(context.Context) error { return nil }
