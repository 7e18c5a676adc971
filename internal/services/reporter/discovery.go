package reporter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/ports"
)

type sendFunc func(ctx context.Context, rec domain.Record) (domain.SenderResult, error)

// DiscoveryTracker remembers the key set of the last accepted discovery payload
// and announces the full current key set whenever a key outside it shows up.
type DiscoveryTracker struct {
	gen ports.DiscoveryGenerator

	mu        sync.Mutex
	announced map[string]struct{}
}

// NewDiscoveryTracker returns a tracker with an empty announced set.
func NewDiscoveryTracker(gen ports.DiscoveryGenerator) *DiscoveryTracker {
	return &DiscoveryTracker{gen: gen, announced: map[string]struct{}{}}
}

// Sync announces keys through send unless all of them were already announced.
// The announced set is replaced only when the collector accepts the payload.
// The whole compare-send-replace sequence runs under the tracker lock.
func (t *DiscoveryTracker) Sync(ctx context.Context, host string, clock int64, keys []string, send sendFunc) (domain.DiscoveryOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.covers(keys) {
		return domain.DiscoverySkipped, nil
	}

	payload, err := t.gen.GenerateDiscoveryPayload(host, keys)
	if err != nil {
		return domain.DiscoveryFailed, fmt.Errorf("generate discovery payload: %w", err)
	}

	res, err := send(ctx, BuildRecord(host, t.gen.DiscoveryRuleKey(), payload, clock))
	if err != nil {
		return domain.DiscoveryFailed, fmt.Errorf("send discovery payload: %w", err)
	}
	if !res.Success() {
		return domain.DiscoveryFailed, fmt.Errorf("%w: %s", domain.ErrRejected, res)
	}

	next := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		next[k] = struct{}{}
	}
	t.announced = next
	return domain.DiscoverySent, nil
}

// Announced returns the last accepted key set in sorted order.
func (t *DiscoveryTracker) Announced() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.announced))
	for k := range t.announced {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *DiscoveryTracker) covers(keys []string) bool {
	for _, k := range keys {
		if _, ok := t.announced[k]; !ok {
			return false
		}
	}
	return true
}
