package ports

import (
	"context"
	"time"

	"github.com/vshulcz/zbxreporter/internal/domain"
)

// MetricsCollector samples something periodically into the metrics registry.
type MetricsCollector interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
}

// MetricsSource yields the filtered, name-ordered view of the registry.
type MetricsSource interface {
	Snapshot() domain.Snapshot
}

// Sender ships a batch of records to the collector. Transport failures are
// reported as errors; a rejected batch is reported through the result.
type Sender interface {
	Send(ctx context.Context, records []domain.Record) (domain.SenderResult, error)
	SendAt(ctx context.Context, records []domain.Record, clock int64) (domain.SenderResult, error)
}

// DiscoveryGenerator renders low-level discovery payloads.
type DiscoveryGenerator interface {
	// DiscoveryRuleKey is the collector-side discovery rule item key.
	DiscoveryRuleKey() string
	GenerateDiscoveryPayload(host string, keys []string) (string, error)
}
