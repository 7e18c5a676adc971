package ports

import (
	"context"

	"github.com/vshulcz/zbxreporter/internal/domain"
)

// JournalReader exposes recently persisted report cycles.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]domain.Cycle, error)
	Ping(ctx context.Context) error
}

// DiscoveryState reports the keys of the last accepted discovery payload.
type DiscoveryState interface {
	AnnouncedKeys() []string
}
