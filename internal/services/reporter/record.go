package reporter

import "github.com/vshulcz/zbxreporter/internal/domain"

// ComposeKey concatenates the key parts in fixed order without separators.
func ComposeKey(prefix, base, suffix, configuredSuffix string) string {
	return prefix + base + suffix + configuredSuffix
}

// BuildRecord returns a record stamped with clock; a zero clock leaves the
// timestamp to the collector.
func BuildRecord(host, key, value string, clock int64) domain.Record {
	return domain.Record{Host: host, Key: key, Value: value, Clock: clock}
}

type batch struct {
	records []domain.Record
	keys    []string
	seen    map[string]struct{}
}

func newBatch(capacity int) *batch {
	return &batch{
		records: make([]domain.Record, 0, capacity),
		seen:    make(map[string]struct{}, capacity),
	}
}

func (b *batch) add(rec domain.Record) {
	b.records = append(b.records, rec)
	if _, ok := b.seen[rec.Key]; ok {
		return
	}
	b.seen[rec.Key] = struct{}{}
	b.keys = append(b.keys, rec.Key)
}
