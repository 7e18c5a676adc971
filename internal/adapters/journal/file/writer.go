// Package file appends report cycle summaries to a local NDJSON file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
)

// Writer appends cycle summaries to a newline-delimited JSON file.
type Writer struct {
	path string
	mu   sync.Mutex
}

var _ journal.Observer = (*Writer)(nil)

// New creates a Writer for path. An empty path turns Notify into a no-op.
func New(path string) *Writer {
	return &Writer{path: path}
}

// Notify appends one JSON line for the cycle.
func (w *Writer) Notify(_ context.Context, c domain.Cycle) (retErr error) {
	if w == nil || w.path == "" {
		return nil
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cycle: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close journal file: %w", cerr)
		}
	}()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write journal file: %w", err)
	}
	return nil
}
