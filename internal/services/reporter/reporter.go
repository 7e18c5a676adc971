// Package reporter turns registry snapshots into collector batches and ships them.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/ports"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
)

// Config is the immutable reporter configuration. Defaults are applied by the
// config loader before New is called.
type Config struct {
	Host         string
	Prefix       string
	Suffix       string
	RateUnit     time.Duration
	DurationUnit time.Duration
	// Timestamps stamps every record with the cycle clock. Disable for
	// collectors that do not accept per-item clocks.
	Timestamps bool
	// Discovery enables low-level discovery when non-nil.
	Discovery ports.DiscoveryGenerator
}

// Reporter runs report cycles against a metrics source and a sender.
type Reporter struct {
	cfg     Config
	src     ports.MetricsSource
	sender  ports.Sender
	dec     Decomposer
	tracker *DiscoveryTracker

	log     *zap.Logger
	journal journal.Publisher
	now     func() time.Time

	mu      sync.RWMutex // guards closed against sends on queue
	closed  bool
	queue   chan queuedCycle
	drained chan struct{}
}

// journalQueueSize bounds the cycle summaries waiting for slow publishers.
const journalQueueSize = 64

type queuedCycle struct {
	ctx   context.Context
	cycle domain.Cycle
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.log = l
		}
	}
}

// WithJournal publishes a summary of every cycle. Delivery runs on its own
// goroutine; call Close to flush it.
func WithJournal(p journal.Publisher) Option {
	return func(r *Reporter) { r.journal = p }
}

// WithClock overrides the wall clock used to stamp batches.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// New validates cfg and wires a Reporter.
func New(cfg Config, src ports.MetricsSource, sender ports.Sender, opts ...Option) (*Reporter, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, domain.ErrNoHost
	}
	if cfg.RateUnit <= 0 {
		return nil, fmt.Errorf("rate unit %v: %w", cfg.RateUnit, domain.ErrInvalidUnit)
	}
	if cfg.DurationUnit <= 0 {
		return nil, fmt.Errorf("duration unit %v: %w", cfg.DurationUnit, domain.ErrInvalidUnit)
	}
	if src == nil || sender == nil {
		return nil, errors.New("reporter: metrics source and sender are required")
	}

	r := &Reporter{
		cfg:    cfg,
		src:    src,
		sender: sender,
		dec:    NewDecomposer(cfg.RateUnit, cfg.DurationUnit),
		log:    zap.NewNop(),
		now:    time.Now,
	}
	if cfg.Discovery != nil {
		r.tracker = NewDiscoveryTracker(cfg.Discovery)
	}
	for _, o := range opts {
		o(r)
	}
	if r.journal != nil {
		r.queue = make(chan queuedCycle, journalQueueSize)
		r.drained = make(chan struct{})
		go r.dispatch()
	}
	return r, nil
}

// Close publishes the queued cycle summaries and stops journal delivery.
// Cycles reported afterwards are not journaled.
func (r *Reporter) Close() {
	if r.queue == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.drained
}

// Run reports every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("report interval must be > 0, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.ReportOnce(ctx)
		}
	}
}

// AnnouncedKeys returns the keys of the last accepted discovery payload.
func (r *Reporter) AnnouncedKeys() []string {
	if r.tracker == nil {
		return nil
	}
	return r.tracker.Announced()
}

// ReportOnce runs a single cycle: snapshot, batch, discovery, send. Failures,
// panics included, are logged and summarized in the returned cycle; they never
// abort the caller.
func (r *Reporter) ReportOnce(ctx context.Context) (cycle domain.Cycle) {
	clock := r.now().Unix()
	var stamp int64
	if r.cfg.Timestamps {
		stamp = clock
	}

	cycle = domain.Cycle{Clock: clock, Host: r.cfg.Host, Discovery: domain.DiscoveryDisabled}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("report cycle panicked", zap.Any("panic", p), zap.Stack("stack"))
			cycle.Status = domain.StatusError
			cycle.Error = fmt.Sprintf("panic: %v", p)
		}
		r.publish(ctx, cycle)
	}()

	b := r.build(r.src.Snapshot(), stamp)
	cycle.Records, cycle.Keys = len(b.records), len(b.keys)

	if r.tracker != nil {
		cycle.Discovery = r.discover(ctx, b.keys, stamp)
	}

	if len(b.records) == 0 {
		r.log.Debug("nothing to report")
		cycle.Status = domain.StatusEmpty
		return cycle
	}

	res, err := r.send(ctx, b.records, stamp)
	cycle.Processed, cycle.Failed = res.Processed, res.Failed
	switch {
	case err != nil:
		r.log.Error("report metrics to collector failed",
			zap.Int("records", len(b.records)), zap.Error(err))
		cycle.Status = domain.StatusError
		cycle.Error = err.Error()
	case !res.Success():
		r.log.Warn("collector did not accept the whole batch",
			zap.Int("records", len(b.records)), zap.Stringer("result", res))
		cycle.Status = domain.StatusRejected
		cycle.Error = fmt.Errorf("%w: %s", domain.ErrRejected, res).Error()
	default:
		r.log.Debug("reported metrics to collector",
			zap.Int("records", len(b.records)), zap.Stringer("result", res))
		cycle.Status = domain.StatusOK
	}
	return cycle
}

func (r *Reporter) build(snap domain.Snapshot, stamp int64) *batch {
	b := newBatch(snap.Len())
	for _, group := range [...][]domain.Sample{
		snap.Gauges, snap.Counters, snap.Histograms, snap.Meters, snap.Timers,
	} {
		for _, s := range group {
			for _, rd := range r.dec.Decompose(s) {
				key := ComposeKey(r.cfg.Prefix, s.Name, rd.Suffix, r.cfg.Suffix)
				b.add(BuildRecord(r.cfg.Host, key, rd.Value, stamp))
			}
		}
	}
	return b
}

func (r *Reporter) discover(ctx context.Context, keys []string, stamp int64) domain.DiscoveryOutcome {
	outcome, err := r.tracker.Sync(ctx, r.cfg.Host, stamp, keys,
		func(ctx context.Context, rec domain.Record) (domain.SenderResult, error) {
			return r.send(ctx, []domain.Record{rec}, stamp)
		})
	switch {
	case errors.Is(err, domain.ErrRejected):
		r.log.Warn("collector rejected discovery data", zap.Int("keys", len(keys)), zap.Error(err))
	case err != nil:
		r.log.Error("send discovery data to collector failed", zap.Int("keys", len(keys)), zap.Error(err))
	case outcome == domain.DiscoverySent:
		r.log.Info("announced metric keys", zap.Int("keys", len(keys)))
	}
	return outcome
}

func (r *Reporter) send(ctx context.Context, records []domain.Record, stamp int64) (domain.SenderResult, error) {
	if stamp != 0 {
		return r.sender.SendAt(ctx, records, stamp)
	}
	return r.sender.Send(ctx, records)
}

// publish hands c to the dispatcher without waiting. A full queue drops c.
func (r *Reporter) publish(ctx context.Context, c domain.Cycle) {
	if r.queue == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- queuedCycle{ctx: context.WithoutCancel(ctx), cycle: c}:
	default:
		r.log.Warn("journal queue full, dropping cycle summary",
			zap.Int64("clock", c.Clock), zap.String("status", string(c.Status)))
	}
}

func (r *Reporter) dispatch() {
	defer close(r.drained)
	for q := range r.queue {
		r.journal.Publish(q.ctx, q.cycle)
	}
}
