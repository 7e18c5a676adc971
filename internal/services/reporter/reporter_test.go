package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/ports"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
	"github.com/vshulcz/zbxreporter/internal/services/lld"
)

const testClock = 1700000000

type sendCall struct {
	records []domain.Record
	clock   int64
	stamped bool
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sendCall
	reply func(records []domain.Record) (domain.SenderResult, error)
}

func (f *fakeSender) Send(_ context.Context, records []domain.Record) (domain.SenderResult, error) {
	return f.record(sendCall{records: records})
}

func (f *fakeSender) SendAt(_ context.Context, records []domain.Record, clock int64) (domain.SenderResult, error) {
	return f.record(sendCall{records: records, clock: clock, stamped: true})
}

func (f *fakeSender) record(c sendCall) (domain.SenderResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sendCall{records: append([]domain.Record(nil), c.records...), clock: c.clock, stamped: c.stamped})
	reply := f.reply
	f.mu.Unlock()
	if reply != nil {
		return reply(c.records)
	}
	return domain.SenderResult{Response: "success", Processed: len(c.records), Total: len(c.records)}, nil
}

func (f *fakeSender) snapshot() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.calls...)
}

// split separates discovery calls from batch calls.
func (f *fakeSender) split() (discovery, batches []sendCall) {
	for _, c := range f.snapshot() {
		if len(c.records) == 1 && c.records[0].Key == lld.DefaultDiscoveryRuleKey {
			discovery = append(discovery, c)
			continue
		}
		batches = append(batches, c)
	}
	return discovery, batches
}

type fakeSource struct {
	mu   sync.Mutex
	snap domain.Snapshot
}

func (s *fakeSource) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeSource) set(snap domain.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func counters(names ...string) domain.Snapshot {
	var snap domain.Snapshot
	for i, n := range names {
		snap.Counters = append(snap.Counters, domain.Sample{Name: n, Kind: domain.Counter, Count: int64(i)})
	}
	return snap
}

func baseConfig() Config {
	return Config{
		Host:         "hostname",
		RateUnit:     time.Second,
		DurationUnit: time.Millisecond,
		Timestamps:   true,
	}
}

func newTestReporter(t *testing.T, cfg Config, src *fakeSource, snd *fakeSender, opts ...Option) *Reporter {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return time.Unix(testClock, 0) })}, opts...)
	r, err := New(cfg, src, snd, opts...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func announcedIn(t *testing.T, c sendCall) []string {
	t.Helper()
	var p struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(c.records[0].Value), &p); err != nil {
		t.Fatalf("discovery payload is not JSON: %v", err)
	}
	keys := make([]string, 0, len(p.Data))
	for _, e := range p.Data {
		keys = append(keys, e[lld.DefaultMacroName])
	}
	sort.Strings(keys)
	return keys
}

func TestNew_Validation(t *testing.T) {
	src, snd := &fakeSource{}, &fakeSender{}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no_host", func(c *Config) { c.Host = " " }, domain.ErrNoHost},
		{"zero_rate_unit", func(c *Config) { c.RateUnit = 0 }, domain.ErrInvalidUnit},
		{"negative_duration_unit", func(c *Config) { c.DurationUnit = -time.Second }, domain.ErrInvalidUnit},
		{"ok", func(*Config) {}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			_, err := New(cfg, src, snd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := New(baseConfig(), nil, snd); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestReportOnce_GaugeWithPrefixAndSuffix(t *testing.T) {
	src := &fakeSource{snap: domain.Snapshot{
		Gauges: []domain.Sample{{Name: "gauge", Kind: domain.Gauge, Reading: int64(1)}},
	}}
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Prefix, cfg.Suffix = "prefix.", "[suffix]"

	c := newTestReporter(t, cfg, src, snd).ReportOnce(context.Background())

	calls := snd.snapshot()
	if len(calls) != 1 {
		t.Fatalf("sender called %d times, want 1", len(calls))
	}
	if !calls[0].stamped || calls[0].clock != testClock {
		t.Fatalf("batch not sent with clock: %+v", calls[0])
	}
	want := []domain.Record{{Host: "hostname", Key: "prefix.gauge[suffix]", Value: "1", Clock: testClock}}
	if diff := cmp.Diff(want, calls[0].records); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}
	if c.Status != domain.StatusOK || c.Records != 1 || c.Discovery != domain.DiscoveryDisabled {
		t.Fatalf("unexpected cycle summary: %+v", c)
	}
}

func TestReportOnce_TimerBatch(t *testing.T) {
	src := &fakeSource{snap: domain.Snapshot{
		Timers: []domain.Sample{{
			Name: "db.query", Kind: domain.Timer, Count: 10,
			Rates: domain.Rates{Mean: 2, M1: 1.5, M5: 1, M15: 0.5},
			Dist: domain.Distribution{
				Min: 2e6, Max: 40e6, Mean: 12.5e6, StdDev: 4e6, Median: 10e6,
				P75: 15e6, P95: 30e6, P98: 35e6, P99: 38e6, P999: 40e6,
			},
		}},
	}}
	snd := &fakeSender{}

	newTestReporter(t, baseConfig(), src, snd).ReportOnce(context.Background())

	calls := snd.snapshot()
	if len(calls) != 1 {
		t.Fatalf("sender called %d times, want 1", len(calls))
	}
	rec := func(suffix, v string) domain.Record {
		return domain.Record{Host: "hostname", Key: "db.query" + suffix, Value: v, Clock: testClock}
	}
	want := []domain.Record{
		rec(".count", "10"), rec(".meanRate", "2"), rec(".1-minuteRate", "1.5"),
		rec(".5-minuteRate", "1"), rec(".15-minuteRate", "0.5"),
		rec(".min", "2"), rec(".max", "40"), rec(".mean", "12.5"), rec(".stddev", "4"),
		rec(".median", "10"), rec(".75th", "15"), rec(".95th", "30"), rec(".98th", "35"),
		rec(".99th", "38"), rec(".99.9th", "40"),
	}
	if diff := cmp.Diff(want, calls[0].records); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestReportOnce_KindOrderPreserved(t *testing.T) {
	src := &fakeSource{snap: domain.Snapshot{
		Gauges:     []domain.Sample{{Name: "g", Kind: domain.Gauge, Reading: 0.5}},
		Counters:   []domain.Sample{{Name: "c", Kind: domain.Counter, Count: 3}},
		Histograms: []domain.Sample{{Name: "h", Kind: domain.Histogram}},
		Meters:     []domain.Sample{{Name: "m", Kind: domain.Meter}},
		Timers:     []domain.Sample{{Name: "t", Kind: domain.Timer}},
	}}
	snd := &fakeSender{}

	c := newTestReporter(t, baseConfig(), src, snd).ReportOnce(context.Background())

	recs := snd.snapshot()[0].records
	if len(recs) != 1+1+10+5+15 {
		t.Fatalf("records=%d want 32", len(recs))
	}
	if recs[0].Key != "g" || recs[1].Key != "c" || recs[2].Key != "h.min" || recs[12].Key != "m.count" || recs[17].Key != "t.count" {
		t.Fatalf("unexpected order: %v %v %v %v %v", recs[0].Key, recs[1].Key, recs[2].Key, recs[12].Key, recs[17].Key)
	}
	if c.Keys != 32 {
		t.Fatalf("keys=%d want 32", c.Keys)
	}
}

func TestReportOnce_WithoutTimestamps(t *testing.T) {
	src := &fakeSource{snap: counters("a")}
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Timestamps = false
	cfg.Discovery = lld.New("", "")

	c := newTestReporter(t, cfg, src, snd).ReportOnce(context.Background())

	for _, call := range snd.snapshot() {
		if call.stamped {
			t.Fatalf("SendAt used with timestamps disabled: %+v", call)
		}
		for _, r := range call.records {
			if r.Clock != 0 {
				t.Fatalf("record carries clock %d", r.Clock)
			}
		}
	}
	if c.Clock != testClock {
		t.Fatalf("cycle clock=%d want %d", c.Clock, testClock)
	}
}

func TestReportOnce_EmptyRegistrySendsNothing(t *testing.T) {
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Discovery = lld.New("", "")

	c := newTestReporter(t, cfg, &fakeSource{}, snd).ReportOnce(context.Background())

	if n := len(snd.snapshot()); n != 0 {
		t.Fatalf("sender called %d times for empty registry", n)
	}
	if c.Status != domain.StatusEmpty || c.Discovery != domain.DiscoverySkipped {
		t.Fatalf("unexpected cycle summary: %+v", c)
	}
}

func TestReportOnce_Idempotent(t *testing.T) {
	src := &fakeSource{snap: counters("a", "b")}
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Discovery = lld.New("", "")
	r := newTestReporter(t, cfg, src, snd)

	first := r.ReportOnce(context.Background())
	second := r.ReportOnce(context.Background())

	disc, batches := snd.split()
	if len(disc) != 1 {
		t.Fatalf("discovery sent %d times, want 1", len(disc))
	}
	if len(batches) != 2 {
		t.Fatalf("batches=%d want 2", len(batches))
	}
	if diff := cmp.Diff(batches[0].records, batches[1].records); diff != "" {
		t.Fatalf("second batch differs (-first +second):\n%s", diff)
	}
	if first.Discovery != domain.DiscoverySent || second.Discovery != domain.DiscoverySkipped {
		t.Fatalf("discovery outcomes: %s, %s", first.Discovery, second.Discovery)
	}
}

func TestReportOnce_DiscoveryReplacesFullKeySet(t *testing.T) {
	src := &fakeSource{}
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Discovery = lld.New("", "")
	r := newTestReporter(t, cfg, src, snd)
	ctx := context.Background()

	src.set(counters("A", "B"))
	r.ReportOnce(ctx)
	src.set(counters("A", "B", "C"))
	r.ReportOnce(ctx)
	src.set(counters("A", "B"))
	third := r.ReportOnce(ctx)

	disc, batches := snd.split()
	if len(batches) != 3 {
		t.Fatalf("batches=%d want 3", len(batches))
	}
	if len(disc) != 2 {
		t.Fatalf("discovery sent %d times, want 2", len(disc))
	}
	if diff := cmp.Diff([]string{"A", "B"}, announcedIn(t, disc[0])); diff != "" {
		t.Fatalf("first payload (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, announcedIn(t, disc[1])); diff != "" {
		t.Fatalf("second payload (-want +got):\n%s", diff)
	}
	if third.Discovery != domain.DiscoverySkipped {
		t.Fatalf("third cycle discovery=%s want skipped", third.Discovery)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, r.AnnouncedKeys()); diff != "" {
		t.Fatalf("announced (-want +got):\n%s", diff)
	}
}

func TestReportOnce_DiscoveryRecordUsesRuleKeyAndClock(t *testing.T) {
	src := &fakeSource{snap: counters("a")}
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Discovery = lld.New("", "")

	newTestReporter(t, cfg, src, snd).ReportOnce(context.Background())

	calls := snd.snapshot()
	if len(calls) != 2 {
		t.Fatalf("calls=%d want 2", len(calls))
	}
	d := calls[0]
	if d.records[0].Key != lld.DefaultDiscoveryRuleKey || d.records[0].Host != "hostname" {
		t.Fatalf("discovery must happen before the batch, got %+v", d.records[0])
	}
	if !d.stamped || d.clock != testClock || d.records[0].Clock != testClock {
		t.Fatalf("discovery not stamped with cycle clock: %+v", d)
	}
}

func TestReportOnce_DiscoveryFailureIsIsolated(t *testing.T) {
	tests := []struct {
		name  string
		reply func([]domain.Record) (domain.SenderResult, error)
	}{
		{"transport_error", func([]domain.Record) (domain.SenderResult, error) {
			return domain.SenderResult{}, errors.New("connection refused")
		}},
		{"rejected", func(recs []domain.Record) (domain.SenderResult, error) {
			return domain.SenderResult{Response: "success", Failed: len(recs), Total: len(recs)}, nil
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{snap: counters("a", "b")}
			snd := &fakeSender{}
			failing := true
			snd.reply = func(recs []domain.Record) (domain.SenderResult, error) {
				if failing && recs[0].Key == lld.DefaultDiscoveryRuleKey {
					return tc.reply(recs)
				}
				return domain.SenderResult{Response: "success", Processed: len(recs), Total: len(recs)}, nil
			}
			cfg := baseConfig()
			cfg.Discovery = lld.New("", "")
			r := newTestReporter(t, cfg, src, snd)

			c := r.ReportOnce(context.Background())

			if c.Discovery != domain.DiscoveryFailed {
				t.Fatalf("discovery=%s want failed", c.Discovery)
			}
			if c.Status != domain.StatusOK {
				t.Fatalf("batch status=%s want ok", c.Status)
			}
			if _, batches := snd.split(); len(batches) != 1 {
				t.Fatalf("batch not sent after discovery failure")
			}
			if got := r.AnnouncedKeys(); len(got) != 0 {
				t.Fatalf("announced keys changed after failure: %v", got)
			}

			failing = false
			if c := r.ReportOnce(context.Background()); c.Discovery != domain.DiscoverySent {
				t.Fatalf("discovery not retried on next cycle: %s", c.Discovery)
			}
		})
	}
}

func TestReportOnce_BatchFailuresAreAbsorbed(t *testing.T) {
	tests := []struct {
		name       string
		reply      func([]domain.Record) (domain.SenderResult, error)
		wantStatus domain.CycleStatus
		wantErr    bool
	}{
		{
			"transport_error",
			func([]domain.Record) (domain.SenderResult, error) {
				return domain.SenderResult{}, errors.New("i/o timeout")
			},
			domain.StatusError, true,
		},
		{
			"partial_rejection",
			func(recs []domain.Record) (domain.SenderResult, error) {
				return domain.SenderResult{Response: "success", Processed: 1, Failed: len(recs) - 1, Total: len(recs)}, nil
			},
			domain.StatusRejected, true,
		},
		{
			"failed_response",
			func([]domain.Record) (domain.SenderResult, error) {
				return domain.SenderResult{Response: "failed"}, nil
			},
			domain.StatusRejected, true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snd := &fakeSender{reply: tc.reply}
			r := newTestReporter(t, baseConfig(), &fakeSource{snap: counters("a", "b")}, snd)

			c := r.ReportOnce(context.Background())

			if c.Status != tc.wantStatus {
				t.Fatalf("status=%s want %s", c.Status, tc.wantStatus)
			}
			if (c.Error != "") != tc.wantErr {
				t.Fatalf("error=%q", c.Error)
			}
		})
	}
}

func TestReportOnce_ConcurrentCyclesAnnounceOnce(t *testing.T) {
	src := &fakeSource{snap: counters("a", "b", "c")}
	snd := &fakeSender{}
	cfg := baseConfig()
	cfg.Discovery = lld.New("", "")
	r := newTestReporter(t, cfg, src, snd)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ReportOnce(context.Background())
		}()
	}
	wg.Wait()

	disc, batches := snd.split()
	if len(disc) != 1 {
		t.Fatalf("discovery sent %d times, want 1", len(disc))
	}
	if len(batches) != 16 {
		t.Fatalf("batches=%d want 16", len(batches))
	}
}

func TestReportOnce_PublishesCycle(t *testing.T) {
	var mu sync.Mutex
	var got []domain.Cycle
	sub := journal.NewSubject(journal.ObserverFunc(func(_ context.Context, c domain.Cycle) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
		return nil
	}))
	r := newTestReporter(t, baseConfig(), &fakeSource{snap: counters("a")}, &fakeSender{}, WithJournal(sub))

	r.ReportOnce(context.Background())
	r.Close()
	r.ReportOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	want := []domain.Cycle{{
		Clock: testClock, Host: "hostname", Records: 1, Keys: 1,
		Discovery: domain.DiscoveryDisabled, Status: domain.StatusOK, Processed: 1,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("journal (-want +got):\n%s", diff)
	}
}

func TestReportOnce_SlowJournalDoesNotDelayCycle(t *testing.T) {
	var delivered sync.WaitGroup
	delivered.Add(2)
	sub := journal.NewSubject(journal.ObserverFunc(func(context.Context, domain.Cycle) error {
		defer delivered.Done()
		time.Sleep(300 * time.Millisecond)
		return nil
	}))
	r := newTestReporter(t, baseConfig(), &fakeSource{snap: counters("a")}, &fakeSender{}, WithJournal(sub))

	start := time.Now()
	for range 2 {
		if c := r.ReportOnce(context.Background()); c.Status != domain.StatusOK {
			t.Fatalf("status=%s want ok", c.Status)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("cycles waited for the journal: %v", elapsed)
	}

	r.Close()
	delivered.Wait()
}

func TestReportOnce_FullJournalQueueDrops(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	n := 0
	sub := journal.NewSubject(journal.ObserverFunc(func(context.Context, domain.Cycle) error {
		<-release
		mu.Lock()
		n++
		mu.Unlock()
		return nil
	}))
	r := newTestReporter(t, baseConfig(), &fakeSource{}, &fakeSender{}, WithJournal(sub))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range journalQueueSize + 10 {
			r.ReportOnce(context.Background())
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReportOnce blocked on a full journal queue")
	}
	close(release)
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	if n < journalQueueSize || n > journalQueueSize+1 {
		t.Fatalf("published=%d want %d or %d", n, journalQueueSize, journalQueueSize+1)
	}
}

type panicGenerator struct{}

func (panicGenerator) DiscoveryRuleKey() string { return lld.DefaultDiscoveryRuleKey }

func (panicGenerator) GenerateDiscoveryPayload(string, []string) (string, error) {
	panic("template exploded")
}

func TestReportOnce_RecoversPanics(t *testing.T) {
	discovery := baseConfig()
	discovery.Discovery = panicGenerator{}

	tests := []struct {
		name string
		cfg  Config
		src  ports.MetricsSource
		want string
	}{
		{"metrics source", baseConfig(), panicSource{}, "panic: registry exploded"},
		{"discovery generator", discovery, &fakeSource{snap: counters("a")}, "panic: template exploded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var mu sync.Mutex
			var got []domain.Cycle
			sub := journal.NewSubject(journal.ObserverFunc(func(_ context.Context, c domain.Cycle) error {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, c)
				return nil
			}))
			r, err := New(tc.cfg, tc.src, &fakeSender{},
				WithClock(func() time.Time { return time.Unix(testClock, 0) }), WithJournal(sub))
			if err != nil {
				t.Fatalf("New error: %v", err)
			}

			for range 2 {
				c := r.ReportOnce(context.Background())
				if c.Status != domain.StatusError || c.Error != tc.want {
					t.Fatalf("cycle=%+v want error %q", c, tc.want)
				}
			}
			r.Close()

			mu.Lock()
			defer mu.Unlock()
			if len(got) != 2 || got[0].Status != domain.StatusError {
				t.Fatalf("journal=%+v want 2 error cycles", got)
			}
		})
	}
}

type panicSource struct{}

func (panicSource) Snapshot() domain.Snapshot { panic("registry exploded") }

func TestRun_SurvivesPanicsAndStopsOnCancel(t *testing.T) {
	r, err := New(baseConfig(), panicSource{}, &fakeSender{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 2*time.Millisecond) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestRun_ReportsOnTicker(t *testing.T) {
	snd := &fakeSender{}
	r, err := New(baseConfig(), &fakeSource{snap: counters("a")}, snd)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 2*time.Millisecond) }()

	deadline := time.Now().Add(time.Second)
	for len(snd.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if n := len(snd.snapshot()); n < 2 {
		t.Fatalf("expected at least 2 cycles, got %d", n)
	}
}

func TestRun_InvalidInterval(t *testing.T) {
	r, err := New(baseConfig(), &fakeSource{}, &fakeSender{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := r.Run(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestAnnouncedKeys_DisabledDiscovery(t *testing.T) {
	r := newTestReporter(t, baseConfig(), &fakeSource{}, &fakeSender{})
	if r.AnnouncedKeys() != nil {
		t.Fatal("announced keys must be nil without a discovery generator")
	}
}
