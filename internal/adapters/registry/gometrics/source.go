// Package gometrics exposes a go-metrics registry as a snapshot source.
package gometrics

import (
	"regexp"
	"sort"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/ports"
)

// Percentiles requested from histograms and timers, in the order of
// domain.Distribution's percentile fields.
var percentiles = []float64{0.5, 0.75, 0.95, 0.98, 0.99, 0.999}

// Source snapshots a registry, keeping only metrics whose names match filter.
type Source struct {
	reg    metrics.Registry
	filter *regexp.Regexp
}

var _ ports.MetricsSource = (*Source)(nil)

// New wraps reg; a nil registry means metrics.DefaultRegistry and a nil filter
// keeps everything.
func New(reg metrics.Registry, filter *regexp.Regexp) *Source {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	return &Source{reg: reg, filter: filter}
}

// Registry returns the wrapped registry.
func (s *Source) Registry() metrics.Registry { return s.reg }

// Snapshot groups the registry by kind with each group sorted by name.
// Metrics of other types, such as healthchecks, are skipped.
func (s *Source) Snapshot() domain.Snapshot {
	all := map[string]any{}
	s.reg.Each(func(name string, m any) {
		if s.filter != nil && !s.filter.MatchString(name) {
			return
		}
		all[name] = m
	})

	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)

	var snap domain.Snapshot
	for _, name := range names {
		switch m := all[name].(type) {
		case metrics.Gauge:
			snap.Gauges = append(snap.Gauges, domain.Sample{Name: name, Kind: domain.Gauge, Reading: m.Snapshot().Value()})
		case metrics.GaugeFloat64:
			snap.Gauges = append(snap.Gauges, domain.Sample{Name: name, Kind: domain.Gauge, Reading: m.Snapshot().Value()})
		case metrics.Counter:
			snap.Counters = append(snap.Counters, domain.Sample{Name: name, Kind: domain.Counter, Count: m.Snapshot().Count()})
		case metrics.Histogram:
			h := m.Snapshot()
			snap.Histograms = append(snap.Histograms, domain.Sample{
				Name: name, Kind: domain.Histogram, Count: h.Count(),
				Dist: distribution(h.Min(), h.Max(), h.Mean(), h.StdDev(), h.Percentiles(percentiles)),
			})
		case metrics.Meter:
			mt := m.Snapshot()
			snap.Meters = append(snap.Meters, domain.Sample{
				Name: name, Kind: domain.Meter, Count: mt.Count(),
				Rates: domain.Rates{Mean: mt.RateMean(), M1: mt.Rate1(), M5: mt.Rate5(), M15: mt.Rate15()},
			})
		case metrics.Timer:
			t := m.Snapshot()
			snap.Timers = append(snap.Timers, domain.Sample{
				Name: name, Kind: domain.Timer, Count: t.Count(),
				Rates: domain.Rates{Mean: t.RateMean(), M1: t.Rate1(), M5: t.Rate5(), M15: t.Rate15()},
				Dist:  distribution(t.Min(), t.Max(), t.Mean(), t.StdDev(), t.Percentiles(percentiles)),
			})
		}
	}
	return snap
}

func distribution(lo, hi int64, mean, stddev float64, ps []float64) domain.Distribution {
	return domain.Distribution{
		Min:    float64(lo),
		Max:    float64(hi),
		Mean:   mean,
		StdDev: stddev,
		Median: ps[0],
		P75:    ps[1],
		P95:    ps[2],
		P98:    ps[3],
		P99:    ps[4],
		P999:   ps[5],
	}
}
