package reporter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vshulcz/zbxreporter/internal/domain"
)

// Reading is one (suffix, value) pair produced from a sample.
type Reading struct {
	Suffix string
	Value  string
}

// Suffixes emitted for distribution statistics, in emission order.
var distSuffixes = [...]string{
	".min", ".max", ".mean", ".stddev", ".median",
	".75th", ".95th", ".98th", ".99th", ".99.9th",
}

// Suffixes emitted for meter-style throughput, in emission order.
var rateSuffixes = [...]string{
	".count", ".meanRate", ".1-minuteRate", ".5-minuteRate", ".15-minuteRate",
}

// Decomposer turns samples into readings, converting rates and durations to the
// configured units.
type Decomposer struct {
	rateFactor   float64
	durationUnit float64
}

// NewDecomposer returns a Decomposer reporting rates per rateUnit and durations in
// durationUnit. Both units must be positive.
func NewDecomposer(rateUnit, durationUnit time.Duration) Decomposer {
	return Decomposer{
		rateFactor:   rateUnit.Seconds(),
		durationUnit: float64(durationUnit.Nanoseconds()),
	}
}

// Decompose returns the readings for s. The suffix set depends only on s.Kind.
func (d Decomposer) Decompose(s domain.Sample) []Reading {
	switch s.Kind {
	case domain.Gauge:
		return []Reading{{Value: formatReading(s.Reading)}}
	case domain.Counter:
		return []Reading{{Value: strconv.FormatInt(s.Count, 10)}}
	case domain.Histogram:
		return appendDist(make([]Reading, 0, len(distSuffixes)), s.Dist, identity)
	case domain.Meter:
		return d.appendRates(make([]Reading, 0, len(rateSuffixes)), s)
	case domain.Timer:
		out := d.appendRates(make([]Reading, 0, len(rateSuffixes)+len(distSuffixes)), s)
		return appendDist(out, s.Dist, d.convertDuration)
	default:
		return nil
	}
}

func (d Decomposer) appendRates(out []Reading, s domain.Sample) []Reading {
	return append(out,
		Reading{rateSuffixes[0], strconv.FormatInt(s.Count, 10)},
		Reading{rateSuffixes[1], formatFloat(d.convertRate(s.Rates.Mean))},
		Reading{rateSuffixes[2], formatFloat(d.convertRate(s.Rates.M1))},
		Reading{rateSuffixes[3], formatFloat(d.convertRate(s.Rates.M5))},
		Reading{rateSuffixes[4], formatFloat(d.convertRate(s.Rates.M15))},
	)
}

func appendDist(out []Reading, dist domain.Distribution, conv func(float64) float64) []Reading {
	values := [len(distSuffixes)]float64{
		dist.Min, dist.Max, dist.Mean, dist.StdDev, dist.Median,
		dist.P75, dist.P95, dist.P98, dist.P99, dist.P999,
	}
	for i, v := range values {
		out = append(out, Reading{Suffix: distSuffixes[i], Value: formatFloat(conv(v))})
	}
	return out
}

func (d Decomposer) convertRate(perSecond float64) float64 {
	return perSecond * d.rateFactor
}

func (d Decomposer) convertDuration(nanos float64) float64 {
	return nanos / d.durationUnit
}

func identity(v float64) float64 { return v }

// formatFloat renders v in the shortest decimal form without an exponent.
// NaN and infinities pass through as "NaN", "+Inf" and "-Inf"; a numeric
// item rejects them and the collector counts the record as failed.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatReading(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
