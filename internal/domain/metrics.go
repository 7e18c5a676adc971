package domain

// Kind enumerates the metric kinds a registry can hold.
type Kind uint8

const (
	// Gauge is an instantaneous reading (numeric or textual).
	Gauge Kind = iota + 1
	// Counter is a cumulative integer count.
	Counter
	// Histogram is a distribution of unit-less values.
	Histogram
	// Meter is an event count plus moving-average throughput.
	Meter
	// Timer is a meter whose events carry a duration distribution (nanoseconds).
	Timer
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Gauge:
		return "gauge"
	case Counter:
		return "counter"
	case Histogram:
		return "histogram"
	case Meter:
		return "meter"
	case Timer:
		return "timer"
	default:
		return "unknown"
	}
}

// Distribution is a point-in-time view of a histogram or timer reservoir.
type Distribution struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Median float64
	P75    float64
	P95    float64
	P98    float64
	P99    float64
	P999   float64
}

// Rates holds meter throughput in events per second.
type Rates struct {
	Mean float64
	M1   float64
	M5   float64
	M15  float64
}

// Sample is a read-only snapshot of one named metric. Which fields are meaningful
// depends on Kind:
//
//	Gauge:     Reading
//	Counter:   Count
//	Histogram: Dist
//	Meter:     Count, Rates
//	Timer:     Count, Rates, Dist (nanoseconds)
type Sample struct {
	Name    string
	Kind    Kind
	Reading any
	Count   int64
	Dist    Distribution
	Rates   Rates
}

// Snapshot groups filtered samples by kind, each slice ordered by name.
type Snapshot struct {
	Gauges     []Sample
	Counters   []Sample
	Histograms []Sample
	Meters     []Sample
	Timers     []Sample
}

// Len reports the total number of samples.
func (s Snapshot) Len() int {
	return len(s.Gauges) + len(s.Counters) + len(s.Histograms) + len(s.Meters) + len(s.Timers)
}

// Record is a single host/key/value item in a collector batch.
// A zero Clock means the collector assigns receipt time.
type Record struct {
	Host  string `json:"host"`
	Key   string `json:"key"`
	Value string `json:"value"`
	Clock int64  `json:"clock,omitempty"`
}
