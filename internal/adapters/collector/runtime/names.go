package runtime

// Registry names of the collected metrics.
const (
	PollMeter = "collector.polls"
	PollTimer = "collector.poll"

	TotalMemory    = "host.memory.total"
	FreeMemory     = "host.memory.free"
	UsedMemoryPct  = "host.memory.usedPercent"
	CPUutilization = "host.cpu.utilization"

	runtimePrefix = "runtime."
)

type memGauge struct {
	name string
	read func(*memStats) float64
}

var memGauges = []memGauge{
	{"Alloc", func(m *memStats) float64 { return float64(m.Alloc) }},
	{"BuckHashSys", func(m *memStats) float64 { return float64(m.BuckHashSys) }},
	{"Frees", func(m *memStats) float64 { return float64(m.Frees) }},
	{"GCCPUFraction", func(m *memStats) float64 { return m.GCCPUFraction }},
	{"GCSys", func(m *memStats) float64 { return float64(m.GCSys) }},
	{"HeapAlloc", func(m *memStats) float64 { return float64(m.HeapAlloc) }},
	{"HeapIdle", func(m *memStats) float64 { return float64(m.HeapIdle) }},
	{"HeapInuse", func(m *memStats) float64 { return float64(m.HeapInuse) }},
	{"HeapObjects", func(m *memStats) float64 { return float64(m.HeapObjects) }},
	{"HeapReleased", func(m *memStats) float64 { return float64(m.HeapReleased) }},
	{"HeapSys", func(m *memStats) float64 { return float64(m.HeapSys) }},
	{"LastGC", func(m *memStats) float64 { return float64(m.LastGC) }},
	{"Lookups", func(m *memStats) float64 { return float64(m.Lookups) }},
	{"MCacheInuse", func(m *memStats) float64 { return float64(m.MCacheInuse) }},
	{"MCacheSys", func(m *memStats) float64 { return float64(m.MCacheSys) }},
	{"MSpanInuse", func(m *memStats) float64 { return float64(m.MSpanInuse) }},
	{"MSpanSys", func(m *memStats) float64 { return float64(m.MSpanSys) }},
	{"Mallocs", func(m *memStats) float64 { return float64(m.Mallocs) }},
	{"NextGC", func(m *memStats) float64 { return float64(m.NextGC) }},
	{"NumForcedGC", func(m *memStats) float64 { return float64(m.NumForcedGC) }},
	{"NumGC", func(m *memStats) float64 { return float64(m.NumGC) }},
	{"OtherSys", func(m *memStats) float64 { return float64(m.OtherSys) }},
	{"PauseTotalNs", func(m *memStats) float64 { return float64(m.PauseTotalNs) }},
	{"StackInuse", func(m *memStats) float64 { return float64(m.StackInuse) }},
	{"StackSys", func(m *memStats) float64 { return float64(m.StackSys) }},
	{"Sys", func(m *memStats) float64 { return float64(m.Sys) }},
	{"TotalAlloc", func(m *memStats) float64 { return float64(m.TotalAlloc) }},
}

// RuntimeName returns the registry name of a runtime.MemStats field gauge.
func RuntimeName(field string) string { return runtimePrefix + field }
