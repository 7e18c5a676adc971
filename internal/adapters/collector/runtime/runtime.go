// Package runtime implements a collector that samples Go runtime stats and host
// CPU/RAM usage into a go-metrics registry.
package runtime

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vshulcz/zbxreporter/internal/ports"
)

type memStats = runtime.MemStats

// Collector periodically samples Go runtime stats plus host CPU/RAM metrics.
type Collector struct {
	reg   metrics.Registry
	polls metrics.Meter
	timer metrics.Timer

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.MetricsCollector = (*Collector)(nil)

// New creates a Collector writing into reg (metrics.DefaultRegistry when nil).
func New(reg metrics.Registry) *Collector {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	return &Collector{
		reg:   reg,
		polls: metrics.GetOrRegisterMeter(PollMeter, reg),
		timer: metrics.GetOrRegisterTimer(PollTimer, reg),
		stop:  make(chan struct{}),
	}
}

// Start launches background goroutines that sample runtime and host metrics at the given interval.
func (c *Collector) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %v", interval)
	}
	c.loop(ctx, interval, c.pollRuntime)
	c.loop(ctx, interval, c.pollHost)
	return nil
}

func (c *Collector) loop(ctx context.Context, interval time.Duration, poll func()) {
	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				poll()
			}
		}
	}()
}

func (c *Collector) pollRuntime() {
	c.timer.Time(func() {
		var ms memStats
		runtime.ReadMemStats(&ms)
		for _, g := range memGauges {
			metrics.GetOrRegisterGaugeFloat64(RuntimeName(g.name), c.reg).Update(g.read(&ms))
		}
		metrics.GetOrRegisterGauge(RuntimeName("NumGoroutine"), c.reg).Update(int64(runtime.NumGoroutine()))
	})
	c.polls.Mark(1)
}

func (c *Collector) pollHost() {
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		metrics.GetOrRegisterGaugeFloat64(TotalMemory, c.reg).Update(float64(vm.Total))
		metrics.GetOrRegisterGaugeFloat64(FreeMemory, c.reg).Update(float64(vm.Free))
		metrics.GetOrRegisterGaugeFloat64(UsedMemoryPct, c.reg).Update(vm.UsedPercent)
	}
	if pct, err := cpu.Percent(0, true); err == nil {
		for i, p := range pct {
			metrics.GetOrRegisterGaugeFloat64(fmt.Sprintf("%s%d", CPUutilization, i+1), c.reg).Update(p)
		}
	}
}

// Stop signals every collector goroutine to halt and waits for them to finish.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}
