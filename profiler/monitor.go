// Package profiler - Periodic throughput monitor for a running benchmark.
package profiler

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nvr-ai/go-npubench/stats"
	"github.com/nvr-ai/go-npubench/workload"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// DefaultInterval is the reporting period.
const DefaultInterval = time.Second

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	// Interval specifies how often to emit a report (default: 1s)
	Interval time.Duration
	// Precision selects the theoretical peak used for efficiency.
	Precision workload.Precision
	// Ops is the operation count of one execution, used for windowed throughput.
	Ops uint64
	// Stats holds one record per core, indexed by core id.
	Stats []*stats.Core
	// Output receives the reports (default: os.Stdout)
	Output io.Writer
	// Logger receives debug output (default: no-op)
	Logger *zap.Logger
}

// Monitor reads per-core statistics at a fixed interval and reports throughput against
// the theoretical peak. It never touches device sessions.
type Monitor struct {
	interval  time.Duration
	precision workload.Precision
	ops       uint64
	stats     []*stats.Core
	out       io.Writer
	logger    *zap.Logger

	mu       sync.Mutex
	tick     int
	prevRuns []uint64
	prevNs   []time.Duration
}

// NewMonitor creates a monitor with the specified options.
//
// Arguments:
//   - opts: Configuration options for the monitor.
//
// Returns:
//   - *Monitor: A configured Monitor instance.
func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Monitor{
		interval:  opts.Interval,
		precision: opts.Precision,
		ops:       opts.Ops,
		stats:     opts.Stats,
		out:       opts.Output,
		logger:    opts.Logger,
		prevRuns:  make([]uint64, len(opts.Stats)),
		prevNs:    make([]time.Duration, len(opts.Stats)),
	}
}

// TheoreticalTotal returns the peak throughput of all monitored cores together.
func (m *Monitor) TheoreticalTotal() float64 {
	return m.precision.PeakGOPS() * float64(len(m.stats))
}

// Banner writes the run header.
func (m *Monitor) Banner() error {
	_, err := fmt.Fprintf(m.out,
		"\n=== %d-core saturation | %s | theoretical max %.1f GOPS ===\nPress Ctrl+C to stop\n\n",
		len(m.stats), m.precision, m.TheoreticalTotal())
	return err
}

// Tick takes one snapshot of every core and computes the per-interval deltas.
func (m *Monitor) Tick() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tick++
	peakPerCore := m.precision.PeakGOPS()
	report := Report{
		Tick:             m.tick,
		Elapsed:          time.Duration(m.tick) * m.interval,
		Cores:            make([]CoreReport, len(m.stats)),
		TheoreticalTotal: m.TheoreticalTotal(),
	}

	peaks := make([]float64, len(m.stats))
	for i, c := range m.stats {
		s := c.Snapshot()
		cr := CoreReport{Core: i, Runs: s.Runs}
		if s.Runs > 0 {
			cr.PeakGOPS = s.PeakGOPS
			cr.Efficiency = percent(s.PeakGOPS, peakPerCore)
		}
		if s.Runs >= m.prevRuns[i] {
			cr.RunsDelta = s.Runs - m.prevRuns[i]
		}
		cr.RunsPerSec = float64(cr.RunsDelta) / m.interval.Seconds()
		if busy := s.TotalTime - m.prevNs[i]; cr.RunsDelta > 0 && busy > 0 {
			cr.WindowGOPS = stats.Throughput(cr.RunsDelta*m.ops, busy)
		}
		m.prevRuns[i], m.prevNs[i] = s.Runs, s.TotalTime

		peaks[i] = cr.PeakGOPS
		report.Cores[i] = cr
	}

	report.TotalGOPS = floats.Sum(peaks)
	report.TotalEfficiency = percent(report.TotalGOPS, report.TheoreticalTotal)
	return report
}

func percent(v, of float64) float64 {
	if of <= 0 {
		return 0
	}
	return v / of * 100
}

// Run emits a report every interval until done is closed. A stop observed at a wakeup
// ends the loop without a further report.
func (m *Monitor) Run(done <-chan struct{}) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
		}

		select {
		case <-done:
			return nil
		default:
		}

		report := m.Tick()
		if err := report.Format(m.out); err != nil {
			return err
		}
		for _, c := range report.Cores {
			m.logger.Debug("core sample",
				zap.Int("core", c.Core),
				zap.Uint64("runs", c.Runs),
				zap.Float64("peak_gops", c.PeakGOPS),
				zap.Float64("window_gops", c.WindowGOPS),
			)
		}
	}
}
