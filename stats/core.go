// Package stats - Lock-free per-core throughput statistics.
package stats

import (
	"math"
	"sync/atomic"
	"time"
)

// Core accumulates the results of one worker.
//
// A Core has a single writer (its worker) and any number of readers. Each field is
// updated atomically on its own; readers may observe a run count and a cumulative time
// from different iterations, which is acceptable for live reporting.
type Core struct {
	runs     atomic.Uint64
	totalNs  atomic.Uint64
	peakBits atomic.Uint64
}

// NewCores allocates n zeroed records.
func NewCores(n int) []*Core {
	cores := make([]*Core, n)
	for i := range cores {
		cores[i] = &Core{}
	}
	return cores
}

// Throughput converts an execution of ops operations lasting elapsed into GOPS
// (operations per nanosecond). elapsed is clamped to 1ns.
func Throughput(ops uint64, elapsed time.Duration) float64 {
	if elapsed < time.Nanosecond {
		elapsed = time.Nanosecond
	}
	return float64(ops) / float64(elapsed.Nanoseconds())
}

// Record accounts for one completed execution.
//
// Arguments:
//   - ops: The operation count of the execution.
//   - elapsed: The measured execution time.
//
// Returns:
//   - float64: The throughput of this execution in GOPS.
func (c *Core) Record(ops uint64, elapsed time.Duration) float64 {
	if elapsed < time.Nanosecond {
		elapsed = time.Nanosecond
	}
	gops := Throughput(ops, elapsed)
	c.runs.Add(1)
	c.totalNs.Add(uint64(elapsed.Nanoseconds()))
	c.UpdatePeak(gops)
	return gops
}

// UpdatePeak raises the peak to gops if gops is larger. The peak never decreases.
//
// Returns:
//   - bool: Whether the peak was raised.
func (c *Core) UpdatePeak(gops float64) bool {
	for {
		old := c.peakBits.Load()
		if gops <= math.Float64frombits(old) {
			return false
		}
		if c.peakBits.CompareAndSwap(old, math.Float64bits(gops)) {
			return true
		}
	}
}

// Runs returns the number of recorded executions.
func (c *Core) Runs() uint64 { return c.runs.Load() }

// TotalTime returns the cumulative execution time.
func (c *Core) TotalTime() time.Duration { return time.Duration(c.totalNs.Load()) }

// PeakGOPS returns the highest single-execution throughput seen.
func (c *Core) PeakGOPS() float64 { return math.Float64frombits(c.peakBits.Load()) }

// Snapshot reads the three fields without synchronising them with each other.
func (c *Core) Snapshot() Snapshot {
	return Snapshot{
		Runs:      c.Runs(),
		TotalTime: c.TotalTime(),
		PeakGOPS:  c.PeakGOPS(),
	}
}

// Snapshot is a point-in-time copy of a Core.
type Snapshot struct {
	Runs      uint64        `json:"runs"`
	TotalTime time.Duration `json:"total_time"`
	PeakGOPS  float64       `json:"peak_gops"`
}

// MeanTime returns the average execution time, or zero when nothing was recorded.
func (s Snapshot) MeanTime() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Runs)
}
