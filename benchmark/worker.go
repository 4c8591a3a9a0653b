package benchmark

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/nvr-ai/go-npubench/device"
	"github.com/nvr-ai/go-npubench/stats"
	"github.com/nvr-ai/go-npubench/workload"
	"go.uber.org/zap"
)

// DefaultWarmup is the number of untimed executions before measurement starts.
const DefaultWarmup = 5

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

// WorkerState constants. INIT → WARMUP → RUNNING → STOPPED, or INIT → STOPPED when the
// session cannot be opened.
const (
	StateInit WorkerState = iota
	StateWarmup
	StateRunning
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateWarmup:
		return "WARMUP"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// pinHostCPU is replaced in tests.
var pinHostCPU = pinThread

// Worker drives one accelerator core at full load.
type Worker struct {
	// ID is the core index, used for its statistics slot and log lines.
	ID int
	// Mask is the core affinity requested for the session.
	Mask device.CoreMask
	// Descriptor is the workload executed on every iteration.
	Descriptor workload.Descriptor
	// Driver opens the session.
	Driver device.Driver
	// Stats receives one record per measured execution.
	Stats *stats.Core
	// Warmup is the number of executions discarded before measuring.
	Warmup int
	// HostCPU pins the worker's OS thread to a host CPU; nil leaves it unpinned.
	HostCPU *int
	// Logger receives lifecycle lines.
	Logger *zap.Logger

	state   atomic.Int32
	running atomic.Bool

	mu  sync.Mutex
	err error
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// ReachedRunning reports whether the worker got past warm-up.
func (w *Worker) ReachedRunning() bool {
	return w.running.Load()
}

// Err returns the error that ended the worker, if any.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func (w *Worker) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

// Run executes the worker loop on a dedicated OS thread until stop is set or the
// device fails. Failures are reported through Err and a single log line; Run itself
// never returns an error so that one core cannot abort the others.
func (w *Worker) Run(stop *StopFlag) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer w.state.Store(int32(StateStopped))

	log := w.logger().With(zap.Int("core", w.ID), zap.Stringer("mask", w.Mask))
	w.state.Store(int32(StateInit))

	if w.HostCPU != nil {
		if err := pinHostCPU(*w.HostCPU); err != nil {
			log.Warn("host pinning failed", zap.Int("cpu", *w.HostCPU), zap.Error(err))
		}
	}

	session, err := device.Open(w.Driver, w.Descriptor, w.Mask)
	if err != nil {
		w.fail(err)
		log.Error("init failed", zap.Error(err))
		return nil
	}
	defer session.Close()
	log.Info("ready", zap.String("workload", w.Descriptor.Dims()), zap.Stringer("precision", w.Descriptor.Precision))

	w.state.Store(int32(StateWarmup))
	for i := 0; i < w.Warmup && !stop.IsSet(); i++ {
		if _, err := session.Execute(); err != nil {
			w.fail(err)
			log.Error("warmup failed", zap.Int("iteration", i), zap.Error(err))
			return nil
		}
	}

	if stop.IsSet() {
		log.Info("stopped during warmup")
		return nil
	}

	w.state.Store(int32(StateRunning))
	w.running.Store(true)
	ops := session.Ops()
	for !stop.IsSet() {
		elapsed, err := session.Execute()
		if err != nil {
			w.fail(err)
			log.Error("execute failed", zap.Uint64("runs", w.Stats.Runs()), zap.Error(err))
			break
		}
		w.Stats.Record(ops, elapsed)
	}

	s := w.Stats.Snapshot()
	log.Info("stopped", zap.Uint64("runs", s.Runs), zap.Duration("mean", s.MeanTime()), zap.Float64("peak_gops", s.PeakGOPS))
	return nil
}
