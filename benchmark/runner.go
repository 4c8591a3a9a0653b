package benchmark

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nvr-ai/go-npubench/device"
	"github.com/nvr-ai/go-npubench/profiler"
	"github.com/nvr-ai/go-npubench/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoActiveCores is returned when no worker could open its session.
var ErrNoActiveCores = errors.New("no core could be initialized")

// Stop reasons.
const (
	ReasonInterrupt     = "interrupt"
	ReasonDeadline      = "duration elapsed"
	ReasonCanceled      = "canceled"
	ReasonNoCores       = "no active cores"
	ReasonWorkersDone   = "workers exited"
	ReasonMonitorFailed = "monitor failed"
)

// Runner owns one saturation run: the shared stop flag, one statistics record per core,
// the workers and the monitor.
type Runner struct {
	cfg       Config
	driver    device.Driver
	logger    *zap.Logger
	out       io.Writer
	interrupt bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the run logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput sets the writer receiving the banner, monitor reports and summary.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithInterrupt enables stopping the run on os.Interrupt.
func WithInterrupt(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.interrupt = enabled
	}
}

// NewRunner validates cfg and prepares a run on driver.
//
// Arguments:
//   - cfg: The run configuration.
//   - driver: The accelerator driver shared by all workers.
//   - opts: Optional settings.
//
// Returns:
//   - *Runner: The runner.
//   - error: An error if the configuration is invalid.
func NewRunner(cfg Config, driver device.Driver, opts ...RunnerOption) (*Runner, error) {
	if driver == nil {
		return nil, errors.New("driver is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		driver: driver,
		logger: zap.NewNop(),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run starts every worker and the monitor, blocks until the run is stopped and all of
// them have returned, and builds the summary from the final statistics.
//
// The run stops when ctx is canceled, when os.Interrupt arrives (if enabled), when the
// configured duration elapses, or when every worker has failed.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	desc := r.cfg.Descriptor()
	log := r.logger.With(zap.String("driver", r.driver.Name()))

	fmt.Fprintf(r.out, "Matrix: %s (%s → %s)\n", desc.Dims(), desc.Precision, desc.Precision.OutputType())
	fmt.Fprintf(r.out, "Ops per matmul: %d (%.3f GOP)\n", desc.Ops(), desc.GigaOps())

	var interrupts chan os.Signal
	if r.interrupt {
		interrupts = make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt)
		defer signal.Stop(interrupts)
	}

	stop := NewStopFlag()
	records := stats.NewCores(r.cfg.Cores)
	workers := make([]*Worker, r.cfg.Cores)
	for i := range workers {
		mask := device.CoreMaskFor(i)
		if r.cfg.AutoAffinity {
			mask = device.CoreAuto
		}
		workers[i] = &Worker{
			ID:         i,
			Mask:       mask,
			Descriptor: desc,
			Driver:     r.driver,
			Stats:      records[i],
			Warmup:     r.cfg.Warmup,
			Logger:     log,
		}
		if cpu, ok := r.cfg.HostCPU(i); ok {
			workers[i].HostCPU = &cpu
		}
	}

	monitor := profiler.NewMonitor(profiler.MonitorOptions{
		Interval:  r.cfg.Interval,
		Precision: desc.Precision,
		Ops:       desc.Ops(),
		Stats:     records,
		Output:    r.out,
		Logger:    log,
	})
	if err := monitor.Banner(); err != nil {
		return nil, errors.Wrap(err, "write banner")
	}

	start := time.Now()

	// Stop triggers. The goroutine exits once the flag is latched by any of them.
	go func() {
		var deadline <-chan time.Time
		if r.cfg.Duration > 0 {
			timer := time.NewTimer(r.cfg.Duration)
			defer timer.Stop()
			deadline = timer.C
		}
		reason := ""
		select {
		case <-interrupts:
			reason = ReasonInterrupt
		case <-ctx.Done():
			reason = ReasonCanceled
		case <-deadline:
			reason = ReasonDeadline
		case <-stop.Done():
			return
		}
		if stop.Set(reason) {
			log.Info("stopping", zap.String("reason", reason))
		}
	}()

	var g, workerGroup errgroup.Group
	for _, w := range workers {
		workerGroup.Go(func() error {
			return w.Run(stop)
		})
	}
	g.Go(func() error {
		err := workerGroup.Wait()
		// Workers only return on their own when they fail; release the monitor.
		if allFailed(workers) {
			if stop.Set(ReasonNoCores) {
				log.Error("all cores failed")
			}
		} else {
			stop.Set(ReasonWorkersDone)
		}
		return err
	})
	g.Go(func() error {
		err := monitor.Run(stop.Done())
		if err != nil && stop.Set(ReasonMonitorFailed) {
			log.Error("monitor failed", zap.Error(err))
		}
		return errors.Wrap(err, "monitor")
	})

	err := g.Wait()
	summary := r.summarize(workers, time.Since(start), stop.Reason())
	if err != nil {
		return summary, err
	}
	if allFailed(workers) {
		return summary, ErrNoActiveCores
	}
	return summary, nil
}

// allFailed reports whether every worker ended with an error before measuring.
func allFailed(workers []*Worker) bool {
	for _, w := range workers {
		if w.ReachedRunning() || w.Err() == nil {
			return false
		}
	}
	return true
}

func (r *Runner) summarize(workers []*Worker, elapsed time.Duration, reason string) *Summary {
	s := &Summary{
		Descriptor: r.cfg.Descriptor(),
		Elapsed:    elapsed,
		StopReason: reason,
		Cores:      make([]CoreSummary, len(workers)),
	}
	for i, w := range workers {
		snap := w.Stats.Snapshot()
		s.Cores[i] = CoreSummary{
			Core:      w.ID,
			Runs:      snap.Runs,
			TotalTime: snap.TotalTime,
			MeanTime:  snap.MeanTime(),
			PeakGOPS:  snap.PeakGOPS,
			State:     w.State(),
			Err:       w.Err(),
		}
	}
	return s
}
