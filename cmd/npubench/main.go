// Command npubench saturates every core of a matrix-multiplication accelerator and
// reports live throughput against the theoretical peak.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nvr-ai/go-npubench/benchmark"
	"github.com/nvr-ai/go-npubench/device/emulated"
	"github.com/nvr-ai/go-npubench/logutil"
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
)

type options struct {
	configFile   string
	cores        int
	deviceCores  int
	duration     time.Duration
	interval     time.Duration
	warmup       int
	nativeLayout bool
	perfLayout   bool
	autoAffinity bool
	hostCPUs     []int
	logLevel     string
}

func newRootCmd(opts *options) *cobra.Command {
	defaults := benchmark.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "npubench [M K N precision]",
		Short: "Saturate every accelerator core with matrix multiplications",
		Long: `npubench runs one worker per accelerator core, each executing the same
matrix multiplication in a tight loop, and prints per-core and aggregate throughput
against the theoretical peak once per interval until interrupted.

Precision selectors: 0 = INT8, 1 = FP16, 2 = INT4.`,
		Example: `  npubench
  npubench 1024 4096 4096 0
  npubench 512 2048 2048 fp16 --duration 30s
  npubench --config run.yaml --host-cpus 4,5,6,7`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "Path to a YAML run configuration")
	f.IntVar(&opts.cores, "cores", defaults.Cores, "Number of workers, one per accelerator core")
	f.IntVar(&opts.deviceCores, "device-cores", defaults.DeviceCores, "Core count of the emulated accelerator")
	f.DurationVar(&opts.duration, "duration", defaults.Duration, "Stop after this long (0 runs until Ctrl+C)")
	f.DurationVar(&opts.interval, "interval", defaults.Interval, "Reporting interval")
	f.IntVar(&opts.warmup, "warmup", defaults.Warmup, "Untimed executions per worker before measuring")
	f.BoolVar(&opts.nativeLayout, "native-layout", defaults.NativeLayout, "Keep operand B in the device-native layout")
	f.BoolVar(&opts.perfLayout, "perf-layout", defaults.PerfLayout, "Keep operands A and C in the high-performance layout")
	f.BoolVar(&opts.autoAffinity, "auto-affinity", defaults.AutoAffinity, "Let the device schedule contexts instead of pinning worker i to core i")
	f.IntSliceVar(&opts.hostCPUs, "host-cpus", nil, "Pin worker threads to these host CPUs, round-robin")
	f.StringVar(&opts.logLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error")

	return cmd
}

// buildConfig merges the config file, the flags that were set explicitly and the
// positional workload arguments, in that order.
func buildConfig(cmd *cobra.Command, args []string, opts *options) (benchmark.Config, []string, error) {
	cfg := benchmark.DefaultConfig()
	if opts.configFile != "" {
		var err error
		if cfg, err = benchmark.LoadConfig(opts.configFile); err != nil {
			return cfg, nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("cores") {
		cfg.Cores = opts.cores
	}
	if f.Changed("device-cores") {
		cfg.DeviceCores = opts.deviceCores
	}
	if f.Changed("duration") {
		cfg.Duration = opts.duration
	}
	if f.Changed("interval") {
		cfg.Interval = opts.interval
	}
	if f.Changed("warmup") {
		cfg.Warmup = opts.warmup
	}
	if f.Changed("native-layout") {
		cfg.NativeLayout = opts.nativeLayout
	}
	if f.Changed("perf-layout") {
		cfg.PerfLayout = opts.perfLayout
	}
	if f.Changed("auto-affinity") {
		cfg.AutoAffinity = opts.autoAffinity
	}
	if f.Changed("host-cpus") {
		cfg.HostCPUs = opts.hostCPUs
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	var warnings []string
	if len(args) > 0 {
		var desc workload.Descriptor
		desc, warnings = workload.ParseArgsOnto(cfg.Descriptor(), args)
		cfg = cfg.WithDescriptor(desc)
	}
	return cfg, warnings, nil
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	cfg, warnings, err := buildConfig(cmd, args, opts)
	if err != nil {
		return err
	}

	logger, err := logutil.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	atexit.Register(func() { _ = logger.Sync() })

	for _, w := range warnings {
		logger.Warn("argument fallback", zap.String("detail", w))
	}

	driver := emulated.New(emulated.WithCores(cfg.DeviceCores), emulated.WithLogger(logger))
	runner, err := benchmark.NewRunner(cfg, driver,
		benchmark.WithLogger(logger),
		benchmark.WithOutput(cmd.OutOrStdout()),
		benchmark.WithInterrupt(true),
	)
	if err != nil {
		return err
	}

	summary, err := runner.Run(context.Background())
	if summary != nil {
		if rerr := summary.Render(cmd.OutOrStdout()); rerr != nil {
			logger.Error("render summary", zap.Error(rerr))
		}
	}
	if err != nil {
		return errors.Wrap(err, "run")
	}
	logger.Info("done",
		zap.String("reason", summary.StopReason),
		zap.Uint64("runs", summary.TotalRuns()),
		zap.Int("active_cores", summary.ActiveCores()),
	)
	return nil
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "npubench:", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
