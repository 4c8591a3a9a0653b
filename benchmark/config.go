package benchmark

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nvr-ai/go-npubench/device/emulated"
	"github.com/nvr-ai/go-npubench/logutil"
	"github.com/nvr-ai/go-npubench/profiler"
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// configValidate is the validator instance for run configuration.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("precision", validatePrecision)
}

func validatePrecision(fl validator.FieldLevel) bool {
	return workload.Precision(fl.Field().Int()).Valid()
}

// Config represents the configuration of a saturation run.
type Config struct {
	// M, K and N are the matrix dimensions.
	M int `yaml:"m" json:"m" validate:"gt=0"`
	K int `yaml:"k" json:"k" validate:"gt=0"`
	N int `yaml:"n" json:"n" validate:"gt=0"`
	// Precision is the operand precision.
	Precision workload.Precision `yaml:"precision" json:"precision" validate:"precision"`
	// NativeLayout keeps the B operand in the device-native arrangement.
	NativeLayout bool `yaml:"native_layout" json:"native_layout"`
	// PerfLayout keeps the A and C operands in the high-performance arrangement.
	PerfLayout bool `yaml:"perf_layout" json:"perf_layout"`

	// Cores is the number of workers, one per accelerator core.
	Cores int `yaml:"cores" json:"cores" validate:"gte=1,lte=32"`
	// DeviceCores is the core count of the emulated device.
	DeviceCores int `yaml:"device_cores" json:"device_cores" validate:"gte=1,lte=32"`
	// AutoAffinity lets the device schedule every context instead of pinning worker i
	// to core i.
	AutoAffinity bool `yaml:"auto_affinity" json:"auto_affinity"`
	// HostCPUs pins worker OS threads to these host CPUs, round-robin.
	HostCPUs []int `yaml:"host_cpus" json:"host_cpus" validate:"dive,gte=0"`

	// Warmup is the number of discarded executions per worker.
	Warmup int `yaml:"warmup" json:"warmup" validate:"gte=0"`
	// Interval is the monitor reporting period.
	Interval time.Duration `yaml:"interval" json:"interval" validate:"gte=1ms"`
	// Duration stops the run automatically; zero runs until interrupted.
	Duration time.Duration `yaml:"duration" json:"duration" validate:"gte=0"`

	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns the 3-core 1024×4096×4096 INT8 configuration.
func DefaultConfig() Config {
	d := workload.DefaultDescriptor()
	return Config{
		M:            d.M,
		K:            d.K,
		N:            d.N,
		Precision:    d.Precision,
		NativeLayout: d.Layout.NativeB,
		PerfLayout:   d.Layout.PerfAC,
		Cores:        emulated.DefaultCores,
		DeviceCores:  emulated.DefaultCores,
		Warmup:       DefaultWarmup,
		Interval:     profiler.DefaultInterval,
		LogLevel:     logutil.DefaultLevel,
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read or parsed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration, including the workload it describes.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if err := c.Descriptor().Validate(); err != nil {
		return errors.Wrap(err, "invalid workload")
	}
	return nil
}

// Descriptor returns the workload of the run.
func (c Config) Descriptor() workload.Descriptor {
	return workload.NewDescriptorBuilder().
		WithDims(c.M, c.K, c.N).
		WithPrecision(c.Precision).
		WithLayout(workload.Layout{NativeB: c.NativeLayout, PerfAC: c.PerfLayout}).
		Build()
}

// WithDescriptor returns a copy of c running desc.
func (c Config) WithDescriptor(desc workload.Descriptor) Config {
	c.M, c.K, c.N = desc.M, desc.K, desc.N
	c.Precision = desc.Precision
	return c
}

// HostCPU returns the host CPU for worker i. The second result is false when pinning
// is disabled.
func (c Config) HostCPU(i int) (int, bool) {
	if len(c.HostCPUs) == 0 {
		return 0, false
	}
	return c.HostCPUs[i%len(c.HostCPUs)], true
}
