package workload

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnsupportedConfiguration is returned when a descriptor (or a request made with it)
// cannot be served by the device.
var ErrUnsupportedConfiguration = errors.New("unsupported configuration")

// Default workload dimensions.
const (
	DefaultM = 1024
	DefaultK = 4096
	DefaultN = 4096
)

// Layout selects the operand arrangement requested from the device.
type Layout struct {
	// NativeB stores the B operand in the device-native arrangement.
	NativeB bool `yaml:"native_b" json:"native_b"`
	// PerfAC stores the A and C operands in the high-performance arrangement.
	PerfAC bool `yaml:"perf_ac" json:"perf_ac"`
}

// DefaultLayout is the fastest arrangement: native B, performance A/C.
func DefaultLayout() Layout {
	return Layout{NativeB: true, PerfAC: true}
}

// Descriptor describes one matrix multiplication C[M×N] = A[M×K] · B[K×N].
//
// A Descriptor is an immutable value shared read-only by every worker of a run.
type Descriptor struct {
	M         int       `yaml:"m" json:"m"`
	K         int       `yaml:"k" json:"k"`
	N         int       `yaml:"n" json:"n"`
	Precision Precision `yaml:"precision" json:"precision"`
	Layout    Layout    `yaml:"layout" json:"layout"`
}

// DefaultDescriptor returns the 1024×4096×4096 INT8 workload.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		M:         DefaultM,
		K:         DefaultK,
		N:         DefaultN,
		Precision: DefaultPrecision,
		Layout:    DefaultLayout(),
	}
}

// Ops returns the elementary operation count of one execution: M·N·(2K−1), i.e. K
// multiplies and K−1 adds per output element.
func (d Descriptor) Ops() uint64 {
	if d.M <= 0 || d.N <= 0 || d.K <= 0 {
		return 0
	}
	return uint64(d.M) * uint64(d.N) * (2*uint64(d.K) - 1)
}

// GigaOps returns Ops in units of 10^9.
func (d Descriptor) GigaOps() float64 {
	return float64(d.Ops()) / 1e9
}

func packedBytes(elements, bits int) int {
	return (elements*bits + 7) / 8
}

// ABytes returns the size of the A operand buffer.
func (d Descriptor) ABytes() int {
	return packedBytes(d.M*d.K, d.Precision.ElementBits())
}

// BBytes returns the size of the B operand buffer.
func (d Descriptor) BBytes() int {
	return packedBytes(d.K*d.N, d.Precision.ElementBits())
}

// CBytes returns the size of the C result buffer.
func (d Descriptor) CBytes() int {
	return d.M * d.N * d.Precision.OutputBytes()
}

// Validate checks that the descriptor can be handed to a device.
//
// Returns:
//   - error: nil, or an error wrapping ErrUnsupportedConfiguration.
func (d Descriptor) Validate() error {
	if d.M <= 0 || d.K <= 0 || d.N <= 0 {
		return errors.Wrapf(ErrUnsupportedConfiguration, "dimensions must be positive, got %dx%dx%d", d.M, d.K, d.N)
	}
	if !d.Precision.Valid() {
		return errors.Wrapf(ErrUnsupportedConfiguration, "unknown precision %d", int(d.Precision))
	}
	if d.Precision.ElementBits() < 8 && (d.M*d.K%2 != 0 || d.K*d.N%2 != 0) {
		return errors.Wrapf(ErrUnsupportedConfiguration, "%s operands need an even element count", d.Precision)
	}
	align := d.Precision.Alignment()
	if d.ABytes()%align != 0 {
		return errors.Wrapf(ErrUnsupportedConfiguration, "A operand of %d bytes is not %d-byte aligned", d.ABytes(), align)
	}
	if d.BBytes()%align != 0 {
		return errors.Wrapf(ErrUnsupportedConfiguration, "B operand of %d bytes is not %d-byte aligned", d.BBytes(), align)
	}
	return nil
}

// Dims returns the "MxKxN" form of the dimensions.
func (d Descriptor) Dims() string {
	return fmt.Sprintf("%dx%dx%d", d.M, d.K, d.N)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (native_b=%t perf_ac=%t)", d.Dims(), d.Precision, d.Layout.NativeB, d.Layout.PerfAC)
}
