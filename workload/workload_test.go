package workload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOps(t *testing.T) {
	tests := []struct {
		m, k, n int
		want    uint64
	}{
		{8, 8, 8, 8 * 8 * 15},
		{1, 1, 1, 1},
		{1024, 4096, 4096, 1024 * 4096 * 8191},
		{0, 8, 8, 0},
	}

	for _, tt := range tests {
		d := NewDescriptorBuilder().WithDims(tt.m, tt.k, tt.n).Build()
		assert.Equal(t, tt.want, d.Ops(), d.Dims())
	}
}

func TestPrecisionTable(t *testing.T) {
	assert.Equal(t, 1000.0, PrecisionINT8.PeakGOPS())
	assert.Equal(t, 500.0, PrecisionFP16.PeakGOPS())
	assert.Equal(t, 2000.0, PrecisionINT4.PeakGOPS())

	assert.Equal(t, 32, PrecisionINT8.Alignment())
	assert.Equal(t, 16, PrecisionFP16.Alignment())
	assert.Equal(t, 64, PrecisionINT4.Alignment())

	assert.Equal(t, "INT32", PrecisionINT8.OutputType())
	assert.Equal(t, "FP32", PrecisionFP16.OutputType())
	assert.Equal(t, "INT16", PrecisionINT4.OutputType())
	assert.Equal(t, 2, PrecisionINT4.OutputBytes())
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in   string
		want Precision
		ok   bool
	}{
		{"0", PrecisionINT8, true},
		{"1", PrecisionFP16, true},
		{"2", PrecisionINT4, true},
		{"fp16", PrecisionFP16, true},
		{"Int4", PrecisionINT4, true},
		{"7", PrecisionINT8, false},
		{"-1", PrecisionINT8, false},
		{"bf16", PrecisionINT8, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrecision(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestBufferSizes(t *testing.T) {
	d := NewDescriptorBuilder().WithDims(16, 32, 8).WithPrecision(PrecisionINT4).Build()
	assert.Equal(t, 16*32/2, d.ABytes())
	assert.Equal(t, 32*8/2, d.BBytes())
	assert.Equal(t, 16*8*2, d.CBytes())

	d.Precision = PrecisionFP16
	assert.Equal(t, 16*32*2, d.ABytes())
	assert.Equal(t, 16*8*4, d.CBytes())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{"default", DefaultDescriptor(), false},
		{"small int8", NewDescriptorBuilder().WithDims(8, 8, 8).Build(), false},
		{"small fp16", NewDescriptorBuilder().WithDims(8, 8, 8).WithPrecision(PrecisionFP16).Build(), false},
		{"int4 aligned", NewDescriptorBuilder().WithDims(16, 16, 16).WithPrecision(PrecisionINT4).Build(), false},
		{"int4 misaligned", NewDescriptorBuilder().WithDims(8, 8, 8).WithPrecision(PrecisionINT4).Build(), true},
		{"int8 misaligned", NewDescriptorBuilder().WithDims(3, 5, 7).Build(), true},
		{"zero dim", NewDescriptorBuilder().WithDims(0, 8, 8).Build(), true},
		{"bad precision", NewDescriptorBuilder().WithDims(8, 8, 8).WithPrecision(Precision(9)).Build(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedConfiguration))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseArgs(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		d, warnings := ParseArgs(nil)
		assert.Equal(t, DefaultDescriptor(), d)
		assert.Empty(t, warnings)
	})

	t.Run("full", func(t *testing.T) {
		d, warnings := ParseArgs([]string{"64", "128", "256", "1"})
		assert.Equal(t, 64, d.M)
		assert.Equal(t, 128, d.K)
		assert.Equal(t, 256, d.N)
		assert.Equal(t, PrecisionFP16, d.Precision)
		assert.Empty(t, warnings)
	})

	t.Run("out of range precision", func(t *testing.T) {
		d, warnings := ParseArgs([]string{"8", "8", "8", "5"})
		assert.Equal(t, PrecisionINT8, d.Precision)
		assert.Len(t, warnings, 1)
	})

	t.Run("per argument fallback", func(t *testing.T) {
		d, warnings := ParseArgs([]string{"abc", "-2", "32"})
		assert.Equal(t, DefaultM, d.M)
		assert.Equal(t, DefaultK, d.K)
		assert.Equal(t, 32, d.N)
		assert.Len(t, warnings, 2)
	})

	t.Run("extra arguments", func(t *testing.T) {
		_, warnings := ParseArgs([]string{"8", "8", "8", "0", "x", "y"})
		assert.Len(t, warnings, 1)
	})
}

func TestParseArgsOntoKeepsBase(t *testing.T) {
	base := NewDescriptorBuilder().
		WithDims(16, 32, 48).
		WithPrecision(PrecisionFP16).
		WithLayout(Layout{NativeB: false, PerfAC: true}).
		Build()

	d, warnings := ParseArgsOnto(base, []string{"64"})
	assert.Empty(t, warnings)
	assert.Equal(t, 64, d.M)
	assert.Equal(t, 32, d.K)
	assert.Equal(t, 48, d.N)
	assert.Equal(t, PrecisionFP16, d.Precision)
	assert.Equal(t, base.Layout, d.Layout)

	d, warnings = ParseArgsOnto(base, []string{"x", "8", "8", "bogus"})
	assert.Len(t, warnings, 2)
	assert.Equal(t, 16, d.M)
	assert.Equal(t, PrecisionFP16, d.Precision)
}

func TestPrecisionYAML(t *testing.T) {
	var cfg struct {
		A Precision `yaml:"a"`
		B Precision `yaml:"b"`
		C Precision `yaml:"c"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: fp16\nb: 2\nc: nope\n"), &cfg))
	assert.Equal(t, PrecisionFP16, cfg.A)
	assert.Equal(t, PrecisionINT4, cfg.B)
	assert.Equal(t, PrecisionINT8, cfg.C)
}
