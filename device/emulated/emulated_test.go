package emulated

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/nvr-ai/go-npubench/device"
	"github.com/nvr-ai/go-npubench/util"
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func naiveMatMul(a, b []float32, m, k, n int) []float32 {
	c := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for x := 0; x < k; x++ {
				sum += a[i*k+x] * b[x*n+j]
			}
			c[i*n+j] = sum
		}
	}
	return c
}

func TestRunMatchesReference(t *testing.T) {
	layouts := []workload.Layout{
		{NativeB: true, PerfAC: true},
		{NativeB: false, PerfAC: false},
		{NativeB: true, PerfAC: false},
	}
	precisions := []workload.Precision{workload.PrecisionINT8, workload.PrecisionFP16, workload.PrecisionINT4}

	for _, p := range precisions {
		for _, layout := range layouts {
			desc := workload.NewDescriptorBuilder().WithDims(16, 16, 8).WithPrecision(p).WithLayout(layout).Build()
			t.Run(desc.String(), func(t *testing.T) {
				d := New()
				s, err := device.Open(d, desc, device.CoreMaskFor(0), device.WithRand(rand.New(rand.NewPCG(1, 1))))
				require.NoError(t, err)
				defer s.Close()

				_, err = s.Execute()
				require.NoError(t, err)

				// Rebuild the operands from the same seed.
				a := make([]byte, desc.ABytes())
				b := make([]byte, desc.BBytes())
				rng := rand.New(rand.NewPCG(1, 1))
				util.FillRandom(p, a, rng)
				util.FillRandom(p, b, rng)
				af := make([]float32, desc.M*desc.K)
				bf := make([]float32, desc.K*desc.N)
				decode(p, a, af)
				decode(p, b, bf)

				want := naiveMatMul(af, bf, desc.M, desc.K, desc.N)
				got := DecodeOutput(p, s.Output().Data, desc.M*desc.N)
				if p == workload.PrecisionFP16 {
					assert.InDeltaSlice(t, want, got, 1e-3)
				} else {
					assert.Equal(t, want, got)
				}
			})
		}
	}
}

func TestGenericLayoutRereadsOperands(t *testing.T) {
	desc := workload.NewDescriptorBuilder().WithDims(8, 8, 8).WithLayout(workload.Layout{}).Build()
	d := New()

	ctx, attr, err := d.CreateContext(desc)
	require.NoError(t, err)
	mems := []*device.Mem{d.CreateMem(ctx, attr.A.Size), d.CreateMem(ctx, attr.B.Size), d.CreateMem(ctx, attr.C.Size)}
	for i, a := range []device.TensorAttr{attr.A, attr.B, attr.C} {
		require.NoError(t, d.BindMem(ctx, mems[i], a))
	}

	// A = identity, B = 2.
	for i := 0; i < 8; i++ {
		mems[0].Data[i*8+i] = 1
	}
	for i := range mems[1].Data {
		mems[1].Data[i] = 2
	}
	require.NoError(t, d.Run(ctx))
	for _, v := range DecodeOutput(desc.Precision, mems[2].Data, 64) {
		assert.Equal(t, float32(2), v)
	}

	for i := range mems[1].Data {
		mems[1].Data[i] = 0xff
	}
	require.NoError(t, d.Run(ctx))
	for _, v := range DecodeOutput(desc.Precision, mems[2].Data, 64) {
		assert.Equal(t, float32(-1), v)
	}

	for _, m := range mems {
		d.DestroyMem(ctx, m)
	}
	d.DestroyContext(ctx)
	assert.Zero(t, d.LiveBuffers())
	assert.Zero(t, d.LiveContexts())
}

func TestSetCoreMask(t *testing.T) {
	desc := workload.NewDescriptorBuilder().WithDims(8, 8, 8).Build()
	d := New(WithCores(2))
	assert.Equal(t, 2, d.Cores())

	ctx, _, err := d.CreateContext(desc)
	require.NoError(t, err)
	defer d.DestroyContext(ctx)

	assert.NoError(t, d.SetCoreMask(ctx, device.CoreMaskFor(1)))
	assert.Equal(t, 1, d.Core(ctx))

	err = d.SetCoreMask(ctx, device.CoreMaskFor(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, device.ErrUnsupportedConfiguration))

	assert.NoError(t, d.SetCoreMask(ctx, device.CoreAuto))
	assert.Equal(t, -1, d.Core(ctx))

	assert.Error(t, d.SetCoreMask(device.Context(999), device.CoreMaskFor(0)))
}

func TestOpenOnMissingCoreFails(t *testing.T) {
	desc := workload.NewDescriptorBuilder().WithDims(8, 8, 8).Build()
	d := New()

	s, err := device.Open(d, desc, device.CoreMaskFor(3))
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, device.ErrInitialization))
	assert.True(t, errors.Is(err, device.ErrUnsupportedConfiguration))
	assert.Zero(t, d.LiveContexts())
	assert.Zero(t, d.LiveBuffers())
}

func TestAutoMaskRoundRobin(t *testing.T) {
	desc := workload.NewDescriptorBuilder().WithDims(8, 8, 8).Build()
	d := New()

	var ctxs []device.Context
	for i := 0; i < 3; i++ {
		s, err := device.Open(d, desc, device.CoreAuto)
		require.NoError(t, err)
		defer s.Close()
		_, err = s.Execute()
		require.NoError(t, err)
		ctxs = append(ctxs, s.Context())
	}

	seen := map[int]bool{}
	for _, ctx := range ctxs {
		seen[d.Core(ctx)] = true
	}
	assert.Len(t, seen, 3)
}

func TestRunRequiresBoundOperands(t *testing.T) {
	desc := workload.NewDescriptorBuilder().WithDims(8, 8, 8).Build()
	d := New()
	ctx, attr, err := d.CreateContext(desc)
	require.NoError(t, err)
	defer d.DestroyContext(ctx)

	mem := d.CreateMem(ctx, attr.A.Size)
	require.NoError(t, d.BindMem(ctx, mem, attr.A))
	assert.Error(t, d.Run(ctx))
	assert.Error(t, d.BindMem(ctx, mem, attr.C))
	assert.Nil(t, d.CreateMem(ctx, 0))
	assert.Error(t, d.Run(device.Context(42)))
}

func TestConcurrentSessions(t *testing.T) {
	desc := workload.NewDescriptorBuilder().WithDims(32, 32, 32).Build()
	d := New()

	var wg sync.WaitGroup
	for core := 0; core < d.Cores(); core++ {
		wg.Add(1)
		go func(core int) {
			defer wg.Done()
			s, err := device.Open(d, desc, device.CoreMaskFor(core))
			if !assert.NoError(t, err) {
				return
			}
			defer s.Close()
			for i := 0; i < 20; i++ {
				_, err := s.Execute()
				assert.NoError(t, err)
			}
		}(core)
	}
	wg.Wait()

	assert.Zero(t, d.LiveContexts())
	assert.Zero(t, d.LiveBuffers())
}
