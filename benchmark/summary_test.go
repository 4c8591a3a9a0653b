package benchmark

import (
	"bytes"
	"testing"
	"time"

	"github.com/nvr-ai/go-npubench/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	s := &Summary{
		Descriptor: smallDesc,
		Elapsed:    2 * time.Second,
		Cores: []CoreSummary{
			{Core: 0, Runs: 100, MeanTime: 2 * time.Millisecond, PeakGOPS: 50, State: StateStopped},
			{Core: 1, Runs: 0, State: StateStopped, Err: device.ErrInitialization},
			{Core: 2, Runs: 50, MeanTime: 4 * time.Millisecond, PeakGOPS: 25, State: StateStopped},
		},
	}

	assert.Equal(t, uint64(150), s.TotalRuns())
	assert.Equal(t, 2, s.ActiveCores())
	assert.Equal(t, "ok", s.Cores[0].Status())
	assert.Equal(t, device.ErrInitialization.Error(), s.Cores[1].Status())
	assert.Equal(t, "idle", CoreSummary{}.Status())

	mean, stddev := s.Balance()
	assert.InDelta(t, 3.0, mean, 1e-9)
	assert.InDelta(t, 1.4142135, stddev, 1e-6)

	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, "Final Summary")
	assert.Contains(t, out, "8x8x8 INT8")
	assert.NotContains(t, out, "perf_ac")
	assert.Contains(t, out, "2.00")
	assert.Contains(t, out, "50.0")
	assert.Contains(t, out, "2/3 ACTIVE")
}

func TestSummaryBalanceEdgeCases(t *testing.T) {
	mean, stddev := (&Summary{}).Balance()
	assert.Zero(t, mean)
	assert.Zero(t, stddev)

	one := &Summary{Cores: []CoreSummary{{Runs: 1, MeanTime: time.Millisecond}}}
	mean, stddev = one.Balance()
	assert.Equal(t, 1.0, mean)
	assert.Zero(t, stddev)
}
