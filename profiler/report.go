package profiler

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// CoreReport is the per-core part of a Report.
type CoreReport struct {
	Core int `json:"core"`
	// Runs is the cumulative run count at the snapshot.
	Runs uint64 `json:"runs"`
	// PeakGOPS is the best single-run throughput so far (zero before the first run).
	PeakGOPS float64 `json:"peak_gops"`
	// Efficiency is PeakGOPS as a percentage of the per-core theoretical peak.
	Efficiency float64 `json:"efficiency"`
	// RunsDelta is the number of runs completed since the previous report.
	RunsDelta uint64 `json:"runs_delta"`
	// RunsPerSec is RunsDelta normalized to the interval.
	RunsPerSec float64 `json:"runs_per_sec"`
	// WindowGOPS is the mean throughput of the runs completed since the previous report.
	WindowGOPS float64 `json:"window_gops"`
}

// Report is one monitor sample.
type Report struct {
	Tick             int           `json:"tick"`
	Elapsed          time.Duration `json:"elapsed"`
	Cores            []CoreReport  `json:"cores"`
	TotalGOPS        float64       `json:"total_gops"`
	TotalEfficiency  float64       `json:"total_efficiency"`
	TheoreticalTotal float64       `json:"theoretical_total"`
}

// Format writes the report in its console form.
func (r Report) Format(w io.Writer) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "── [%v] ──\n", r.Elapsed)
	for _, c := range r.Cores {
		fmt.Fprintf(&buf, "  Core %d: %7.1f GOPS  (%5.1f%% efficiency)  runs/s: %d\n",
			c.Core, c.PeakGOPS, c.Efficiency, c.RunsDelta)
	}
	fmt.Fprintf(&buf, "  TOTAL : %7.1f GOPS  (%5.1f%% of %.1f GOPS theoretical)\n\n",
		r.TotalGOPS, r.TotalEfficiency, r.TheoreticalTotal)

	_, err := w.Write(buf.Bytes())
	return err
}
