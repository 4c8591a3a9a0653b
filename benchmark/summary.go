package benchmark

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nvr-ai/go-npubench/workload"
	"gonum.org/v1/gonum/stat"
)

// CoreSummary is the final result of one worker.
type CoreSummary struct {
	Core      int           `json:"core"`
	Runs      uint64        `json:"runs"`
	TotalTime time.Duration `json:"total_time"`
	MeanTime  time.Duration `json:"mean_time"`
	PeakGOPS  float64       `json:"peak_gops"`
	State     WorkerState   `json:"state"`
	Err       error         `json:"-"`
}

// Active reports whether the core measured at least one execution.
func (c CoreSummary) Active() bool {
	return c.Runs > 0
}

// Status returns "ok", "idle" or the error that ended the worker.
func (c CoreSummary) Status() string {
	switch {
	case c.Err != nil:
		return c.Err.Error()
	case c.Runs == 0:
		return "idle"
	}
	return "ok"
}

// Summary is the result of a saturation run.
type Summary struct {
	Descriptor workload.Descriptor `json:"descriptor"`
	Elapsed    time.Duration       `json:"elapsed"`
	StopReason string              `json:"stop_reason"`
	Cores      []CoreSummary       `json:"cores"`
}

// TotalRuns returns the run count summed over all cores.
func (s *Summary) TotalRuns() uint64 {
	var total uint64
	for _, c := range s.Cores {
		total += c.Runs
	}
	return total
}

// ActiveCores returns the number of cores that measured at least one execution.
func (s *Summary) ActiveCores() int {
	n := 0
	for _, c := range s.Cores {
		if c.Active() {
			n++
		}
	}
	return n
}

// Balance returns the mean and standard deviation of the per-run time across active
// cores, in milliseconds.
func (s *Summary) Balance() (mean, stddev float64) {
	var ms []float64
	for _, c := range s.Cores {
		if c.Active() {
			ms = append(ms, durationMs(c.MeanTime))
		}
	}
	switch len(ms) {
	case 0:
		return 0, 0
	case 1:
		return ms[0], 0
	}
	return stat.MeanStdDev(ms, nil)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Render writes the final summary table.
func (s *Summary) Render(w io.Writer) error {
	tw := table.NewWriter()
	tw.SetTitle("Final Summary | %s %s | %v", s.Descriptor.Dims(), s.Descriptor.Precision, s.Elapsed.Truncate(time.Millisecond))
	tw.AppendHeader(table.Row{"Core", "Runs", "Avg ms/run", "Peak GOPS", "Status"})
	for _, c := range s.Cores {
		tw.AppendRow(table.Row{
			c.Core,
			c.Runs,
			fmt.Sprintf("%.2f", durationMs(c.MeanTime)),
			fmt.Sprintf("%.1f", c.PeakGOPS),
			c.Status(),
		})
	}
	mean, stddev := s.Balance()
	tw.AppendFooter(table.Row{"All", s.TotalRuns(), fmt.Sprintf("%.2f ± %.2f", mean, stddev), "", fmt.Sprintf("%d/%d active", s.ActiveCores(), len(s.Cores))})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}
