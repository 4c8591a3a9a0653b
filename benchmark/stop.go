// Package benchmark - Multi-core saturation runs: workers, run control and summaries.
package benchmark

import (
	"sync"
	"sync/atomic"
)

// StopFlag is a one-shot, run-wide stop latch. Once set it stays set.
type StopFlag struct {
	set    atomic.Bool
	once   sync.Once
	done   chan struct{}
	reason atomic.Value
}

// NewStopFlag creates an unset flag.
func NewStopFlag() *StopFlag {
	return &StopFlag{done: make(chan struct{})}
}

// Set latches the flag. Only the first call has an effect.
//
// Returns:
//   - bool: Whether this call latched the flag.
func (f *StopFlag) Set(reason string) bool {
	latched := false
	f.once.Do(func() {
		f.reason.Store(reason)
		f.set.Store(true)
		close(f.done)
		latched = true
	})
	return latched
}

// IsSet reports whether the flag has been latched.
func (f *StopFlag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel closed when the flag is latched.
func (f *StopFlag) Done() <-chan struct{} {
	return f.done
}

// Reason returns the reason given to the latching Set call.
func (f *StopFlag) Reason() string {
	r, _ := f.reason.Load().(string)
	return r
}
