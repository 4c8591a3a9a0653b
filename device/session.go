package device

import (
	"math/rand/v2"
	"time"

	"github.com/nvr-ai/go-npubench/util"
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/pkg/errors"
)

// Session owns one compute context and its three operand buffers.
//
// A Session returned by Open is always fully initialised. It is used by exactly one
// goroutine and must be released with Close.
type Session struct {
	driver Driver
	desc   workload.Descriptor
	mask   CoreMask

	ctx    Context
	hasCtx bool
	attr   IOAttr
	mems   [3]*Mem
}

// SessionOption configures Open.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	rng *rand.Rand
}

// WithRand sets the source used to fill the A and B operands.
func WithRand(rng *rand.Rand) SessionOption {
	return func(o *sessionOptions) {
		o.rng = rng
	}
}

// Open creates a ready-to-execute session for desc on the cores named by mask.
//
// Order of operations:
//  1. Descriptor validation.
//  2. Context creation.
//  3. Core pinning (skipped for CoreAuto).
//  4. Allocation of the A, B and C buffers at the sizes the context reports.
//  5. Random fill of A and B.
//  6. Binding of all three buffers.
//
// If any step fails, everything allocated so far is released.
//
// Arguments:
//   - driver: The accelerator driver.
//   - desc: The workload to prepare.
//   - mask: The core affinity of the context.
//   - opts: Optional settings.
//
// Returns:
//   - *Session: The session, or nil on failure.
//   - error: An *InitError wrapping the cause.
func Open(driver Driver, desc workload.Descriptor, mask CoreMask, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if err := desc.Validate(); err != nil {
		return nil, initError(StageValidate, err)
	}

	s := &Session{driver: driver, desc: desc, mask: mask}

	ctx, attr, err := driver.CreateContext(desc)
	if err != nil {
		return nil, initError(StageCreateContext, err)
	}
	s.ctx, s.hasCtx, s.attr = ctx, true, attr

	if mask != CoreAuto {
		if err := driver.SetCoreMask(ctx, mask); err != nil {
			s.Close()
			return nil, initError(StageSetCoreMask, errors.Wrapf(err, "mask %s", mask))
		}
	}

	attrs := s.attrs()
	for i, a := range attrs {
		mem := driver.CreateMem(ctx, a.Size)
		if mem == nil {
			s.Close()
			return nil, initError(StageCreateMem, errors.Errorf("%d bytes for operand %s", a.Size, a.Slot))
		}
		s.mems[i] = mem
	}

	for _, slot := range []Slot{SlotA, SlotB} {
		host := make([]byte, attrs[slot].Size)
		util.FillRandom(desc.Precision, host, o.rng)
		if n := s.mems[slot].Write(host); n != len(host) {
			s.Close()
			return nil, initError(StageCreateMem, errors.Errorf("short write to operand %s: %d of %d bytes", slot, n, len(host)))
		}
	}

	for i, a := range attrs {
		if err := driver.BindMem(ctx, s.mems[i], a); err != nil {
			s.Close()
			return nil, initError(StageBindMem, errors.Wrapf(err, "operand %s", a.Slot))
		}
	}

	return s, nil
}

func (s *Session) attrs() [3]TensorAttr {
	return [3]TensorAttr{s.attr.A, s.attr.B, s.attr.C}
}

// Execute runs one multiplication and returns its duration, measured around the run
// call only.
func (s *Session) Execute() (time.Duration, error) {
	if !s.hasCtx {
		return 0, errors.New("session is closed")
	}
	start := time.Now()
	err := s.driver.Run(s.ctx)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, errors.Wrap(err, "execute")
	}
	return elapsed, nil
}

// Close releases the buffers and then the context. Only resources that were actually
// allocated are released, and each at most once.
func (s *Session) Close() {
	for i := len(s.mems) - 1; i >= 0; i-- {
		if s.mems[i] != nil {
			s.driver.DestroyMem(s.ctx, s.mems[i])
			s.mems[i] = nil
		}
	}
	if s.hasCtx {
		s.driver.DestroyContext(s.ctx)
		s.hasCtx = false
	}
}

// Descriptor returns the workload the session was opened for.
func (s *Session) Descriptor() workload.Descriptor { return s.desc }

// Mask returns the requested core affinity.
func (s *Session) Mask() CoreMask { return s.mask }

// Ops returns the operation count of one Execute.
func (s *Session) Ops() uint64 { return s.desc.Ops() }

// Context returns the driver handle of the session.
func (s *Session) Context() Context { return s.ctx }

// Output returns the C buffer.
func (s *Session) Output() *Mem { return s.mems[SlotC] }
