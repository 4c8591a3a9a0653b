// Package emulated - Software accelerator implementing the device driver contract on the
// host CPU.
//
// Each emulated core executes one context at a time. Operands are decoded into float32
// tensors and multiplied with gorgonia's dense BLAS; the result is encoded back into the
// C buffer in the precision's output type.
package emulated

import (
	"sync"
	"sync/atomic"

	"github.com/nvr-ai/go-npubench/device"
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	// tensor links this assertion; the pinned release accepts go1.22 and later runtimes.
	_ "go4.org/unsafe/assume-no-moving-gc"
)

// DefaultCores matches the three-core NPU of the RK3588.
const DefaultCores = 3

// Driver is an in-process accelerator.
type Driver struct {
	cores  int
	logger *zap.Logger

	mu       sync.Mutex
	next     device.Context
	contexts map[device.Context]*context

	coreLocks []sync.Mutex
	rr        atomic.Uint32
	liveMems  atomic.Int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithCores sets the number of emulated cores.
func WithCores(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.cores = n
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates an emulated accelerator.
func New(opts ...Option) *Driver {
	d := &Driver{
		cores:    DefaultCores,
		logger:   zap.NewNop(),
		contexts: make(map[device.Context]*context),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.coreLocks = make([]sync.Mutex, d.cores)
	return d
}

type context struct {
	attr  device.IOAttr
	work  workload.Descriptor
	mask  device.CoreMask
	core  int
	bound [3]*device.Mem

	a, b, c          *tensor.Dense
	aBuf, bBuf, cBuf []float32
}

// Name implements device.Driver.
func (d *Driver) Name() string { return "emulated" }

// Cores implements device.Driver.
func (d *Driver) Cores() int { return d.cores }

// CreateContext implements device.Driver.
func (d *Driver) CreateContext(desc workload.Descriptor) (device.Context, device.IOAttr, error) {
	if err := desc.Validate(); err != nil {
		return 0, device.IOAttr{}, err
	}

	attr := device.IOAttr{
		A: device.TensorAttr{Slot: device.SlotA, Dims: []int{desc.M, desc.K}, Size: desc.ABytes()},
		B: device.TensorAttr{Slot: device.SlotB, Dims: []int{desc.K, desc.N}, Size: desc.BBytes()},
		C: device.TensorAttr{Slot: device.SlotC, Dims: []int{desc.M, desc.N}, Size: desc.CBytes()},
	}
	c := &context{
		attr: attr,
		work: desc,
		core: -1,
		aBuf: make([]float32, desc.M*desc.K),
		bBuf: make([]float32, desc.K*desc.N),
		cBuf: make([]float32, desc.M*desc.N),
	}
	c.a = tensor.New(tensor.WithShape(desc.M, desc.K), tensor.WithBacking(c.aBuf))
	c.b = tensor.New(tensor.WithShape(desc.K, desc.N), tensor.WithBacking(c.bBuf))
	c.c = tensor.New(tensor.WithShape(desc.M, desc.N), tensor.WithBacking(c.cBuf))

	d.mu.Lock()
	d.next++
	handle := d.next
	d.contexts[handle] = c
	d.mu.Unlock()

	d.logger.Debug("context created",
		zap.Uint64("context", uint64(handle)),
		zap.Stringer("workload", desc),
	)
	return handle, attr, nil
}

func (d *Driver) lookup(ctx device.Context) (*context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.contexts[ctx]
	if !ok {
		return nil, errors.Wrapf(device.ErrUnknownContext, "context %d", ctx)
	}
	return c, nil
}

// SetCoreMask implements device.Driver. Masks naming a core the device does not have
// are rejected with device.ErrUnsupportedConfiguration.
func (d *Driver) SetCoreMask(ctx device.Context, mask device.CoreMask) error {
	c, err := d.lookup(ctx)
	if err != nil {
		return err
	}
	if mask != device.CoreAuto && mask>>uint(d.cores) != 0 {
		return errors.Wrapf(device.ErrUnsupportedConfiguration, "mask %s on a %d-core device", mask, d.cores)
	}
	c.mask = mask
	c.core = -1
	if mask != device.CoreAuto {
		c.core = mask.Cores()[0]
	}
	return nil
}

// CreateMem implements device.Driver.
func (d *Driver) CreateMem(ctx device.Context, size int) *device.Mem {
	if _, err := d.lookup(ctx); err != nil || size <= 0 {
		return nil
	}
	d.liveMems.Add(1)
	return &device.Mem{Size: size, Data: make([]byte, size)}
}

// BindMem implements device.Driver. Operands held in the device-native arrangement are
// decoded once here.
func (d *Driver) BindMem(ctx device.Context, mem *device.Mem, attr device.TensorAttr) error {
	c, err := d.lookup(ctx)
	if err != nil {
		return err
	}
	if mem == nil {
		return errors.Errorf("nil buffer for operand %s", attr.Slot)
	}
	if attr.Slot < device.SlotA || attr.Slot > device.SlotC {
		return errors.Errorf("invalid operand %s", attr.Slot)
	}
	if mem.Size < attr.Size {
		return errors.Errorf("operand %s needs %d bytes, buffer has %d", attr.Slot, attr.Size, mem.Size)
	}
	c.bound[attr.Slot] = mem

	switch {
	case attr.Slot == device.SlotA && c.work.Layout.PerfAC:
		decode(c.work.Precision, mem.Data, c.aBuf)
	case attr.Slot == device.SlotB && c.work.Layout.NativeB:
		decode(c.work.Precision, mem.Data, c.bBuf)
	}
	return nil
}

// Run implements device.Driver.
func (d *Driver) Run(ctx device.Context) error {
	c, err := d.lookup(ctx)
	if err != nil {
		return err
	}
	for slot, mem := range c.bound {
		if mem == nil {
			return errors.Errorf("operand %s is not bound", device.Slot(slot))
		}
	}

	core := c.core
	if core < 0 {
		core = int(d.rr.Add(1)-1) % d.cores
		c.core = core
	}
	d.coreLocks[core].Lock()
	defer d.coreLocks[core].Unlock()

	p := c.work.Precision
	if !c.work.Layout.PerfAC {
		decode(p, c.bound[device.SlotA].Data, c.aBuf)
	}
	if !c.work.Layout.NativeB {
		decode(p, c.bound[device.SlotB].Data, c.bBuf)
	}

	if _, err := c.a.MatMul(c.b, tensor.WithReuse(c.c)); err != nil {
		return errors.Wrap(err, "matmul")
	}
	encode(p, c.cBuf, c.bound[device.SlotC].Data)
	return nil
}

// DestroyMem implements device.Driver.
func (d *Driver) DestroyMem(ctx device.Context, mem *device.Mem) {
	if mem == nil {
		return
	}
	if c, err := d.lookup(ctx); err == nil {
		for i, b := range c.bound {
			if b == mem {
				c.bound[i] = nil
			}
		}
	}
	mem.Data = nil
	d.liveMems.Add(-1)
}

// DestroyContext implements device.Driver.
func (d *Driver) DestroyContext(ctx device.Context) {
	d.mu.Lock()
	delete(d.contexts, ctx)
	d.mu.Unlock()
	d.logger.Debug("context destroyed", zap.Uint64("context", uint64(ctx)))
}

// LiveContexts returns the number of contexts not yet destroyed.
func (d *Driver) LiveContexts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contexts)
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Driver) LiveBuffers() int {
	return int(d.liveMems.Load())
}

// Core returns the core a context is scheduled on, or -1 before its first run on an
// auto-scheduled context.
func (d *Driver) Core(ctx device.Context) int {
	c, err := d.lookup(ctx)
	if err != nil {
		return -1
	}
	return c.core
}
