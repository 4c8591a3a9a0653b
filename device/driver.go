// Package device - Accelerator driver contract and the per-core device session.
package device

import (
	"strconv"
	"strings"

	"github.com/nvr-ai/go-npubench/workload"
)

// Context is an opaque handle to a compute context created by a Driver.
type Context uint64

// CoreMask selects the accelerator core(s) a context may run on.
type CoreMask uint32

// CoreAuto lets the device schedule the context on any core.
const CoreAuto CoreMask = 0

// CoreMaskFor returns the mask pinning a context to a single core.
func CoreMaskFor(core int) CoreMask {
	return CoreMask(1) << uint(core)
}

// Cores returns the indices of the cores named by the mask.
func (m CoreMask) Cores() []int {
	var cores []int
	for i := 0; i < 32; i++ {
		if m&(1<<uint(i)) != 0 {
			cores = append(cores, i)
		}
	}
	return cores
}

func (m CoreMask) String() string {
	if m == CoreAuto {
		return "auto"
	}
	cores := m.Cores()
	parts := make([]string, len(cores))
	for i, c := range cores {
		parts[i] = "core" + strconv.Itoa(c)
	}
	return strings.Join(parts, "|")
}

// Slot identifies an operand of the multiplication.
type Slot int

// Slot constants.
const (
	SlotA Slot = iota
	SlotB
	SlotC
)

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	case SlotC:
		return "C"
	}
	return "Slot(" + strconv.Itoa(int(s)) + ")"
}

// TensorAttr describes the buffer a context expects for one operand.
type TensorAttr struct {
	Slot Slot
	// Dims is the logical shape, rows first.
	Dims []int
	// Size is the required buffer size in bytes.
	Size int
}

// IOAttr holds the attributes of the three operands of a context.
type IOAttr struct {
	A TensorAttr
	B TensorAttr
	C TensorAttr
}

// Mem is a host-visible device buffer.
type Mem struct {
	Size int
	Data []byte
}

// Write copies p into the start of the buffer and returns the number of bytes copied.
func (m *Mem) Write(p []byte) int {
	return copy(m.Data, p)
}

// Driver is the accelerator API a Session is built on.
//
// Implementations must allow distinct contexts to be used concurrently from different
// goroutines. A single context is only ever used by one goroutine.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string
	// Cores returns the number of physical compute cores.
	Cores() int
	// CreateContext prepares a context for the descriptor and reports its operand
	// attributes.
	CreateContext(desc workload.Descriptor) (Context, IOAttr, error)
	// SetCoreMask restricts the context to the cores named by mask.
	SetCoreMask(ctx Context, mask CoreMask) error
	// CreateMem allocates a buffer of size bytes, or returns nil.
	CreateMem(ctx Context, size int) *Mem
	// BindMem attaches a buffer to the operand described by attr.
	BindMem(ctx Context, mem *Mem, attr TensorAttr) error
	// Run executes one multiplication synchronously.
	Run(ctx Context) error
	// DestroyMem releases a buffer created by CreateMem.
	DestroyMem(ctx Context, mem *Mem)
	// DestroyContext releases the context.
	DestroyContext(ctx Context)
}
