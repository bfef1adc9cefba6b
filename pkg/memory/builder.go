package memory

import "fmt"

// Default address cursors for mutations that omit an explicit address.
// They are simulation conventions, not layout guarantees.
const (
	defaultStackBase = 0x7fff0000
	stackSlotStride  = 8
	defaultHeapBase  = 0x1000
	heapSlotStride   = 0x100
)

// SnapshotBuilder produces the next snapshot from a base one. Its
// constructor deep-copies the base's globals, heap, and stack so no
// mutation ever touches a published snapshot, and every mutator copies
// the values it ingests so callers cannot reach into a built snapshot
// through values they still hold.
//
// All mutators are chainable and fail fast: the first error is sticky,
// every later call becomes a no-op, and Build surfaces it. There are no
// transaction semantics; a failed chain leaves the builder partially
// mutated and it must be discarded. Build consumes the builder: it
// produces exactly one snapshot, and further use returns
// ErrBuilderConsumed.
type SnapshotBuilder struct {
	base    *MemorySnapshot
	globals *GlobalStaticSegment
	heap    *HeapSegment
	stack   *StackSegment
	types   *TypeRegistry
	cpu     *CpuState

	stepID      int
	stepSet     bool
	description string

	nextStackAddr uint64
	nextHeapAddr  uint64

	err error
}

// NewSnapshotBuilder creates a builder whose mutations start from a deep
// copy of the base snapshot's segments. The type registry is shared: it
// describes declarations, not memory, and is append-only by construction.
func NewSnapshotBuilder(base *MemorySnapshot) *SnapshotBuilder {
	return &SnapshotBuilder{
		base:          base,
		globals:       base.globals.copySegment(),
		heap:          base.heap.copySegment(),
		stack:         base.stack.copySegment(),
		types:         base.types,
		cpu:           base.cpu.Copy(),
		nextStackAddr: defaultStackBase,
		nextHeapAddr:  defaultHeapBase,
	}
}

// Err returns the first error recorded by the chain, if any
func (b *SnapshotBuilder) Err() error { return b.err }

func (b *SnapshotBuilder) failed() bool { return b.err != nil }

// FrameOptions carries the optional metadata of a pushed frame
type FrameOptions struct {
	ReturnAddress uint64
	FramePointer  uint64
}

// PushFrame pushes a new empty frame for the named function
func (b *SnapshotBuilder) PushFrame(functionName string) *SnapshotBuilder {
	return b.PushFrameWithOptions(functionName, FrameOptions{})
}

// PushFrameWithOptions pushes a new empty frame with explicit return
// address and frame pointer metadata
func (b *SnapshotBuilder) PushFrameWithOptions(functionName string, opts FrameOptions) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.stack.push(newStackFrame(functionName, opts.ReturnAddress, opts.FramePointer))
	return b
}

// PopFrame pops the current frame
func (b *SnapshotBuilder) PopFrame() *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.err = b.stack.pop()
	return b
}

// SetLocal sets a local variable in the current frame at an
// auto-assigned stack address
func (b *SnapshotBuilder) SetLocal(name string, value Value, typeName string) *SnapshotBuilder {
	return b.SetLocalAt(name, value, typeName, b.takeStackAddr())
}

// SetLocalAt sets a local variable in the current frame at an explicit
// address
func (b *SnapshotBuilder) SetLocalAt(name string, value Value, typeName string, address uint64) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	frame, err := b.stack.top()
	if err != nil {
		b.err = fmt.Errorf("set local %q: %w", name, err)
		return b
	}
	frame.setLocal(Variable{Name: name, Address: address, Value: copyValue(value), TypeName: typeName})
	return b
}

// SetParameter sets a parameter in the current frame at an auto-assigned
// stack address
func (b *SnapshotBuilder) SetParameter(name string, value Value, typeName string) *SnapshotBuilder {
	return b.SetParameterAt(name, value, typeName, b.takeStackAddr())
}

// SetParameterAt sets a parameter in the current frame at an explicit
// address
func (b *SnapshotBuilder) SetParameterAt(name string, value Value, typeName string, address uint64) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	frame, err := b.stack.top()
	if err != nil {
		b.err = fmt.Errorf("set parameter %q: %w", name, err)
		return b
	}
	frame.setParameter(Variable{Name: name, Address: address, Value: copyValue(value), TypeName: typeName})
	return b
}

// UpdateLocal replaces the value of an existing local in the current
// frame
func (b *SnapshotBuilder) UpdateLocal(name string, value Value) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	frame, err := b.stack.top()
	if err != nil {
		b.err = fmt.Errorf("update local %q: %w", name, err)
		return b
	}
	b.err = frame.updateLocal(name, copyValue(value))
	return b
}

// MallocOptions carries the optional arguments of an allocation. A zero
// Address requests the auto cursor; the simulated heap never allocates at
// address 0.
type MallocOptions struct {
	Address uint64
	Site    string
}

// Malloc allocates a block at the next free cursor address and returns
// the address used. A nil initial value defaults to integer zero.
func (b *SnapshotBuilder) Malloc(size uint64, typeName string, initial Value) (*SnapshotBuilder, uint64) {
	return b.MallocWithOptions(size, typeName, initial, MallocOptions{})
}

// MallocWithOptions allocates a block, honoring an explicit address and
// allocation site when given, and returns the address used. Allocating at
// an address holding a non-freed block fails with ErrDuplicateAllocation;
// allocating at a freed address records a brand-new block.
func (b *SnapshotBuilder) MallocWithOptions(size uint64, typeName string, initial Value, opts MallocOptions) (*SnapshotBuilder, uint64) {
	if b.failed() {
		return b, 0
	}
	address := opts.Address
	if address == 0 {
		for b.heap.hasBlock(b.nextHeapAddr) {
			b.nextHeapAddr += heapSlotStride
		}
		address = b.nextHeapAddr
		b.nextHeapAddr += heapSlotStride
	}
	if err := b.heap.allocate(address, size, typeName, copyValue(initial), opts.Site); err != nil {
		b.err = err
		return b, 0
	}
	return b, address
}

// Free transitions the block at the given address to freed
func (b *SnapshotBuilder) Free(address uint64) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.err = b.heap.free(address)
	return b
}

// WriteHeap replaces the value of the live block at the given address
func (b *SnapshotBuilder) WriteHeap(address uint64, value Value) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.err = b.heap.write(address, copyValue(value))
	return b
}

// ReadHeap returns the value of the live block at the given address from
// the builder's private heap copy. Unlike the mutators it reports its
// error directly and does not poison the chain.
func (b *SnapshotBuilder) ReadHeap(address uint64) (Value, error) {
	if b.failed() {
		return nil, b.err
	}
	return b.heap.read(address)
}

// SetGlobal replaces the value of an existing global/static variable
func (b *SnapshotBuilder) SetGlobal(name string, value Value) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.err = b.globals.set(name, copyValue(value))
	return b
}

// AddGlobal adds a new global/static variable, replacing any existing one
// with the same name
func (b *SnapshotBuilder) AddGlobal(g GlobalVariable) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.globals.add(g.Copy())
	return b
}

// SetPC sets the program counter, creating the CPU state on first use
func (b *SnapshotBuilder) SetPC(pc uint64) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.ensureCPU().PC = pc
	return b
}

// SetSP sets the stack pointer, creating the CPU state on first use
func (b *SnapshotBuilder) SetSP(sp uint64) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.ensureCPU().SP = sp
	return b
}

// SetBP sets the base pointer, creating the CPU state on first use
func (b *SnapshotBuilder) SetBP(bp uint64) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.ensureCPU().BP = bp
	return b
}

// SetRegister sets a named extra register, creating the CPU state on
// first use
func (b *SnapshotBuilder) SetRegister(name string, value Value) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	cpu := b.ensureCPU()
	if cpu.Extra == nil {
		cpu.Extra = make(map[string]Value)
	}
	cpu.Extra[name] = copyValue(value)
	return b
}

// SetStep records the step id and description to stamp on the built
// snapshot
func (b *SnapshotBuilder) SetStep(stepID int, description string) *SnapshotBuilder {
	if b.failed() {
		return b
	}
	b.stepID = stepID
	b.stepSet = true
	b.description = description
	return b
}

// Build stamps metadata and returns the new snapshot. The step id
// defaults to the base snapshot's id plus one when SetStep was not
// called. Build hands the builder's private segments to the snapshot and
// marks the builder consumed, so the two can never alias live storage.
func (b *SnapshotBuilder) Build() (*MemorySnapshot, error) {
	if b.failed() {
		return nil, b.err
	}

	stepID := b.stepID
	if !b.stepSet {
		stepID = b.base.stepID + 1
	}

	snapshot := &MemorySnapshot{
		stepID:      stepID,
		description: b.description,
		globals:     b.globals,
		heap:        b.heap,
		stack:       b.stack,
		types:       b.types,
		cpu:         b.cpu,
	}

	b.globals = nil
	b.heap = nil
	b.stack = nil
	b.cpu = nil
	b.err = ErrBuilderConsumed

	return snapshot, nil
}

func (b *SnapshotBuilder) takeStackAddr() uint64 {
	address := b.nextStackAddr
	b.nextStackAddr += stackSlotStride
	return address
}

func (b *SnapshotBuilder) ensureCPU() *CpuState {
	if b.cpu == nil {
		b.cpu = &CpuState{}
	}
	return b.cpu
}
