package memory

import "fmt"

// CpuState is optional, purely descriptive register state attached to a
// snapshot. Zero means a register was not recorded; registers are never
// resolved against the segments.
type CpuState struct {
	PC    uint64
	SP    uint64
	BP    uint64
	Extra map[string]Value
}

// Register returns an extra register by name
func (c *CpuState) Register(name string) (Value, bool) {
	v, ok := c.Extra[name]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Copy returns a deep copy of the CPU state
func (c *CpuState) Copy() *CpuState {
	if c == nil {
		return nil
	}
	out := &CpuState{PC: c.PC, SP: c.SP, BP: c.BP}
	if c.Extra != nil {
		out.Extra = make(map[string]Value, len(c.Extra))
		for name, v := range c.Extra {
			out.Extra[name] = copyValue(v)
		}
	}
	return out
}

// MemorySnapshot is an immutable capture of the program's memory state at
// one execution step. A snapshot exclusively owns its segments: nothing
// it exposes can mutate them, and no segment is ever shared with another
// snapshot or with a live builder.
type MemorySnapshot struct {
	stepID      int
	description string
	globals     *GlobalStaticSegment
	heap        *HeapSegment
	stack       *StackSegment
	types       *TypeRegistry
	cpu         *CpuState
}

// StepID returns the snapshot's step identifier
func (s *MemorySnapshot) StepID() int { return s.stepID }

// Description returns the snapshot's human-readable description
func (s *MemorySnapshot) Description() string { return s.description }

// Globals returns the global/static segment
func (s *MemorySnapshot) Globals() *GlobalStaticSegment { return s.globals }

// Heap returns the heap segment
func (s *MemorySnapshot) Heap() *HeapSegment { return s.heap }

// Stack returns the stack segment
func (s *MemorySnapshot) Stack() *StackSegment { return s.stack }

// Types returns the type registry
func (s *MemorySnapshot) Types() *TypeRegistry { return s.types }

// CPU returns a copy of the register state, or nil if none was recorded
func (s *MemorySnapshot) CPU() *CpuState { return s.cpu.Copy() }

// ValueAtAddress resolves an address across all segments. The priority
// order is fixed and documented because the simulated address spaces are
// disjoint and a value could coincidentally collide across them: globals
// first, then non-freed heap blocks, then every stack frame's variables
// bottom to top.
func (s *MemorySnapshot) ValueAtAddress(address uint64) (Value, bool) {
	if g, ok := s.globals.ByAddress(address); ok {
		return g.Value, true
	}
	if b, ok := s.heap.Block(address); ok && !b.Freed {
		return b.Value, true
	}
	for _, frame := range s.stack.frames {
		for _, v := range frame.AllVariables() {
			if v.Address == address {
				return v.Value, true
			}
		}
	}
	return nil, false
}

// PointerRef locates one holder of a pointer value: a human-readable
// description of where the pointer lives and the holder's own address.
type PointerRef struct {
	Location string
	Address  uint64
}

// PointersTo scans globals, then non-freed heap blocks, then all stack
// frames for variables or blocks whose top-level value is a non-null
// pointer to the target address. Pointers nested inside struct values are
// not reported; TraceReachable follows those.
//
// A pointer to a freed or never-allocated address is still reported: a
// stale pointer remains visible as data, and dangling-pointer detection
// is the caller's job.
func (s *MemorySnapshot) PointersTo(target uint64) []PointerRef {
	var refs []PointerRef

	for _, name := range s.globals.Names() {
		g := s.globals.vars[name]
		if p, ok := g.Value.(PointerValue); ok && !p.Null && p.Address == target {
			refs = append(refs, PointerRef{
				Location: fmt.Sprintf("global %s", g.Name),
				Address:  g.Address,
			})
		}
	}

	for _, addr := range s.heap.Addresses() {
		b := s.heap.blocks[addr]
		if b.Freed {
			continue
		}
		if p, ok := b.Value.(PointerValue); ok && !p.Null && p.Address == target {
			refs = append(refs, PointerRef{
				Location: fmt.Sprintf("heap block @ 0x%x", b.Address),
				Address:  b.Address,
			})
		}
	}

	for _, frame := range s.stack.frames {
		for _, v := range frame.AllVariables() {
			if p, ok := v.Value.(PointerValue); ok && !p.Null && p.Address == target {
				refs = append(refs, PointerRef{
					Location: fmt.Sprintf("stack %s::%s", frame.FunctionName, v.Name),
					Address:  v.Address,
				})
			}
		}
	}

	return refs
}

// Leaks reports the non-freed heap blocks unreachable from any pointer
// held in globals or stack frames. Equivalent to
// Heap().FindLeaks(TraceReachable(s)).
func (s *MemorySnapshot) Leaks() []HeapBlock {
	return s.heap.FindLeaks(TraceReachable(s))
}

// InitialState configures CreateInitialSnapshot. Zero values give an
// empty program: no globals, an empty type registry, no CPU state, step
// id 0.
type InitialState struct {
	Globals     []GlobalVariable
	Types       *TypeRegistry
	CPU         *CpuState
	StepID      int
	Description string
}

// CreateInitialSnapshot creates the first snapshot of a simulation with
// an empty heap and stack. The description defaults to "Initial state".
func CreateInitialSnapshot(init InitialState) *MemorySnapshot {
	globals := newGlobalStaticSegment()
	for _, g := range init.Globals {
		globals.add(g.Copy())
	}

	types := init.Types
	if types == nil {
		types = NewTypeRegistry()
	}

	description := init.Description
	if description == "" {
		description = "Initial state"
	}

	return &MemorySnapshot{
		stepID:      init.StepID,
		description: description,
		globals:     globals,
		heap:        newHeapSegment(),
		stack:       newStackSegment(),
		types:       types,
		cpu:         init.CPU.Copy(),
	}
}
