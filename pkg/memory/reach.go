package memory

// TraceReachable computes the set of heap addresses reachable by chasing
// pointer values from the snapshot's roots. Roots are every pointer held
// in a global or stack variable, including pointers nested inside struct
// values. From each root the walk follows pointers stored in non-freed
// heap blocks breadth-first; freed blocks are never traversed, and
// pointers to addresses without a live block contribute nothing.
//
// The result plugs directly into HeapSegment.FindLeaks, which stays a
// pure set-subtract so callers can also supply their own reachable set.
func TraceReachable(s *MemorySnapshot) map[uint64]bool {
	reachable := make(map[uint64]bool)
	var queue []uint64

	visit := func(p PointerValue) {
		if p.Null {
			return
		}
		block, ok := s.heap.blocks[p.Address]
		if !ok || block.Freed || reachable[p.Address] {
			return
		}
		reachable[p.Address] = true
		queue = append(queue, p.Address)
	}

	for _, g := range s.globals.vars {
		for _, p := range pointersIn(g.Value) {
			visit(p)
		}
	}
	for _, frame := range s.stack.frames {
		for _, v := range frame.params {
			for _, p := range pointersIn(v.Value) {
				visit(p)
			}
		}
		for _, v := range frame.locals {
			for _, p := range pointersIn(v.Value) {
				visit(p)
			}
		}
	}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		for _, p := range pointersIn(s.heap.blocks[addr].Value) {
			visit(p)
		}
	}

	return reachable
}

// pointersIn collects every pointer value held in v, descending into
// struct values
func pointersIn(v Value) []PointerValue {
	switch val := v.(type) {
	case PointerValue:
		return []PointerValue{val}
	case StructValue:
		var out []PointerValue
		for _, field := range val {
			out = append(out, pointersIn(field)...)
		}
		return out
	default:
		return nil
	}
}
