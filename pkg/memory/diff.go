package memory

import (
	"fmt"
	"strings"
)

// ChangeKind classifies one entry of a snapshot diff
type ChangeKind int

const (
	// ChangeAdded marks a variable present only in the newer snapshot
	ChangeAdded ChangeKind = iota
	// ChangeModified marks a value that differs between the snapshots
	ChangeModified
	// ChangeRemoved marks a variable present only in the older snapshot
	ChangeRemoved
	// ChangePushed marks a stack frame beyond the older snapshot's depth
	ChangePushed
	// ChangePopped marks a stack frame beyond the newer snapshot's depth
	ChangePopped
	// ChangeAllocated marks a heap address present only in the newer
	// snapshot
	ChangeAllocated
	// ChangeFreed marks a block whose freed flag flipped
	ChangeFreed
)

// String returns the string representation of the ChangeKind
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	case ChangePushed:
		return "pushed"
	case ChangePopped:
		return "popped"
	case ChangeAllocated:
		return "allocated"
	case ChangeFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// GlobalDelta is one change in the global/static segment
type GlobalDelta struct {
	Kind ChangeKind
	Name string
	Old  Value
	New  Value
}

// StackDelta is one change in the stack segment. Pushed and popped
// entries carry only the frame index and function name; variable entries
// name the variable and its values.
type StackDelta struct {
	Kind       ChangeKind
	FrameIndex int
	Function   string
	Variable   string
	Old        Value
	New        Value
}

// HeapDelta is one change in the heap segment
type HeapDelta struct {
	Kind     ChangeKind
	Address  uint64
	Size     uint64
	TypeName string
	Old      Value
	New      Value
}

// Diff is the structural change-set between two snapshots, grouped by
// memory region. An all-empty Diff means the snapshots are identical in
// every compared respect, which Empty reports explicitly.
type Diff struct {
	FromStep int
	ToStep   int
	Globals  []GlobalDelta
	Stack    []StackDelta
	Heap     []HeapDelta
}

// Empty reports whether no changes were detected in any region
func (d *Diff) Empty() bool {
	return len(d.Globals) == 0 && len(d.Stack) == 0 && len(d.Heap) == 0
}

// String renders the change-set as a human-readable report
func (d *Diff) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Changes from step %d to step %d\n", d.FromStep, d.ToStep)

	if d.Empty() {
		sb.WriteString("(no changes)\n")
		return sb.String()
	}

	if len(d.Globals) > 0 {
		sb.WriteString("Globals/Statics:\n")
		for _, g := range d.Globals {
			switch g.Kind {
			case ChangeAdded:
				fmt.Fprintf(&sb, "  + added global '%s' = %s\n", g.Name, g.New)
			case ChangeModified:
				fmt.Fprintf(&sb, "  ~ changed '%s': %s -> %s\n", g.Name, g.Old, g.New)
			case ChangeRemoved:
				fmt.Fprintf(&sb, "  - removed global '%s'\n", g.Name)
			}
		}
	}

	if len(d.Stack) > 0 {
		sb.WriteString("Stack:\n")
		for _, s := range d.Stack {
			switch s.Kind {
			case ChangePushed:
				fmt.Fprintf(&sb, "  + pushed frame: %s\n", s.Function)
			case ChangePopped:
				fmt.Fprintf(&sb, "  - popped frame: %s\n", s.Function)
			case ChangeAdded:
				fmt.Fprintf(&sb, "  + added %s::%s = %s\n", s.Function, s.Variable, s.New)
			case ChangeModified:
				fmt.Fprintf(&sb, "  ~ changed %s::%s: %s -> %s\n", s.Function, s.Variable, s.Old, s.New)
			}
		}
	}

	if len(d.Heap) > 0 {
		sb.WriteString("Heap:\n")
		for _, h := range d.Heap {
			switch h.Kind {
			case ChangeAllocated:
				fmt.Fprintf(&sb, "  + allocated %d bytes at 0x%x (%s)\n", h.Size, h.Address, h.TypeName)
			case ChangeFreed:
				fmt.Fprintf(&sb, "  - freed block at 0x%x\n", h.Address)
			case ChangeModified:
				fmt.Fprintf(&sb, "  ~ changed block at 0x%x: %s -> %s\n", h.Address, h.Old, h.New)
			}
		}
	}

	return sb.String()
}

// DiffSnapshots computes the structural change-set between two snapshots.
// It is a pure function over its inputs and mutates neither.
//
// Globals report additions, value changes, and removals by name. Stack
// frames are compared positionally, since frames are anonymous: frames
// beyond the shorter depth are pushes or pops, and frames common to both
// are compared variable by variable through the combined parameter+local
// view. The heap reports new allocations, freed-flag flips, and value
// changes of addresses non-freed in both snapshots.
func DiffSnapshots(old, new *MemorySnapshot) *Diff {
	d := &Diff{FromStep: old.stepID, ToStep: new.stepID}
	d.Globals = diffGlobals(old.globals, new.globals)
	d.Stack = diffStack(old.stack, new.stack)
	d.Heap = diffHeap(old.heap, new.heap)
	return d
}

func diffGlobals(old, new *GlobalStaticSegment) []GlobalDelta {
	var deltas []GlobalDelta

	for _, name := range new.Names() {
		newVar := new.vars[name]
		oldVar, ok := old.vars[name]
		if !ok {
			deltas = append(deltas, GlobalDelta{
				Kind: ChangeAdded,
				Name: name,
				New:  copyValue(newVar.Value),
			})
		} else if !valuesEqual(oldVar.Value, newVar.Value) {
			deltas = append(deltas, GlobalDelta{
				Kind: ChangeModified,
				Name: name,
				Old:  copyValue(oldVar.Value),
				New:  copyValue(newVar.Value),
			})
		}
	}

	for _, name := range old.Names() {
		if _, ok := new.vars[name]; !ok {
			oldVar := old.vars[name]
			deltas = append(deltas, GlobalDelta{
				Kind: ChangeRemoved,
				Name: name,
				Old:  copyValue(oldVar.Value),
			})
		}
	}

	return deltas
}

func diffStack(old, new *StackSegment) []StackDelta {
	var deltas []StackDelta

	oldDepth := old.Depth()
	newDepth := new.Depth()

	for i := oldDepth; i < newDepth; i++ {
		deltas = append(deltas, StackDelta{
			Kind:       ChangePushed,
			FrameIndex: i,
			Function:   new.frames[i].FunctionName,
		})
	}
	for i := newDepth; i < oldDepth; i++ {
		deltas = append(deltas, StackDelta{
			Kind:       ChangePopped,
			FrameIndex: i,
			Function:   old.frames[i].FunctionName,
		})
	}

	common := oldDepth
	if newDepth < common {
		common = newDepth
	}
	for i := 0; i < common; i++ {
		oldFrame := old.frames[i]
		newFrame := new.frames[i]
		oldVars := combinedView(oldFrame)

		for _, v := range newFrame.AllVariables() {
			oldVar, ok := oldVars[v.Name]
			if !ok {
				deltas = append(deltas, StackDelta{
					Kind:       ChangeAdded,
					FrameIndex: i,
					Function:   newFrame.FunctionName,
					Variable:   v.Name,
					New:        copyValue(v.Value),
				})
			} else if !valuesEqual(oldVar.Value, v.Value) {
				deltas = append(deltas, StackDelta{
					Kind:       ChangeModified,
					FrameIndex: i,
					Function:   newFrame.FunctionName,
					Variable:   v.Name,
					Old:        copyValue(oldVar.Value),
					New:        copyValue(v.Value),
				})
			}
		}
	}

	return deltas
}

func combinedView(f *StackFrame) map[string]Variable {
	combined := make(map[string]Variable, len(f.params)+len(f.locals))
	for name, v := range f.params {
		combined[name] = v
	}
	for name, v := range f.locals {
		combined[name] = v
	}
	return combined
}

func diffHeap(old, new *HeapSegment) []HeapDelta {
	var deltas []HeapDelta

	for _, addr := range new.Addresses() {
		newBlock := new.blocks[addr]
		oldBlock, ok := old.blocks[addr]
		if !ok {
			deltas = append(deltas, HeapDelta{
				Kind:     ChangeAllocated,
				Address:  addr,
				Size:     newBlock.Size,
				TypeName: newBlock.TypeName,
				New:      copyValue(newBlock.Value),
			})
			continue
		}
		if oldBlock.Freed != newBlock.Freed {
			if newBlock.Freed {
				deltas = append(deltas, HeapDelta{
					Kind:     ChangeFreed,
					Address:  addr,
					Size:     newBlock.Size,
					TypeName: newBlock.TypeName,
				})
			}
			continue
		}
		if !newBlock.Freed && !valuesEqual(oldBlock.Value, newBlock.Value) {
			deltas = append(deltas, HeapDelta{
				Kind:     ChangeModified,
				Address:  addr,
				Size:     newBlock.Size,
				TypeName: newBlock.TypeName,
				Old:      copyValue(oldBlock.Value),
				New:      copyValue(newBlock.Value),
			})
		}
	}

	return deltas
}
