package memory

import (
	"fmt"
	"sort"
)

// HeapBlock is one allocation record. A freed block stays in the table
// with its size and type metadata intact so later leak and diff reports
// can still describe it; only its payload becomes inert.
type HeapBlock struct {
	Address  uint64
	Size     uint64
	Value    Value
	TypeName string
	Freed    bool
	// Site optionally records where the allocation happened, e.g. "main:5"
	Site string
}

// Copy returns a copy whose value shares no mutable state with the
// receiver's
func (b HeapBlock) Copy() HeapBlock {
	b.Value = copyValue(b.Value)
	return b
}

// HeapSegment is the address-keyed allocation table. Each address moves
// through at most one UNALLOCATED -> ALLOCATED -> FREED lifecycle per
// block; allocating again at a freed address records a new block, never a
// resurrection of the old one. Published snapshots expose the segment
// read-only; all mutation goes through a SnapshotBuilder.
type HeapSegment struct {
	blocks map[uint64]*HeapBlock
}

func newHeapSegment() *HeapSegment {
	return &HeapSegment{blocks: make(map[uint64]*HeapBlock)}
}

// Block returns the block at the given address, freed or not
func (h *HeapSegment) Block(address uint64) (HeapBlock, bool) {
	b, ok := h.blocks[address]
	if !ok {
		return HeapBlock{}, false
	}
	return b.Copy(), true
}

// Addresses returns all block addresses, freed included, in ascending
// order
func (h *HeapSegment) Addresses() []uint64 {
	addrs := make([]uint64, 0, len(h.blocks))
	for addr := range h.blocks {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Blocks returns all blocks in ascending address order
func (h *HeapSegment) Blocks() []HeapBlock {
	out := make([]HeapBlock, 0, len(h.blocks))
	for _, addr := range h.Addresses() {
		out = append(out, h.blocks[addr].Copy())
	}
	return out
}

// Allocated returns the non-freed blocks in ascending address order
func (h *HeapSegment) Allocated() []HeapBlock {
	var out []HeapBlock
	for _, addr := range h.Addresses() {
		if b := h.blocks[addr]; !b.Freed {
			out = append(out, b.Copy())
		}
	}
	return out
}

// FreedBlocks returns the freed blocks in ascending address order
func (h *HeapSegment) FreedBlocks() []HeapBlock {
	var out []HeapBlock
	for _, addr := range h.Addresses() {
		if b := h.blocks[addr]; b.Freed {
			out = append(out, b.Copy())
		}
	}
	return out
}

// Len returns the number of blocks in the table, freed included
func (h *HeapSegment) Len() int { return len(h.blocks) }

// TotalAllocatedSize returns the summed size of all non-freed blocks
func (h *HeapSegment) TotalAllocatedSize() uint64 {
	var total uint64
	for _, b := range h.blocks {
		if !b.Freed {
			total += b.Size
		}
	}
	return total
}

// FindLeaks returns every non-freed block whose address is absent from
// the supplied reachable set, in ascending address order.
//
// This is a leak reporting primitive, not a garbage collector: it only
// set-subtracts. The caller supplies the reachable set, typically from
// TraceReachable, but any root derivation works.
func (h *HeapSegment) FindLeaks(reachable map[uint64]bool) []HeapBlock {
	var out []HeapBlock
	for _, addr := range h.Addresses() {
		if b := h.blocks[addr]; !b.Freed && !reachable[addr] {
			out = append(out, b.Copy())
		}
	}
	return out
}

func (h *HeapSegment) hasBlock(address uint64) bool {
	_, ok := h.blocks[address]
	return ok
}

// allocate records a new block at the given address. An existing
// non-freed block at that address is a duplicate allocation; an existing
// freed block is replaced by the new record.
func (h *HeapSegment) allocate(address, size uint64, typeName string, initial Value, site string) error {
	if size == 0 {
		return fmt.Errorf("allocate at 0x%x: size must be positive", address)
	}
	if existing, ok := h.blocks[address]; ok && !existing.Freed {
		return fmt.Errorf("allocate at 0x%x: %w", address, ErrDuplicateAllocation)
	}
	if initial == nil {
		initial = IntValue(0)
	}
	h.blocks[address] = &HeapBlock{
		Address:  address,
		Size:     size,
		Value:    initial,
		TypeName: typeName,
		Site:     site,
	}
	return nil
}

// free transitions a block to FREED, keeping its metadata
func (h *HeapSegment) free(address uint64) error {
	b, ok := h.blocks[address]
	if !ok {
		return fmt.Errorf("free 0x%x: %w", address, ErrBlockNotFound)
	}
	if b.Freed {
		return fmt.Errorf("free 0x%x: %w", address, ErrDoubleFree)
	}
	b.Freed = true
	return nil
}

// write replaces the value of a live block
func (h *HeapSegment) write(address uint64, value Value) error {
	b, ok := h.blocks[address]
	if !ok {
		return fmt.Errorf("write 0x%x: %w", address, ErrBlockNotFound)
	}
	if b.Freed {
		return fmt.Errorf("write 0x%x: %w", address, ErrUseAfterFree)
	}
	b.Value = value
	return nil
}

// read returns the value of a live block
func (h *HeapSegment) read(address uint64) (Value, error) {
	b, ok := h.blocks[address]
	if !ok {
		return nil, fmt.Errorf("read 0x%x: %w", address, ErrBlockNotFound)
	}
	if b.Freed {
		return nil, fmt.Errorf("read 0x%x: %w", address, ErrUseAfterFree)
	}
	return copyValue(b.Value), nil
}

// copySegment returns a deep copy sharing no mutable state
func (h *HeapSegment) copySegment() *HeapSegment {
	out := newHeapSegment()
	for addr, b := range h.blocks {
		copied := b.Copy()
		out.blocks[addr] = &copied
	}
	return out
}
