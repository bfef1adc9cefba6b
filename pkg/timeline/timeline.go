// Package timeline maintains an ordered history of memory snapshots with
// a position cursor for stepping forward and backward through execution
// states.
package timeline

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/willibrandon/MemStep/pkg/memory"
)

// diffCacheSize bounds the number of computed change-sets kept around
// while stepping back and forth
const diffCacheSize = 64

// Timeline is an append-only sequence of snapshots with a cursor.
// Snapshots are immutable, so the timeline never copies them; it only
// tracks order and position. Change-sets between adjacent entries are
// computed on demand and cached.
type Timeline struct {
	snapshots []*memory.MemorySnapshot
	position  int
	diffs     *lru.Cache
}

// New creates an empty timeline
func New() *Timeline {
	cache, _ := lru.New(diffCacheSize)
	return &Timeline{position: -1, diffs: cache}
}

// Append adds a snapshot to the end of the timeline. Step ids must be
// strictly increasing. Appending the first snapshot positions the cursor
// on it.
func (t *Timeline) Append(s *memory.MemorySnapshot) error {
	if s == nil {
		return fmt.Errorf("append: nil snapshot")
	}
	if n := len(t.snapshots); n > 0 && s.StepID() <= t.snapshots[n-1].StepID() {
		return fmt.Errorf("append: step id %d not after %d", s.StepID(), t.snapshots[n-1].StepID())
	}
	t.snapshots = append(t.snapshots, s)
	if t.position < 0 {
		t.position = 0
	}
	return nil
}

// Len returns the number of snapshots in the timeline
func (t *Timeline) Len() int { return len(t.snapshots) }

// Position returns the cursor index, or -1 for an empty timeline
func (t *Timeline) Position() int { return t.position }

// Current returns the snapshot under the cursor
func (t *Timeline) Current() (*memory.MemorySnapshot, error) {
	if t.position < 0 {
		return nil, fmt.Errorf("current: timeline is empty")
	}
	return t.snapshots[t.position], nil
}

// Snapshot returns the snapshot at the given index without moving the
// cursor
func (t *Timeline) Snapshot(index int) (*memory.MemorySnapshot, error) {
	if index < 0 || index >= len(t.snapshots) {
		return nil, fmt.Errorf("snapshot %d: index out of range", index)
	}
	return t.snapshots[index], nil
}

// StepForward advances the cursor by one and returns the new snapshot
func (t *Timeline) StepForward() (*memory.MemorySnapshot, error) {
	if t.position < 0 {
		return nil, fmt.Errorf("step forward: timeline is empty")
	}
	if t.position >= len(t.snapshots)-1 {
		return nil, fmt.Errorf("step forward: already at the end")
	}
	t.position++
	return t.snapshots[t.position], nil
}

// StepBackward moves the cursor back by one and returns the new snapshot
func (t *Timeline) StepBackward() (*memory.MemorySnapshot, error) {
	if t.position < 0 {
		return nil, fmt.Errorf("step backward: timeline is empty")
	}
	if t.position == 0 {
		return nil, fmt.Errorf("step backward: already at the beginning")
	}
	t.position--
	return t.snapshots[t.position], nil
}

// Seek moves the cursor to the given index and returns that snapshot
func (t *Timeline) Seek(index int) (*memory.MemorySnapshot, error) {
	s, err := t.Snapshot(index)
	if err != nil {
		return nil, err
	}
	t.position = index
	return s, nil
}

// DiffAt returns the change-set between entries index-1 and index.
// Results are cached; the timeline is append-only so a cached entry
// never goes stale.
func (t *Timeline) DiffAt(index int) (*memory.Diff, error) {
	if index <= 0 || index >= len(t.snapshots) {
		return nil, fmt.Errorf("diff at %d: no predecessor", index)
	}
	if cached, ok := t.diffs.Get(index); ok {
		return cached.(*memory.Diff), nil
	}
	d := memory.DiffSnapshots(t.snapshots[index-1], t.snapshots[index])
	t.diffs.Add(index, d)
	return d, nil
}

// CurrentDiff returns the change-set that produced the snapshot under
// the cursor
func (t *Timeline) CurrentDiff() (*memory.Diff, error) {
	return t.DiffAt(t.position)
}
