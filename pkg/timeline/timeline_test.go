package timeline

import (
	"strings"
	"testing"

	"github.com/willibrandon/MemStep/pkg/memory"
)

// history builds a 3-entry timeline: initial state, then g_count set to
// 1 and 2 on successive steps.
func history(t *testing.T) *Timeline {
	t.Helper()

	tl := New()
	snap := memory.CreateInitialSnapshot(memory.InitialState{
		Globals: []memory.GlobalVariable{
			memory.NewGlobalVariable("g_count", 0x4040, memory.IntValue(0), "int", memory.GlobalStorage, ".data"),
		},
	})
	if err := tl.Append(snap); err != nil {
		t.Fatalf("Failed to append initial snapshot: %v", err)
	}

	for i := 1; i <= 2; i++ {
		next, err := memory.NewSnapshotBuilder(snap).
			SetGlobal("g_count", memory.IntValue(int64(i))).
			Build()
		if err != nil {
			t.Fatalf("Failed to build snapshot %d: %v", i, err)
		}
		if err := tl.Append(next); err != nil {
			t.Fatalf("Failed to append snapshot %d: %v", i, err)
		}
		snap = next
	}
	return tl
}

func TestEmptyTimeline(t *testing.T) {
	tl := New()
	if tl.Len() != 0 {
		t.Errorf("Expected empty timeline, got length %d", tl.Len())
	}
	if tl.Position() != -1 {
		t.Errorf("Expected position -1, got %d", tl.Position())
	}
	if _, err := tl.Current(); err == nil {
		t.Error("Expected error from Current on empty timeline")
	}
	if _, err := tl.StepForward(); err == nil {
		t.Error("Expected error from StepForward on empty timeline")
	}
	if _, err := tl.StepBackward(); err == nil {
		t.Error("Expected error from StepBackward on empty timeline")
	}
}

func TestAppendPositionsFirstSnapshot(t *testing.T) {
	tl := history(t)
	if tl.Len() != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", tl.Len())
	}
	if tl.Position() != 0 {
		t.Errorf("Expected cursor on the first snapshot, got position %d", tl.Position())
	}
	cur, err := tl.Current()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cur.StepID() != 0 {
		t.Errorf("Expected step 0 under the cursor, got %d", cur.StepID())
	}
}

func TestAppendRejectsNilSnapshot(t *testing.T) {
	if err := New().Append(nil); err == nil {
		t.Error("Expected error appending nil snapshot")
	}
}

func TestAppendRejectsNonIncreasingStepIDs(t *testing.T) {
	tl := New()
	s := memory.CreateInitialSnapshot(memory.InitialState{StepID: 5})
	if err := tl.Append(s); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	same := memory.CreateInitialSnapshot(memory.InitialState{StepID: 5})
	if err := tl.Append(same); err == nil {
		t.Error("Expected error appending duplicate step id")
	}
	earlier := memory.CreateInitialSnapshot(memory.InitialState{StepID: 3})
	if err := tl.Append(earlier); err == nil {
		t.Error("Expected error appending earlier step id")
	}
	if tl.Len() != 1 {
		t.Errorf("Expected rejected snapshots to leave the timeline unchanged, got length %d", tl.Len())
	}
}

func TestStepForwardAndBackward(t *testing.T) {
	tl := history(t)

	s, err := tl.StepForward()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.StepID() != 1 || tl.Position() != 1 {
		t.Errorf("Expected step 1 at position 1, got step %d at %d", s.StepID(), tl.Position())
	}

	if _, err := tl.StepForward(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, err = tl.StepForward()
	if err == nil {
		t.Fatal("Expected error stepping past the end")
	}
	if !strings.Contains(err.Error(), "already at the end") {
		t.Errorf("Unexpected error message: %v", err)
	}
	if tl.Position() != 2 {
		t.Errorf("Expected cursor to stay put after failed step, got %d", tl.Position())
	}

	if _, err := tl.StepBackward(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := tl.StepBackward(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, err = tl.StepBackward()
	if err == nil {
		t.Fatal("Expected error stepping before the beginning")
	}
	if !strings.Contains(err.Error(), "already at the beginning") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestSeek(t *testing.T) {
	tl := history(t)

	s, err := tl.Seek(2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.StepID() != 2 || tl.Position() != 2 {
		t.Errorf("Expected step 2 at position 2, got step %d at %d", s.StepID(), tl.Position())
	}

	if _, err := tl.Seek(3); err == nil {
		t.Error("Expected error seeking out of range")
	}
	if _, err := tl.Seek(-1); err == nil {
		t.Error("Expected error seeking to a negative index")
	}
	if tl.Position() != 2 {
		t.Errorf("Expected failed seek to leave the cursor, got %d", tl.Position())
	}
}

func TestSnapshotDoesNotMoveCursor(t *testing.T) {
	tl := history(t)
	if _, err := tl.Snapshot(2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tl.Position() != 0 {
		t.Errorf("Expected cursor to stay at 0, got %d", tl.Position())
	}
}

func TestDiffAt(t *testing.T) {
	tl := history(t)

	d, err := tl.DiffAt(1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.FromStep != 0 || d.ToStep != 1 {
		t.Errorf("Expected change-set 0 -> 1, got %d -> %d", d.FromStep, d.ToStep)
	}
	if len(d.Globals) != 1 || !d.Globals[0].New.Equal(memory.IntValue(1)) {
		t.Errorf("Expected g_count change to 1, got %+v", d.Globals)
	}

	if _, err := tl.DiffAt(0); err == nil {
		t.Error("Expected error: the first snapshot has no predecessor")
	}
	if _, err := tl.DiffAt(3); err == nil {
		t.Error("Expected error for out-of-range index")
	}
}

func TestDiffAtCachesResult(t *testing.T) {
	tl := history(t)

	first, err := tl.DiffAt(2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := tl.DiffAt(2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first != second {
		t.Error("Expected the cached change-set on the second call")
	}
}

func TestCurrentDiff(t *testing.T) {
	tl := history(t)

	if _, err := tl.CurrentDiff(); err == nil {
		t.Error("Expected error: cursor on the first snapshot")
	}

	if _, err := tl.Seek(2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	d, err := tl.CurrentDiff()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.ToStep != 2 {
		t.Errorf("Expected change-set ending at step 2, got %d", d.ToStep)
	}
}
