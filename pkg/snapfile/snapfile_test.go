package snapfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/willibrandon/MemStep/pkg/memory"
)

// richSnapshots builds a small two-step history exercising every wire
// field: storage classes, registered types, CPU registers, freed blocks
// with allocation sites, and frames with parameters and locals.
func richSnapshots(t *testing.T) []*memory.MemorySnapshot {
	t.Helper()

	types := memory.NewTypeRegistry()
	types.RegisterStruct(memory.StructDescriptor{
		Name: "point",
		Fields: []memory.FieldDescriptor{
			{Name: "x", TypeName: "int", Offset: 0},
			{Name: "y", TypeName: "int", Offset: 4},
		},
		Size: 8,
	})
	types.RegisterTypedef("coord_t", "point")

	base := memory.CreateInitialSnapshot(memory.InitialState{
		Globals: []memory.GlobalVariable{
			memory.NewGlobalVariable("g_count", 0x4040, memory.IntValue(42), "int", memory.GlobalStorage, ".data"),
			memory.NewGlobalVariable("s_hits", 0x4048, memory.IntValue(0), "int", memory.StaticStorage, ".bss"),
		},
		Types: types,
		CPU: &memory.CpuState{
			PC:    0x400100,
			SP:    0x7fff0000,
			Extra: map[string]memory.Value{"rax": memory.IntValue(7)},
		},
		Description: "program start",
	})

	b := memory.NewSnapshotBuilder(base).
		PushFrameWithOptions("main", memory.FrameOptions{ReturnAddress: 0x400050, FramePointer: 0x7ffeff00}).
		SetParameter("argc", memory.IntValue(1), "int")
	b, live := b.MallocWithOptions(8, "point",
		memory.StructValue{"x": memory.IntValue(3), "y": memory.IntValue(4)},
		memory.MallocOptions{Site: "main:12"})
	b, stale := b.Malloc(4, "int", memory.IntValue(9))
	b = b.SetLocal("p", memory.NewPointer(live, "point"), "point*").
		SetLocal("msg", memory.StringValue("hi"), "char*").
		Free(stale).
		SetPC(0x400120)
	next, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build snapshot: %v", err)
	}

	return []*memory.MemorySnapshot{base, next}
}

func snapshotsEquivalent(t *testing.T, want, got *memory.MemorySnapshot) {
	t.Helper()

	if d := memory.DiffSnapshots(want, got); !d.Empty() {
		t.Errorf("Expected identical memory state, got changes:\n%s", d.String())
	}
	if got.StepID() != want.StepID() {
		t.Errorf("Expected step %d, got %d", want.StepID(), got.StepID())
	}
	if got.Description() != want.Description() {
		t.Errorf("Expected description %q, got %q", want.Description(), got.Description())
	}
	if diff := cmp.Diff(want.Globals().Names(), got.Globals().Names()); diff != "" {
		t.Errorf("Global names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Heap().Addresses(), got.Heap().Addresses()); diff != "" {
		t.Errorf("Heap addresses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Types().StructNames(), got.Types().StructNames()); diff != "" {
		t.Errorf("Struct names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Types().TypedefAliases(), got.Types().TypedefAliases()); diff != "" {
		t.Errorf("Typedef aliases mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundtripZstd(t *testing.T) {
	snapshots := richSnapshots(t)
	path := filepath.Join(t.TempDir(), "trace.snap")

	if err := Save(path, snapshots); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(loaded) != len(snapshots) {
		t.Fatalf("Expected %d snapshots, got %d", len(snapshots), len(loaded))
	}
	for i := range snapshots {
		snapshotsEquivalent(t, snapshots[i], loaded[i])
	}
}

func TestRoundtripUncompressed(t *testing.T) {
	snapshots := richSnapshots(t)
	path := filepath.Join(t.TempDir(), "trace.snap")

	if err := SaveWithOptions(path, snapshots, Options{Compression: NoCompression}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// The file should be plain JSON lines
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte(`{"format":"memstep-snapshots"`)) {
		t.Errorf("Expected uncompressed header line, got %q", raw[:min(len(raw), 40)])
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	for i := range snapshots {
		snapshotsEquivalent(t, snapshots[i], loaded[i])
	}
}

func TestRoundtripPreservesFreedBlocks(t *testing.T) {
	snapshots := richSnapshots(t)
	path := filepath.Join(t.TempDir(), "trace.snap")

	if err := Save(path, snapshots); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	freed := loaded[1].Heap().FreedBlocks()
	if len(freed) != 1 {
		t.Fatalf("Expected 1 freed block, got %d", len(freed))
	}
	if !freed[0].Value.Equal(memory.IntValue(9)) {
		t.Errorf("Expected freed block to keep its last value, got %v", freed[0].Value)
	}

	live, ok := loaded[1].Heap().Block(0x1000)
	if !ok {
		t.Fatal("Expected live block at 0x1000")
	}
	if live.Site != "main:12" {
		t.Errorf("Expected allocation site to survive, got %q", live.Site)
	}
}

func TestRoundtripInMemory(t *testing.T) {
	snapshots := richSnapshots(t)

	var buf bytes.Buffer
	if err := Write(&buf, snapshots, Options{Compression: ZstdCompression}); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(loaded))
	}
	snapshotsEquivalent(t, snapshots[1], loaded[1])
}

func TestReadRejectsWrongFormat(t *testing.T) {
	_, err := Read(strings.NewReader(`{"format":"other","version":1,"count":0}` + "\n"))
	if err == nil || !strings.Contains(err.Error(), "unexpected file format") {
		t.Errorf("Expected format error, got %v", err)
	}
}

func TestReadRejectsWrongVersion(t *testing.T) {
	_, err := Read(strings.NewReader(`{"format":"memstep-snapshots","version":99,"count":0}` + "\n"))
	if err == nil || !strings.Contains(err.Error(), "unsupported format version") {
		t.Errorf("Expected version error, got %v", err)
	}
}

func TestReadRejectsCountMismatch(t *testing.T) {
	_, err := Read(strings.NewReader(`{"format":"memstep-snapshots","version":1,"count":3}` + "\n"))
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Errorf("Expected count mismatch error, got %v", err)
	}
}

func TestReadRejectsZeroAddressBlock(t *testing.T) {
	doc := `{"format":"memstep-snapshots","version":1,"count":1}
{"step":0,"heap":[{"address":0,"size":4,"type":"int","value":{"kind":"int","int":1}}]}
`
	_, err := Read(strings.NewReader(doc))
	if err == nil || !strings.Contains(err.Error(), "missing address") {
		t.Errorf("Expected missing address error, got %v", err)
	}
}

func TestSaveEmptySequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.snap")
	if err := Save(path, nil); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Expected no snapshots, got %d", len(loaded))
	}
}
