package memory

import (
	"errors"
	"testing"
)

func TestResolveTypeChain(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterTypedef("A", "B")
	r.RegisterTypedef("B", "C")
	r.RegisterTypedef("C", "int")

	resolved, err := r.ResolveType("A")
	if err != nil {
		t.Fatalf("Unexpected error resolving chain: %v", err)
	}
	if resolved != "int" {
		t.Errorf("Expected A to resolve to int, got %q", resolved)
	}
}

func TestResolveTypeNonTypedef(t *testing.T) {
	r := NewTypeRegistry()
	resolved, err := r.ResolveType("double")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resolved != "double" {
		t.Errorf("Expected non-typedef name to resolve to itself, got %q", resolved)
	}
}

func TestResolveTypeCycle(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterTypedef("A", "B")
	r.RegisterTypedef("B", "A")

	if _, err := r.ResolveType("A"); !errors.Is(err, ErrTypedefCycle) {
		t.Errorf("Expected ErrTypedefCycle, got %v", err)
	}

	// Self-referential typedef is the smallest cycle
	r2 := NewTypeRegistry()
	r2.RegisterTypedef("X", "X")
	if _, err := r2.ResolveType("X"); !errors.Is(err, ErrTypedefCycle) {
		t.Errorf("Expected ErrTypedefCycle for self-reference, got %v", err)
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterStruct(StructDescriptor{
		Name: "Point",
		Fields: []FieldDescriptor{
			{Name: "x", TypeName: "int", Offset: 0},
			{Name: "y", TypeName: "int", Offset: 4},
		},
		Size: 8,
	})
	r.RegisterUnion(UnionDescriptor{
		Name: "Number",
		Fields: []FieldDescriptor{
			{Name: "i", TypeName: "int", Offset: 0},
			{Name: "f", TypeName: "float", Offset: 0},
		},
		Size: 4,
	})

	s, ok := r.Struct("Point")
	if !ok {
		t.Fatal("Expected struct Point to be registered")
	}
	if len(s.Fields) != 2 || s.Size != 8 {
		t.Errorf("Unexpected struct descriptor: %+v", s)
	}

	u, ok := r.Union("Number")
	if !ok {
		t.Fatal("Expected union Number to be registered")
	}
	if len(u.Fields) != 2 {
		t.Errorf("Unexpected union descriptor: %+v", u)
	}

	if _, ok := r.Struct("Missing"); ok {
		t.Error("Expected lookup of unregistered struct to fail")
	}
}

func TestRegistryCopyIsIndependent(t *testing.T) {
	r := NewTypeRegistry()
	r.RegisterTypedef("u32", "unsigned int")

	copied := r.Copy()
	copied.RegisterTypedef("u64", "unsigned long")

	if _, ok := r.Typedef("u64"); ok {
		t.Error("Expected registering on the copy not to affect the original")
	}
	if _, ok := copied.Typedef("u32"); !ok {
		t.Error("Expected the copy to carry existing typedefs")
	}
}

func TestDescriptorFieldsAreIsolated(t *testing.T) {
	fields := []FieldDescriptor{{Name: "x", TypeName: "int", Offset: 0}}
	r := NewTypeRegistry()
	r.RegisterStruct(StructDescriptor{Name: "S", Fields: fields, Size: 4})

	// Mutating the caller's slice must not reach into the registry
	fields[0].Name = "hacked"

	s, _ := r.Struct("S")
	if s.Fields[0].Name != "x" {
		t.Errorf("Expected registered field name x, got %q", s.Fields[0].Name)
	}
}
