package memory

import (
	"fmt"
	"sort"
)

// FieldDescriptor describes one field within a struct or union type
type FieldDescriptor struct {
	Name     string
	TypeName string
	Offset   uint64
}

// StructDescriptor describes a struct type with its fields and total size
// in bytes
type StructDescriptor struct {
	Name   string
	Fields []FieldDescriptor
	Size   uint64
}

// UnionDescriptor describes a union type. All fields share offset 0 and
// Size is the size of the largest member.
type UnionDescriptor struct {
	Name   string
	Fields []FieldDescriptor
	Size   uint64
}

// TypeRegistry holds the user-defined types of the simulated program:
// structs, unions, and typedef aliases
type TypeRegistry struct {
	structs  map[string]StructDescriptor
	unions   map[string]UnionDescriptor
	typedefs map[string]string
}

// NewTypeRegistry creates an empty type registry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		structs:  make(map[string]StructDescriptor),
		unions:   make(map[string]UnionDescriptor),
		typedefs: make(map[string]string),
	}
}

// RegisterStruct registers or overwrites a struct type by name
func (r *TypeRegistry) RegisterStruct(desc StructDescriptor) {
	desc.Fields = copyFields(desc.Fields)
	r.structs[desc.Name] = desc
}

// RegisterUnion registers or overwrites a union type by name
func (r *TypeRegistry) RegisterUnion(desc UnionDescriptor) {
	desc.Fields = copyFields(desc.Fields)
	r.unions[desc.Name] = desc
}

// RegisterTypedef registers or overwrites a typedef alias
func (r *TypeRegistry) RegisterTypedef(alias, target string) {
	r.typedefs[alias] = target
}

// Struct returns the struct descriptor registered under name
func (r *TypeRegistry) Struct(name string) (StructDescriptor, bool) {
	desc, ok := r.structs[name]
	if ok {
		desc.Fields = copyFields(desc.Fields)
	}
	return desc, ok
}

// Union returns the union descriptor registered under name
func (r *TypeRegistry) Union(name string) (UnionDescriptor, bool) {
	desc, ok := r.unions[name]
	if ok {
		desc.Fields = copyFields(desc.Fields)
	}
	return desc, ok
}

// Typedef returns the immediate target of a typedef alias, without
// following the chain
func (r *TypeRegistry) Typedef(alias string) (string, bool) {
	target, ok := r.typedefs[alias]
	return target, ok
}

// StructNames returns the registered struct names in sorted order
func (r *TypeRegistry) StructNames() []string {
	return sortedKeys(r.structs)
}

// UnionNames returns the registered union names in sorted order
func (r *TypeRegistry) UnionNames() []string {
	return sortedKeys(r.unions)
}

// TypedefAliases returns the registered typedef aliases in sorted order
func (r *TypeRegistry) TypedefAliases() []string {
	return sortedKeys(r.typedefs)
}

// ResolveType follows the typedef chain until a non-typedef name is
// reached. A name that is not a typedef resolves to itself. A cycle in
// the typedef chain returns ErrTypedefCycle.
func (r *TypeRegistry) ResolveType(name string) (string, error) {
	seen := make(map[string]bool)
	for {
		target, ok := r.typedefs[name]
		if !ok {
			return name, nil
		}
		if seen[name] {
			return "", fmt.Errorf("resolve type %q: %w", name, ErrTypedefCycle)
		}
		seen[name] = true
		name = target
	}
}

// Copy returns a deep copy of the registry
func (r *TypeRegistry) Copy() *TypeRegistry {
	out := NewTypeRegistry()
	for name, desc := range r.structs {
		desc.Fields = copyFields(desc.Fields)
		out.structs[name] = desc
	}
	for name, desc := range r.unions {
		desc.Fields = copyFields(desc.Fields)
		out.unions[name] = desc
	}
	for alias, target := range r.typedefs {
		out.typedefs[alias] = target
	}
	return out
}

func copyFields(fields []FieldDescriptor) []FieldDescriptor {
	if fields == nil {
		return nil
	}
	out := make([]FieldDescriptor, len(fields))
	copy(out, fields)
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
