// Package scenario loads declarative YAML descriptions of an initial
// program state: globals with values, type declarations, and optional
// CPU registers. A scenario file produces the step-zero snapshot that a
// simulation then advances with builders.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/willibrandon/MemStep/pkg/memory"
)

// File is the top-level scenario document
type File struct {
	Description string       `yaml:"description"`
	Step        int          `yaml:"step"`
	Globals     []GlobalDecl `yaml:"globals"`
	Types       TypeDecls    `yaml:"types"`
	CPU         *CPUDecl     `yaml:"cpu"`
}

// GlobalDecl declares one global or static variable
type GlobalDecl struct {
	Name    string      `yaml:"name"`
	Address uint64      `yaml:"address"`
	Type    string      `yaml:"type"`
	Storage string      `yaml:"storage"`
	Section string      `yaml:"section"`
	Value   interface{} `yaml:"value"`
}

// TypeDecls declares the struct, union, and typedef entries of the type
// registry
type TypeDecls struct {
	Structs  []TypeDecl        `yaml:"structs"`
	Unions   []TypeDecl        `yaml:"unions"`
	Typedefs map[string]string `yaml:"typedefs"`
}

// TypeDecl declares one struct or union type
type TypeDecl struct {
	Name   string      `yaml:"name"`
	Size   uint64      `yaml:"size"`
	Fields []FieldDecl `yaml:"fields"`
}

// FieldDecl declares one field of a struct or union
type FieldDecl struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Offset uint64 `yaml:"offset"`
}

// CPUDecl declares the optional register state
type CPUDecl struct {
	PC        uint64                 `yaml:"pc"`
	SP        uint64                 `yaml:"sp"`
	BP        uint64                 `yaml:"bp"`
	Registers map[string]interface{} `yaml:"registers"`
}

// Load reads and parses a scenario file into an initial snapshot
func Load(path string) (*memory.MemorySnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load scenario from %s: %w", path, err)
	}
	return s, nil
}

// Parse parses YAML scenario data into an initial snapshot
func Parse(data []byte) (*memory.MemorySnapshot, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return file.Snapshot()
}

// Snapshot converts the parsed document into an initial snapshot
func (f *File) Snapshot() (*memory.MemorySnapshot, error) {
	init := memory.InitialState{
		StepID:      f.Step,
		Description: f.Description,
	}

	for _, g := range f.Globals {
		storage, err := parseStorage(g.Storage)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", g.Name, err)
		}
		value, err := parseValue(g.Value)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", g.Name, err)
		}
		init.Globals = append(init.Globals,
			memory.NewGlobalVariable(g.Name, g.Address, value, g.Type, storage, g.Section))
	}

	types, err := f.Types.registry()
	if err != nil {
		return nil, err
	}
	init.Types = types

	if f.CPU != nil {
		cpu := &memory.CpuState{PC: f.CPU.PC, SP: f.CPU.SP, BP: f.CPU.BP}
		for name, raw := range f.CPU.Registers {
			value, err := parseValue(raw)
			if err != nil {
				return nil, fmt.Errorf("register %q: %w", name, err)
			}
			if cpu.Extra == nil {
				cpu.Extra = make(map[string]memory.Value)
			}
			cpu.Extra[name] = value
		}
		init.CPU = cpu
	}

	return memory.CreateInitialSnapshot(init), nil
}

func (t *TypeDecls) registry() (*memory.TypeRegistry, error) {
	r := memory.NewTypeRegistry()
	for _, decl := range t.Structs {
		r.RegisterStruct(memory.StructDescriptor{
			Name:   decl.Name,
			Fields: parseFields(decl.Fields),
			Size:   decl.Size,
		})
	}
	for _, decl := range t.Unions {
		r.RegisterUnion(memory.UnionDescriptor{
			Name:   decl.Name,
			Fields: parseFields(decl.Fields),
			Size:   decl.Size,
		})
	}
	for alias, target := range t.Typedefs {
		r.RegisterTypedef(alias, target)
	}
	return r, nil
}

func parseFields(decls []FieldDecl) []memory.FieldDescriptor {
	var out []memory.FieldDescriptor
	for _, d := range decls {
		out = append(out, memory.FieldDescriptor{Name: d.Name, TypeName: d.Type, Offset: d.Offset})
	}
	return out
}

func parseStorage(s string) (memory.StorageClass, error) {
	switch s {
	case "", "global":
		return memory.GlobalStorage, nil
	case "static":
		return memory.StaticStorage, nil
	default:
		return 0, fmt.Errorf("unknown storage class %q", s)
	}
}

// parseValue converts a decoded YAML node into a memory value. Scalars
// map to int, float, and string values. Mappings map to struct values,
// except for the pointer forms:
//
//	{points_to: 0x1000, target: int}
//	{null: true, target: int}
func parseValue(raw interface{}) (memory.Value, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int:
		return memory.IntValue(v), nil
	case int64:
		return memory.IntValue(v), nil
	case uint64:
		return memory.IntValue(int64(v)), nil
	case float64:
		return memory.FloatValue(v), nil
	case bool:
		if v {
			return memory.IntValue(1), nil
		}
		return memory.IntValue(0), nil
	case string:
		return memory.StringValue(v), nil
	case map[string]interface{}:
		return parseMapping(v)
	default:
		return nil, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func parseMapping(m map[string]interface{}) (memory.Value, error) {
	target, _ := m["target"].(string)

	if isNull, ok := m["null"].(bool); ok && isNull {
		return memory.NullPointer(target), nil
	}

	if rawAddr, ok := m["points_to"]; ok {
		addr, err := parseAddress(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("points_to: %w", err)
		}
		return memory.NewPointer(addr, target), nil
	}

	fields := make(memory.StructValue, len(m))
	for name, raw := range m {
		value, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = value
	}
	return fields, nil
}

func parseAddress(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative address %d", v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative address %d", v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	default:
		return 0, fmt.Errorf("address must be an integer, got %T", raw)
	}
}
