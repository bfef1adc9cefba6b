package snapfile

import (
	"fmt"

	"github.com/willibrandon/MemStep/pkg/memory"
)

// Wire representation. Snapshots are rebuilt through the public factory
// and builder API, so a loaded snapshot obeys the same invariants as one
// constructed directly.

type valueJSON struct {
	Kind   string                `json:"kind"`
	Int    int64                 `json:"int,omitempty"`
	Float  float64               `json:"float,omitempty"`
	Str    string                `json:"str,omitempty"`
	Fields map[string]*valueJSON `json:"fields,omitempty"`
	Addr   uint64                `json:"addr,omitempty"`
	Target string                `json:"target,omitempty"`
	Null   bool                  `json:"null,omitempty"`
}

type variableJSON struct {
	Name    string     `json:"name"`
	Address uint64     `json:"address"`
	Type    string     `json:"type"`
	Value   *valueJSON `json:"value"`
}

type globalJSON struct {
	variableJSON
	Storage string `json:"storage"`
	Section string `json:"section"`
}

type blockJSON struct {
	Address uint64     `json:"address"`
	Size    uint64     `json:"size"`
	Type    string     `json:"type"`
	Value   *valueJSON `json:"value"`
	Freed   bool       `json:"freed,omitempty"`
	Site    string     `json:"site,omitempty"`
}

type frameJSON struct {
	Function      string         `json:"function"`
	ReturnAddress uint64         `json:"return_address,omitempty"`
	FramePointer  uint64         `json:"frame_pointer,omitempty"`
	Params        []variableJSON `json:"params,omitempty"`
	Locals        []variableJSON `json:"locals,omitempty"`
}

type fieldJSON struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset uint64 `json:"offset"`
}

type typeJSON struct {
	Name   string      `json:"name"`
	Fields []fieldJSON `json:"fields"`
	Size   uint64      `json:"size"`
}

type typesJSON struct {
	Structs  []typeJSON        `json:"structs,omitempty"`
	Unions   []typeJSON        `json:"unions,omitempty"`
	Typedefs map[string]string `json:"typedefs,omitempty"`
}

type cpuJSON struct {
	PC    uint64                `json:"pc,omitempty"`
	SP    uint64                `json:"sp,omitempty"`
	BP    uint64                `json:"bp,omitempty"`
	Extra map[string]*valueJSON `json:"extra,omitempty"`
}

type snapshotJSON struct {
	Step        int          `json:"step"`
	Description string       `json:"description,omitempty"`
	Globals     []globalJSON `json:"globals,omitempty"`
	Heap        []blockJSON  `json:"heap,omitempty"`
	Stack       []frameJSON  `json:"stack,omitempty"`
	Types       *typesJSON   `json:"types,omitempty"`
	CPU         *cpuJSON     `json:"cpu,omitempty"`
}

func encodeValue(v memory.Value) *valueJSON {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case memory.IntValue:
		return &valueJSON{Kind: "int", Int: int64(val)}
	case memory.FloatValue:
		return &valueJSON{Kind: "float", Float: float64(val)}
	case memory.StringValue:
		return &valueJSON{Kind: "string", Str: string(val)}
	case memory.StructValue:
		fields := make(map[string]*valueJSON, len(val))
		for name, field := range val {
			fields[name] = encodeValue(field)
		}
		return &valueJSON{Kind: "struct", Fields: fields}
	case memory.PointerValue:
		return &valueJSON{Kind: "pointer", Addr: val.Address, Target: val.TargetType, Null: val.Null}
	default:
		return nil
	}
}

func decodeValue(j *valueJSON) (memory.Value, error) {
	if j == nil {
		return nil, nil
	}
	switch j.Kind {
	case "int":
		return memory.IntValue(j.Int), nil
	case "float":
		return memory.FloatValue(j.Float), nil
	case "string":
		return memory.StringValue(j.Str), nil
	case "struct":
		fields := make(memory.StructValue, len(j.Fields))
		for name, field := range j.Fields {
			v, err := decodeValue(field)
			if err != nil {
				return nil, err
			}
			fields[name] = v
		}
		return fields, nil
	case "pointer":
		if j.Null {
			return memory.NullPointer(j.Target), nil
		}
		return memory.NewPointer(j.Addr, j.Target), nil
	default:
		return nil, fmt.Errorf("decode value: unknown kind %q", j.Kind)
	}
}

func encodeVariable(v memory.Variable) variableJSON {
	return variableJSON{
		Name:    v.Name,
		Address: v.Address,
		Type:    v.TypeName,
		Value:   encodeValue(v.Value),
	}
}

func encodeSnapshot(s *memory.MemorySnapshot) *snapshotJSON {
	out := &snapshotJSON{
		Step:        s.StepID(),
		Description: s.Description(),
	}

	for _, g := range s.Globals().Variables() {
		out.Globals = append(out.Globals, globalJSON{
			variableJSON: encodeVariable(g.Variable),
			Storage:      g.Storage.String(),
			Section:      g.Section,
		})
	}

	for _, b := range s.Heap().Blocks() {
		out.Heap = append(out.Heap, blockJSON{
			Address: b.Address,
			Size:    b.Size,
			Type:    b.TypeName,
			Value:   encodeValue(b.Value),
			Freed:   b.Freed,
			Site:    b.Site,
		})
	}

	for _, f := range s.Stack().Frames() {
		frame := frameJSON{
			Function:      f.FunctionName,
			ReturnAddress: f.ReturnAddress,
			FramePointer:  f.FramePointer,
		}
		for _, p := range f.Parameters() {
			frame.Params = append(frame.Params, encodeVariable(p))
		}
		for _, l := range f.Locals() {
			frame.Locals = append(frame.Locals, encodeVariable(l))
		}
		out.Stack = append(out.Stack, frame)
	}

	out.Types = encodeTypes(s.Types())
	out.CPU = encodeCPU(s.CPU())

	return out
}

func encodeTypes(r *memory.TypeRegistry) *typesJSON {
	out := &typesJSON{}
	for _, name := range r.StructNames() {
		desc, _ := r.Struct(name)
		out.Structs = append(out.Structs, encodeTypeDesc(desc.Name, desc.Fields, desc.Size))
	}
	for _, name := range r.UnionNames() {
		desc, _ := r.Union(name)
		out.Unions = append(out.Unions, encodeTypeDesc(desc.Name, desc.Fields, desc.Size))
	}
	for _, alias := range r.TypedefAliases() {
		target, _ := r.Typedef(alias)
		if out.Typedefs == nil {
			out.Typedefs = make(map[string]string)
		}
		out.Typedefs[alias] = target
	}
	if len(out.Structs) == 0 && len(out.Unions) == 0 && len(out.Typedefs) == 0 {
		return nil
	}
	return out
}

func encodeTypeDesc(name string, fields []memory.FieldDescriptor, size uint64) typeJSON {
	t := typeJSON{Name: name, Size: size}
	for _, f := range fields {
		t.Fields = append(t.Fields, fieldJSON{Name: f.Name, Type: f.TypeName, Offset: f.Offset})
	}
	return t
}

func encodeCPU(c *memory.CpuState) *cpuJSON {
	if c == nil {
		return nil
	}
	out := &cpuJSON{PC: c.PC, SP: c.SP, BP: c.BP}
	for name, v := range c.Extra {
		if out.Extra == nil {
			out.Extra = make(map[string]*valueJSON)
		}
		out.Extra[name] = encodeValue(v)
	}
	return out
}

func decodeSnapshot(j *snapshotJSON) (*memory.MemorySnapshot, error) {
	init := memory.InitialState{
		StepID:      j.Step,
		Description: j.Description,
	}

	for _, g := range j.Globals {
		value, err := decodeValue(g.Value)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", g.Name, err)
		}
		storage, err := decodeStorage(g.Storage)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", g.Name, err)
		}
		init.Globals = append(init.Globals,
			memory.NewGlobalVariable(g.Name, g.Address, value, g.Type, storage, g.Section))
	}

	if j.Types != nil {
		init.Types = decodeTypes(j.Types)
	}

	if j.CPU != nil {
		cpu := &memory.CpuState{PC: j.CPU.PC, SP: j.CPU.SP, BP: j.CPU.BP}
		for name, v := range j.CPU.Extra {
			value, err := decodeValue(v)
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

	// The factory seeds globals, types, and CPU state; heap and stack
	// content is replayed through the builder so every loaded snapshot
	// passes the same validation as a directly constructed one.
	b := memory.NewSnapshotBuilder(memory.CreateInitialSnapshot(init))

	for _, blk := range j.Heap {
		// Address 0 would select the builder's auto cursor instead of
		// the recorded address; no valid block is ever allocated there.
		if blk.Address == 0 {
			return nil, fmt.Errorf("heap block: missing address")
		}
		value, err := decodeValue(blk.Value)
		if err != nil {
			return nil, fmt.Errorf("heap block 0x%x: %w", blk.Address, err)
		}
		b, _ = b.MallocWithOptions(blk.Size, blk.Type, value, memory.MallocOptions{
			Address: blk.Address,
			Site:    blk.Site,
		})
		if blk.Freed {
			b = b.Free(blk.Address)
		}
	}

	for _, f := range j.Stack {
		b = b.PushFrameWithOptions(f.Function, memory.FrameOptions{
			ReturnAddress: f.ReturnAddress,
			FramePointer:  f.FramePointer,
		})
		for _, p := range f.Params {
			value, err := decodeValue(p.Value)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			b = b.SetParameterAt(p.Name, value, p.Type, p.Address)
		}
		for _, l := range f.Locals {
			value, err := decodeValue(l.Value)
			if err != nil {
				return nil, fmt.Errorf("local %q: %w", l.Name, err)
			}
			b = b.SetLocalAt(l.Name, value, l.Type, l.Address)
		}
	}

	snapshot, err := b.SetStep(j.Step, j.Description).Build()
	if err != nil {
		return nil, fmt.Errorf("rebuild snapshot %d: %w", j.Step, err)
	}
	return snapshot, nil
}

func decodeTypes(j *typesJSON) *memory.TypeRegistry {
	r := memory.NewTypeRegistry()
	for _, t := range j.Structs {
		r.RegisterStruct(memory.StructDescriptor{Name: t.Name, Fields: decodeFields(t.Fields), Size: t.Size})
	}
	for _, t := range j.Unions {
		r.RegisterUnion(memory.UnionDescriptor{Name: t.Name, Fields: decodeFields(t.Fields), Size: t.Size})
	}
	for alias, target := range j.Typedefs {
		r.RegisterTypedef(alias, target)
	}
	return r
}

func decodeFields(fields []fieldJSON) []memory.FieldDescriptor {
	var out []memory.FieldDescriptor
	for _, f := range fields {
		out = append(out, memory.FieldDescriptor{Name: f.Name, TypeName: f.Type, Offset: f.Offset})
	}
	return out
}

func decodeStorage(s string) (memory.StorageClass, error) {
	switch s {
	case "global":
		return memory.GlobalStorage, nil
	case "static":
		return memory.StaticStorage, nil
	default:
		return 0, fmt.Errorf("unknown storage class %q", s)
	}
}
