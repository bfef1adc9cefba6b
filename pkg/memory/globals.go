package memory

import "fmt"

// StorageClass distinguishes a true global from a function- or file-scoped
// static
type StorageClass int

const (
	// GlobalStorage is an extern-visible global variable
	GlobalStorage StorageClass = iota
	// StaticStorage is a static variable
	StaticStorage
)

// String returns the string representation of the StorageClass
func (c StorageClass) String() string {
	switch c {
	case GlobalStorage:
		return "global"
	case StaticStorage:
		return "static"
	default:
		return "unknown"
	}
}

// Variable is a named, addressed slot holding one value. It is used for
// stack locals and parameters as well as globals.
type Variable struct {
	Name     string
	Address  uint64
	Value    Value
	TypeName string
}

// Copy returns a copy whose value shares no mutable state with the
// receiver's
func (v Variable) Copy() Variable {
	v.Value = copyValue(v.Value)
	return v
}

// GlobalVariable is a variable in the global/static segment. Beyond the
// common variable fields it records its storage class and the section it
// lives in (.data, .bss, .rodata).
type GlobalVariable struct {
	Variable
	Storage StorageClass
	Section string
}

// NewGlobalVariable constructs a global/static variable record
func NewGlobalVariable(name string, address uint64, value Value, typeName string, storage StorageClass, section string) GlobalVariable {
	return GlobalVariable{
		Variable: Variable{
			Name:     name,
			Address:  address,
			Value:    value,
			TypeName: typeName,
		},
		Storage: storage,
		Section: section,
	}
}

// Copy returns a copy whose value shares no mutable state with the
// receiver's
func (g GlobalVariable) Copy() GlobalVariable {
	g.Value = copyValue(g.Value)
	return g
}

// GlobalStaticSegment is the name-keyed table of global and static
// variables. Published snapshots expose it read-only; all mutation goes
// through a SnapshotBuilder.
type GlobalStaticSegment struct {
	vars map[string]GlobalVariable
}

func newGlobalStaticSegment() *GlobalStaticSegment {
	return &GlobalStaticSegment{vars: make(map[string]GlobalVariable)}
}

// Variable returns the variable registered under name, or false if absent
func (s *GlobalStaticSegment) Variable(name string) (GlobalVariable, bool) {
	g, ok := s.vars[name]
	if !ok {
		return GlobalVariable{}, false
	}
	return g.Copy(), true
}

// ByAddress returns the variable whose address matches, or false if none
// does. Names are the primary key; this is a linear scan.
func (s *GlobalStaticSegment) ByAddress(address uint64) (GlobalVariable, bool) {
	for _, name := range s.Names() {
		if g := s.vars[name]; g.Address == address {
			return g.Copy(), true
		}
	}
	return GlobalVariable{}, false
}

// Names returns the variable names in sorted order
func (s *GlobalStaticSegment) Names() []string {
	return sortedKeys(s.vars)
}

// Variables returns all variables in name order
func (s *GlobalStaticSegment) Variables() []GlobalVariable {
	out := make([]GlobalVariable, 0, len(s.vars))
	for _, name := range s.Names() {
		out = append(out, s.vars[name].Copy())
	}
	return out
}

// Len returns the number of variables in the segment
func (s *GlobalStaticSegment) Len() int { return len(s.vars) }

// set updates the value of an existing variable
func (s *GlobalStaticSegment) set(name string, value Value) error {
	g, ok := s.vars[name]
	if !ok {
		return fmt.Errorf("set global %q: %w", name, ErrUnknownGlobal)
	}
	g.Value = value
	s.vars[name] = g
	return nil
}

// add inserts or replaces a variable
func (s *GlobalStaticSegment) add(g GlobalVariable) {
	s.vars[g.Name] = g
}

// copySegment returns a deep copy sharing no mutable state
func (s *GlobalStaticSegment) copySegment() *GlobalStaticSegment {
	out := newGlobalStaticSegment()
	for name, g := range s.vars {
		out.vars[name] = g.Copy()
	}
	return out
}
