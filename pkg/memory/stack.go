package memory

import "fmt"

// StackFrame holds the parameters and locals of one function call.
// Parameter and local names may collide; name lookup deterministically
// prefers the parameter.
//
// ReturnAddress and FramePointer are descriptive metadata; zero means not
// recorded.
type StackFrame struct {
	FunctionName  string
	ReturnAddress uint64
	FramePointer  uint64

	params map[string]Variable
	locals map[string]Variable
}

func newStackFrame(functionName string, returnAddress, framePointer uint64) *StackFrame {
	return &StackFrame{
		FunctionName:  functionName,
		ReturnAddress: returnAddress,
		FramePointer:  framePointer,
		params:        make(map[string]Variable),
		locals:        make(map[string]Variable),
	}
}

// Variable looks up a parameter or local by name, parameters first
func (f *StackFrame) Variable(name string) (Variable, bool) {
	if v, ok := f.params[name]; ok {
		return v.Copy(), true
	}
	if v, ok := f.locals[name]; ok {
		return v.Copy(), true
	}
	return Variable{}, false
}

// Parameters returns the frame's parameters in name order
func (f *StackFrame) Parameters() []Variable {
	return sortedVariables(f.params)
}

// Locals returns the frame's locals in name order
func (f *StackFrame) Locals() []Variable {
	return sortedVariables(f.locals)
}

// AllVariables returns the combined parameter and local view in name
// order. In the combined view a local shadows an equally-named parameter;
// single-name lookup via Variable prefers the parameter instead.
func (f *StackFrame) AllVariables() []Variable {
	combined := make(map[string]Variable, len(f.params)+len(f.locals))
	for name, v := range f.params {
		combined[name] = v
	}
	for name, v := range f.locals {
		combined[name] = v
	}
	return sortedVariables(combined)
}

func (f *StackFrame) setLocal(v Variable) {
	f.locals[v.Name] = v
}

func (f *StackFrame) setParameter(v Variable) {
	f.params[v.Name] = v
}

func (f *StackFrame) updateLocal(name string, value Value) error {
	v, ok := f.locals[name]
	if !ok {
		return fmt.Errorf("update local %q in frame %s: %w", name, f.FunctionName, ErrVariableNotFound)
	}
	v.Value = value
	f.locals[name] = v
	return nil
}

func (f *StackFrame) copyFrame() *StackFrame {
	out := newStackFrame(f.FunctionName, f.ReturnAddress, f.FramePointer)
	for name, v := range f.params {
		out.params[name] = v.Copy()
	}
	for name, v := range f.locals {
		out.locals[name] = v.Copy()
	}
	return out
}

func sortedVariables(m map[string]Variable) []Variable {
	out := make([]Variable, 0, len(m))
	for _, name := range sortedKeys(m) {
		out = append(out, m[name].Copy())
	}
	return out
}

// StackSegment is the ordered list of call frames. The last frame is the
// currently executing one. Published snapshots expose it read-only; all
// mutation goes through a SnapshotBuilder.
type StackSegment struct {
	frames []*StackFrame
}

func newStackSegment() *StackSegment {
	return &StackSegment{}
}

// Depth returns the number of frames on the stack
func (s *StackSegment) Depth() int { return len(s.frames) }

// Frame returns a copy of the frame at the given index, 0 being the
// bottom. Mutating the copy never affects the segment.
func (s *StackSegment) Frame(index int) (*StackFrame, bool) {
	if index < 0 || index >= len(s.frames) {
		return nil, false
	}
	return s.frames[index].copyFrame(), true
}

// CurrentFrame returns a copy of the topmost frame
func (s *StackSegment) CurrentFrame() (*StackFrame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1].copyFrame(), true
}

// Frames returns copies of the frames bottom to top
func (s *StackSegment) Frames() []*StackFrame {
	out := make([]*StackFrame, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.copyFrame()
	}
	return out
}

// FindVariable searches frames from top to bottom for a variable with the
// given name, returning the index of the first frame holding it. This is
// dynamic scoping across the call chain, not lexical scoping.
func (s *StackSegment) FindVariable(name string) (int, Variable, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].Variable(name); ok {
			return i, v, true
		}
	}
	return 0, Variable{}, false
}

func (s *StackSegment) push(f *StackFrame) {
	s.frames = append(s.frames, f)
}

func (s *StackSegment) pop() error {
	if len(s.frames) == 0 {
		return fmt.Errorf("pop frame: %w", ErrStackUnderflow)
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

func (s *StackSegment) top() (*StackFrame, error) {
	if len(s.frames) == 0 {
		return nil, ErrNoActiveFrame
	}
	return s.frames[len(s.frames)-1], nil
}

// copySegment returns a deep copy sharing no mutable state
func (s *StackSegment) copySegment() *StackSegment {
	out := newStackSegment()
	out.frames = make([]*StackFrame, len(s.frames))
	for i, f := range s.frames {
		out.frames[i] = f.copyFrame()
	}
	return out
}
