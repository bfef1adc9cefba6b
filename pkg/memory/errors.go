package memory

import "errors"

// Sentinel errors for invalid memory operations. Callers can match them
// with errors.Is; the wrapped error always carries the offending address
// or variable name.
var (
	// ErrStackUnderflow is returned when popping a frame from an empty stack
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrNoActiveFrame is returned when setting or reading a local or
	// parameter while no frame is on the stack
	ErrNoActiveFrame = errors.New("no active stack frame")

	// ErrVariableNotFound is returned when updating a variable that does
	// not exist in the relevant scope
	ErrVariableNotFound = errors.New("variable not found")

	// ErrDuplicateAllocation is returned when allocating at an address
	// already occupied by a non-freed block
	ErrDuplicateAllocation = errors.New("duplicate allocation")

	// ErrBlockNotFound is returned when freeing, reading, or writing an
	// address with no heap block
	ErrBlockNotFound = errors.New("heap block not found")

	// ErrDoubleFree is returned when freeing an already-freed block
	ErrDoubleFree = errors.New("double free")

	// ErrUseAfterFree is returned when reading or writing a freed block
	ErrUseAfterFree = errors.New("use after free")

	// ErrUnknownGlobal is returned when setting a global or static
	// variable that was never added
	ErrUnknownGlobal = errors.New("unknown global variable")

	// ErrTypedefCycle is returned when typedef resolution would never
	// terminate
	ErrTypedefCycle = errors.New("typedef cycle")

	// ErrBuilderConsumed is returned when a builder is used after Build
	ErrBuilderConsumed = errors.New("builder already consumed")
)
