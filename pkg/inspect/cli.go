// Package inspect provides the interactive command loop for walking a
// snapshot timeline: stepping, seeking, and printing memory regions,
// change-sets, and leak reports.
package inspect

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/willibrandon/MemStep/pkg/memory"
	"github.com/willibrandon/MemStep/pkg/timeline"
)

// CLI represents the command-line interface for the inspector
type CLI struct {
	timeline *timeline.Timeline
	in       io.Reader
	out      io.Writer
	running  bool
}

// NewCLI creates a new CLI instance reading from stdin and writing to
// stdout
func NewCLI(tl *timeline.Timeline) *CLI {
	return NewCLIWithStreams(tl, os.Stdin, os.Stdout)
}

// NewCLIWithStreams creates a new CLI instance on the given streams
func NewCLIWithStreams(tl *timeline.Timeline, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		timeline: tl,
		in:       in,
		out:      out,
		running:  false,
	}
}

// Start begins the command loop
func (c *CLI) Start() {
	c.running = true
	reader := bufio.NewReader(c.in)

	fmt.Fprintln(c.out, "MemStep Inspector CLI")
	fmt.Fprintf(c.out, "%d snapshots loaded\n", c.timeline.Len())
	c.printHelp()

	for c.running {
		fmt.Fprint(c.out, "(memstep) ")
		input, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		c.handleCommand(input)
	}
}

// printHelp displays available commands
func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  step (s)          - Step forward one snapshot")
	fmt.Fprintln(c.out, "  backstep (b)      - Step backward one snapshot")
	fmt.Fprintln(c.out, "  seek <n>          - Jump to snapshot index n")
	fmt.Fprintln(c.out, "  info (i)          - Show the current snapshot")
	fmt.Fprintln(c.out, "  diff (d)          - Show changes that produced the current snapshot")
	fmt.Fprintln(c.out, "  globals (g)       - List global and static variables")
	fmt.Fprintln(c.out, "  stack (st)        - Show the call stack")
	fmt.Fprintln(c.out, "  heap (h)          - List heap blocks")
	fmt.Fprintln(c.out, "  leaks (l)         - Report unreachable heap blocks")
	fmt.Fprintln(c.out, "  pointers (p) <addr> - List variables pointing at addr")
	fmt.Fprintln(c.out, "\nGeneral commands:")
	fmt.Fprintln(c.out, "  help              - Show this help message")
	fmt.Fprintln(c.out, "  quit (q)          - Exit the inspector")
}

// handleCommand processes user input
func (c *CLI) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "help":
		c.printHelp()
	case "s", "step":
		c.handleStep()
	case "b", "backstep":
		c.handleBackstep()
	case "seek":
		c.handleSeek(args)
	case "i", "info":
		c.handleInfo()
	case "d", "diff":
		c.handleDiff()
	case "g", "globals":
		c.handleGlobals()
	case "st", "stack":
		c.handleStack()
	case "h", "heap":
		c.handleHeap()
	case "l", "leaks":
		c.handleLeaks()
	case "p", "pointers":
		c.handlePointers(args)
	case "q", "quit", "exit":
		c.running = false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n", cmd)
		c.printHelp()
	}
}

// formatSnapshot returns a one-line description of a snapshot
func (c *CLI) formatSnapshot(s *memory.MemorySnapshot) string {
	return fmt.Sprintf("[%d/%d] Step %d: %s",
		c.timeline.Position(), c.timeline.Len()-1, s.StepID(), s.Description())
}

// handleStep advances the cursor by one snapshot
func (c *CLI) handleStep() {
	s, err := c.timeline.StepForward()
	if err != nil {
		fmt.Fprintf(c.out, "Error stepping forward: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Stepped to: %s\n", c.formatSnapshot(s))
}

// handleBackstep steps backward one snapshot
func (c *CLI) handleBackstep() {
	s, err := c.timeline.StepBackward()
	if err != nil {
		fmt.Fprintf(c.out, "Error stepping backward: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Stepped back to: %s\n", c.formatSnapshot(s))
}

// handleSeek jumps the cursor to the given index
func (c *CLI) handleSeek(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: seek <index>")
		return
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid index: %v\n", err)
		return
	}
	s, err := c.timeline.Seek(index)
	if err != nil {
		fmt.Fprintf(c.out, "Error seeking: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Now at: %s\n", c.formatSnapshot(s))
}

// handleInfo shows the current snapshot
func (c *CLI) handleInfo() {
	s, err := c.timeline.Current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "\nCurrent snapshot: %s\n", c.formatSnapshot(s))
	fmt.Fprintf(c.out, "  Globals: %d\n", s.Globals().Len())
	fmt.Fprintf(c.out, "  Stack depth: %d\n", s.Stack().Depth())
	fmt.Fprintf(c.out, "  Heap blocks: %d (%d bytes live)\n",
		s.Heap().Len(), s.Heap().TotalAllocatedSize())
	if cpu := s.CPU(); cpu != nil {
		fmt.Fprintf(c.out, "  CPU: pc=0x%x sp=0x%x bp=0x%x\n", cpu.PC, cpu.SP, cpu.BP)
	}
}

// handleDiff shows the change-set that produced the current snapshot
func (c *CLI) handleDiff() {
	d, err := c.timeline.CurrentDiff()
	if err != nil {
		fmt.Fprintf(c.out, "Error computing changes: %v\n", err)
		return
	}
	fmt.Fprint(c.out, d.String())
}

// handleGlobals lists global and static variables
func (c *CLI) handleGlobals() {
	s, err := c.timeline.Current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	globals := s.Globals().Variables()
	if len(globals) == 0 {
		fmt.Fprintln(c.out, "No globals")
		return
	}
	fmt.Fprintln(c.out, "\nGlobals/Statics:")
	for _, g := range globals {
		fmt.Fprintf(c.out, "  0x%x %s %s %s = %s (%s)\n",
			g.Address, g.Storage, g.TypeName, g.Name, g.Value, g.Section)
	}
}

// handleStack shows the call stack, innermost frame last
func (c *CLI) handleStack() {
	s, err := c.timeline.Current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	frames := s.Stack().Frames()
	if len(frames) == 0 {
		fmt.Fprintln(c.out, "Stack is empty")
		return
	}
	fmt.Fprintln(c.out, "\nStack:")
	for i, f := range frames {
		fmt.Fprintf(c.out, "  #%d %s\n", i, f.FunctionName)
		for _, p := range f.Parameters() {
			fmt.Fprintf(c.out, "      param 0x%x %s %s = %s\n", p.Address, p.TypeName, p.Name, p.Value)
		}
		for _, l := range f.Locals() {
			fmt.Fprintf(c.out, "      local 0x%x %s %s = %s\n", l.Address, l.TypeName, l.Name, l.Value)
		}
	}
}

// handleHeap lists heap blocks in address order
func (c *CLI) handleHeap() {
	s, err := c.timeline.Current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	blocks := s.Heap().Blocks()
	if len(blocks) == 0 {
		fmt.Fprintln(c.out, "Heap is empty")
		return
	}
	fmt.Fprintln(c.out, "\nHeap:")
	for _, b := range blocks {
		status := "live"
		if b.Freed {
			status = "freed"
		}
		fmt.Fprintf(c.out, "  0x%x %d bytes %s [%s] = %s", b.Address, b.Size, b.TypeName, status, b.Value)
		if b.Site != "" {
			fmt.Fprintf(c.out, " (allocated at %s)", b.Site)
		}
		fmt.Fprintln(c.out)
	}
}

// handleLeaks reports unreachable heap blocks
func (c *CLI) handleLeaks() {
	s, err := c.timeline.Current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	leaks := s.Leaks()
	if len(leaks) == 0 {
		fmt.Fprintln(c.out, "No leaks detected")
		return
	}
	fmt.Fprintf(c.out, "\n%d leaked blocks:\n", len(leaks))
	for _, b := range leaks {
		fmt.Fprintf(c.out, "  0x%x %d bytes (%s)", b.Address, b.Size, b.TypeName)
		if b.Site != "" {
			fmt.Fprintf(c.out, " allocated at %s", b.Site)
		}
		fmt.Fprintln(c.out)
	}
}

// handlePointers lists every variable pointing at the given address
func (c *CLI) handlePointers(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: pointers <address>")
		return
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid address: %v\n", err)
		return
	}
	s, err := c.timeline.Current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	refs := s.PointersTo(addr)
	if len(refs) == 0 {
		fmt.Fprintf(c.out, "No pointers to 0x%x\n", addr)
		return
	}
	fmt.Fprintf(c.out, "Pointers to 0x%x:\n", addr)
	for _, ref := range refs {
		fmt.Fprintf(c.out, "  %s\n", ref.Location)
	}
}
