package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrDebuggerQuit aborts execution when the user quits the debugger.
var ErrDebuggerQuit = errors.New("debugger: quit")

// DebuggerMode is the current stepping mode.
type DebuggerMode int

const (
	// ModeRun stops only at breakpoints.
	ModeRun DebuggerMode = iota
	// ModeStep stops before every instruction.
	ModeStep
)

// Breakpoint is an instruction offset within a segment.
type Breakpoint struct {
	Segment string
	Offset  int
}

func (b Breakpoint) String() string { return fmt.Sprintf("%s:%04d", b.Segment, b.Offset) }

// Debugger stops the dispatch loop at breakpoints or after single steps
// and hands control to OnStop.
type Debugger struct {
	mode        DebuggerMode
	breakpoints map[Breakpoint]bool

	// OnStop is called when execution stops. A non-nil error (such as
	// ErrDebuggerQuit) aborts execution.
	OnStop func(*Debugger, *VM, Breakpoint) error

	Output io.Writer
}

// NewDebugger creates a debugger in run mode with no breakpoints.
func NewDebugger() *Debugger {
	return &Debugger{breakpoints: make(map[Breakpoint]bool), Output: os.Stdout}
}

// SetBreakpoint stops execution before the instruction at offset.
func (d *Debugger) SetBreakpoint(segment string, offset int) Breakpoint {
	bp := Breakpoint{Segment: segment, Offset: offset}
	d.breakpoints[bp] = true
	return bp
}

// RemoveBreakpoint deletes a breakpoint; it reports whether one existed.
func (d *Debugger) RemoveBreakpoint(segment string, offset int) bool {
	bp := Breakpoint{Segment: segment, Offset: offset}
	ok := d.breakpoints[bp]
	delete(d.breakpoints, bp)
	return ok
}

// Breakpoints returns the breakpoints ordered by segment and offset.
func (d *Debugger) Breakpoints() []Breakpoint {
	out := make([]Breakpoint, 0, len(d.breakpoints))
	for bp := range d.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Segment != out[j].Segment {
			return out[i].Segment < out[j].Segment
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// Step stops before the next instruction.
func (d *Debugger) Step() { d.mode = ModeStep }

// Continue runs until the next breakpoint.
func (d *Debugger) Continue() { d.mode = ModeRun }

// Mode returns the stepping mode.
func (d *Debugger) Mode() DebuggerMode { return d.mode }

func (d *Debugger) hook(vm *VM, segment string) error {
	at := Breakpoint{Segment: segment, Offset: vm.pc}
	if d.mode != ModeStep && !d.breakpoints[at] {
		return nil
	}
	if d.OnStop == nil {
		return nil
	}
	return d.OnStop(d, vm, at)
}

// PrintLocation writes the instruction about to execute.
func (d *Debugger) PrintLocation(vm *VM, at Breakpoint) {
	seg, pc := vm.Position()
	if seg == nil || pc >= len(seg.Code) {
		fmt.Fprintf(d.Output, "%s: <end>\n", at)
		return
	}
	op := seg.Code[pc].Op
	fmt.Fprintf(d.Output, "%s: %s\n", at, FormatInstruction(seg.Code[pc:pc+1+op.Arity()]))
}

// PrintStack writes the value stack, top first.
func (d *Debugger) PrintStack(vm *VM) {
	if len(vm.stack) == 0 {
		fmt.Fprintln(d.Output, "stack: <empty>")
		return
	}
	for i := len(vm.stack) - 1; i >= 0; i-- {
		v := vm.stack[i]
		fmt.Fprintf(d.Output, "  [%d] %s %s\n", len(vm.stack)-1-i, v.Kind, v)
	}
}

// PrintMasks writes the running and current state masks and the depth of
// the running-state stack.
func (d *Debugger) PrintMasks(vm *VM) {
	fmt.Fprintf(d.Output, "running %s (%d/%d)\n", vm.running, vm.running.Count(), vm.n)
	fmt.Fprintf(d.Output, "current %s\n", vm.current)
	fmt.Fprintf(d.Output, "rs depth %d\n", len(vm.rs))
}

// PrintVariables writes the program's declared variables.
func (d *Debugger) PrintVariables(vm *VM) {
	for _, v := range vm.locals {
		if v.Decl.Type.Array {
			fmt.Fprintf(d.Output, "  %s %s[%d]\n", v.Decl.Type.Element(), v.Decl.Name, len(v.Elems))
			for i, e := range v.Elems {
				fmt.Fprintf(d.Output, "    [%d] %s\n", i, e)
			}
			continue
		}
		fmt.Fprintf(d.Output, "  %s %s = %s\n", v.Decl.Type, v.Decl.Name, v.Value)
	}
}

// PrintVariable writes one variable by name.
func (d *Debugger) PrintVariable(vm *VM, name string) bool {
	v, ok := vm.lookup(name)
	if !ok {
		return false
	}
	if v.Decl.Type.Array {
		for i, e := range v.Elems {
			fmt.Fprintf(d.Output, "%s[%d] = %s\n", name, i, e)
		}
		return true
	}
	fmt.Fprintf(d.Output, "%s = %s\n", name, v.Value)
	return true
}
