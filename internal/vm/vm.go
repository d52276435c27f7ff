package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/symbols"
)

var (
	ErrStackUnderflow = errors.New("stack underflow")
	ErrNotArray       = errors.New("indexed access to a non-array variable")
	ErrTypeMismatch   = errors.New("operand type mismatch")
	ErrBadState       = errors.New("operation not valid in this VM state")
)

// State is the VM lifecycle state.
type State uint8

const (
	Idle State = iota
	RunningInit
	RunningMain
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunningInit:
		return "running(init)"
	case RunningMain:
		return "running(main)"
	}
	return "halted"
}

// Variable is the storage of one declaration.
type Variable struct {
	Decl  VarDecl
	Value Data
	// Elems holds the elements of an array variable.
	Elems []Data
}

// VM executes one program over grids of points. A VM is not safe for
// concurrent use; each goroutine needs its own.
type VM struct {
	id       uuid.UUID
	prog     *Program
	host     Host
	out      io.Writer
	debugger *Debugger
	ctx      context.Context

	state         State
	n             int
	width, height int

	locals []*Variable
	std    []*Variable

	stack   []Data
	running Mask
	current Mask
	rs      []Mask

	// Light iteration for illuminance.
	lights     []LightSource
	lightIndex int

	rng *rand.Rand

	// Dispatch position.
	seg   *Segment
	pc    int
	next  int
	steps int
}

// New creates a VM for prog. A nil host behaves like NopHost.
func New(prog *Program, host Host) *VM {
	if host == nil {
		host = NopHost{}
	}
	vm := &VM{
		id:   uuid.New(),
		prog: prog,
		host: host,
		out:  os.Stdout,
		ctx:  context.Background(),
		rng:  rand.New(rand.NewPCG(0x5eed, 0xc0ffee)),
	}
	vm.locals = make([]*Variable, len(prog.Vars))
	for i, d := range prog.Vars {
		vm.locals[i] = &Variable{Decl: d}
	}
	vm.std = make([]*Variable, len(symbols.StandardVariables))
	for i, sv := range symbols.StandardVariables {
		vm.std[i] = &Variable{Decl: VarDecl{Name: sv.Name, Type: sv.Type}}
	}
	return vm
}

// ID identifies this VM instance in logs.
func (vm *VM) ID() uuid.UUID { return vm.id }

// Program returns the loaded program.
func (vm *VM) Program() *Program { return vm.prog }

// State returns the lifecycle state.
func (vm *VM) State() State { return vm.state }

// SetOutput redirects printf output.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// SetDebugger attaches d; nil detaches.
func (vm *VM) SetDebugger(d *Debugger) { vm.debugger = d }

// SetSeed reseeds the generator behind random().
func (vm *VM) SetSeed(seed uint64) {
	vm.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GridSize returns the number of points in the current grid.
func (vm *VM) GridSize() int { return vm.n }

// GridDims returns the grid's points per row and rows.
func (vm *VM) GridDims() (int, int) { return vm.width, vm.height }

// Initialise sizes the VM for a grid of (w+1)*(h+1) points. Parameters
// keep their values (broadcast to the new size when varying); every other
// variable is reset to zero.
func (vm *VM) Initialise(w, h int) error {
	if vm.state == RunningInit || vm.state == RunningMain {
		return fmt.Errorf("initialise: %w (%s)", ErrBadState, vm.state)
	}
	if w < 0 || h < 0 {
		return fmt.Errorf("initialise: bad grid %dx%d", w, h)
	}
	vm.width, vm.height = w+1, h+1
	vm.n = vm.width * vm.height
	for _, v := range vm.locals {
		keep := v.Decl.Type.Param && v.Value.Len() > 0
		vm.allocate(v, keep)
	}
	for _, v := range vm.std {
		vm.allocate(v, false)
	}
	vm.stack = vm.stack[:0]
	vm.rs = vm.rs[:0]
	vm.running = NewMask(vm.n, true)
	vm.current = NewMask(vm.n, false)
	vm.lights, vm.lightIndex = nil, 0
	vm.state = Idle
	logging.Logger().Debug("vm initialised", "vm", vm.id, "shader", vm.prog.Name, "points", vm.n)
	return nil
}

func (vm *VM) allocate(v *Variable, keep bool) {
	kind := KindOf(v.Decl.Type.Base)
	varying := v.Decl.Type.IsVarying()
	fresh := func(old Data) Data {
		if keep && old.Len() > 0 {
			if varying {
				return old.Broadcast(vm.n)
			}
			return old
		}
		return Zero(kind, varying, vm.n)
	}
	if v.Decl.Type.Array {
		if len(v.Elems) != v.Decl.ArrayLen {
			v.Elems = make([]Data, v.Decl.ArrayLen)
		}
		for i := range v.Elems {
			v.Elems[i] = fresh(v.Elems[i])
		}
		return
	}
	v.Value = fresh(v.Value)
}

// ExecuteInit runs the Init segment once, as a single-point grid. Stores
// into varying variables are broadcast to every point.
func (vm *VM) ExecuteInit() error {
	return vm.ExecuteInitContext(context.Background())
}

// ExecuteInitContext is ExecuteInit with cancellation.
func (vm *VM) ExecuteInitContext(ctx context.Context) error {
	if vm.n == 0 {
		return fmt.Errorf("execute init: %w (not initialised)", ErrBadState)
	}
	saveN, saveRunning := vm.n, vm.running
	vm.n = 1
	vm.running = NewMask(1, true)
	vm.current = NewMask(1, false)
	vm.state = RunningInit
	err := vm.run(ctx, &vm.prog.Init, config.SegmentInit)
	vm.n, vm.running = saveN, saveRunning
	vm.current = NewMask(vm.n, false)
	vm.stack = vm.stack[:0]
	vm.state = Idle
	if err != nil {
		vm.state = Halted
	}
	return err
}

// Execute runs the Code segment over the grid.
func (vm *VM) Execute() error {
	return vm.ExecuteContext(context.Background())
}

// ExecuteContext is Execute with cancellation, checked periodically.
func (vm *VM) ExecuteContext(ctx context.Context) error {
	if vm.n == 0 {
		return fmt.Errorf("execute: %w (not initialised)", ErrBadState)
	}
	vm.state = RunningMain
	vm.running = NewMask(vm.n, true)
	vm.current = NewMask(vm.n, false)
	vm.stack = vm.stack[:0]
	vm.rs = vm.rs[:0]
	err := vm.run(ctx, &vm.prog.Code, config.SegmentCode)
	vm.state = Halted
	if err == nil && len(vm.rs) != 0 {
		err = fmt.Errorf("execute: running-state stack depth %d at exit", len(vm.rs))
	}
	return err
}

const cancelCheckInterval = 1024

func (vm *VM) run(ctx context.Context, seg *Segment, name string) error {
	vm.ctx = ctx
	vm.seg = seg
	code := seg.Code
	for vm.pc = 0; vm.pc < len(code); vm.pc = vm.next {
		vm.steps++
		if vm.steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if vm.debugger != nil {
			if err := vm.debugger.hook(vm, name); err != nil {
				return err
			}
		}
		op := code[vm.pc].Op
		end := vm.pc + 1 + op.Arity()
		vm.next = end
		if err := op.exec(vm, code[vm.pc+1:end]); err != nil {
			return fmt.Errorf("%s:%04d %s: %w", name, vm.pc, op.Name, err)
		}
	}
	return nil
}

// Position returns the segment being executed and the offset of the
// current instruction.
func (vm *VM) Position() (*Segment, int) { return vm.seg, vm.pc }

func (vm *VM) push(d Data) { vm.stack = append(vm.stack, d) }

func (vm *VM) pop() (Data, error) {
	if len(vm.stack) == 0 {
		return Data{}, ErrStackUnderflow
	}
	d := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return d, nil
}

// popN pops n values; element 0 is the value that was on top.
func (vm *VM) popN(n int) ([]Data, error) {
	if len(vm.stack) < n {
		return nil, ErrStackUnderflow
	}
	out := make([]Data, n)
	for i := 0; i < n; i++ {
		out[i] = vm.stack[len(vm.stack)-1-i]
	}
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out, nil
}

func (vm *VM) popKind(k Kind) (Data, error) {
	d, err := vm.pop()
	if err != nil {
		return d, err
	}
	if d.Kind != k {
		return d, fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, k, d.Kind)
	}
	return d, nil
}

// StackDepth returns the number of values on the stack.
func (vm *VM) StackDepth() int { return len(vm.stack) }

// StackTop returns the value on top of the stack.
func (vm *VM) StackTop() (Data, bool) {
	if len(vm.stack) == 0 {
		return Data{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// Stack returns the stack, bottom first. The slice must not be modified.
func (vm *VM) Stack() []Data { return vm.stack }

// RSDepth returns the depth of the running-state stack.
func (vm *VM) RSDepth() int { return len(vm.rs) }

// Running returns a copy of the running-state mask.
func (vm *VM) Running() Mask { return vm.running.Clone() }

// Current returns a copy of the current-state mask.
func (vm *VM) Current() Mask { return vm.current.Clone() }

func (vm *VM) variable(ref VarRef) *Variable {
	if ref.Std {
		return vm.std[ref.Index]
	}
	return vm.locals[ref.Index]
}

func (vm *VM) lookup(name string) (*Variable, bool) {
	ref, ok := vm.prog.Lookup(name)
	if !ok {
		return nil, false
	}
	return vm.variable(ref), true
}

// Variable returns the value of a declared or standard variable. Array
// variables are not returned.
func (vm *VM) Variable(name string) (Data, bool) {
	v, ok := vm.lookup(name)
	if !ok || v.Decl.Type.Array {
		return Data{}, false
	}
	return v.Value, true
}

// Declaration returns how a variable is declared, for callers that convert
// external values to its type.
func (vm *VM) Declaration(name string) (VarDecl, bool) {
	v, ok := vm.lookup(name)
	if !ok {
		return VarDecl{}, false
	}
	return v.Decl, true
}

// SetVariable assigns a variable at every point, bypassing the running
// state. A uniform value given to a varying variable is broadcast; a
// varying value must have one element per point.
func (vm *VM) SetVariable(name string, d Data) error {
	v, ok := vm.lookup(name)
	if !ok {
		return fmt.Errorf("set %s: unknown variable", name)
	}
	if v.Decl.Type.Array {
		return fmt.Errorf("set %s: %w", name, ErrNotArray)
	}
	return vm.assignAll(v, &v.Value, d)
}

// SetArrayElement assigns one element of an array variable.
func (vm *VM) SetArrayElement(name string, i int, d Data) error {
	v, ok := vm.lookup(name)
	if !ok {
		return fmt.Errorf("set %s[%d]: unknown variable", name, i)
	}
	if !v.Decl.Type.Array {
		return fmt.Errorf("set %s[%d]: %w", name, i, ErrNotArray)
	}
	if i < 0 || i >= len(v.Elems) {
		return fmt.Errorf("set %s[%d]: index out of range", name, i)
	}
	return vm.assignAll(v, &v.Elems[i], d)
}

func (vm *VM) assignAll(v *Variable, dst *Data, d Data) error {
	kind := KindOf(v.Decl.Type.Base)
	if d.Kind != kind {
		return fmt.Errorf("set %s: %w: want %s, got %s", v.Decl.Name, ErrTypeMismatch, kind, d.Kind)
	}
	if !v.Decl.Type.IsVarying() {
		if d.Varying {
			return fmt.Errorf("set %s: %w: varying value for uniform variable", v.Decl.Name, ErrTypeMismatch)
		}
		*dst = d.Clone()
		return nil
	}
	if d.Varying && vm.n > 0 && d.Len() != vm.n {
		return fmt.Errorf("set %s: %d values for %d points", v.Decl.Name, d.Len(), vm.n)
	}
	if vm.n == 0 {
		*dst = d.Clone()
		return nil
	}
	*dst = d.Broadcast(vm.n)
	return nil
}

// store writes val into dst at the running points.
func (vm *VM) store(dst *Data, val Data) error {
	if dst.Kind != val.Kind {
		return fmt.Errorf("%w: store %s into %s", ErrTypeMismatch, val.Kind, dst.Kind)
	}
	if !dst.Varying {
		if val.Varying && vm.n > 1 {
			return fmt.Errorf("%w: varying value stored into uniform variable", ErrTypeMismatch)
		}
		if vm.running.Any() {
			dst.copyFrom(0, val, 0)
		}
		return nil
	}
	n := dst.Len()
	if n != vm.n {
		// Init pass: one point stands for the whole grid.
		for i := 0; i < n; i++ {
			dst.copyFrom(i, val, 0)
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if vm.running.Get(i) {
			dst.copyFrom(i, val, i)
		}
	}
	return nil
}

// report passes a recoverable condition to the host and the logger.
func (vm *VM) report(err error) {
	logging.Logger().Warn("shader runtime", "vm", vm.id, "shader", vm.prog.Name, "err", err)
	vm.host.Report(err)
}
