package vm

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

// testLight is a light with a fixed direction and colour at every point.
type testLight struct {
	l, cl   Triple
	ambient bool
}

func (l testLight) Ambient() bool { return l.ambient }

func (l testLight) Shade(ps []Triple) ([]Triple, []Triple, error) {
	L := make([]Triple, len(ps))
	Cl := make([]Triple, len(ps))
	for i := range ps {
		L[i], Cl[i] = l.l, l.cl
	}
	return L, Cl, nil
}

type testHost struct {
	NopHost
	lights  []LightSource
	comm    map[string]Data
	reports []error
}

func (h *testHost) Lights() []LightSource { return h.lights }

func (h *testHost) Comm(q CommQuery) (Data, bool) {
	d, ok := h.comm[q.Func+":"+q.Name]
	return d, ok
}

func (h *testHost) Report(err error) { h.reports = append(h.reports, err) }

func assemble(t *testing.T, text string) *Program {
	t.Helper()
	prog, err := Assemble("test.slx", text)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return prog
}

// runProgram assembles text and runs Init and Code over a w x h grid.
func runProgram(t *testing.T, text string, host Host, w, h int, setup func(*VM)) *VM {
	t.Helper()
	vm := New(assemble(t, text), host)
	if err := vm.Initialise(w, h); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	if setup != nil {
		setup(vm)
	}
	if err := vm.ExecuteInit(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := vm.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	return vm
}

func mustVar(t *testing.T, vm *VM, name string) Data {
	t.Helper()
	d, ok := vm.Variable(name)
	if !ok {
		t.Fatalf("variable %s not found", name)
	}
	return d
}

func mustSet(t *testing.T, vm *VM, name string, d Data) {
	t.Helper()
	if err := vm.SetVariable(name, d); err != nil {
		t.Fatalf("set %s: %v", name, err)
	}
}

func TestAddFloatsOnGrid(t *testing.T) {
	vm := runProgram(t, "surface add\nsegment Code\npushif 2.0\npushif 3.0\naddff\n", nil, 1, 1, nil)
	top, ok := vm.StackTop()
	if !ok {
		t.Fatal("empty stack")
	}
	if top.Varying || top.Kind != KindFloat || top.F[0] != 5 {
		t.Errorf("top = %s %v, want uniform float 5", top.Kind, top)
	}
	if vm.State() != Halted {
		t.Errorf("state = %s, want halted", vm.State())
	}
}

const lightLoop = `surface lit
segment Data
varying color acc
segment Code
init_illuminance
jz 1
:2
S_CLEAR
pushv P
illuminance
S_GET
S_JZ 3
RS_PUSH
RS_GET
RS_JZ 4
pushv acc
pushif 1
setfc
addcc
pop acc
:4
RS_POP
:3
advance_illuminance
jnz 2
:1
`

func TestIlluminanceLoop(t *testing.T) {
	tests := []struct {
		name   string
		lights []LightSource
		want   float64
	}{
		{"no lights", nil, 0},
		{"only ambient", []LightSource{testLight{cl: Triple{1, 1, 1}, ambient: true}}, 0},
		{"two lights", []LightSource{
			testLight{l: Triple{0, 0, 1}, cl: Triple{1, 0, 0}},
			testLight{l: Triple{0, 1, 0}, cl: Triple{0, 1, 0}},
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := runProgram(t, lightLoop, &testHost{lights: tt.lights}, 2, 2, nil)
			acc := mustVar(t, vm, "acc")
			for i := 0; i < vm.GridSize(); i++ {
				if got := acc.TripleAt(i)[0]; got != tt.want {
					t.Fatalf("acc[%d] = %v, want %v", i, got, tt.want)
				}
			}
			if vm.RSDepth() != 0 {
				t.Errorf("rs depth = %d after loop", vm.RSDepth())
			}
			if vm.StackDepth() != 0 {
				t.Errorf("stack depth = %d after loop", vm.StackDepth())
			}
		})
	}
}

func TestIlluminanceSetsLightVariables(t *testing.T) {
	host := &testHost{lights: []LightSource{testLight{l: Triple{0, 0, 2}, cl: Triple{0.5, 0.25, 1}}}}
	vm := runProgram(t, lightLoop, host, 1, 0, nil)
	L := mustVar(t, vm, "L")
	Cl := mustVar(t, vm, "Cl")
	if L.TripleAt(1) != (Triple{0, 0, 2}) || Cl.TripleAt(0) != (Triple{0.5, 0.25, 1}) {
		t.Errorf("L = %v, Cl = %v", L, Cl)
	}
}

// ifElse stores 1 into y where x > 2 and 2 elsewhere.
const ifElse = `surface branch
segment Data
varying float x
varying float y
segment Code
nop
pushv x
pushif 2
gtff
S_CLEAR
S_GET
RS_PUSH
RS_GET
RS_JZ 1
pushif 1
pop y
:1
RS_INVERSE
RS_JZ 2
pushif 2
pop y
:2
RS_POP
nop
`

// countUp increments i until it reaches n at every point.
const countUp = `surface loop
segment Data
varying float n
varying float i
segment Code
nop
RS_PUSH
:1
pushv i
pushv n
lsff
S_CLEAR
S_GET
RS_GET
RS_JZ 2
pushv i
pushif 1
addff
pop i
jmp 1
:2
RS_POP
nop
`

func TestVaryingControlFlow(t *testing.T) {
	t.Run("if else", func(t *testing.T) {
		vm := runProgram(t, ifElse, nil, 5, 0, func(vm *VM) {
			mustSet(t, vm, "x", Floats([]float64{0, 1, 2, 3, 4, 5}))
		})
		y := mustVar(t, vm, "y")
		want := []float64{2, 2, 2, 1, 1, 1}
		for i, w := range want {
			if y.F[i] != w {
				t.Errorf("y[%d] = %v, want %v", i, y.F[i], w)
			}
		}
	})
	t.Run("while", func(t *testing.T) {
		vm := runProgram(t, countUp, nil, 3, 0, func(vm *VM) {
			mustSet(t, vm, "n", Floats([]float64{0, 3, 1, 5}))
		})
		i := mustVar(t, vm, "i")
		for p, w := range []float64{0, 3, 1, 5} {
			if i.F[p] != w {
				t.Errorf("i[%d] = %v, want %v", p, i.F[p], w)
			}
		}
	})
}

// TestRunningStateDepth checks the running-state stack depth at the nop
// before and after each construct.
func TestRunningStateDepth(t *testing.T) {
	for name, text := range map[string]string{"if": ifElse, "while": countUp} {
		t.Run(name, func(t *testing.T) {
			prog := assemble(t, text)
			last := len(prog.Code.Code) - 1
			dbg := NewDebugger()
			dbg.SetBreakpoint("Code", 0)
			dbg.SetBreakpoint("Code", last)
			var depths []int
			dbg.OnStop = func(_ *Debugger, vm *VM, _ Breakpoint) error {
				depths = append(depths, vm.RSDepth())
				return nil
			}
			vm := New(prog, nil)
			vm.SetDebugger(dbg)
			if err := vm.Initialise(3, 0); err != nil {
				t.Fatal(err)
			}
			mustSet(t, vm, map[string]string{"if": "x", "while": "n"}[name], Floats([]float64{0, 3, 1, 5}))
			if err := vm.Execute(); err != nil {
				t.Fatal(err)
			}
			if len(depths) != 2 || depths[0] != depths[1] {
				t.Errorf("depths = %v, want two equal values", depths)
			}
		})
	}
}

func TestElementwiseArithmetic(t *testing.T) {
	a := []float64{1, -2, 3.5, 0, 7, 9}
	b := []float64{4, 0.5, -1, 2, 7, 3}
	ops := map[string]func(x, y float64) float64{
		"addff": func(x, y float64) float64 { return x + y },
		"subff": func(x, y float64) float64 { return x - y },
		"mulff": func(x, y float64) float64 { return x * y },
		"divff": func(x, y float64) float64 { return x / y },
		"lsff":  func(x, y float64) float64 { return boolFloat(x < y) },
		"eqff":  func(x, y float64) float64 { return boolFloat(x == y) },
	}
	for op, scalar := range ops {
		t.Run(op, func(t *testing.T) {
			text := "surface ew\nsegment Data\nvarying float a\nvarying float b\nvarying float r\n" +
				"segment Code\npushv a\npushv b\n" + op + "\npop r\n"
			vm := runProgram(t, text, nil, 2, 1, func(vm *VM) {
				mustSet(t, vm, "a", Floats(append([]float64(nil), a...)))
				mustSet(t, vm, "b", Floats(append([]float64(nil), b...)))
			})
			r := mustVar(t, vm, "r")
			for i := range a {
				if want := scalar(a[i], b[i]); r.F[i] != want {
					t.Errorf("%s[%d] = %v, want %v", op, i, r.F[i], want)
				}
			}
		})
	}
}

func TestUniformBroadcast(t *testing.T) {
	text := `surface mix
segment Data
varying color c
segment Code
pushif 0.5
setfc
pushv u
setfc
mulcc
pop c
`
	vm := runProgram(t, text, nil, 2, 0, func(vm *VM) {
		mustSet(t, vm, "u", Floats([]float64{0, 1, 2}))
	})
	c := mustVar(t, vm, "c")
	for i, want := range []float64{0, 0.5, 1} {
		if c.TripleAt(i) != (Triple{want, want, want}) {
			t.Errorf("c[%d] = %v", i, c.TripleAt(i))
		}
	}
}

func TestInitSegment(t *testing.T) {
	text := `surface params
segment Data
param uniform float Kd
param varying color tint
segment Init
pushif 0.75
pop Kd
pushif 0.2
pushif 0.4
pushif 0.6
settc
pop tint
segment Code
`
	vm := runProgram(t, text, nil, 2, 2, nil)
	if kd := mustVar(t, vm, "Kd"); kd.F[0] != 0.75 {
		t.Errorf("Kd = %v", kd)
	}
	tint := mustVar(t, vm, "tint")
	if tint.Len() != 9 || tint.TripleAt(8) != (Triple{0.6, 0.4, 0.2}) {
		t.Errorf("tint = %v", tint)
	}

	// Parameters survive re-initialisation at a new size.
	if err := vm.Initialise(1, 1); err != nil {
		t.Fatal(err)
	}
	if tint := mustVar(t, vm, "tint"); tint.Len() != 4 || tint.TripleAt(3) != (Triple{0.6, 0.4, 0.2}) {
		t.Errorf("tint after resize = %v", tint)
	}
}

func TestArrays(t *testing.T) {
	text := `surface arr
segment Data
uniform float table[3]
varying float r
segment Code
pushif 10
pushif 0
ipop table
pushif 20
pushif 1
ipop table
pushif 30
pushif 2
ipop table
pushv u
ipushv table
pop r
`
	host := &testHost{}
	vm := runProgram(t, text, host, 3, 0, func(vm *VM) {
		mustSet(t, vm, "u", Floats([]float64{0, 1, 2, 7}))
	})
	r := mustVar(t, vm, "r")
	for i, want := range []float64{10, 20, 30, 30} {
		if r.F[i] != want {
			t.Errorf("r[%d] = %v, want %v", i, r.F[i], want)
		}
	}
	if len(host.reports) != 1 {
		t.Errorf("reports = %v, want one clamp report", host.reports)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"underflow", "addff", ErrStackUnderflow},
		{"not array", "pushif 0\nipushv x", ErrNotArray},
		{"mismatch", "pushis \"a\"\npushif 1\naddff", ErrTypeMismatch},
		{"rs underflow", "RS_POP", errRSUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := New(assemble(t, "surface bad\nsegment Data\nvarying float x\nsegment Code\n"+tt.code+"\n"), nil)
			if err := vm.Initialise(1, 1); err != nil {
				t.Fatal(err)
			}
			err := vm.Execute()
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	t.Run("execute before initialise", func(t *testing.T) {
		vm := New(assemble(t, "surface s\nsegment Code\n"), nil)
		if err := vm.Execute(); !errors.Is(err, ErrBadState) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestCommLookups(t *testing.T) {
	text := `surface comm
segment Data
uniform float sides
uniform string name
varying float ok1
varying float ok2
segment Code
pushis "Sides"
attribute sides
pop ok1
pushis "missing"
option name
pop ok2
`
	host := &testHost{comm: map[string]Data{"attribute:Sides": Float(2)}}
	vm := runProgram(t, text, host, 1, 1, nil)
	if got := mustVar(t, vm, "sides"); got.F[0] != 2 {
		t.Errorf("sides = %v", got)
	}
	if mustVar(t, vm, "ok1").FloatAt(0) != 1 || mustVar(t, vm, "ok2").FloatAt(0) != 0 {
		t.Error("success flags wrong")
	}
	if len(host.reports) != 1 {
		t.Errorf("reports = %v", host.reports)
	}
}

func TestPrintf(t *testing.T) {
	text := "surface p\nsegment Code\npushif 3\npushis \"n=%f\\n\"\nprintf 2\n"
	vm := New(assemble(t, text), nil)
	var buf bytes.Buffer
	vm.SetOutput(&buf)
	if err := vm.Initialise(1, 0); err != nil {
		t.Fatal(err)
	}
	if err := vm.Execute(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "n=3\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDerivatives(t *testing.T) {
	text := `surface d
segment Data
varying float r
segment Code
pushv u
fDu
pop r
`
	vm := runProgram(t, text, nil, 2, 1, func(vm *VM) {
		// u grows by 0.5 along each row; du is the spacing.
		mustSet(t, vm, "u", Floats([]float64{0, 0.5, 1, 0, 0.5, 1}))
		mustSet(t, vm, "du", Float(0.5))
	})
	r := mustVar(t, vm, "r")
	for i := range r.F {
		if math.Abs(r.F[i]-1) > 1e-12 {
			t.Errorf("Du(u)[%d] = %v, want 1", i, r.F[i])
		}
	}
}

func TestNoiseRangeAndDeterminism(t *testing.T) {
	text := "surface n\nsegment Data\nvarying float r\nsegment Code\npushv P\nfnoise3\npop r\n"
	pts := make([]Triple, 16)
	for i := range pts {
		pts[i] = Triple{float64(i) * 0.37, float64(i) * 1.13, 0.5}
	}
	run := func() Data {
		return mustVar(t, runProgram(t, text, nil, 3, 3, func(vm *VM) {
			mustSet(t, vm, "P", Triples(append([]Triple(nil), pts...)))
		}), "r")
	}
	a, b := run(), run()
	for i := range a.F {
		if a.F[i] < 0 || a.F[i] > 1 {
			t.Errorf("noise[%d] = %v out of range", i, a.F[i])
		}
		if a.F[i] != b.F[i] {
			t.Errorf("noise[%d] differs between runs", i)
		}
	}
}

func TestDebuggerQuit(t *testing.T) {
	prog := assemble(t, "surface q\nsegment Code\npushif 1\ndrop\n")
	dbg := NewDebugger()
	var out bytes.Buffer
	dbg.Output = &out
	NewDebuggerCLI(dbg, NewReaderPrompter(strings.NewReader("stack\nstep\nquit\n"), &out))
	dbg.Step()
	vm := New(prog, nil)
	vm.SetDebugger(dbg)
	if err := vm.Initialise(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := vm.Execute(); !errors.Is(err, ErrDebuggerQuit) {
		t.Fatalf("err = %v, want quit", err)
	}
	if !strings.Contains(out.String(), "Code:0000: pushif 1") || !strings.Contains(out.String(), "stack: <empty>") {
		t.Errorf("output = %q", out.String())
	}
}
