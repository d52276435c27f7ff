package vm

import (
	"fmt"
	"math"
)

// suffixKinds maps opcode type letters to storage layouts.
var suffixKinds = map[byte]Kind{
	'f': KindFloat,
	'p': KindTriple,
	'v': KindTriple,
	'n': KindTriple,
	'c': KindTriple,
	's': KindString,
	'm': KindMatrix,
}

const spatial = "pvn"

func init() {
	arith := []struct {
		name string
		f    func(a, b float64) float64
		mat  func(a, b Matrix) Matrix
	}{
		{"add", func(a, b float64) float64 { return a + b }, nil},
		{"sub", func(a, b float64) float64 { return a - b }, nil},
		{"mul", func(a, b float64) float64 { return a * b }, Matrix.Mul},
		{"div", func(a, b float64) float64 { return a / b }, matrixDiv},
	}
	for _, op := range arith {
		for _, pair := range arithPairs() {
			register(op.name+pair, binaryOp(suffixKinds[pair[0]], suffixKinds[pair[1]], op.f, op.mat))
		}
	}

	for _, a := range spatial {
		for _, b := range spatial {
			pair := string(a) + string(b)
			register("dot"+pair, opDot)
			register("crs"+pair, opCross)
		}
	}

	rel := []struct {
		name string
		f    func(a, b float64) bool
	}{
		{"ls", func(a, b float64) bool { return a < b }},
		{"le", func(a, b float64) bool { return a <= b }},
		{"gt", func(a, b float64) bool { return a > b }},
		{"ge", func(a, b float64) bool { return a >= b }},
	}
	for _, r := range rel {
		register(r.name+"ff", relational(r.f))
	}
	for _, pair := range equalityPairs() {
		register("eq"+pair, equality(suffixKinds[pair[0]], true))
		register("ne"+pair, equality(suffixKinds[pair[0]], false))
	}
	register("landff", logical(func(a, b bool) bool { return a && b }))
	register("lorff", logical(func(a, b bool) bool { return a || b }))
	register("notf", func(vm *VM, _ []Instruction) error {
		a, err := vm.args(KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(a, func(i int) float64 { return boolFloat(a[0].FloatAt(i) == 0) }))
		return nil
	})
	for _, s := range "fpvncm" {
		register("neg"+string(s), opNegate(suffixKinds[byte(s)]))
	}
	for _, s := range "fpvncsm" {
		register("merge"+string(s), opMerge(suffixKinds[byte(s)]))
	}
}

// arithPairs lists the operand suffix pairs that have arithmetic opcodes:
// equal types, mixes among point/vector/normal, and any type with float.
func arithPairs() []string {
	var out []string
	for _, s := range "fpvncm" {
		out = append(out, string(s)+string(s))
	}
	for _, a := range spatial {
		for _, b := range spatial {
			if a != b {
				out = append(out, string(a)+string(b))
			}
		}
	}
	for _, s := range "pvncm" {
		out = append(out, "f"+string(s), string(s)+"f")
	}
	return out
}

func equalityPairs() []string {
	var out []string
	for _, s := range "fpvncsm" {
		out = append(out, string(s)+string(s))
	}
	for _, a := range spatial {
		for _, b := range spatial {
			if a != b {
				out = append(out, string(a)+string(b))
			}
		}
	}
	return out
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// args pops len(kinds) values and checks their layouts. Element 0 of the
// result is the value that was on top of the stack.
func (vm *VM) args(kinds ...Kind) ([]Data, error) {
	vals, err := vm.popN(len(kinds))
	if err != nil {
		return nil, err
	}
	for i, k := range kinds {
		if vals[i].Kind != k {
			return nil, fmt.Errorf("%w: operand %d is %s, want %s", ErrTypeMismatch, i, vals[i].Kind, k)
		}
	}
	return vals, nil
}

// shape returns whether a result computed from args is varying and how
// many elements it has.
func (vm *VM) shape(args []Data) (bool, int) {
	for _, a := range args {
		if a.Varying {
			return true, vm.n
		}
	}
	return false, 1
}

func (vm *VM) mapFloat(args []Data, fn func(i int) float64) Data {
	varying, n := vm.shape(args)
	out := Zero(KindFloat, varying, n)
	for i := range out.F {
		out.F[i] = fn(i)
	}
	return out
}

func (vm *VM) mapTriple(args []Data, fn func(i int) Triple) Data {
	varying, n := vm.shape(args)
	out := Zero(KindTriple, varying, n)
	for i := range out.T {
		out.T[i] = fn(i)
	}
	return out
}

func (vm *VM) mapMatrix(args []Data, fn func(i int) Matrix) Data {
	varying, n := vm.shape(args)
	out := Zero(KindMatrix, varying, n)
	for i := range out.M {
		out.M[i] = fn(i)
	}
	return out
}

func (vm *VM) mapString(args []Data, fn func(i int) string) Data {
	varying, n := vm.shape(args)
	out := Zero(KindString, varying, n)
	for i := range out.S {
		out.S[i] = fn(i)
	}
	return out
}

// component returns component k of d at point i; floats broadcast.
func component(d Data, i, k int) float64 {
	switch d.Kind {
	case KindTriple:
		return d.TripleAt(i)[k]
	case KindMatrix:
		return d.MatrixAt(i)[k]
	}
	return d.FloatAt(i)
}

func matrixDiv(a, b Matrix) Matrix {
	inv, ok := b.Inverse()
	if !ok {
		return Matrix{}
	}
	return a.Mul(inv)
}

// binaryOp builds an arithmetic opcode. The right operand is on top.
// Two matrices use mat when given; everything else is componentwise with
// floats broadcast.
func binaryOp(ka, kb Kind, f func(a, b float64) float64, mat func(a, b Matrix) Matrix) execFunc {
	result := KindFloat
	switch {
	case ka == KindMatrix || kb == KindMatrix:
		result = KindMatrix
	case ka == KindTriple || kb == KindTriple:
		result = KindTriple
	}
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(kb, ka)
		if err != nil {
			return err
		}
		a, b := vals[1], vals[0]
		var out Data
		switch result {
		case KindFloat:
			out = vm.mapFloat(vals, func(i int) float64 { return f(a.FloatAt(i), b.FloatAt(i)) })
		case KindTriple:
			out = vm.mapTriple(vals, func(i int) Triple {
				var t Triple
				for k := range t {
					t[k] = f(component(a, i, k), component(b, i, k))
				}
				return t
			})
		default:
			if mat != nil && ka == KindMatrix && kb == KindMatrix {
				out = vm.mapMatrix(vals, func(i int) Matrix { return mat(a.MatrixAt(i), b.MatrixAt(i)) })
				break
			}
			out = vm.mapMatrix(vals, func(i int) Matrix {
				var m Matrix
				for k := range m {
					m[k] = f(component(a, i, k), component(b, i, k))
				}
				return m
			})
		}
		vm.push(out)
		return nil
	}
}

func opDot(vm *VM, _ []Instruction) error {
	vals, err := vm.args(KindTriple, KindTriple)
	if err != nil {
		return err
	}
	a, b := vals[1], vals[0]
	vm.push(vm.mapFloat(vals, func(i int) float64 { return a.TripleAt(i).Dot(b.TripleAt(i)) }))
	return nil
}

func opCross(vm *VM, _ []Instruction) error {
	vals, err := vm.args(KindTriple, KindTriple)
	if err != nil {
		return err
	}
	a, b := vals[1], vals[0]
	vm.push(vm.mapTriple(vals, func(i int) Triple { return a.TripleAt(i).Cross(b.TripleAt(i)) }))
	return nil
}

func relational(f func(a, b float64) bool) execFunc {
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(KindFloat, KindFloat)
		if err != nil {
			return err
		}
		a, b := vals[1], vals[0]
		vm.push(vm.mapFloat(vals, func(i int) float64 { return boolFloat(f(a.FloatAt(i), b.FloatAt(i))) }))
		return nil
	}
}

func equality(k Kind, want bool) execFunc {
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(k, k)
		if err != nil {
			return err
		}
		a, b := vals[1], vals[0]
		vm.push(vm.mapFloat(vals, func(i int) float64 {
			var eq bool
			switch k {
			case KindFloat:
				eq = a.FloatAt(i) == b.FloatAt(i)
			case KindTriple:
				eq = a.TripleAt(i) == b.TripleAt(i)
			case KindString:
				eq = a.StringAt(i) == b.StringAt(i)
			default:
				eq = a.MatrixAt(i) == b.MatrixAt(i)
			}
			return boolFloat(eq == want)
		}))
		return nil
	}
}

func logical(f func(a, b bool) bool) execFunc {
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(KindFloat, KindFloat)
		if err != nil {
			return err
		}
		a, b := vals[1], vals[0]
		vm.push(vm.mapFloat(vals, func(i int) float64 {
			return boolFloat(f(a.FloatAt(i) != 0, b.FloatAt(i) != 0))
		}))
		return nil
	}
}

func opNegate(k Kind) execFunc {
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(k)
		if err != nil {
			return err
		}
		a := vals[0]
		switch k {
		case KindFloat:
			vm.push(vm.mapFloat(vals, func(i int) float64 { return -a.FloatAt(i) }))
		case KindTriple:
			vm.push(vm.mapTriple(vals, func(i int) Triple { return a.TripleAt(i).Scale(-1) }))
		default:
			vm.push(vm.mapMatrix(vals, func(i int) Matrix {
				m := a.MatrixAt(i)
				for j := range m {
					m[j] = -m[j]
				}
				return m
			}))
		}
		return nil
	}
}

// opMerge pops a condition and two values and selects per point: the
// first value where the condition holds, the second elsewhere.
func opMerge(k Kind) execFunc {
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(KindFloat, k, k)
		if err != nil {
			return err
		}
		cond, a, b := vals[0], vals[1], vals[2]
		varying, n := vm.shape(vals)
		out := Zero(k, varying, n)
		for i := 0; i < n; i++ {
			if cond.FloatAt(i) != 0 {
				out.copyFrom(i, a, i)
			} else {
				out.copyFrom(i, b, i)
			}
		}
		vm.push(out)
		return nil
	}
}

// Casts.

func init() {
	for _, s := range "pvnc" {
		register("setf"+string(s), func(vm *VM, _ []Instruction) error {
			vals, err := vm.args(KindFloat)
			if err != nil {
				return err
			}
			f := vals[0]
			vm.push(vm.mapTriple(vals, func(i int) Triple {
				x := f.FloatAt(i)
				return Triple{x, x, x}
			}))
			return nil
		})
		register("sett"+string(s), opTuple(3))
	}
	register("setfm", func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(KindFloat)
		if err != nil {
			return err
		}
		f := vals[0]
		vm.push(vm.mapMatrix(vals, func(i int) Matrix {
			x := f.FloatAt(i)
			return Matrix{x, 0, 0, 0, 0, x, 0, 0, 0, 0, x, 0, 0, 0, 0, x}
		}))
		return nil
	})
	register("sethp", opTuple(4))
	register("setwm", opTuple(16))

	register("pfromspace", opFromSpace(Matrix.TransformPoint))
	register("vfromspace", opFromSpace(Matrix.TransformVector))
	register("nfromspace", opFromSpace(Matrix.TransformNormal))
	register("cfromspace", opColorFromSpace)
}

// opTuple pops n floats (element 0 on top) and builds a triple (n == 3),
// a homogeneous point divided through by w (n == 4) or a matrix (n == 16).
func opTuple(n int) execFunc {
	return func(vm *VM, _ []Instruction) error {
		kinds := make([]Kind, n)
		vals, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		switch n {
		case 3:
			vm.push(vm.mapTriple(vals, func(i int) Triple {
				return Triple{vals[0].FloatAt(i), vals[1].FloatAt(i), vals[2].FloatAt(i)}
			}))
		case 4:
			vm.push(vm.mapTriple(vals, func(i int) Triple {
				t := Triple{vals[0].FloatAt(i), vals[1].FloatAt(i), vals[2].FloatAt(i)}
				if w := vals[3].FloatAt(i); w != 0 {
					t = t.Scale(1 / w)
				}
				return t
			}))
		default:
			vm.push(vm.mapMatrix(vals, func(i int) Matrix {
				var m Matrix
				for k := range m {
					m[k] = vals[k].FloatAt(i)
				}
				return m
			}))
		}
		return nil
	}
}

// opFromSpace pops a space name and a triple and converts the triple from
// that space into current space.
func opFromSpace(apply func(Matrix, Triple) Triple) execFunc {
	return func(vm *VM, _ []Instruction) error {
		vals, err := vm.args(KindString, KindTriple)
		if err != nil {
			return err
		}
		space, val := vals[0], vals[1]
		if space.Varying {
			return fmt.Errorf("%w: varying space name", ErrTypeMismatch)
		}
		m, ok := vm.spaceMatrix(space.S[0], "current")
		if !ok {
			vm.push(val)
			return nil
		}
		vm.push(vm.mapTriple(vals, func(i int) Triple { return apply(m, val.TripleAt(i)) }))
		return nil
	}
}

func (vm *VM) spaceMatrix(from, to string) (Matrix, bool) {
	if from == to {
		return Identity, true
	}
	m, ok := vm.host.Transform(from, to)
	if !ok {
		vm.report(fmt.Errorf("unknown transform %q to %q", from, to))
	}
	return m, ok
}

func opColorFromSpace(vm *VM, _ []Instruction) error {
	vals, err := vm.args(KindString, KindTriple)
	if err != nil {
		return err
	}
	space, val := vals[0], vals[1]
	conv, ok := colorToRGB(space.S[0])
	if !ok {
		vm.report(fmt.Errorf("unknown colour space %q", space.S[0]))
		vm.push(val)
		return nil
	}
	vm.push(vm.mapTriple(vals, func(i int) Triple { return conv(val.TripleAt(i)) }))
	return nil
}

// clamp01 limits x to [0, 1].
func clamp01(x float64) float64 { return math.Max(0, math.Min(1, x)) }
