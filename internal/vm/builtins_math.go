package vm

import (
	"fmt"
	"math"
)

func init() {
	for name, fn := range map[string]func(float64) float64{
		"radians":     func(x float64) float64 { return x * math.Pi / 180 },
		"degrees":     func(x float64) float64 { return x * 180 / math.Pi },
		"sin":         math.Sin,
		"asin":        math.Asin,
		"cos":         math.Cos,
		"acos":        math.Acos,
		"tan":         math.Tan,
		"atan":        math.Atan,
		"sqrt":        math.Sqrt,
		"inversesqrt": func(x float64) float64 { return 1 / math.Sqrt(x) },
		"exp":         math.Exp,
		"log":         math.Log,
		"abs":         math.Abs,
		"sign":        sign,
		"floor":       math.Floor,
		"ceil":        math.Ceil,
		"round":       math.Round,
	} {
		register(name, floatFunc1(fn))
	}
	for name, fn := range map[string]func(a, b float64) float64{
		"atan2": math.Atan2,
		"logb":  func(x, base float64) float64 { return math.Log(x) / math.Log(base) },
		"pow":   math.Pow,
		"mod": func(a, b float64) float64 {
			if b == 0 {
				return 0
			}
			return a - b*math.Floor(a/b)
		},
		"step":       func(edge, x float64) float64 { return boolFloat(x >= edge) },
		"filterstep": func(edge, x float64) float64 { return boolFloat(x >= edge) },
	} {
		register(name, floatFunc2(fn))
	}
	register("smoothstep", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindFloat, KindFloat, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 {
			return smoothstep(v[0].FloatAt(i), v[1].FloatAt(i), v[2].FloatAt(i))
		}))
		return nil
	})

	for _, s := range "fpvnc" {
		k := suffixKinds[byte(s)]
		register(string(s)+"min", opReduce(k, math.Min), OperandCount)
		register(string(s)+"max", opReduce(k, math.Max), OperandCount)
		register(string(s)+"clamp", opClamp(k))
		register(string(s)+"mix", opMix(k))
	}
	register("fspline", opSpline(KindFloat), OperandCount)
	for _, s := range "cpv" {
		register(string(s)+"spline", opSpline(KindTriple), OperandCount)
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func smoothstep(lo, hi, x float64) float64 {
	if x <= lo {
		return 0
	}
	if x >= hi {
		return 1
	}
	t := (x - lo) / (hi - lo)
	return t * t * (3 - 2*t)
}

func floatFunc1(fn func(float64) float64) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 { return fn(v[0].FloatAt(i)) }))
		return nil
	}
}

func floatFunc2(fn func(a, b float64) float64) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindFloat, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 { return fn(v[0].FloatAt(i), v[1].FloatAt(i)) }))
		return nil
	}
}

// componentwise combines same-layout float or triple arguments one
// component at a time.
func (vm *VM) componentwise(k Kind, vals []Data, fn func(i, c int) float64) Data {
	if k == KindFloat {
		return vm.mapFloat(vals, func(i int) float64 { return fn(i, 0) })
	}
	return vm.mapTriple(vals, func(i int) Triple {
		var t Triple
		for c := range t {
			t[c] = fn(i, c)
		}
		return t
	})
}

func repeat(k Kind, n int) []Kind {
	out := make([]Kind, n)
	for i := range out {
		out[i] = k
	}
	return out
}

// opReduce folds a variadic argument list with fn.
func opReduce(k Kind, fn func(a, b float64) float64) execFunc {
	return func(vm *VM, ops []Instruction) error {
		n := ops[0].Count
		if n < 1 {
			return fmt.Errorf("%w: no arguments", ErrStackUnderflow)
		}
		vals, err := vm.args(repeat(k, n)...)
		if err != nil {
			return err
		}
		vm.push(vm.componentwise(k, vals, func(i, c int) float64 {
			acc := component(vals[0], i, c)
			for _, v := range vals[1:] {
				acc = fn(acc, component(v, i, c))
			}
			return acc
		}))
		return nil
	}
}

func opClamp(k Kind) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(k, k, k)
		if err != nil {
			return err
		}
		vm.push(vm.componentwise(k, v, func(i, c int) float64 {
			return math.Min(math.Max(component(v[0], i, c), component(v[1], i, c)), component(v[2], i, c))
		}))
		return nil
	}
}

func opMix(k Kind) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(k, k, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.componentwise(k, v, func(i, c int) float64 {
			t := v[2].FloatAt(i)
			return component(v[0], i, c)*(1-t) + component(v[1], i, c)*t
		}))
		return nil
	}
}

// opSpline evaluates a Catmull-Rom spline through the knot arguments at
// the float parameter given first. Fewer than four knots repeat the ends.
func opSpline(k Kind) execFunc {
	return func(vm *VM, ops []Instruction) error {
		n := ops[0].Count
		if n < 2 {
			return fmt.Errorf("%w: spline needs a parameter and knots", ErrStackUnderflow)
		}
		vals, err := vm.args(append([]Kind{KindFloat}, repeat(k, n-1)...)...)
		if err != nil {
			return err
		}
		knots := vals[1:]
		for len(knots) < 4 {
			if len(knots)%2 == 0 {
				knots = append([]Data{knots[0]}, knots...)
			} else {
				knots = append(knots, knots[len(knots)-1])
			}
		}
		vm.push(vm.componentwise(k, vals, func(i, c int) float64 {
			return catmullRom(vals[0].FloatAt(i), len(knots), func(j int) float64 { return component(knots[j], i, c) })
		}))
		return nil
	}
}

func catmullRom(t float64, n int, knot func(int) float64) float64 {
	spans := n - 3
	x := clamp01(t) * float64(spans)
	span := int(x)
	if span >= spans {
		span = spans - 1
	}
	x -= float64(span)
	k0, k1, k2, k3 := knot(span), knot(span+1), knot(span+2), knot(span+3)
	c3 := -0.5*k0 + 1.5*k1 - 1.5*k2 + 0.5*k3
	c2 := k0 - 2.5*k1 + 2*k2 - 0.5*k3
	c1 := -0.5*k0 + 0.5*k2
	return ((c3*x+c2)*x+c1)*x + k1
}
