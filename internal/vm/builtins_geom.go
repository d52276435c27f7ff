package vm

import (
	"fmt"
	"math"

	"github.com/funvibe/shadevm/internal/config"
)

func init() {
	for i, name := range []string{"xcomp", "ycomp", "zcomp"} {
		c := i
		register(name, func(vm *VM, _ []Instruction) error {
			v, err := vm.args(KindTriple)
			if err != nil {
				return err
			}
			vm.push(vm.mapFloat(v, func(i int) float64 { return v[0].TripleAt(i)[c] }))
			return nil
		})
		register("set"+name, opSetComponent(c), OperandVar)
	}

	register("length", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 { return v[0].TripleAt(i).Length() }))
		return nil
	})
	register("normalize", tripleFunc1(Triple.Normalize))
	register("distance", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 { return v[0].TripleAt(i).Sub(v[1].TripleAt(i)).Length() }))
		return nil
	})
	register("ptlined", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 {
			return segmentDistance(v[0].TripleAt(i), v[1].TripleAt(i), v[2].TripleAt(i))
		}))
		return nil
	})
	register("rotate", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindFloat, KindTriple, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple {
			p0, p1 := v[2].TripleAt(i), v[3].TripleAt(i)
			m := Rotation(v[1].FloatAt(i), p1.Sub(p0))
			return m.TransformPoint(v[0].TripleAt(i).Sub(p0)).Add(p0)
		}))
		return nil
	})
	register("faceforward", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple)
		if err != nil {
			return err
		}
		ng := vm.std[stdIndex["Ng"]].Value
		vals := append(v, ng)
		vm.push(vm.mapTriple(vals, func(i int) Triple {
			return faceforward(v[0].TripleAt(i), v[1].TripleAt(i), ng.TripleAt(i))
		}))
		return nil
	})
	register("faceforward2", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple {
			return faceforward(v[0].TripleAt(i), v[1].TripleAt(i), v[2].TripleAt(i))
		}))
		return nil
	})
	register("reflect", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple { return reflect(v[0].TripleAt(i), v[1].TripleAt(i)) }))
		return nil
	})
	register("refract", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple {
			return refract(v[0].TripleAt(i), v[1].TripleAt(i), v[2].FloatAt(i))
		}))
		return nil
	})
	register("fresnel", opFresnel(false), OperandVar, OperandVar)
	register("fresnel2", opFresnel(true), OperandVar, OperandVar, OperandVar, OperandVar)

	for _, t := range []struct {
		prefix string
		apply  func(Matrix, Triple) Triple
	}{
		{"", Matrix.TransformPoint},
		{"v", Matrix.TransformVector},
		{"n", Matrix.TransformNormal},
	} {
		register(t.prefix+"transform", opTransform(1, t.apply))
		register(t.prefix+"transform2", opTransform(2, t.apply))
		register(t.prefix+"transformm", opTransformMatrix(t.apply))
	}
	register("depth", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple)
		if err != nil {
			return err
		}
		m, _ := vm.spaceMatrix(config.CurrentSpace, config.CameraSpace)
		vm.push(vm.mapFloat(v, func(i int) float64 { return m.TransformPoint(v[0].TripleAt(i))[2] }))
		return nil
	})

	// Colour.
	register("comp", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 {
			return v[0].TripleAt(i)[clampIndex(v[1].FloatAt(i), 3)]
		}))
		return nil
	})
	register("setcomp", func(vm *VM, ops []Instruction) error {
		v, err := vm.args(KindFloat, KindFloat)
		if err != nil {
			return err
		}
		cur := vm.variable(ops[0].Var).Value
		vals := append(v, cur)
		return vm.output(ops[0], vm.mapTriple(vals, func(i int) Triple {
			t := cur.TripleAt(i)
			t[clampIndex(v[0].FloatAt(i), 3)] = v[1].FloatAt(i)
			return t
		}))
	}, OperandVar)
	register("ctransform", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindString, KindTriple)
		if err != nil {
			return err
		}
		return vm.colorTransform(v, config.RGBSpace, v[0].S[0], v[1])
	})
	register("ctransform2", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindString, KindString, KindTriple)
		if err != nil {
			return err
		}
		return vm.colorTransform(v, v[0].S[0], v[1].S[0], v[2])
	})

	// Matrix.
	register("mcomp", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindMatrix, KindFloat, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 {
			r, c := clampIndex(v[1].FloatAt(i), 4), clampIndex(v[2].FloatAt(i), 4)
			return v[0].MatrixAt(i)[r*4+c]
		}))
		return nil
	})
	register("msetcomp", func(vm *VM, ops []Instruction) error {
		v, err := vm.args(KindFloat, KindFloat, KindFloat)
		if err != nil {
			return err
		}
		cur := vm.variable(ops[0].Var).Value
		vals := append(v, cur)
		return vm.output(ops[0], vm.mapMatrix(vals, func(i int) Matrix {
			m := cur.MatrixAt(i)
			r, c := clampIndex(v[0].FloatAt(i), 4), clampIndex(v[1].FloatAt(i), 4)
			m[r*4+c] = v[2].FloatAt(i)
			return m
		}))
	}, OperandVar)
	register("determinant", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindMatrix)
		if err != nil {
			return err
		}
		vm.push(vm.mapFloat(v, func(i int) float64 { return v[0].MatrixAt(i).Determinant() }))
		return nil
	})
	register("translate", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindMatrix, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapMatrix(v, func(i int) Matrix { return Translation(v[1].TripleAt(i)).Mul(v[0].MatrixAt(i)) }))
		return nil
	})
	register("mrotate", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindMatrix, KindFloat, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapMatrix(v, func(i int) Matrix {
			return Rotation(v[1].FloatAt(i), v[2].TripleAt(i)).Mul(v[0].MatrixAt(i))
		}))
		return nil
	})
	register("scale", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindMatrix, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapMatrix(v, func(i int) Matrix { return Scaling(v[1].TripleAt(i)).Mul(v[0].MatrixAt(i)) }))
		return nil
	})
}

func clampIndex(f float64, n int) int {
	i := int(f)
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// output stores val into the variable named by a Var operand at the
// running points.
func (vm *VM) output(op Instruction, val Data) error {
	v := vm.variable(op.Var)
	if v.Decl.Type.Array {
		return fmt.Errorf("%w: output to array %s", ErrTypeMismatch, v.Decl.Name)
	}
	return vm.store(&v.Value, val)
}

func tripleFunc1(fn func(Triple) Triple) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple { return fn(v[0].TripleAt(i)) }))
		return nil
	}
}

func opSetComponent(c int) execFunc {
	return func(vm *VM, ops []Instruction) error {
		v, err := vm.args(KindFloat)
		if err != nil {
			return err
		}
		cur := vm.variable(ops[0].Var).Value
		vals := append(v, cur)
		return vm.output(ops[0], vm.mapTriple(vals, func(i int) Triple {
			t := cur.TripleAt(i)
			t[c] = v[0].FloatAt(i)
			return t
		}))
	}
}

func segmentDistance(p0, p1, q Triple) float64 {
	d := p1.Sub(p0)
	l2 := d.Dot(d)
	if l2 == 0 {
		return q.Sub(p0).Length()
	}
	t := clamp01(q.Sub(p0).Dot(d) / l2)
	return q.Sub(p0.Add(d.Scale(t))).Length()
}

func faceforward(n, i, ref Triple) Triple {
	if i.Scale(-1).Dot(ref) < 0 {
		return n.Scale(-1)
	}
	return n
}

func reflect(i, n Triple) Triple {
	return i.Sub(n.Scale(2 * i.Dot(n)))
}

// refract bends unit incident i through a surface with unit normal n and
// relative index eta; total internal reflection yields the zero vector.
func refract(i, n Triple, eta float64) Triple {
	c := i.Dot(n)
	k := 1 - eta*eta*(1-c*c)
	if k < 0 {
		return Triple{}
	}
	return i.Scale(eta).Sub(n.Scale(eta*c + math.Sqrt(k)))
}

// fresnel returns the reflected and transmitted fractions and directions
// for unit incident i, unit normal n and relative index eta.
func fresnel(i, n Triple, eta float64) (kr, kt float64, r, t Triple) {
	r = reflect(i, n)
	cosi := -i.Dot(n)
	sint2 := eta * eta * (1 - cosi*cosi)
	if sint2 >= 1 {
		return 1, 0, r, Triple{}
	}
	cost := math.Sqrt(1 - sint2)
	rs := (eta*cosi - cost) / (eta*cosi + cost)
	rp := (cosi - eta*cost) / (cosi + eta*cost)
	kr = (rs*rs + rp*rp) / 2
	return kr, 1 - kr, r, refract(i, n, eta)
}

func opFresnel(dirs bool) execFunc {
	return func(vm *VM, ops []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindFloat)
		if err != nil {
			return err
		}
		varying, n := vm.shape(v)
		kr, kt := Zero(KindFloat, varying, n), Zero(KindFloat, varying, n)
		r, t := Zero(KindTriple, varying, n), Zero(KindTriple, varying, n)
		for p := 0; p < n; p++ {
			kr.F[p], kt.F[p], r.T[p], t.T[p] = fresnel(v[0].TripleAt(p), v[1].TripleAt(p), v[2].FloatAt(p))
		}
		if err := vm.output(ops[0], kr); err != nil {
			return err
		}
		if err := vm.output(ops[1], kt); err != nil {
			return err
		}
		if !dirs {
			return nil
		}
		if err := vm.output(ops[2], r); err != nil {
			return err
		}
		return vm.output(ops[3], t)
	}
}

// opTransform converts a triple between named spaces. With one name the
// conversion is from current space into it.
func opTransform(names int, apply func(Matrix, Triple) Triple) execFunc {
	return func(vm *VM, _ []Instruction) error {
		kinds := append(repeat(KindString, names), KindTriple)
		v, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		from, to := config.CurrentSpace, v[0].S[0]
		if names == 2 {
			from, to = v[0].S[0], v[1].S[0]
		}
		val := v[names]
		m, ok := vm.spaceMatrix(from, to)
		if !ok {
			vm.push(val)
			return nil
		}
		vm.push(vm.mapTriple(v, func(i int) Triple { return apply(m, val.TripleAt(i)) }))
		return nil
	}
}

func opTransformMatrix(apply func(Matrix, Triple) Triple) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindMatrix, KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple { return apply(v[0].MatrixAt(i), v[1].TripleAt(i)) }))
		return nil
	}
}

func (vm *VM) colorTransform(args []Data, from, to string, c Data) error {
	in, ok := colorToRGB(from)
	if !ok {
		vm.report(fmt.Errorf("unknown colour space %q", from))
		vm.push(c)
		return nil
	}
	out, ok := colorFromRGB(to)
	if !ok {
		vm.report(fmt.Errorf("unknown colour space %q", to))
		vm.push(c)
		return nil
	}
	vm.push(vm.mapTriple(args, func(i int) Triple { return out(in(c.TripleAt(i))) }))
	return nil
}
