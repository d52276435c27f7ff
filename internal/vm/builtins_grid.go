package vm

// Derivatives are finite differences between neighbouring grid points:
// forward along each axis, backward on the last column or row. Points
// are laid out row by row, u varying fastest.

func init() {
	register("fDu", opDerivative(KindFloat, true))
	register("cDu", opDerivative(KindTriple, true))
	register("pDu", opDerivative(KindTriple, true))
	register("fDv", opDerivative(KindFloat, false))
	register("cDv", opDerivative(KindTriple, false))
	register("pDv", opDerivative(KindTriple, false))
	register("fDeriv", opDeriv(KindFloat))
	register("cDeriv", opDeriv(KindTriple))
	register("pDeriv", opDeriv(KindTriple))
	register("area", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.gridMap(func(i int) Triple {
			a0, a1 := vm.neighbours(i, true)
			b0, b1 := vm.neighbours(i, false)
			p := v[0]
			du := p.TripleAt(a1).Sub(p.TripleAt(a0))
			dv := p.TripleAt(b1).Sub(p.TripleAt(b0))
			return Triple{du.Cross(dv).Length()}
		}, KindFloat))
		return nil
	})
	register("calculatenormal", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.gridMap(func(i int) Triple {
			return vm.diff(v[0], i, true).TripleAt(0).Cross(vm.diff(v[0], i, false).TripleAt(0))
		}, KindTriple))
		return nil
	})
}

// onGrid reports whether values span the whole grid; during the Init pass
// and on single-point grids every derivative is zero.
func (vm *VM) onGrid() bool {
	return vm.n == vm.width*vm.height && vm.n > 1
}

// neighbours returns the pair of points whose difference approximates the
// derivative at point i along u (or v).
func (vm *VM) neighbours(i int, alongU bool) (int, int) {
	x, y := i%vm.width, i/vm.width
	if alongU {
		switch {
		case vm.width == 1:
			return i, i
		case x+1 < vm.width:
			return i, i + 1
		}
		return i - 1, i
	}
	switch {
	case vm.height == 1:
		return i, i
	case y+1 < vm.height:
		return i, i + vm.width
	}
	return i - vm.width, i
}

// spacing returns du or dv at point i; zero spacing counts as one.
func (vm *VM) spacing(i int, alongU bool) float64 {
	name := "dv"
	if alongU {
		name = "du"
	}
	d := vm.std[stdIndex[name]].Value
	if d.Len() == 0 {
		return 1
	}
	if s := d.FloatAt(min(i, d.Len()-1)); s != 0 {
		return s
	}
	return 1
}

// diff returns the derivative of d at point i as a single-element value.
func (vm *VM) diff(d Data, i int, alongU bool) Data {
	if !d.Varying || !vm.onGrid() {
		return Zero(d.Kind, false, 1)
	}
	a, b := vm.neighbours(i, alongU)
	s := vm.spacing(i, alongU)
	if d.Kind == KindFloat {
		return Float((d.FloatAt(b) - d.FloatAt(a)) / s)
	}
	return TripleValue(d.TripleAt(b).Sub(d.TripleAt(a)).Scale(1 / s))
}

// gridMap evaluates fn at every point into a varying value of kind k; a
// float result is taken from component 0.
func (vm *VM) gridMap(fn func(i int) Triple, k Kind) Data {
	out := Zero(k, true, vm.n)
	if !vm.onGrid() {
		return out
	}
	for i := 0; i < vm.n; i++ {
		t := fn(i)
		if k == KindFloat {
			out.F[i] = t[0]
		} else {
			out.T[i] = t
		}
	}
	return out
}

func opDerivative(k Kind, alongU bool) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(k)
		if err != nil {
			return err
		}
		out := Zero(k, true, vm.n)
		for i := 0; i < vm.n; i++ {
			out.copyFrom(i, vm.diff(v[0], i, alongU), 0)
		}
		vm.push(out)
		return nil
	}
}

// opDeriv computes d(num)/d(den) as Du(num)/Du(den) + Dv(num)/Dv(den),
// dropping a term whose denominator is zero.
func opDeriv(k Kind) execFunc {
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(k, KindFloat)
		if err != nil {
			return err
		}
		num, den := v[0], v[1]
		out := Zero(k, true, vm.n)
		for i := 0; i < vm.n; i++ {
			var acc Triple
			for _, alongU := range []bool{true, false} {
				dd := vm.diff(den, i, alongU).F[0]
				if dd == 0 {
					continue
				}
				dn := vm.diff(num, i, alongU)
				if k == KindFloat {
					acc[0] += dn.F[0] / dd
				} else {
					acc = acc.Add(dn.T[0].Scale(1 / dd))
				}
			}
			if k == KindFloat {
				out.F[i] = acc[0]
			} else {
				out.T[i] = acc
			}
		}
		vm.push(out)
		return nil
	}
}
