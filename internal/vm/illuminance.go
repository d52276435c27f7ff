package vm

import (
	"fmt"
	"math"
)

// Light iteration. A surface program walks the host's non-ambient lights:
//
//	init_illuminance             push whether any light exists
//	illuminance P [axis angle]   shade the current light, set L and Cl,
//	                             push the per-point lit flag
//	advance_illuminance          step to the next light, push whether one
//	                             remains
//
// Light programs use illuminate and solar to set L and push their own lit
// flag; the body then computes Cl.

func init() {
	register("init_illuminance", func(vm *VM, _ []Instruction) error {
		vm.lights = vm.lights[:0]
		for _, l := range vm.host.Lights() {
			if !l.Ambient() {
				vm.lights = append(vm.lights, l)
			}
		}
		vm.lightIndex = 0
		vm.push(Float(boolFloat(len(vm.lights) > 0)))
		return nil
	})
	register("illuminance", opIlluminance(false))
	register("illuminance2", opIlluminance(true))
	register("advance_illuminance", func(vm *VM, _ []Instruction) error {
		vm.lightIndex++
		vm.push(Float(boolFloat(vm.lightIndex < len(vm.lights))))
		return nil
	})
	register("illuminate", opIlluminate(false))
	register("illuminate2", opIlluminate(true))
	register("solar", func(vm *VM, _ []Instruction) error {
		vm.push(Float(1))
		return nil
	})
	register("solar2", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindFloat)
		if err != nil {
			return err
		}
		if err := vm.setStd("L", vm.mapTriple(v[:1], func(i int) Triple { return v[0].TripleAt(i) })); err != nil {
			return err
		}
		vm.push(Float(1))
		return nil
	})
}

func (vm *VM) setStd(name string, d Data) error {
	return vm.store(&vm.std[stdIndex[name]].Value, d)
}

func (vm *VM) stdValue(name string) Data {
	return vm.std[stdIndex[name]].Value
}

// points expands a triple value to one element per point.
func (vm *VM) points(d Data) []Triple {
	out := make([]Triple, vm.n)
	for i := range out {
		out[i] = d.TripleAt(i)
	}
	return out
}

// inCone reports whether direction l lies within angle of axis.
func inCone(l, axis Triple, angle float64) bool {
	if angle >= math.Pi {
		return true
	}
	ln, an := l.Normalize(), axis.Normalize()
	return ln.Dot(an) >= math.Cos(angle)
}

func opIlluminance(cone bool) execFunc {
	kinds := []Kind{KindTriple}
	if cone {
		kinds = append(kinds, KindTriple, KindFloat)
	}
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		if vm.lightIndex >= len(vm.lights) {
			return fmt.Errorf("illuminance: no current light (index %d of %d)", vm.lightIndex, len(vm.lights))
		}
		L, Cl, err := vm.lights[vm.lightIndex].Shade(vm.points(v[0]))
		if err != nil {
			vm.report(fmt.Errorf("light %d: %w", vm.lightIndex, err))
			vm.push(Float(0))
			return nil
		}
		if len(L) != vm.n || len(Cl) != vm.n {
			return fmt.Errorf("light %d: shaded %d/%d points, want %d", vm.lightIndex, len(L), len(Cl), vm.n)
		}
		if err := vm.setStd("L", Triples(L)); err != nil {
			return err
		}
		if err := vm.setStd("Cl", Triples(Cl)); err != nil {
			return err
		}
		lit := Zero(KindFloat, true, vm.n)
		for i := range lit.F {
			lit.F[i] = 1
			if cone && !inCone(L[i], v[1].TripleAt(i), v[2].FloatAt(i)) {
				lit.F[i] = 0
			}
		}
		vm.push(lit)
		return nil
	}
}

// opIlluminate sets L from the light position P to each surface point Ps.
func opIlluminate(cone bool) execFunc {
	kinds := []Kind{KindTriple}
	if cone {
		kinds = append(kinds, KindTriple, KindFloat)
	}
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		ps := vm.stdValue("Ps")
		vals := append(v, ps)
		L := vm.mapTriple(vals, func(i int) Triple { return ps.TripleAt(i).Sub(v[0].TripleAt(i)) })
		if err := vm.setStd("L", L); err != nil {
			return err
		}
		if !cone {
			vm.push(Float(1))
			return nil
		}
		vm.push(vm.mapFloat(vals, func(i int) float64 {
			return boolFloat(inCone(L.TripleAt(i), v[1].TripleAt(i), v[2].FloatAt(i)))
		}))
		return nil
	}
}
