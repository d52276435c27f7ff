package host

import (
	"math"

	"github.com/funvibe/shadevm/internal/vm"
)

// BindGrid fills the geometric standard variables of an initialised VM
// by sampling the scene's surface patch at every grid point, u across
// and v down.
func (s *Scene) BindGrid(m *vm.VM) error {
	w, h := m.GridDims()
	n := m.GridSize()
	du, dv := step(w), step(h)

	triples := func() []vm.Triple { return make([]vm.Triple, n) }
	P, N, dPdu, dPdv, I := triples(), triples(), triples(), triples(), triples()
	u, v := make([]float64, n), make([]float64, n)
	eye := triple(s.Grid.Eye)
	r := s.Grid.Radius
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			k := j*w + i
			u[k], v[k] = float64(i)*du, float64(j)*dv
			if w == 1 {
				u[k] = 0
			}
			if h == 1 {
				v[k] = 0
			}
			switch s.Grid.Shape {
			case SphereShape:
				P[k], dPdu[k], dPdv[k] = sphere(r, u[k], v[k])
				N[k] = P[k].Normalize()
			default:
				P[k] = vm.Triple{(2*u[k] - 1) * r, (2*v[k] - 1) * r, 0}
				dPdu[k], dPdv[k] = vm.Triple{2 * r, 0, 0}, vm.Triple{0, 2 * r, 0}
				N[k] = dPdv[k].Cross(dPdu[k]).Normalize()
			}
			I[k] = P[k].Sub(eye)
		}
	}

	vals := []struct {
		name string
		d    vm.Data
	}{
		{"P", vm.Triples(P)},
		{"N", vm.Triples(N)},
		{"Ng", vm.Triples(append([]vm.Triple(nil), N...))},
		{"dPdu", vm.Triples(dPdu)},
		{"dPdv", vm.Triples(dPdv)},
		{"I", vm.Triples(I)},
		{"u", vm.Floats(u)},
		{"v", vm.Floats(v)},
		{"s", vm.Floats(append([]float64(nil), u...))},
		{"t", vm.Floats(append([]float64(nil), v...))},
		{"du", vm.Float(du)},
		{"dv", vm.Float(dv)},
		{"E", vm.TripleValue(eye)},
		{"Cs", vm.TripleValue(vm.Triple{1, 1, 1})},
		{"Os", vm.TripleValue(vm.Triple{1, 1, 1})},
		{"ncomps", vm.Float(3)},
	}
	for _, val := range vals {
		if err := m.SetVariable(val.name, val.d); err != nil {
			return err
		}
	}
	return nil
}

// step is the parametric spacing of n samples over [0, 1].
func step(n int) float64 {
	if n <= 1 {
		return 1
	}
	return 1 / float64(n-1)
}

func sphere(r, u, v float64) (p, dpdu, dpdv vm.Triple) {
	theta, phi := 2*math.Pi*u, math.Pi*v
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	p = vm.Triple{r * sp * ct, r * sp * st, r * cp}
	dpdu = vm.Triple{-2 * math.Pi * r * sp * st, 2 * math.Pi * r * sp * ct, 0}
	dpdv = vm.Triple{math.Pi * r * cp * ct, math.Pi * r * cp * st, -math.Pi * r * sp}
	return p, dpdu, dpdv
}
