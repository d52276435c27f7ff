package vm

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Improved gradient noise over a fixed permutation, remapped to [0,1].
// The permutation is generated from a constant seed so results are
// reproducible run to run.
var perm = func() [512]int {
	var p [512]int
	src := rand.New(rand.NewPCG(0x5ade, 0x7a11)).Perm(256)
	for i := range p {
		p[i] = src[i&255]
	}
	return p
}()

func fade(t float64) float64 { return t * t * t * (t*(t*6-15) + 10) }

func lerp(t, a, b float64) float64 { return a + t*(b-a) }

func grad(hash int, x, y, z float64) float64 {
	h := hash & 15
	u, v := y, z
	if h < 8 {
		u = x
	}
	if h < 4 {
		v = y
	} else if h == 12 || h == 14 {
		v = x
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}

// wrap maps a lattice coordinate into [0, period) when period > 0.
func wrap(i, period int) int {
	if period <= 0 {
		return i & 255
	}
	i %= period
	if i < 0 {
		i += period
	}
	return i & 255
}

// gradient returns signed noise in about [-1,1] at (x,y,z), periodic in
// each axis with a non-zero period.
func gradient(x, y, z float64, period [3]int) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	ix, iy, iz := int(fx), int(fy), int(fz)
	x, y, z = x-fx, y-fy, z-fz
	u, v, w := fade(x), fade(y), fade(z)

	X0, X1 := wrap(ix, period[0]), wrap(ix+1, period[0])
	Y0, Y1 := wrap(iy, period[1]), wrap(iy+1, period[1])
	Z0, Z1 := wrap(iz, period[2]), wrap(iz+1, period[2])
	h := func(a, b, c int) int { return perm[perm[perm[a]+b]+c] }

	return lerp(w,
		lerp(v,
			lerp(u, grad(h(X0, Y0, Z0), x, y, z), grad(h(X1, Y0, Z0), x-1, y, z)),
			lerp(u, grad(h(X0, Y1, Z0), x, y-1, z), grad(h(X1, Y1, Z0), x-1, y-1, z))),
		lerp(v,
			lerp(u, grad(h(X0, Y0, Z1), x, y, z-1), grad(h(X1, Y0, Z1), x-1, y, z-1)),
			lerp(u, grad(h(X0, Y1, Z1), x, y-1, z-1), grad(h(X1, Y1, Z1), x-1, y-1, z-1))))
}

// channelShift decorrelates the channels of colour and point noise.
var channelShift = [3]Triple{{0, 0, 0}, {19.19, 33.71, 47.43}, {74.37, 11.13, 25.91}}

// timeShift offsets the lattice for integer steps of the fourth axis.
func timeShift(k float64) Triple { return Triple{k * 31.416, k * 17.17, k * 7.77} }

// noiseAt evaluates one channel of noise at a point of up to four
// dimensions. periods of zero mean no repetition along that axis.
func noiseAt(p [4]float64, dims int, period [4]int, channel int) float64 {
	s := channelShift[channel]
	p3 := [3]int{period[0], period[1], period[2]}
	sample := func(off Triple) float64 {
		return gradient(p[0]+s[0]+off[0], p[1]+s[1]+off[1], p[2]+s[2]+off[2], p3)
	}
	var n float64
	if dims < 4 {
		n = sample(Triple{})
	} else {
		t0 := math.Floor(p[3])
		k0, k1 := t0, t0+1
		if period[3] > 0 {
			k0 = float64(wrap(int(k0), period[3]))
			k1 = float64(wrap(int(k1), period[3]))
		}
		n = lerp(fade(p[3]-t0), sample(timeShift(k0)), sample(timeShift(k1)))
	}
	return clamp01(0.5 + 0.5*n)
}

// cellAt returns a value in [0,1) constant over each unit lattice cell.
func cellAt(p [4]float64, channel int) float64 {
	h := uint64(channel+1) * 0x9e3779b97f4a7c15
	for _, c := range p {
		h ^= uint64(int64(math.Floor(c)))
		h = splitmix(h)
	}
	return float64(h>>11) / (1 << 53)
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

var noiseSigs = map[string][]string{
	"noise":     {"f", "ff", "p", "pf"},
	"pnoise":    {"ff", "ffff", "pp", "pfpf"},
	"cellnoise": {"f", "ff", "p", "pf"},
}

func init() {
	for _, result := range "fcpv" {
		for family, sigs := range noiseSigs {
			for i, sig := range sigs {
				name := fmt.Sprintf("%c%s%d", result, family, i+1)
				register(name, opNoise(byte(result), family, i+1, sig))
			}
		}
	}
	register("frandom", func(vm *VM, _ []Instruction) error {
		out := Zero(KindFloat, true, vm.n)
		for i := range out.F {
			out.F[i] = vm.rng.Float64()
		}
		vm.push(out)
		return nil
	})
	for _, name := range []string{"crandom", "prandom"} {
		register(name, func(vm *VM, _ []Instruction) error {
			out := Zero(KindTriple, true, vm.n)
			for i := range out.T {
				out.T[i] = Triple{vm.rng.Float64(), vm.rng.Float64(), vm.rng.Float64()}
			}
			vm.push(out)
			return nil
		})
	}
}

// opNoise builds one member of the noise family. The variant number
// selects the domain: 1 one float, 2 two floats, 3 a point, 4 a point and
// a float. pnoise takes the matching periods after the coordinates.
func opNoise(result byte, family string, variant int, sig string) execFunc {
	kinds := make([]Kind, len(sig))
	for i := range sig {
		if sig[i] == 'p' {
			kinds[i] = KindTriple
		}
	}
	dims := [5]int{0, 1, 2, 3, 4}[variant]
	periodic := family == "pnoise"
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		sample := func(i, channel int) float64 {
			var p [4]float64
			var period [4]int
			coords := v
			if periodic {
				coords = v[:len(v)/2]
				fill(&p, coords, i)
				var pf [4]float64
				fill(&pf, v[len(v)/2:], i)
				for k := range period {
					period[k] = int(pf[k])
				}
			} else {
				fill(&p, coords, i)
			}
			if family == "cellnoise" {
				return cellAt(p, channel)
			}
			return noiseAt(p, dims, period, channel)
		}
		if result == 'f' {
			vm.push(vm.mapFloat(v, func(i int) float64 { return sample(i, 0) }))
			return nil
		}
		vm.push(vm.mapTriple(v, func(i int) Triple {
			return Triple{sample(i, 0), sample(i, 1), sample(i, 2)}
		}))
		return nil
	}
}

// fill lays float and triple arguments out as consecutive coordinates.
func fill(dst *[4]float64, args []Data, i int) {
	k := 0
	for _, a := range args {
		if a.Kind == KindTriple {
			t := a.TripleAt(i)
			copy(dst[k:], t[:])
			k += 3
			continue
		}
		dst[k] = a.FloatAt(i)
		k++
	}
}
