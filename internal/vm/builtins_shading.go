package vm

import (
	"fmt"
	"math"
)

func init() {
	register("ambient", func(vm *VM, _ []Instruction) error {
		out := Zero(KindTriple, true, vm.n)
		ps := vm.points(vm.stdValue("P"))
		for _, l := range vm.host.Lights() {
			if !l.Ambient() {
				continue
			}
			_, cl, err := l.Shade(ps)
			if err != nil {
				vm.report(fmt.Errorf("ambient light: %w", err))
				continue
			}
			for i := range out.T {
				out.T[i] = out.T[i].Add(cl[i])
			}
		}
		vm.push(out)
		return nil
	})
	register("diffuse", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple)
		if err != nil {
			return err
		}
		vm.push(vm.gather(func(i int, l, cl Triple) Triple {
			return cl.Scale(math.Max(0, v[0].TripleAt(i).Normalize().Dot(l.Normalize())))
		}))
		return nil
	})
	register("specular", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.gather(func(i int, l, cl Triple) Triple {
			n := v[0].TripleAt(i).Normalize()
			if n.Dot(l) <= 0 {
				return Triple{}
			}
			return cl.Scale(specularBRDF(l, n, v[1].TripleAt(i), v[2].FloatAt(i)))
		}))
		return nil
	})
	register("specularbrdf", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindTriple, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.mapTriple(v, func(i int) Triple {
			s := specularBRDF(v[0].TripleAt(i), v[1].TripleAt(i).Normalize(), v[2].TripleAt(i), v[3].FloatAt(i))
			return Triple{s, s, s}
		}))
		return nil
	})
	register("phong", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindTriple, KindTriple, KindFloat)
		if err != nil {
			return err
		}
		vm.push(vm.gather(func(i int, l, cl Triple) Triple {
			n := v[0].TripleAt(i).Normalize()
			if n.Dot(l) <= 0 {
				return Triple{}
			}
			r := reflect(v[1].TripleAt(i).Normalize().Scale(-1), n)
			return cl.Scale(math.Pow(math.Max(0, r.Dot(l.Normalize())), v[2].FloatAt(i)))
		}))
		return nil
	})
}

// specularBRDF is the Blinn half-vector term for light direction l,
// unit normal n and view direction v.
func specularBRDF(l, n, v Triple, roughness float64) float64 {
	if roughness <= 0 {
		return 0
	}
	h := l.Normalize().Add(v.Normalize()).Normalize()
	return math.Pow(math.Max(0, n.Dot(h)), 1/roughness)
}

// gather sums fn over the non-ambient lights at every point of P.
func (vm *VM) gather(fn func(i int, l, cl Triple) Triple) Data {
	out := Zero(KindTriple, true, vm.n)
	ps := vm.points(vm.stdValue("P"))
	for _, light := range vm.host.Lights() {
		if light.Ambient() {
			continue
		}
		L, Cl, err := light.Shade(ps)
		if err != nil {
			vm.report(fmt.Errorf("light: %w", err))
			continue
		}
		for i := range out.T {
			out.T[i] = out.T[i].Add(fn(i, L[i], Cl[i]))
		}
	}
	return out
}

// Textures.

func init() {
	for _, ch := range []struct {
		prefix string
		kind   Kind
		n      int
	}{{"f", KindFloat, 1}, {"c", KindTriple, 3}} {
		ch := ch
		register(ch.prefix+"texture1", opTexture(TextureMap, ch.kind, ch.n, 0))
		register(ch.prefix+"texture2", opTexture(TextureMap, ch.kind, ch.n, 1))
		register(ch.prefix+"texture3", opTexture(TextureMap, ch.kind, ch.n, 4))
		register(ch.prefix+"environment2", opTexture(EnvironmentMap, ch.kind, ch.n, 1))
		register(ch.prefix+"environment3", opTexture(EnvironmentMap, ch.kind, ch.n, 4))
	}
	register("shadow", opTexture(ShadowMap, KindFloat, 1, 1))
	register("shadow1", opTexture(ShadowMap, KindFloat, 1, 4))
	register("bump", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindString, KindTriple, KindTriple, KindTriple)
		if err != nil {
			return err
		}
		q := TextureQuery{Kind: BumpMap, Name: v[0].S[0], Channels: 1}
		q.S, q.T = vm.floatsOf(vm.stdValue("s")), vm.floatsOf(vm.stdValue("t"))
		h, ok := vm.sample(q, KindFloat)
		vm.push(vm.mapTriple(v, func(i int) Triple {
			n := v[1].TripleAt(i)
			if !ok {
				return n
			}
			tangent := v[2].TripleAt(i).Cross(v[3].TripleAt(i)).Normalize()
			return n.Add(tangent.Scale(h.FloatAt(i)))
		}))
		return nil
	})
}

func (vm *VM) floatsOf(d Data) []float64 {
	out := make([]float64, vm.n)
	for i := range out {
		out[i] = d.FloatAt(i)
	}
	return out
}

// sample asks the host for a texture and checks the answer's layout.
func (vm *VM) sample(q TextureQuery, k Kind) (Data, bool) {
	d, ok := vm.host.Texture(q)
	if !ok {
		vm.report(fmt.Errorf("%s %q not found", q.Kind, q.Name))
		return Data{}, false
	}
	if d.Kind != k || (d.Varying && d.Len() != vm.n) || d.Len() == 0 {
		vm.report(fmt.Errorf("%s %q: host returned %s with %d elements", q.Kind, q.Name, d.Kind, d.Len()))
		return Data{}, false
	}
	return d, true
}

// opTexture builds a texture-family lookup. coords is the number of
// coordinate arguments after the name: 0 uses the standard s and t, 1 is
// a single coordinate (s and t for texture maps), 4 are corners whose
// mean is sampled.
func opTexture(kind TextureKind, k Kind, channels, coords int) execFunc {
	kinds := []Kind{KindString}
	switch {
	case kind == TextureMap && coords == 1:
		kinds = append(kinds, KindFloat, KindFloat)
	case kind == TextureMap && coords == 4:
		kinds = append(kinds, repeat(KindFloat, 8)...)
	default:
		kinds = append(kinds, repeat(KindTriple, coords)...)
	}
	return func(vm *VM, _ []Instruction) error {
		v, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		if v[0].Varying {
			return fmt.Errorf("%w: varying %s name", ErrTypeMismatch, kind)
		}
		q := TextureQuery{Kind: kind, Name: v[0].S[0], Channels: channels}
		args := v[1:]
		switch {
		case kind == TextureMap && coords == 0:
			q.S, q.T = vm.floatsOf(vm.stdValue("s")), vm.floatsOf(vm.stdValue("t"))
		case kind == TextureMap:
			q.S, q.T = vm.meanFloats(args, 0), vm.meanFloats(args, 1)
		case kind == EnvironmentMap:
			q.Dir = vm.meanTriples(args)
		default:
			q.P = vm.meanTriples(args)
		}
		d, ok := vm.sample(q, k)
		if !ok {
			d = Zero(k, false, 1)
		}
		vm.push(d)
		return nil
	}
}

// meanFloats averages every other float argument starting at offset.
func (vm *VM) meanFloats(args []Data, offset int) []float64 {
	out := make([]float64, vm.n)
	count := 0
	for j := offset; j < len(args); j += 2 {
		for i := range out {
			out[i] += args[j].FloatAt(i)
		}
		count++
	}
	for i := range out {
		out[i] /= float64(count)
	}
	return out
}

func (vm *VM) meanTriples(args []Data) []Triple {
	out := make([]Triple, vm.n)
	for _, a := range args {
		for i := range out {
			out[i] = out[i].Add(a.TripleAt(i))
		}
	}
	for i := range out {
		out[i] = out[i].Scale(1 / float64(len(args)))
	}
	return out
}

// Host communication: the name (and key for textureinfo) is popped, the
// answer is stored into the output variable at the running points and a
// float success flag is pushed.

func init() {
	for _, name := range []string{"attribute", "option", "rendererinfo", "incident",
		"opposite", "surface", "displacement", "lightsource", "atmosphere"} {
		register(name, opComm(name, false), OperandVar)
	}
	register("textureinfo", opComm("textureinfo", true), OperandVar)
}

func opComm(fn string, keyed bool) execFunc {
	kinds := []Kind{KindString}
	if keyed {
		kinds = append(kinds, KindString)
	}
	return func(vm *VM, ops []Instruction) error {
		v, err := vm.args(kinds...)
		if err != nil {
			return err
		}
		out := vm.variable(ops[0].Var)
		q := CommQuery{Func: fn, Name: v[0].S[0], Type: out.Decl.Type.Base}
		if keyed {
			q.Key = v[1].S[0]
		}
		d, ok := vm.host.Comm(q)
		var miss error
		switch {
		case !ok:
			miss = fmt.Errorf("%s(%q) not found", fn, q.Name)
		case d.Kind != KindOf(out.Decl.Type.Base):
			miss = fmt.Errorf("%s(%q): host returned %s for %s %s", fn, q.Name, d.Kind, out.Decl.Type.Base, out.Decl.Name)
		case d.Varying && (!out.Decl.Type.IsVarying() || d.Len() != vm.n):
			miss = fmt.Errorf("%s(%q): host returned %d values for %s", fn, q.Name, d.Len(), out.Decl.Name)
		}
		if miss != nil {
			vm.report(miss)
			vm.push(Float(0))
			return nil
		}
		if err := vm.output(ops[0], d); err != nil {
			return err
		}
		vm.push(Float(1))
		return nil
	}
}
