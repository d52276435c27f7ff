package host

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/shaders"
	"github.com/funvibe/shadevm/internal/vm"
)

// Ambient is a light with no position; only ambient() sees it.
type Ambient struct {
	Color vm.Triple
}

func (a *Ambient) Ambient() bool { return true }

func (a *Ambient) Shade(ps []vm.Triple) ([]vm.Triple, []vm.Triple, error) {
	return make([]vm.Triple, len(ps)), fill(len(ps), a.Color), nil
}

// Point radiates from From with inverse square falloff.
type Point struct {
	From  vm.Triple
	Color vm.Triple
}

func (p *Point) Ambient() bool { return false }

func (p *Point) Shade(ps []vm.Triple) ([]vm.Triple, []vm.Triple, error) {
	L := make([]vm.Triple, len(ps))
	Cl := make([]vm.Triple, len(ps))
	for i, s := range ps {
		L[i] = p.From.Sub(s)
		d2 := L[i].Dot(L[i])
		if d2 == 0 {
			d2 = 1
		}
		Cl[i] = p.Color.Scale(1 / d2)
	}
	return L, Cl, nil
}

// Distant shines along a fixed direction. Dir points from the surface
// toward the light.
type Distant struct {
	Dir   vm.Triple
	Color vm.Triple
}

func (d *Distant) Ambient() bool { return false }

func (d *Distant) Shade(ps []vm.Triple) ([]vm.Triple, []vm.Triple, error) {
	return fill(len(ps), d.Dir), fill(len(ps), d.Color), nil
}

func fill(n int, t vm.Triple) []vm.Triple {
	out := make([]vm.Triple, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// ProgramLight runs a compiled light shader over the surface points. The
// shader's L runs from the light to the surface, so it is negated for
// the surface side.
type ProgramLight struct {
	prog   *vm.Program
	host   vm.Host
	params map[string]Value
}

// NewProgramLight wraps a light program. host answers the program's own
// comm and transform queries.
func NewProgramLight(prog *vm.Program, host vm.Host, params map[string]Value) (*ProgramLight, error) {
	if prog.Kind != config.LightShader {
		return nil, fmt.Errorf("%s is a %s shader, not a light", prog.Name, prog.Kind)
	}
	return &ProgramLight{prog: prog, host: host, params: params}, nil
}

func (l *ProgramLight) Ambient() bool { return l.prog.IsAmbientLight() }

func (l *ProgramLight) Shade(ps []vm.Triple) ([]vm.Triple, []vm.Triple, error) {
	if len(ps) == 0 {
		return nil, nil, nil
	}
	m := vm.New(l.prog, l.host)
	if err := m.Initialise(len(ps)-1, 0); err != nil {
		return nil, nil, err
	}
	if err := m.ExecuteInit(); err != nil {
		return nil, nil, err
	}
	if err := ApplyParams(m, l.params); err != nil {
		return nil, nil, err
	}
	if err := m.SetVariable("Ps", vm.Triples(ps)); err != nil {
		return nil, nil, err
	}
	if err := m.Execute(); err != nil {
		return nil, nil, fmt.Errorf("light %s: %w", l.prog.Name, err)
	}
	lv, _ := m.Variable("L")
	cl, _ := m.Variable("Cl")
	L := make([]vm.Triple, len(ps))
	Cl := make([]vm.Triple, len(ps))
	for i := range ps {
		L[i] = lv.TripleAt(i).Scale(-1)
		Cl[i] = cl.TripleAt(i)
	}
	return L, Cl, nil
}

// Resolver finds the program a shader light names.
type Resolver func(name string) (*vm.Program, error)

// DefaultResolver loads names with a bytecode extension from disk,
// relative to dir, and compiles any other name from the shader library.
func DefaultResolver(dir string) Resolver {
	return func(name string) (*vm.Program, error) {
		if !config.IsBytecodeFile(name) {
			return shaders.Program(name)
		}
		path := name
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading light shader: %w", err)
		}
		return vm.Assemble(path, string(data))
	}
}

func (h *Host) buildLight(def LightDef, resolve Resolver) (vm.LightSource, error) {
	intensity := 1.0
	if def.Intensity != nil {
		intensity = *def.Intensity
	}
	color := vm.Triple{1, 1, 1}
	if def.Color != nil {
		color, _ = def.Color.Triple()
	}
	color = color.Scale(intensity)

	switch def.Type {
	case AmbientLight:
		return &Ambient{Color: color}, nil
	case PointLight:
		return &Point{From: triple(def.From), Color: color}, nil
	case DistantLight:
		return &Distant{Dir: triple(def.From).Sub(triple(def.To)), Color: color}, nil
	}
	prog, err := resolve(def.Shader)
	if err != nil {
		return nil, err
	}
	return NewProgramLight(prog, h, def.Params)
}
