package host

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/vm"
	"gopkg.in/yaml.v3"
)

// Scene is the YAML description the reference host answers from.
type Scene struct {
	// Attributes, Options and Renderer answer attribute(), option() and
	// rendererinfo().
	Attributes map[string]Value `yaml:"attributes"`
	Options    map[string]Value `yaml:"options"`
	Renderer   map[string]Value `yaml:"renderer"`

	// Shaders holds the parameters of the other shaders bound to the
	// object, keyed by comm function (surface, displacement, atmosphere,
	// lightsource, incident, opposite).
	Shaders map[string]map[string]Value `yaml:"shaders"`

	// Spaces maps a coordinate system name to its transform into
	// "current" space.
	Spaces map[string]SpaceDef `yaml:"spaces"`

	Textures map[string]TextureDef `yaml:"textures"`
	Lights   []LightDef            `yaml:"lights"`
	Grid     GridDef               `yaml:"grid"`

	// dir resolves relative light shader paths.
	dir string
}

// SpaceDef builds a transform: Matrix when given, else scale, then
// rotate, then translate.
type SpaceDef struct {
	Matrix    []float64  `yaml:"matrix,omitempty"`
	Scale     []float64  `yaml:"scale,omitempty"`
	Rotate    *RotateDef `yaml:"rotate,omitempty"`
	Translate []float64  `yaml:"translate,omitempty"`
}

// RotateDef is a rotation by Angle degrees about Axis.
type RotateDef struct {
	Angle float64   `yaml:"angle"`
	Axis  []float64 `yaml:"axis"`
}

// TextureDef is a constant texture.
type TextureDef struct {
	Value      Value `yaml:"value"`
	Resolution []int `yaml:"resolution,omitempty"`
}

// Light types.
const (
	AmbientLight = "ambient"
	PointLight   = "point"
	DistantLight = "distant"
	ShaderLight  = "shader"
)

// LightDef is one light. Shader lights run a light program: Shader names
// a library shader or a bytecode file.
type LightDef struct {
	Type      string           `yaml:"type"`
	Intensity *float64         `yaml:"intensity,omitempty"`
	Color     *Value           `yaml:"color,omitempty"`
	From      []float64        `yaml:"from,omitempty"`
	To        []float64        `yaml:"to,omitempty"`
	Shader    string           `yaml:"shader,omitempty"`
	Params    map[string]Value `yaml:"params,omitempty"`
}

// GridDef is the surface patch the grid generator samples.
type GridDef struct {
	Shape  string    `yaml:"shape"`
	Radius float64   `yaml:"radius"`
	Eye    []float64 `yaml:"eye,omitempty"`
}

// Grid shapes.
const (
	PlaneShape  = "plane"
	SphereShape = "sphere"
)

// LoadScene reads and parses a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene %s: %w", path, err)
	}
	return ParseScene(data, path)
}

// ParseScene parses scene YAML. path is used in messages and to resolve
// light shader files.
func ParseScene(data []byte, path string) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.setDefaults()
	if path != "" {
		s.dir = filepath.Dir(path)
	}
	return &s, nil
}

// EmptyScene has no attributes, no lights and a unit plane.
func EmptyScene() *Scene {
	s := &Scene{}
	s.setDefaults()
	return s
}

func (s *Scene) validate(path string) error {
	for i, l := range s.Lights {
		switch l.Type {
		case AmbientLight:
		case PointLight:
			if len(l.From) != 3 {
				return fmt.Errorf("%s: light %d: point light needs from: [x, y, z]", path, i)
			}
		case DistantLight:
			if len(l.From) != 3 || len(l.To) != 3 {
				return fmt.Errorf("%s: light %d: distant light needs from and to", path, i)
			}
		case ShaderLight:
			if l.Shader == "" {
				return fmt.Errorf("%s: light %d: shader light needs a shader", path, i)
			}
		default:
			return fmt.Errorf("%s: light %d: unknown type %q", path, i, l.Type)
		}
		if l.Color != nil {
			if _, ok := l.Color.Triple(); !ok {
				return fmt.Errorf("%s: light %d: color must be a number or [r, g, b]", path, i)
			}
		}
	}
	for name, sp := range s.Spaces {
		if _, err := sp.matrix(); err != nil {
			return fmt.Errorf("%s: space %s: %w", path, name, err)
		}
	}
	switch s.Grid.Shape {
	case "", PlaneShape, SphereShape:
	default:
		return fmt.Errorf("%s: grid: unknown shape %q", path, s.Grid.Shape)
	}
	if s.Grid.Eye != nil && len(s.Grid.Eye) != 3 {
		return fmt.Errorf("%s: grid: eye must be [x, y, z]", path)
	}
	return nil
}

func (s *Scene) setDefaults() {
	if s.Grid.Shape == "" {
		s.Grid.Shape = PlaneShape
	}
	if s.Grid.Radius == 0 {
		s.Grid.Radius = 1
	}
	if s.Grid.Eye == nil {
		s.Grid.Eye = []float64{0, 0, -5}
	}
}

func triple(f []float64) vm.Triple { return vm.Triple{f[0], f[1], f[2]} }

func (sp SpaceDef) matrix() (vm.Matrix, error) {
	if sp.Matrix != nil {
		if len(sp.Matrix) != 16 {
			return vm.Matrix{}, fmt.Errorf("matrix has %d elements, want 16", len(sp.Matrix))
		}
		var m vm.Matrix
		copy(m[:], sp.Matrix)
		return m, nil
	}
	m := vm.Identity
	if sp.Scale != nil {
		if len(sp.Scale) != 3 {
			return m, fmt.Errorf("scale must be [x, y, z]")
		}
		m = m.Mul(vm.Scaling(triple(sp.Scale)))
	}
	if sp.Rotate != nil {
		if len(sp.Rotate.Axis) != 3 {
			return m, fmt.Errorf("rotate axis must be [x, y, z]")
		}
		m = m.Mul(vm.Rotation(sp.Rotate.Angle*math.Pi/180, triple(sp.Rotate.Axis)))
	}
	if sp.Translate != nil {
		if len(sp.Translate) != 3 {
			return m, fmt.Errorf("translate must be [x, y, z]")
		}
		m = m.Mul(vm.Translation(triple(sp.Translate)))
	}
	return m, nil
}

// toCurrent returns the transform from the named space to "current".
// Standard spaces the scene does not mention coincide with current.
func (s *Scene) toCurrent(name string) (vm.Matrix, bool) {
	if sp, ok := s.Spaces[name]; ok {
		m, err := sp.matrix()
		return m, err == nil
	}
	switch name {
	case config.CurrentSpace, config.ShaderSpace, config.ObjectSpace, config.WorldSpace,
		config.CameraSpace, config.ScreenSpace, config.RasterSpace, config.NDCSpace:
		return vm.Identity, true
	}
	return vm.Matrix{}, false
}
