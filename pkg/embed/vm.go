// Package shadevm embeds the shading VM in Go programs: load a shader,
// set its parameters from Go values, run it over a grid and read the
// results back.
package shadevm

import (
	"context"
	"fmt"
	"os"

	"github.com/funvibe/shadevm/internal/host"
	"github.com/funvibe/shadevm/internal/shaders"
	"github.com/funvibe/shadevm/internal/symbols"
	"github.com/funvibe/shadevm/internal/vm"
)

// Shader is a loaded program.
type Shader struct {
	prog *vm.Program
}

// Load parses bytecode text. file names the source in errors.
func Load(file, text string) (*Shader, error) {
	prog, err := vm.Assemble(file, text)
	if err != nil {
		return nil, err
	}
	return &Shader{prog: prog}, nil
}

// LoadFile reads and parses a bytecode file.
func LoadFile(path string) (*Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, string(data))
}

// Library compiles one of the built-in shaders, such as "matte".
func Library(name string) (*Shader, error) {
	prog, err := shaders.Program(name)
	if err != nil {
		return nil, err
	}
	return &Shader{prog: prog}, nil
}

func (s *Shader) Name() string { return s.prog.Name }
func (s *Shader) Kind() string { return s.prog.Kind }

// Uses names the standard variables the shader reads.
func (s *Shader) Uses() []string { return symbols.MaskNames(s.prog.Uses) }

// Params lists the shader's parameter names in declaration order.
func (s *Shader) Params() []string {
	var names []string
	for _, d := range s.prog.Params() {
		names = append(names, d.Name)
	}
	return names
}

// Bytecode returns the canonical text of the program.
func (s *Shader) Bytecode() string { return s.prog.Text() }

// Option configures a Machine.
type Option func(*options)

type options struct {
	sceneData []byte
	scenePath string
	seed      *uint64
}

// WithScene shades against a scene read from a YAML file.
func WithScene(path string) Option {
	return func(o *options) { o.scenePath = path }
}

// WithSceneYAML shades against a scene given as YAML text.
func WithSceneYAML(data []byte) Option {
	return func(o *options) { o.sceneData = data }
}

// WithSeed fixes the generator behind the random opcodes.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = &seed }
}

// Machine runs one shader against a scene. Parameter values set on it
// persist across runs. A Machine is not safe for concurrent use.
type Machine struct {
	shader     *Shader
	host       *host.Host
	marshaller *Marshaller
	params     map[string]host.Value
	seed       *uint64
	last       *vm.VM
	reports    []error
}

// New creates a Machine for s. Without a scene option the scene is empty:
// no lights and an identity for every named space.
func New(s *Shader, opts ...Option) (*Machine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	scene := host.EmptyScene()
	var err error
	switch {
	case o.scenePath != "":
		scene, err = host.LoadScene(o.scenePath)
	case o.sceneData != nil:
		scene, err = host.ParseScene(o.sceneData, "<embed>")
	}
	if err != nil {
		return nil, err
	}
	h, err := host.New(scene)
	if err != nil {
		return nil, err
	}
	return &Machine{
		shader:     s,
		host:       h,
		marshaller: NewMarshaller(),
		params:     make(map[string]host.Value),
		seed:       o.seed,
	}, nil
}

// Shader returns the machine's shader.
func (m *Machine) Shader() *Shader { return m.shader }

// Set overrides a parameter for later runs. The value is checked against
// the parameter's type when the shader runs.
func (m *Machine) Set(name string, val interface{}) error {
	v, err := m.marshaller.ToValue(val)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	m.params[name] = v
	return nil
}

// Reset drops all parameter overrides.
func (m *Machine) Reset() { clear(m.params) }

// Run shades a grid of w by h micropolygons, that is (w+1)*(h+1) points.
func (m *Machine) Run(ctx context.Context, w, h int) error {
	session := m.host.Session()
	var setup []func(*vm.VM)
	if m.seed != nil {
		seed := *m.seed
		setup = append(setup, func(v *vm.VM) { v.SetSeed(seed) })
	}
	res, err := session.Shade(ctx, m.shader.prog, w, h, m.params, setup...)
	m.last, m.reports = res, session.Reports()
	return err
}

func (m *Machine) variable(name string) (vm.Data, error) {
	if m.last == nil {
		return vm.Data{}, fmt.Errorf("%s has not run", m.shader.Name())
	}
	d, ok := m.last.Variable(name)
	if !ok {
		return vm.Data{}, fmt.Errorf("variable '%s' not found", name)
	}
	return d, nil
}

// Get returns a variable from the last run as a Go value; see
// Marshaller.FromData for the types.
func (m *Machine) Get(name string) (interface{}, error) {
	d, err := m.variable(name)
	if err != nil {
		return nil, err
	}
	return m.marshaller.FromData(d)
}

// GetInto stores a variable from the last run into target, which points
// to a value of the matching type.
func (m *Machine) GetInto(name string, target interface{}) error {
	d, err := m.variable(name)
	if err != nil {
		return err
	}
	if err := m.marshaller.Decode(d, target); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Reports returns the warnings raised during the last run.
func (m *Machine) Reports() []error { return m.reports }

// Grid returns the points per row and the rows of the last run.
func (m *Machine) Grid() (int, int) {
	if m.last == nil {
		return 0, 0
	}
	return m.last.GridDims()
}
