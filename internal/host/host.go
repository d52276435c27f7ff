// Package host is a reference renderer for the VM: it answers comm,
// texture and transform queries from a YAML scene and supplies its
// lights, some of which run compiled light shaders.
package host

import (
	"fmt"
	"slices"
	"sync"

	"github.com/funvibe/shadevm/internal/logging"
	ts "github.com/funvibe/shadevm/internal/typesystem"
	"github.com/funvibe/shadevm/internal/vm"
)

// Host implements vm.Host over a Scene. It is safe for concurrent use by
// several VMs.
type Host struct {
	scene  *Scene
	lights []vm.LightSource

	mu      sync.Mutex
	reports []error
}

var _ vm.Host = (*Host)(nil)

// Option configures New.
type Option func(*options)

type options struct {
	resolve Resolver
}

// WithResolver sets how shader lights find their programs.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolve = r }
}

// New builds a host for scene, loading the programs of its shader lights.
func New(scene *Scene, opts ...Option) (*Host, error) {
	if scene == nil {
		scene = EmptyScene()
	}
	o := options{resolve: DefaultResolver(scene.dir)}
	for _, opt := range opts {
		opt(&o)
	}
	h := &Host{scene: scene}
	for i, def := range scene.Lights {
		l, err := h.buildLight(def, o.resolve)
		if err != nil {
			return nil, fmt.Errorf("light %d: %w", i, err)
		}
		h.lights = append(h.lights, l)
	}
	logging.Logger().Debug("host ready", "lights", len(h.lights), "spaces", len(scene.Spaces))
	return h, nil
}

// Scene returns the scene the host answers from.
func (h *Host) Scene() *Scene { return h.scene }

// AddLight appends a light after construction.
func (h *Host) AddLight(l vm.LightSource) { h.lights = append(h.lights, l) }

func (h *Host) Lights() []vm.LightSource { return h.lights }

func (h *Host) Comm(q vm.CommQuery) (vm.Data, bool) {
	var table map[string]Value
	switch q.Func {
	case "attribute":
		table = h.scene.Attributes
	case "option":
		table = h.scene.Options
	case "rendererinfo":
		table = h.scene.Renderer
	case "textureinfo":
		return h.textureInfo(q)
	default:
		table = h.scene.Shaders[q.Func]
	}
	v, ok := table[q.Name]
	if !ok {
		return vm.Data{}, false
	}
	return v.Data(q.Type)
}

func (h *Host) textureInfo(q vm.CommQuery) (vm.Data, bool) {
	tex, ok := h.scene.Textures[q.Name]
	if !ok {
		return vm.Data{}, false
	}
	switch q.Key {
	case "exists":
		return vm.Float(1), true
	case "channels":
		if len(tex.Value.Nums) == 3 {
			return vm.Float(3), true
		}
		return vm.Float(1), true
	case "resolution":
		res := vm.Triple{1, 1, 0}
		for i, n := range tex.Resolution {
			if i < 2 {
				res[i] = float64(n)
			}
		}
		if vm.KindOf(q.Type) == vm.KindTriple {
			return vm.TripleValue(res), true
		}
		return vm.Float(res[0]), true
	}
	return vm.Data{}, false
}

// Texture answers every lookup kind with the texture's constant value.
// Single-channel lookups of a colour texture read its first channel.
func (h *Host) Texture(q vm.TextureQuery) (vm.Data, bool) {
	tex, ok := h.scene.Textures[q.Name]
	if !ok {
		return vm.Data{}, false
	}
	v := tex.Value
	if q.Channels == 1 {
		if len(v.Nums) > 0 {
			return vm.Float(v.Nums[0]), true
		}
		return v.Data(ts.Float)
	}
	return v.Data(ts.Color)
}

// Transform returns the matrix from space from to space to, through
// current space.
func (h *Host) Transform(from, to string) (vm.Matrix, bool) {
	f, ok := h.scene.toCurrent(from)
	if !ok {
		return vm.Matrix{}, false
	}
	t, ok := h.scene.toCurrent(to)
	if !ok {
		return vm.Matrix{}, false
	}
	inv, ok := t.Inverse()
	if !ok {
		return vm.Matrix{}, false
	}
	return f.Mul(inv), true
}

func (h *Host) Report(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, err)
}

// Reports returns the runtime conditions reported so far.
func (h *Host) Reports() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.reports)
}

// ClearReports forgets the collected reports.
func (h *Host) ClearReports() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = nil
}
