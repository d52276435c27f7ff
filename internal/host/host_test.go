package host

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/funvibe/shadevm/internal/shaders"
	ts "github.com/funvibe/shadevm/internal/typesystem"
	"github.com/funvibe/shadevm/internal/vm"
)

const sceneYAML = `
attributes:
  "identifier:name": sphere
  "displacement:bound": 0.25
  "user:tint": [1, 0.5, 0]
options:
  "Format:PixelAspectRatio": 1
renderer:
  renderer: shadevm
shaders:
  surface:
    Kd: 0.8
spaces:
  world:
    translate: [1, 2, 3]
  twice:
    scale: [2, 2, 2]
textures:
  grey:
    value: 0.5
    resolution: [64, 32]
  tint:
    value: [1, 0, 0]
lights:
  - type: ambient
    intensity: 0.2
  - type: distant
    from: [0, 0, -1]
    to: [0, 0, 0]
grid:
  shape: plane
`

func mustScene(t *testing.T, data string) *Scene {
	t.Helper()
	s, err := ParseScene([]byte(data), "scene.yaml")
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	return s
}

func mustHost(t *testing.T, s *Scene) *Host {
	t.Helper()
	h, err := New(s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func nearTriple(a, b vm.Triple) bool {
	return near(a[0], b[0]) && near(a[1], b[1]) && near(a[2], b[2])
}

func TestParseSceneErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "lights: [", "parsing"},
		{"unknown light", "lights:\n  - type: laser\n", "unknown type"},
		{"point without from", "lights:\n  - type: point\n", "needs from"},
		{"shader without name", "lights:\n  - type: shader\n", "needs a shader"},
		{"bad colour", "lights:\n  - type: ambient\n    color: red\n", "color"},
		{"bad list", "attributes:\n  x: [1, 2]\n", "list of 2"},
		{"bad matrix", "spaces:\n  s:\n    matrix: [1, 2, 3]\n", "want 16"},
		{"bad shape", "grid:\n  shape: torus\n", "unknown shape"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScene([]byte(tt.data), "scene.yaml")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSceneDefaults(t *testing.T) {
	s := mustScene(t, "{}")
	if s.Grid.Shape != PlaneShape || s.Grid.Radius != 1 || len(s.Grid.Eye) != 3 {
		t.Errorf("grid = %+v", s.Grid)
	}
}

func TestComm(t *testing.T) {
	h := mustHost(t, mustScene(t, sceneYAML))
	tests := []struct {
		name string
		q    vm.CommQuery
		want vm.Data
		ok   bool
	}{
		{"string attribute", vm.CommQuery{Func: "attribute", Name: "identifier:name", Type: ts.String}, vm.String("sphere"), true},
		{"float attribute", vm.CommQuery{Func: "attribute", Name: "displacement:bound", Type: ts.Float}, vm.Float(0.25), true},
		{"colour attribute", vm.CommQuery{Func: "attribute", Name: "user:tint", Type: ts.Color}, vm.TripleValue(vm.Triple{1, 0.5, 0}), true},
		{"wrong type", vm.CommQuery{Func: "attribute", Name: "identifier:name", Type: ts.Float}, vm.Data{}, false},
		{"missing", vm.CommQuery{Func: "attribute", Name: "nope", Type: ts.Float}, vm.Data{}, false},
		{"option", vm.CommQuery{Func: "option", Name: "Format:PixelAspectRatio", Type: ts.Float}, vm.Float(1), true},
		{"rendererinfo", vm.CommQuery{Func: "rendererinfo", Name: "renderer", Type: ts.String}, vm.String("shadevm"), true},
		{"surface param", vm.CommQuery{Func: "surface", Name: "Kd", Type: ts.Float}, vm.Float(0.8), true},
		{"no atmosphere", vm.CommQuery{Func: "atmosphere", Name: "Kd", Type: ts.Float}, vm.Data{}, false},
		{"texture channels", vm.CommQuery{Func: "textureinfo", Name: "tint", Key: "channels", Type: ts.Float}, vm.Float(3), true},
		{"texture resolution", vm.CommQuery{Func: "textureinfo", Name: "grey", Key: "resolution", Type: ts.Point}, vm.TripleValue(vm.Triple{64, 32, 0}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.Comm(tt.q)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.String() != tt.want.String() {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTexture(t *testing.T) {
	h := mustHost(t, mustScene(t, sceneYAML))
	d, ok := h.Texture(vm.TextureQuery{Kind: vm.TextureMap, Name: "grey", Channels: 1})
	if !ok || d.Kind != vm.KindFloat || d.FloatAt(0) != 0.5 {
		t.Errorf("grey = %v, %v", d, ok)
	}
	d, ok = h.Texture(vm.TextureQuery{Kind: vm.EnvironmentMap, Name: "tint", Channels: 3})
	if !ok || d.TripleAt(0) != (vm.Triple{1, 0, 0}) {
		t.Errorf("tint = %v, %v", d, ok)
	}
	if _, ok := h.Texture(vm.TextureQuery{Name: "missing", Channels: 1}); ok {
		t.Error("missing texture found")
	}
}

func TestTransform(t *testing.T) {
	h := mustHost(t, mustScene(t, sceneYAML))
	m, ok := h.Transform("world", "current")
	if !ok || !nearTriple(m.TransformPoint(vm.Triple{}), vm.Triple{1, 2, 3}) {
		t.Errorf("world to current = %v, %v", m, ok)
	}
	m, ok = h.Transform("current", "world")
	if !ok || !nearTriple(m.TransformPoint(vm.Triple{1, 2, 3}), vm.Triple{}) {
		t.Errorf("current to world = %v, %v", m, ok)
	}
	m, ok = h.Transform("twice", "world")
	if !ok || !nearTriple(m.TransformPoint(vm.Triple{1, 1, 1}), vm.Triple{1, 0, -1}) {
		t.Errorf("twice to world = %v, %v", m, ok)
	}
	if _, ok := h.Transform("nowhere", "world"); ok {
		t.Error("unknown space resolved")
	}
	if _, ok := h.Transform("camera", "object"); !ok {
		t.Error("standard spaces should resolve")
	}
}

func TestReports(t *testing.T) {
	h := mustHost(t, nil)
	h.Report(errors.New("texture missing"))
	if got := h.Reports(); len(got) != 1 {
		t.Fatalf("reports = %v", got)
	}
	h.ClearReports()
	if got := h.Reports(); len(got) != 0 {
		t.Errorf("reports after clear = %v", got)
	}
}

func TestBindGrid(t *testing.T) {
	prog, err := shaders.Program("constant")
	if err != nil {
		t.Fatal(err)
	}
	h := mustHost(t, nil)
	m, err := h.Shade(context.Background(), prog, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	P, _ := m.Variable("P")
	u, _ := m.Variable("u")
	v, _ := m.Variable("v")
	N, _ := m.Variable("N")
	wantP := []vm.Triple{{-1, -1, 0}, {1, -1, 0}, {-1, 1, 0}, {1, 1, 0}}
	for i, want := range wantP {
		if P.TripleAt(i) != want {
			t.Errorf("P[%d] = %v, want %v", i, P.TripleAt(i), want)
		}
		if N.TripleAt(i) != (vm.Triple{0, 0, -1}) {
			t.Errorf("N[%d] = %v", i, N.TripleAt(i))
		}
	}
	if u.FloatAt(1) != 1 || v.FloatAt(1) != 0 || v.FloatAt(2) != 1 {
		t.Errorf("u = %v, v = %v", u, v)
	}
}

func TestSphereGrid(t *testing.T) {
	s := mustScene(t, "grid:\n  shape: sphere\n  radius: 2\n")
	prog, err := shaders.Program("constant")
	if err != nil {
		t.Fatal(err)
	}
	m, err := mustHost(t, s).Shade(context.Background(), prog, 4, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	P, _ := m.Variable("P")
	for i := 0; i < m.GridSize(); i++ {
		if r := P.TripleAt(i).Length(); !near(r, 2) {
			t.Fatalf("|P[%d]| = %v, want 2", i, r)
		}
	}
}

func TestMatteUnderSceneLights(t *testing.T) {
	prog, err := shaders.Program("matte")
	if err != nil {
		t.Fatal(err)
	}
	h := mustHost(t, mustScene(t, sceneYAML))
	m, err := h.Shade(context.Background(), prog, 2, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	ci, _ := m.Variable("Ci")
	for i := 0; i < m.GridSize(); i++ {
		if !nearTriple(ci.TripleAt(i), vm.Triple{1.2, 1.2, 1.2}) {
			t.Fatalf("Ci[%d] = %v, want 1.2 grey", i, ci.TripleAt(i))
		}
	}

	m, err = h.Shade(context.Background(), prog, 2, 2, map[string]Value{"Kd": Number(0.5)})
	if err != nil {
		t.Fatal(err)
	}
	ci, _ = m.Variable("Ci")
	if !nearTriple(ci.TripleAt(0), vm.Triple{0.7, 0.7, 0.7}) {
		t.Errorf("Ci with Kd 0.5 = %v", ci.TripleAt(0))
	}
	if len(h.Reports()) != 0 {
		t.Errorf("unexpected reports: %v", h.Reports())
	}
}

func TestShaderLights(t *testing.T) {
	ps := []vm.Triple{{0, 0, 0}, {1, 0, 0}, {0, 2, 1}}
	host := mustHost(t, nil)
	tests := []struct {
		name   string
		shader string
		params map[string]Value
		native vm.LightSource
	}{
		{"point", "pointlight",
			map[string]Value{"from": List(0, 0, -2), "intensity": Number(4)},
			&Point{From: vm.Triple{0, 0, -2}, Color: vm.Triple{4, 4, 4}}},
		{"distant", "distantlight",
			map[string]Value{"from": List(0, 0, -1), "to": List(0, 0, 0)},
			&Distant{Dir: vm.Triple{0, 0, -1}, Color: vm.Triple{1, 1, 1}}},
		{"ambient", "ambientlight",
			map[string]Value{"lightcolor": List(0.5, 0.25, 0)},
			&Ambient{Color: vm.Triple{0.5, 0.25, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := shaders.Program(tt.shader)
			if err != nil {
				t.Fatal(err)
			}
			light, err := NewProgramLight(prog, host, tt.params)
			if err != nil {
				t.Fatal(err)
			}
			if light.Ambient() != tt.native.Ambient() {
				t.Errorf("Ambient() = %v", light.Ambient())
			}
			L, Cl, err := light.Shade(ps)
			if err != nil {
				t.Fatal(err)
			}
			wantL, wantCl, _ := tt.native.Shade(ps)
			for i := range ps {
				if !tt.native.Ambient() && !nearTriple(L[i], wantL[i]) {
					t.Errorf("L[%d] = %v, want %v", i, L[i], wantL[i])
				}
				if !nearTriple(Cl[i], wantCl[i]) {
					t.Errorf("Cl[%d] = %v, want %v", i, Cl[i], wantCl[i])
				}
			}
		})
	}
}

func TestShaderLightFromScene(t *testing.T) {
	s := mustScene(t, `
lights:
  - type: shader
    shader: distantlight
    params:
      from: [0, 0, -1]
      to: [0, 0, 0]
`)
	h := mustHost(t, s)
	if len(h.Lights()) != 1 || h.Lights()[0].Ambient() {
		t.Fatalf("lights = %v", h.Lights())
	}
	prog, err := shaders.Program("lambert")
	if err != nil {
		t.Fatal(err)
	}
	m, err := h.Shade(context.Background(), prog, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	ci, _ := m.Variable("Ci")
	if !nearTriple(ci.TripleAt(0), vm.Triple{1, 1, 1}) {
		t.Errorf("Ci = %v, want white", ci.TripleAt(0))
	}
}

func TestNotALight(t *testing.T) {
	prog, err := shaders.Program("matte")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewProgramLight(prog, nil, nil); err == nil {
		t.Error("surface accepted as a light")
	}
	_, err = New(mustScene(t, "lights:\n  - type: shader\n    shader: nosuch\n"))
	if err == nil || !strings.Contains(err.Error(), "nosuch") {
		t.Errorf("err = %v", err)
	}
}

func TestApplyParams(t *testing.T) {
	prog, err := shaders.Program("plastic")
	if err != nil {
		t.Fatal(err)
	}
	m := vm.New(prog, nil)
	if err := m.Initialise(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.ExecuteInit(); err != nil {
		t.Fatal(err)
	}
	if err := ApplyParams(m, map[string]Value{"specularcolor": Number(0.5), "Ks": Number(2)}); err != nil {
		t.Fatal(err)
	}
	sc, _ := m.Variable("specularcolor")
	ks, _ := m.Variable("Ks")
	if sc.TripleAt(0) != (vm.Triple{0.5, 0.5, 0.5}) || ks.FloatAt(0) != 2 {
		t.Errorf("specularcolor = %v, Ks = %v", sc, ks)
	}
	for _, bad := range []map[string]Value{
		{"nosuch": Number(1)},
		{"Ks": Text("shiny")},
		{"N": List(0, 0, 1)},
	} {
		if err := ApplyParams(m, bad); !errors.Is(err, ErrBadParam) {
			t.Errorf("ApplyParams(%v) = %v", bad, err)
		}
	}
}

const lostText = `surface lost
USES 256
segment Data
segment Init
segment Code
pushv P
pushis "nowhere"
pfromspace
pop P
`

func TestSessionKeepsOwnReports(t *testing.T) {
	prog, err := vm.Assemble("lost.slx", lostText)
	if err != nil {
		t.Fatal(err)
	}
	h := mustHost(t, nil)
	a, b := h.Session(), h.Session()
	if _, err := a.Shade(context.Background(), prog, 1, 1, nil); err != nil {
		t.Fatal(err)
	}
	if got := a.Reports(); len(got) != 1 || !strings.Contains(got[0].Error(), "nowhere") {
		t.Errorf("session reports = %v", got)
	}
	if len(b.Reports()) != 0 || len(h.Reports()) != 0 {
		t.Errorf("report leaked: %v %v", b.Reports(), h.Reports())
	}
}
