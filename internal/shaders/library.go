// Package shaders is a library of standard shaders built directly as
// parse trees, for hosts and tools that need working programs without a
// source front end.
package shaders

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/pipeline"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
	"github.com/funvibe/shadevm/internal/vm"
)

var library = map[string]func(u *symbols.Unit){
	"constant":     constant,
	"matte":        matte,
	"plastic":      plastic,
	"lambert":      lambert,
	"ambientlight": ambientLight,
	"pointlight":   pointLight,
	"distantlight": distantLight,
}

// Names lists the library shaders in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(library))
}

// Build returns a fresh, unchecked unit for a library shader.
func Build(name string) (*symbols.Unit, error) {
	build, ok := library[name]
	if !ok {
		return nil, fmt.Errorf("no library shader %q", name)
	}
	u := symbols.NewUnit(name + ".sl")
	build(u)
	return u, nil
}

// Bytecode compiles a library shader to bytecode text.
func Bytecode(name string) (string, error) {
	r, err := compile(name)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// Program compiles and loads a library shader.
func Program(name string) (*vm.Program, error) {
	r, err := compile(name)
	if err != nil {
		return nil, err
	}
	return r.Program, nil
}

func compile(name string) (pipeline.Result, error) {
	u, err := Build(name)
	if err != nil {
		return pipeline.Result{}, err
	}
	r := pipeline.Compile(u)
	if r.Failed() {
		return r, fmt.Errorf("library shader %s: %w", name, r.Err())
	}
	return r, nil
}

func param(u *symbols.Unit, name string, base ts.BaseType, def ast.NodeID) ast.VarID {
	return u.DeclareParam(name, ts.T(base), def)
}

func triple(b *ast.Builder, base ts.BaseType, x, y, z float64) ast.NodeID {
	return b.Cast(base, b.Tuple(b.Float(x), b.Float(y), b.Float(z)))
}

// frontNormal declares Nf = faceforward(normalize(N), I).
func frontNormal(u *symbols.Unit) (ast.VarID, ast.NodeID) {
	b := u.Builder()
	nf := u.DeclareVar("Nf", ts.T(ts.Normal))
	N, I := u.MustStandardVar("N"), u.MustStandardVar("I")
	return nf, b.Assign(nf, b.Call("faceforward", b.Call("normalize", b.Var(N)), b.Var(I)))
}

func constant(u *symbols.Unit) {
	b := u.Builder()
	Os, Cs := u.MustStandardVar("Os"), u.MustStandardVar("Cs")
	u.SetShader(config.SurfaceShader, "constant", b.Block(
		b.Assign(u.MustStandardVar("Oi"), b.Var(Os)),
		b.Assign(u.MustStandardVar("Ci"), b.Binary(ast.OpMul, b.Var(Os), b.Var(Cs))),
	))
}

func matte(u *symbols.Unit) {
	b := u.Builder()
	ka := param(u, "Ka", ts.Float, b.Float(1))
	kd := param(u, "Kd", ts.Float, b.Float(1))
	nf, setNf := frontNormal(u)
	Os, Cs := u.MustStandardVar("Os"), u.MustStandardVar("Cs")

	light := b.Binary(ast.OpAdd,
		b.Binary(ast.OpMul, b.Var(ka), b.Call("ambient")),
		b.Binary(ast.OpMul, b.Var(kd), b.Call("diffuse", b.Var(nf))))
	u.SetShader(config.SurfaceShader, "matte", b.Block(
		setNf,
		b.Assign(u.MustStandardVar("Oi"), b.Var(Os)),
		b.Assign(u.MustStandardVar("Ci"),
			b.Binary(ast.OpMul, b.Binary(ast.OpMul, b.Var(Os), b.Var(Cs)), light)),
	))
}

func plastic(u *symbols.Unit) {
	b := u.Builder()
	ka := param(u, "Ka", ts.Float, b.Float(1))
	kd := param(u, "Kd", ts.Float, b.Float(0.5))
	ks := param(u, "Ks", ts.Float, b.Float(0.5))
	rough := param(u, "roughness", ts.Float, b.Float(0.1))
	spec := param(u, "specularcolor", ts.Color, triple(b, ts.Color, 1, 1, 1))
	nf, setNf := frontNormal(u)
	view := u.DeclareVar("V", ts.T(ts.Vector))
	Os, Cs, I := u.MustStandardVar("Os"), u.MustStandardVar("Cs"), u.MustStandardVar("I")

	diffuse := b.Binary(ast.OpMul, b.Var(Cs), b.Binary(ast.OpAdd,
		b.Binary(ast.OpMul, b.Var(ka), b.Call("ambient")),
		b.Binary(ast.OpMul, b.Var(kd), b.Call("diffuse", b.Var(nf)))))
	highlight := b.Binary(ast.OpMul, b.Binary(ast.OpMul, b.Var(spec), b.Var(ks)),
		b.Call("specular", b.Var(nf), b.Var(view), b.Var(rough)))
	u.SetShader(config.SurfaceShader, "plastic", b.Block(
		setNf,
		b.Assign(view, b.Unary(ast.OpNeg, b.Call("normalize", b.Var(I)))),
		b.Assign(u.MustStandardVar("Oi"), b.Var(Os)),
		b.Assign(u.MustStandardVar("Ci"),
			b.Binary(ast.OpMul, b.Var(Os), b.Binary(ast.OpAdd, diffuse, highlight))),
	))
}

// lambert sums the lights itself instead of calling diffuse().
func lambert(u *symbols.Unit) {
	b := u.Builder()
	kd := param(u, "Kd", ts.Float, b.Float(1))
	nf, setNf := frontNormal(u)
	Os, Cs, Cl, L := u.MustStandardVar("Os"), u.MustStandardVar("Cs"), u.MustStandardVar("Cl"), u.MustStandardVar("L")
	Ci := u.MustStandardVar("Ci")

	cosine := b.Binary(ast.OpDot, b.Call("normalize", b.Var(L)), b.Var(nf))
	body := b.AssignOp(Ci, ast.OpAdd, b.Binary(ast.OpMul, b.Var(Cl), cosine))
	u.SetShader(config.SurfaceShader, "lambert", b.Block(
		setNf,
		b.Assign(Ci, triple(b, ts.Color, 0, 0, 0)),
		b.Illuminance(body, b.Var(u.MustStandardVar("P")), b.Var(nf), b.Float(math.Pi/2)),
		b.Assign(u.MustStandardVar("Oi"), b.Var(Os)),
		b.Assign(Ci, b.Binary(ast.OpMul, b.Binary(ast.OpMul, b.Var(Os), b.Var(Cs)),
			b.Binary(ast.OpMul, b.Var(kd), b.Var(Ci)))),
	))
}

// lightColor declares the intensity and lightcolor parameters every light
// has and returns their product.
func lightColor(u *symbols.Unit) ast.NodeID {
	b := u.Builder()
	intensity := param(u, "intensity", ts.Float, b.Float(1))
	color := param(u, "lightcolor", ts.Color, triple(b, ts.Color, 1, 1, 1))
	return b.Binary(ast.OpMul, b.Var(intensity), b.Var(color))
}

func ambientLight(u *symbols.Unit) {
	b := u.Builder()
	c := lightColor(u)
	u.SetShader(config.LightShader, "ambientlight", b.Block(
		b.Assign(u.MustStandardVar("Cl"), c),
	))
}

func pointLight(u *symbols.Unit) {
	b := u.Builder()
	c := lightColor(u)
	from := param(u, "from", ts.Point, triple(b, ts.Point, 0, 0, 0))
	L := u.MustStandardVar("L")
	falloff := b.Binary(ast.OpDiv, c, b.Binary(ast.OpDot, b.Var(L), b.Var(L)))
	u.SetShader(config.LightShader, "pointlight", b.Block(
		b.Illuminate(b.Assign(u.MustStandardVar("Cl"), falloff), b.Var(from)),
	))
}

func distantLight(u *symbols.Unit) {
	b := u.Builder()
	c := lightColor(u)
	from := param(u, "from", ts.Point, triple(b, ts.Point, 0, 0, 0))
	to := param(u, "to", ts.Point, triple(b, ts.Point, 0, 0, 1))
	u.SetShader(config.LightShader, "distantlight", b.Block(
		b.Solar(b.Assign(u.MustStandardVar("Cl"), c),
			b.Binary(ast.OpSub, b.Var(to), b.Var(from)), b.Float(0)),
	))
}
