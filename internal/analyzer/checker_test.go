package analyzer

import (
	"testing"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// fixture is a surface shader under construction.
type fixture struct {
	u *symbols.Unit
	b *ast.Builder
}

func newFixture(kind string) *fixture {
	u := symbols.NewUnit("test.sl")
	return &fixture{u: u, b: u.Builder()}
}

func (f *fixture) std(name string) ast.VarID { return f.u.MustStandardVar(name) }

// check wraps stmts in the shader body and type-checks the unit.
func (f *fixture) check(t *testing.T, kind string, stmts ...ast.NodeID) error {
	t.Helper()
	f.u.SetShader(kind, "test", f.b.Block(stmts...))
	return New(f.u).Check()
}

func mustCheck(t *testing.T, f *fixture, stmts ...ast.NodeID) {
	t.Helper()
	if err := f.check(t, config.SurfaceShader, stmts...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectCode(t *testing.T, err error, code diagnostics.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got none", code)
	}
	if !diagnostics.HasCode(err, code) {
		t.Fatalf("expected error %s, got %v", code, err)
	}
}

func TestAssignFloatToColorInsertsOneCast(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	c := f.u.DeclareVar("c", ts.T(ts.Color))
	lit := f.b.Float(1)
	assign := f.b.Assign(c, lit)
	mustCheck(t, f, assign)

	tree := f.u.Tree
	if got := tree.Count(f.u.Shader.Body, ast.KindCast); got != 1 {
		t.Fatalf("got %d casts, want 1: %s", got, tree.Dump(f.u.Shader.Body))
	}
	cast := tree.Child(assign, 0)
	cn := tree.Node(cast)
	if cn.Kind != ast.KindCast || cn.CastTo.Base != ts.Color || cn.Type.Base != ts.Color {
		t.Fatalf("value is %s", tree.Dump(cast))
	}
	if tree.Child(cast, 0) != lit || tree.Node(lit).Type.Base != ts.Float {
		t.Errorf("cast operand is %s", tree.Dump(tree.Child(cast, 0)))
	}
}

func TestNoiseOverloadByArity(t *testing.T) {
	tests := []struct {
		name   string
		args   func(f *fixture) []ast.NodeID
		opcode string
	}{
		{"point", func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Var(f.std("P"))}
		}, "fnoise3"},
		{"point and float", func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Var(f.std("P")), f.b.Float(0.5)}
		}, "fnoise4"},
		{"float", func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Var(f.std("s"))}
		}, "fnoise1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.SurfaceShader)
			x := f.u.DeclareVar("x", ts.T(ts.Float))
			call := f.b.Call("noise", tt.args(f)...)
			mustCheck(t, f, f.b.Assign(x, call))
			n := f.u.Tree.Node(call)
			if got := f.u.Func(n.Func).Opcode; got != tt.opcode {
				t.Errorf("resolved %s, want %s", got, tt.opcode)
			}
			if len(n.Candidates) != 1 {
				t.Errorf("candidates not narrowed: %v", n.Candidates)
			}
		})
	}
}

func TestOverloadReturnTypeFromContext(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	c := f.u.DeclareVar("c", ts.T(ts.Color))
	call := f.b.Call("noise", f.b.Var(f.std("P")))
	assign := f.b.Assign(c, call)
	mustCheck(t, f, assign)
	if got := f.u.Func(f.u.Tree.Node(call).Func).Opcode; got != "cnoise3" {
		t.Errorf("resolved %s, want cnoise3", got)
	}
	if f.u.Tree.Child(assign, 0) != call {
		t.Errorf("unexpected cast around call: %s", f.u.Tree.Dump(assign))
	}
}

// buildOverloads defines n local overloads named pick taking one float and
// returning float, then checks float x = pick(1) and returns the chosen one.
func buildOverloads(t *testing.T, n int) (ast.FuncID, []ast.FuncID) {
	t.Helper()
	f := newFixture(config.SurfaceShader)
	var defs []ast.FuncID
	// An inexact overload declared first.
	p := f.u.DeclareVar("p", ts.T(ts.Point))
	inexact, err := f.u.DefineFunction("pick", ts.T(ts.Float),
		[]ast.VarID{p}, f.b.Block(f.b.Return(f.b.Float(0))))
	if err != nil {
		t.Fatal(err)
	}
	defs = append(defs, inexact)
	for i := 0; i < n; i++ {
		a := f.u.DeclareVar("a", ts.T(ts.Float))
		id, err := f.u.DefineFunction("pick", ts.T(ts.Float),
			[]ast.VarID{a}, f.b.Block(f.b.Return(f.b.Var(a))))
		if err != nil {
			t.Fatal(err)
		}
		defs = append(defs, id)
	}
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	call := f.b.Call("pick", f.b.Float(1))
	mustCheck(t, f, f.b.Assign(x, call))
	return f.u.Tree.Node(call).Func, defs
}

func TestOverloadResolutionMonotonic(t *testing.T) {
	one, defs1 := buildOverloads(t, 1)
	two, defs2 := buildOverloads(t, 2)
	if one != defs1[1] {
		t.Fatalf("exact overload not chosen: got %d, defs %v", one, defs1)
	}
	if two != defs2[1] {
		t.Errorf("adding an exact overload changed the choice: got %d, defs %v", two, defs2)
	}
}

func TestBinaryCommonType(t *testing.T) {
	tests := []struct {
		name     string
		build    func(f *fixture) ast.NodeID
		want     ts.BaseType
		castSide int // -1 none, 0 lhs, 1 rhs
	}{
		{"color times float casts rhs", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpMul, f.b.Var(f.std("Cs")), f.b.Float(2))
		}, ts.Color, 1},
		{"float times color casts lhs", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpMul, f.b.Float(2), f.b.Var(f.std("Cs")))
		}, ts.Color, 0},
		{"point plus vector keeps lhs", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpAdd, f.b.Var(f.std("P")), f.b.Var(f.std("I")))
		}, ts.Point, 1},
		{"float plus float", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpAdd, f.b.Var(f.std("s")), f.b.Var(f.std("t")))
		}, ts.Float, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.SurfaceShader)
			expr := tt.build(f)
			mustCheck(t, f, expr)
			tree := f.u.Tree
			n := tree.Node(expr)
			if n.Type.Base != tt.want || !n.Type.IsVarying() {
				t.Fatalf("type = %s, want varying %s", n.Type, tt.want)
			}
			for side := 0; side < 2; side++ {
				isCast := tree.Kind(tree.Child(expr, side)) == ast.KindCast
				if isCast != (side == tt.castSide) {
					t.Errorf("side %d cast = %v: %s", side, isCast, tree.Dump(expr))
				}
			}
		})
	}
}

func TestTupleResolution(t *testing.T) {
	tuple3 := func(f *fixture) ast.NodeID {
		return f.b.Tuple(f.b.Float(1), f.b.Float(0), f.b.Float(0))
	}
	t.Run("color context", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		c := f.u.DeclareVar("c", ts.T(ts.Color))
		assign := f.b.Assign(c, tuple3(f))
		mustCheck(t, f, assign)
		cast := f.u.Tree.Node(f.u.Tree.Child(assign, 0))
		if cast.Kind != ast.KindCast || cast.CastTo.Base != ts.Color {
			t.Errorf("got %s", f.u.Tree.Dump(assign))
		}
	})
	t.Run("follows other operand", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		expr := f.b.Binary(ast.OpAdd, tuple3(f), f.b.Var(f.std("Cs")))
		mustCheck(t, f, expr)
		cast := f.u.Tree.Node(f.u.Tree.Child(expr, 0))
		if cast.Kind != ast.KindCast || cast.CastTo.Base != ts.Color {
			t.Errorf("got %s", f.u.Tree.Dump(expr))
		}
	})
	t.Run("no context defaults to point", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		tup := tuple3(f)
		mustCheck(t, f, tup)
		parent := f.u.Tree.Node(f.u.Tree.Node(tup).Parent)
		if parent.Kind != ast.KindCast || parent.CastTo.Base != ts.Point {
			t.Errorf("got %s", f.u.Tree.Dump(f.u.Shader.Body))
		}
	})
	t.Run("explicit cast resolves literal", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		v := f.u.DeclareVar("v", ts.T(ts.Vector))
		assign := f.b.Assign(v, f.b.Cast(ts.Vector, tuple3(f)))
		mustCheck(t, f, assign)
		if got := f.u.Tree.Count(assign, ast.KindCast); got != 1 {
			t.Errorf("got %d casts: %s", got, f.u.Tree.Dump(assign))
		}
	})
	t.Run("matrix literal", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		m := f.u.DeclareVar("m", ts.T(ts.Matrix))
		elems := make([]ast.NodeID, 16)
		for i := range elems {
			elems[i] = f.b.Float(float64(i))
		}
		mustCheck(t, f, f.b.Assign(m, f.b.Tuple(elems...)))
	})
	t.Run("bad element count", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		m := f.u.DeclareVar("m", ts.T(ts.Matrix))
		elems := make([]ast.NodeID, 5)
		for i := range elems {
			elems[i] = f.b.Float(float64(i))
		}
		expectCode(t, f.check(t, config.SurfaceShader, f.b.Assign(m, f.b.Tuple(elems...))), diagnostics.ErrBadInitializer)
	})
	t.Run("no cast to float", func(t *testing.T) {
		f := newFixture(config.SurfaceShader)
		x := f.u.DeclareVar("x", ts.T(ts.Float))
		expectCode(t, f.check(t, config.SurfaceShader, f.b.Assign(x, tuple3(f))), diagnostics.ErrNoCast)
	})
}

func TestOperatorResultTypes(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *fixture) ast.NodeID
		want  ts.BaseType
	}{
		{"relational", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpLt, f.b.Var(f.std("s")), f.b.Float(0.5))
		}, ts.Float},
		{"equality on colors", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpEq, f.b.Var(f.std("Cs")), f.b.Var(f.std("Os")))
		}, ts.Float},
		{"dot", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpDot, f.b.Var(f.std("N")), f.b.Var(f.std("I")))
		}, ts.Float},
		{"cross", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpCross, f.b.Var(f.std("I")), f.b.Var(f.std("N")))
		}, ts.Vector},
		{"logical", func(f *fixture) ast.NodeID {
			return f.b.Binary(ast.OpAnd, f.b.Var(f.std("s")), f.b.Var(f.std("t")))
		}, ts.Float},
		{"negate color", func(f *fixture) ast.NodeID {
			return f.b.Unary(ast.OpNeg, f.b.Var(f.std("Cs")))
		}, ts.Color},
		{"ternary", func(f *fixture) ast.NodeID {
			return f.b.Ternary(f.b.Var(f.std("s")), f.b.Var(f.std("Cs")), f.b.Float(0))
		}, ts.Color},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.SurfaceShader)
			expr := tt.build(f)
			mustCheck(t, f, expr)
			if got := f.u.Tree.Node(expr).Type.Base; got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name  string
		kind  string
		build func(f *fixture) []ast.NodeID
		code  diagnostics.ErrorCode
	}{
		{"varying into uniform", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			x := f.u.DeclareVar("x", ts.UniformOf(ts.Float))
			return []ast.NodeID{f.b.Assign(x, f.b.Var(f.std("s")))}
		}, diagnostics.ErrVaryingUniform},
		{"uniform under varying condition", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			x := f.u.DeclareVar("x", ts.UniformOf(ts.Float))
			return []ast.NodeID{f.b.If(f.b.Var(f.std("s")), f.b.Assign(x, f.b.Float(1)), ast.NoNode)}
		}, diagnostics.ErrVaryingUniform},
		{"index non-array", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Index(f.std("s"), f.b.Float(0))}
		}, diagnostics.ErrNotArray},
		{"output slot needs variable", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			p := f.b.Binary(ast.OpAdd, f.b.Var(f.std("P")), f.b.Var(f.std("P")))
			return []ast.NodeID{f.b.Call("setxcomp", p, f.b.Float(1))}
		}, diagnostics.ErrNotVariable},
		{"no overload", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Call("sin", f.b.String("a"))}
		}, diagnostics.ErrNoOverload},
		{"arity", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Call("sin")}
		}, diagnostics.ErrNoOverload},
		{"unknown function", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Call("nosuch", f.b.Float(1))}
		}, diagnostics.ErrUndefined},
		{"return in shader body", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Return(ast.NoNode)}
		}, diagnostics.ErrReturn},
		{"string arithmetic", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Binary(ast.OpAdd, f.b.String("a"), f.b.Float(1))}
		}, diagnostics.ErrBadOperand},
		{"illuminance in light shader", config.LightShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Illuminance(f.b.Block(), f.b.Var(f.std("P")))}
		}, diagnostics.ErrBadConstruct},
		{"solar in surface shader", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Solar(f.b.Block())}
		}, diagnostics.ErrBadConstruct},
		{"illuminance arity", config.SurfaceShader, func(f *fixture) []ast.NodeID {
			return []ast.NodeID{f.b.Illuminance(f.b.Block(), f.b.Var(f.std("P")), f.b.Var(f.std("N")))}
		}, diagnostics.ErrBadConstruct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.kind)
			expectCode(t, f.check(t, tt.kind, tt.build(f)...), tt.code)
		})
	}
}

func TestRecursionRejected(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	a := f.u.DeclareVar("a", ts.T(ts.Float))
	body := f.b.Block(f.b.Return(f.b.Call("loop", f.b.Var(a))))
	if _, err := f.u.DefineFunction("loop", ts.T(ts.Float), []ast.VarID{a}, body); err != nil {
		t.Fatal(err)
	}
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	err := f.check(t, config.SurfaceShader, f.b.Assign(x, f.b.Call("loop", f.b.Float(1))))
	expectCode(t, err, diagnostics.ErrRecursion)
}

func TestReturnMustBeLast(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	a := f.u.DeclareVar("a", ts.T(ts.Float))
	body := f.b.Block(f.b.Return(f.b.Var(a)), f.b.Assign(a, f.b.Float(1)))
	if _, err := f.u.DefineFunction("early", ts.T(ts.Void), []ast.VarID{a}, body); err != nil {
		t.Fatal(err)
	}
	expectCode(t, f.check(t, config.SurfaceShader), diagnostics.ErrReturn)
}

func TestErrorCarriesLine(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	f.b.SetLine(42)
	bad := f.b.Call("sin", f.b.String("a"))
	err := f.check(t, config.SurfaceShader, bad)
	d, ok := err.(*diagnostics.Error)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if d.Line != 42 || d.File != "test.sl" {
		t.Errorf("location = %s:%d", d.File, d.Line)
	}
}

func TestCheckedTreeIsConcrete(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	ci := f.std("Ci")
	diffuse := f.b.Call("diffuse", f.b.Call("normalize", f.b.Var(f.std("N"))))
	stmt := f.b.Assign(ci, f.b.Binary(ast.OpMul, f.b.Var(f.std("Cs")), diffuse))
	loop := f.b.Illuminance(f.b.Block(
		f.b.AssignOp(ci, ast.OpAdd, f.b.Var(f.std("Cl"))),
	), f.b.Var(f.std("P")), f.b.Var(f.std("N")), f.b.Float(1.57))
	mustCheck(t, f, stmt, loop)

	f.u.Tree.Walk(f.u.Shader.Body, func(id ast.NodeID) bool {
		n := f.u.Tree.Node(id)
		if !n.Kind.IsStatement() && n.Kind != ast.KindAssign && !n.Type.Base.IsConcrete() {
			t.Errorf("node %s has type %s", n.Kind, n.Type)
		}
		return true
	})
}

// define adds a void local function or fails the test.
func (f *fixture) define(t *testing.T, name string, formals []ast.VarID, stmts ...ast.NodeID) {
	t.Helper()
	if _, err := f.u.DefineFunction(name, ts.T(ts.Void), formals, f.b.Block(stmts...)); err != nil {
		t.Fatal(err)
	}
}

func TestLocalCallStorageClasses(t *testing.T) {
	varyingOut := ts.Type{Base: ts.Float, Output: true, Class: ts.Varying}
	uniformOut := ts.Type{Base: ts.Float, Output: true, Class: ts.Uniform}
	tests := []struct {
		name  string
		build func(t *testing.T, f *fixture) []ast.NodeID
		ok    bool
	}{
		{"uniform actual for varying output", func(t *testing.T, f *fixture) []ast.NodeID {
			r := f.u.DeclareVar("r", varyingOut)
			f.define(t, "setu", []ast.VarID{r}, f.b.Assign(r, f.b.Var(f.std("u"))))
			y := f.u.DeclareVar("y", ts.UniformOf(ts.Float))
			return []ast.NodeID{f.b.Call("setu", f.b.Var(y))}
		}, false},
		{"varying actual for varying output", func(t *testing.T, f *fixture) []ast.NodeID {
			r := f.u.DeclareVar("r", varyingOut)
			f.define(t, "setu", []ast.VarID{r}, f.b.Assign(r, f.b.Var(f.std("u"))))
			y := f.u.DeclareVar("y", ts.VaryingOf(ts.Float))
			return []ast.NodeID{f.b.Call("setu", f.b.Var(y))}
		}, true},
		{"uniform write outside varying condition", func(t *testing.T, f *fixture) []ast.NodeID {
			g := f.u.DeclareVar("g", ts.UniformOf(ts.Float))
			f.define(t, "bump", nil, f.b.Assign(g, f.b.Float(7)))
			return []ast.NodeID{f.b.Call("bump")}
		}, true},
		{"uniform write under varying if", func(t *testing.T, f *fixture) []ast.NodeID {
			g := f.u.DeclareVar("g", ts.UniformOf(ts.Float))
			f.define(t, "bump", nil, f.b.Assign(g, f.b.Float(7)))
			cond := f.b.Binary(ast.OpGt, f.b.Var(f.std("u")), f.b.Float(0.5))
			return []ast.NodeID{f.b.If(cond, f.b.Call("bump"), ast.NoNode)}
		}, false},
		{"uniform write under varying while through a second function", func(t *testing.T, f *fixture) []ast.NodeID {
			g := f.u.DeclareVar("g", ts.UniformOf(ts.Float))
			f.define(t, "bump", nil, f.b.Assign(g, f.b.Float(7)))
			f.define(t, "outer", nil, f.b.Call("bump"))
			return []ast.NodeID{f.b.While(f.b.Var(f.std("s")), f.b.Call("outer"))}
		}, false},
		{"uniform output bound by reference under varying if", func(t *testing.T, f *fixture) []ast.NodeID {
			r := f.u.DeclareVar("r", uniformOut)
			f.define(t, "setone", []ast.VarID{r}, f.b.Assign(r, f.b.Float(1)))
			y := f.u.DeclareVar("y", ts.UniformOf(ts.Float))
			return []ast.NodeID{f.b.If(f.b.Var(f.std("s")), f.b.Call("setone", f.b.Var(y)), ast.NoNode)}
		}, false},
		{"uniform formal given a copy under varying if", func(t *testing.T, f *fixture) []ast.NodeID {
			a := f.u.DeclareVar("a", ts.UniformOf(ts.Float))
			f.define(t, "scratch", []ast.VarID{a}, f.b.Assign(a, f.b.Float(1)))
			return []ast.NodeID{f.b.If(f.b.Var(f.std("s")), f.b.Call("scratch", f.b.Float(2)), ast.NoNode)}
		}, true},
		{"builtin output slot on uniform under varying if", func(t *testing.T, f *fixture) []ast.NodeID {
			p := f.u.DeclareVar("q", ts.UniformOf(ts.Point))
			set := f.b.Call("setxcomp", f.b.Var(p), f.b.Float(1))
			return []ast.NodeID{f.b.If(f.b.Var(f.std("s")), set, ast.NoNode)}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.SurfaceShader)
			err := f.check(t, config.SurfaceShader, tt.build(t, f)...)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			expectCode(t, err, diagnostics.ErrVaryingUniform)
		})
	}
}
