package analyzer

import (
	"testing"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/config"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

func TestOptimiseFoldsConstants(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	sum := f.b.Binary(ast.OpMul, f.b.Binary(ast.OpAdd, f.b.Float(1), f.b.Float(2)), f.b.Float(4))
	assign := f.b.Assign(x, sum)
	mustCheck(t, f, assign)
	before := f.u.Tree.Node(sum).Type

	c := New(f.u)
	if n := c.Optimise(); n != 2 {
		t.Errorf("Optimise made %d rewrites, want 2", n)
	}
	value := f.u.Tree.Node(f.u.Tree.Child(assign, 0))
	if value.Kind != ast.KindFloat || value.Num != 12 {
		t.Fatalf("value = %s", f.u.Tree.Dump(f.u.Tree.Child(assign, 0)))
	}
	if value.Type != before {
		t.Errorf("type changed from %s to %s", before, value.Type)
	}
}

func TestOptimiseKeepsDivisionByZero(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	assign := f.b.Assign(x, f.b.Binary(ast.OpDiv, f.b.Float(1), f.b.Float(0)))
	mustCheck(t, f, assign)
	New(f.u).Optimise()
	if k := f.u.Tree.Kind(f.u.Tree.Child(assign, 0)); k != ast.KindBinary {
		t.Errorf("division folded to %s", k)
	}
}

func TestOptimiseRemovesDeadBranches(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	then := f.b.Assign(x, f.b.Float(1))
	els := f.b.Assign(x, f.b.Float(2))
	cond := f.b.If(f.b.Binary(ast.OpGt, f.b.Float(1), f.b.Float(2)), then, els)
	loop := f.b.While(f.b.Float(0), f.b.Assign(x, f.b.Float(3)))
	mustCheck(t, f, cond, loop)

	New(f.u).Optimise()
	stmts := f.u.Tree.Children(f.u.Shader.Body)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements", len(stmts))
	}
	if stmts[0] != els {
		t.Errorf("if not replaced by else branch: %s", f.u.Tree.Dump(f.u.Shader.Body))
	}
	if k := f.u.Tree.Kind(stmts[1]); k != ast.KindBlock || f.u.Tree.NumChildren(stmts[1]) != 0 {
		t.Errorf("while(0) not removed: %s", f.u.Tree.Dump(stmts[1]))
	}
}

func TestOptimiseLeavesVaryingAlone(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	cond := f.b.If(f.b.Var(f.std("s")), f.b.Assign(x, f.b.Float(1)), ast.NoNode)
	mustCheck(t, f, cond)
	if n := New(f.u).Optimise(); n != 0 {
		t.Errorf("Optimise made %d rewrites", n)
	}
}

func TestOptimiseTernaryKeepsStorageClass(t *testing.T) {
	f := newFixture(config.SurfaceShader)
	x := f.u.DeclareVar("x", ts.T(ts.Float))
	y := f.u.DeclareVar("y", ts.UniformOf(ts.Float))
	mixed := f.b.Ternary(f.b.Float(1), f.b.Float(0.5), f.b.Var(f.std("u")))
	same := f.b.Ternary(f.b.Float(0), f.b.Float(0.5), f.b.Float(0.25))
	toX, toY := f.b.Assign(x, mixed), f.b.Assign(y, same)
	mustCheck(t, f, toX, toY)

	if n := New(f.u).Optimise(); n != 1 {
		t.Errorf("Optimise made %d rewrites, want 1", n)
	}
	tree := f.u.Tree
	if got := tree.Child(toX, 0); got != mixed || !tree.Node(got).Type.IsVarying() {
		t.Errorf("varying ternary folded: %s", tree.Dump(got))
	}
	value := tree.Node(tree.Child(toY, 0))
	if value.Kind != ast.KindFloat || value.Num != 0.25 || value.Type.IsVarying() {
		t.Errorf("uniform ternary = %s", tree.Dump(tree.Child(toY, 0)))
	}
}
