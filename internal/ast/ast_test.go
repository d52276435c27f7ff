package ast

import (
	"testing"

	"github.com/funvibe/shadevm/internal/typesystem"
)

type fakeFuncs map[string][]FuncID

func (f fakeFuncs) LookupFunctions(name string) []FuncID { return f[name] }

func TestBuilderLinks(t *testing.T) {
	tree := NewTree("test.sl")
	b := NewBuilder(tree, nil)

	x := b.Float(1)
	y := b.Float(2)
	sum := b.Binary(OpAdd, x, y)

	if got := tree.Children(sum); len(got) != 2 || got[0] != x || got[1] != y {
		t.Fatalf("children = %v, want [%d %d]", got, x, y)
	}
	if tree.Node(x).Parent != sum || tree.Node(y).Parent != sum {
		t.Error("parent links not set")
	}
	if tree.Node(x).NextSibling != y || tree.Node(y).NextSibling != NoNode {
		t.Error("sibling links wrong")
	}
	if tree.NumChildren(sum) != 2 || tree.Child(sum, 1) != y || tree.Child(sum, 2) != NoNode {
		t.Error("Child/NumChildren mismatch")
	}
}

func TestBinaryKinds(t *testing.T) {
	tree := NewTree("")
	b := NewBuilder(tree, nil)
	tests := []struct {
		op   Op
		kind Kind
	}{
		{OpAdd, KindBinary},
		{OpCross, KindBinary},
		{OpLe, KindRelational},
		{OpNe, KindRelational},
		{OpOr, KindLogical},
	}
	for _, tt := range tests {
		id := b.Binary(tt.op, b.Float(1), b.Float(2))
		if got := tree.Kind(id); got != tt.kind {
			t.Errorf("Binary(%s) kind = %s, want %s", tt.op, got, tt.kind)
		}
	}
}

func TestInsertParent(t *testing.T) {
	tree := NewTree("")
	b := NewBuilder(tree, nil)
	lhs := b.Float(1)
	rhs := b.Float(2)
	mul := b.Binary(OpMul, lhs, rhs)

	cast := tree.InsertParent(rhs, KindCast)
	tree.Node(cast).CastTo = typesystem.T(typesystem.Color)

	if tree.Child(mul, 1) != cast {
		t.Fatalf("cast not placed in rhs position: %s", tree.Dump(mul))
	}
	if tree.Node(cast).Parent != mul || tree.Node(rhs).Parent != cast {
		t.Error("parent links not rewritten")
	}
	if got := tree.Dump(mul); got != "(binary * (float 1) (cast color (float 2)))" {
		t.Errorf("Dump = %s", got)
	}

	// first-child position
	cast2 := tree.InsertParent(lhs, KindCast)
	if tree.Node(mul).FirstChild != cast2 || tree.Node(cast2).NextSibling != cast {
		t.Errorf("first-child insert broke links: %s", tree.Dump(mul))
	}
}

func TestReplace(t *testing.T) {
	tree := NewTree("")
	b := NewBuilder(tree, nil)
	a, c, d := b.Float(1), b.Float(2), b.Float(3)
	blk := b.Block(a, c, d)
	repl := b.Float(9)
	tree.Replace(c, repl)
	if got := tree.Dump(blk); got != "(block (float 1) (float 9) (float 3))" {
		t.Errorf("Dump = %s", got)
	}
	if tree.Node(c).Parent != NoNode {
		t.Error("replaced node should be detached")
	}
}

func TestCallCandidates(t *testing.T) {
	tree := NewTree("")
	b := NewBuilder(tree, fakeFuncs{"noise": {3, 4}})
	id := b.Call("noise", b.Float(1))
	n := tree.Node(id)
	if len(n.Candidates) != 2 || n.Candidates[0] != 3 {
		t.Errorf("candidates = %v", n.Candidates)
	}
	missing := b.Call("missing")
	if len(tree.Node(missing).Candidates) != 0 {
		t.Error("unknown function should have no candidates")
	}
}

func TestConstructs(t *testing.T) {
	tree := NewTree("")
	b := NewBuilder(tree, nil)
	body := b.Block()
	ill := b.Illuminance(body, b.Var(1), b.Var(2), b.Float(1.57))
	if tree.NumChildren(ill) != 4 || tree.Child(ill, 3) != body {
		t.Errorf("illuminance layout: %s", tree.Dump(ill))
	}
	sol := b.Solar(b.Block())
	if tree.NumChildren(sol) != 1 {
		t.Errorf("solar layout: %s", tree.Dump(sol))
	}
	iff := b.If(b.Float(1), b.Block(), NoNode)
	if tree.NumChildren(iff) != 2 {
		t.Errorf("if without else: %s", tree.Dump(iff))
	}
	if tree.Count(ill, KindVar) != 2 {
		t.Error("Count mismatch")
	}
	if !KindWhile.IsStatement() || KindCall.IsStatement() {
		t.Error("IsStatement mismatch")
	}
}

func TestSetLine(t *testing.T) {
	tree := NewTree("")
	b := NewBuilder(tree, nil)
	b.SetLine(42)
	id := b.Float(1)
	if tree.Node(id).Line != 42 {
		t.Errorf("line = %d", tree.Node(id).Line)
	}
	cast := tree.InsertParent(id, KindCast)
	if tree.Node(cast).Line != 42 {
		t.Error("inserted parent should inherit the child's line")
	}
}
