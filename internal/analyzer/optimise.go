package analyzer

import (
	"math"

	"github.com/funvibe/shadevm/internal/ast"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// Optimise simplifies every checked subtree in post-order: float constant
// arithmetic, comparisons and logic are folded, and branches with
// constant conditions are removed. No node's resolved type changes.
// It returns the number of rewrites.
func (c *Checker) Optimise() int {
	n := 0
	for _, root := range c.roots() {
		n += c.optimise(root)
	}
	return n
}

func (c *Checker) optimise(id ast.NodeID) int {
	n := 0
	for _, child := range c.tree.Children(id) {
		n += c.optimise(child)
	}
	if repl, ok := c.simplify(id); ok {
		if id == c.unit.Shader.Body {
			c.unit.Shader.Body = repl
		}
		c.replaceRoot(id, repl)
		c.tree.Replace(id, repl)
		n++
	}
	return n
}

// replaceRoot keeps parameter defaults and function bodies pointing at a
// replaced root node.
func (c *Checker) replaceRoot(old, repl ast.NodeID) {
	for _, p := range c.unit.Params() {
		if v := c.unit.Var(p); v.Default == old {
			v.Default = repl
		}
	}
	for _, f := range c.unit.LocalFunctions() {
		if def := c.unit.Func(f); def.Body == old {
			def.Body = repl
		}
	}
}

func (c *Checker) literal(id ast.NodeID) (float64, bool) {
	n := c.tree.Node(id)
	if n.Kind != ast.KindFloat {
		return 0, false
	}
	return n.Num, true
}

// simplify returns a replacement for id, if any.
func (c *Checker) simplify(id ast.NodeID) (ast.NodeID, bool) {
	n := c.tree.Node(id)
	typ := n.Type
	switch n.Kind {
	case ast.KindUnary:
		x, ok := c.literal(n.FirstChild)
		if !ok || typ.Base != ts.Float {
			return ast.NoNode, false
		}
		if n.Op == ast.OpNeg {
			return c.newFloat(id, -x, typ), true
		}
		return c.newFloat(id, truth(x == 0), typ), true

	case ast.KindBinary, ast.KindRelational, ast.KindLogical:
		if typ.Base != ts.Float {
			return ast.NoNode, false
		}
		l, lok := c.literal(n.FirstChild)
		r, rok := c.literal(c.tree.Node(n.FirstChild).NextSibling)
		if !lok || !rok {
			return ast.NoNode, false
		}
		v, ok := fold(n.Op, l, r)
		if !ok {
			return ast.NoNode, false
		}
		return c.newFloat(id, v, typ), true

	case ast.KindIf:
		cond, ok := c.literal(n.FirstChild)
		if !ok {
			return ast.NoNode, false
		}
		kids := c.tree.Children(id)
		switch {
		case cond != 0:
			return kids[1], true
		case len(kids) > 2:
			return kids[2], true
		}
		return c.emptyBlock(id), true

	case ast.KindWhile:
		if cond, ok := c.literal(n.FirstChild); ok && cond == 0 {
			return c.emptyBlock(id), true
		}

	case ast.KindTernary:
		cond, ok := c.literal(n.FirstChild)
		if !ok {
			return ast.NoNode, false
		}
		kids := c.tree.Children(id)
		pick := kids[2]
		if cond != 0 {
			pick = kids[1]
		}
		if t := c.tree.Node(pick).Type; t.Base != n.Type.Base || t.IsVarying() != n.Type.IsVarying() {
			return ast.NoNode, false
		}
		return pick, true
	}
	return ast.NoNode, false
}

func fold(op ast.Op, l, r float64) (float64, bool) {
	switch op {
	case ast.OpAdd:
		return l + r, true
	case ast.OpSub:
		return l - r, true
	case ast.OpMul:
		return l * r, true
	case ast.OpDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case ast.OpLt:
		return truth(l < r), true
	case ast.OpLe:
		return truth(l <= r), true
	case ast.OpGt:
		return truth(l > r), true
	case ast.OpGe:
		return truth(l >= r), true
	case ast.OpEq:
		return truth(l == r), true
	case ast.OpNe:
		return truth(l != r), true
	case ast.OpAnd:
		return truth(l != 0 && r != 0), true
	case ast.OpOr:
		return truth(l != 0 || r != 0), true
	}
	return 0, false
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *Checker) newFloat(at ast.NodeID, v float64, typ ts.Type) ast.NodeID {
	if math.IsNaN(v) {
		v = 0
	}
	id := c.tree.New(ast.KindFloat, c.tree.Node(at).Line)
	n := c.tree.Node(id)
	n.Num = v
	n.Type = typ
	return id
}

func (c *Checker) emptyBlock(at ast.NodeID) ast.NodeID {
	id := c.tree.New(ast.KindBlock, c.tree.Node(at).Line)
	c.tree.Node(id).Type = voidType
	return id
}
