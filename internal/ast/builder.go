package ast

import "github.com/funvibe/shadevm/internal/typesystem"

// FuncLookup resolves a function name to its same-named declarations in
// declaration order.
type FuncLookup interface {
	LookupFunctions(name string) []FuncID
}

// Builder constructs trees. Front ends (or tests) drive it in place of a
// parser; every method returns the new node's id.
type Builder struct {
	Tree  *Tree
	funcs FuncLookup
	line  int
}

// NewBuilder creates a builder writing into tree. funcs supplies overload
// candidates for Call nodes.
func NewBuilder(tree *Tree, funcs FuncLookup) *Builder {
	return &Builder{Tree: tree, funcs: funcs, line: 1}
}

// SetLine sets the source line stamped on subsequently created nodes.
func (b *Builder) SetLine(line int) *Builder {
	b.line = line
	return b
}

func (b *Builder) node(kind Kind, children ...NodeID) NodeID {
	id := b.Tree.New(kind, b.line)
	for _, c := range children {
		b.Tree.Append(id, c)
	}
	return id
}

// Block groups statements.
func (b *Builder) Block(stmts ...NodeID) NodeID {
	return b.node(KindBlock, stmts...)
}

// Float is a float literal.
func (b *Builder) Float(v float64) NodeID {
	id := b.node(KindFloat)
	b.Tree.Node(id).Num = v
	return id
}

// String is a string literal.
func (b *Builder) String(s string) NodeID {
	id := b.node(KindString)
	b.Tree.Node(id).Str = s
	return id
}

// Var references a variable.
func (b *Builder) Var(v VarID) NodeID {
	id := b.node(KindVar)
	b.Tree.Node(id).Var = v
	return id
}

// Index references element index of array variable v.
func (b *Builder) Index(v VarID, index NodeID) NodeID {
	id := b.node(KindArrayRef, index)
	b.Tree.Node(id).Var = v
	return id
}

// Tuple is an aggregate literal: 3 elements make a triple, 4 an hpoint,
// 16 a matrix.
func (b *Builder) Tuple(elems ...NodeID) NodeID {
	return b.node(KindTuple, elems...)
}

// SpaceTuple is a tuple literal qualified by a coordinate or colour space,
// as in point "shader" (0,0,1) or color "hsv" (0.5,1,1).
func (b *Builder) SpaceTuple(space string, elems ...NodeID) NodeID {
	id := b.node(KindTuple, elems...)
	b.Tree.Node(id).Str = space
	return id
}

// Unary applies OpNeg or OpNot.
func (b *Builder) Unary(op Op, x NodeID) NodeID {
	id := b.node(KindUnary, x)
	b.Tree.Node(id).Op = op
	return id
}

// Binary applies an arithmetic, relational or logical operator; the node
// kind follows from op.
func (b *Builder) Binary(op Op, lhs, rhs NodeID) NodeID {
	kind := KindBinary
	switch op {
	case OpLt, OpLe, OpGt, OpGe, OpEq, OpNe:
		kind = KindRelational
	case OpAnd, OpOr:
		kind = KindLogical
	}
	id := b.node(kind, lhs, rhs)
	b.Tree.Node(id).Op = op
	return id
}

// Cast converts x explicitly.
func (b *Builder) Cast(to typesystem.BaseType, x NodeID) NodeID {
	id := b.node(KindCast, x)
	b.Tree.Node(id).CastTo = typesystem.T(to)
	return id
}

// Assign stores value into v.
func (b *Builder) Assign(v VarID, value NodeID) NodeID {
	return b.AssignOp(v, OpNone, value)
}

// AssignOp is a compound assignment (v op= value).
func (b *Builder) AssignOp(v VarID, op Op, value NodeID) NodeID {
	id := b.node(KindAssign, value)
	n := b.Tree.Node(id)
	n.Var = v
	n.Op = op
	return id
}

// AssignIndex stores value into element index of array v.
func (b *Builder) AssignIndex(v VarID, index, value NodeID) NodeID {
	id := b.node(KindAssign, index, value)
	n := b.Tree.Node(id)
	n.Var = v
	n.Indexed = true
	return id
}

// Call invokes a function by name; candidates come from the lookup.
func (b *Builder) Call(name string, args ...NodeID) NodeID {
	id := b.node(KindCall, args...)
	n := b.Tree.Node(id)
	n.Str = name
	if b.funcs != nil {
		n.Candidates = append([]FuncID(nil), b.funcs.LookupFunctions(name)...)
	}
	return id
}

// Ternary is cond ? a : c.
func (b *Builder) Ternary(cond, a, c NodeID) NodeID {
	return b.node(KindTernary, cond, a, c)
}

// If builds a conditional; els may be NoNode.
func (b *Builder) If(cond, then, els NodeID) NodeID {
	if els == NoNode {
		return b.node(KindIf, cond, then)
	}
	return b.node(KindIf, cond, then, els)
}

// While builds a loop.
func (b *Builder) While(cond, body NodeID) NodeID {
	return b.node(KindWhile, cond, body)
}

// For builds a for loop. init and step are statements; missing parts
// become an empty block (or a true condition).
func (b *Builder) For(init, cond, step, body NodeID) NodeID {
	if init == NoNode {
		init = b.Block()
	}
	if cond == NoNode {
		cond = b.Float(1)
	}
	if step == NoNode {
		step = b.Block()
	}
	return b.node(KindFor, init, cond, step, body)
}

// Illuminance builds illuminance(P) or illuminance(P, axis, angle).
func (b *Builder) Illuminance(body NodeID, args ...NodeID) NodeID {
	return b.node(KindIlluminance, append(args, body)...)
}

// Illuminate builds illuminate(P) or illuminate(P, axis, angle).
func (b *Builder) Illuminate(body NodeID, args ...NodeID) NodeID {
	return b.node(KindIlluminate, append(args, body)...)
}

// Solar builds solar() or solar(axis, angle).
func (b *Builder) Solar(body NodeID, args ...NodeID) NodeID {
	return b.node(KindSolar, append(args, body)...)
}

// Return ends a local function body; value may be NoNode.
func (b *Builder) Return(value NodeID) NodeID {
	if value == NoNode {
		return b.node(KindReturn)
	}
	return b.node(KindReturn, value)
}
