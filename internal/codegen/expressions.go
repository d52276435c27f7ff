package codegen

import (
	"strconv"

	"github.com/funvibe/shadevm/internal/ast"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

var binaryOps = map[ast.Op]string{
	ast.OpAdd:   "add",
	ast.OpSub:   "sub",
	ast.OpMul:   "mul",
	ast.OpDiv:   "div",
	ast.OpDot:   "dot",
	ast.OpCross: "crs",
	ast.OpLt:    "ls",
	ast.OpLe:    "le",
	ast.OpGt:    "gt",
	ast.OpGe:    "ge",
	ast.OpEq:    "eq",
	ast.OpNe:    "ne",
	ast.OpAnd:   "land",
	ast.OpOr:    "lor",
}

func (c *Compiler) suffix(id ast.NodeID) string {
	return string(c.tree.Node(id).Type.Base.OpSuffix())
}

// compileExpression emits code leaving the value of id on the stack.
// Calls to void functions leave nothing.
func (c *Compiler) compileExpression(id ast.NodeID) error {
	n := c.tree.Node(id)
	switch n.Kind {
	case ast.KindFloat:
		c.emit(+1, "pushif", formatFloat(n.Num))
	case ast.KindString:
		c.emit(+1, "pushis", strconv.Quote(n.Str))
	case ast.KindVar:
		if c.resolved(n.Var).Type.Array {
			return c.errorf(id, "array %s used as a value", c.resolved(n.Var).Name)
		}
		c.emit(+1, "pushv", c.ref(n.Var))
	case ast.KindArrayRef:
		if err := c.compileExpression(c.tree.Child(id, 0)); err != nil {
			return err
		}
		c.emit(0, "ipushv", c.ref(n.Var))
	case ast.KindUnary:
		return c.compileUnary(id)
	case ast.KindBinary, ast.KindRelational, ast.KindLogical:
		return c.compileBinary(id)
	case ast.KindCast:
		return c.compileCast(id)
	case ast.KindAssign:
		return c.compileAssign(id, true)
	case ast.KindCall:
		return c.compileCall(id)
	case ast.KindTernary:
		return c.compileTernary(id)
	case ast.KindTuple:
		return c.errorf(id, "aggregate literal without a target type")
	default:
		return c.errorf(id, "%s node in expression position", n.Kind)
	}
	return nil
}

func (c *Compiler) compileUnary(id ast.NodeID) error {
	x := c.tree.Child(id, 0)
	if err := c.compileExpression(x); err != nil {
		return err
	}
	switch c.tree.Node(id).Op {
	case ast.OpNeg:
		c.emit(0, "neg"+c.suffix(x))
	case ast.OpNot:
		c.emit(0, "notf")
	default:
		return c.errorf(id, "unknown unary operator")
	}
	return nil
}

// compileBinary emits lhs then rhs, so the right operand is on top, and
// an opcode suffixed with both operand types (addff, dotpv, eqss).
func (c *Compiler) compileBinary(id ast.NodeID) error {
	op, ok := binaryOps[c.tree.Node(id).Op]
	if !ok {
		return c.errorf(id, "unknown operator %q", c.tree.Node(id).Op)
	}
	lhs, rhs := c.tree.Child(id, 0), c.tree.Child(id, 1)
	if err := c.compileExpression(lhs); err != nil {
		return err
	}
	if err := c.compileExpression(rhs); err != nil {
		return err
	}
	c.emit(-1, op+c.suffix(lhs)+c.suffix(rhs))
	return nil
}

// compileCast emits a conversion. Point, vector and normal share a layout
// and integers are floats, so those casts emit nothing.
func (c *Compiler) compileCast(id ast.NodeID) error {
	x := c.tree.Child(id, 0)
	to := c.tree.Node(id).CastTo.Base
	if c.tree.Kind(x) == ast.KindTuple {
		return c.compileTuple(x, to)
	}
	if err := c.compileExpression(x); err != nil {
		return err
	}
	from := c.tree.Node(x).Type.Base
	if ts.NeedsInstruction(from, to) && from.OpSuffix() != to.OpSuffix() {
		c.emit(0, "set"+string(from.OpSuffix())+string(to.OpSuffix()))
	}
	return nil
}

// compileTuple builds an aggregate literal of type to. Elements are pushed
// last first, so element 0 ends up on top. A literal qualified by a space
// name is then converted from that space.
func (c *Compiler) compileTuple(id ast.NodeID, to ts.BaseType) error {
	elems := c.tree.Children(id)
	for i := len(elems) - 1; i >= 0; i-- {
		if err := c.compileExpression(elems[i]); err != nil {
			return err
		}
	}
	from := c.tree.Node(id).Type.Base
	c.emit(1-len(elems), "set"+string(from.OpSuffix())+string(to.OpSuffix()))
	space := c.tree.Node(id).Str
	if space == "" {
		return nil
	}
	if !to.IsTripleLayout() {
		return c.errorf(id, "%s literal cannot name a space", to)
	}
	c.emit(+1, "pushis", strconv.Quote(space))
	c.emit(-1, string(to.OpSuffix())+"fromspace")
	return nil
}

// compileAssign stores into a variable or array element. A compound
// assignment loads the old value first. keep leaves the stored value on
// the stack for assignments used as expressions.
func (c *Compiler) compileAssign(id ast.NodeID, keep bool) error {
	n := c.tree.Node(id)
	v, op, indexed := n.Var, n.Op, n.Indexed
	var index, value ast.NodeID
	if indexed {
		index, value = c.tree.Child(id, 0), c.tree.Child(id, 1)
	} else {
		value = c.tree.Child(id, 0)
	}

	if op != ast.OpNone {
		name, ok := binaryOps[op]
		if !ok {
			return c.errorf(id, "unknown compound operator %q", op)
		}
		if indexed {
			if err := c.compileExpression(index); err != nil {
				return err
			}
			c.emit(0, "ipushv", c.ref(v))
		} else {
			c.emit(+1, "pushv", c.ref(v))
		}
		if err := c.compileExpression(value); err != nil {
			return err
		}
		s := c.suffix(value)
		c.emit(-1, name+s+s)
	} else if err := c.compileExpression(value); err != nil {
		return err
	}

	if keep {
		c.emit(+1, "dup")
	}
	if indexed {
		if err := c.compileExpression(index); err != nil {
			return err
		}
		c.emit(-2, "ipop", c.target(v))
		return nil
	}
	c.emit(-1, "pop", c.target(v))
	return nil
}

// compileTernary evaluates both branches and merges them per point.
func (c *Compiler) compileTernary(id ast.NodeID) error {
	kids := c.tree.Children(id)
	for _, k := range []ast.NodeID{kids[2], kids[1], kids[0]} {
		if err := c.compileExpression(k); err != nil {
			return err
		}
	}
	c.emit(-2, "merge"+c.suffix(id))
	return nil
}
