package analyzer

import (
	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/diagnostics"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

var (
	anyFloat   = []ts.BaseType{ts.Float}
	anyPoint   = []ts.BaseType{ts.Point}
	anyVector  = []ts.BaseType{ts.Vector}
	anySpatial = []ts.BaseType{ts.Point, ts.Vector, ts.Normal}
)

// TypeCheck resolves the type of id, checking and casting its children.
// requested is a hint: literals and calls use it to pick a type, but the
// result is not cast to it (see Expect).
func (c *Checker) TypeCheck(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	var (
		t   ts.Type
		err error
	)
	n := c.tree.Node(id)
	switch n.Kind {
	case ast.KindBlock:
		t, err = c.checkBlock(id)
	case ast.KindFloat:
		t = ts.UniformOf(ts.Float)
	case ast.KindString:
		t = ts.UniformOf(ts.String)
	case ast.KindVar:
		t, err = c.checkVar(id)
	case ast.KindArrayRef:
		t, err = c.checkArrayRef(id)
	case ast.KindTuple:
		t, err = c.checkTuple(id)
	case ast.KindUnary:
		t, err = c.checkUnary(id, requested)
	case ast.KindBinary:
		t, err = c.checkBinary(id, requested)
	case ast.KindRelational:
		t, err = c.checkRelational(id)
	case ast.KindLogical:
		t, err = c.checkLogical(id)
	case ast.KindCast:
		t, err = c.checkCast(id)
	case ast.KindAssign:
		t, err = c.checkAssign(id)
	case ast.KindCall:
		t, err = c.checkCall(id, requested)
	case ast.KindTernary:
		t, err = c.checkTernary(id, requested)
	case ast.KindIf:
		t, err = c.checkIf(id)
	case ast.KindWhile:
		t, err = c.checkWhile(id)
	case ast.KindFor:
		t, err = c.checkFor(id)
	case ast.KindIlluminance, ast.KindIlluminate, ast.KindSolar:
		t, err = c.checkLightLoop(id)
	case ast.KindReturn:
		t, err = c.checkReturn(id)
	default:
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadConstruct, "unexpected %s node", n.Kind)
	}
	if err != nil {
		return ts.Type{}, err
	}
	// InsertParent may have grown the arena; reload the node.
	c.tree.Node(id).Type = t
	return t, nil
}

var voidType = ts.UniformOf(ts.Void)

func (c *Checker) checkBlock(id ast.NodeID) (ts.Type, error) {
	for _, s := range c.tree.Children(id) {
		if _, err := c.TypeCheck(s, nil); err != nil {
			return ts.Type{}, err
		}
		if k := c.tree.Kind(s); k != ast.KindBlock && !k.IsStatement() {
			// Expression statement: transient literals still need a type.
			t := c.tree.Node(s).Type
			if t.Base.IsTransient() {
				if _, err := c.coerce(s, t, nil); err != nil {
					return ts.Type{}, err
				}
			}
		}
	}
	return voidType, nil
}

func (c *Checker) checkVar(id ast.NodeID) (ts.Type, error) {
	v := c.tree.Node(id).Var
	if !v.IsValid() || int(v) >= c.unit.NumVars() {
		return ts.Type{}, c.errorf(id, diagnostics.ErrUndefined, "reference to undeclared variable")
	}
	return c.unit.Var(v).Type, nil
}

func (c *Checker) checkArrayRef(id ast.NodeID) (ts.Type, error) {
	v := c.tree.Node(id).Var
	if !v.IsValid() || int(v) >= c.unit.NumVars() {
		return ts.Type{}, c.errorf(id, diagnostics.ErrUndefined, "reference to undeclared variable")
	}
	def := c.unit.Var(v)
	if !def.Type.Array {
		return ts.Type{}, c.errorf(id, diagnostics.ErrNotArray, "%s is not an array", def.Name)
	}
	it, err := c.Expect(c.tree.Child(id, 0), anyFloat)
	if err != nil {
		return ts.Type{}, err
	}
	t := def.Type.Element()
	t.Param, t.Output = false, false
	t.Class = ts.MergeClass(def.Type, it)
	return t, nil
}

// checkTuple types an aggregate literal: 3 elements are a triple, 4 an
// hpoint and 16 a hextuple. The transient type is resolved by the cast
// the context inserts over it (see coerce).
func (c *Checker) checkTuple(id ast.NodeID) (ts.Type, error) {
	elems := c.tree.Children(id)
	var base ts.BaseType
	switch len(elems) {
	case 3:
		base = ts.Triple
	case 4:
		base = ts.HPoint
	case 16:
		base = ts.HexTuple
	default:
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadInitializer,
			"aggregate literal with %d elements (want 3, 4 or 16)", len(elems))
	}
	types := make([]ts.Type, 0, len(elems))
	for _, e := range elems {
		et, err := c.Expect(e, anyFloat)
		if err != nil {
			return ts.Type{}, err
		}
		types = append(types, et)
	}
	return ts.Type{Base: base, Class: ts.MergeClass(types...)}, nil
}

func (c *Checker) checkUnary(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	x := c.tree.Child(id, 0)
	switch c.tree.Node(id).Op {
	case ast.OpNot:
		xt, err := c.Expect(x, anyFloat)
		if err != nil {
			return ts.Type{}, err
		}
		return ts.Type{Base: ts.Float, Class: ts.MergeClass(xt)}, nil
	case ast.OpNeg:
		xt, err := c.hint(x, requested)
		if err != nil {
			return ts.Type{}, err
		}
		if xt.Base == ts.String {
			return ts.Type{}, c.errorf(id, diagnostics.ErrBadOperand, "cannot negate a string")
		}
		return ts.Type{Base: xt.Base, Class: ts.MergeClass(xt)}, nil
	}
	return ts.Type{}, c.errorf(id, diagnostics.ErrBadOperand, "unknown unary operator")
}

// checkOperands checks both sides of a binary node. A literal aggregate on
// the left is checked after the right side so it can take that side's type.
func (c *Checker) checkOperands(id ast.NodeID, requested []ts.BaseType) (lhs, rhs ast.NodeID, lt, rt ts.Type, err error) {
	lhs, rhs = c.tree.Child(id, 0), c.tree.Child(id, 1)
	if c.tree.Kind(lhs) == ast.KindTuple && c.tree.Kind(rhs) != ast.KindTuple {
		if rt, err = c.Expect(rhs, nil); err != nil {
			return
		}
		if lt, err = c.hint(lhs, []ts.BaseType{rt.Base}); err != nil {
			return
		}
	} else {
		if lt, err = c.hint(lhs, requested); err != nil {
			return
		}
		if rt, err = c.hint(rhs, []ts.BaseType{lt.Base}); err != nil {
			return
		}
	}
	return c.tree.Child(id, 0), c.tree.Child(id, 1), lt, rt, nil
}

// hint checks an operand with requested as a preference only. A
// transient literal takes the best requested type it can reach, its
// default otherwise; any other operand keeps its own type for the caller
// to reconcile.
func (c *Checker) hint(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	t, err := c.TypeCheck(id, requested)
	if err != nil || !t.Base.IsTransient() {
		return t, err
	}
	if len(requested) > 0 && ts.FindCast(t.Base, requested) != ts.Nil {
		return c.coerce(id, t, requested)
	}
	return c.coerce(id, t, nil)
}

// unify casts the operands of a binary node to one type. The left type
// wins when either direction would do.
func (c *Checker) unify(id, lhs, rhs ast.NodeID, lt, rt ts.Type) (ts.BaseType, error) {
	switch {
	case lt.Base == rt.Base:
		return lt.Base, nil
	case ts.CanCast(rt.Base, lt.Base):
		_, err := c.coerce(rhs, rt, []ts.BaseType{lt.Base})
		return lt.Base, err
	case ts.CanCast(lt.Base, rt.Base):
		_, err := c.coerce(lhs, lt, []ts.BaseType{rt.Base})
		return rt.Base, err
	}
	return ts.Nil, c.errorf(id, diagnostics.ErrBadOperand,
		"operands %s and %s have no common type", lt.Base, rt.Base)
}

func (c *Checker) checkBinary(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	op := c.tree.Node(id).Op
	if op == ast.OpDot || op == ast.OpCross {
		return c.checkSpatialProduct(id, op)
	}
	lhs, rhs, lt, rt, err := c.checkOperands(id, requested)
	if err != nil {
		return ts.Type{}, err
	}
	if lt.Base == ts.String || rt.Base == ts.String {
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadOperand, "arithmetic on a string")
	}
	base, err := c.unify(id, lhs, rhs, lt, rt)
	if err != nil {
		return ts.Type{}, err
	}
	return ts.Type{Base: base, Class: ts.MergeClass(lt, rt)}, nil
}

// checkSpatialProduct handles the dot product (float result) and the
// cross product (result takes the left operand's type).
func (c *Checker) checkSpatialProduct(id ast.NodeID, op ast.Op) (ts.Type, error) {
	lt, err := c.Expect(c.tree.Child(id, 0), anySpatial)
	if err != nil {
		return ts.Type{}, err
	}
	rt, err := c.Expect(c.tree.Child(id, 1), anySpatial)
	if err != nil {
		return ts.Type{}, err
	}
	class := ts.MergeClass(lt, rt)
	if op == ast.OpDot {
		return ts.Type{Base: ts.Float, Class: class}, nil
	}
	return ts.Type{Base: lt.Base, Class: class}, nil
}

func (c *Checker) checkRelational(id ast.NodeID) (ts.Type, error) {
	op := c.tree.Node(id).Op
	if op == ast.OpEq || op == ast.OpNe {
		lhs, rhs, lt, rt, err := c.checkOperands(id, nil)
		if err != nil {
			return ts.Type{}, err
		}
		if _, err := c.unify(id, lhs, rhs, lt, rt); err != nil {
			return ts.Type{}, err
		}
		return ts.Type{Base: ts.Float, Class: ts.MergeClass(lt, rt)}, nil
	}
	lt, err := c.Expect(c.tree.Child(id, 0), anyFloat)
	if err != nil {
		return ts.Type{}, err
	}
	rt, err := c.Expect(c.tree.Child(id, 1), anyFloat)
	if err != nil {
		return ts.Type{}, err
	}
	return ts.Type{Base: ts.Float, Class: ts.MergeClass(lt, rt)}, nil
}

func (c *Checker) checkLogical(id ast.NodeID) (ts.Type, error) {
	lt, err := c.Expect(c.tree.Child(id, 0), anyFloat)
	if err != nil {
		return ts.Type{}, err
	}
	rt, err := c.Expect(c.tree.Child(id, 1), anyFloat)
	if err != nil {
		return ts.Type{}, err
	}
	return ts.Type{Base: ts.Float, Class: ts.MergeClass(lt, rt)}, nil
}

// checkCast checks an explicit conversion. Over an aggregate literal the
// cast itself resolves the literal, as in point (1,2,3).
func (c *Checker) checkCast(id ast.NodeID) (ts.Type, error) {
	target := c.tree.Node(id).CastTo.Base
	x := c.tree.Child(id, 0)
	var (
		xt  ts.Type
		err error
	)
	if c.tree.Kind(x) == ast.KindTuple {
		xt, err = c.TypeCheck(x, []ts.BaseType{target})
	} else {
		xt, err = c.Expect(x, nil)
	}
	if err != nil {
		return ts.Type{}, err
	}
	if !ts.CanCast(xt.Base, target) {
		return ts.Type{}, c.errorf(id, diagnostics.ErrNoCast, "cannot convert %s to %s", xt.Base, target)
	}
	return ts.Type{Base: target, Class: xt.Class}, nil
}

func (c *Checker) checkAssign(id ast.NodeID) (ts.Type, error) {
	n := c.tree.Node(id)
	v, indexed := n.Var, n.Indexed
	if !v.IsValid() || int(v) >= c.unit.NumVars() {
		return ts.Type{}, c.errorf(id, diagnostics.ErrUndefined, "assignment to undeclared variable")
	}
	def := c.unit.Var(v)
	target := def.Type
	value := c.tree.Child(id, 0)
	var classes []ts.Type
	if indexed {
		if !def.Type.Array {
			return ts.Type{}, c.errorf(id, diagnostics.ErrNotArray, "%s is not an array", def.Name)
		}
		it, err := c.Expect(value, anyFloat)
		if err != nil {
			return ts.Type{}, err
		}
		classes = append(classes, it)
		value = c.tree.Child(id, 1)
		target = target.Element()
	} else if def.Type.Array {
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadOperand, "cannot assign to whole array %s", def.Name)
	}
	vt, err := c.Expect(value, []ts.BaseType{target.Base})
	if err != nil {
		return ts.Type{}, err
	}
	classes = append(classes, vt)
	if !target.IsVarying() {
		if ts.MergeClass(classes...) == ts.Varying {
			return ts.Type{}, c.errorf(id, diagnostics.ErrVaryingUniform,
				"varying value assigned to uniform variable %s", def.Name)
		}
		if err := c.writeUniform(id, v); err != nil {
			return ts.Type{}, err
		}
	}
	return target, nil
}

func (c *Checker) checkTernary(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	ct, err := c.Expect(c.tree.Child(id, 0), anyFloat)
	if err != nil {
		return ts.Type{}, err
	}
	at, err := c.hint(c.tree.Child(id, 1), requested)
	if err != nil {
		return ts.Type{}, err
	}
	bt, err := c.hint(c.tree.Child(id, 2), []ts.BaseType{at.Base})
	if err != nil {
		return ts.Type{}, err
	}
	a, b := c.tree.Child(id, 1), c.tree.Child(id, 2)
	base, err := c.unify(id, a, b, at, bt)
	if err != nil {
		return ts.Type{}, err
	}
	return ts.Type{Base: base, Class: ts.MergeClass(ct, at, bt)}, nil
}
