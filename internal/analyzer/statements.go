package analyzer

import (
	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/diagnostics"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// condition checks a control-flow condition and reports whether it can
// differ between grid points.
func (c *Checker) condition(id ast.NodeID) (bool, error) {
	t, err := c.Expect(id, anyFloat)
	if err != nil {
		return false, err
	}
	return t.IsVarying(), nil
}

// branch checks a statement nested under a condition.
func (c *Checker) branch(id ast.NodeID, varying bool) error {
	if varying {
		c.varyingDepth++
		defer func() { c.varyingDepth-- }()
	}
	_, err := c.TypeCheck(id, nil)
	return err
}

func (c *Checker) checkIf(id ast.NodeID) (ts.Type, error) {
	varying, err := c.condition(c.tree.Child(id, 0))
	if err != nil {
		return ts.Type{}, err
	}
	for _, b := range c.tree.Children(id)[1:] {
		if err := c.branch(b, varying); err != nil {
			return ts.Type{}, err
		}
	}
	return voidType, nil
}

func (c *Checker) checkWhile(id ast.NodeID) (ts.Type, error) {
	varying, err := c.condition(c.tree.Child(id, 0))
	if err != nil {
		return ts.Type{}, err
	}
	if err := c.branch(c.tree.Child(id, 1), varying); err != nil {
		return ts.Type{}, err
	}
	return voidType, nil
}

func (c *Checker) checkFor(id ast.NodeID) (ts.Type, error) {
	kids := c.tree.Children(id)
	if len(kids) != 4 {
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadConstruct, "for loop needs init, condition, step and body")
	}
	if _, err := c.TypeCheck(kids[0], nil); err != nil {
		return ts.Type{}, err
	}
	varying, err := c.condition(kids[1])
	if err != nil {
		return ts.Type{}, err
	}
	if err := c.branch(kids[2], varying); err != nil {
		return ts.Type{}, err
	}
	if err := c.branch(kids[3], varying); err != nil {
		return ts.Type{}, err
	}
	return voidType, nil
}

// checkLightLoop checks illuminance, illuminate and solar. Their bodies
// run once per light (or per lit point) and are always treated as
// varying.
func (c *Checker) checkLightLoop(id ast.NodeID) (ts.Type, error) {
	kind := c.tree.Kind(id)
	kids := c.tree.Children(id)
	if len(kids) == 0 {
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadConstruct, "%s without a body", kind)
	}
	args, body := kids[:len(kids)-1], kids[len(kids)-1]

	var want [][]ts.BaseType
	switch kind {
	case ast.KindIlluminance, ast.KindIlluminate:
		switch len(args) {
		case 1:
			want = [][]ts.BaseType{anyPoint}
		case 3:
			want = [][]ts.BaseType{anyPoint, anyVector, anyFloat}
		}
	case ast.KindSolar:
		switch len(args) {
		case 0:
			want = [][]ts.BaseType{}
		case 2:
			want = [][]ts.BaseType{anyVector, anyFloat}
		}
	}
	if want == nil {
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadConstruct, "%s with %d arguments", kind, len(args))
	}
	inLight := kind != ast.KindIlluminance
	if inLight != c.isLightShader() {
		return ts.Type{}, c.errorf(id, diagnostics.ErrBadConstruct,
			"%s is not allowed in a %s shader", kind, c.unit.Shader.Kind)
	}
	for i, a := range args {
		if _, err := c.Expect(a, want[i]); err != nil {
			return ts.Type{}, err
		}
	}
	if err := c.branch(body, true); err != nil {
		return ts.Type{}, err
	}
	return voidType, nil
}

// checkReturn allows a return only as the final statement of a local
// function body.
func (c *Checker) checkReturn(id ast.NodeID) (ts.Type, error) {
	if c.current == ast.NoFunc || id != c.returnAt {
		return ts.Type{}, c.errorf(id, diagnostics.ErrReturn, "return must be the last statement of a function")
	}
	def := c.unit.Func(c.current)
	value := c.tree.Child(id, 0)
	switch {
	case def.Return.Base == ts.Void && value != ast.NoNode:
		return ts.Type{}, c.errorf(id, diagnostics.ErrReturn, "void function %s returns a value", def.Name)
	case def.Return.Base != ts.Void && value == ast.NoNode:
		return ts.Type{}, c.errorf(id, diagnostics.ErrReturn, "function %s returns no value", def.Name)
	case value == ast.NoNode:
		return voidType, nil
	}
	t, err := c.Expect(value, []ts.BaseType{def.Return.Base})
	if err != nil {
		return ts.Type{}, err
	}
	return t, nil
}
