// Package analyzer type-checks a compilation unit's parse tree. It
// resolves every node to a concrete type, inserts Cast nodes where the
// context needs a different type, picks function overloads and finally
// simplifies the tree (constant folding, dead branches).
package analyzer

import (
	"fmt"
	"slices"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// Checker type-checks one unit.
type Checker struct {
	unit *symbols.Unit
	tree *ast.Tree

	// current is the local function whose body is being checked.
	current ast.FuncID
	// returnAt is the only node allowed to be a return statement.
	returnAt ast.NodeID
	// varyingDepth counts enclosing constructs whose condition differs
	// between grid points.
	varyingDepth int

	state map[ast.FuncID]funcState
	// writes lists the uniform variables each local function assigns,
	// including through the functions it calls.
	writes map[ast.FuncID][]ast.VarID
}

type funcState uint8

const (
	unchecked funcState = iota
	checking
	checked
)

// New creates a checker for u.
func New(u *symbols.Unit) *Checker {
	return &Checker{
		unit:   u,
		tree:   u.Tree,
		state:  make(map[ast.FuncID]funcState),
		writes: make(map[ast.FuncID][]ast.VarID),
	}
}

func (c *Checker) errorf(id ast.NodeID, code diagnostics.ErrorCode, format string, args ...any) error {
	line := 0
	if id != ast.NoNode {
		line = c.tree.Node(id).Line
	}
	return diagnostics.New(code, c.tree.File, line, format, args...)
}

// Check type-checks parameter defaults, local function bodies and the
// shader body, then verifies that no transient type survived. It stops at
// the first error.
func (c *Checker) Check() error {
	c.defaultClasses()

	for _, p := range c.unit.Params() {
		if err := c.checkParamDefault(p); err != nil {
			return err
		}
	}
	for _, f := range c.unit.LocalFunctions() {
		if err := c.checkFunction(f); err != nil {
			return err
		}
	}

	body := c.unit.Shader.Body
	if body == ast.NoNode {
		return c.errorf(ast.NoNode, diagnostics.ErrBadConstruct, "shader %q has no body", c.unit.Shader.Name)
	}
	c.current = ast.NoFunc
	c.returnAt = ast.NoNode
	if _, err := c.TypeCheck(body, nil); err != nil {
		return err
	}

	for _, root := range c.roots() {
		if err := c.verifyConcrete(root); err != nil {
			return err
		}
	}
	logging.Logger().Debug("type check complete",
		"shader", c.unit.Shader.Name, "nodes", c.tree.Len())
	return nil
}

// roots lists every subtree the checker owns.
func (c *Checker) roots() []ast.NodeID {
	var out []ast.NodeID
	for _, p := range c.unit.Params() {
		if d := c.unit.Var(p).Default; d != ast.NoNode {
			out = append(out, d)
		}
	}
	for _, f := range c.unit.LocalFunctions() {
		if b := c.unit.Func(f).Body; b != ast.NoNode {
			out = append(out, b)
		}
	}
	if c.unit.Shader.Body != ast.NoNode {
		out = append(out, c.unit.Shader.Body)
	}
	return out
}

// defaultClasses gives declarations without a storage class their
// default: parameters are uniform, other locals varying.
func (c *Checker) defaultClasses() {
	for id := ast.VarID(1); int(id) < c.unit.NumVars(); id++ {
		v := c.unit.Var(id)
		if v.Category != symbols.Local || v.Type.Class != ts.Unspecified {
			continue
		}
		if v.Type.Param {
			v.Type.Class = ts.Uniform
		} else {
			v.Type.Class = ts.Varying
		}
	}
}

func (c *Checker) checkParamDefault(p ast.VarID) error {
	v := c.unit.Var(p)
	if v.Default == ast.NoNode {
		return nil
	}
	if v.Type.Array {
		return c.checkArrayInit(v, v.Default)
	}
	got, err := c.Expect(v.Default, []ts.BaseType{v.Type.Base})
	if err != nil {
		return err
	}
	if got.IsVarying() && !v.Type.IsVarying() {
		return c.errorf(v.Default, diagnostics.ErrVaryingUniform,
			"default of uniform parameter %s is varying", v.Name)
	}
	return nil
}

// checkArrayInit checks a tuple of element initializers against an array.
func (c *Checker) checkArrayInit(v *symbols.VariableDef, init ast.NodeID) error {
	if c.tree.Kind(init) != ast.KindTuple {
		return c.errorf(init, diagnostics.ErrBadInitializer, "array %s needs an element list", v.Name)
	}
	elems := c.tree.Children(init)
	if len(elems) != v.ArrayLen {
		return c.errorf(init, diagnostics.ErrBadInitializer,
			"array %s has %d elements, initializer has %d", v.Name, v.ArrayLen, len(elems))
	}
	for _, e := range elems {
		if _, err := c.Expect(e, []ts.BaseType{v.Type.Base}); err != nil {
			return err
		}
	}
	c.tree.Node(init).Type = v.Type
	return nil
}

// checkFunction checks a local function body once. A call that reaches
// a function still being checked is recursion.
func (c *Checker) checkFunction(f ast.FuncID) error {
	switch c.state[f] {
	case checked:
		return nil
	case checking:
		return c.errorf(c.unit.Func(f).Body, diagnostics.ErrRecursion,
			"function %s calls itself", c.unit.Func(f).Name)
	}
	c.state[f] = checking

	saveCur, saveRet, saveDepth := c.current, c.returnAt, c.varyingDepth
	defer func() {
		c.current, c.returnAt, c.varyingDepth = saveCur, saveRet, saveDepth
	}()

	def := c.unit.Func(f)
	c.current = f
	c.varyingDepth = 0
	c.returnAt = ast.NoNode
	if def.Body != ast.NoNode && c.tree.Kind(def.Body) == ast.KindBlock {
		stmts := c.tree.Children(def.Body)
		if n := len(stmts); n > 0 && c.tree.Kind(stmts[n-1]) == ast.KindReturn {
			c.returnAt = stmts[n-1]
		}
	}
	if def.Return.Base != ts.Void && c.returnAt == ast.NoNode {
		return c.errorf(def.Body, diagnostics.ErrReturn,
			"function %s must end with a return statement", def.Name)
	}
	if def.Body != ast.NoNode {
		if _, err := c.TypeCheck(def.Body, nil); err != nil {
			return err
		}
	}
	c.state[f] = checked
	return nil
}

// Expect type-checks id and casts the result to one of requested. An
// empty request accepts any type; transient types then take their default.
func (c *Checker) Expect(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	got, err := c.TypeCheck(id, requested)
	if err != nil {
		return ts.Type{}, err
	}
	return c.coerce(id, got, requested)
}

// coerce inserts a Cast parent over id when got is not among requested.
// When id already is a cast inserted for a transient literal, the cast
// is retargeted instead of stacking a second one.
func (c *Checker) coerce(id ast.NodeID, got ts.Type, requested []ts.BaseType) (ts.Type, error) {
	if len(requested) == 0 {
		if got.Base.IsTransient() {
			return c.castTo(id, got, ts.DefaultResolution(got.Base)), nil
		}
		return got, nil
	}
	if slices.Contains(requested, got.Base) {
		return got, nil
	}
	target := ts.FindCast(got.Base, requested)
	if target == ts.Nil {
		return ts.Type{}, c.errorf(id, diagnostics.ErrNoCast,
			"cannot convert %s to %s", got.Base, describe(requested))
	}
	return c.castTo(id, got, target), nil
}

func (c *Checker) castTo(id ast.NodeID, got ts.Type, target ts.BaseType) ts.Type {
	out := got.WithBase(target)
	out.Param, out.Output = false, false
	n := c.tree.Node(id)
	if n.Kind == ast.KindCast {
		child := c.tree.Child(id, 0)
		if c.tree.Node(child).Type.Base.IsTransient() && ts.CanCast(c.tree.Node(child).Type.Base, target) {
			n.CastTo = ts.T(target)
			n.Type = out
			return out
		}
	}
	cast := c.tree.InsertParent(id, ast.KindCast)
	cn := c.tree.Node(cast)
	cn.CastTo = ts.T(target)
	cn.Type = out
	return out
}

func describe(bases []ts.BaseType) string {
	if len(bases) == 1 {
		return bases[0].String()
	}
	return fmt.Sprintf("any of %v", bases)
}

// verifyConcrete walks a checked subtree and rejects transient or
// missing types.
func (c *Checker) verifyConcrete(root ast.NodeID) error {
	var bad ast.NodeID
	c.tree.Walk(root, func(id ast.NodeID) bool {
		if bad != ast.NoNode {
			return false
		}
		n := c.tree.Node(id)
		if n.Kind.IsStatement() || n.Kind == ast.KindAssign {
			return true
		}
		if n.Kind == ast.KindTuple && c.tree.Kind(n.Parent) == ast.KindCast {
			return true
		}
		if n.Kind == ast.KindTuple && n.Type.Array {
			return true
		}
		if !n.Type.Base.IsConcrete() {
			bad = id
			return false
		}
		return true
	})
	if bad != ast.NoNode {
		return c.errorf(bad, diagnostics.ErrUnresolvedType,
			"%s node has unresolved type %s", c.tree.Kind(bad), c.tree.Node(bad).Type.Base)
	}
	return nil
}

func (c *Checker) isLightShader() bool {
	return c.unit.Shader.Kind == config.LightShader
}
