package codegen

import (
	"slices"
	"strconv"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

func (c *Compiler) compileCall(id ast.NodeID) error {
	f := c.tree.Node(id).Func
	if !f.IsValid() {
		return c.errorf(id, "call to %s was not resolved", c.tree.Node(id).Str)
	}
	if c.unit.Func(f).Category == symbols.Local {
		return c.compileInline(id, f)
	}
	return c.compileBuiltin(id, f)
}

// compileBuiltin pushes the arguments last first, so argument 0 is on
// top. Output slots are not pushed: they become variable operands, in
// argument order. Variadic opcodes also get the number of values pushed.
func (c *Compiler) compileBuiltin(id ast.NodeID, f ast.FuncID) error {
	def := c.unit.Func(f)
	c.uses |= def.Uses
	args := c.tree.Children(id)

	pushed := 0
	for i := len(args) - 1; i >= 0; i-- {
		if p, _ := def.Params.At(i); p.MustBeVariable {
			continue
		}
		if err := c.compileExpression(args[i]); err != nil {
			return err
		}
		pushed++
	}

	var operands []string
	for i, a := range args {
		p, _ := def.Params.At(i)
		if !p.MustBeVariable {
			continue
		}
		if c.tree.Kind(a) != ast.KindVar {
			return c.errorf(a, "argument %d of %s must be a variable", i+1, def.Name)
		}
		operands = append(operands, c.target(c.tree.Node(a).Var))
	}
	if def.Variadic() {
		operands = append(operands, strconv.Itoa(pushed))
	}

	delta := -pushed
	if def.Return.Base != ts.Void {
		delta++
	}
	c.emit(delta, def.Opcode, operands...)
	return nil
}

// compileInline expands a local function at the call site. A bare
// variable argument whose storage class fits the formal is aliased
// through a translation table; any other argument is evaluated and popped
// into the formal's own storage. All copied arguments are evaluated before
// the first is stored, since an argument may expand the same function.
func (c *Compiler) compileInline(id ast.NodeID, f ast.FuncID) error {
	def := c.unit.Func(f)
	if slices.Contains(c.expanding, f) {
		return c.errorf(id, "function %s expands into itself", def.Name)
	}
	args := c.tree.Children(id)
	if len(args) != len(def.Formals) {
		return c.errorf(id, "%s takes %d arguments, got %d", def.Name, len(def.Formals), len(args))
	}

	table := symbols.Translation{}
	var copied []int
	for i, a := range args {
		formal := c.unit.Var(def.Formals[i])
		if c.aliases(a, formal) {
			table[def.Formals[i]] = c.unit.ResolveIn(c.trans, c.tree.Node(a).Var)
			continue
		}
		if formal.Type.Array {
			return c.errorf(a, "array argument %d of %s must be a variable", i+1, def.Name)
		}
		if err := c.compileExpression(a); err != nil {
			return err
		}
		copied = append(copied, i)
	}
	for _, i := range slices.Backward(copied) {
		c.emit(-1, "pop", c.target(def.Formals[i]))
	}

	saveTrans := c.trans
	c.trans = c.trans.Push(table)
	c.expanding = append(c.expanding, f)
	defer func() {
		c.trans = saveTrans
		c.expanding = c.expanding[:len(c.expanding)-1]
	}()

	stmts := c.tree.Children(def.Body)
	if c.tree.Kind(def.Body) != ast.KindBlock {
		stmts = []ast.NodeID{def.Body}
	}
	for _, s := range stmts {
		if c.tree.Kind(s) == ast.KindReturn {
			if v := c.tree.Child(s, 0); v != ast.NoNode {
				if err := c.compileExpression(v); err != nil {
					return err
				}
			}
			continue
		}
		if err := c.compileStatement(s); err != nil {
			return err
		}
	}
	return nil
}

// aliases reports whether argument a can stand in for formal without a
// copy: it must be a plain variable of the formal's type, and a uniform
// variable may only alias a uniform formal unless the formal is an output.
func (c *Compiler) aliases(a ast.NodeID, formal *symbols.VariableDef) bool {
	if c.tree.Kind(a) != ast.KindVar {
		return false
	}
	actual := c.resolved(c.tree.Node(a).Var)
	if actual.Type.Base != formal.Type.Base || actual.Type.Array != formal.Type.Array {
		return false
	}
	if formal.Type.Output || formal.Type.Array {
		return true
	}
	return actual.Type.IsVarying() == formal.Type.IsVarying()
}
