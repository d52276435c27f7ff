package codegen

import (
	"github.com/funvibe/shadevm/internal/ast"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// compileStatement emits one statement. Every statement leaves the VM
// stack as deep as it found it.
func (c *Compiler) compileStatement(id ast.NodeID) error {
	before := c.slotCount
	if err := c.statement(id); err != nil {
		return err
	}
	if c.slotCount != before {
		return c.errorf(id, "%s statement leaves %d values on the stack", c.tree.Kind(id), c.slotCount-before)
	}
	return nil
}

func (c *Compiler) statement(id ast.NodeID) error {
	switch c.tree.Kind(id) {
	case ast.KindBlock:
		for _, s := range c.tree.Children(id) {
			if err := c.compileStatement(s); err != nil {
				return err
			}
		}
		return nil
	case ast.KindAssign:
		return c.compileAssign(id, false)
	case ast.KindIf:
		return c.compileIf(id)
	case ast.KindWhile:
		return c.compileWhile(id)
	case ast.KindFor:
		return c.compileFor(id)
	case ast.KindIlluminance:
		return c.compileIlluminance(id)
	case ast.KindIlluminate, ast.KindSolar:
		return c.compileLightConstruct(id)
	case ast.KindReturn:
		return c.errorf(id, "return outside a function body")
	}
	if err := c.compileExpression(id); err != nil {
		return err
	}
	if c.tree.Node(id).Type.Base != ts.Void {
		c.emit(-1, "drop")
	}
	return nil
}

// condition evaluates a condition into the current state.
func (c *Compiler) condition(id ast.NodeID) error {
	if err := c.compileExpression(id); err != nil {
		return err
	}
	c.emit(0, "S_CLEAR")
	c.emit(-1, "S_GET")
	return nil
}

// compileIf lowers a conditional. Without an else branch the construct is
// skipped when no point takes it; with one, the else branch runs on the
// saved running state minus the points that took the then branch.
func (c *Compiler) compileIf(id ast.NodeID) error {
	kids := c.tree.Children(id)
	if err := c.condition(kids[0]); err != nil {
		return err
	}
	if len(kids) < 3 {
		end, skip := c.newLabel(), c.newLabel()
		c.emitJump(0, "S_JZ", end)
		c.emit(0, "RS_PUSH")
		c.emit(0, "RS_GET")
		c.emitJump(0, "RS_JZ", skip)
		if err := c.compileStatement(kids[1]); err != nil {
			return err
		}
		c.placeLabel(skip)
		c.emit(0, "RS_POP")
		c.placeLabel(end)
		return nil
	}
	elseLabel, end := c.newLabel(), c.newLabel()
	c.emit(0, "RS_PUSH")
	c.emit(0, "RS_GET")
	c.emitJump(0, "RS_JZ", elseLabel)
	if err := c.compileStatement(kids[1]); err != nil {
		return err
	}
	c.placeLabel(elseLabel)
	c.emit(0, "RS_INVERSE")
	c.emitJump(0, "RS_JZ", end)
	if err := c.compileStatement(kids[2]); err != nil {
		return err
	}
	c.placeLabel(end)
	c.emit(0, "RS_POP")
	return nil
}

func (c *Compiler) compileWhile(id ast.NodeID) error {
	return c.loop(c.tree.Child(id, 0), c.tree.Child(id, 1), ast.NoNode)
}

func (c *Compiler) compileFor(id ast.NodeID) error {
	kids := c.tree.Children(id)
	if len(kids) != 4 {
		return c.errorf(id, "for loop needs init, condition, step and body")
	}
	if err := c.compileStatement(kids[0]); err != nil {
		return err
	}
	return c.loop(kids[1], kids[3], kids[2])
}

// loop narrows the running state by the condition on every iteration and
// leaves once no point is still running.
func (c *Compiler) loop(cond, body, step ast.NodeID) error {
	top, exit := c.newLabel(), c.newLabel()
	c.emit(0, "RS_PUSH")
	c.placeLabel(top)
	if err := c.condition(cond); err != nil {
		return err
	}
	c.emit(0, "RS_GET")
	c.emitJump(0, "RS_JZ", exit)
	if err := c.compileStatement(body); err != nil {
		return err
	}
	if step != ast.NoNode {
		if err := c.compileStatement(step); err != nil {
			return err
		}
	}
	c.emitJump(0, "jmp", top)
	c.placeLabel(exit)
	c.emit(0, "RS_POP")
	return nil
}

// lightArgs pushes the arguments of a light construct, last first.
func (c *Compiler) lightArgs(args []ast.NodeID) error {
	for i := len(args) - 1; i >= 0; i-- {
		if err := c.compileExpression(args[i]); err != nil {
			return err
		}
	}
	return nil
}

// compileIlluminance lowers the light loop: the body runs once per
// non-ambient light, on the points that light reaches.
func (c *Compiler) compileIlluminance(id ast.NodeID) error {
	kids := c.tree.Children(id)
	args, body := kids[:len(kids)-1], kids[len(kids)-1]
	op := "illuminance"
	switch len(args) {
	case 1:
	case 3:
		op = "illuminance2"
	default:
		return c.errorf(id, "illuminance with %d arguments", len(args))
	}

	end, loop, skip, next := c.newLabel(), c.newLabel(), c.newLabel(), c.newLabel()
	c.emit(+1, "init_illuminance")
	c.emitJump(-1, "jz", end)
	c.placeLabel(loop)
	c.emit(0, "S_CLEAR")
	if err := c.lightArgs(args); err != nil {
		return err
	}
	c.emit(1-len(args), op)
	c.emit(-1, "S_GET")
	c.emitJump(0, "S_JZ", next)
	c.emit(0, "RS_PUSH")
	c.emit(0, "RS_GET")
	c.emitJump(0, "RS_JZ", skip)
	if err := c.compileStatement(body); err != nil {
		return err
	}
	c.placeLabel(skip)
	c.emit(0, "RS_POP")
	c.placeLabel(next)
	c.emit(+1, "advance_illuminance")
	c.emitJump(-1, "jnz", loop)
	c.placeLabel(end)
	return nil
}

// compileLightConstruct lowers illuminate and solar in light shaders:
// the body runs on the points the light reaches.
func (c *Compiler) compileLightConstruct(id ast.NodeID) error {
	kids := c.tree.Children(id)
	args, body := kids[:len(kids)-1], kids[len(kids)-1]
	var op string
	switch {
	case c.tree.Kind(id) == ast.KindIlluminate && len(args) == 1:
		op = "illuminate"
	case c.tree.Kind(id) == ast.KindIlluminate && len(args) == 3:
		op = "illuminate2"
	case c.tree.Kind(id) == ast.KindSolar && len(args) == 0:
		op = "solar"
	case c.tree.Kind(id) == ast.KindSolar && len(args) == 2:
		op = "solar2"
	default:
		return c.errorf(id, "%s with %d arguments", c.tree.Kind(id), len(args))
	}
	if c.tree.Kind(id) == ast.KindIlluminate {
		c.uses |= 1 << uint(c.stdBit("Ps"))
	}

	end, skip := c.newLabel(), c.newLabel()
	c.emit(0, "S_CLEAR")
	if err := c.lightArgs(args); err != nil {
		return err
	}
	c.emit(1-len(args), op)
	c.emit(-1, "S_GET")
	c.emitJump(0, "S_JZ", end)
	c.emit(0, "RS_PUSH")
	c.emit(0, "RS_GET")
	c.emitJump(0, "RS_JZ", skip)
	if err := c.compileStatement(body); err != nil {
		return err
	}
	c.placeLabel(skip)
	c.emit(0, "RS_POP")
	c.placeLabel(end)
	return nil
}

func (c *Compiler) stdBit(name string) int {
	id := c.unit.MustStandardVar(name)
	return c.unit.Var(id).StdBit
}
