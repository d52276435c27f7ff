package codegen

import (
	"strconv"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/symbols"
	"github.com/funvibe/shadevm/internal/vm"
)

// assignNames gives every local variable a Data-segment name. Locals of
// different functions may share a source name, and none may shadow a
// standard variable, so clashes get a numeric suffix.
func (c *Compiler) assignNames() {
	taken := make(map[string]bool, c.unit.NumVars())
	for _, sv := range symbols.StandardVariables {
		taken[sv.Name] = true
	}
	for id := ast.VarID(1); int(id) < c.unit.NumVars(); id++ {
		def := c.unit.Var(id)
		if def.Category != symbols.Local {
			continue
		}
		name := def.Name
		for n := 2; taken[name]; n++ {
			name = def.Name + "_" + strconv.Itoa(n)
		}
		taken[name] = true
		c.names[id] = name
	}
}

// ref resolves a variable read through the active translations, counts
// the use and returns the name the bytecode refers to it by. Standard
// variables read are added to the USES mask.
func (c *Compiler) ref(v ast.VarID) string {
	def := c.resolved(v)
	if def.Category != symbols.Local && def.StdBit >= 0 {
		c.uses |= 1 << uint(def.StdBit)
	}
	return c.target(v)
}

// target is ref for a variable that is only written.
func (c *Compiler) target(v ast.VarID) string {
	v = c.unit.ResolveIn(c.trans, v)
	def := c.unit.Var(v)
	def.UseCount++
	if def.Category != symbols.Local {
		return def.Name
	}
	return c.names[v]
}

// resolved returns the declaration a reference ends up at.
func (c *Compiler) resolved(v ast.VarID) *symbols.VariableDef {
	return c.unit.Var(c.unit.ResolveIn(c.trans, v))
}

// declarations lists the Data segment: parameters always, other locals
// only when referenced.
func (c *Compiler) declarations() []vm.VarDecl {
	var out []vm.VarDecl
	for id := ast.VarID(1); int(id) < c.unit.NumVars(); id++ {
		def := c.unit.Var(id)
		if def.Category != symbols.Local {
			continue
		}
		if !def.Type.Param && def.UseCount == 0 {
			continue
		}
		out = append(out, vm.VarDecl{Name: c.names[id], Type: def.Type, ArrayLen: def.ArrayLen})
	}
	return out
}
