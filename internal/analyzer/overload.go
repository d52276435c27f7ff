package analyzer

import (
	"slices"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// checkCall resolves a call's overload. Candidates are narrowed by arity
// and then one argument position at a time; each argument is checked
// against the types the surviving candidates expect there. The survivor
// is chosen by return type, then by the number of exactly matching
// arguments, then by declaration order.
func (c *Checker) checkCall(id ast.NodeID, requested []ts.BaseType) (ts.Type, error) {
	n := c.tree.Node(id)
	name := n.Str
	all := n.Candidates
	if len(all) == 0 {
		// Built before the callee was defined.
		all = c.unit.LookupFunctions(name)
	}
	if len(all) == 0 {
		return ts.Type{}, c.errorf(id, diagnostics.ErrUndefined, "unknown function %s", name)
	}
	nargs := c.tree.NumChildren(id)

	cands := slices.DeleteFunc(slices.Clone(all), func(f ast.FuncID) bool {
		return !c.unit.Func(f).Params.Accepts(nargs)
	})
	if len(cands) == 0 {
		return ts.Type{}, c.errorf(id, diagnostics.ErrNoOverload,
			"no overload of %s takes %d arguments", name, nargs)
	}

	argTypes := make([]ts.Type, nargs)
	for i := 0; i < nargs; i++ {
		arg := c.tree.Child(id, i)
		isVar := c.tree.Kind(arg) == ast.KindVar
		t, err := c.checkArgument(arg, c.expected(cands, i))
		if err != nil {
			return ts.Type{}, err
		}
		argTypes[i] = t

		reachable := slices.DeleteFunc(slices.Clone(cands), func(f ast.FuncID) bool {
			return !accepts(c.slot(f, i), t)
		})
		cands = slices.DeleteFunc(slices.Clone(reachable), func(f ast.FuncID) bool {
			return c.slot(f, i).MustBeVariable && !isVar
		})
		switch {
		case len(reachable) == 0:
			return ts.Type{}, c.errorf(id, diagnostics.ErrNoOverload,
				"no overload of %s accepts %s as argument %d", name, t, i+1)
		case len(cands) == 0:
			return ts.Type{}, c.errorf(id, diagnostics.ErrNotVariable,
				"argument %d of %s must be a variable", i+1, name)
		}
	}

	chosen := c.pick(cands, argTypes, requested)
	def := c.unit.Func(chosen)
	for i := 0; i < nargs; i++ {
		p := c.slot(chosen, i)
		if p.Any() || p.Type.Array {
			continue
		}
		if _, err := c.coerce(c.tree.Child(id, i), argTypes[i], []ts.BaseType{p.Type.Base}); err != nil {
			return ts.Type{}, err
		}
	}

	if def.Category == symbols.Local {
		if err := c.checkLocalCall(id, chosen, argTypes); err != nil {
			return ts.Type{}, err
		}
	} else if err := c.checkOutputSlots(id, chosen); err != nil {
		return ts.Type{}, err
	}

	n = c.tree.Node(id)
	n.Func = chosen
	n.Candidates = []ast.FuncID{chosen}

	ret := ts.Type{Base: def.Return.Base, Class: def.Return.Class}
	if ret.Class == ts.Unspecified {
		ret.Class = ts.MergeClass(argTypes...)
	}
	return ret, nil
}

// checkArgument types one argument. A transient literal resolves to the
// best type the candidates expect, or to its default.
func (c *Checker) checkArgument(arg ast.NodeID, expected []ts.BaseType) (ts.Type, error) {
	t, err := c.TypeCheck(arg, expected)
	if err != nil || !t.Base.IsTransient() {
		return t, err
	}
	if ts.FindCast(t.Base, expected) != ts.Nil {
		return c.coerce(arg, t, expected)
	}
	return c.coerce(arg, t, nil)
}

func (c *Checker) slot(f ast.FuncID, i int) ts.Param {
	p, _ := c.unit.Func(f).Params.At(i)
	return p
}

// expected lists the types the candidates want at position i, without
// duplicates and in candidate order. Any-type slots add nothing.
func (c *Checker) expected(cands []ast.FuncID, i int) []ts.BaseType {
	var out []ts.BaseType
	for _, f := range cands {
		p := c.slot(f, i)
		if p.Any() || slices.Contains(out, p.Type.Base) {
			continue
		}
		out = append(out, p.Type.Base)
	}
	return out
}

func accepts(p ts.Param, t ts.Type) bool {
	if p.Type.Array != t.Array {
		return false
	}
	return p.Any() || ts.CanCast(t.Base, p.Type.Base)
}

// exactArgs counts the positions where f's slot type equals the argument.
func (c *Checker) exactArgs(f ast.FuncID, args []ts.Type) int {
	n := 0
	for i, t := range args {
		p := c.slot(f, i)
		if !p.Any() && p.Type.Base == t.Base {
			n++
		}
	}
	return n
}

// pick chooses among surviving candidates. A candidate whose return type
// the context asks for wins; failing that the one whose return type casts
// best into the request. Remaining ties go to more exact arguments, then
// to the first declared.
func (c *Checker) pick(cands []ast.FuncID, args []ts.Type, requested []ts.BaseType) ast.FuncID {
	rank := func(f ast.FuncID) int {
		if len(requested) == 0 {
			return 0
		}
		ret := c.unit.Func(f).Return.Base
		if slices.Contains(requested, ret) {
			return ts.Identity
		}
		return ts.Priority(ret, ts.FindCast(ret, requested))
	}
	best, bestRank, bestExact := cands[0], rank(cands[0]), c.exactArgs(cands[0], args)
	for _, f := range cands[1:] {
		r, e := rank(f), c.exactArgs(f, args)
		if r > bestRank || (r == bestRank && e > bestExact) {
			best, bestRank, bestExact = f, r, e
		}
	}
	return best
}

// checkLocalCall checks the callee's body (detecting recursion) and its
// bindings: a varying actual cannot feed a uniform formal, and a uniform
// actual cannot stand in for a varying output. Uniform variables the
// callee assigns are assigned by the call.
func (c *Checker) checkLocalCall(id ast.NodeID, f ast.FuncID, args []ts.Type) error {
	if f == c.current || c.state[f] == checking {
		return c.errorf(id, diagnostics.ErrRecursion, "function %s calls itself", c.unit.Func(f).Name)
	}
	if err := c.checkFunction(f); err != nil {
		return err
	}
	def := c.unit.Func(f)
	for i, formal := range def.Formals {
		if i >= len(args) {
			break
		}
		fv := c.unit.Var(formal)
		switch {
		case !fv.Type.IsVarying() && args[i].IsVarying():
			return c.errorf(id, diagnostics.ErrVaryingUniform,
				"varying argument %d bound to uniform parameter %s of %s", i+1, fv.Name, def.Name)
		case fv.Type.Output && fv.Type.IsVarying() && !args[i].IsVarying():
			return c.errorf(id, diagnostics.ErrVaryingUniform,
				"uniform argument %d bound to varying output %s of %s", i+1, fv.Name, def.Name)
		}
	}

	for _, w := range c.writes[f] {
		i := slices.Index(def.Formals, w)
		if i < 0 {
			if err := c.writeUniform(id, w); err != nil {
				return c.errorf(id, diagnostics.ErrVaryingUniform,
					"%s assigns uniform variable %s and is called under varying condition",
					def.Name, c.unit.Var(w).Name)
			}
			continue
		}
		if i >= len(args) {
			continue
		}
		// Only a bare variable of the formal's type is bound by reference;
		// anything else writes a private copy.
		arg := c.tree.Child(id, i)
		if c.tree.Kind(arg) != ast.KindVar {
			continue
		}
		actual := c.tree.Node(arg).Var
		if c.unit.Var(actual).Type.Base != c.unit.Var(w).Type.Base {
			continue
		}
		if err := c.writeUniform(id, actual); err != nil {
			return c.errorf(id, diagnostics.ErrVaryingUniform,
				"%s assigns uniform variable %s through parameter %s under varying condition",
				def.Name, c.unit.Var(actual).Name, c.unit.Var(w).Name)
		}
	}
	return nil
}

// checkOutputSlots treats a uniform variable in a builtin's output slot
// as an assignment to it.
func (c *Checker) checkOutputSlots(id ast.NodeID, f ast.FuncID) error {
	for i, arg := range c.tree.Children(id) {
		if !c.slot(f, i).MustBeVariable || c.tree.Kind(arg) != ast.KindVar {
			continue
		}
		v := c.tree.Node(arg).Var
		if c.unit.Var(v).Type.IsVarying() {
			continue
		}
		if err := c.writeUniform(arg, v); err != nil {
			return err
		}
	}
	return nil
}

// writeUniform records that the function being checked assigns the
// uniform variable v. Under a varying condition that is an error, since
// the store would reach every point.
func (c *Checker) writeUniform(id ast.NodeID, v ast.VarID) error {
	if c.varyingDepth > 0 {
		return c.errorf(id, diagnostics.ErrVaryingUniform,
			"uniform variable %s assigned under varying condition", c.unit.Var(v).Name)
	}
	if c.current.IsValid() && !slices.Contains(c.writes[c.current], v) {
		c.writes[c.current] = append(c.writes[c.current], v)
	}
	return nil
}
