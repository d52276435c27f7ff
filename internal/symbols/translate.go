package symbols

import "github.com/funvibe/shadevm/internal/ast"

// Translation maps formal parameters of an inlined local function to the
// actual variables they alias at one call site.
type Translation map[ast.VarID]ast.VarID

// Translations is the stack of active translation tables, outermost first.
// It is threaded by value through the checker and code generator; Push
// returns a new stack and never modifies the receiver's tables.
type Translations []Translation

// Push returns the stack with t as the innermost table.
func (ts Translations) Push(t Translation) Translations {
	out := make(Translations, len(ts), len(ts)+1)
	copy(out, ts)
	return append(out, t)
}

// Depth returns the number of tables on the stack.
func (ts Translations) Depth() int { return len(ts) }

// Resolve rewrites v through the stack. The innermost table is consulted
// first; a rewritten reference is resolved again against the next outer
// table, because an actual in one expansion may itself be the formal of
// the enclosing one.
func (ts Translations) Resolve(v ast.VarID) ast.VarID {
	for i := len(ts) - 1; i >= 0; i-- {
		if actual, ok := ts[i][v]; ok {
			v = actual
		}
	}
	return v
}

// ResolveIn resolves v through ts and then follows extern bindings
// recorded on the unit's declarations.
func (u *Unit) ResolveIn(ts Translations, v ast.VarID) ast.VarID {
	v = ts.Resolve(v)
	for i := 0; i < len(u.vars) && u.vars[v].Extern.IsValid(); i++ {
		v = u.vars[v].Extern
	}
	return v
}
