// Package symbols holds the declarations of one compilation unit: the
// variable and function arenas (standard, special and user-defined), name
// lookup with overload lists, and the scope-translation stack used when
// local functions are expanded inline.
package symbols

import (
	"fmt"
	"strings"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/typesystem"
)

// Category says where a declaration comes from.
type Category uint8

const (
	Standard Category = iota // builtin: standard variables and library functions
	Special                  // comm functions resolved against the host at run time
	Local                    // declared by the shader
)

func (c Category) String() string {
	switch c {
	case Standard:
		return "standard"
	case Special:
		return "special"
	}
	return "local"
}

// VariableDef is one variable declaration.
type VariableDef struct {
	Name     string
	Type     typesystem.Type
	Category Category

	// Default is the default-value expression of a shader parameter.
	Default ast.NodeID

	// UseCount counts references emitted by the code generator; locals
	// that end at zero are not declared in the Data segment.
	UseCount int

	// Extern binds the variable to another declaration; an inlined formal
	// parameter that aliases its argument points at the actual here.
	Extern ast.VarID

	// ArrayLen is the element count of an array variable.
	ArrayLen int

	// StdBit is the USES bit of a standard variable, -1 otherwise.
	StdBit int
}

// IsArray reports whether the variable is an array.
func (v *VariableDef) IsArray() bool { return v.Type.Array }

// FunctionDef is one function declaration (one overload).
type FunctionDef struct {
	Name      string
	Return    typesystem.Type
	Opcode    string
	Signature string
	Params    typesystem.Signature
	// Uses is a bitmask of standard variables the function reads implicitly.
	Uses     uint64
	Category Category

	// Local functions only.
	Formals []ast.VarID
	Body    ast.NodeID
}

// Variadic reports whether the function takes a variable argument count.
func (f *FunctionDef) Variadic() bool { return f.Params.Variadic }

// Shader describes the program a unit compiles.
type Shader struct {
	Kind string
	Name string
	Body ast.NodeID
}

// Unit is a compilation unit: one shader, its parse tree and every
// declaration visible to it. Index 0 of each arena is reserved.
type Unit struct {
	Tree   *ast.Tree
	Shader Shader

	vars    []VariableDef
	funcs   []FunctionDef
	byName  map[string][]ast.FuncID
	stdVars map[string]ast.VarID
	params  []ast.VarID
	locals  []ast.FuncID
}

// NewUnit creates a unit for file with the standard variables and the
// builtin function library registered.
func NewUnit(file string) *Unit {
	u := &Unit{
		Tree:    ast.NewTree(file),
		vars:    make([]VariableDef, 1, 64),
		funcs:   make([]FunctionDef, 1, len(builtinTable)+16),
		byName:  make(map[string][]ast.FuncID),
		stdVars: make(map[string]ast.VarID),
	}
	for _, sv := range StandardVariables {
		id := u.addVar(VariableDef{
			Name:     sv.Name,
			Type:     sv.Type,
			Category: Standard,
			StdBit:   sv.Bit,
		})
		u.stdVars[sv.Name] = id
	}
	for _, b := range builtinTable {
		u.addFunc(b.def())
	}
	return u
}

// File returns the source file name.
func (u *Unit) File() string { return u.Tree.File }

// Builder returns a tree builder whose calls look functions up in u.
func (u *Unit) Builder() *ast.Builder {
	return ast.NewBuilder(u.Tree, u)
}

// SetShader records the shader kind, name and body.
func (u *Unit) SetShader(kind, name string, body ast.NodeID) {
	u.Shader = Shader{Kind: kind, Name: name, Body: body}
}

func (u *Unit) addVar(v VariableDef) ast.VarID {
	u.vars = append(u.vars, v)
	return ast.VarID(len(u.vars) - 1)
}

func (u *Unit) addFunc(f FunctionDef) ast.FuncID {
	u.funcs = append(u.funcs, f)
	id := ast.FuncID(len(u.funcs) - 1)
	u.byName[f.Name] = append(u.byName[f.Name], id)
	return id
}

// Var returns the declaration for id.
func (u *Unit) Var(id ast.VarID) *VariableDef {
	return &u.vars[id]
}

// Func returns the declaration for id.
func (u *Unit) Func(id ast.FuncID) *FunctionDef {
	return &u.funcs[id]
}

// NumVars returns the size of the variable arena including slot 0.
func (u *Unit) NumVars() int { return len(u.vars) }

// NumFuncs returns the size of the function arena including slot 0.
func (u *Unit) NumFuncs() int { return len(u.funcs) }

// DeclareVar declares a local variable.
func (u *Unit) DeclareVar(name string, typ typesystem.Type) ast.VarID {
	return u.addVar(VariableDef{Name: name, Type: typ, Category: Local, StdBit: -1})
}

// DeclareArray declares a local array variable of n elements.
func (u *Unit) DeclareArray(name string, typ typesystem.Type, n int) ast.VarID {
	typ.Array = true
	return u.addVar(VariableDef{Name: name, Type: typ, Category: Local, ArrayLen: n, StdBit: -1})
}

// DeclareParam declares a shader parameter with a default expression.
func (u *Unit) DeclareParam(name string, typ typesystem.Type, def ast.NodeID) ast.VarID {
	typ.Param = true
	id := u.addVar(VariableDef{Name: name, Type: typ, Category: Local, Default: def, StdBit: -1})
	u.params = append(u.params, id)
	return id
}

// DeclareArrayParam declares an array shader parameter. def is a tuple
// node holding the element defaults, or NoNode.
func (u *Unit) DeclareArrayParam(name string, typ typesystem.Type, n int, def ast.NodeID) ast.VarID {
	typ.Param = true
	typ.Array = true
	id := u.addVar(VariableDef{Name: name, Type: typ, Category: Local, Default: def, ArrayLen: n, StdBit: -1})
	u.params = append(u.params, id)
	return id
}

// Params returns the shader parameters in declaration order.
func (u *Unit) Params() []ast.VarID { return u.params }

// DefineFunction declares a local (user) function. Its signature string
// is derived from the formal parameters: output formals become uppercase
// slots, array formals [c] slots.
func (u *Unit) DefineFunction(name string, ret typesystem.Type, formals []ast.VarID, body ast.NodeID) (ast.FuncID, error) {
	var sb strings.Builder
	for _, f := range formals {
		v := u.Var(f)
		ch := typesystem.SigChar(v.Type.Base)
		if v.Type.Output {
			ch -= 'a' - 'A'
		}
		if v.Type.Array {
			sb.WriteByte('[')
			sb.WriteByte(ch)
			sb.WriteByte(']')
		} else {
			sb.WriteByte(ch)
		}
	}
	sig, err := typesystem.ParseSignature(sb.String())
	if err != nil {
		return ast.NoFunc, fmt.Errorf("function %s: %w", name, err)
	}
	id := u.addFunc(FunctionDef{
		Name:      name,
		Return:    ret,
		Signature: sb.String(),
		Params:    sig,
		Category:  Local,
		Formals:   append([]ast.VarID(nil), formals...),
		Body:      body,
	})
	u.locals = append(u.locals, id)
	return id, nil
}

// LocalFunctions returns user functions in definition order.
func (u *Unit) LocalFunctions() []ast.FuncID { return u.locals }

// LookupFunctions returns the overloads of name in declaration order:
// builtins first, then local definitions.
func (u *Unit) LookupFunctions(name string) []ast.FuncID {
	ids := u.byName[name]
	if len(ids) == 0 {
		return nil
	}
	return append([]ast.FuncID(nil), ids...)
}

// StandardVar returns the id of a standard variable.
func (u *Unit) StandardVar(name string) (ast.VarID, bool) {
	id, ok := u.stdVars[name]
	return id, ok
}

// MustStandardVar is StandardVar for names known to exist.
func (u *Unit) MustStandardVar(name string) ast.VarID {
	id, ok := u.stdVars[name]
	if !ok {
		panic("unknown standard variable " + name)
	}
	return id
}
