// Package prettyprinter renders a compilation unit back as shading-language
// source: local functions first, then the shader with its parameter list
// and body.
package prettyprinter

import (
	"bytes"
	"slices"
	"strconv"
	"strings"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// Operator precedence (higher = binds tighter)
var operatorPrecedence = map[ast.Op]int{
	ast.OpOr:    1,
	ast.OpAnd:   2,
	ast.OpEq:    3,
	ast.OpNe:    3,
	ast.OpLt:    4,
	ast.OpGt:    4,
	ast.OpLe:    4,
	ast.OpGe:    4,
	ast.OpAdd:   5,
	ast.OpSub:   5,
	ast.OpMul:   6,
	ast.OpDiv:   6,
	ast.OpCross: 7,
	ast.OpDot:   8,
}

const (
	precTernary = 0
	precUnary   = 9
	precAtom    = 10
)

func precedence(t *ast.Tree, id ast.NodeID) int {
	n := t.Node(id)
	switch n.Kind {
	case ast.KindBinary, ast.KindRelational, ast.KindLogical:
		return operatorPrecedence[n.Op]
	case ast.KindTernary:
		return precTernary
	case ast.KindUnary, ast.KindCast:
		return precUnary
	}
	return precAtom
}

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
	unit   *symbols.Unit
	tree   *ast.Tree
}

func NewCodePrinter(u *symbols.Unit) *CodePrinter {
	return &CodePrinter{unit: u, tree: u.Tree}
}

// Print renders u as source.
func Print(u *symbols.Unit) string {
	return NewCodePrinter(u).Unit()
}

func (p *CodePrinter) write(s string) { p.buf.WriteString(s) }

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

func (p *CodePrinter) line(s string) {
	p.writeIndent()
	p.write(s)
	p.write("\n")
}

// Unit renders the whole unit.
func (p *CodePrinter) Unit() string {
	p.buf.Reset()
	owner := p.declarationOwners()
	for _, f := range p.unit.LocalFunctions() {
		p.function(f, owner)
		p.write("\n")
	}
	p.shader(owner)
	return p.buf.String()
}

// declarationOwners decides where each local variable is declared: in the
// first local function whose body references it, otherwise in the
// shader body. Parameters and formals are declared by their headers.
func (p *CodePrinter) declarationOwners() map[ast.VarID]ast.FuncID {
	skip := map[ast.VarID]bool{}
	for _, v := range p.unit.Params() {
		skip[v] = true
	}
	for _, f := range p.unit.LocalFunctions() {
		for _, v := range p.unit.Func(f).Formals {
			skip[v] = true
		}
	}
	owner := map[ast.VarID]ast.FuncID{}
	for i := 1; i < p.unit.NumVars(); i++ {
		v := ast.VarID(i)
		if p.unit.Var(v).Category == symbols.Local && !skip[v] {
			owner[v] = ast.NoFunc
		}
	}
	for _, f := range p.unit.LocalFunctions() {
		p.tree.Walk(p.unit.Func(f).Body, func(id ast.NodeID) bool {
			n := p.tree.Node(id)
			switch n.Kind {
			case ast.KindVar, ast.KindArrayRef, ast.KindAssign:
				if cur, ok := owner[n.Var]; ok && cur == ast.NoFunc {
					owner[n.Var] = f
				}
			}
			return true
		})
	}
	return owner
}

func (p *CodePrinter) declarations(owner map[ast.VarID]ast.FuncID, f ast.FuncID) {
	var ids []ast.VarID
	for v, o := range owner {
		if o == f {
			ids = append(ids, v)
		}
	}
	slices.Sort(ids)
	for _, v := range ids {
		p.line(p.declaration(v) + ";")
	}
	if len(ids) > 0 {
		p.write("\n")
	}
}

func (p *CodePrinter) declaration(v ast.VarID) string {
	def := p.unit.Var(v)
	t := def.Type
	t.Array = false
	s := t.String() + " " + def.Name
	if def.IsArray() {
		s += "[" + strconv.Itoa(def.ArrayLen) + "]"
	}
	return s
}

func (p *CodePrinter) function(f ast.FuncID, owner map[ast.VarID]ast.FuncID) {
	def := p.unit.Func(f)
	formals := make([]string, len(def.Formals))
	for i, v := range def.Formals {
		formals[i] = p.declaration(v)
	}
	p.write(def.Return.String() + " " + def.Name + "(" + strings.Join(formals, "; ") + ")\n")
	p.body(def.Body, func() { p.declarations(owner, f) })
}

func (p *CodePrinter) shader(owner map[ast.VarID]ast.FuncID) {
	sh := p.unit.Shader
	p.write(sh.Kind + " " + sh.Name + "(")
	params := p.unit.Params()
	if len(params) > 0 {
		p.write("\n")
		p.indent++
		for _, v := range params {
			s := p.declaration(v)
			if def := p.unit.Var(v).Default; def != ast.NoNode {
				s += " = " + p.expr(def, 0)
			}
			p.line(s + ";")
		}
		p.indent--
	}
	p.write(")\n")
	p.body(sh.Body, func() { p.declarations(owner, ast.NoFunc) })
}

// body prints a block with pre emitting declarations after the brace.
func (p *CodePrinter) body(id ast.NodeID, pre func()) {
	p.line("{")
	p.indent++
	pre()
	if id != ast.NoNode {
		if p.tree.Kind(id) == ast.KindBlock {
			for _, c := range p.tree.Children(id) {
				p.stmt(c)
			}
		} else {
			p.stmt(id)
		}
	}
	p.indent--
	p.line("}")
}

func (p *CodePrinter) block(id ast.NodeID) {
	p.body(id, func() {})
}

func (p *CodePrinter) stmt(id ast.NodeID) {
	n := p.tree.Node(id)
	kids := p.tree.Children(id)
	switch n.Kind {
	case ast.KindBlock:
		p.block(id)
	case ast.KindIf:
		p.line("if (" + p.expr(kids[0], 0) + ")")
		p.block(kids[1])
		if len(kids) > 2 {
			p.line("else")
			p.block(kids[2])
		}
	case ast.KindWhile:
		p.line("while (" + p.expr(kids[0], 0) + ")")
		p.block(kids[1])
	case ast.KindFor:
		p.line("for (" + p.inline(kids[0]) + "; " + p.expr(kids[1], 0) + "; " + p.inline(kids[2]) + ")")
		p.block(kids[3])
	case ast.KindIlluminance, ast.KindIlluminate, ast.KindSolar:
		args := make([]string, len(kids)-1)
		for i, a := range kids[:len(kids)-1] {
			args[i] = p.expr(a, 0)
		}
		p.line(n.Kind.String() + "(" + strings.Join(args, ", ") + ")")
		p.block(kids[len(kids)-1])
	case ast.KindReturn:
		if len(kids) == 0 {
			p.line("return;")
		} else {
			p.line("return " + p.expr(kids[0], 0) + ";")
		}
	default:
		p.line(p.inline(id) + ";")
	}
}

// inline renders a simple statement without its semicolon, for for-loop
// headers. A block joins its statements with commas.
func (p *CodePrinter) inline(id ast.NodeID) string {
	n := p.tree.Node(id)
	switch n.Kind {
	case ast.KindBlock:
		var parts []string
		for _, c := range p.tree.Children(id) {
			parts = append(parts, p.inline(c))
		}
		return strings.Join(parts, ", ")
	case ast.KindAssign:
		kids := p.tree.Children(id)
		target := p.unit.Var(n.Var).Name
		if n.Indexed {
			target += "[" + p.expr(kids[0], 0) + "]"
		}
		op := "="
		if n.Op != ast.OpNone {
			op = n.Op.String() + "="
		}
		return target + " " + op + " " + p.expr(kids[len(kids)-1], 0)
	}
	return p.expr(id, 0)
}

// expr renders an expression, adding parentheses only where the parent
// binds tighter.
func (p *CodePrinter) expr(id ast.NodeID, parentPrec int) string {
	if id == ast.NoNode {
		return "<???>"
	}
	n := p.tree.Node(id)
	kids := p.tree.Children(id)
	prec := precedence(p.tree, id)
	var s string
	switch n.Kind {
	case ast.KindFloat:
		s = strconv.FormatFloat(n.Num, 'g', -1, 64)
	case ast.KindString:
		s = strconv.Quote(n.Str)
	case ast.KindVar:
		s = p.unit.Var(n.Var).Name
	case ast.KindArrayRef:
		s = p.unit.Var(n.Var).Name + "[" + p.expr(kids[0], 0) + "]"
	case ast.KindTuple:
		s = "(" + p.list(kids) + ")"
		if n.Str != "" {
			s = strconv.Quote(n.Str) + " " + s
			if b := n.Type.Base; b.IsConcrete() {
				s = b.String() + " " + s
			}
		}
	case ast.KindUnary:
		op := "-"
		if n.Op == ast.OpNot {
			op = "!"
		}
		s = op + p.expr(kids[0], precUnary)
	case ast.KindBinary, ast.KindRelational, ast.KindLogical:
		// Left-associative: a right operand of equal precedence needs
		// parentheses.
		s = p.expr(kids[0], prec) + " " + n.Op.String() + " " + p.expr(kids[1], prec+1)
	case ast.KindCast:
		if p.tree.Kind(kids[0]) == ast.KindTuple && p.tree.Node(kids[0]).Str == "" {
			s = castName(n.CastTo) + " " + p.expr(kids[0], 0)
		} else {
			s = castName(n.CastTo) + "(" + p.expr(kids[0], 0) + ")"
		}
		prec = precAtom
	case ast.KindCall:
		s = n.Str + "(" + p.list(kids) + ")"
	case ast.KindTernary:
		s = p.expr(kids[0], precTernary+1) + " ? " + p.expr(kids[1], precTernary+1) + " : " + p.expr(kids[2], precTernary)
	case ast.KindAssign:
		return "(" + p.inline(id) + ")"
	default:
		s = "<" + n.Kind.String() + ">"
	}
	if prec < parentPrec {
		return "(" + s + ")"
	}
	return s
}

func (p *CodePrinter) list(ids []ast.NodeID) string {
	parts := make([]string, len(ids))
	for i, c := range ids {
		parts[i] = p.expr(c, 0)
	}
	return strings.Join(parts, ", ")
}

func castName(t ts.Type) string {
	return t.Base.String()
}
