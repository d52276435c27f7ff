package vm

import (
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// VarDecl is one Data-segment declaration.
type VarDecl struct {
	Name     string
	Type     ts.Type
	ArrayLen int
}

// Label marks an offset in a segment. Labels keep their textual ids so
// the program can be re-emitted unchanged.
type Label struct {
	ID     int
	Offset int
}

// Segment is an instruction stream and its labels in definition order.
type Segment struct {
	Code   []Instruction
	Labels []Label
}

// Program is a loaded shader.
type Program struct {
	File string
	Kind string
	Name string
	Uses uint64
	Vars []VarDecl
	Init Segment
	Code Segment

	index map[string]int
}

var stdIndex = func() map[string]int {
	m := make(map[string]int, len(symbols.StandardVariables))
	for i, sv := range symbols.StandardVariables {
		m[sv.Name] = i
	}
	return m
}()

// Lookup resolves a variable name: Data-segment declarations first, then
// the standard variables.
func (p *Program) Lookup(name string) (VarRef, bool) {
	if i, ok := p.index[name]; ok {
		return VarRef{Index: i}, true
	}
	if i, ok := stdIndex[name]; ok {
		return VarRef{Index: i, Std: true}, true
	}
	return VarRef{}, false
}

func (p *Program) addVar(d VarDecl) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	p.index[d.Name] = len(p.Vars)
	p.Vars = append(p.Vars, d)
}

// Params returns the parameter declarations in order.
func (p *Program) Params() []VarDecl {
	var out []VarDecl
	for _, d := range p.Vars {
		if d.Type.Param {
			out = append(out, d)
		}
	}
	return out
}

// HasOpcode reports whether the Code segment uses any of the named opcodes.
func (p *Program) HasOpcode(names ...string) bool {
	for _, in := range p.Code.Code {
		if in.Tag != TagOpcode {
			continue
		}
		for _, n := range names {
			if in.Op.Name == n {
				return true
			}
		}
	}
	return false
}

// IsAmbientLight reports whether a light program has no illuminate or
// solar construct.
func (p *Program) IsAmbientLight() bool {
	return !p.HasOpcode("illuminate", "illuminate2", "solar", "solar2")
}
