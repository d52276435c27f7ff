// Package vm loads textual shader bytecode and executes it over grids of
// points. Every value is either uniform or carries one element per point;
// varying control flow is expressed with an explicit running-state mask
// stack instead of per-point branches.
package vm

import (
	"fmt"
	"sort"
)

// OperandKind is the kind of an inline operand following an opcode.
type OperandKind uint8

const (
	OperandFloat OperandKind = iota
	OperandString
	OperandVar
	OperandLabel
	OperandCount
)

func (k OperandKind) String() string {
	switch k {
	case OperandFloat:
		return "float"
	case OperandString:
		return "string"
	case OperandVar:
		return "variable"
	case OperandLabel:
		return "label"
	}
	return "count"
}

// execFunc runs one instruction; ops are the operand cells that follow it.
type execFunc func(vm *VM, ops []Instruction) error

// OpInfo describes one opcode.
type OpInfo struct {
	Name     string
	Operands []OperandKind
	exec     execFunc
}

// Arity returns the number of operand cells.
func (o *OpInfo) Arity() int { return len(o.Operands) }

// IsJump reports whether the opcode takes a label.
func (o *OpInfo) IsJump() bool {
	for _, k := range o.Operands {
		if k == OperandLabel {
			return true
		}
	}
	return false
}

var opTable = make(map[string]*OpInfo, 512)

// register adds an opcode. Registering a name twice is a programming error.
func register(name string, exec execFunc, operands ...OperandKind) {
	if _, dup := opTable[name]; dup {
		panic(fmt.Sprintf("vm: opcode %s registered twice", name))
	}
	opTable[name] = &OpInfo{Name: name, Operands: operands, exec: exec}
}

// LookupOpcode returns the opcode named name.
func LookupOpcode(name string) (*OpInfo, bool) {
	op, ok := opTable[name]
	return op, ok
}

// Opcodes returns every mnemonic, sorted.
func Opcodes() []string {
	out := make([]string, 0, len(opTable))
	for name := range opTable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Tag selects the payload of an Instruction cell.
type Tag uint8

const (
	TagOpcode Tag = iota
	TagFloat
	TagString
	TagVar
	TagLabel
	TagCount
)

// VarRef addresses a variable: a Data-segment declaration, or a standard
// variable when Std is set.
type VarRef struct {
	Index int
	Std   bool
}

// Instruction is one cell of the instruction stream: an opcode or one of
// its inline operands.
type Instruction struct {
	Tag Tag
	Op  *OpInfo
	Num float64
	// Str is the literal of a string operand or the name of a variable.
	Str   string
	Var   VarRef
	Label int
	// Target is the resolved absolute offset of a label operand.
	Target int
	Count  int
}

func operandTag(k OperandKind) Tag {
	switch k {
	case OperandFloat:
		return TagFloat
	case OperandString:
		return TagString
	case OperandVar:
		return TagVar
	case OperandLabel:
		return TagLabel
	}
	return TagCount
}
