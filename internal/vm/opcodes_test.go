package vm

import (
	"testing"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/symbols"
)

// Every library function must name a registered opcode whose inline
// operands are its output variables plus a trailing count when variadic.
func TestBuiltinOpcodesRegistered(t *testing.T) {
	u := symbols.NewUnit("lib")
	for id := 1; id < u.NumFuncs(); id++ {
		def := u.Func(ast.FuncID(id))
		if def.Opcode == "" {
			continue
		}
		op, ok := LookupOpcode(def.Opcode)
		if !ok {
			t.Errorf("%s: opcode %q not registered", def.Name, def.Opcode)
			continue
		}
		var vars, counts int
		for _, k := range op.Operands {
			switch k {
			case OperandVar:
				vars++
			case OperandCount:
				counts++
			default:
				t.Errorf("%s: unexpected %s operand", op.Name, k)
			}
		}
		wantVars := 0
		for _, p := range def.Params.Params {
			if p.MustBeVariable {
				wantVars++
			}
		}
		wantCounts := 0
		if def.Variadic() {
			wantCounts = 1
		}
		if vars != wantVars || counts != wantCounts {
			t.Errorf("%s (%s): opcode %s has %d var and %d count operands, want %d and %d",
				def.Name, def.Signature, op.Name, vars, counts, wantVars, wantCounts)
		}
	}
}

func TestCoreOpcodes(t *testing.T) {
	tests := []struct {
		name  string
		arity int
		jump  bool
	}{
		{"nop", 0, false},
		{"pushif", 1, false},
		{"pushis", 1, false},
		{"pushv", 1, false},
		{"ipop", 1, false},
		{"jz", 1, true},
		{"RS_JZ", 1, true},
		{"S_JNZ", 1, true},
		{"RS_INVERSE", 0, false},
		{"init_illuminance", 0, false},
		{"addff", 0, false},
		{"setwm", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok := LookupOpcode(tt.name)
			if !ok {
				t.Fatalf("%s not registered", tt.name)
			}
			if op.Arity() != tt.arity || op.IsJump() != tt.jump {
				t.Errorf("%s: arity %d jump %v", tt.name, op.Arity(), op.IsJump())
			}
		})
	}
	if _, ok := LookupOpcode("addsf"); ok {
		t.Error("addsf should not exist")
	}
}
