package vm

import (
	"errors"
	"fmt"
)

var errRSUnderflow = errors.New("running-state stack underflow")

func init() {
	register("nop", func(*VM, []Instruction) error { return nil })
	register("pushif", opPushFloat, OperandFloat)
	register("pushis", opPushString, OperandString)
	register("pushv", opPushVar, OperandVar)
	register("ipushv", opIndexedPush, OperandVar)
	register("pop", opPop, OperandVar)
	register("ipop", opIndexedPop, OperandVar)
	register("drop", opDrop)
	register("dup", opDup)

	register("jmp", func(vm *VM, ops []Instruction) error {
		vm.jump(ops[0])
		return nil
	}, OperandLabel)
	register("jz", opBranch(false), OperandLabel)
	register("jnz", opBranch(true), OperandLabel)

	register("RS_PUSH", func(vm *VM, _ []Instruction) error {
		vm.rs = append(vm.rs, vm.running.Clone())
		return nil
	})
	register("RS_POP", func(vm *VM, _ []Instruction) error {
		top, err := vm.rsTop()
		if err != nil {
			return err
		}
		vm.running = top
		vm.rs = vm.rs[:len(vm.rs)-1]
		return nil
	})
	register("RS_GET", func(vm *VM, _ []Instruction) error {
		vm.running = vm.current.Clone()
		return nil
	})
	register("RS_INVERSE", func(vm *VM, _ []Instruction) error {
		top, err := vm.rsTop()
		if err != nil {
			return err
		}
		vm.running = top.AndNot(vm.running)
		return nil
	})
	register("RS_JZ", func(vm *VM, ops []Instruction) error {
		if !vm.running.Any() {
			vm.jump(ops[0])
		}
		return nil
	}, OperandLabel)
	register("RS_JNZ", func(vm *VM, ops []Instruction) error {
		if vm.running.Any() {
			vm.jump(ops[0])
		}
		return nil
	}, OperandLabel)

	register("S_CLEAR", func(vm *VM, _ []Instruction) error {
		vm.current = NewMask(vm.n, false)
		return nil
	})
	register("S_GET", func(vm *VM, _ []Instruction) error {
		cond, err := vm.popKind(KindFloat)
		if err != nil {
			return err
		}
		vm.current = vm.truth(cond).And(vm.running)
		return nil
	})
	register("S_JZ", func(vm *VM, ops []Instruction) error {
		if !vm.current.Any() {
			vm.jump(ops[0])
		}
		return nil
	}, OperandLabel)
	register("S_JNZ", func(vm *VM, ops []Instruction) error {
		if vm.current.Any() {
			vm.jump(ops[0])
		}
		return nil
	}, OperandLabel)
}

func (vm *VM) jump(label Instruction) { vm.next = label.Target }

func (vm *VM) rsTop() (Mask, error) {
	if len(vm.rs) == 0 {
		return Mask{}, errRSUnderflow
	}
	return vm.rs[len(vm.rs)-1], nil
}

// truth returns the points where a float value is non-zero.
func (vm *VM) truth(d Data) Mask {
	if !d.Varying {
		return NewMask(vm.n, d.F[0] != 0)
	}
	m := NewMask(vm.n, false)
	for i := 0; i < vm.n; i++ {
		if d.F[i] != 0 {
			m.Set(i, true)
		}
	}
	return m
}

func opPushFloat(vm *VM, ops []Instruction) error {
	vm.push(Float(ops[0].Num))
	return nil
}

func opPushString(vm *VM, ops []Instruction) error {
	vm.push(String(ops[0].Str))
	return nil
}

func opPushVar(vm *VM, ops []Instruction) error {
	v := vm.variable(ops[0].Var)
	if v.Decl.Type.Array {
		return fmt.Errorf("%w: array %s used without an index", ErrTypeMismatch, v.Decl.Name)
	}
	vm.push(v.Value.Clone())
	return nil
}

func opPop(vm *VM, ops []Instruction) error {
	v := vm.variable(ops[0].Var)
	if v.Decl.Type.Array {
		return fmt.Errorf("%w: array %s assigned without an index", ErrTypeMismatch, v.Decl.Name)
	}
	val, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.store(&v.Value, val)
}

func opDrop(vm *VM, _ []Instruction) error {
	_, err := vm.pop()
	return err
}

func opDup(vm *VM, _ []Instruction) error {
	top, ok := vm.StackTop()
	if !ok {
		return ErrStackUnderflow
	}
	vm.push(top.Clone())
	return nil
}

// opBranch pops a float and jumps when any running point holds a non-zero
// value (want true) or when none does (want false).
func opBranch(want bool) execFunc {
	return func(vm *VM, ops []Instruction) error {
		cond, err := vm.popKind(KindFloat)
		if err != nil {
			return err
		}
		if vm.truth(cond).And(vm.running).Any() == want {
			vm.jump(ops[0])
		}
		return nil
	}
}

// indices converts an index value to clamped element offsets, one per
// point (a single entry when the index is uniform).
func (vm *VM) indices(v *Variable, idx Data) ([]int, error) {
	if !v.Decl.Type.Array {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, v.Decl.Name)
	}
	if idx.Kind != KindFloat {
		return nil, fmt.Errorf("%w: %s index is %s", ErrTypeMismatch, v.Decl.Name, idx.Kind)
	}
	last := len(v.Elems) - 1
	out := make([]int, len(idx.F))
	clamped := false
	for p, f := range idx.F {
		i := int(f)
		switch {
		case i < 0:
			i, clamped = 0, true
		case i > last:
			i, clamped = last, true
		}
		out[p] = i
	}
	if clamped {
		vm.report(fmt.Errorf("%s: index out of range [0,%d], clamped", v.Decl.Name, last))
	}
	return out, nil
}

func opIndexedPush(vm *VM, ops []Instruction) error {
	v := vm.variable(ops[0].Var)
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	at, err := vm.indices(v, idx)
	if err != nil {
		return err
	}
	if !idx.Varying {
		vm.push(v.Elems[at[0]].Clone())
		return nil
	}
	out := Zero(KindOf(v.Decl.Type.Base), true, vm.n)
	for p := 0; p < vm.n; p++ {
		out.copyFrom(p, v.Elems[at[p]], p)
	}
	vm.push(out)
	return nil
}

func opIndexedPop(vm *VM, ops []Instruction) error {
	v := vm.variable(ops[0].Var)
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	val, err := vm.pop()
	if err != nil {
		return err
	}
	at, err := vm.indices(v, idx)
	if err != nil {
		return err
	}
	if !idx.Varying {
		return vm.store(&v.Elems[at[0]], val)
	}
	if val.Kind != KindOf(v.Decl.Type.Base) {
		return fmt.Errorf("%w: store %s into %s", ErrTypeMismatch, val.Kind, v.Decl.Name)
	}
	for p := 0; p < vm.n; p++ {
		if !vm.running.Get(p) {
			continue
		}
		e := &v.Elems[at[p]]
		if e.Varying {
			e.copyFrom(p, val, p)
		} else {
			e.copyFrom(0, val, p)
		}
	}
	return nil
}
