package host

import (
	"errors"
	"fmt"

	ts "github.com/funvibe/shadevm/internal/typesystem"
	"github.com/funvibe/shadevm/internal/vm"
	"gopkg.in/yaml.v3"
)

// Value is a scene value: a number, a string, or a list of 3 or 16
// numbers. Its shading type is decided by whoever reads it.
type Value struct {
	Num   float64
	Str   string
	Nums  []float64
	IsStr bool
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{Num: f} }

// Text returns a string value.
func Text(s string) Value { return Value{Str: s, IsStr: true} }

// List returns a triple or matrix value.
func List(f ...float64) Value { return Value{Nums: f} }

func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!str" {
			*v = Text(n.Value)
			return nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*v = Number(f)
		return nil
	case yaml.SequenceNode:
		var fs []float64
		if err := n.Decode(&fs); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		if len(fs) != 3 && len(fs) != 16 {
			return fmt.Errorf("line %d: list of %d numbers (want 3 or 16)", n.Line, len(fs))
		}
		*v = List(fs...)
		return nil
	}
	return fmt.Errorf("line %d: expected a number, string or list", n.Line)
}

// Triple returns a list of three numbers, or a number repeated three times.
func (v Value) Triple() (vm.Triple, bool) {
	switch {
	case v.IsStr:
		return vm.Triple{}, false
	case len(v.Nums) == 3:
		return vm.Triple{v.Nums[0], v.Nums[1], v.Nums[2]}, true
	case len(v.Nums) == 0:
		return vm.Triple{v.Num, v.Num, v.Num}, true
	}
	return vm.Triple{}, false
}

// Data converts v to a uniform value of base type b. A single number
// given for a matrix is a scaled identity.
func (v Value) Data(b ts.BaseType) (vm.Data, bool) {
	switch vm.KindOf(b) {
	case vm.KindString:
		if !v.IsStr {
			return vm.Data{}, false
		}
		return vm.String(v.Str), true
	case vm.KindTriple:
		t, ok := v.Triple()
		if !ok {
			return vm.Data{}, false
		}
		return vm.TripleValue(t), true
	case vm.KindMatrix:
		switch {
		case v.IsStr || len(v.Nums) == 3:
			return vm.Data{}, false
		case len(v.Nums) == 16:
			var m vm.Matrix
			copy(m[:], v.Nums)
			return vm.MatrixValue(m), true
		}
		return vm.MatrixValue(vm.Scaling(vm.Triple{v.Num, v.Num, v.Num})), true
	}
	if v.IsStr || len(v.Nums) > 0 {
		return vm.Data{}, false
	}
	return vm.Float(v.Num), true
}

func (v Value) String() string {
	switch {
	case v.IsStr:
		return fmt.Sprintf("%q", v.Str)
	case len(v.Nums) > 0:
		return fmt.Sprint(v.Nums)
	}
	return fmt.Sprint(v.Num)
}

// ErrBadParam wraps parameter overrides that do not fit the program.
var ErrBadParam = errors.New("bad parameter")

// ApplyParams assigns parameter overrides to a VM whose Init segment has
// run. Each value is converted to the variable's declared type.
func ApplyParams(m *vm.VM, params map[string]Value) error {
	for name, val := range params {
		decl, ok := m.Declaration(name)
		if !ok || !decl.Type.Param {
			return fmt.Errorf("%w: %s has no parameter %s", ErrBadParam, m.Program().Name, name)
		}
		d, ok := val.Data(decl.Type.Base)
		if !ok {
			return fmt.Errorf("%w: %s: %s is not a %s", ErrBadParam, name, val, decl.Type.Base)
		}
		if decl.Type.Array {
			for i := 0; i < decl.ArrayLen; i++ {
				if err := m.SetArrayElement(name, i, d); err != nil {
					return err
				}
			}
			continue
		}
		if err := m.SetVariable(name, d); err != nil {
			return err
		}
	}
	return nil
}
