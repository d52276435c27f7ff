package shadevm

import (
	"fmt"
	"reflect"

	"github.com/funvibe/shadevm/internal/host"
	"github.com/funvibe/shadevm/internal/vm"
)

// Marshaller handles conversion between Go values and shader values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to a parameter value. Numbers become floats,
// strings stay strings, and arrays or slices of 3 or 16 numbers become
// triples or matrices.
func (m *Marshaller) ToValue(val interface{}) (host.Value, error) {
	if val == nil {
		return host.Value{}, fmt.Errorf("cannot convert nil")
	}
	if v, ok := val.(host.Value); ok {
		return v, nil
	}

	v := reflect.ValueOf(val)
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return host.Value{}, fmt.Errorf("cannot convert nil %s", v.Type())
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return host.Number(float64(v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return host.Number(float64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return host.Number(v.Float()), nil
	case reflect.Bool:
		if v.Bool() {
			return host.Number(1), nil
		}
		return host.Number(0), nil
	case reflect.String:
		return host.Text(v.String()), nil
	case reflect.Array, reflect.Slice:
		return m.listToValue(v)
	}
	return host.Value{}, fmt.Errorf("unsupported type for conversion: %s", v.Type())
}

func (m *Marshaller) listToValue(v reflect.Value) (host.Value, error) {
	if n := v.Len(); n != 3 && n != 16 {
		return host.Value{}, fmt.Errorf("list of %d numbers (want 3 or 16)", n)
	}
	nums := make([]float64, v.Len())
	for i := range nums {
		el := v.Index(i)
		switch el.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			nums[i] = float64(el.Int())
		case reflect.Float32, reflect.Float64:
			nums[i] = el.Float()
		default:
			return host.Value{}, fmt.Errorf("element %d: %s is not a number", i, el.Type())
		}
	}
	return host.List(nums...), nil
}

var (
	floatType   = reflect.TypeOf(float64(0))
	tripleType  = reflect.TypeOf([3]float64{})
	matrixType  = reflect.TypeOf([16]float64{})
	stringType  = reflect.TypeOf("")
	defaultType = map[vm.Kind]reflect.Type{
		vm.KindFloat:  floatType,
		vm.KindTriple: tripleType,
		vm.KindMatrix: matrixType,
		vm.KindString: stringType,
	}
)

// FromData converts VM data to a Go value. A uniform value becomes
// float64, [3]float64, [16]float64 or string; a varying value becomes a
// slice of those with one element per grid point.
func (m *Marshaller) FromData(d vm.Data) (interface{}, error) {
	elem, ok := defaultType[d.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported data kind: %s", d.Kind)
	}
	if !d.Varying {
		return element(d, 0).Convert(elem).Interface(), nil
	}
	slice := reflect.MakeSlice(reflect.SliceOf(elem), d.Len(), d.Len())
	for i := 0; i < d.Len(); i++ {
		slice.Index(i).Set(element(d, i).Convert(elem))
	}
	return slice.Interface(), nil
}

// Decode stores d into the value target points to. The target's type
// must match d's kind, and must be a slice exactly when d is varying.
func (m *Marshaller) Decode(d vm.Data, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	out := rv.Elem()
	elem := out.Type()
	if d.Varying {
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("varying %s needs a slice, got %s", d.Kind, elem)
		}
		elem = elem.Elem()
	}
	if !compatible(d.Kind, elem) {
		return fmt.Errorf("cannot convert %s to %s", d.Kind, elem)
	}
	if !d.Varying {
		out.Set(element(d, 0).Convert(elem))
		return nil
	}
	slice := reflect.MakeSlice(out.Type(), d.Len(), d.Len())
	for i := 0; i < d.Len(); i++ {
		slice.Index(i).Set(element(d, i).Convert(elem))
	}
	out.Set(slice)
	return nil
}

func compatible(k vm.Kind, t reflect.Type) bool {
	switch k {
	case vm.KindFloat:
		return t.Kind() == reflect.Float64 || t.Kind() == reflect.Float32
	case vm.KindString:
		return t.Kind() == reflect.String
	case vm.KindTriple:
		return t.Kind() == reflect.Array && t.Len() == 3 && t.Elem().Kind() == reflect.Float64
	case vm.KindMatrix:
		return t.Kind() == reflect.Array && t.Len() == 16 && t.Elem().Kind() == reflect.Float64
	}
	return false
}

func element(d vm.Data, i int) reflect.Value {
	switch d.Kind {
	case vm.KindTriple:
		return reflect.ValueOf(d.TripleAt(i))
	case vm.KindMatrix:
		return reflect.ValueOf(d.MatrixAt(i))
	case vm.KindString:
		return reflect.ValueOf(d.StringAt(i))
	}
	return reflect.ValueOf(d.FloatAt(i))
}
