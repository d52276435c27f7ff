// Package typesystem describes the shading language's types: base types,
// storage classes, the implicit cast-priority matrix and the compact
// parameter-signature grammar used by the builtin function table.
package typesystem

import (
	"fmt"
	"strings"
)

// BaseType is one member of the closed set of language types.
type BaseType uint8

const (
	Nil BaseType = iota
	Float
	Integer
	String
	Point
	Vector
	Normal
	Color
	Matrix
	Triple   // unresolved (a,b,c) literal
	HPoint   // unresolved (a,b,c,d) literal
	HexTuple // unresolved 16-element literal
	Void

	numBaseTypes
)

var baseNames = [numBaseTypes]string{
	Nil:      "nil",
	Float:    "float",
	Integer:  "integer",
	String:   "string",
	Point:    "point",
	Vector:   "vector",
	Normal:   "normal",
	Color:    "color",
	Matrix:   "matrix",
	Triple:   "triple",
	HPoint:   "hpoint",
	HexTuple: "hextuple",
	Void:     "void",
}

func (b BaseType) String() string {
	if b < numBaseTypes {
		return baseNames[b]
	}
	return fmt.Sprintf("type(%d)", uint8(b))
}

// IsTransient reports whether b only exists during inference.
func (b BaseType) IsTransient() bool {
	return b == Triple || b == HPoint || b == HexTuple
}

// IsConcrete reports whether b may label a checked node.
func (b BaseType) IsConcrete() bool {
	return b != Nil && !b.IsTransient()
}

// IsSpatial reports whether b is point, vector or normal. The three share
// a layout and convert without an instruction.
func (b BaseType) IsSpatial() bool {
	return b == Point || b == Vector || b == Normal
}

// IsTripleLayout reports whether values of b are stored as three floats.
func (b BaseType) IsTripleLayout() bool {
	return b.IsSpatial() || b == Color || b == Triple
}

// IsScalar reports whether b is stored as a single float.
func (b BaseType) IsScalar() bool {
	return b == Float || b == Integer
}

// OpSuffix returns the letter used in typed opcode mnemonics (addff, dotpv).
// Integer shares the float instructions.
func (b BaseType) OpSuffix() byte {
	switch b {
	case Float, Integer:
		return 'f'
	case String:
		return 's'
	case Point:
		return 'p'
	case Vector:
		return 'v'
	case Normal:
		return 'n'
	case Color:
		return 'c'
	case Matrix:
		return 'm'
	case Triple:
		return 't'
	case HPoint:
		return 'h'
	case HexTuple:
		return 'w'
	}
	return 'x'
}

// ParseBaseName maps a declaration type name to its base type.
func ParseBaseName(name string) (BaseType, bool) {
	for b := Float; b < numBaseTypes; b++ {
		if baseNames[b] == name {
			return b, true
		}
	}
	return Nil, false
}

// StorageClass says whether a value is shared by all grid points.
type StorageClass uint8

const (
	Unspecified StorageClass = iota
	Uniform
	Varying
	Vertex
)

func (c StorageClass) String() string {
	switch c {
	case Uniform:
		return "uniform"
	case Varying:
		return "varying"
	case Vertex:
		return "vertex"
	}
	return ""
}

// Type is a base type qualified by storage class and flags.
type Type struct {
	Base   BaseType
	Class  StorageClass
	Param  bool // declared shader parameter
	Output bool // output parameter
	Array  bool
}

// T returns an unqualified type.
func T(b BaseType) Type { return Type{Base: b} }

// UniformOf returns a uniform type.
func UniformOf(b BaseType) Type { return Type{Base: b, Class: Uniform} }

// VaryingOf returns a varying type.
func VaryingOf(b BaseType) Type { return Type{Base: b, Class: Varying} }

// IsVarying reports whether the value can differ between grid points.
func (t Type) IsVarying() bool {
	return t.Class == Varying || t.Class == Vertex
}

// WithClass returns t with its storage class replaced.
func (t Type) WithClass(c StorageClass) Type {
	t.Class = c
	return t
}

// WithBase returns t with its base type replaced.
func (t Type) WithBase(b BaseType) Type {
	t.Base = b
	return t
}

// Element returns the element type of an array type.
func (t Type) Element() Type {
	t.Array = false
	return t
}

func (t Type) String() string {
	var parts []string
	if t.Output {
		parts = append(parts, "output")
	}
	if c := t.Class.String(); c != "" {
		parts = append(parts, c)
	}
	name := t.Base.String()
	if t.Array {
		name += "[]"
	}
	parts = append(parts, name)
	return strings.Join(parts, " ")
}

// MergeClass returns Varying when any operand is varying, else Uniform.
func MergeClass(types ...Type) StorageClass {
	for _, t := range types {
		if t.IsVarying() {
			return Varying
		}
	}
	return Uniform
}

// Bases projects a type list onto base types.
func Bases(types []Type) []BaseType {
	out := make([]BaseType, len(types))
	for i, t := range types {
		out[i] = t.Base
	}
	return out
}
