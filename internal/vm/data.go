package vm

import (
	"fmt"
	"strconv"
	"strings"

	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// Kind is the storage layout of a value.
type Kind uint8

const (
	KindFloat Kind = iota
	KindTriple
	KindString
	KindMatrix
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindTriple:
		return "triple"
	case KindString:
		return "string"
	case KindMatrix:
		return "matrix"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// KindOf returns the storage layout of a base type.
func KindOf(b ts.BaseType) Kind {
	switch {
	case b == ts.String:
		return KindString
	case b == ts.Matrix || b == ts.HexTuple:
		return KindMatrix
	case b.IsTripleLayout() || b == ts.HPoint:
		return KindTriple
	}
	return KindFloat
}

// Triple is a point, vector, normal or colour.
type Triple [3]float64

// Matrix is a 4x4 row-major transform applied to row vectors.
type Matrix [16]float64

// Identity is the identity matrix.
var Identity = Matrix{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// Data is a value on the stack or in a variable: either one element
// shared by every grid point (uniform) or one element per point.
type Data struct {
	Kind    Kind
	Varying bool
	F       []float64
	T       []Triple
	S       []string
	M       []Matrix
}

// Float returns a uniform float.
func Float(v float64) Data { return Data{Kind: KindFloat, F: []float64{v}} }

// TripleValue returns a uniform triple.
func TripleValue(t Triple) Data { return Data{Kind: KindTriple, T: []Triple{t}} }

// String returns a uniform string.
func String(s string) Data { return Data{Kind: KindString, S: []string{s}} }

// MatrixValue returns a uniform matrix.
func MatrixValue(m Matrix) Data { return Data{Kind: KindMatrix, M: []Matrix{m}} }

// Floats returns a varying float with one element per point.
func Floats(v []float64) Data { return Data{Kind: KindFloat, Varying: true, F: v} }

// Triples returns a varying triple with one element per point.
func Triples(v []Triple) Data { return Data{Kind: KindTriple, Varying: true, T: v} }

// Zero returns a zeroed value of n elements (n > 1 or varying means one
// element per point).
func Zero(kind Kind, varying bool, n int) Data {
	if !varying {
		n = 1
	}
	d := Data{Kind: kind, Varying: varying}
	switch kind {
	case KindFloat:
		d.F = make([]float64, n)
	case KindTriple:
		d.T = make([]Triple, n)
	case KindString:
		d.S = make([]string, n)
	case KindMatrix:
		d.M = make([]Matrix, n)
	}
	return d
}

// Len returns the number of stored elements.
func (d Data) Len() int {
	switch d.Kind {
	case KindFloat:
		return len(d.F)
	case KindTriple:
		return len(d.T)
	case KindString:
		return len(d.S)
	}
	return len(d.M)
}

func (d Data) at(i int) int {
	if !d.Varying {
		return 0
	}
	return i
}

// FloatAt returns the float at point i (element 0 when uniform).
func (d Data) FloatAt(i int) float64 { return d.F[d.at(i)] }

// TripleAt returns the triple at point i.
func (d Data) TripleAt(i int) Triple { return d.T[d.at(i)] }

// StringAt returns the string at point i.
func (d Data) StringAt(i int) string { return d.S[d.at(i)] }

// MatrixAt returns the matrix at point i.
func (d Data) MatrixAt(i int) Matrix { return d.M[d.at(i)] }

// Clone copies the element storage.
func (d Data) Clone() Data {
	out := Data{Kind: d.Kind, Varying: d.Varying}
	out.F = append([]float64(nil), d.F...)
	out.T = append([]Triple(nil), d.T...)
	out.S = append([]string(nil), d.S...)
	out.M = append([]Matrix(nil), d.M...)
	return out
}

// Broadcast returns a varying copy of d with n elements.
func (d Data) Broadcast(n int) Data {
	if d.Varying && d.Len() == n {
		return d.Clone()
	}
	out := Zero(d.Kind, true, n)
	for i := 0; i < n; i++ {
		out.copyFrom(i, d, i)
	}
	return out
}

// copyFrom stores src's element for point j into element i of d.
func (d *Data) copyFrom(i int, src Data, j int) {
	j = src.at(j)
	switch d.Kind {
	case KindFloat:
		d.F[i] = src.F[j]
	case KindTriple:
		d.T[i] = src.T[j]
	case KindString:
		d.S[i] = src.S[j]
	case KindMatrix:
		d.M[i] = src.M[j]
	}
}

// Element renders the element for point i.
func (d Data) Element(i int) string {
	if d.Len() == 0 {
		return "<empty>"
	}
	switch d.Kind {
	case KindFloat:
		return formatFloat(d.FloatAt(i))
	case KindTriple:
		t := d.TripleAt(i)
		return fmt.Sprintf("(%s,%s,%s)", formatFloat(t[0]), formatFloat(t[1]), formatFloat(t[2]))
	case KindString:
		return d.StringAt(i)
	}
	m := d.MatrixAt(i)
	parts := make([]string, len(m))
	for k, v := range m {
		parts[k] = formatFloat(v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (d Data) String() string {
	if !d.Varying {
		return d.Element(0)
	}
	n := d.Len()
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i == 8 && n > 10 {
			fmt.Fprintf(&sb, "... (%d points)", n)
			break
		}
		sb.WriteString(d.Element(i))
	}
	sb.WriteByte(']')
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
