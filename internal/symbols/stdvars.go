package symbols

import (
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// StandardVariable is a predeclared grid variable. Bit is its position in
// the USES mask.
type StandardVariable struct {
	Name string
	Type ts.Type
	Bit  int
}

// StandardVariables is the fixed table, in USES-bit order.
var StandardVariables = []StandardVariable{
	{"Cs", ts.VaryingOf(ts.Color), 0},
	{"Os", ts.VaryingOf(ts.Color), 1},
	{"Ng", ts.VaryingOf(ts.Normal), 2},
	{"du", ts.VaryingOf(ts.Float), 3},
	{"dv", ts.VaryingOf(ts.Float), 4},
	{"L", ts.VaryingOf(ts.Vector), 5},
	{"Cl", ts.VaryingOf(ts.Color), 6},
	{"Ol", ts.VaryingOf(ts.Color), 7},
	{"P", ts.VaryingOf(ts.Point), 8},
	{"dPdu", ts.VaryingOf(ts.Vector), 9},
	{"dPdv", ts.VaryingOf(ts.Vector), 10},
	{"N", ts.VaryingOf(ts.Normal), 11},
	{"u", ts.VaryingOf(ts.Float), 12},
	{"v", ts.VaryingOf(ts.Float), 13},
	{"s", ts.VaryingOf(ts.Float), 14},
	{"t", ts.VaryingOf(ts.Float), 15},
	{"I", ts.VaryingOf(ts.Vector), 16},
	{"Ci", ts.VaryingOf(ts.Color), 17},
	{"Oi", ts.VaryingOf(ts.Color), 18},
	{"Ps", ts.VaryingOf(ts.Point), 19},
	{"E", ts.UniformOf(ts.Point), 20},
	{"ncomps", ts.UniformOf(ts.Float), 21},
	{"time", ts.UniformOf(ts.Float), 22},
	{"alpha", ts.UniformOf(ts.Float), 23},
}

var stdBits = func() map[string]int {
	m := make(map[string]int, len(StandardVariables))
	for _, sv := range StandardVariables {
		m[sv.Name] = sv.Bit
	}
	return m
}()

// StandardBit returns the USES bit of a standard variable name.
func StandardBit(name string) (int, bool) {
	b, ok := stdBits[name]
	return b, ok
}

// Mask builds a USES mask from standard variable names. Unknown names panic.
func Mask(names ...string) uint64 {
	var m uint64
	for _, n := range names {
		b, ok := stdBits[n]
		if !ok {
			panic("unknown standard variable " + n)
		}
		m |= 1 << uint(b)
	}
	return m
}

// MaskNames lists the names set in a USES mask, in bit order.
func MaskNames(mask uint64) []string {
	var out []string
	for _, sv := range StandardVariables {
		if mask&(1<<uint(sv.Bit)) != 0 {
			out = append(out, sv.Name)
		}
	}
	return out
}
