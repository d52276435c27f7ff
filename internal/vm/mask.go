package vm

import (
	"math/bits"
	"strings"
)

// Mask is one bit per grid point. The running state, the current
// (condition) state and the entries of the running-state stack are masks.
type Mask struct {
	words []uint64
	n     int
}

// NewMask returns a mask of n points, all set to value.
func NewMask(n int, value bool) Mask {
	m := Mask{words: make([]uint64, (n+63)/64), n: n}
	if value {
		for i := range m.words {
			m.words[i] = ^uint64(0)
		}
		m.trim()
	}
	return m
}

// trim clears the bits past n in the last word.
func (m Mask) trim() {
	if r := m.n % 64; r != 0 && len(m.words) > 0 {
		m.words[len(m.words)-1] &= (uint64(1) << uint(r)) - 1
	}
}

// Len returns the number of points.
func (m Mask) Len() int { return m.n }

// Get reports bit i.
func (m Mask) Get(i int) bool {
	return m.words[i/64]&(uint64(1)<<uint(i%64)) != 0
}

// Set assigns bit i.
func (m Mask) Set(i int, v bool) {
	if v {
		m.words[i/64] |= uint64(1) << uint(i%64)
	} else {
		m.words[i/64] &^= uint64(1) << uint(i%64)
	}
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	c := 0
	for _, w := range m.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Any reports whether some bit is set.
func (m Mask) Any() bool {
	for _, w := range m.words {
		if w != 0 {
			return true
		}
	}
	return false
}

// All reports whether every bit is set.
func (m Mask) All() bool { return m.Count() == m.n }

// Clone returns an independent copy.
func (m Mask) Clone() Mask {
	return Mask{words: append([]uint64(nil), m.words...), n: m.n}
}

// And returns m & o.
func (m Mask) And(o Mask) Mask {
	out := m.Clone()
	for i := range out.words {
		out.words[i] &= o.words[i]
	}
	return out
}

// AndNot returns m &^ o.
func (m Mask) AndNot(o Mask) Mask {
	out := m.Clone()
	for i := range out.words {
		out.words[i] &^= o.words[i]
	}
	return out
}

// Not returns the complement of m.
func (m Mask) Not() Mask {
	out := m.Clone()
	for i := range out.words {
		out.words[i] = ^out.words[i]
	}
	out.trim()
	return out
}

// Equal reports whether both masks have the same bits.
func (m Mask) Equal(o Mask) bool {
	if m.n != o.n {
		return false
	}
	for i := range m.words {
		if m.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// String renders the mask as 0/1 characters, point 0 first.
func (m Mask) String() string {
	var sb strings.Builder
	sb.Grow(m.n)
	for i := 0; i < m.n; i++ {
		if m.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
