package vm

import "math"

// Mul returns a*b.
func (a Matrix) Mul(b Matrix) Matrix {
	var c Matrix
	for r := 0; r < 4; r++ {
		for col := 0; col < 4; col++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += a[r*4+k] * b[k*4+col]
			}
			c[r*4+col] = s
		}
	}
	return c
}

// Transpose returns the transpose of m.
func (m Matrix) Transpose() Matrix {
	var t Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[c*4+r] = m[r*4+c]
		}
	}
	return t
}

// Inverse returns the inverse of m by Gauss-Jordan elimination with
// partial pivoting. ok is false for a singular matrix.
func (m Matrix) Inverse() (inv Matrix, ok bool) {
	a := m
	inv = Identity
	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math.Abs(a[r*4+col]) > math.Abs(a[pivot*4+col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot*4+col]) < 1e-12 {
			return Matrix{}, false
		}
		if pivot != col {
			for k := 0; k < 4; k++ {
				a[col*4+k], a[pivot*4+k] = a[pivot*4+k], a[col*4+k]
				inv[col*4+k], inv[pivot*4+k] = inv[pivot*4+k], inv[col*4+k]
			}
		}
		d := a[col*4+col]
		for k := 0; k < 4; k++ {
			a[col*4+k] /= d
			inv[col*4+k] /= d
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			f := a[r*4+col]
			if f == 0 {
				continue
			}
			for k := 0; k < 4; k++ {
				a[r*4+k] -= f * a[col*4+k]
				inv[r*4+k] -= f * inv[col*4+k]
			}
		}
	}
	return inv, true
}

// Determinant returns det(m).
func (m Matrix) Determinant() float64 {
	minor := func(r0, r1, r2, c0, c1, c2 int) float64 {
		return m[r0*4+c0]*(m[r1*4+c1]*m[r2*4+c2]-m[r1*4+c2]*m[r2*4+c1]) -
			m[r0*4+c1]*(m[r1*4+c0]*m[r2*4+c2]-m[r1*4+c2]*m[r2*4+c0]) +
			m[r0*4+c2]*(m[r1*4+c0]*m[r2*4+c1]-m[r1*4+c1]*m[r2*4+c0])
	}
	return m[0]*minor(1, 2, 3, 1, 2, 3) -
		m[1]*minor(1, 2, 3, 0, 2, 3) +
		m[2]*minor(1, 2, 3, 0, 1, 3) -
		m[3]*minor(1, 2, 3, 0, 1, 2)
}

// TransformPoint applies m to p as the row vector (p, 1).
func (m Matrix) TransformPoint(p Triple) Triple {
	var out Triple
	for c := 0; c < 3; c++ {
		out[c] = p[0]*m[c] + p[1]*m[4+c] + p[2]*m[8+c] + m[12+c]
	}
	w := p[0]*m[3] + p[1]*m[7] + p[2]*m[11] + m[15]
	if w != 0 && w != 1 {
		out = out.Scale(1 / w)
	}
	return out
}

// TransformVector applies the upper 3x3 of m to v.
func (m Matrix) TransformVector(v Triple) Triple {
	var out Triple
	for c := 0; c < 3; c++ {
		out[c] = v[0]*m[c] + v[1]*m[4+c] + v[2]*m[8+c]
	}
	return out
}

// TransformNormal applies the inverse transpose of m to n.
func (m Matrix) TransformNormal(n Triple) Triple {
	inv, ok := m.Inverse()
	if !ok {
		return n
	}
	return inv.Transpose().TransformVector(n)
}

// Translation returns the matrix translating by t.
func Translation(t Triple) Matrix {
	m := Identity
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// Scaling returns the matrix scaling by s.
func Scaling(s Triple) Matrix {
	m := Identity
	m[0], m[5], m[10] = s[0], s[1], s[2]
	return m
}

// Rotation returns the matrix rotating by angle radians about axis.
func Rotation(angle float64, axis Triple) Matrix {
	a := axis.Normalize()
	s, c := math.Sincos(angle)
	t := 1 - c
	x, y, z := a[0], a[1], a[2]
	return Matrix{
		t*x*x + c, t*x*y + s*z, t*x*z - s*y, 0,
		t*x*y - s*z, t*y*y + c, t*y*z + s*x, 0,
		t*x*z + s*y, t*y*z - s*x, t*z*z + c, 0,
		0, 0, 0, 1,
	}
}

func (a Triple) Add(b Triple) Triple { return Triple{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Triple) Sub(b Triple) Triple { return Triple{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Triple) Mul(b Triple) Triple { return Triple{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }
func (a Triple) Scale(s float64) Triple {
	return Triple{a[0] * s, a[1] * s, a[2] * s}
}

// Dot returns the scalar product.
func (a Triple) Dot(b Triple) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// Cross returns the vector product.
func (a Triple) Cross(b Triple) Triple {
	return Triple{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Length returns the Euclidean length.
func (a Triple) Length() float64 { return math.Sqrt(a.Dot(a)) }

// Normalize returns a unit-length copy; the zero vector stays zero.
func (a Triple) Normalize() Triple {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}
