package vm

import (
	"math"
	"testing"
)

func TestMask(t *testing.T) {
	for _, n := range []int{1, 63, 64, 65, 130} {
		all := NewMask(n, true)
		none := NewMask(n, false)
		if all.Count() != n || !all.All() || none.Any() {
			t.Fatalf("n=%d: count=%d any=%v", n, all.Count(), none.Any())
		}
		odd := NewMask(n, false)
		for i := 1; i < n; i += 2 {
			odd.Set(i, true)
		}
		if got := odd.Not().And(odd); got.Any() {
			t.Errorf("n=%d: x & !x = %s", n, got)
		}
		if got := all.AndNot(odd); !got.Equal(odd.Not()) {
			t.Errorf("n=%d: all &^ odd = %s", n, got)
		}
		c := odd.Clone()
		c.Set(0, true)
		if odd.Get(0) {
			t.Errorf("n=%d: clone shares storage", n)
		}
		if got := odd.Not().Count(); got != n-n/2 {
			t.Errorf("n=%d: !odd count = %d", n, got)
		}
	}
	m := NewMask(4, false)
	m.Set(2, true)
	if m.String() != "0010" {
		t.Errorf("String() = %q", m.String())
	}
}

func TestMatrix(t *testing.T) {
	m := Translation(Triple{1, 2, 3}).Mul(Rotation(math.Pi/3, Triple{0, 1, 1})).Mul(Scaling(Triple{2, 2, 4}))
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("matrix should be invertible")
	}
	id := m.Mul(inv)
	for i, v := range id {
		want := 0.0
		if i%5 == 0 {
			want = 1
		}
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("m * inverse(m) = %v", id)
		}
	}
	if p := Translation(Triple{1, 2, 3}).TransformPoint(Triple{1, 1, 1}); p != (Triple{2, 3, 4}) {
		t.Errorf("translated point = %v", p)
	}
	if v := Translation(Triple{1, 2, 3}).TransformVector(Triple{1, 1, 1}); v != (Triple{1, 1, 1}) {
		t.Errorf("translated vector = %v", v)
	}
	r := Rotation(1.2, Triple{1, 0, 0}).TransformVector(Triple{0, 3, 4})
	if math.Abs(r.Length()-5) > 1e-12 || math.Abs(r[0]) > 1e-12 {
		t.Errorf("rotated vector = %v", r)
	}
	if d := Scaling(Triple{2, 3, 4}).Determinant(); math.Abs(d-24) > 1e-12 {
		t.Errorf("determinant = %v", d)
	}
	if _, ok := Scaling(Triple{1, 0, 1}).Inverse(); ok {
		t.Error("singular matrix inverted")
	}
}

func TestColorSpaces(t *testing.T) {
	colors := []Triple{{0, 0, 0}, {1, 1, 1}, {1, 0, 0}, {0.2, 0.6, 0.4}, {0.9, 0.1, 0.7}}
	for _, space := range []string{"rgb", "hsv", "hsl"} {
		to, ok1 := colorToRGB(space)
		from, ok2 := colorFromRGB(space)
		if !ok1 || !ok2 {
			t.Fatalf("%s not supported", space)
		}
		for _, c := range colors {
			got := to(from(c))
			if got.Sub(c).Length() > 1e-9 {
				t.Errorf("%s round trip of %v = %v", space, c, got)
			}
		}
	}
	if _, ok := colorToRGB("xyz"); ok {
		t.Error("xyz should not be supported")
	}
	to, _ := colorToRGB("hsv")
	if got := to(Triple{0, 1, 1}); got.Sub(Triple{1, 0, 0}).Length() > 1e-12 {
		t.Errorf("hsv red = %v", got)
	}
}
