package vm

import (
	"math"

	"github.com/funvibe/shadevm/internal/config"
)

// colorToRGB returns the conversion from a named colour space into rgb.
func colorToRGB(space string) (func(Triple) Triple, bool) {
	switch space {
	case config.RGBSpace, "":
		return func(c Triple) Triple { return c }, true
	case config.HSVSpace:
		return hsvToRGB, true
	case config.HSLSpace:
		return hslToRGB, true
	}
	return nil, false
}

// colorFromRGB returns the conversion from rgb into a named colour space.
func colorFromRGB(space string) (func(Triple) Triple, bool) {
	switch space {
	case config.RGBSpace, "":
		return func(c Triple) Triple { return c }, true
	case config.HSVSpace:
		return rgbToHSV, true
	case config.HSLSpace:
		return rgbToHSL, true
	}
	return nil, false
}

func hsvToRGB(c Triple) Triple {
	h, s, v := c[0], c[1], c[2]
	if s <= 0 {
		return Triple{v, v, v}
	}
	h = (h - math.Floor(h)) * 6
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch int(i) {
	case 0:
		return Triple{v, t, p}
	case 1:
		return Triple{q, v, p}
	case 2:
		return Triple{p, v, t}
	case 3:
		return Triple{p, q, v}
	case 4:
		return Triple{t, p, v}
	}
	return Triple{v, p, q}
}

func rgbToHSV(c Triple) Triple {
	mx := math.Max(c[0], math.Max(c[1], c[2]))
	mn := math.Min(c[0], math.Min(c[1], c[2]))
	d := mx - mn
	if mx <= 0 || d == 0 {
		return Triple{0, 0, mx}
	}
	return Triple{hue(c, mx, d), d / mx, mx}
}

func hue(c Triple, mx, d float64) float64 {
	var h float64
	switch mx {
	case c[0]:
		h = (c[1] - c[2]) / d
	case c[1]:
		h = 2 + (c[2]-c[0])/d
	default:
		h = 4 + (c[0]-c[1])/d
	}
	h /= 6
	if h < 0 {
		h++
	}
	return h
}

func hslToRGB(c Triple) Triple {
	h, s, l := c[0], c[1], c[2]
	if s <= 0 {
		return Triple{l, l, l}
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	channel := func(t float64) float64 {
		t -= math.Floor(t)
		switch {
		case t < 1.0/6:
			return p + (q-p)*6*t
		case t < 0.5:
			return q
		case t < 2.0/3:
			return p + (q-p)*(2.0/3-t)*6
		}
		return p
	}
	return Triple{channel(h + 1.0/3), channel(h), channel(h - 1.0/3)}
}

func rgbToHSL(c Triple) Triple {
	mx := math.Max(c[0], math.Max(c[1], c[2]))
	mn := math.Min(c[0], math.Min(c[1], c[2]))
	l := (mx + mn) / 2
	d := mx - mn
	if d == 0 {
		return Triple{0, 0, l}
	}
	var s float64
	if l < 0.5 {
		s = d / (mx + mn)
	} else {
		s = d / (2 - mx - mn)
	}
	return Triple{hue(c, mx, d), s, l}
}
