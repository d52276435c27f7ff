package typesystem

import (
	"fmt"
	"strings"
)

// sigCodes maps signature characters to base types.
var sigCodes = map[byte]BaseType{
	'f': Float,
	'i': Integer,
	'p': Point,
	's': String,
	'c': Color,
	'n': Normal,
	'v': Vector,
	'm': Matrix,
	'h': HPoint,
	'x': Void,
	'w': HexTuple,
	't': Triple,
}

// SigChar returns the signature character for b.
func SigChar(b BaseType) byte {
	for c, t := range sigCodes {
		if t == b {
			return c
		}
	}
	return '?'
}

// Param is one parsed signature slot.
type Param struct {
	Type Type
	// MustBeVariable is set by an uppercase character: the argument must
	// be a bare variable reference (output parameters).
	MustBeVariable bool
}

// Any reports whether the slot accepts any argument type (void slot).
func (p Param) Any() bool { return p.Type.Base == Void }

// Signature is a parsed parameter-type signature.
type Signature struct {
	Params []Param
	// Variadic marks that the last Param repeats for all remaining arguments.
	Variadic bool
}

// ParseSignature parses the compact signature grammar:
// one character per parameter, uppercase for must-be-variable slots,
// [c] for array slots and a trailing * for variable arity.
func ParseSignature(sig string) (Signature, error) {
	var s Signature
	for i := 0; i < len(sig); i++ {
		ch := sig[i]
		switch {
		case ch == '*':
			if len(s.Params) == 0 {
				return Signature{}, fmt.Errorf("signature %q: '*' without a preceding type", sig)
			}
			if i != len(sig)-1 {
				return Signature{}, fmt.Errorf("signature %q: '*' must be last", sig)
			}
			s.Variadic = true
		case ch == '[':
			if i+2 >= len(sig) || sig[i+2] != ']' {
				return Signature{}, fmt.Errorf("signature %q: unterminated array slot at %d", sig, i)
			}
			p, err := parseSlot(sig, sig[i+1])
			if err != nil {
				return Signature{}, err
			}
			p.Type.Array = true
			s.Params = append(s.Params, p)
			i += 2
		default:
			p, err := parseSlot(sig, ch)
			if err != nil {
				return Signature{}, err
			}
			s.Params = append(s.Params, p)
		}
	}
	return s, nil
}

// MustParseSignature is ParseSignature for static tables.
func MustParseSignature(sig string) Signature {
	s, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return s
}

func parseSlot(sig string, ch byte) (Param, error) {
	lower := ch
	upper := false
	if ch >= 'A' && ch <= 'Z' {
		lower = ch + ('a' - 'A')
		upper = true
	}
	b, ok := sigCodes[lower]
	if !ok {
		return Param{}, fmt.Errorf("signature %q: unknown type code %q", sig, ch)
	}
	return Param{Type: T(b), MustBeVariable: upper}, nil
}

// Accepts reports whether n arguments satisfy the signature's arity.
func (s Signature) Accepts(n int) bool {
	if s.Variadic {
		return n >= len(s.Params)-1
	}
	return n == len(s.Params)
}

// At returns the slot for argument i, following variable-arity repetition.
func (s Signature) At(i int) (Param, bool) {
	if i < 0 {
		return Param{}, false
	}
	if i < len(s.Params) {
		return s.Params[i], true
	}
	if s.Variadic && len(s.Params) > 0 {
		return s.Params[len(s.Params)-1], true
	}
	return Param{}, false
}

// String renders the signature back into the compact grammar.
func (s Signature) String() string {
	var sb strings.Builder
	for _, p := range s.Params {
		ch := SigChar(p.Type.Base)
		if p.MustBeVariable {
			ch -= 'a' - 'A'
		}
		if p.Type.Array {
			sb.WriteByte('[')
			sb.WriteByte(ch)
			sb.WriteByte(']')
		} else {
			sb.WriteByte(ch)
		}
	}
	if s.Variadic {
		sb.WriteByte('*')
	}
	return sb.String()
}
