package diagnostics

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New(ErrNoCast, "plastic.sl", 12, "cannot cast %s to %s", "string", "float"), "plastic.sl:12: E1001 cannot cast string to float"},
		{New(ErrUnknownOpcode, "", 3, "unknown opcode %q", "frob"), "3: E2001 unknown opcode \"frob\""},
		{New(ErrNoOverload, "", 0, "no overload"), "E1002 no overload"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("compiling matte: %w", New(ErrNotVariable, "matte.sl", 4, "x"))
	if !HasCode(err, ErrNotVariable) {
		t.Error("HasCode should see through wrapping")
	}
	if HasCode(err, ErrNoCast) {
		t.Error("HasCode matched the wrong code")
	}
	if HasCode(errors.New("plain"), ErrNoCast) {
		t.Error("HasCode matched a plain error")
	}
}

func TestList(t *testing.T) {
	var l List
	l.Add(nil)
	if l.Err() != nil || l.Len() != 0 {
		t.Fatal("empty list should have no error")
	}
	a := New(ErrNoCast, "a.sl", 1, "a")
	b := New(ErrNoOverload, "b.sl", 2, "b")
	l.Add(a)
	l.Add(b)
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	if !errors.Is(l.Err(), a) || !errors.Is(l.Err(), b) {
		t.Error("joined error should contain both diagnostics")
	}
}
