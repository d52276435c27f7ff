// Package diagnostics defines the error values reported by the compiler
// and the bytecode loader.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a diagnostic.
type ErrorCode string

const (
	// Type checking
	ErrNoCast         ErrorCode = "E1001" // no implicit cast to any type the context accepts
	ErrNoOverload     ErrorCode = "E1002" // no function overload survives resolution
	ErrNotVariable    ErrorCode = "E1003" // output parameter given a computed expression
	ErrBadInitializer ErrorCode = "E1004" // matrix/array initializer with the wrong element count
	ErrVaryingUniform ErrorCode = "E1005" // varying value assigned to a uniform variable
	ErrUndefined      ErrorCode = "E1006" // unknown function or variable
	ErrBadOperand     ErrorCode = "E1007" // operator applied to unsupported operand types
	ErrNotArray       ErrorCode = "E1008" // index applied to a non-array variable
	ErrReturn         ErrorCode = "E1009" // misplaced return
	ErrRecursion      ErrorCode = "E1010" // local function expands into itself
	ErrUnresolvedType ErrorCode = "E1011" // transient type left after checking
	ErrBadConstruct   ErrorCode = "E1012" // wrong argument count for a control construct

	// Loading
	ErrUnknownOpcode  ErrorCode = "E2001"
	ErrBadOperandText ErrorCode = "E2002"
	ErrUnknownSymbol  ErrorCode = "E2003"
	ErrUnknownLabel   ErrorCode = "E2004"
	ErrBadSegment     ErrorCode = "E2005"
	ErrBadDeclaration ErrorCode = "E2006"

	// Code generation
	ErrCodegen ErrorCode = "E3001" // tree shape the generator cannot emit
)

// Error is a compile-time or load-time diagnostic with a source location.
type Error struct {
	Code    ErrorCode
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteByte(':')
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "%d:", e.Line)
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	fmt.Fprintf(&sb, "%s %s", e.Code, e.Message)
	return sb.String()
}

// New creates a diagnostic.
func New(code ErrorCode, file string, line int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}

// HasCode reports whether err wraps a diagnostic with the given code.
func HasCode(err error, code ErrorCode) bool {
	var d *Error
	if errors.As(err, &d) {
		return d.Code == code
	}
	return false
}

// List collects diagnostics from several independent compilations.
type List struct {
	errs []error
}

// Add appends err when it is non-nil.
func (l *List) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// Len returns the number of collected errors.
func (l *List) Len() int { return len(l.errs) }

// Errors returns the collected errors in insertion order.
func (l *List) Errors() []error { return l.errs }

// Err joins the collected errors, or returns nil when there are none.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return errors.Join(l.errs...)
}
