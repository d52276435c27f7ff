package pipeline

import (
	"errors"

	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/symbols"
)

// Result is the outcome of compiling one unit.
type Result struct {
	*PipelineContext
}

// Err joins the errors of every stage.
func (r Result) Err() error { return errors.Join(r.Errors...) }

// Compile runs the standard pipeline over u.
func Compile(u *symbols.Unit) Result {
	return Result{Standard().Run(NewPipelineContext(u))}
}

// CompileAll compiles each unit independently. A unit that fails does
// not stop the others; its errors are collected in the returned list and
// its Result has no Program.
func CompileAll(units ...*symbols.Unit) ([]Result, *diagnostics.List) {
	var errs diagnostics.List
	out := make([]Result, 0, len(units))
	for _, u := range units {
		r := Compile(u)
		for _, err := range r.Errors {
			errs.Add(err)
		}
		if r.Failed() {
			logging.Logger().Warn("shader failed to compile",
				"shader", u.Shader.Name, "file", u.File(), "errors", len(r.Errors))
		}
		out = append(out, r)
	}
	return out, &errs
}
