// Package pipeline chains the compilation stages of one shader: type
// checking, optimisation, code generation and assembly.
package pipeline

import (
	"github.com/funvibe/shadevm/internal/analyzer"
	"github.com/funvibe/shadevm/internal/symbols"
	"github.com/funvibe/shadevm/internal/vm"
)

// PipelineContext carries one shader through the stages.
type PipelineContext struct {
	Unit     *symbols.Unit
	FilePath string

	// Checker is set by the check stage and reused by the optimiser.
	Checker *analyzer.Checker
	// Rewrites counts the optimiser's simplifications.
	Rewrites int
	// Text is the generated bytecode.
	Text    string
	Program *vm.Program

	Errors []error
}

// NewPipelineContext starts a context for u.
func NewPipelineContext(u *symbols.Unit) *PipelineContext {
	return &PipelineContext{Unit: u, FilePath: u.File()}
}

// Failed reports whether any stage recorded an error.
func (ctx *PipelineContext) Failed() bool { return len(ctx.Errors) > 0 }

// Processor is one stage. A stage skips its work once an earlier stage
// has failed.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Standard is the full chain from a built unit to a loaded program.
func Standard() *Pipeline {
	return New(&CheckProcessor{}, &OptimiseProcessor{}, &CodegenProcessor{}, &AssembleProcessor{})
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}
