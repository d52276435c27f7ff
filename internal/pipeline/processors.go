package pipeline

import (
	"github.com/funvibe/shadevm/internal/analyzer"
	"github.com/funvibe/shadevm/internal/codegen"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/vm"
)

// CheckProcessor type-checks the unit.
type CheckProcessor struct{}

func (cp *CheckProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Unit == nil || ctx.Failed() {
		return ctx
	}
	ctx.Checker = analyzer.New(ctx.Unit)
	if err := ctx.Checker.Check(); err != nil {
		ctx.Errors = append(ctx.Errors, err)
	}
	return ctx
}

// OptimiseProcessor folds constants and removes dead branches. Disabled
// leaves the checked tree as it is.
type OptimiseProcessor struct {
	Disabled bool
}

func (op *OptimiseProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if op.Disabled || ctx.Checker == nil || ctx.Failed() {
		return ctx
	}
	ctx.Rewrites = ctx.Checker.Optimise()
	if ctx.Rewrites > 0 {
		logging.Logger().Debug("optimised", "shader", ctx.Unit.Shader.Name, "rewrites", ctx.Rewrites)
	}
	return ctx
}

// CodegenProcessor emits the bytecode text.
type CodegenProcessor struct{}

func (cg *CodegenProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Checker == nil || ctx.Failed() {
		return ctx
	}
	text, err := codegen.Generate(ctx.Unit)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Text = text
	return ctx
}

// AssembleProcessor loads the generated text, which also validates every
// opcode and operand the generator wrote.
type AssembleProcessor struct{}

func (ap *AssembleProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Text == "" || ctx.Failed() {
		return ctx
	}
	prog, err := vm.Assemble(ctx.FilePath, ctx.Text)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Program = prog
	return ctx
}
