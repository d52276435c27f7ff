// Package codegen turns a checked compilation unit into bytecode text.
// Local functions are expanded inline; varying control flow is lowered to
// the running-state opcodes of the VM.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/symbols"
	"github.com/funvibe/shadevm/internal/vm"
)

// Compiler emits one unit. It is not reusable.
type Compiler struct {
	unit *symbols.Unit
	tree *ast.Tree

	// seg is the segment being written.
	seg *strings.Builder

	labelCount int

	// trans maps the formals of the functions being expanded to the
	// variables they alias.
	trans symbols.Translations
	// expanding lists the local functions currently being inlined.
	expanding []ast.FuncID

	names map[ast.VarID]string
	uses  uint64

	// slotCount is the number of values the emitted code leaves on the
	// VM stack at the current point.
	slotCount int
}

// NewCompiler creates a compiler for a unit that has been type-checked.
func NewCompiler(u *symbols.Unit) *Compiler {
	c := &Compiler{
		unit:  u,
		tree:  u.Tree,
		names: make(map[ast.VarID]string),
	}
	c.assignNames()
	return c
}

// Generate compiles u to bytecode text.
func Generate(u *symbols.Unit) (string, error) {
	return NewCompiler(u).Compile()
}

func (c *Compiler) errorf(id ast.NodeID, format string, args ...any) error {
	line := 0
	if id != ast.NoNode {
		line = c.tree.Node(id).Line
	}
	return diagnostics.New(diagnostics.ErrCodegen, c.tree.File, line, format, args...)
}

// Compile emits the Init and Code segments first, so that use counts are
// known, then the Data segment for every variable they reference.
func (c *Compiler) Compile() (string, error) {
	for id := ast.VarID(1); int(id) < c.unit.NumVars(); id++ {
		c.unit.Var(id).UseCount = 0
	}

	var initSeg, codeSeg strings.Builder
	c.seg = &initSeg
	for _, p := range c.unit.Params() {
		if err := c.compileDefault(p); err != nil {
			return "", err
		}
	}
	c.seg = &codeSeg
	body := c.unit.Shader.Body
	if body == ast.NoNode {
		return "", c.errorf(ast.NoNode, "shader %q has no body", c.unit.Shader.Name)
	}
	if err := c.compileStatement(body); err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%s %s\n", c.unit.Shader.Kind, c.unit.Shader.Name)
	fmt.Fprintf(&out, "%s %d\n", config.UsesKeyword, c.uses)
	fmt.Fprintf(&out, "%s %s\n", config.SegmentKeyword, config.SegmentData)
	for _, d := range c.declarations() {
		out.WriteString(vm.FormatDecl(d))
		out.WriteByte('\n')
	}
	fmt.Fprintf(&out, "%s %s\n", config.SegmentKeyword, config.SegmentInit)
	out.WriteString(initSeg.String())
	fmt.Fprintf(&out, "%s %s\n", config.SegmentKeyword, config.SegmentCode)
	out.WriteString(codeSeg.String())

	logging.Logger().Debug("code generated",
		"shader", c.unit.Shader.Name, "labels", c.labelCount, "uses", c.uses)
	return out.String(), nil
}

// Uses returns the USES mask of the last compilation.
func (c *Compiler) Uses() uint64 { return c.uses }

// compileDefault emits the Init code assigning a parameter's default.
func (c *Compiler) compileDefault(p ast.VarID) error {
	def := c.unit.Var(p)
	if def.Default == ast.NoNode {
		return nil
	}
	name := c.target(p)
	if !def.Type.Array {
		if err := c.compileExpression(def.Default); err != nil {
			return err
		}
		c.emit(-1, "pop", name)
		return nil
	}
	if c.tree.Kind(def.Default) != ast.KindTuple {
		return c.errorf(def.Default, "array %s needs an element list", def.Name)
	}
	for i, e := range c.tree.Children(def.Default) {
		if err := c.compileExpression(e); err != nil {
			return err
		}
		c.emit(+1, "pushif", strconv.Itoa(i))
		c.emit(-2, "ipop", name)
	}
	return nil
}

// emit writes one instruction line. delta is its effect on the number of
// values on the VM stack.
func (c *Compiler) emit(delta int, op string, operands ...string) {
	c.seg.WriteString(op)
	for _, o := range operands {
		c.seg.WriteByte(' ')
		c.seg.WriteString(o)
	}
	c.seg.WriteByte('\n')
	c.slotCount += delta
}

func (c *Compiler) newLabel() int {
	c.labelCount++
	return c.labelCount
}

func (c *Compiler) placeLabel(l int) {
	fmt.Fprintf(c.seg, "%s%d\n", config.LabelPrefix, l)
}

func (c *Compiler) emitJump(delta int, op string, l int) {
	c.emit(delta, op, strconv.Itoa(l))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
