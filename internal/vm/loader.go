package vm

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/diagnostics"
	"github.com/funvibe/shadevm/internal/logging"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// Assemble loads a program from bytecode text.
func Assemble(file, text string) (*Program, error) {
	return Load(file, strings.NewReader(text))
}

// pendingLabel is a label operand awaiting its offset.
type pendingLabel struct {
	cell int
	line int
}

type loader struct {
	file    string
	prog    *Program
	seg     *Segment
	segName string
	line    int
	defined map[int]int
	pending []pendingLabel
}

// Load reads bytecode text: a header line "<kind> <name>", an optional
// USES line and the Data, Init and Code segments. Labels are resolved
// once each segment is complete, so forward and backward jumps both work.
func Load(file string, r io.Reader) (*Program, error) {
	l := &loader{file: file, prog: &Program{File: file}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := false
	for sc.Scan() {
		l.line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !header {
			if err := l.header(text); err != nil {
				return nil, err
			}
			header = true
			continue
		}
		if err := l.statement(text); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, l.errorf(diagnostics.ErrBadDeclaration, "missing program header")
	}
	if err := l.closeSegment(); err != nil {
		return nil, err
	}
	logging.Logger().Debug("program loaded",
		"file", file, "shader", l.prog.Name, "vars", len(l.prog.Vars),
		"init", len(l.prog.Init.Code), "code", len(l.prog.Code.Code))
	return l.prog, nil
}

func (l *loader) errorf(code diagnostics.ErrorCode, format string, args ...any) error {
	return diagnostics.New(code, l.file, l.line, format, args...)
}

func (l *loader) header(text string) error {
	f := strings.Fields(text)
	if len(f) != 2 || !config.IsShaderKind(f[0]) {
		return l.errorf(diagnostics.ErrBadDeclaration, "bad program header %q", text)
	}
	l.prog.Kind, l.prog.Name = f[0], f[1]
	return nil
}

func (l *loader) statement(text string) error {
	f := strings.Fields(text)
	switch {
	case f[0] == config.UsesKeyword:
		if len(f) != 2 || l.segName != "" {
			return l.errorf(diagnostics.ErrBadDeclaration, "bad USES line %q", text)
		}
		uses, err := strconv.ParseUint(f[1], 10, 64)
		if err != nil {
			return l.errorf(diagnostics.ErrBadOperandText, "bad USES mask %q", f[1])
		}
		l.prog.Uses = uses
		return nil
	case f[0] == config.SegmentKeyword:
		if len(f) != 2 {
			return l.errorf(diagnostics.ErrBadSegment, "bad segment line %q", text)
		}
		return l.openSegment(f[1])
	}
	switch l.segName {
	case config.SegmentData:
		return l.declaration(f)
	case config.SegmentInit, config.SegmentCode:
		if strings.HasPrefix(text, config.LabelPrefix) {
			return l.label(text)
		}
		return l.instruction(text)
	}
	return l.errorf(diagnostics.ErrBadSegment, "statement outside a segment: %q", text)
}

func (l *loader) openSegment(name string) error {
	if err := l.closeSegment(); err != nil {
		return err
	}
	order := map[string]int{"": 0, config.SegmentData: 1, config.SegmentInit: 2, config.SegmentCode: 3}
	next, ok := order[name]
	if !ok || next <= order[l.segName] {
		return l.errorf(diagnostics.ErrBadSegment, "unexpected segment %q", name)
	}
	l.segName = name
	switch name {
	case config.SegmentInit:
		l.seg = &l.prog.Init
	case config.SegmentCode:
		l.seg = &l.prog.Code
	default:
		l.seg = nil
	}
	l.defined = make(map[int]int)
	l.pending = l.pending[:0]
	return nil
}

// closeSegment patches the label operands of the current segment.
func (l *loader) closeSegment() error {
	if l.seg == nil {
		return nil
	}
	for _, p := range l.pending {
		in := &l.seg.Code[p.cell]
		off, ok := l.defined[in.Label]
		if !ok {
			return diagnostics.New(diagnostics.ErrUnknownLabel, l.file, p.line,
				"jump to undefined label %d", in.Label)
		}
		in.Target = off
	}
	l.seg = nil
	return nil
}

// declaration parses "[param] <class> <type> <name>[[n]]".
func (l *loader) declaration(f []string) error {
	var t ts.Type
	if f[0] == config.ParamKeyword {
		t.Param = true
		f = f[1:]
	}
	if len(f) != 3 {
		return l.errorf(diagnostics.ErrBadDeclaration, "bad declaration %q", strings.Join(f, " "))
	}
	switch f[0] {
	case "uniform":
		t.Class = ts.Uniform
	case "varying":
		t.Class = ts.Varying
	case "vertex":
		t.Class = ts.Vertex
	default:
		return l.errorf(diagnostics.ErrBadDeclaration, "unknown storage class %q", f[0])
	}
	base, ok := ts.ParseBaseName(f[1])
	if !ok || !base.IsConcrete() || base == ts.Void {
		return l.errorf(diagnostics.ErrBadDeclaration, "unknown type %q", f[1])
	}
	t.Base = base
	name, n := f[2], 0
	if i := strings.IndexByte(name, '['); i >= 0 {
		if !strings.HasSuffix(name, "]") {
			return l.errorf(diagnostics.ErrBadDeclaration, "bad array declaration %q", name)
		}
		v, err := strconv.Atoi(name[i+1 : len(name)-1])
		if err != nil || v <= 0 {
			return l.errorf(diagnostics.ErrBadDeclaration, "bad array length in %q", name)
		}
		name, n = name[:i], v
		t.Array = true
	}
	if _, dup := l.prog.index[name]; dup {
		return l.errorf(diagnostics.ErrBadDeclaration, "%s declared twice", name)
	}
	l.prog.addVar(VarDecl{Name: name, Type: t, ArrayLen: n})
	return nil
}

func (l *loader) label(text string) error {
	id, err := strconv.Atoi(strings.TrimPrefix(text, config.LabelPrefix))
	if err != nil {
		return l.errorf(diagnostics.ErrBadOperandText, "bad label %q", text)
	}
	if _, dup := l.defined[id]; dup {
		return l.errorf(diagnostics.ErrBadOperandText, "label %d defined twice", id)
	}
	off := len(l.seg.Code)
	l.defined[id] = off
	l.seg.Labels = append(l.seg.Labels, Label{ID: id, Offset: off})
	return nil
}

func (l *loader) instruction(text string) error {
	fields, err := tokenize(text)
	if err != nil {
		return l.errorf(diagnostics.ErrBadOperandText, "%v", err)
	}
	op, ok := LookupOpcode(fields[0])
	if !ok {
		return l.errorf(diagnostics.ErrUnknownOpcode, "unknown opcode %q", fields[0])
	}
	args := fields[1:]
	if len(args) != op.Arity() {
		return l.errorf(diagnostics.ErrBadOperandText,
			"%s takes %d operands, got %d", op.Name, op.Arity(), len(args))
	}
	l.seg.Code = append(l.seg.Code, Instruction{Tag: TagOpcode, Op: op})
	for i, kind := range op.Operands {
		in, err := l.operand(kind, args[i])
		if err != nil {
			return err
		}
		if kind == OperandLabel {
			l.pending = append(l.pending, pendingLabel{cell: len(l.seg.Code), line: l.line})
		}
		l.seg.Code = append(l.seg.Code, in)
	}
	return nil
}

func (l *loader) operand(kind OperandKind, text string) (Instruction, error) {
	in := Instruction{Tag: operandTag(kind)}
	switch kind {
	case OperandFloat:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return in, l.errorf(diagnostics.ErrBadOperandText, "bad float operand %q", text)
		}
		in.Num = v
	case OperandString:
		s, err := strconv.Unquote(text)
		if err != nil {
			return in, l.errorf(diagnostics.ErrBadOperandText, "bad string operand %s", text)
		}
		in.Str = s
	case OperandVar:
		ref, ok := l.prog.Lookup(text)
		if !ok {
			return in, l.errorf(diagnostics.ErrUnknownSymbol, "unknown variable %q", text)
		}
		in.Var, in.Str = ref, text
	case OperandLabel:
		id, err := strconv.Atoi(text)
		if err != nil {
			return in, l.errorf(diagnostics.ErrBadOperandText, "bad label operand %q", text)
		}
		in.Label = id
	case OperandCount:
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			return in, l.errorf(diagnostics.ErrBadOperandText, "bad count operand %q", text)
		}
		in.Count = n
	}
	return in, nil
}

// tokenize splits an instruction line on white space, keeping Go-quoted
// strings whole.
func tokenize(text string) ([]string, error) {
	var out []string
	for {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
		if text == "" {
			return out, nil
		}
		if text[0] == '"' || text[0] == '`' {
			q, err := strconv.QuotedPrefix(text)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
			text = text[len(q):]
			continue
		}
		end := strings.IndexFunc(text, unicode.IsSpace)
		if end < 0 {
			end = len(text)
		}
		out = append(out, text[:end])
		text = text[end:]
	}
}
