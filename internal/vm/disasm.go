package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/shadevm/internal/config"
)

// Text re-emits the program as bytecode text. Loading the result yields
// the same instruction stream and label offsets.
func (p *Program) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", p.Kind, p.Name)
	fmt.Fprintf(&sb, "%s %d\n", config.UsesKeyword, p.Uses)
	fmt.Fprintf(&sb, "%s %s\n", config.SegmentKeyword, config.SegmentData)
	for _, d := range p.Vars {
		sb.WriteString(FormatDecl(d))
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%s %s\n", config.SegmentKeyword, config.SegmentInit)
	writeSegment(&sb, &p.Init)
	fmt.Fprintf(&sb, "%s %s\n", config.SegmentKeyword, config.SegmentCode)
	writeSegment(&sb, &p.Code)
	return sb.String()
}

// FormatDecl renders a Data-segment declaration.
func FormatDecl(d VarDecl) string {
	var sb strings.Builder
	if d.Type.Param {
		sb.WriteString(config.ParamKeyword)
		sb.WriteByte(' ')
	}
	class := d.Type.Class.String()
	if class == "" {
		class = "uniform"
	}
	fmt.Fprintf(&sb, "%s %s %s", class, d.Type.Base, d.Name)
	if d.Type.Array {
		fmt.Fprintf(&sb, "[%d]", d.ArrayLen)
	}
	return sb.String()
}

func writeSegment(sb *strings.Builder, seg *Segment) {
	li := 0
	for pc := 0; pc <= len(seg.Code); {
		for li < len(seg.Labels) && seg.Labels[li].Offset == pc {
			fmt.Fprintf(sb, "%s%d\n", config.LabelPrefix, seg.Labels[li].ID)
			li++
		}
		if pc == len(seg.Code) {
			break
		}
		in := seg.Code[pc]
		sb.WriteString(FormatInstruction(seg.Code[pc : pc+1+in.Op.Arity()]))
		sb.WriteByte('\n')
		pc += 1 + in.Op.Arity()
	}
}

// FormatInstruction renders an opcode cell and its operand cells.
func FormatInstruction(cells []Instruction) string {
	var sb strings.Builder
	sb.WriteString(cells[0].Op.Name)
	for _, c := range cells[1:] {
		sb.WriteByte(' ')
		sb.WriteString(FormatOperand(c))
	}
	return sb.String()
}

// FormatOperand renders one operand cell.
func FormatOperand(c Instruction) string {
	switch c.Tag {
	case TagFloat:
		return formatFloat(c.Num)
	case TagString:
		return strconv.Quote(c.Str)
	case TagVar:
		return c.Str
	case TagLabel:
		return strconv.Itoa(c.Label)
	case TagCount:
		return strconv.Itoa(c.Count)
	}
	return "?"
}

// Listing renders a segment with offsets, one instruction per line, for
// the debugger and the disasm command.
func Listing(seg *Segment) string {
	var sb strings.Builder
	li := 0
	for pc := 0; pc < len(seg.Code); {
		for li < len(seg.Labels) && seg.Labels[li].Offset == pc {
			fmt.Fprintf(&sb, "      %s%d\n", config.LabelPrefix, seg.Labels[li].ID)
			li++
		}
		in := seg.Code[pc]
		fmt.Fprintf(&sb, "%04d  %s", pc, FormatInstruction(seg.Code[pc:pc+1+in.Op.Arity()]))
		if in.Op.IsJump() {
			for _, c := range seg.Code[pc+1 : pc+1+in.Op.Arity()] {
				if c.Tag == TagLabel {
					fmt.Fprintf(&sb, "  -> %04d", c.Target)
				}
			}
		}
		sb.WriteByte('\n')
		pc += 1 + in.Op.Arity()
	}
	return sb.String()
}
