package vm

import (
	"fmt"
	"regexp"
	"strings"
)

func init() {
	register("concat", func(vm *VM, ops []Instruction) error {
		v, err := vm.args(repeat(KindString, ops[0].Count)...)
		if err != nil {
			return err
		}
		vm.push(vm.mapString(v, func(i int) string {
			var sb strings.Builder
			for _, s := range v {
				sb.WriteString(s.StringAt(i))
			}
			return sb.String()
		}))
		return nil
	}, OperandCount)
	register("format", func(vm *VM, ops []Instruction) error {
		v, err := vm.formatArgs(ops[0].Count)
		if err != nil {
			return err
		}
		vm.push(vm.mapString(v, func(i int) string { return formatAt(v[0].StringAt(i), v[1:], i) }))
		return nil
	}, OperandCount)
	register("printf", func(vm *VM, ops []Instruction) error {
		v, err := vm.formatArgs(ops[0].Count)
		if err != nil {
			return err
		}
		varying, n := vm.shape(v)
		for i := 0; i < n; i++ {
			if varying && !vm.running.Get(i) {
				continue
			}
			if !varying && !vm.running.Any() {
				break
			}
			fmt.Fprint(vm.out, formatAt(v[0].StringAt(i), v[1:], i))
		}
		return nil
	}, OperandCount)
	register("match", func(vm *VM, _ []Instruction) error {
		v, err := vm.args(KindString, KindString)
		if err != nil {
			return err
		}
		cache := map[string]*regexp.Regexp{}
		var bad error
		out := vm.mapFloat(v, func(i int) float64 {
			pat := v[0].StringAt(i)
			re, ok := cache[pat]
			if !ok {
				var err error
				if re, err = regexp.Compile(pat); err != nil {
					bad = err
				}
				cache[pat] = re
			}
			return boolFloat(re != nil && re.MatchString(v[1].StringAt(i)))
		})
		if bad != nil {
			vm.report(fmt.Errorf("match: %w", bad))
		}
		vm.push(out)
		return nil
	})
}

// formatArgs pops a format string followed by count-1 values of any type.
func (vm *VM) formatArgs(count int) ([]Data, error) {
	v, err := vm.popN(count)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 || v[0].Kind != KindString {
		return nil, fmt.Errorf("%w: format must be a string", ErrTypeMismatch)
	}
	return v, nil
}

// formatAt expands a shading-language format at point i. %f, %d and %g
// print floats, %c, %p, %n and %v triples, %m matrices and %s anything.
func formatAt(format string, args []Data, i int) string {
	var sb strings.Builder
	next := 0
	for k := 0; k < len(format); k++ {
		ch := format[k]
		if ch == '\\' && k+1 < len(format) {
			switch format[k+1] {
			case 'n':
				sb.WriteByte('\n')
				k++
				continue
			case 't':
				sb.WriteByte('\t')
				k++
				continue
			}
		}
		if ch != '%' || k+1 == len(format) {
			sb.WriteByte(ch)
			continue
		}
		k++
		verb := format[k]
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		if next >= len(args) {
			sb.WriteString("%!" + string(verb) + "(missing)")
			continue
		}
		a := args[next]
		next++
		switch {
		case a.Kind == KindTriple:
			t := a.TripleAt(i)
			fmt.Fprintf(&sb, "%s %s %s", formatFloat(t[0]), formatFloat(t[1]), formatFloat(t[2]))
		case verb == 'd' && a.Kind == KindFloat:
			fmt.Fprintf(&sb, "%d", int64(a.FloatAt(i)))
		default:
			sb.WriteString(a.Element(i))
		}
	}
	return sb.String()
}
