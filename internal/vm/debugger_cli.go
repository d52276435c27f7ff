package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/funvibe/shadevm/internal/config"
)

// Prompter reads one command line. An interactive console (with history
// and line editing) and a plain reader both satisfy it.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// ReaderPrompter prompts on w and reads lines from r.
type ReaderPrompter struct {
	sc *bufio.Scanner
	w  io.Writer
}

// NewReaderPrompter wraps r and w.
func NewReaderPrompter(r io.Reader, w io.Writer) *ReaderPrompter {
	return &ReaderPrompter{sc: bufio.NewScanner(r), w: w}
}

func (p *ReaderPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.w, prompt)
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.sc.Text(), nil
}

// DebuggerCLI drives a Debugger from text commands.
type DebuggerCLI struct {
	debugger *Debugger
	in       Prompter
	output   io.Writer
	// History receives every non-empty command when set.
	History func(string)
}

// NewDebuggerCLI attaches a command loop to d. Commands are read from in
// and answers written to d.Output.
func NewDebuggerCLI(d *Debugger, in Prompter) *DebuggerCLI {
	cli := &DebuggerCLI{debugger: d, in: in, output: d.Output}
	d.OnStop = cli.onStop
	return cli
}

const debuggerHelp = `Commands:
  step, s               execute one instruction
  continue, c           run to the next breakpoint
  break, b <seg>:<off>  set a breakpoint (seg is Init or Code)
  delete, d <seg>:<off> remove a breakpoint
  list, l               list breakpoints
  stack                 show the value stack
  masks                 show running and current state
  vars                  show declared variables
  print, p <name>       show one variable
  code                  list the current segment
  quit, q               abort execution
`

func (cli *DebuggerCLI) onStop(dbg *Debugger, vm *VM, at Breakpoint) error {
	dbg.PrintLocation(vm, at)
	for {
		line, err := cli.in.Prompt("(shadevm) ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				dbg.Continue()
				return nil
			}
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if cli.History != nil {
			cli.History(line)
		}
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "help", "h":
			fmt.Fprint(cli.output, debuggerHelp)
		case "step", "s":
			dbg.Step()
			return nil
		case "continue", "c":
			dbg.Continue()
			return nil
		case "break", "b", "delete", "d":
			cli.breakpoint(cmd, args)
		case "list", "l":
			bps := dbg.Breakpoints()
			if len(bps) == 0 {
				fmt.Fprintln(cli.output, "No breakpoints set.")
			}
			for i, bp := range bps {
				fmt.Fprintf(cli.output, "  %d. %s\n", i+1, bp)
			}
		case "stack":
			dbg.PrintStack(vm)
		case "masks":
			dbg.PrintMasks(vm)
		case "vars":
			dbg.PrintVariables(vm)
		case "print", "p":
			if len(args) != 1 {
				fmt.Fprintln(cli.output, "Usage: print <name>")
				continue
			}
			if !dbg.PrintVariable(vm, args[0]) {
				fmt.Fprintf(cli.output, "unknown variable %q\n", args[0])
			}
		case "code":
			seg, _ := vm.Position()
			if seg != nil {
				fmt.Fprint(cli.output, Listing(seg))
			}
		case "quit", "q", "exit":
			return ErrDebuggerQuit
		default:
			fmt.Fprintf(cli.output, "Unknown command: %s. Type 'help' for help.\n", cmd)
		}
	}
}

func (cli *DebuggerCLI) breakpoint(cmd string, args []string) {
	bp, err := parseBreakpoint(args)
	if err != nil {
		fmt.Fprintf(cli.output, "%v\n", err)
		return
	}
	if cmd == "break" || cmd == "b" {
		cli.debugger.SetBreakpoint(bp.Segment, bp.Offset)
		fmt.Fprintf(cli.output, "Breakpoint set at %s\n", bp)
		return
	}
	if cli.debugger.RemoveBreakpoint(bp.Segment, bp.Offset) {
		fmt.Fprintf(cli.output, "Breakpoint removed at %s\n", bp)
	} else {
		fmt.Fprintf(cli.output, "No breakpoint at %s\n", bp)
	}
}

// parseBreakpoint accepts "<segment>:<offset>" or a bare offset in Code.
func parseBreakpoint(args []string) (Breakpoint, error) {
	if len(args) != 1 {
		return Breakpoint{}, errors.New("usage: break <segment>:<offset>")
	}
	seg, off := config.SegmentCode, args[0]
	if i := strings.IndexByte(off, ':'); i >= 0 {
		seg, off = off[:i], off[i+1:]
	}
	if seg != config.SegmentInit && seg != config.SegmentCode {
		return Breakpoint{}, fmt.Errorf("unknown segment %q", seg)
	}
	n, err := strconv.Atoi(off)
	if err != nil || n < 0 {
		return Breakpoint{}, fmt.Errorf("invalid offset %q", off)
	}
	return Breakpoint{Segment: seg, Offset: n}, nil
}
