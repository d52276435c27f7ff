package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/vm"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

const (
	colorRed    = 31
	colorYellow = 33
	colorCyan   = 36
)

var colorEnabled = func() bool {
	if config.IsTestMode || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}()

func paint(code int, s string) string {
	if !colorEnabled || config.IsTestMode {
		return s
	}
	return fmt.Sprintf("\033[%dm%s\033[39m", code, s)
}

const historyFile = ".shadevm_history"

// console is a line-editing debugger prompt. History persists across
// sessions in the home directory.
type console struct {
	ln   *liner.State
	hist string
}

func newConsole() *console {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)
	c := &console{ln: ln}
	if home, err := os.UserHomeDir(); err == nil {
		c.hist = filepath.Join(home, historyFile)
		if f, err := os.Open(c.hist); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	return c
}

func (c *console) Prompt(prompt string) (string, error) {
	line, err := c.ln.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", vm.ErrDebuggerQuit
	}
	return line, err
}

func (c *console) AppendHistory(line string) { c.ln.AppendHistory(line) }

func (c *console) Close() error {
	if c.hist != "" {
		if f, err := os.Create(c.hist); err == nil {
			_, _ = c.ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	return c.ln.Close()
}

// interactive reports whether stdin is a terminal, so the debugger can
// use line editing.
func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
