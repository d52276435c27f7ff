package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/ComedicChimera/olive"
	"github.com/funvibe/shadevm/internal/cache"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/host"
	"github.com/funvibe/shadevm/internal/logging"
	"github.com/funvibe/shadevm/internal/prettyprinter"
	"github.com/funvibe/shadevm/internal/server"
	"github.com/funvibe/shadevm/internal/shaders"
	"github.com/funvibe/shadevm/internal/symbols"
	"github.com/funvibe/shadevm/internal/vm"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

func runAsm(sub *olive.ArgParseResult) error {
	path, _ := sub.PrimaryArg()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	prog, err := vm.Assemble(path, string(data))
	if err != nil {
		return err
	}
	if sub.HasFlag("listing") {
		fmt.Print(listing(prog))
		return nil
	}
	fmt.Print(prog.Text())
	return nil
}

func listing(prog *vm.Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", prog.Kind, prog.Name)
	fmt.Fprintf(&sb, "%s %d %v\n", config.UsesKeyword, prog.Uses, symbols.MaskNames(prog.Uses))
	for _, d := range prog.Vars {
		fmt.Fprintf(&sb, "  %s %s", d.Type, d.Name)
		if d.Type.Array {
			fmt.Fprintf(&sb, "[%d]", d.ArrayLen)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "%s %s\n%s", config.SegmentKeyword, config.SegmentInit, vm.Listing(&prog.Init))
	fmt.Fprintf(&sb, "%s %s\n%s", config.SegmentKeyword, config.SegmentCode, vm.Listing(&prog.Code))
	return sb.String()
}

func runCompile(sub *olive.ArgParseResult) error {
	name, _ := sub.PrimaryArg()
	if name == "list" {
		for _, n := range shaders.Names() {
			fmt.Println(n)
		}
		return nil
	}
	var text string
	if sub.HasFlag("source") {
		u, err := shaders.Build(name)
		if err != nil {
			return err
		}
		text = prettyprinter.Print(u)
	} else {
		var err error
		if text, err = shaders.Bytecode(name); err != nil {
			return err
		}
	}
	out, ok := stringArg(sub, "out")
	if !ok {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(out, []byte(text), 0o644)
}

// shaderText reads a bytecode file, or compiles a library shader when arg
// is not a bytecode path.
func shaderText(arg string) (file, text string, err error) {
	if config.IsBytecodeFile(arg) {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", "", err
		}
		return arg, string(data), nil
	}
	text, err = shaders.Bytecode(arg)
	if err != nil {
		return "", "", err
	}
	return arg + config.BytecodeFileExt, text, nil
}

func newHost(sub *olive.ArgParseResult, cfg *config.Config) (*host.Host, error) {
	path, ok := stringArg(sub, "scene")
	if !ok {
		path = cfg.Scene
	}
	scene := host.EmptyScene()
	if path != "" {
		var err error
		if scene, err = host.LoadScene(path); err != nil {
			return nil, err
		}
	}
	return host.New(scene)
}

type runOptions struct {
	width, height int
	params        map[string]host.Value
	outputs       []string
}

func parseRunOptions(sub *olive.ArgParseResult, cfg *config.Config) (runOptions, error) {
	o := runOptions{width: cfg.Grid.Width, height: cfg.Grid.Height, outputs: server.DefaultOutputs}
	if g, ok := stringArg(sub, "grid"); ok {
		w, h, found := strings.Cut(strings.ToLower(g), "x")
		if !found {
			return o, fmt.Errorf("grid %q: want WxH", g)
		}
		var err error
		if o.width, err = strconv.Atoi(w); err != nil {
			return o, fmt.Errorf("grid %q: %w", g, err)
		}
		if o.height, err = strconv.Atoi(h); err != nil {
			return o, fmt.Errorf("grid %q: %w", g, err)
		}
	}
	if p, ok := stringArg(sub, "params"); ok {
		if err := yaml.Unmarshal([]byte(p), &o.params); err != nil {
			return o, fmt.Errorf("params: %w", err)
		}
	}
	if out, ok := stringArg(sub, "outputs"); ok {
		o.outputs = nil
		for _, name := range strings.Split(out, ",") {
			if name = strings.TrimSpace(name); name != "" {
				o.outputs = append(o.outputs, name)
			}
		}
	}
	return o, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runShade(sub *olive.ArgParseResult, cfg *config.Config, debug bool) error {
	arg, _ := sub.PrimaryArg()
	file, text, err := shaderText(arg)
	if err != nil {
		return err
	}
	prog, err := vm.Assemble(file, text)
	if err != nil {
		return err
	}
	opts, err := parseRunOptions(sub, cfg)
	if err != nil {
		return err
	}
	h, err := newHost(sub, cfg)
	if err != nil {
		return err
	}

	var setup []func(*vm.VM)
	if debug {
		d := vm.NewDebugger()
		d.Step()
		if interactive() {
			con := newConsole()
			defer con.Close()
			vm.NewDebuggerCLI(d, con).History = con.AppendHistory
		} else {
			vm.NewDebuggerCLI(d, vm.NewReaderPrompter(os.Stdin, os.Stdout))
		}
		setup = append(setup, func(m *vm.VM) { m.SetDebugger(d) })
	}

	ctx, cancel := signalContext()
	defer cancel()
	m, err := h.Shade(ctx, prog, opts.width, opts.height, opts.params, setup...)
	if err != nil {
		return err
	}
	w, _ := m.GridDims()
	for _, name := range opts.outputs {
		d, ok := m.Variable(name)
		if !ok {
			return fmt.Errorf("%s has no variable %s", prog.Name, name)
		}
		printData(os.Stdout, name, d, w)
	}
	printReports(h.Reports())
	return nil
}

// printData writes a variable, one grid row per line.
func printData(w io.Writer, name string, d vm.Data, width int) {
	if !d.Varying {
		fmt.Fprintf(w, "%s = %s\n", paint(colorCyan, name), d.Element(0))
		return
	}
	fmt.Fprintf(w, "%s:\n", paint(colorCyan, name))
	n := d.Len()
	if width <= 0 {
		width = n
	}
	for row := 0; row*width < n; row++ {
		cells := make([]string, 0, width)
		for i := row * width; i < min(n, (row+1)*width); i++ {
			cells = append(cells, d.Element(i))
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(cells, " "))
	}
}

func printReports[E any](reports []E) {
	for _, r := range reports {
		fmt.Fprintf(os.Stderr, "%s %v\n", paint(colorYellow, "warning:"), r)
	}
}

func openCache(cfg *config.Config) (*cache.Cache, error) {
	if cfg.Cache.Disabled {
		return cache.Open(cache.MemoryPath)
	}
	return cache.Open(cfg.Cache.Path)
}

func runServe(cfg *config.Config) error {
	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	scene := host.EmptyScene()
	if cfg.Scene != "" {
		if scene, err = host.LoadScene(cfg.Scene); err != nil {
			return err
		}
	}
	h, err := host.New(scene)
	if err != nil {
		return err
	}
	srv, err := server.New(c, h, cfg.Grid)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		logging.Logger().Info("shutting down")
		srv.Stop()
	}()
	fmt.Fprintf(os.Stderr, "serving %s on %s\n", server.ServiceName, lis.Addr())
	return srv.Serve(lis)
}

func runCache(sub *olive.ArgParseResult, cfg *config.Config) error {
	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()

	name, args, _ := sub.Subcommand()
	switch name {
	case "list":
		entries, err := c.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tNAME\tCREATED\tUSES")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Kind, e.Name,
				e.Created.Local().Format("2006-01-02 15:04:05"), strings.Join(symbols.MaskNames(e.Uses), ","))
		}
		return tw.Flush()
	case "put":
		path, _ := args.PrimaryArg()
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		e, err := c.Put(ctx, path, string(data))
		if err != nil {
			return err
		}
		fmt.Println(e.ID)
	case "delete":
		raw, _ := args.PrimaryArg()
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("bad id %q: %w", raw, err)
		}
		return c.Delete(ctx, id)
	case "purge":
		n, err := c.Purge(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d programs\n", n)
	}
	return nil
}

func runRemote(sub *olive.ArgParseResult, cfg *config.Config) error {
	arg, _ := sub.PrimaryArg()
	file, text, err := shaderText(arg)
	if err != nil {
		return err
	}
	opts, err := parseRunOptions(sub, cfg)
	if err != nil {
		return err
	}
	addr, ok := stringArg(sub, "addr")
	if !ok {
		addr = cfg.Server.Addr
	}
	client, err := server.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := signalContext()
	defer cancel()
	loaded, err := client.Load(ctx, file, text)
	if err != nil {
		return err
	}
	logging.Logger().Info("loaded", "id", loaded.ID, "shader", loaded.Name)
	res, err := client.Shade(ctx, server.ShadeRequest{
		ID:      loaded.ID,
		Width:   opts.width,
		Height:  opts.height,
		Params:  opts.params,
		Outputs: opts.outputs,
	})
	if err != nil {
		return err
	}
	for _, o := range res.Outputs {
		printData(os.Stdout, o.Name, outputData(o), opts.width+1)
	}
	printReports(res.Reports)
	return nil
}

// outputData rebuilds VM data from a flattened service output.
func outputData(o server.Output) vm.Data {
	d := vm.Data{Varying: o.Varying}
	switch o.Kind {
	case "string":
		d.Kind, d.S = vm.KindString, o.Texts
	case "triple":
		d.Kind = vm.KindTriple
		for i := 0; i+2 < len(o.Numbers); i += 3 {
			d.T = append(d.T, vm.Triple{o.Numbers[i], o.Numbers[i+1], o.Numbers[i+2]})
		}
	case "matrix":
		d.Kind = vm.KindMatrix
		for i := 0; i+15 < len(o.Numbers); i += 16 {
			var m vm.Matrix
			copy(m[:], o.Numbers[i:i+16])
			d.M = append(d.M, m)
		}
	default:
		d.Kind, d.F = vm.KindFloat, o.Numbers
	}
	return d
}
