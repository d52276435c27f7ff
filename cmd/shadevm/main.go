package main

import (
	"fmt"
	"os"

	"github.com/ComedicChimera/olive"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/logging"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newCLI() *olive.Command {
	cli := olive.NewCLI("shadevm", "shadevm assembles, runs and serves shading-language bytecode", true)
	cli.AddStringArg("config", "cf", "path to shadevm.yaml (default: searched upward from the working directory)", false)
	cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"debug", "info", "warn", "error", "silent"})

	asm := cli.AddSubcommand("asm", "load a bytecode file and print it back", true)
	asm.AddPrimaryArg("file", "the .slx file", true)
	asm.AddFlag("listing", "l", "print segments with offsets instead of canonical text")

	compile := cli.AddSubcommand("compile", "compile a library shader to bytecode", true)
	compile.AddPrimaryArg("shader", "library shader name, or 'list'", true)
	compile.AddStringArg("out", "o", "write to this file instead of stdout", false)
	compile.AddFlag("source", "src", "print the shader as source instead of bytecode")

	for _, name := range []string{"run", "debug"} {
		desc := "run a shader over a grid and print its outputs"
		if name == "debug" {
			desc = "run a shader under the interactive debugger"
		}
		cmd := cli.AddSubcommand(name, desc, true)
		cmd.AddPrimaryArg("shader", "a .slx file or a library shader name", true)
		addRunArgs(cmd)
	}

	cli.AddSubcommand("serve", "serve the shading gRPC service", false)

	cache := cli.AddSubcommand("cache", "manage the program cache", true)
	cache.AddSubcommand("list", "list cached programs", false)
	put := cache.AddSubcommand("put", "store a bytecode file", true)
	put.AddPrimaryArg("file", "the .slx file", true)
	del := cache.AddSubcommand("delete", "remove a cached program", true)
	del.AddPrimaryArg("id", "the program id", true)
	cache.AddSubcommand("purge", "remove every cached program", false)

	remote := cli.AddSubcommand("remote", "load a shader on a running server and shade it there", true)
	remote.AddPrimaryArg("shader", "a .slx file or a library shader name", true)
	remote.AddStringArg("addr", "a", "server address (default: server.addr from the config)", false)
	addRunArgs(remote)

	cli.AddSubcommand("version", "print the version", false)
	return cli
}

func addRunArgs(cmd *olive.Command) {
	cmd.AddStringArg("grid", "g", "grid size as WxH in micropolygons", false)
	cmd.AddStringArg("params", "p", "parameter overrides as a YAML map, e.g. '{Kd: 0.5, specularcolor: [1, 0, 0]}'", false)
	cmd.AddStringArg("outputs", "vs", "comma-separated variables to print (default Ci,Oi)", false)
	cmd.AddStringArg("scene", "s", "scene file (default: scene from the config)", false)
}

func main() {
	result, err := olive.ParseArgs(newCLI(), os.Args)
	if err != nil {
		fail(fmt.Errorf("usage: %w", err))
	}

	cfg, err := loadConfig(result)
	if err != nil {
		fail(err)
	}
	logging.SetLogger(logging.New(os.Stderr, cfg.Log.Level))

	subcmd, sub, _ := result.Subcommand()
	switch subcmd {
	case "asm":
		err = runAsm(sub)
	case "compile":
		err = runCompile(sub)
	case "run":
		err = runShade(sub, cfg, false)
	case "debug":
		err = runShade(sub, cfg, true)
	case "serve":
		err = runServe(cfg)
	case "cache":
		err = runCache(sub, cfg)
	case "remote":
		err = runRemote(sub, cfg)
	case "version":
		fmt.Println("shadevm", Version)
	}
	if err != nil {
		fail(err)
	}
}

// loadConfig reads the config named on the command line, or the nearest
// shadevm.yaml, or falls back to defaults. A --loglevel overrides the file.
func loadConfig(result *olive.ArgParseResult) (*config.Config, error) {
	path, _ := stringArg(result, "config")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.FindConfig(wd); err != nil {
			return nil, err
		}
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if lvl, ok := stringArg(result, "loglevel"); ok {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func stringArg(result *olive.ArgParseResult, name string) (string, bool) {
	v, ok := result.Arguments[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(colorRed, "error:"), err)
	os.Exit(1)
}
