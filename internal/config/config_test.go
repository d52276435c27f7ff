package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"), "shadevm.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Grid.Width != DefaultGridWidth || cfg.Grid.Height != DefaultGridHeight {
		t.Errorf("grid = %dx%d, want %dx%d", cfg.Grid.Width, cfg.Grid.Height, DefaultGridWidth, DefaultGridHeight)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("log level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Cache.Path != DefaultCachePath {
		t.Errorf("cache path = %q, want %q", cfg.Cache.Path, DefaultCachePath)
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("server addr = %q, want %q", cfg.Server.Addr, DefaultServerAddr)
	}
}

func TestParseConfig_Full(t *testing.T) {
	data := `
grid:
  width: 4
  height: 2
log:
  level: DEBUG
cache:
  path: /tmp/x.db
server:
  addr: ":9000"
scene: scenes/plane.yaml
`
	cfg, err := ParseConfig([]byte(data), "/etc/shadevm/shadevm.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Grid.Width != 4 || cfg.Grid.Height != 2 {
		t.Errorf("grid = %dx%d, want 4x2", cfg.Grid.Width, cfg.Grid.Height)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	want := filepath.Join("/etc/shadevm", "scenes/plane.yaml")
	if cfg.Scene != want {
		t.Errorf("scene = %q, want %q", cfg.Scene, want)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"negative grid", "grid: {width: -1}", "must not be negative"},
		{"bad level", "log: {level: loud}", "unknown level"},
		{"bad addr", "server: {addr: localhost}", "host:port"},
		{"bad yaml", "grid: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), "shadevm.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, []byte("grid: {width: 2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if got != path {
		t.Errorf("FindConfig = %q, want %q", got, path)
	}

	cfg, err := LoadConfig(got)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Grid.Width != 2 {
		t.Errorf("width = %d, want 2", cfg.Grid.Width)
	}
}

func TestIsBytecodeFile(t *testing.T) {
	if !IsBytecodeFile("plastic.slx") || !IsBytecodeFile("dir/matte.slb") {
		t.Error("expected bytecode extensions to match")
	}
	if IsBytecodeFile("plastic.sl") || IsBytecodeFile(".slx") {
		t.Error("unexpected match")
	}
}
