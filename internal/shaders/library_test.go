package shaders

import (
	"strings"
	"testing"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/vm"
)

func TestLibraryCompiles(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		ambient bool
	}{
		{"constant", config.SurfaceShader, false},
		{"matte", config.SurfaceShader, false},
		{"plastic", config.SurfaceShader, false},
		{"lambert", config.SurfaceShader, false},
		{"ambientlight", config.LightShader, true},
		{"pointlight", config.LightShader, false},
		{"distantlight", config.LightShader, false},
	}
	if len(tests) != len(Names()) {
		t.Fatalf("library has %v", Names())
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Program(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if prog.Kind != tt.kind || prog.Name != tt.name {
				t.Errorf("header = %s %s", prog.Kind, prog.Name)
			}
			if tt.kind == config.LightShader && prog.IsAmbientLight() != tt.ambient {
				t.Errorf("IsAmbientLight = %v", prog.IsAmbientLight())
			}

			text, err := Bytecode(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			again, err := vm.Assemble(tt.name+".slx", text)
			if err != nil {
				t.Fatal(err)
			}
			if again.Text() != text {
				t.Errorf("round trip differs:\n%s\nvs\n%s", again.Text(), text)
			}
		})
	}
}

func TestLibraryUses(t *testing.T) {
	text, err := Bytecode("plastic")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"param uniform float Ks", "param uniform color specularcolor", "specular\n", "negv\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("plastic bytecode lacks %q:\n%s", want, text)
		}
	}
	text, err = Bytecode("lambert")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "illuminance2\n") {
		t.Errorf("lambert does not loop over lights:\n%s", text)
	}
}

func TestUnknownShader(t *testing.T) {
	if _, err := Build("marble"); err == nil {
		t.Error("Build(marble) succeeded")
	}
	if _, err := Program("marble"); err == nil {
		t.Error("Program(marble) succeeded")
	}
}
