package main

import (
	"bytes"
	"testing"

	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/server"
	"github.com/funvibe/shadevm/internal/vm"
)

func init() { config.IsTestMode = true }

func TestOutputData(t *testing.T) {
	tests := []struct {
		name string
		out  server.Output
		want string
	}{
		{"uniform float", server.Output{Kind: "float", Numbers: []float64{0.5}}, "0.5"},
		{"varying triple", server.Output{Kind: "triple", Varying: true, Numbers: []float64{1, 2, 3, 4, 5, 6}}, "[(1,2,3) (4,5,6)]"},
		{"string", server.Output{Kind: "string", Texts: []string{"hi"}}, "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputData(tt.out).String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrintDataRows(t *testing.T) {
	var buf bytes.Buffer
	printData(&buf, "u", vm.Floats([]float64{0, 1, 0, 1}), 2)
	if got, want := buf.String(), "u:\n  0 1\n  0 1\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	buf.Reset()
	printData(&buf, "Kd", vm.Float(1), 2)
	if got := buf.String(); got != "Kd = 1\n" {
		t.Errorf("got %q", got)
	}
}
