package prettyprinter

import (
	"strings"
	"testing"

	"github.com/funvibe/shadevm/internal/ast"
	"github.com/funvibe/shadevm/internal/config"
	"github.com/funvibe/shadevm/internal/shaders"
	"github.com/funvibe/shadevm/internal/symbols"
	ts "github.com/funvibe/shadevm/internal/typesystem"
)

func TestPrintMatte(t *testing.T) {
	u, err := shaders.Build("matte")
	if err != nil {
		t.Fatal(err)
	}
	want := `surface matte(
    float Ka = 1;
    float Kd = 1;
)
{
    normal Nf;

    Nf = faceforward(normalize(N), I);
    Oi = Os;
    Ci = Os * Cs * (Ka * ambient() + Kd * diffuse(Nf));
}
`
	if got := Print(u); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintFunctionsAndControlFlow(t *testing.T) {
	u := symbols.NewUnit("loops.sl")
	b := u.Builder()
	a, c := u.DeclareVar("a", ts.T(ts.Float)), u.DeclareVar("b", ts.T(ts.Float))
	tmp := u.DeclareVar("d", ts.T(ts.Float))
	if _, err := u.DefineFunction("sub", ts.T(ts.Float), []ast.VarID{a, c}, b.Block(
		b.Assign(tmp, b.Binary(ast.OpSub, b.Var(a), b.Binary(ast.OpSub, b.Var(c), b.Float(1)))),
		b.Return(b.Var(tmp)),
	)); err != nil {
		t.Fatal(err)
	}
	i := u.DeclareVar("i", ts.T(ts.Float))
	sum := u.DeclareArray("acc", ts.T(ts.Float), 4)
	Oi, uu := u.MustStandardVar("Oi"), u.MustStandardVar("u")
	u.SetShader(config.SurfaceShader, "loops", b.Block(
		b.For(b.Assign(i, b.Float(0)), b.Binary(ast.OpLt, b.Var(i), b.Float(4)), b.AssignOp(i, ast.OpAdd, b.Float(1)),
			b.Block(b.AssignIndex(sum, b.Var(i), b.Call("sub", b.Var(i), b.Var(uu))))),
		b.If(b.Binary(ast.OpAnd, b.Var(uu), b.Unary(ast.OpNot, b.Var(i))),
			b.Assign(Oi, b.Ternary(b.Var(uu), b.Float(1), b.Float(0))),
			b.Assign(Oi, b.Unary(ast.OpNeg, b.Binary(ast.OpAdd, b.Var(uu), b.Float(1))))),
	))

	got := Print(u)
	for _, want := range []string{
		"float sub(float a; float b)\n{\n    float d;\n\n    d = a - (b - 1);\n    return d;\n}\n",
		"surface loops()\n{\n    float i;\n    float acc[4];\n",
		"    for (i = 0; i < 4; i += 1)\n    {\n        acc[i] = sub(i, u);\n    }\n",
		"    if (u && !i)\n    {\n        Oi = u ? 1 : 0;\n    }\n    else\n    {\n        Oi = -(u + 1);\n    }\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks\n%s\ngot:\n%s", want, got)
		}
	}
}

func TestPrintLibrary(t *testing.T) {
	for _, name := range shaders.Names() {
		t.Run(name, func(t *testing.T) {
			u, err := shaders.Build(name)
			if err != nil {
				t.Fatal(err)
			}
			got := Print(u)
			if !strings.Contains(got, u.Shader.Kind+" "+name+"(") || strings.Contains(got, "<???>") {
				t.Errorf("bad rendering:\n%s", got)
			}
		})
	}
}
