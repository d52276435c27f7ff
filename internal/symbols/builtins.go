package symbols

import (
	"fmt"

	ts "github.com/funvibe/shadevm/internal/typesystem"
)

// builtin is one row of the library table.
type builtin struct {
	name   string
	ret    ts.Type
	opcode string
	sig    string
	uses   uint64
	cat    Category
}

func (b builtin) def() FunctionDef {
	return FunctionDef{
		Name:      b.name,
		Return:    b.ret,
		Opcode:    b.opcode,
		Signature: b.sig,
		Params:    ts.MustParseSignature(b.sig),
		Uses:      b.uses,
		Category:  b.cat,
	}
}

// Return types with an unspecified class take the class of their
// arguments: varying if any argument is varying.
var (
	rFloat  = ts.T(ts.Float)
	rPoint  = ts.T(ts.Point)
	rVector = ts.T(ts.Vector)
	rNormal = ts.T(ts.Normal)
	rColor  = ts.T(ts.Color)
	rMatrix = ts.T(ts.Matrix)
	rString = ts.T(ts.String)
	rVoid   = ts.T(ts.Void)

	vFloat  = ts.VaryingOf(ts.Float)
	vPoint  = ts.VaryingOf(ts.Point)
	vVector = ts.VaryingOf(ts.Vector)
	vNormal = ts.VaryingOf(ts.Normal)
	vColor  = ts.VaryingOf(ts.Color)
)

func std(name string, ret ts.Type, opcode, sig string) builtin {
	return builtin{name: name, ret: ret, opcode: opcode, sig: sig, cat: Standard}
}

func stdUses(name string, ret ts.Type, opcode, sig string, uses ...string) builtin {
	return builtin{name: name, ret: ret, opcode: opcode, sig: sig, uses: Mask(uses...), cat: Standard}
}

func comm(name, sig string) builtin {
	return builtin{name: name, ret: rFloat, opcode: name, sig: sig, cat: Special}
}

var builtinTable = buildTable()

func buildTable() []builtin {
	t := []builtin{
		// Math.
		std("radians", rFloat, "radians", "f"),
		std("degrees", rFloat, "degrees", "f"),
		std("sin", rFloat, "sin", "f"),
		std("asin", rFloat, "asin", "f"),
		std("cos", rFloat, "cos", "f"),
		std("acos", rFloat, "acos", "f"),
		std("tan", rFloat, "tan", "f"),
		std("atan", rFloat, "atan", "f"),
		std("atan", rFloat, "atan2", "ff"),
		std("sqrt", rFloat, "sqrt", "f"),
		std("inversesqrt", rFloat, "inversesqrt", "f"),
		std("exp", rFloat, "exp", "f"),
		std("log", rFloat, "log", "f"),
		std("log", rFloat, "logb", "ff"),
		std("pow", rFloat, "pow", "ff"),
		std("mod", rFloat, "mod", "ff"),
		std("abs", rFloat, "abs", "f"),
		std("sign", rFloat, "sign", "f"),
		std("floor", rFloat, "floor", "f"),
		std("ceil", rFloat, "ceil", "f"),
		std("round", rFloat, "round", "f"),
		std("step", rFloat, "step", "ff"),
		std("smoothstep", rFloat, "smoothstep", "fff"),
		std("filterstep", rFloat, "filterstep", "ff"),

		std("min", rFloat, "fmin", "ff*"),
		std("min", rPoint, "pmin", "pp*"),
		std("min", rVector, "vmin", "vv*"),
		std("min", rNormal, "nmin", "nn*"),
		std("min", rColor, "cmin", "cc*"),
		std("max", rFloat, "fmax", "ff*"),
		std("max", rPoint, "pmax", "pp*"),
		std("max", rVector, "vmax", "vv*"),
		std("max", rNormal, "nmax", "nn*"),
		std("max", rColor, "cmax", "cc*"),
		std("clamp", rFloat, "fclamp", "fff"),
		std("clamp", rPoint, "pclamp", "ppp"),
		std("clamp", rVector, "vclamp", "vvv"),
		std("clamp", rNormal, "nclamp", "nnn"),
		std("clamp", rColor, "cclamp", "ccc"),
		std("mix", rFloat, "fmix", "fff"),
		std("mix", rPoint, "pmix", "ppf"),
		std("mix", rVector, "vmix", "vvf"),
		std("mix", rNormal, "nmix", "nnf"),
		std("mix", rColor, "cmix", "ccf"),
		std("spline", rFloat, "fspline", "ff*"),
		std("spline", rColor, "cspline", "fc*"),
		std("spline", rPoint, "pspline", "fp*"),
		std("spline", rVector, "vspline", "fv*"),

		// Derivatives over the grid.
		stdUses("Du", vFloat, "fDu", "f", "du"),
		stdUses("Du", vColor, "cDu", "c", "du"),
		stdUses("Du", vVector, "pDu", "p", "du"),
		stdUses("Dv", vFloat, "fDv", "f", "dv"),
		stdUses("Dv", vColor, "cDv", "c", "dv"),
		stdUses("Dv", vVector, "pDv", "p", "dv"),
		stdUses("Deriv", vFloat, "fDeriv", "ff", "du", "dv"),
		stdUses("Deriv", vColor, "cDeriv", "cf", "du", "dv"),
		stdUses("Deriv", vVector, "pDeriv", "pf", "du", "dv"),
		stdUses("area", vFloat, "area", "p", "du", "dv"),
		stdUses("calculatenormal", vNormal, "calculatenormal", "p", "du", "dv"),

		std("random", vFloat, "frandom", ""),
		std("random", vColor, "crandom", ""),
		std("random", vPoint, "prandom", ""),

		// Geometry.
		std("xcomp", rFloat, "xcomp", "p"),
		std("ycomp", rFloat, "ycomp", "p"),
		std("zcomp", rFloat, "zcomp", "p"),
		std("setxcomp", rVoid, "setxcomp", "Pf"),
		std("setycomp", rVoid, "setycomp", "Pf"),
		std("setzcomp", rVoid, "setzcomp", "Pf"),
		std("length", rFloat, "length", "v"),
		std("normalize", rVector, "normalize", "v"),
		std("distance", rFloat, "distance", "pp"),
		std("ptlined", rFloat, "ptlined", "ppp"),
		std("rotate", rPoint, "rotate", "pfpp"),
		stdUses("faceforward", rVector, "faceforward", "nv", "Ng"),
		std("faceforward", rVector, "faceforward2", "nvv"),
		std("reflect", rVector, "reflect", "vv"),
		std("refract", rVector, "refract", "vvf"),
		std("fresnel", rVoid, "fresnel", "vnfFF"),
		std("fresnel", rVoid, "fresnel2", "vnfFFVV"),
		std("transform", rPoint, "transform", "sp"),
		std("transform", rPoint, "transform2", "ssp"),
		std("transform", rPoint, "transformm", "mp"),
		std("vtransform", rVector, "vtransform", "sv"),
		std("vtransform", rVector, "vtransform2", "ssv"),
		std("vtransform", rVector, "vtransformm", "mv"),
		std("ntransform", rNormal, "ntransform", "sn"),
		std("ntransform", rNormal, "ntransform2", "ssn"),
		std("ntransform", rNormal, "ntransformm", "mn"),
		std("depth", rFloat, "depth", "p"),

		// Colour.
		std("comp", rFloat, "comp", "cf"),
		std("setcomp", rVoid, "setcomp", "Cff"),
		std("ctransform", rColor, "ctransform", "sc"),
		std("ctransform", rColor, "ctransform2", "ssc"),

		// Matrix.
		std("comp", rFloat, "mcomp", "mff"),
		std("setcomp", rVoid, "msetcomp", "Mfff"),
		std("determinant", rFloat, "determinant", "m"),
		std("translate", rMatrix, "translate", "mv"),
		std("rotate", rMatrix, "mrotate", "mfv"),
		std("scale", rMatrix, "scale", "mp"),

		// Strings.
		std("concat", rString, "concat", "ss*"),
		std("format", rString, "format", "sx*"),
		std("printf", rVoid, "printf", "sx*"),
		std("match", rFloat, "match", "ss"),

		// Shading.
		stdUses("ambient", vColor, "ambient", ""),
		stdUses("diffuse", vColor, "diffuse", "n", "P"),
		stdUses("specular", vColor, "specular", "nvf", "P"),
		stdUses("specularbrdf", vColor, "specularbrdf", "vnvf"),
		stdUses("phong", vColor, "phong", "nvf", "P"),

		// Textures.
		stdUses("texture", vFloat, "ftexture1", "s", "s", "t"),
		stdUses("texture", vFloat, "ftexture2", "sff"),
		stdUses("texture", vFloat, "ftexture3", "sffffffff"),
		stdUses("texture", vColor, "ctexture1", "s", "s", "t"),
		stdUses("texture", vColor, "ctexture2", "sff"),
		stdUses("texture", vColor, "ctexture3", "sffffffff"),
		stdUses("environment", vFloat, "fenvironment2", "sv"),
		stdUses("environment", vFloat, "fenvironment3", "svvvv"),
		stdUses("environment", vColor, "cenvironment2", "sv"),
		stdUses("environment", vColor, "cenvironment3", "svvvv"),
		stdUses("shadow", vFloat, "shadow", "sp"),
		stdUses("shadow", vFloat, "shadow1", "spppp"),
		stdUses("bump", vNormal, "bump", "snvv", "s", "t"),

		// Host communication.
		comm("attribute", "sX"),
		comm("option", "sX"),
		comm("rendererinfo", "sX"),
		comm("textureinfo", "ssX"),
		comm("incident", "sX"),
		comm("opposite", "sX"),
		comm("surface", "sX"),
		comm("displacement", "sX"),
		comm("lightsource", "sX"),
		comm("atmosphere", "sX"),
	}
	return append(t, noiseFamily()...)
}

// noiseFamily lists noise, pnoise and cellnoise for every result type.
// Opcodes are <result><family><variant>, e.g. fnoise3 or cpnoise1.
func noiseFamily() []builtin {
	results := []struct {
		code byte
		typ  ts.Type
	}{
		{'f', vFloat}, {'c', vColor}, {'p', vPoint}, {'v', vVector},
	}
	families := []struct {
		name string
		sigs []string
	}{
		{"noise", []string{"f", "ff", "p", "pf"}},
		{"pnoise", []string{"ff", "ffff", "pp", "pfpf"}},
		{"cellnoise", []string{"f", "ff", "p", "pf"}},
	}
	var out []builtin
	for _, r := range results {
		for _, fam := range families {
			for i, sig := range fam.sigs {
				op := fmt.Sprintf("%c%s%d", r.code, fam.name, i+1)
				out = append(out, std(fam.name, r.typ, op, sig))
			}
		}
	}
	return out
}

// BuiltinOpcodes lists every opcode referenced by the builtin table.
func BuiltinOpcodes() []string {
	seen := make(map[string]bool, len(builtinTable))
	out := make([]string, 0, len(builtinTable))
	for _, b := range builtinTable {
		if !seen[b.opcode] {
			seen[b.opcode] = true
			out = append(out, b.opcode)
		}
	}
	return out
}
