package vm

import ts "github.com/funvibe/shadevm/internal/typesystem"

// CommQuery is a lookup of a named host resource made by a comm opcode
// (attribute, option, rendererinfo, textureinfo, incident, opposite,
// surface, displacement, lightsource, atmosphere).
type CommQuery struct {
	Func string
	Name string
	// Key is the info key of textureinfo; Name is then the texture.
	Key string
	// Type is the declared type of the output variable.
	Type ts.BaseType
}

// TextureKind selects a texture lookup family.
type TextureKind uint8

const (
	TextureMap TextureKind = iota
	EnvironmentMap
	ShadowMap
	BumpMap
)

func (k TextureKind) String() string {
	switch k {
	case TextureMap:
		return "texture"
	case EnvironmentMap:
		return "environment"
	case ShadowMap:
		return "shadow"
	}
	return "bump"
}

// TextureQuery samples a texture at every grid point. Only the
// coordinates of the kind are set: S and T for texture and bump maps,
// Dir for environment maps, P for shadow maps.
type TextureQuery struct {
	Kind     TextureKind
	Name     string
	Channels int
	S, T     []float64
	Dir      []Triple
	P        []Triple
}

// LightSource is one light visible to a surface grid.
type LightSource interface {
	// Ambient reports whether the light has no position or direction.
	Ambient() bool
	// Shade evaluates the light for surface points ps. L points from each
	// surface point toward the light; Cl is the arriving colour.
	Shade(ps []Triple) (L, Cl []Triple, err error)
}

// Host is everything the VM needs from the renderer. Lookups that find
// nothing return false; the VM then uses a default value and reports the
// miss through Report.
type Host interface {
	Comm(q CommQuery) (Data, bool)
	Texture(q TextureQuery) (Data, bool)
	Lights() []LightSource
	// Transform returns the matrix taking points from space from to
	// space to.
	Transform(from, to string) (Matrix, bool)
	Report(err error)
}

// NopHost answers every lookup with "not found" and has no lights. Named
// spaces all coincide.
type NopHost struct{}

func (NopHost) Comm(CommQuery) (Data, bool)       { return Data{}, false }
func (NopHost) Texture(TextureQuery) (Data, bool) { return Data{}, false }
func (NopHost) Lights() []LightSource             { return nil }
func (NopHost) Transform(string, string) (Matrix, bool) {
	return Identity, true
}
func (NopHost) Report(error) {}
