package config

// BytecodeFileExt is the extension of assembled shader programs.
const BytecodeFileExt = ".slx"

// BytecodeFileExtensions are all recognized bytecode file extensions
var BytecodeFileExtensions = []string{".slx", ".slb"}

// IsTestMode indicates if the program is running under go test.
// Disables colour and terminal probing in diagnostics output.
var IsTestMode = false

// Shader kinds, as written on the bytecode header line.
const (
	SurfaceShader      = "surface"
	LightShader        = "light"
	DisplacementShader = "displacement"
	VolumeShader       = "volume"
	ImagerShader       = "imager"
	TransformShader    = "transformation"
)

// ShaderKinds lists every accepted header keyword.
var ShaderKinds = []string{
	SurfaceShader,
	LightShader,
	DisplacementShader,
	VolumeShader,
	ImagerShader,
	TransformShader,
}

// Bytecode segment names
const (
	SegmentData = "Data"
	SegmentInit = "Init"
	SegmentCode = "Code"
)

// Bytecode keywords
const (
	SegmentKeyword = "segment"
	UsesKeyword    = "USES"
	ParamKeyword   = "param"
	LabelPrefix    = ":"
)

// Named coordinate systems understood by transform() and space-qualified literals.
const (
	CurrentSpace = "current"
	ShaderSpace  = "shader"
	ObjectSpace  = "object"
	WorldSpace   = "world"
	CameraSpace  = "camera"
	ScreenSpace  = "screen"
	RasterSpace  = "raster"
	NDCSpace     = "NDC"
)

// Colour spaces understood by ctransform() and space-qualified colour literals.
const (
	RGBSpace = "rgb"
	HSVSpace = "hsv"
	HSLSpace = "hsl"
)

// Default grid and service settings.
const (
	DefaultGridWidth  = 8
	DefaultGridHeight = 8
	DefaultLogLevel   = "warn"
	DefaultCachePath  = "shadevm-cache.db"
	DefaultServerAddr = "127.0.0.1:7447"
	ConfigFileName    = "shadevm.yaml"
)

// IsBytecodeFile reports whether path carries a bytecode extension.
func IsBytecodeFile(path string) bool {
	for _, ext := range BytecodeFileExtensions {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// IsShaderKind reports whether s names a shader kind.
func IsShaderKind(s string) bool {
	for _, k := range ShaderKinds {
		if k == s {
			return true
		}
	}
	return false
}
