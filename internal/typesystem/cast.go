package typesystem

// NoCast is the priority of a pair with no implicit conversion.
const NoCast = 0

// Identity is the priority of a type with itself.
const Identity = 99

// castPriority ranks implicit conversions: castPriority[from][to].
// Higher wins; 0 means the conversion is not allowed.
var castPriority = [numBaseTypes][numBaseTypes]uint8{
	//            nil flt int str pnt vec nrm col mtx tri hpt hex void
	Nil:      {99, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	Float:    {0, 99, 80, 0, 50, 50, 50, 50, 40, 0, 0, 0, 0},
	Integer:  {0, 90, 99, 0, 40, 40, 40, 40, 30, 0, 0, 0, 0},
	String:   {0, 0, 0, 99, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	Point:    {0, 0, 0, 0, 99, 80, 80, 0, 0, 0, 0, 0, 0},
	Vector:   {0, 0, 0, 0, 80, 99, 80, 0, 0, 0, 0, 0, 0},
	Normal:   {0, 0, 0, 0, 80, 80, 99, 0, 0, 0, 0, 0, 0},
	Color:    {0, 0, 0, 0, 0, 0, 0, 99, 0, 0, 0, 0, 0},
	Matrix:   {0, 0, 0, 0, 0, 0, 0, 0, 99, 0, 0, 0, 0},
	Triple:   {0, 0, 0, 0, 70, 70, 70, 70, 0, 99, 0, 0, 0},
	HPoint:   {0, 0, 0, 0, 70, 0, 0, 0, 0, 0, 99, 0, 0},
	HexTuple: {0, 0, 0, 0, 0, 0, 0, 0, 70, 0, 0, 99, 0},
	Void:     {0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 99},
}

// Priority returns the matrix cell for from -> to.
func Priority(from, to BaseType) int {
	if from >= numBaseTypes || to >= numBaseTypes {
		return NoCast
	}
	return int(castPriority[from][to])
}

// CanCast reports whether from converts implicitly to to.
func CanCast(from, to BaseType) bool {
	return Priority(from, to) != NoCast
}

// FindCast returns the candidate that source converts to with the highest
// priority, or Nil when no candidate is reachable. Ties go to the earliest
// candidate, so the result depends only on the arguments.
func FindCast(source BaseType, candidates []BaseType) BaseType {
	best := Nil
	bestPri := NoCast
	for _, c := range candidates {
		if p := Priority(source, c); p > bestPri {
			best, bestPri = c, p
		}
	}
	return best
}

// NeedsInstruction reports whether converting from -> to emits code.
// Point, vector and normal reinterpret each other for free, and integers
// are carried as floats.
func NeedsInstruction(from, to BaseType) bool {
	if from == to {
		return false
	}
	if from.IsSpatial() && to.IsSpatial() {
		return false
	}
	if from == Integer && to == Float {
		return false
	}
	return true
}

// DefaultResolution is the concrete type a transient type takes when no
// context asks for anything.
func DefaultResolution(b BaseType) BaseType {
	switch b {
	case Triple, HPoint:
		return Point
	case HexTuple:
		return Matrix
	}
	return b
}
