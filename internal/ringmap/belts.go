package ringmap

import "math"

// DefaultBelts is the number of depth rings a map is divided into.
const DefaultBelts = 100

// BeltIndex maps a tile coordinate to its depth ring in [1, belts].
// Belt 1 is the outermost ring and belts is the map center. Coordinates are
// centered on the origin; anything outside [-size/2, size/2] clamps to belt 1.
func BeltIndex(x, y, size, belts int) (int, error) {
	if size <= 0 {
		return 0, &ParameterError{Name: "size", Value: size}
	}
	if belts <= 0 {
		return 0, &ParameterError{Name: "belts", Value: belts}
	}

	half := size / 2
	dx := half - absInt(x)
	dy := half - absInt(y)
	fromEdge := min(dx, dy) // 0 at the edge, half at the center

	// Float division and ceil must stay in this order, belt values are pinned by fixtures
	idx := int(math.Ceil(float64(fromEdge+1) / float64(half+1) * float64(belts)))
	if idx < 1 {
		return 1, nil
	}
	if idx > belts {
		return belts, nil
	}
	return idx, nil
}

// absInt saturates at math.MaxInt so math.MinInt stays far outside any map.
func absInt(v int) int {
	if v >= 0 {
		return v
	}
	if v == math.MinInt {
		return math.MaxInt
	}
	return -v
}
