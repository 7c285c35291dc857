package ringmap

// Wrap wraps v onto a toroidal axis of the given size, returning a value in [0, size).
// Handles negative values and values beyond size.
func Wrap(v, size int) (int, error) {
	if size <= 0 {
		return 0, &ParameterError{Name: "size", Value: size}
	}
	// Add size before the second modulo so negative remainders land in range
	return ((v % size) + size) % size, nil
}

// StepEast returns the x coordinate one tile in the +x direction, wrapped onto the map.
func StepEast(x, size int) (int, error) {
	return Wrap(x+1, size)
}
