package worldgen

import "unicode/utf16"

const (
	fnvOffsetBasis = 2166136261
	mulberryStep   = 0x6D2B79F5
	twoPow32       = 4294967296.0
)

// RNG is a string-seeded Mulberry32 generator.
// The seed hash and the mixing steps are fixed: golden fixtures and remote
// generators depend on the exact sample sequence. Not safe for concurrent use;
// every generation call owns its own RNG.
type RNG struct {
	state uint32
}

// NewRNG hashes seed into the initial generator state.
// Seeds are hashed as UTF-16 code units, matching browser clients.
func NewRNG(seed string) *RNG {
	units := utf16.Encode([]rune(seed))
	h := uint32(fnvOffsetBasis) ^ uint32(len(units))
	for _, u := range units {
		h ^= uint32(u)
		h += (h << 1) + (h << 4) + (h << 7) + (h << 8) + (h << 24)
	}
	return &RNG{state: h}
}

// Next returns the next sample in [0, 1).
func (r *RNG) Next() float64 {
	r.state += mulberryStep
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / twoPow32
}

// Intn returns floor(Next()*n), the way every categorical draw is taken.
func (r *RNG) Intn(n int) int {
	return int(r.Next() * float64(n))
}
