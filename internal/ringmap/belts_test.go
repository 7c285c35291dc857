package ringmap

import (
	"errors"
	"math"
	"testing"
)

func TestBeltIndex(t *testing.T) {
	tests := []struct {
		name     string
		x, y     int
		size     int
		belts    int
		expected int
	}{
		{"center", 0, 0, 240, 100, 100},
		{"next to center", -1, 0, 240, 100, 100},
		{"mid ring", 10, -3, 240, 100, 92},
		{"middle distance", -50, 20, 240, 100, 59},
		{"edge", 120, 0, 240, 100, 1},
		{"one inside edge", 119, 119, 240, 100, 2},
		{"outside map clamps", 500, -500, 240, 100, 1},
		{"odd size", 0, 40, 135, 100, 42},
		{"small map", -1, 0, 10, 100, 84},
		{"single belt", 3, 3, 240, 1, 1},
		{"size one", 0, 0, 1, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := BeltIndex(tt.x, tt.y, tt.size, tt.belts)
			if err != nil {
				t.Fatalf("BeltIndex returned error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("BeltIndex(%d, %d, %d, %d) = %d, expected %d",
					tt.x, tt.y, tt.size, tt.belts, result, tt.expected)
			}
		})
	}
}

func TestBeltIndexBounds(t *testing.T) {
	for _, size := range []int{1, 2, 3, 10, 135, 240} {
		for x := -size; x <= size; x++ {
			for y := -size; y <= size; y += 7 {
				belt, err := BeltIndex(x, y, size, DefaultBelts)
				if err != nil {
					t.Fatalf("BeltIndex(%d, %d, %d) returned error: %v", x, y, size, err)
				}
				if belt < 1 || belt > DefaultBelts {
					t.Fatalf("BeltIndex(%d, %d, %d) = %d, outside [1, %d]", x, y, size, belt, DefaultBelts)
				}
			}
		}
	}
}

func TestBeltIndexMonotonic(t *testing.T) {
	const size = 240
	for _, y := range []int{0, 17, -60, 119} {
		prev := math.MaxInt
		for x := 0; x <= size; x++ {
			for _, signed := range []int{x, -x} {
				belt, err := BeltIndex(signed, y, size, DefaultBelts)
				if err != nil {
					t.Fatalf("BeltIndex returned error: %v", err)
				}
				if belt > prev {
					t.Fatalf("belt increased moving outward at x=%d y=%d: %d > %d", signed, y, belt, prev)
				}
			}
			belt, _ := BeltIndex(x, y, size, DefaultBelts)
			prev = belt
		}
	}
}

func TestBeltIndexExtremeCoordinates(t *testing.T) {
	for _, v := range []int{math.MinInt, math.MaxInt, math.MinInt + 1} {
		belt, err := BeltIndex(v, 0, 240, DefaultBelts)
		if err != nil {
			t.Fatalf("BeltIndex(%d) returned error: %v", v, err)
		}
		if belt != 1 {
			t.Errorf("BeltIndex(%d) = %d, expected 1", v, belt)
		}
	}
}

func TestBeltIndexInvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		belts int
		param string
	}{
		{"zero size", 0, 100, "size"},
		{"negative size", -4, 100, "size"},
		{"zero belts", 240, 0, "belts"},
		{"negative belts", 240, -1, "belts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BeltIndex(0, 0, tt.size, tt.belts)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
			var paramErr *ParameterError
			if !errors.As(err, &paramErr) {
				t.Fatalf("expected *ParameterError, got %T", err)
			}
			if paramErr.Name != tt.param {
				t.Errorf("expected parameter %q, got %q", tt.param, paramErr.Name)
			}
		})
	}
}

func TestIsOnPathOfAscension(t *testing.T) {
	tests := []struct {
		x, y     int
		expected bool
	}{
		{5, 5, true},
		{5, -5, true},
		{-5, 5, true},
		{5, 3, false},
		{0, 0, true},
		{0, 1, false},
	}

	for _, tt := range tests {
		if got := IsOnPathOfAscension(tt.x, tt.y); got != tt.expected {
			t.Errorf("IsOnPathOfAscension(%d, %d) = %v, expected %v", tt.x, tt.y, got, tt.expected)
		}
	}
}
