package worldgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mirage/server/internal/ringmap"
)

var (
	// ErrInvalidParameter matches configuration errors such as a non-positive map size.
	ErrInvalidParameter = ringmap.ErrInvalidParameter
	// ErrInvalidInput matches coordinates or world IDs that are not integers.
	ErrInvalidInput = errors.New("invalid input")
)

// InputError reports a generation input that could not be read as an integer.
type InputError struct {
	Name string
	Raw  string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %s=%q: must be an integer", e.Name, e.Raw)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidInput) match any InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ParseCoordinate parses a tile coordinate. Fractional, empty and overflowing
// values are rejected, never truncated.
func ParseCoordinate(name, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &InputError{Name: name, Raw: raw, Err: err}
	}
	return v, nil
}

// ParseWorldID parses a world identifier.
func ParseWorldID(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &InputError{Name: "world_id", Raw: raw, Err: err}
	}
	return v, nil
}
