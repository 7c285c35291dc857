package ringmap

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is matched by every configuration error produced by the map helpers.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParameterError reports a map parameter (size, belt count) that is not strictly positive.
type ParameterError struct {
	Name  string
	Value int
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%d: must be positive", e.Name, e.Value)
}

// Is lets errors.Is(err, ErrInvalidParameter) match any ParameterError.
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}
