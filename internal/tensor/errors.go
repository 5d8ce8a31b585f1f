package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is wrapped by every ShapeError.
var ErrShape = errors.New("tensor: shape mismatch")

var (
	errNegativeDim = errors.New("tensor: negative dimension")
	errMatTooLarge = errors.New("tensor: matrix too large")
)

// ShapeError reports an operation applied to operands of incompatible shape.
type ShapeError struct {
	Op   string
	Want []int
	Got  []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("tensor: %s: shape mismatch: want %v, got %v", e.Op, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}
