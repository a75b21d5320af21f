package domain

import (
	"errors"
	"fmt"
)

// Two error classes cross the application boundary: ErrInvalidInput maps to a
// client error with nothing persisted, ErrNotFound to a missing resource.
// Anything else is a store failure.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrTableNotFound    = fmt.Errorf("table %w", ErrNotFound)
	ErrMenuItemNotFound = fmt.Errorf("menu item %w", ErrNotFound)

	ErrTableInactive     = fmt.Errorf("table is not active: %w", ErrInvalidInput)
	ErrNoItems           = fmt.Errorf("order needs at least one item: %w", ErrInvalidInput)
	ErrInvalidQuantity   = fmt.Errorf("quantity must be at least 1: %w", ErrInvalidInput)
	ErrMissingField      = fmt.Errorf("missing required field: %w", ErrInvalidInput)
	ErrInvalidStatus     = fmt.Errorf("not a valid order status: %w", ErrInvalidInput)
	ErrInvalidTransition = fmt.Errorf("illegal status transition: %w", ErrInvalidInput)
)
