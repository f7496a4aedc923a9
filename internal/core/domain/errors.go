package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. Adapters map them to transport status
// codes; callers test for them with IsKind.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrQueueUnavailable = errors.New("alert queue unavailable")
)

// WrapError tags err with kind and the failing operation. Both kind and err
// stay reachable through errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}
