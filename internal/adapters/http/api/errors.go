package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrDuplicate       = errors.New("already exists")
	ErrDeletionBlocked = errors.New("still referenced")
)

// wrapKind tags err with an API error kind so that both stay matchable.
func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
