package graph

import "errors"

// Sentinel kinds for graph store errors.
var (
	ErrNotFound        = errors.New("node not found")
	ErrHasRelations    = errors.New("node has relations")
	ErrInvalidLabel    = errors.New("invalid label or relation type")
	ErrInvalidProperty = errors.New("invalid property")
	ErrClosed          = errors.New("store closed")
)
