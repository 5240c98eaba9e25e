package series

import (
	"errors"

	"github.com/okian/raceseries/internal/adapters/graph"
)

// Sentinel kinds for domain entity errors.
var (
	ErrNotFound           = graph.ErrNotFound
	ErrInvalidInput       = errors.New("invalid input")
	ErrCalculatedProperty = errors.New("calculated properties are engine-owned")
	ErrKindNotAllowed     = errors.New("race kind not allowed in organization")
)
