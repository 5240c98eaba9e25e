package points

import "errors"

// Sentinel kinds for points engine errors.
var (
	ErrUnclassified = errors.New("race has no kind")
)
