package chain

import "errors"

// Sentinel kinds for arrival chain errors.
var (
	ErrIntegrity     = errors.New("arrival chain integrity violation")
	ErrNotInRace     = errors.New("person is not a participant of the race")
	ErrAlreadyInRace = errors.New("person already participates in the race")
)
