package points

import (
	"context"

	"github.com/okian/raceseries/pkg/logger"
)

// Default scoring configuration constants.
const (
	defaultBestRaces           = 7
	defaultExtraRaceBonus      = 10
	defaultParticipationPoints = 20
)

// Walker yields the participants of a race in arrival order.
type Walker interface {
	Arrivals(ctx context.Context, raceID string) ([]string, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithWalker sets the arrival order source. Defaults to a chain manager over the same store.
func WithWalker(w Walker) Option {
	return func(e *Engine) {
		if w != nil {
			e.walker = w
		}
	}
}

// WithSeasonRule sets how many best races count and the bonus per extra race.
func WithSeasonRule(bestRaces, extraRaceBonus int) Option {
	return func(e *Engine) {
		if bestRaces > 0 {
			e.bestRaces = bestRaces
		}
		if extraRaceBonus >= 0 {
			e.extraRaceBonus = extraRaceBonus
		}
	}
}

// WithParticipationPoints sets the flat points of a participation race.
func WithParticipationPoints(p int) Option {
	return func(e *Engine) {
		if p > 0 {
			e.participationPoints = p
		}
	}
}
