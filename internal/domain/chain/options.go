package chain

import (
	"context"

	"github.com/okian/raceseries/pkg/logger"
)

// Rescorer recomputes the calculated participant properties of a race.
type Rescorer interface {
	RecomputeRace(ctx context.Context, raceID string) error
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithLogger sets the logger used for integrity diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRescorer sets the component invoked after every chain mutation.
func WithRescorer(r Rescorer) Option {
	return func(m *Manager) {
		m.rescorer = r
	}
}
