// Package service provides the race series service used by the HTTP API and
// the command line tools.
package service

import (
	"context"
	"sync"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/internal/domain/points"
	"github.com/okian/raceseries/internal/domain/series"
	"github.com/okian/raceseries/internal/domain/types"
	"github.com/okian/raceseries/pkg/logger"
	"github.com/okian/raceseries/pkg/metrics"
)

// Service serializes mutations over one graph store: one writer at a time,
// readers never observe a half-relinked chain.
type Service struct {
	mu sync.RWMutex

	store  graph.Store
	series *series.Series

	// Configuration
	bestRaces           int
	extraRaceBonus      int
	participationPoints int
	maxStandingsLimit   int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the graph store. Without it the service runs in memory.
func WithStore(store graph.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSeasonRule sets how many best races count and the bonus per extra race.
func WithSeasonRule(bestRaces, extraRaceBonus int) Option {
	return func(s *Service) {
		if bestRaces > 0 && extraRaceBonus >= 0 {
			s.bestRaces = bestRaces
			s.extraRaceBonus = extraRaceBonus
		}
	}
}

// WithParticipationPoints sets the flat score of participation races.
func WithParticipationPoints(p int) Option {
	return func(s *Service) {
		if p >= 0 {
			s.participationPoints = p
		}
	}
}

// WithMaxStandingsLimit caps the number of standings rows returned.
func WithMaxStandingsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxStandingsLimit = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		bestRaces:           7,
		extraRaceBonus:      10,
		participationPoints: 20,
		maxStandingsLimit:   500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the domain components and seeds the classification nodes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = graph.NewInstrumented(graph.NewMemoryStore(), "memory")
		s.logger.Info(ctx, "using in-memory graph store")
	}

	engine := points.NewEngine(s.store,
		points.WithLogger(s.logger.Named("points")),
		points.WithSeasonRule(s.bestRaces, s.extraRaceBonus),
		points.WithParticipationPoints(s.participationPoints),
	)
	manager := chain.NewManager(s.store,
		chain.WithLogger(s.logger.Named("chain")),
		chain.WithRescorer(engine),
	)
	s.series = series.New(s.store,
		series.WithLogger(s.logger.Named("series")),
		series.WithEngine(engine),
		series.WithChain(manager),
	)
	if err := s.series.Seed(ctx); err != nil {
		return err
	}

	s.started = true
	s.logger.Info(ctx, "race series service started",
		logger.Int("bestRaces", s.bestRaces),
		logger.Int("extraRaceBonus", s.extraRaceBonus),
		logger.Int("participationPoints", s.participationPoints),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "closing store failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "race series service stopped")
}

// read runs fn under the shared lock.
func (s *Service) read(fn func(*series.Series) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return fn(s.series)
}

// write runs fn as the single writer.
func (s *Service) write(fn func(*series.Series) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	return fn(s.series)
}

// Persons

// AddPerson registers a person. created is false when the name is taken.
func (s *Service) AddPerson(ctx context.Context, name string, sex model.Sex) (p model.Person, created bool, err error) {
	err = s.write(func(sr *series.Series) error {
		if p, created, err = sr.Persons.Add(ctx, name); err != nil || !created {
			return err
		}
		if sex == model.SexUnknown {
			return nil
		}
		p.Sex = sex
		return sr.Persons.SetSex(ctx, p.ID, sex)
	})
	return p, created, err
}

// SetPersonSex changes the scoring category of a person.
func (s *Service) SetPersonSex(ctx context.Context, id string, sex model.Sex) error {
	return s.write(func(sr *series.Series) error {
		if err := sr.Persons.SetSex(ctx, id, sex); err != nil {
			return err
		}
		// Relative positions depend on the sex of every arrival.
		_, err := sr.Engine().RecomputeAll(ctx)
		return err
	})
}

// RenamePerson renames a person. It returns false when the name is taken.
func (s *Service) RenamePerson(ctx context.Context, id, name string) (ok bool, err error) {
	err = s.write(func(sr *series.Series) error {
		ok, err = sr.Persons.Edit(ctx, id, name)
		return err
	})
	return ok, err
}

// SetPersonCategory assigns a person to an age category; an empty id unassigns.
func (s *Service) SetPersonCategory(ctx context.Context, id, categoryID string) error {
	return s.write(func(sr *series.Series) error {
		return sr.Persons.SetCategory(ctx, id, categoryID)
	})
}

// Persons lists every person.
func (s *Service) Persons(ctx context.Context) (out []model.Person, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Persons.List(ctx)
		return err
	})
	return out, err
}

// Person returns one person.
func (s *Service) Person(ctx context.Context, id string) (out model.Person, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Persons.Get(ctx, id)
		return err
	})
	return out, err
}

// PersonResults lists the scored races of a person.
func (s *Service) PersonResults(ctx context.Context, id string) (out []model.RaceResult, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Persons.Results(ctx, id)
		return err
	})
	return out, err
}

// RemovePerson deletes a person without participations.
func (s *Service) RemovePerson(ctx context.Context, id string) (removed bool, err error) {
	err = s.write(func(sr *series.Series) error {
		removed, err = sr.Persons.Remove(ctx, id)
		return err
	})
	return removed, err
}

// Categories

// AddCategory creates an age category. created is false when the name exists.
func (s *Service) AddCategory(ctx context.Context, name string, seq int) (c model.Category, created bool, err error) {
	err = s.write(func(sr *series.Series) error {
		c, created, err = sr.Categories.Add(ctx, name, seq)
		return err
	})
	return c, created, err
}

// Categories lists the age categories in order.
func (s *Service) Categories(ctx context.Context) (out []model.Category, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Categories.List(ctx)
		return err
	})
	return out, err
}

// RemoveCategory deletes a category no person is assigned to.
func (s *Service) RemoveCategory(ctx context.Context, id string) (removed bool, err error) {
	err = s.write(func(sr *series.Series) error {
		removed, err = sr.Categories.Remove(ctx, id)
		return err
	})
	return removed, err
}

// Organizations

// AddOrganization registers an organization. created is false on a duplicate.
func (s *Service) AddOrganization(ctx context.Context, in series.OrgInput) (o model.Organization, created bool, err error) {
	err = s.write(func(sr *series.Series) error {
		o, created, err = sr.Organizations.Add(ctx, in)
		return err
	})
	return o, created, err
}

// Organizations lists every organization by date.
func (s *Service) Organizations(ctx context.Context) (out []model.Organization, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Organizations.List(ctx)
		return err
	})
	return out, err
}

// EditOrganization changes name, city, date or kind. It returns false when
// the result would collide with another organization.
func (s *Service) EditOrganization(ctx context.Context, id string, in series.OrgInput) (ok bool, err error) {
	err = s.write(func(sr *series.Series) error {
		ok, err = sr.Organizations.Edit(ctx, id, in)
		return err
	})
	return ok, err
}

// Locations lists the cities organizations take place in.
func (s *Service) Locations(ctx context.Context) (out []model.Location, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Locations.List(ctx)
		return err
	})
	return out, err
}

// SetOrganizationKind reclassifies an organization and its races.
func (s *Service) SetOrganizationKind(ctx context.Context, id string, kind model.OrgKind) error {
	return s.write(func(sr *series.Series) error {
		return sr.Organizations.SetKind(ctx, id, kind)
	})
}

// RemoveOrganization deletes an organization without races.
func (s *Service) RemoveOrganization(ctx context.Context, id string) (removed bool, err error) {
	err = s.write(func(sr *series.Series) error {
		removed, err = sr.Organizations.Remove(ctx, id)
		return err
	})
	return removed, err
}

// Races

// AddRace creates a race in an organization.
func (s *Service) AddRace(ctx context.Context, orgID, name string, main bool) (r model.Race, created bool, err error) {
	err = s.write(func(sr *series.Series) error {
		r, created, err = sr.Races.Add(ctx, orgID, name, main)
		return err
	})
	return r, created, err
}

// RenameRace renames a race. It returns false when the organization already
// has a race with that name.
func (s *Service) RenameRace(ctx context.Context, id, name string) (ok bool, err error) {
	err = s.write(func(sr *series.Series) error {
		ok, err = sr.Races.Edit(ctx, id, name)
		return err
	})
	return ok, err
}

// Races lists the races of an organization.
func (s *Service) Races(ctx context.Context, orgID string) (out []model.Race, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Races.List(ctx, orgID)
		return err
	})
	return out, err
}

// RaceLabel renders "race (organization)".
func (s *Service) RaceLabel(ctx context.Context, id string) (out string, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Races.Label(ctx, id)
		return err
	})
	return out, err
}

// SetRaceKind reclassifies a race.
func (s *Service) SetRaceKind(ctx context.Context, id string, kind model.RaceKind) error {
	return s.write(func(sr *series.Series) error {
		return sr.Races.SetKind(ctx, id, kind)
	})
}

// RemoveRace deletes a race without participants.
func (s *Service) RemoveRace(ctx context.Context, id string) (removed bool, err error) {
	err = s.write(func(sr *series.Series) error {
		removed, err = sr.Races.Remove(ctx, id)
		return err
	})
	return removed, err
}

// Participants

// AddArrival inserts a person into a race after the given arrival.
func (s *Service) AddArrival(ctx context.Context, raceID, personID string, after chain.After) (p model.Participant, err error) {
	err = s.write(func(sr *series.Series) error {
		p, err = sr.Participants.Add(ctx, raceID, personID, after)
		return err
	})
	return p, err
}

// EditParticipant sets user properties of a participant.
func (s *Service) EditParticipant(ctx context.Context, id string, props map[string]string) error {
	return s.write(func(sr *series.Series) error {
		return sr.Participants.Edit(ctx, id, props)
	})
}

// RemoveParticipant removes an arrival and rescores the race.
func (s *Service) RemoveParticipant(ctx context.Context, id string) error {
	return s.write(func(sr *series.Series) error {
		return sr.Participants.Remove(ctx, id)
	})
}

// Arrivals lists the participants of a race in arrival order.
func (s *Service) Arrivals(ctx context.Context, raceID string) (out []model.Participant, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Participants.List(ctx, raceID)
		return err
	})
	return out, err
}

// NextCandidates lists the persons not yet running in the race's organization.
func (s *Service) NextCandidates(ctx context.Context, raceID string) (out []model.Person, err error) {
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Participants.NextCandidates(ctx, raceID)
		return err
	})
	return out, err
}

// Scoring

// Standings ranks the persons of one sex. limit <= 0 returns up to the
// configured maximum.
func (s *Service) Standings(ctx context.Context, sex model.Sex, limit int) (out []types.Entry, err error) {
	if limit <= 0 || limit > s.maxStandingsLimit {
		limit = s.maxStandingsLimit
	}
	err = s.read(func(sr *series.Series) error {
		out, err = sr.Engine().Standings(ctx, sex)
		return err
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Recalculate rescores every race and returns the number of races scored.
func (s *Service) Recalculate(ctx context.Context) (n int, err error) {
	err = s.write(func(sr *series.Series) error {
		n, err = sr.Engine().RecomputeAll(ctx)
		return err
	})
	if err == nil {
		s.logger.Info(ctx, "all races rescored", logger.Int("races", n))
	}
	return n, err
}

// Sweep removes locations and days no organization refers to.
func (s *Service) Sweep(ctx context.Context) (n int, err error) {
	err = s.write(func(sr *series.Series) error {
		n, err = sr.Locations.Sweep(ctx)
		return err
	})
	return n, err
}

// Seed creates the classification nodes. Start already does this.
func (s *Service) Seed(ctx context.Context) error {
	return s.write(func(sr *series.Series) error {
		return sr.Seed(ctx)
	})
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":             s.started,
		"bestRaces":           s.bestRaces,
		"extraRaceBonus":      s.extraRaceBonus,
		"participationPoints": s.participationPoints,
	}
	if !s.started {
		return stats
	}
	counts, err := s.series.Counts(context.Background())
	if err != nil {
		s.logger.Error(context.Background(), "counting entities failed", logger.Error(err))
		stats["error"] = err.Error()
		return stats
	}
	for entity, n := range counts {
		stats[entity] = n
		metrics.UpdateEntityTotal(entity, n)
	}
	return stats
}
