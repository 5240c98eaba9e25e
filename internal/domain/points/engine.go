package points

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
	"github.com/okian/raceseries/pkg/metrics"
)

// Engine writes the calculated participant properties.
type Engine struct {
	store               graph.Store
	walker              Walker
	log                 logger.Logger
	bestRaces           int
	extraRaceBonus      int
	participationPoints int
}

// NewEngine creates a points engine over store.
func NewEngine(store graph.Store, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		bestRaces:           defaultBestRaces,
		extraRaceBonus:      defaultExtraRaceBonus,
		participationPoints: defaultParticipationPoints,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("points")
	}
	if e.walker == nil {
		e.walker = chain.NewManager(store, chain.WithLogger(e.log))
	}
	return e
}

// SeasonPoints applies the configured best-races rule.
func (e *Engine) SeasonPoints(points []int) int {
	return seasonPoints(points, e.bestRaces, e.extraRaceBonus)
}

// RecomputeRace rescores raceID. A participation race is scored alone; any
// other race rescores its whole organization since secondary races depend on
// the main race.
func (e *Engine) RecomputeRace(ctx context.Context, raceID string) error {
	kind, err := e.raceKind(ctx, raceID)
	if err != nil {
		return e.fail(ctx, raceID, err)
	}
	if kind == model.ParticipationRace {
		return e.scoreRace(ctx, raceID, kind, "")
	}
	orgID, ok, err := e.store.StartNode(ctx, raceID, model.RelHas)
	if err != nil {
		return e.fail(ctx, raceID, err)
	}
	if !ok {
		return e.scoreRace(ctx, raceID, kind, "")
	}
	return e.RecomputeOrganization(ctx, orgID)
}

// RecomputeOrganization rescores every race of the organization, the main
// race first.
func (e *Engine) RecomputeOrganization(ctx context.Context, orgID string) error {
	races, err := e.store.EndNodes(ctx, orgID, model.RelHas)
	if err != nil {
		return fmt.Errorf("races of organization %s: %w", orgID, err)
	}
	kinds := make(map[string]model.RaceKind, len(races))
	var mains []string
	for _, rid := range races {
		k, err := e.raceKind(ctx, rid)
		if err != nil {
			return e.fail(ctx, rid, err)
		}
		kinds[rid] = k
		if k == model.MainRace {
			mains = append(mains, rid)
		}
	}
	main := e.pickMain(ctx, orgID, mains)

	sort.SliceStable(races, func(i, j int) bool {
		return kinds[races[i]] == model.MainRace && kinds[races[j]] != model.MainRace
	})
	for _, rid := range races {
		if err := e.scoreRace(ctx, rid, kinds[rid], main); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeAll rescores every race: main races, then secondary races, then
// participation races. It returns the number of races scored.
func (e *Engine) RecomputeAll(ctx context.Context) (int, error) {
	nodes, err := e.store.FindNodes(ctx, model.LabelRace, nil)
	if err != nil {
		return 0, err
	}
	byKind := map[model.RaceKind][]string{}
	for _, n := range nodes {
		k, err := e.raceKind(ctx, n.ID)
		if err != nil {
			return 0, e.fail(ctx, n.ID, err)
		}
		byKind[k] = append(byKind[k], n.ID)
	}
	done := 0
	for _, k := range []model.RaceKind{model.MainRace, model.SecondaryRace, model.ParticipationRace} {
		for _, rid := range byKind[k] {
			main := ""
			if k == model.SecondaryRace {
				if main, err = e.mainRaceFor(ctx, rid); err != nil {
					return done, e.fail(ctx, rid, err)
				}
			}
			if err := e.scoreRace(ctx, rid, k, main); err != nil {
				return done, err
			}
			done++
		}
	}
	return done, nil
}

// scoreRace dispatches on kind. main is only used for secondary races.
func (e *Engine) scoreRace(ctx context.Context, raceID string, kind model.RaceKind, main string) error {
	start := time.Now()
	var err error
	switch kind {
	case model.MainRace:
		err = e.scoreMain(ctx, raceID)
	case model.SecondaryRace:
		err = e.scoreSecondary(ctx, raceID, main)
	case model.ParticipationRace:
		err = e.scoreParticipation(ctx, raceID)
	default:
		err = fmt.Errorf("race %s kind %q: %w", raceID, kind, ErrUnclassified)
	}
	if err != nil {
		return e.fail(ctx, raceID, err)
	}
	metrics.RecordRecomputeLatency(string(kind), float64(time.Since(start).Microseconds())/1000.0)
	return nil
}

// scoreMain ranks participants per sex in arrival order.
func (e *Engine) scoreMain(ctx context.Context, raceID string) error {
	arrivals, err := e.walker.Arrivals(ctx, raceID)
	if err != nil {
		return err
	}
	count := map[model.Sex]int{}
	for _, pid := range arrivals {
		sex, err := e.sexOf(ctx, pid)
		if err != nil {
			return err
		}
		count[sex]++
		rel := count[sex]
		if err := e.store.SetProperties(ctx, pid, graph.Props{
			model.PropPoints: Score(rel),
			model.PropRelPos: rel,
		}); err != nil {
			return fmt.Errorf("write points of %s: %w", pid, err)
		}
	}
	return nil
}

// scoreSecondary gives every participant the position right after the last
// finisher of their sex in the main race.
func (e *Engine) scoreSecondary(ctx context.Context, raceID, mainID string) error {
	inMain := map[model.Sex]int{}
	if mainID != "" {
		parts, err := e.store.StartNodes(ctx, mainID, model.RelParticipates)
		if err != nil {
			return err
		}
		for _, pid := range parts {
			sex, err := e.sexOf(ctx, pid)
			if err != nil {
				return err
			}
			inMain[sex]++
		}
	}
	parts, err := e.store.StartNodes(ctx, raceID, model.RelParticipates)
	if err != nil {
		return err
	}
	for _, pid := range parts {
		sex, err := e.sexOf(ctx, pid)
		if err != nil {
			return err
		}
		rel := inMain[sex] + 1
		if err := e.store.SetProperties(ctx, pid, graph.Props{
			model.PropPoints: Score(rel),
			model.PropRelPos: rel,
		}); err != nil {
			return fmt.Errorf("write points of %s: %w", pid, err)
		}
	}
	return nil
}

// scoreParticipation writes flat points and drops any relative position.
func (e *Engine) scoreParticipation(ctx context.Context, raceID string) error {
	parts, err := e.store.StartNodes(ctx, raceID, model.RelParticipates)
	if err != nil {
		return err
	}
	for _, pid := range parts {
		n, err := e.store.Node(ctx, pid)
		if err != nil {
			return err
		}
		props := n.Props.Clone()
		delete(props, model.PropRelPos)
		props[model.PropPoints] = e.participationPoints
		if err := e.store.UpdateProperties(ctx, pid, props); err != nil {
			return fmt.Errorf("write points of %s: %w", pid, err)
		}
	}
	return nil
}

// mainRaceFor finds the main race among the siblings of raceID, or "".
func (e *Engine) mainRaceFor(ctx context.Context, raceID string) (string, error) {
	orgID, ok, err := e.store.StartNode(ctx, raceID, model.RelHas)
	if err != nil || !ok {
		return "", err
	}
	races, err := e.store.EndNodes(ctx, orgID, model.RelHas)
	if err != nil {
		return "", err
	}
	var mains []string
	for _, rid := range races {
		k, err := e.raceKind(ctx, rid)
		if err != nil {
			return "", err
		}
		if k == model.MainRace {
			mains = append(mains, rid)
		}
	}
	return e.pickMain(ctx, orgID, mains), nil
}

// pickMain returns the lowest id when more than one main race exists.
func (e *Engine) pickMain(ctx context.Context, orgID string, mains []string) string {
	switch len(mains) {
	case 0:
		return ""
	case 1:
		return mains[0]
	}
	sorted := append([]string(nil), mains...)
	sort.Strings(sorted)
	e.log.Warn(ctx, "organization has more than one main race",
		logger.String("organization", orgID),
		logger.Int("main_races", len(sorted)),
		logger.String("using", sorted[0]))
	return sorted[0]
}

func (e *Engine) raceKind(ctx context.Context, raceID string) (model.RaceKind, error) {
	tid, ok, err := e.store.EndNode(ctx, raceID, model.RelType)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("race %s: %w", raceID, ErrUnclassified)
	}
	t, err := e.store.Node(ctx, tid)
	if err != nil {
		return "", err
	}
	kind := model.RaceKind(t.Props.String(model.PropName))
	if !kind.Valid() {
		return "", fmt.Errorf("race %s kind %q: %w", raceID, kind, ErrUnclassified)
	}
	return kind, nil
}

// sexOf resolves participant -> person -> MF. Unresolved is SexUnknown.
func (e *Engine) sexOf(ctx context.Context, participantID string) (model.Sex, error) {
	person, ok, err := e.store.StartNode(ctx, participantID, model.RelIs)
	if err != nil || !ok {
		return model.SexUnknown, err
	}
	return sexOfPerson(ctx, e.store, person)
}

func sexOfPerson(ctx context.Context, store graph.Store, personID string) (model.Sex, error) {
	mf, ok, err := store.EndNode(ctx, personID, model.RelMF)
	if err != nil || !ok {
		return model.SexUnknown, err
	}
	n, err := store.Node(ctx, mf)
	if err != nil {
		return model.SexUnknown, err
	}
	switch s := model.Sex(n.Props.String(model.PropName)); s {
	case model.Heren, model.Dames:
		return s, nil
	}
	return model.SexUnknown, nil
}

func (e *Engine) fail(ctx context.Context, raceID string, err error) error {
	metrics.RecordScoringError()
	e.log.Error(ctx, "points recompute failed",
		logger.String("race", raceID),
		logger.Error(err))
	return err
}
