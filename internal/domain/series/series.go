// Package series exposes the race-domain operations on persons,
// organizations, races, participants and their reference nodes.
package series

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/internal/domain/points"
	"github.com/okian/raceseries/pkg/logger"
)

// Option applies a configuration option to New.
type Option func(*base)

// WithLogger sets the logger of every facade.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// WithEngine sets the points engine.
func WithEngine(e *points.Engine) Option {
	return func(b *base) {
		if e != nil {
			b.engine = e
		}
	}
}

// WithChain sets the arrival chain manager. It should rescore through the same engine.
func WithChain(m *chain.Manager) Option {
	return func(b *base) {
		if m != nil {
			b.chain = m
		}
	}
}

type base struct {
	store  graph.Store
	chain  *chain.Manager
	engine *points.Engine
	log    logger.Logger
}

// Series groups the entity facades over one store.
type Series struct {
	Persons       *Persons
	Organizations *Organizations
	Races         *Races
	Participants  *Participants
	Locations     *Locations
	Categories    *Categories

	b *base
}

// New wires the facades. Without options the engine and chain manager are
// built over store.
func New(store graph.Store, opts ...Option) *Series {
	b := &base{store: store}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Get().Named("series")
	}
	if b.engine == nil {
		b.engine = points.NewEngine(store)
	}
	if b.chain == nil {
		b.chain = chain.NewManager(store, chain.WithRescorer(b.engine))
	}
	return &Series{
		Persons:       &Persons{b},
		Organizations: &Organizations{b},
		Races:         &Races{b},
		Participants:  &Participants{b},
		Locations:     &Locations{b},
		Categories:    &Categories{b},
		b:             b,
	}
}

// Engine returns the points engine used by the facades.
func (s *Series) Engine() *points.Engine { return s.b.engine }

// Chain returns the arrival chain manager used by the facades.
func (s *Series) Chain() *chain.Manager { return s.b.chain }

// Counts returns the number of stored nodes per entity label.
func (s *Series) Counts(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, label := range []string{
		model.LabelPerson, model.LabelOrganization, model.LabelRace, model.LabelParticipant,
		model.LabelLocation, model.LabelCategory,
	} {
		nodes, err := s.b.store.FindNodes(ctx, label, nil)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(label)] = len(nodes)
	}
	return out, nil
}

// Seed creates the fixed classification nodes so lookups never need to.
func (s *Series) Seed(ctx context.Context) error {
	refs := map[string][]string{
		model.LabelMF:       {string(model.Heren), string(model.Dames)},
		model.LabelOrgType:  {string(model.Competition), string(model.ParticipationOnly)},
		model.LabelRaceType: {string(model.MainRace), string(model.SecondaryRace), string(model.ParticipationRace)},
	}
	for label, names := range refs {
		for _, n := range names {
			if _, err := s.b.ref(ctx, label, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// node loads nid and checks its label.
func (b *base) node(ctx context.Context, nid, label string) (graph.Node, error) {
	n, err := b.store.Node(ctx, nid)
	if err != nil {
		return graph.Node{}, err
	}
	if n.Label != label {
		return graph.Node{}, fmt.Errorf("%s %s: %w", label, nid, ErrNotFound)
	}
	return n, nil
}

// ref returns the reference node label{name}, creating it on first use.
func (b *base) ref(ctx context.Context, label, name string) (string, error) {
	n, ok, err := b.store.FindNode(ctx, label, graph.Props{model.PropName: name})
	if err != nil {
		return "", err
	}
	if ok {
		return n.ID, nil
	}
	n, err = b.store.CreateNode(ctx, label, graph.Props{model.PropName: name})
	if err != nil {
		return "", fmt.Errorf("create %s %s: %w", label, name, err)
	}
	return n.ID, nil
}

// relink replaces every from-[relType]-> edge with one to target. An empty
// target only removes.
func (b *base) relink(ctx context.Context, from, relType, target string) error {
	current, err := b.store.EndNodes(ctx, from, relType)
	if err != nil {
		return err
	}
	for _, id := range current {
		if id == target {
			continue
		}
		if err := b.store.RemoveRelation(ctx, from, id, relType); err != nil {
			return err
		}
	}
	if target == "" {
		return nil
	}
	return b.store.CreateRelation(ctx, from, relType, target)
}

// refName follows from-[relType]-> and returns the name of the end node.
func (b *base) refName(ctx context.Context, from, relType string) (string, error) {
	id, ok, err := b.store.EndNode(ctx, from, relType)
	if err != nil || !ok {
		return "", err
	}
	n, err := b.store.Node(ctx, id)
	if err != nil {
		return "", err
	}
	return n.Props.String(model.PropName), nil
}

// sweep removes nodes of label that have no relations left.
func (b *base) sweep(ctx context.Context, label string) (int, error) {
	nodes, err := b.store.FindNodes(ctx, label, nil)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range nodes {
		deg, err := b.store.Degree(ctx, n.ID)
		if err != nil {
			return removed, err
		}
		if deg > 0 {
			continue
		}
		if err := b.store.RemoveNode(ctx, n.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		b.log.Debug(ctx, "orphans removed", logger.String("label", label), logger.Int("count", removed))
	}
	return removed, nil
}

func cleanName(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	return s, nil
}

// sortPersons orders by name with Dutch collation.
func sortPersons(ps []model.Person) {
	c := collate.New(language.Dutch, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(ps, func(i, j int) bool {
		return c.CompareString(ps[i].Name, ps[j].Name) < 0
	})
}
