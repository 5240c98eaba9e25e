// Package chain maintains the per-race arrival order of participants.
//
// Every participant carries at most one outgoing "precedes" edge to the
// participant that arrived immediately before it. The first arrival (tail)
// has no outgoing edge, the most recent arrival (head) has no incoming edge.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
	"github.com/okian/raceseries/pkg/metrics"
)

// After selects the insert position: a person id, or First.
type After string

// First inserts before every existing arrival.
const First After = After(model.FirstPosition)

// AfterPerson inserts immediately after the arrival of personID.
func AfterPerson(personID string) After { return After(personID) }

// Manager reads and mutates arrival chains. It does not serialize callers;
// mutations of one race must not interleave.
type Manager struct {
	store    graph.Store
	rescorer Rescorer
	log      logger.Logger
}

// NewManager creates a chain manager over store.
func NewManager(store graph.Store, opts ...Option) *Manager {
	m := &Manager{store: store}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get().Named("chain")
	}
	return m
}

// Chain returns participant ids head to tail, most recent arrival first.
func (m *Manager) Chain(ctx context.Context, raceID string) ([]string, error) {
	a, err := m.load(ctx, raceID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out, nil
}

// Arrivals returns participant ids in arrival order, first arrival first.
func (m *Manager) Arrivals(ctx context.Context, raceID string) ([]string, error) {
	a, err := m.load(ctx, raceID)
	if err != nil {
		return nil, err
	}
	return a.arrivals(), nil
}

// FirstArrival returns the chain tail.
func (m *Manager) FirstArrival(ctx context.Context, raceID string) (string, bool, error) {
	a, err := m.load(ctx, raceID)
	if err != nil || a.tail == "" {
		return "", false, err
	}
	return a.tail, true, nil
}

// LastArrival returns the chain head.
func (m *Manager) LastArrival(ctx context.Context, raceID string) (string, bool, error) {
	a, err := m.load(ctx, raceID)
	if err != nil || a.head == "" {
		return "", false, err
	}
	return a.head, true, nil
}

// Count returns the number of participants in the race.
func (m *Manager) Count(ctx context.Context, raceID string) (int, error) {
	if err := m.mustBe(ctx, raceID, model.LabelRace); err != nil {
		return 0, err
	}
	ids, err := m.store.StartNodes(ctx, raceID, model.RelParticipates)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ParticipantOf returns the participant linking personID to raceID.
func (m *Manager) ParticipantOf(ctx context.Context, raceID, personID string) (string, bool, error) {
	parts, err := m.store.EndNodes(ctx, personID, model.RelIs)
	if err != nil {
		return "", false, err
	}
	for _, pid := range parts {
		rid, ok, err := m.store.EndNode(ctx, pid, model.RelParticipates)
		if err != nil {
			return "", false, err
		}
		if ok && rid == raceID {
			return pid, true, nil
		}
	}
	return "", false, nil
}

// Neighbours returns the participants that arrived immediately before and
// after participantID. Missing neighbours are empty strings.
func (m *Manager) Neighbours(ctx context.Context, participantID string) (before, after string, err error) {
	if err := m.mustBe(ctx, participantID, model.LabelParticipant); err != nil {
		return "", "", err
	}
	before, _, err = m.store.EndNode(ctx, participantID, model.RelPrecedes)
	if err != nil {
		return "", "", err
	}
	after, _, err = m.store.StartNode(ctx, participantID, model.RelPrecedes)
	if err != nil {
		return "", "", err
	}
	return before, after, nil
}

// Insert attaches personID to raceID at the given position and rescores the
// race. It returns the new participant id.
func (m *Manager) Insert(ctx context.Context, raceID, personID string, after After) (string, error) {
	if err := m.mustBe(ctx, raceID, model.LabelRace); err != nil {
		return "", err
	}
	if err := m.mustBe(ctx, personID, model.LabelPerson); err != nil {
		return "", err
	}
	if _, ok, err := m.ParticipantOf(ctx, raceID, personID); err != nil {
		return "", err
	} else if ok {
		return "", fmt.Errorf("insert %s into race %s: %w", personID, raceID, ErrAlreadyInRace)
	}

	a, err := m.load(ctx, raceID)
	if err != nil {
		return "", err
	}

	// pred is the arrival the new participant follows, succ the one that
	// used to follow pred.
	var pred, succ string
	if after == First {
		succ = a.tail
	} else {
		p, ok, err := m.ParticipantOf(ctx, raceID, string(after))
		if err != nil {
			return "", err
		}
		if !ok {
			err := fmt.Errorf("insert after %s in race %s: %w", after, raceID, ErrNotInRace)
			m.log.Error(ctx, "insert position not in race",
				logger.String("race", raceID),
				logger.String("after", string(after)),
				logger.Error(err))
			return "", err
		}
		pred = p
		succ = a.succ[p]
	}

	part, err := m.store.CreateNode(ctx, model.LabelParticipant, nil)
	if err != nil {
		return "", fmt.Errorf("create participant: %w", err)
	}
	if err := m.store.CreateRelation(ctx, personID, model.RelIs, part.ID); err != nil {
		return "", fmt.Errorf("link person: %w", err)
	}
	if err := m.store.CreateRelation(ctx, part.ID, model.RelParticipates, raceID); err != nil {
		return "", fmt.Errorf("link race: %w", err)
	}
	if pred != "" && succ != "" {
		if err := m.store.RemoveRelation(ctx, succ, pred, model.RelPrecedes); err != nil {
			return "", fmt.Errorf("unlink %s: %w", succ, err)
		}
	}
	if pred != "" {
		if err := m.store.CreateRelation(ctx, part.ID, model.RelPrecedes, pred); err != nil {
			return "", fmt.Errorf("link predecessor: %w", err)
		}
	}
	if succ != "" {
		if err := m.store.CreateRelation(ctx, succ, model.RelPrecedes, part.ID); err != nil {
			return "", fmt.Errorf("link successor: %w", err)
		}
	}
	metrics.RecordChainInsert()
	m.log.Debug(ctx, "participant inserted",
		logger.String("race", raceID),
		logger.String("participant", part.ID),
		logger.String("after", pred),
		logger.String("before", succ))

	return part.ID, m.rescore(ctx, raceID)
}

// Remove deletes the participant, relinks its neighbours and rescores the race.
func (m *Manager) Remove(ctx context.Context, participantID string) error {
	if err := m.mustBe(ctx, participantID, model.LabelParticipant); err != nil {
		return err
	}
	raceID, hasRace, err := m.store.EndNode(ctx, participantID, model.RelParticipates)
	if err != nil {
		return err
	}
	var pred, succ string
	if hasRace {
		a, err := m.load(ctx, raceID)
		if err != nil {
			return err
		}
		pred, succ = a.pred[participantID], a.succ[participantID]
	}
	if pred != "" && succ != "" {
		if err := m.store.CreateRelation(ctx, succ, model.RelPrecedes, pred); err != nil {
			return fmt.Errorf("relink %s: %w", succ, err)
		}
	}
	if err := m.store.RemoveNodeForce(ctx, participantID); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	metrics.RecordChainRemove()
	m.log.Debug(ctx, "participant removed",
		logger.String("race", raceID),
		logger.String("participant", participantID))

	if !hasRace {
		return nil
	}
	return m.rescore(ctx, raceID)
}

func (m *Manager) load(ctx context.Context, raceID string) (*arena, error) {
	if err := m.mustBe(ctx, raceID, model.LabelRace); err != nil {
		return nil, err
	}
	a, err := loadArena(ctx, m.store, raceID)
	if errors.Is(err, ErrIntegrity) {
		metrics.RecordChainIntegrityError()
		m.log.Error(ctx, "arrival chain is corrupt",
			logger.String("race", raceID),
			logger.Error(err))
	}
	return a, err
}

func (m *Manager) rescore(ctx context.Context, raceID string) error {
	if m.rescorer == nil {
		return nil
	}
	if err := m.rescorer.RecomputeRace(ctx, raceID); err != nil {
		return fmt.Errorf("rescore race %s: %w", raceID, err)
	}
	return nil
}

// mustBe fails with graph.ErrNotFound unless nid resolves to a node with label.
func (m *Manager) mustBe(ctx context.Context, nid, label string) error {
	n, err := m.store.Node(ctx, nid)
	if err != nil {
		return err
	}
	if n.Label != label {
		return fmt.Errorf("%s %s: %w", label, nid, graph.ErrNotFound)
	}
	return nil
}
