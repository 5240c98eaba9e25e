package series

import (
	"context"
	"fmt"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
)

// Participants manages arrivals. Ordering lives in the chain manager.
type Participants struct{ *base }

// Add inserts personID into the race after the given arrival and returns the
// scored participant.
func (p *Participants) Add(ctx context.Context, raceID, personID string, after chain.After) (model.Participant, error) {
	pid, err := p.chain.Insert(ctx, raceID, personID, after)
	if err != nil {
		return model.Participant{}, err
	}
	return p.Get(ctx, pid)
}

// Edit sets the user properties pos and remark. An empty value deletes the
// key. Calculated and unknown properties are rejected.
func (p *Participants) Edit(ctx context.Context, id string, props map[string]string) error {
	n, err := p.node(ctx, id, model.LabelParticipant)
	if err != nil {
		return err
	}
	for k := range props {
		if model.IsCalculated(k) {
			return fmt.Errorf("%s: %w", k, ErrCalculatedProperty)
		}
		if !model.IsUserProp(k) {
			return fmt.Errorf("%w: participant property %q", ErrInvalidInput, k)
		}
	}
	next := n.Props.Clone()
	for k, v := range props {
		if v == "" {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	if err := p.store.UpdateProperties(ctx, id, next); err != nil {
		return fmt.Errorf("edit participant: %w", err)
	}
	return nil
}

// Remove detaches the participant from its race and rescores.
func (p *Participants) Remove(ctx context.Context, id string) error {
	if err := p.chain.Remove(ctx, id); err != nil {
		return err
	}
	p.log.Info(ctx, "participant removed", logger.String("participant", id))
	return nil
}

// Get returns the participant with person and race resolved.
func (p *Participants) Get(ctx context.Context, id string) (model.Participant, error) {
	n, err := p.node(ctx, id, model.LabelParticipant)
	if err != nil {
		return model.Participant{}, err
	}
	return p.read(ctx, n)
}

func (p *Participants) read(ctx context.Context, n graph.Node) (model.Participant, error) {
	part := model.Participant{
		ID:     n.ID,
		Pos:    n.Props.String(model.PropPos),
		Remark: n.Props.String(model.PropRemark),
	}
	part.Points, _ = n.Props.Int(model.PropPoints)
	part.RelPos, _ = n.Props.Int(model.PropRelPos)
	var err error
	if part.RaceID, _, err = p.store.EndNode(ctx, n.ID, model.RelParticipates); err != nil {
		return part, err
	}
	personID, ok, err := p.store.StartNode(ctx, n.ID, model.RelIs)
	if err != nil || !ok {
		return part, err
	}
	person, err := p.store.Node(ctx, personID)
	if err != nil {
		return part, err
	}
	part.PersonID, part.PersonName = personID, person.Props.String(model.PropName)
	sex, err := p.refName(ctx, personID, model.RelMF)
	if err != nil {
		return part, err
	}
	part.Sex = model.Sex(sex)
	return part, nil
}

// List returns the participants of a race in arrival order.
func (p *Participants) List(ctx context.Context, raceID string) ([]model.Participant, error) {
	ids, err := p.chain.Arrivals(ctx, raceID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Participant, 0, len(ids))
	for _, id := range ids {
		part, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

// NextCandidates lists the persons that do not yet run any race of the
// organization raceID belongs to, in name order.
func (p *Participants) NextCandidates(ctx context.Context, raceID string) ([]model.Person, error) {
	race, err := (&Races{p.base}).Get(ctx, raceID)
	if err != nil {
		return nil, err
	}
	races := []string{raceID}
	if race.OrgID != "" {
		if races, err = p.store.EndNodes(ctx, race.OrgID, model.RelHas); err != nil {
			return nil, err
		}
	}
	taken := map[string]bool{}
	for _, rid := range races {
		parts, err := p.store.StartNodes(ctx, rid, model.RelParticipates)
		if err != nil {
			return nil, err
		}
		for _, pid := range parts {
			person, ok, err := p.store.StartNode(ctx, pid, model.RelIs)
			if err != nil {
				return nil, err
			}
			if ok {
				taken[person] = true
			}
		}
	}
	all, err := (&Persons{p.base}).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Person, 0, len(all))
	for _, person := range all {
		if !taken[person.ID] {
			out = append(out, person)
		}
	}
	return out, nil
}
