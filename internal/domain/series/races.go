package series

import (
	"context"
	"fmt"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
)

// Races manages the races of an organization. Name and kind together are
// unique within one organization.
type Races struct{ *base }

// Add creates a race in orgID. A main race is granted only to a competition
// without one; otherwise the race gets the organization's default kind.
// created is false when the organization already has a race with that name
// and the derived kind.
func (r *Races) Add(ctx context.Context, orgID, name string, main bool) (race model.Race, created bool, err error) {
	name, err = cleanName(name)
	if err != nil {
		return model.Race{}, false, err
	}
	org, err := (&Organizations{r.base}).Get(ctx, orgID)
	if err != nil {
		return model.Race{}, false, err
	}
	kind := org.Kind.DefaultRaceKind()
	if main && org.Kind == model.Competition {
		existing, err := r.mainOf(ctx, orgID)
		if err != nil {
			return model.Race{}, false, err
		}
		if existing == "" {
			kind = model.MainRace
		} else {
			r.log.Warn(ctx, "organization already has a main race",
				logger.String("organization", orgID),
				logger.String("main", existing))
		}
	}
	if _, ok, err := r.byName(ctx, orgID, name, kind); err != nil {
		return model.Race{}, false, err
	} else if ok {
		return model.Race{}, false, nil
	}
	n, err := r.store.CreateNode(ctx, model.LabelRace, graph.Props{model.PropName: name})
	if err != nil {
		return model.Race{}, false, fmt.Errorf("create race: %w", err)
	}
	if err := r.store.CreateRelation(ctx, orgID, model.RelHas, n.ID); err != nil {
		return model.Race{}, false, fmt.Errorf("link race: %w", err)
	}
	ref, err := r.ref(ctx, model.LabelRaceType, string(kind))
	if err != nil {
		return model.Race{}, false, err
	}
	if err := r.store.CreateRelation(ctx, n.ID, model.RelType, ref); err != nil {
		return model.Race{}, false, fmt.Errorf("link race kind: %w", err)
	}
	r.log.Info(ctx, "race added",
		logger.String("race", n.ID),
		logger.String("organization", orgID),
		logger.String("kind", string(kind)))
	return model.Race{ID: n.ID, OrgID: orgID, Name: name, Kind: kind}, true, nil
}

// Edit renames a race. It returns false when a sibling race of the same kind
// has the name.
func (r *Races) Edit(ctx context.Context, id, name string) (bool, error) {
	race, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	name, err = cleanName(name)
	if err != nil {
		return false, err
	}
	if race.Name == name {
		return true, nil
	}
	if other, ok, err := r.byName(ctx, race.OrgID, name, race.Kind); err != nil {
		return false, err
	} else if ok && other != id {
		return false, nil
	}
	return true, r.store.SetProperties(ctx, id, graph.Props{model.PropName: name})
}

// SetKind reclassifies a race and rescores its organization. A competition
// holds at most one main race; a participation-only organization holds
// participation races only.
func (r *Races) SetKind(ctx context.Context, id string, kind model.RaceKind) error {
	race, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: race kind %q", ErrInvalidInput, kind)
	}
	if race.Kind == kind {
		return nil
	}
	if race.OrgID != "" {
		org, err := (&Organizations{r.base}).Get(ctx, race.OrgID)
		if err != nil {
			return err
		}
		if org.Kind == model.ParticipationOnly && kind != model.ParticipationRace {
			return fmt.Errorf("%s in %s: %w", kind, org.Label(), ErrKindNotAllowed)
		}
		if other, ok, err := r.byName(ctx, race.OrgID, race.Name, kind); err != nil {
			return err
		} else if ok && other != id {
			return fmt.Errorf("%s %q exists in %s: %w", kind, race.Name, org.Label(), ErrKindNotAllowed)
		}
		if kind == model.MainRace {
			existing, err := r.mainOf(ctx, race.OrgID)
			if err != nil {
				return err
			}
			if existing != "" && existing != id {
				return fmt.Errorf("second main race in %s: %w", org.Label(), ErrKindNotAllowed)
			}
		}
	}
	ref, err := r.ref(ctx, model.LabelRaceType, string(kind))
	if err != nil {
		return err
	}
	if err := r.relink(ctx, id, model.RelType, ref); err != nil {
		return err
	}
	r.log.Info(ctx, "race reclassified",
		logger.String("race", id),
		logger.String("from", string(race.Kind)),
		logger.String("to", string(kind)))
	if race.OrgID != "" {
		return r.engine.RecomputeOrganization(ctx, race.OrgID)
	}
	return r.engine.RecomputeRace(ctx, id)
}

// Get returns the race with its organization and kind.
func (r *Races) Get(ctx context.Context, id string) (model.Race, error) {
	n, err := r.node(ctx, id, model.LabelRace)
	if err != nil {
		return model.Race{}, err
	}
	return r.read(ctx, n)
}

func (r *Races) read(ctx context.Context, n graph.Node) (model.Race, error) {
	race := model.Race{ID: n.ID, Name: n.Props.String(model.PropName)}
	orgID, _, err := r.store.StartNode(ctx, n.ID, model.RelHas)
	if err != nil {
		return race, err
	}
	race.OrgID = orgID
	kind, err := r.refName(ctx, n.ID, model.RelType)
	if err != nil {
		return race, err
	}
	race.Kind = model.RaceKind(kind)
	return race, nil
}

// Label renders "race (organization name)".
func (r *Races) Label(ctx context.Context, id string) (string, error) {
	race, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if race.OrgID == "" {
		return race.Name, nil
	}
	org, err := r.node(ctx, race.OrgID, model.LabelOrganization)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", race.Name, org.Props.String(model.PropName)), nil
}

// List returns the races of an organization, the main race first.
func (r *Races) List(ctx context.Context, orgID string) ([]model.Race, error) {
	if _, err := r.node(ctx, orgID, model.LabelOrganization); err != nil {
		return nil, err
	}
	ids, err := r.store.EndNodes(ctx, orgID, model.RelHas)
	if err != nil {
		return nil, err
	}
	out := make([]model.Race, 0, len(ids))
	for _, id := range ids {
		race, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if race.Kind == model.MainRace {
			out = append([]model.Race{race}, out...)
			continue
		}
		out = append(out, race)
	}
	return out, nil
}

// Remove deletes a race without participants. It returns false while
// participants remain. Removing the main race rescores the organization.
func (r *Races) Remove(ctx context.Context, id string) (bool, error) {
	race, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	parts, err := r.store.StartNodes(ctx, id, model.RelParticipates)
	if err != nil {
		return false, err
	}
	if len(parts) > 0 {
		return false, nil
	}
	if err := r.store.RemoveNodeForce(ctx, id); err != nil {
		return false, fmt.Errorf("remove race: %w", err)
	}
	r.log.Info(ctx, "race removed", logger.String("race", id))
	if race.Kind == model.MainRace && race.OrgID != "" {
		return true, r.engine.RecomputeOrganization(ctx, race.OrgID)
	}
	return true, nil
}

// byName finds the race of orgID with the given name and kind.
func (r *Races) byName(ctx context.Context, orgID, name string, kind model.RaceKind) (string, bool, error) {
	ids, err := r.store.EndNodes(ctx, orgID, model.RelHas)
	if err != nil {
		return "", false, err
	}
	for _, id := range ids {
		n, err := r.store.Node(ctx, id)
		if err != nil {
			return "", false, err
		}
		if n.Props.String(model.PropName) != name {
			continue
		}
		k, err := r.refName(ctx, id, model.RelType)
		if err != nil {
			return "", false, err
		}
		if model.RaceKind(k) == kind {
			return id, true, nil
		}
	}
	return "", false, nil
}

// mainOf returns the main race of orgID, or "" when there is none.
func (r *Races) mainOf(ctx context.Context, orgID string) (string, error) {
	ids, err := r.store.EndNodes(ctx, orgID, model.RelHas)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		kind, err := r.refName(ctx, id, model.RelType)
		if err != nil {
			return "", err
		}
		if model.RaceKind(kind) == model.MainRace {
			return id, nil
		}
	}
	return "", nil
}
