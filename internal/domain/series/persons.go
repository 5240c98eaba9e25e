package series

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
)

// Persons manages registered runners. Names are unique.
type Persons struct{ *base }

// Add registers a person. created is false when the name is taken.
func (p *Persons) Add(ctx context.Context, name string) (person model.Person, created bool, err error) {
	name, err = cleanName(name)
	if err != nil {
		return model.Person{}, false, err
	}
	if _, ok, err := p.store.FindNode(ctx, model.LabelPerson, graph.Props{model.PropName: name}); err != nil {
		return model.Person{}, false, err
	} else if ok {
		return model.Person{}, false, nil
	}
	n, err := p.store.CreateNode(ctx, model.LabelPerson, graph.Props{model.PropName: name})
	if err != nil {
		return model.Person{}, false, fmt.Errorf("create person: %w", err)
	}
	p.log.Info(ctx, "person added", logger.String("person", n.ID), logger.String("name", name))
	return model.Person{ID: n.ID, Name: name}, true, nil
}

// Edit renames a person. It returns false when another person has the name.
func (p *Persons) Edit(ctx context.Context, id, name string) (bool, error) {
	n, err := p.node(ctx, id, model.LabelPerson)
	if err != nil {
		return false, err
	}
	name, err = cleanName(name)
	if err != nil {
		return false, err
	}
	other, ok, err := p.store.FindNode(ctx, model.LabelPerson, graph.Props{model.PropName: name})
	if err != nil {
		return false, err
	}
	if ok && other.ID != id {
		return false, nil
	}
	if n.Props.String(model.PropName) == name {
		return true, nil
	}
	return true, p.store.SetProperties(ctx, id, graph.Props{model.PropName: name})
}

// Get returns the person with sex, category and race count resolved.
func (p *Persons) Get(ctx context.Context, id string) (model.Person, error) {
	n, err := p.node(ctx, id, model.LabelPerson)
	if err != nil {
		return model.Person{}, err
	}
	return p.read(ctx, n)
}

func (p *Persons) read(ctx context.Context, n graph.Node) (model.Person, error) {
	person := model.Person{ID: n.ID, Name: n.Props.String(model.PropName)}
	sex, err := p.refName(ctx, n.ID, model.RelMF)
	if err != nil {
		return model.Person{}, err
	}
	person.Sex = model.Sex(sex)
	if cat, ok, err := p.store.EndNode(ctx, n.ID, model.RelInCategory); err != nil {
		return model.Person{}, err
	} else if ok {
		person.CategoryID = cat
	}
	parts, err := p.store.EndNodes(ctx, n.ID, model.RelIs)
	if err != nil {
		return model.Person{}, err
	}
	person.Races = len(parts)
	return person, nil
}

// List returns every person in Dutch name order.
func (p *Persons) List(ctx context.Context) ([]model.Person, error) {
	nodes, err := p.store.FindNodes(ctx, model.LabelPerson, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Person, 0, len(nodes))
	for _, n := range nodes {
		person, err := p.read(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, person)
	}
	sortPersons(out)
	return out, nil
}

// FindByName returns the person with exactly this name.
func (p *Persons) FindByName(ctx context.Context, name string) (model.Person, bool, error) {
	name, err := cleanName(name)
	if err != nil {
		return model.Person{}, false, err
	}
	n, ok, err := p.store.FindNode(ctx, model.LabelPerson, graph.Props{model.PropName: name})
	if err != nil || !ok {
		return model.Person{}, false, err
	}
	person, err := p.read(ctx, n)
	return person, err == nil, err
}

// SetSex links the person to the Heren or Dames node. SexUnknown unlinks.
func (p *Persons) SetSex(ctx context.Context, id string, sex model.Sex) error {
	if _, err := p.node(ctx, id, model.LabelPerson); err != nil {
		return err
	}
	target := ""
	switch sex {
	case model.Heren, model.Dames:
		ref, err := p.ref(ctx, model.LabelMF, string(sex))
		if err != nil {
			return err
		}
		target = ref
	case model.SexUnknown:
	default:
		return fmt.Errorf("%w: sex %q", ErrInvalidInput, sex)
	}
	return p.relink(ctx, id, model.RelMF, target)
}

// SetCategory assigns the person to an age category. An empty categoryID unassigns.
func (p *Persons) SetCategory(ctx context.Context, id, categoryID string) error {
	if _, err := p.node(ctx, id, model.LabelPerson); err != nil {
		return err
	}
	if categoryID != "" {
		if _, err := p.node(ctx, categoryID, model.LabelCategory); err != nil {
			return err
		}
	}
	return p.relink(ctx, id, model.RelInCategory, categoryID)
}

// Active reports whether the person participates in any race.
func (p *Persons) Active(ctx context.Context, id string) (bool, error) {
	if _, err := p.node(ctx, id, model.LabelPerson); err != nil {
		return false, err
	}
	parts, err := p.store.EndNodes(ctx, id, model.RelIs)
	if err != nil {
		return false, err
	}
	return len(parts) > 0, nil
}

// Remove deletes an inactive person. It returns false for an active person.
func (p *Persons) Remove(ctx context.Context, id string) (bool, error) {
	active, err := p.Active(ctx, id)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}
	if err := p.store.RemoveNodeForce(ctx, id); err != nil {
		return false, fmt.Errorf("remove person: %w", err)
	}
	p.log.Info(ctx, "person removed", logger.String("person", id))
	return true, nil
}

// Results lists the scored races of a person in date order.
func (p *Persons) Results(ctx context.Context, id string) ([]model.RaceResult, error) {
	if _, err := p.node(ctx, id, model.LabelPerson); err != nil {
		return nil, err
	}
	parts, err := p.store.EndNodes(ctx, id, model.RelIs)
	if err != nil {
		return nil, err
	}
	orgs, races := &Organizations{p.base}, &Races{p.base}
	results := []model.RaceResult{}
	for _, pid := range parts {
		part, err := p.store.Node(ctx, pid)
		if err != nil {
			return nil, err
		}
		raceID, ok, err := p.store.EndNode(ctx, pid, model.RelParticipates)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		race, err := races.Get(ctx, raceID)
		if err != nil {
			return nil, err
		}
		r := model.RaceResult{RaceID: race.ID, RaceName: race.Name, Kind: race.Kind}
		r.Points, _ = part.Props.Int(model.PropPoints)
		r.RelPos, _ = part.Props.Int(model.PropRelPos)
		if race.OrgID != "" {
			org, err := orgs.Get(ctx, race.OrgID)
			if err != nil {
				return nil, err
			}
			r.OrgID, r.OrgLabel, r.Date = org.ID, org.Label(), org.Date
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].Date.Equal(results[j].Date) {
			return results[i].Date.Before(results[j].Date)
		}
		return results[i].OrgLabel < results[j].OrgLabel
	})
	return results, nil
}

// SeasonTotal is the season score of a person under the engine's rule.
func (p *Persons) SeasonTotal(ctx context.Context, id string) (int, error) {
	results, err := p.Results(ctx, id)
	if err != nil {
		return 0, err
	}
	pts := make([]int, 0, len(results))
	for _, r := range results {
		pts = append(pts, r.Points)
	}
	return p.engine.SeasonPoints(pts), nil
}
