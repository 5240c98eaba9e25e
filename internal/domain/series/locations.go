package series

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
)

// Locations manages the cities organizations take place in.
type Locations struct{ *base }

// Ensure returns the location for city, creating it on first use.
func (l *Locations) Ensure(ctx context.Context, city string) (model.Location, error) {
	city, err := cleanName(city)
	if err != nil {
		return model.Location{}, err
	}
	n, ok, err := l.store.FindNode(ctx, model.LabelLocation, graph.Props{model.PropCity: city})
	if err != nil {
		return model.Location{}, err
	}
	if !ok {
		if n, err = l.store.CreateNode(ctx, model.LabelLocation, graph.Props{model.PropCity: city}); err != nil {
			return model.Location{}, fmt.Errorf("create location: %w", err)
		}
	}
	return model.Location{ID: n.ID, City: city}, nil
}

// List returns every location by city.
func (l *Locations) List(ctx context.Context) ([]model.Location, error) {
	nodes, err := l.store.FindNodes(ctx, model.LabelLocation, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Location, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, model.Location{ID: n.ID, City: n.Props.String(model.PropCity)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out, nil
}

// Sweep removes locations and days no organization refers to.
func (l *Locations) Sweep(ctx context.Context) (int, error) {
	total := 0
	for _, label := range []string{model.LabelLocation, model.LabelDay} {
		n, err := l.sweep(ctx, label)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Categories manages age categories.
type Categories struct{ *base }

// Add creates a category. created is false when the name exists.
func (c *Categories) Add(ctx context.Context, name string, seq int) (cat model.Category, created bool, err error) {
	name, err = cleanName(name)
	if err != nil {
		return model.Category{}, false, err
	}
	if _, ok, err := c.store.FindNode(ctx, model.LabelCategory, graph.Props{model.PropName: name}); err != nil {
		return model.Category{}, false, err
	} else if ok {
		return model.Category{}, false, nil
	}
	n, err := c.store.CreateNode(ctx, model.LabelCategory, graph.Props{model.PropName: name, model.PropSeq: seq})
	if err != nil {
		return model.Category{}, false, fmt.Errorf("create category: %w", err)
	}
	return model.Category{ID: n.ID, Name: name, Seq: seq}, true, nil
}

// List returns the categories in seq order.
func (c *Categories) List(ctx context.Context) ([]model.Category, error) {
	nodes, err := c.store.FindNodes(ctx, model.LabelCategory, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Category, 0, len(nodes))
	for _, n := range nodes {
		seq, _ := n.Props.Int(model.PropSeq)
		out = append(out, model.Category{ID: n.ID, Name: n.Props.String(model.PropName), Seq: seq})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Remove deletes a category no person is assigned to. It returns false otherwise.
func (c *Categories) Remove(ctx context.Context, id string) (bool, error) {
	if _, err := c.node(ctx, id, model.LabelCategory); err != nil {
		return false, err
	}
	err := c.store.RemoveNode(ctx, id)
	switch {
	case err == nil:
		c.log.Info(ctx, "category removed", logger.String("category", id))
		return true, nil
	case errors.Is(err, graph.ErrHasRelations):
		return false, nil
	default:
		return false, err
	}
}
