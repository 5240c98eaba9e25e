package points

import (
	"context"
	"sort"

	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/internal/domain/types"
)

// Standings ranks every person of the given sex by season points, highest
// first. Persons without scored races are left out. Ties keep name order.
func (e *Engine) Standings(ctx context.Context, sex model.Sex) ([]types.Entry, error) {
	persons, err := e.store.FindNodes(ctx, model.LabelPerson, nil)
	if err != nil {
		return nil, err
	}
	entries := []types.Entry{}
	for _, p := range persons {
		s, err := sexOfPerson(ctx, e.store, p.ID)
		if err != nil {
			return nil, err
		}
		if s != sex {
			continue
		}
		pts, err := e.pointsOf(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(pts) == 0 {
			continue
		}
		entries = append(entries, types.Entry{
			PersonID: p.ID,
			Name:     p.Props.String(model.PropName),
			Points:   e.SeasonPoints(pts),
			Races:    len(pts),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Points > entries[j].Points })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// pointsOf collects the points of every scored participation of a person.
func (e *Engine) pointsOf(ctx context.Context, personID string) ([]int, error) {
	parts, err := e.store.EndNodes(ctx, personID, model.RelIs)
	if err != nil {
		return nil, err
	}
	var pts []int
	for _, pid := range parts {
		n, err := e.store.Node(ctx, pid)
		if err != nil {
			return nil, err
		}
		if v, ok := n.Props.Int(model.PropPoints); ok {
			pts = append(pts, v)
		}
	}
	return pts, nil
}
