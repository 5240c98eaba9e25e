package series

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
)

// OrgInput carries the user-editable fields of an organization.
type OrgInput struct {
	Name string
	City string
	Date time.Time
	Kind model.OrgKind
}

func (in OrgInput) clean() (OrgInput, error) {
	var err error
	if in.Name, err = cleanName(in.Name); err != nil {
		return in, err
	}
	if in.City, err = cleanName(in.City); err != nil {
		return in, fmt.Errorf("%w: empty city", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return in, fmt.Errorf("%w: missing date", ErrInvalidInput)
	}
	if in.Kind == "" {
		in.Kind = model.Competition
	}
	if !in.Kind.Valid() {
		return in, fmt.Errorf("%w: organization kind %q", ErrInvalidInput, in.Kind)
	}
	return in, nil
}

// Organizations manages events. Name, location and date together are unique.
type Organizations struct{ *base }

// Add registers an organization. created is false when name, city and date
// already exist.
func (o *Organizations) Add(ctx context.Context, in OrgInput) (org model.Organization, created bool, err error) {
	in, err = in.clean()
	if err != nil {
		return model.Organization{}, false, err
	}
	if _, ok, err := o.find(ctx, in); err != nil {
		return model.Organization{}, false, err
	} else if ok {
		return model.Organization{}, false, nil
	}
	n, err := o.store.CreateNode(ctx, model.LabelOrganization, graph.Props{model.PropName: in.Name})
	if err != nil {
		return model.Organization{}, false, fmt.Errorf("create organization: %w", err)
	}
	if err := o.link(ctx, n.ID, in); err != nil {
		return model.Organization{}, false, err
	}
	o.log.Info(ctx, "organization added",
		logger.String("organization", n.ID),
		logger.String("name", in.Name),
		logger.String("city", in.City))
	return model.Organization{ID: n.ID, Name: in.Name, City: in.City, Date: dayOf(in.Date), Kind: in.Kind}, true, nil
}

func (o *Organizations) link(ctx context.Context, id string, in OrgInput) error {
	loc, err := (&Locations{o.base}).Ensure(ctx, in.City)
	if err != nil {
		return err
	}
	if err := o.relink(ctx, id, model.RelIn, loc.ID); err != nil {
		return err
	}
	day, err := o.day(ctx, in.Date)
	if err != nil {
		return err
	}
	if err := o.relink(ctx, id, model.RelOn, day); err != nil {
		return err
	}
	kind, err := o.ref(ctx, model.LabelOrgType, string(in.Kind))
	if err != nil {
		return err
	}
	return o.relink(ctx, id, model.RelType, kind)
}

// find looks up an organization by name, city and date.
func (o *Organizations) find(ctx context.Context, in OrgInput) (string, bool, error) {
	nodes, err := o.store.FindNodes(ctx, model.LabelOrganization, graph.Props{model.PropName: in.Name})
	if err != nil {
		return "", false, err
	}
	key := dayOf(in.Date).Format(model.DayLayout)
	for _, n := range nodes {
		city, err := o.refCity(ctx, n.ID)
		if err != nil {
			return "", false, err
		}
		day, err := o.dayKey(ctx, n.ID)
		if err != nil {
			return "", false, err
		}
		if strings.EqualFold(city, in.City) && day == key {
			return n.ID, true, nil
		}
	}
	return "", false, nil
}

// Edit changes name, location, date and kind. It returns false when the new
// name, city and date belong to another organization.
func (o *Organizations) Edit(ctx context.Context, id string, in OrgInput) (bool, error) {
	current, err := o.Get(ctx, id)
	if err != nil {
		return false, err
	}
	in, err = in.clean()
	if err != nil {
		return false, err
	}
	other, ok, err := o.find(ctx, in)
	if err != nil {
		return false, err
	}
	if ok && other != id {
		return false, nil
	}
	if in.Kind != current.Kind {
		if err := o.checkRaceNames(ctx, id, in.Kind); err != nil {
			return false, err
		}
	}
	if current.Name != in.Name {
		if err := o.store.SetProperties(ctx, id, graph.Props{model.PropName: in.Name}); err != nil {
			return false, err
		}
	}
	kind := in.Kind
	in.Kind = current.Kind
	if err := o.link(ctx, id, in); err != nil {
		return false, err
	}
	if _, err := (&Locations{o.base}).Sweep(ctx); err != nil {
		return false, err
	}
	if kind != current.Kind {
		if err := o.SetKind(ctx, id, kind); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SetKind reclassifies the organization, re-kinds every race to the default
// kind of the new classification and rescores the organization. Setting the
// current kind changes nothing. It is refused when two races of the
// organization share a name, since they would end up with the same kind.
func (o *Organizations) SetKind(ctx context.Context, id string, kind model.OrgKind) error {
	if _, err := o.node(ctx, id, model.LabelOrganization); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: organization kind %q", ErrInvalidInput, kind)
	}
	current, err := o.refName(ctx, id, model.RelType)
	if err != nil {
		return err
	}
	if model.OrgKind(current) == kind {
		return nil
	}
	if err := o.checkRaceNames(ctx, id, kind); err != nil {
		return err
	}
	ref, err := o.ref(ctx, model.LabelOrgType, string(kind))
	if err != nil {
		return err
	}
	if err := o.relink(ctx, id, model.RelType, ref); err != nil {
		return err
	}
	raceKind, err := o.ref(ctx, model.LabelRaceType, string(kind.DefaultRaceKind()))
	if err != nil {
		return err
	}
	races, err := o.store.EndNodes(ctx, id, model.RelHas)
	if err != nil {
		return err
	}
	for _, rid := range races {
		if err := o.relink(ctx, rid, model.RelType, raceKind); err != nil {
			return err
		}
	}
	o.log.Info(ctx, "organization reclassified",
		logger.String("organization", id),
		logger.String("kind", string(kind)),
		logger.Int("races", len(races)))
	return o.engine.RecomputeOrganization(ctx, id)
}

// checkRaceNames refuses a reclassification that would leave two races of
// the organization with the same name and kind.
func (o *Organizations) checkRaceNames(ctx context.Context, id string, kind model.OrgKind) error {
	races, err := o.store.EndNodes(ctx, id, model.RelHas)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(races))
	for _, rid := range races {
		n, err := o.store.Node(ctx, rid)
		if err != nil {
			return err
		}
		name := n.Props.String(model.PropName)
		if seen[name] {
			return fmt.Errorf("%w: races named %q would both become %s", ErrKindNotAllowed, name, kind.DefaultRaceKind())
		}
		seen[name] = true
	}
	return nil
}

// Get returns the organization with its location, date and kind.
func (o *Organizations) Get(ctx context.Context, id string) (model.Organization, error) {
	n, err := o.node(ctx, id, model.LabelOrganization)
	if err != nil {
		return model.Organization{}, err
	}
	return o.read(ctx, n)
}

func (o *Organizations) read(ctx context.Context, n graph.Node) (model.Organization, error) {
	org := model.Organization{ID: n.ID, Name: n.Props.String(model.PropName)}
	var err error
	if org.City, err = o.refCity(ctx, n.ID); err != nil {
		return org, err
	}
	key, err := o.dayKey(ctx, n.ID)
	if err != nil {
		return org, err
	}
	if key != "" {
		if org.Date, err = time.Parse(model.DayLayout, key); err != nil {
			return org, fmt.Errorf("organization %s day %q: %w", n.ID, key, err)
		}
	}
	kind, err := o.refName(ctx, n.ID, model.RelType)
	if err != nil {
		return org, err
	}
	org.Kind = model.OrgKind(kind)
	return org, nil
}

// Label renders "name (city, DD-MM-YYYY)".
func (o *Organizations) Label(ctx context.Context, id string) (string, error) {
	org, err := o.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return org.Label(), nil
}

// List returns every organization by date, then name.
func (o *Organizations) List(ctx context.Context) ([]model.Organization, error) {
	nodes, err := o.store.FindNodes(ctx, model.LabelOrganization, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Organization, 0, len(nodes))
	for _, n := range nodes {
		org, err := o.read(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Remove deletes an organization without races and sweeps orphaned
// locations and days. It returns false when races remain.
func (o *Organizations) Remove(ctx context.Context, id string) (bool, error) {
	if _, err := o.node(ctx, id, model.LabelOrganization); err != nil {
		return false, err
	}
	races, err := o.store.EndNodes(ctx, id, model.RelHas)
	if err != nil {
		return false, err
	}
	if len(races) > 0 {
		return false, nil
	}
	if err := o.store.RemoveNodeForce(ctx, id); err != nil {
		return false, fmt.Errorf("remove organization: %w", err)
	}
	if _, err := (&Locations{o.base}).Sweep(ctx); err != nil {
		return true, err
	}
	o.log.Info(ctx, "organization removed", logger.String("organization", id))
	return true, nil
}

func (o *Organizations) refCity(ctx context.Context, id string) (string, error) {
	loc, ok, err := o.store.EndNode(ctx, id, model.RelIn)
	if err != nil || !ok {
		return "", err
	}
	n, err := o.store.Node(ctx, loc)
	if err != nil {
		return "", err
	}
	return n.Props.String(model.PropCity), nil
}

func (o *Organizations) dayKey(ctx context.Context, id string) (string, error) {
	day, ok, err := o.store.EndNode(ctx, id, model.RelOn)
	if err != nil || !ok {
		return "", err
	}
	n, err := o.store.Node(ctx, day)
	if err != nil {
		return "", err
	}
	return n.Props.String(model.PropKey), nil
}

// day returns the Day node for t, creating it on first use.
func (o *Organizations) day(ctx context.Context, t time.Time) (string, error) {
	key := dayOf(t).Format(model.DayLayout)
	n, ok, err := o.store.FindNode(ctx, model.LabelDay, graph.Props{model.PropKey: key})
	if err != nil {
		return "", err
	}
	if ok {
		return n.ID, nil
	}
	n, err = o.store.CreateNode(ctx, model.LabelDay, graph.Props{model.PropKey: key})
	if err != nil {
		return "", fmt.Errorf("create day %s: %w", key, err)
	}
	return n.ID, nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
