package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var day = time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)

type env struct {
	ctx   context.Context
	store *graph.MemoryStore
	s     *Series
}

func newEnv() *env {
	store := graph.NewMemoryStore()
	e := &env{ctx: context.Background(), store: store, s: New(store)}
	So(e.s.Seed(e.ctx), ShouldBeNil)
	return e
}

func (e *env) person(name string, sex model.Sex) string {
	p, created, err := e.s.Persons.Add(e.ctx, name)
	So(err, ShouldBeNil)
	So(created, ShouldBeTrue)
	if sex != model.SexUnknown {
		So(e.s.Persons.SetSex(e.ctx, p.ID, sex), ShouldBeNil)
	}
	return p.ID
}

func (e *env) org(name, city string, kind model.OrgKind) string {
	o, created, err := e.s.Organizations.Add(e.ctx, OrgInput{Name: name, City: city, Date: day, Kind: kind})
	So(err, ShouldBeNil)
	So(created, ShouldBeTrue)
	return o.ID
}

func (e *env) race(orgID, name string, main bool) model.Race {
	r, created, err := e.s.Races.Add(e.ctx, orgID, name, main)
	So(err, ShouldBeNil)
	So(created, ShouldBeTrue)
	return r
}

func (e *env) arrive(raceID string, persons ...string) []string {
	var out []string
	after := chain.First
	for _, p := range persons {
		part, err := e.s.Participants.Add(e.ctx, raceID, p, after)
		So(err, ShouldBeNil)
		out = append(out, part.ID)
		after = chain.AfterPerson(p)
	}
	return out
}

func (e *env) count(label string) int {
	nodes, err := e.store.FindNodes(e.ctx, label, nil)
	So(err, ShouldBeNil)
	return len(nodes)
}

func TestPersons(t *testing.T) {
	Convey("Given an empty series", t, func() {
		e := newEnv()

		Convey("When a person is added twice", func() {
			_, created, err := e.s.Persons.Add(e.ctx, "  Jan   Peeters ")
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			_, created, err = e.s.Persons.Add(e.ctx, "Jan Peeters")

			Convey("Then the second add reports a duplicate", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(e.count(model.LabelPerson), ShouldEqual, 1)
			})
		})

		Convey("When a blank name is added", func() {
			_, _, err := e.s.Persons.Add(e.ctx, "   ")
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a person is renamed onto another name", func() {
			a := e.person("An", model.Dames)
			e.person("Bert", model.Heren)
			ok, err := e.s.Persons.Edit(e.ctx, a, "Bert")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			ok, err = e.s.Persons.Edit(e.ctx, a, "Anna")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			p, err := e.s.Persons.Get(e.ctx, a)
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, "Anna")
			So(p.Sex, ShouldEqual, model.Dames)
		})

		Convey("When persons are listed", func() {
			e.person("Émile", model.Heren)
			e.person("bart", model.Heren)
			e.person("Daan", model.Heren)
			list, err := e.s.Persons.List(e.ctx)
			So(err, ShouldBeNil)
			names := []string{}
			for _, p := range list {
				names = append(names, p.Name)
			}

			Convey("Then they sort case and accent insensitively", func() {
				So(names, ShouldResemble, []string{"bart", "Daan", "Émile"})
			})
		})

		Convey("When sex and category are changed", func() {
			p := e.person("Chris", model.Heren)
			cat, _, err := e.s.Categories.Add(e.ctx, "Senioren", 2)
			So(err, ShouldBeNil)
			So(e.s.Persons.SetCategory(e.ctx, p, cat.ID), ShouldBeNil)
			So(e.s.Persons.SetSex(e.ctx, p, model.Dames), ShouldBeNil)

			got, err := e.s.Persons.Get(e.ctx, p)
			So(err, ShouldBeNil)
			So(got.Sex, ShouldEqual, model.Dames)
			So(got.CategoryID, ShouldEqual, cat.ID)

			Convey("Then the category cannot be removed while assigned", func() {
				ok, err := e.s.Categories.Remove(e.ctx, cat.ID)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)

				So(e.s.Persons.SetCategory(e.ctx, p, ""), ShouldBeNil)
				ok, err = e.s.Categories.Remove(e.ctx, cat.ID)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})

			Convey("Then clearing the sex unlinks it", func() {
				So(e.s.Persons.SetSex(e.ctx, p, model.SexUnknown), ShouldBeNil)
				got, err := e.s.Persons.Get(e.ctx, p)
				So(err, ShouldBeNil)
				So(got.Sex, ShouldEqual, model.SexUnknown)
			})
		})

		Convey("When an active person is removed", func() {
			o := e.org("Veldloop", "Gent", model.Competition)
			r := e.race(o, "10 km", true)
			p := e.person("Dirk", model.Heren)
			pids := e.arrive(r.ID, p)

			ok, err := e.s.Persons.Remove(e.ctx, p)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			Convey("Then removal succeeds once the person has left every race", func() {
				So(e.s.Participants.Remove(e.ctx, pids[0]), ShouldBeNil)
				ok, err := e.s.Persons.Remove(e.ctx, p)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				_, err = e.s.Persons.Get(e.ctx, p)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an id of another label is used", func() {
			o := e.org("Veldloop", "Gent", model.Competition)
			_, err := e.s.Persons.Get(e.ctx, o)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestOrganizations(t *testing.T) {
	Convey("Given an organization", t, func() {
		e := newEnv()
		o := e.org("Veldloop", "Gent", model.Competition)

		Convey("When the current kind is set again", func() {
			main := e.race(o, "10 km", true)
			pids := e.arrive(main.ID, e.person("Karel", model.Heren))
			So(e.s.Organizations.SetKind(e.ctx, o, model.Competition), ShouldBeNil)

			Convey("Then setting the same kind keeps the main race", func() {
				got, err := e.s.Races.Get(e.ctx, main.ID)
				So(err, ShouldBeNil)
				So(got.Kind, ShouldEqual, model.MainRace)
				part, err := e.s.Participants.Get(e.ctx, pids[0])
				So(err, ShouldBeNil)
				So(part.Points, ShouldEqual, 50)
				So(part.RelPos, ShouldEqual, 1)
			})
		})

		Convey("When a main and a secondary race share a name", func() {
			main := e.race(o, "10 km", true)
			e.race(o, "10 km", false)

			Convey("Then reclassifying the organization is refused and nothing changes", func() {
				err := e.s.Organizations.SetKind(e.ctx, o, model.ParticipationOnly)
				So(errors.Is(err, ErrKindNotAllowed), ShouldBeTrue)
				org, err := e.s.Organizations.Get(e.ctx, o)
				So(err, ShouldBeNil)
				So(org.Kind, ShouldEqual, model.Competition)
				got, err := e.s.Races.Get(e.ctx, main.ID)
				So(err, ShouldBeNil)
				So(got.Kind, ShouldEqual, model.MainRace)
			})
		})

		Convey("Then its label shows city and date", func() {
			label, err := e.s.Organizations.Label(e.ctx, o)
			So(err, ShouldBeNil)
			So(label, ShouldEqual, "Veldloop (Gent, 09-03-2024)")
		})

		Convey("Then name, city and date are unique together", func() {
			_, created, err := e.s.Organizations.Add(e.ctx, OrgInput{Name: "Veldloop", City: "Gent", Date: day})
			So(err, ShouldBeNil)
			So(created, ShouldBeFalse)

			_, created, err = e.s.Organizations.Add(e.ctx, OrgInput{Name: "Veldloop", City: "Gent", Date: day.AddDate(0, 0, 7)})
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			So(e.count(model.LabelLocation), ShouldEqual, 1)
			So(e.count(model.LabelDay), ShouldEqual, 2)
		})

		Convey("When it moves to another city", func() {
			ok, err := e.s.Organizations.Edit(e.ctx, o, OrgInput{Name: "Veldloop", City: "Brugge", Date: day, Kind: model.Competition})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("Then the old location is swept", func() {
				locs, err := e.s.Locations.List(e.ctx)
				So(err, ShouldBeNil)
				So(locs, ShouldHaveLength, 1)
				So(locs[0].City, ShouldEqual, "Brugge")
			})
		})

		Convey("When it has a race", func() {
			r := e.race(o, "10 km", true)

			Convey("Then it cannot be removed", func() {
				ok, err := e.s.Organizations.Remove(e.ctx, o)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("Then removing the race and the organization sweeps location and day", func() {
				ok, err := e.s.Races.Remove(e.ctx, r.ID)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				ok, err = e.s.Organizations.Remove(e.ctx, o)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(e.count(model.LabelLocation), ShouldEqual, 0)
				So(e.count(model.LabelDay), ShouldEqual, 0)
			})
		})

		Convey("When it is reclassified as participation only", func() {
			main := e.race(o, "10 km", true)
			side := e.race(o, "5 km", false)
			p := e.person("Eva", model.Dames)
			pids := e.arrive(main.ID, p)
			So(e.s.Organizations.SetKind(e.ctx, o, model.ParticipationOnly), ShouldBeNil)

			Convey("Then every race becomes a participation race and is rescored", func() {
				for _, id := range []string{main.ID, side.ID} {
					r, err := e.s.Races.Get(e.ctx, id)
					So(err, ShouldBeNil)
					So(r.Kind, ShouldEqual, model.ParticipationRace)
				}
				part, err := e.s.Participants.Get(e.ctx, pids[0])
				So(err, ShouldBeNil)
				So(part.Points, ShouldEqual, 20)
				So(part.RelPos, ShouldEqual, 0)
			})
		})
	})
}

func TestRaces(t *testing.T) {
	Convey("Given a competition", t, func() {
		e := newEnv()
		o := e.org("Stratenloop", "Aalst", model.Competition)

		Convey("When two main races are requested", func() {
			first := e.race(o, "10 km", true)
			second := e.race(o, "5 km", true)

			Convey("Then only the first becomes the main race", func() {
				So(first.Kind, ShouldEqual, model.MainRace)
				So(second.Kind, ShouldEqual, model.SecondaryRace)
			})

			Convey("Then promoting the second is refused", func() {
				err := e.s.Races.SetKind(e.ctx, second.ID, model.MainRace)
				So(errors.Is(err, ErrKindNotAllowed), ShouldBeTrue)
			})

			Convey("Then the main race is listed first", func() {
				list, err := e.s.Races.List(e.ctx, o)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 2)
				So(list[0].ID, ShouldEqual, first.ID)
			})
		})

		Convey("Then race name and kind are unique in the organization", func() {
			e.race(o, "10 km", false)
			_, created, err := e.s.Races.Add(e.ctx, o, "10 km", false)
			So(err, ShouldBeNil)
			So(created, ShouldBeFalse)
		})

		Convey("When a main race and a secondary race share a name", func() {
			main := e.race(o, "10 km", true)
			side, created, err := e.s.Races.Add(e.ctx, o, "10 km", false)

			Convey("Then both exist with their own kind", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(side.Kind, ShouldEqual, model.SecondaryRace)
				So(side.ID, ShouldNotEqual, main.ID)
			})

			Convey("Then renaming onto an existing name and kind is refused", func() {
				other := e.race(o, "5 km", false)
				ok, err := e.s.Races.Edit(e.ctx, other.ID, "10 km")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})

			Convey("Then demoting the main race onto the secondary one is refused", func() {
				err := e.s.Races.SetKind(e.ctx, main.ID, model.SecondaryRace)
				So(errors.Is(err, ErrKindNotAllowed), ShouldBeTrue)
			})
		})

		Convey("Then the race label names the organization", func() {
			r := e.race(o, "10 km", true)
			label, err := e.s.Races.Label(e.ctx, r.ID)
			So(err, ShouldBeNil)
			So(label, ShouldEqual, "10 km (Stratenloop)")
		})

		Convey("When a race has participants", func() {
			r := e.race(o, "10 km", true)
			e.arrive(r.ID, e.person("Frank", model.Heren))

			Convey("Then it cannot be removed", func() {
				ok, err := e.s.Races.Remove(e.ctx, r.ID)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the main race is demoted", func() {
			main := e.race(o, "10 km", true)
			side := e.race(o, "5 km", false)
			h1, h2 := e.person("Gert", model.Heren), e.person("Hans", model.Heren)
			e.arrive(main.ID, h1, h2)
			side1 := e.arrive(side.ID, e.person("Ivo", model.Heren))

			before, err := e.s.Participants.Get(e.ctx, side1[0])
			So(err, ShouldBeNil)
			So(before.RelPos, ShouldEqual, 3)

			So(e.s.Races.SetKind(e.ctx, main.ID, model.SecondaryRace), ShouldBeNil)

			Convey("Then the secondary race is rescored without a main race", func() {
				after, err := e.s.Participants.Get(e.ctx, side1[0])
				So(err, ShouldBeNil)
				So(after.RelPos, ShouldEqual, 1)
				So(after.Points, ShouldEqual, 50)
			})
		})
	})

	Convey("Given a participation-only organization", t, func() {
		e := newEnv()
		o := e.org("Jogging", "Lier", model.ParticipationOnly)
		r := e.race(o, "Wandeling", true)

		Convey("Then its races are participation races", func() {
			So(r.Kind, ShouldEqual, model.ParticipationRace)
			err := e.s.Races.SetKind(e.ctx, r.ID, model.SecondaryRace)
			So(errors.Is(err, ErrKindNotAllowed), ShouldBeTrue)
		})
	})
}

func TestParticipants(t *testing.T) {
	Convey("Given a main race with three arrivals", t, func() {
		e := newEnv()
		o := e.org("Veldloop", "Gent", model.Competition)
		r := e.race(o, "10 km", true)
		a, b, c := e.person("An", model.Dames), e.person("Bert", model.Heren), e.person("Carl", model.Heren)
		pids := e.arrive(r.ID, a, b, c)

		Convey("Then they list in arrival order with points per sex", func() {
			list, err := e.s.Participants.List(e.ctx, r.ID)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 3)
			So(list[0].PersonName, ShouldEqual, "An")
			So(list[0].Points, ShouldEqual, 50)
			So(list[1].Points, ShouldEqual, 50)
			So(list[2].Points, ShouldEqual, 45)
		})

		Convey("When a late entry is inserted after An", func() {
			d := e.person("Dirk", model.Heren)
			part, err := e.s.Participants.Add(e.ctx, r.ID, d, chain.AfterPerson(a))
			So(err, ShouldBeNil)

			Convey("Then Dirk is the first man", func() {
				So(part.RelPos, ShouldEqual, 1)
				So(part.Points, ShouldEqual, 50)
				bert, err := e.s.Participants.Get(e.ctx, pids[1])
				So(err, ShouldBeNil)
				So(bert.Points, ShouldEqual, 45)
			})
		})

		Convey("When user properties are edited", func() {
			So(e.s.Participants.Edit(e.ctx, pids[0], map[string]string{model.PropPos: "1", model.PropRemark: "PR"}), ShouldBeNil)
			got, err := e.s.Participants.Get(e.ctx, pids[0])
			So(err, ShouldBeNil)
			So(got.Pos, ShouldEqual, "1")
			So(got.Remark, ShouldEqual, "PR")
			So(got.Points, ShouldEqual, 50)

			Convey("Then an empty value deletes the key", func() {
				So(e.s.Participants.Edit(e.ctx, pids[0], map[string]string{model.PropRemark: ""}), ShouldBeNil)
				got, err := e.s.Participants.Get(e.ctx, pids[0])
				So(err, ShouldBeNil)
				So(got.Remark, ShouldEqual, "")
			})
		})

		Convey("When a calculated property is edited", func() {
			err := e.s.Participants.Edit(e.ctx, pids[0], map[string]string{model.PropPoints: "99"})
			So(errors.Is(err, ErrCalculatedProperty), ShouldBeTrue)
		})

		Convey("When a property outside pos and remark is edited", func() {
			err := e.s.Participants.Edit(e.ctx, pids[0], map[string]string{"shoe": "spikes"})

			Convey("Then it is rejected and nothing is stored", func() {
				So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
				n, err := e.store.Node(e.ctx, pids[0])
				So(err, ShouldBeNil)
				_, ok := n.Props["shoe"]
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a person is added twice", func() {
			_, err := e.s.Participants.Add(e.ctx, r.ID, a, chain.First)
			So(errors.Is(err, chain.ErrAlreadyInRace), ShouldBeTrue)
		})

		Convey("Then next candidates skip persons already in the organization", func() {
			side := e.race(o, "5 km", false)
			d := e.person("Dirk", model.Heren)
			cands, err := e.s.Participants.NextCandidates(e.ctx, side.ID)
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)
			So(cands[0].ID, ShouldEqual, d)
		})

		Convey("Then results and season totals follow the scored races", func() {
			results, err := e.s.Persons.Results(e.ctx, c)
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 1)
			So(results[0].OrgLabel, ShouldEqual, "Veldloop (Gent, 09-03-2024)")
			So(results[0].Points, ShouldEqual, 45)
			total, err := e.s.Persons.SeasonTotal(e.ctx, c)
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 45)
		})

		Convey("Then counts cover every entity", func() {
			counts, err := e.s.Counts(e.ctx)
			So(err, ShouldBeNil)
			So(counts["person"], ShouldEqual, 3)
			So(counts["participant"], ShouldEqual, 3)
			So(counts["organization"], ShouldEqual, 1)
		})
	})
}
