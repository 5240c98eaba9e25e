package points

import (
	"context"
	"testing"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestScore(t *testing.T) {
	Convey("Given relative positions", t, func() {
		Convey("Then the podium gets 50, 45 and 40", func() {
			So(Score(1), ShouldEqual, 50)
			So(Score(2), ShouldEqual, 45)
			So(Score(3), ShouldEqual, 40)
		})

		Convey("Then later positions get 39 minus the position", func() {
			So(Score(4), ShouldEqual, 35)
			So(Score(10), ShouldEqual, 29)
			So(Score(24), ShouldEqual, 15)
		})

		Convey("Then the floor is 15", func() {
			So(Score(25), ShouldEqual, 15)
			So(Score(100), ShouldEqual, 15)
		})
	})
}

func TestSeasonPoints(t *testing.T) {
	Convey("Given a person with nine scored races", t, func() {
		pts := []int{15, 50, 20, 45, 10, 40, 35, 25, 30}

		Convey("Then the best seven count plus 10 per extra race", func() {
			So(SeasonPoints(pts), ShouldEqual, 265)
		})

		Convey("Then the input is not reordered", func() {
			SeasonPoints(pts)
			So(pts[0], ShouldEqual, 15)
		})
	})

	Convey("Given fewer than seven races", t, func() {
		So(SeasonPoints([]int{50, 20}), ShouldEqual, 70)
		So(SeasonPoints(nil), ShouldEqual, 0)
	})

	Convey("Given exactly seven races", t, func() {
		So(SeasonPoints([]int{10, 10, 10, 10, 10, 10, 10}), ShouldEqual, 70)
	})

	Convey("Given a configured rule", t, func() {
		e := NewEngine(graph.NewMemoryStore(), WithSeasonRule(2, 5))
		So(e.SeasonPoints([]int{50, 45, 40}), ShouldEqual, 100)
	})
}

type world struct {
	ctx    context.Context
	store  *graph.MemoryStore
	chain  *chain.Manager
	engine *Engine
	kinds  map[model.RaceKind]string
	sexes  map[model.Sex]string
	org    string
}

func newWorld() *world {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	w := &world{
		ctx:   ctx,
		store: store,
		kinds: map[model.RaceKind]string{},
		sexes: map[model.Sex]string{},
	}
	w.chain = chain.NewManager(store)
	w.engine = NewEngine(store, WithWalker(w.chain))
	for _, k := range []model.RaceKind{model.MainRace, model.SecondaryRace, model.ParticipationRace} {
		w.kinds[k] = w.node(model.LabelRaceType, graph.Props{model.PropName: string(k)})
	}
	for _, s := range []model.Sex{model.Heren, model.Dames} {
		w.sexes[s] = w.node(model.LabelMF, graph.Props{model.PropName: string(s)})
	}
	w.org = w.node(model.LabelOrganization, graph.Props{model.PropName: "Veldloop"})
	return w
}

func (w *world) node(label string, props graph.Props) string {
	n, err := w.store.CreateNode(w.ctx, label, props)
	So(err, ShouldBeNil)
	return n.ID
}

func (w *world) race(name string, kind model.RaceKind) string {
	id := w.node(model.LabelRace, graph.Props{model.PropName: name})
	So(w.store.CreateRelation(w.ctx, w.org, model.RelHas, id), ShouldBeNil)
	So(w.store.CreateRelation(w.ctx, id, model.RelType, w.kinds[kind]), ShouldBeNil)
	return id
}

func (w *world) person(name string, sex model.Sex) string {
	id := w.node(model.LabelPerson, graph.Props{model.PropName: name})
	if sex != model.SexUnknown {
		So(w.store.CreateRelation(w.ctx, id, model.RelMF, w.sexes[sex]), ShouldBeNil)
	}
	return id
}

// arrive appends persons to the race in the given order.
func (w *world) arrive(raceID string, persons ...string) []string {
	var out []string
	after := chain.First
	for _, p := range persons {
		pid, err := w.chain.Insert(w.ctx, raceID, p, after)
		So(err, ShouldBeNil)
		out = append(out, pid)
		after = chain.AfterPerson(p)
	}
	return out
}

func (w *world) scored(pid string) (points, rel int, hasRel bool) {
	n, err := w.store.Node(w.ctx, pid)
	So(err, ShouldBeNil)
	points, _ = n.Props.Int(model.PropPoints)
	rel, hasRel = n.Props.Int(model.PropRelPos)
	return points, rel, hasRel
}

func TestMainRace(t *testing.T) {
	Convey("Given a main race with arrivals A(Heren), B(Dames), C(Heren)", t, func() {
		w := newWorld()
		race := w.race("10 km", model.MainRace)
		parts := w.arrive(race,
			w.person("A", model.Heren),
			w.person("B", model.Dames),
			w.person("C", model.Heren))

		Convey("When the race is recomputed", func() {
			So(w.engine.RecomputeRace(w.ctx, race), ShouldBeNil)

			Convey("Then positions count per sex", func() {
				p, rel, _ := w.scored(parts[0])
				So(rel, ShouldEqual, 1)
				So(p, ShouldEqual, 50)

				p, rel, _ = w.scored(parts[1])
				So(rel, ShouldEqual, 1)
				So(p, ShouldEqual, 50)

				p, rel, _ = w.scored(parts[2])
				So(rel, ShouldEqual, 2)
				So(p, ShouldEqual, 45)
			})

			Convey("And recomputing again changes nothing", func() {
				before := make([][2]int, len(parts))
				for i, pid := range parts {
					p, rel, _ := w.scored(pid)
					before[i] = [2]int{p, rel}
				}
				So(w.engine.RecomputeRace(w.ctx, race), ShouldBeNil)
				for i, pid := range parts {
					p, rel, _ := w.scored(pid)
					So([2]int{p, rel}, ShouldResemble, before[i])
				}
			})
		})

		Convey("When a person without sex arrives", func() {
			more := w.arrive(race, w.person("X", model.SexUnknown))
			So(w.engine.RecomputeRace(w.ctx, race), ShouldBeNil)

			Convey("Then they are ranked in their own bucket", func() {
				p, rel, _ := w.scored(more[0])
				So(rel, ShouldEqual, 1)
				So(p, ShouldEqual, 50)
				_, rel, _ = w.scored(parts[1])
				So(rel, ShouldEqual, 1)
			})
		})

		Convey("When the race is empty", func() {
			empty := w.race("5 km", model.MainRace)

			Convey("Then recompute is a no-op", func() {
				So(w.engine.RecomputeRace(w.ctx, empty), ShouldBeNil)
			})
		})
	})
}

func TestSecondaryRace(t *testing.T) {
	Convey("Given a main race with 3 Heren and 1 Dames finishers", t, func() {
		w := newWorld()
		main := w.race("10 km", model.MainRace)
		w.arrive(main,
			w.person("H1", model.Heren),
			w.person("H2", model.Heren),
			w.person("D1", model.Dames),
			w.person("H3", model.Heren))
		second := w.race("5 km", model.SecondaryRace)
		parts := w.arrive(second,
			w.person("D2", model.Dames),
			w.person("H4", model.Heren),
			w.person("H5", model.Heren))

		Convey("When the secondary race is recomputed", func() {
			So(w.engine.RecomputeRace(w.ctx, second), ShouldBeNil)

			Convey("Then everyone is scored right after the main race of their sex", func() {
				p, rel, _ := w.scored(parts[0])
				So(rel, ShouldEqual, 2)
				So(p, ShouldEqual, 45)
				for _, pid := range parts[1:] {
					p, rel, _ := w.scored(pid)
					So(rel, ShouldEqual, 4)
					So(p, ShouldEqual, 35)
				}
			})
		})

		Convey("When a main race finisher is removed", func() {
			eng := w.engine
			cm := chain.NewManager(w.store, chain.WithRescorer(eng))
			ids, err := cm.Arrivals(w.ctx, main)
			So(err, ShouldBeNil)
			So(cm.Remove(w.ctx, ids[0]), ShouldBeNil)

			Convey("Then the secondary race follows the new counts", func() {
				p, rel, _ := w.scored(parts[1])
				So(rel, ShouldEqual, 3)
				So(p, ShouldEqual, 40)
			})
		})
	})

	Convey("Given a secondary race without a main race", t, func() {
		w := newWorld()
		second := w.race("5 km", model.SecondaryRace)
		parts := w.arrive(second, w.person("H", model.Heren), w.person("D", model.Dames))

		Convey("Then every participant gets the first position", func() {
			So(w.engine.RecomputeRace(w.ctx, second), ShouldBeNil)
			for _, pid := range parts {
				p, rel, _ := w.scored(pid)
				So(rel, ShouldEqual, 1)
				So(p, ShouldEqual, 50)
			}
		})
	})

	Convey("Given an organization with two main races", t, func() {
		w := newWorld()
		m1 := w.race("10 km", model.MainRace)
		m2 := w.race("12 km", model.MainRace)
		w.arrive(m1, w.person("H1", model.Heren))
		w.arrive(m2, w.person("H2", model.Heren), w.person("H3", model.Heren))
		second := w.race("5 km", model.SecondaryRace)
		parts := w.arrive(second, w.person("H4", model.Heren))

		Convey("Then the lowest id is used as main race", func() {
			So(w.engine.RecomputeOrganization(w.ctx, w.org), ShouldBeNil)
			want := 2
			if m2 < m1 {
				want = 3
			}
			_, rel, _ := w.scored(parts[0])
			So(rel, ShouldEqual, want)
		})
	})
}

func TestParticipationRace(t *testing.T) {
	Convey("Given a participation race", t, func() {
		w := newWorld()
		race := w.race("Jogging", model.ParticipationRace)
		parts := w.arrive(race, w.person("A", model.Heren), w.person("B", model.Dames), w.person("C", model.SexUnknown))
		So(w.store.SetProperties(w.ctx, parts[0], graph.Props{model.PropRelPos: 3, model.PropRemark: "kept"}), ShouldBeNil)

		Convey("When recomputed", func() {
			So(w.engine.RecomputeRace(w.ctx, race), ShouldBeNil)

			Convey("Then everyone gets 20 points and no relative position", func() {
				for _, pid := range parts {
					p, _, hasRel := w.scored(pid)
					So(p, ShouldEqual, 20)
					So(hasRel, ShouldBeFalse)
				}
				n, err := w.store.Node(w.ctx, parts[0])
				So(err, ShouldBeNil)
				So(n.Props.String(model.PropRemark), ShouldEqual, "kept")
			})
		})

		Convey("When participation points are configured", func() {
			e := NewEngine(w.store, WithParticipationPoints(25))
			So(e.RecomputeRace(w.ctx, race), ShouldBeNil)
			p, _, _ := w.scored(parts[1])
			So(p, ShouldEqual, 25)
		})
	})
}

func TestRecomputeAll(t *testing.T) {
	Convey("Given races of every kind", t, func() {
		w := newWorld()
		second := w.race("5 km", model.SecondaryRace)
		main := w.race("10 km", model.MainRace)
		w.arrive(main, w.person("H1", model.Heren))
		sp := w.arrive(second, w.person("H2", model.Heren))

		other := newWorldOrg(w, "Jogging")
		part := w.node(model.LabelRace, graph.Props{model.PropName: "Fun"})
		So(w.store.CreateRelation(w.ctx, other, model.RelHas, part), ShouldBeNil)
		So(w.store.CreateRelation(w.ctx, part, model.RelType, w.kinds[model.ParticipationRace]), ShouldBeNil)
		pp := w.arrive(part, w.person("D1", model.Dames))

		Convey("When every race is recomputed", func() {
			n, err := w.engine.RecomputeAll(w.ctx)

			Convey("Then all races are scored", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				p, rel, _ := w.scored(sp[0])
				So(rel, ShouldEqual, 2)
				So(p, ShouldEqual, 45)
				p, _, _ = w.scored(pp[0])
				So(p, ShouldEqual, 20)
			})
		})
	})

	Convey("Given a race without kind", t, func() {
		w := newWorld()
		id := w.node(model.LabelRace, graph.Props{model.PropName: "?"})

		Convey("Then recompute reports it", func() {
			So(w.engine.RecomputeRace(w.ctx, id), ShouldWrap, ErrUnclassified)
			_, err := w.engine.RecomputeAll(w.ctx)
			So(err, ShouldWrap, ErrUnclassified)
		})
	})
}

func newWorldOrg(w *world, name string) string {
	return w.node(model.LabelOrganization, graph.Props{model.PropName: name})
}

func TestStandings(t *testing.T) {
	Convey("Given persons with scored races", t, func() {
		w := newWorld()
		anna := w.person("Anna", model.Dames)
		bea := w.person("Bea", model.Dames)
		carl := w.person("Carl", model.Heren)
		w.person("Dora", model.Dames) // no races

		r1 := w.race("10 km", model.MainRace)
		w.arrive(r1, bea, anna, carl)
		So(w.engine.RecomputeRace(w.ctx, r1), ShouldBeNil)

		Convey("When the Dames standings are read", func() {
			got, err := w.engine.Standings(w.ctx, model.Dames)

			Convey("Then persons are ranked by season points", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Name, ShouldEqual, "Bea")
				So(got[0].Points, ShouldEqual, 50)
				So(got[0].Rank, ShouldEqual, 1)
				So(got[1].Name, ShouldEqual, "Anna")
				So(got[1].Points, ShouldEqual, 45)
				So(got[1].Races, ShouldEqual, 1)
			})
		})

		Convey("When a person scores in a second race", func() {
			r2 := w.race("5 km", model.SecondaryRace)
			w.arrive(r2, anna)
			So(w.engine.RecomputeRace(w.ctx, r2), ShouldBeNil)
			// Anna: 45 + (2 Dames in main -> position 3) 40 = 85; Bea: 50.
			got, err := w.engine.Standings(w.ctx, model.Dames)
			So(err, ShouldBeNil)
			So(got[0].Name, ShouldEqual, "Anna")
			So(got[0].Points, ShouldEqual, 85)
			So(got[0].Races, ShouldEqual, 2)
		})

		Convey("When the Heren standings are read", func() {
			got, err := w.engine.Standings(w.ctx, model.Heren)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 1)
			So(got[0].PersonID, ShouldEqual, carl)
		})
	})
}
