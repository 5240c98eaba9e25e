package model_test

import (
	"testing"
	"time"

	model "github.com/okian/raceseries/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKinds(t *testing.T) {
	Convey("Given the race and organization kinds", t, func() {
		Convey("Then only the three race kinds are valid", func() {
			So(model.MainRace.Valid(), ShouldBeTrue)
			So(model.SecondaryRace.Valid(), ShouldBeTrue)
			So(model.ParticipationRace.Valid(), ShouldBeTrue)
			So(model.RaceKind("Sprint").Valid(), ShouldBeFalse)
		})

		Convey("Then organization kinds map to their default race kind", func() {
			So(model.Competition.DefaultRaceKind(), ShouldEqual, model.SecondaryRace)
			So(model.ParticipationOnly.DefaultRaceKind(), ShouldEqual, model.ParticipationRace)
			So(model.OrgKind("x").Valid(), ShouldBeFalse)
		})
	})
}

func TestParseSex(t *testing.T) {
	Convey("Given sex inputs", t, func() {
		for in, want := range map[string]model.Sex{
			"Heren": model.Heren, "m": model.Heren, " H ": model.Heren,
			"dames": model.Dames, "F": model.Dames, "v": model.Dames,
		} {
			got, err := model.ParseSex(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		Convey("When the input is unknown", func() {
			got, err := model.ParseSex("x")
			So(err, ShouldNotBeNil)
			So(got, ShouldEqual, model.SexUnknown)
		})
	})
}

func TestLabels(t *testing.T) {
	Convey("Given an organization", t, func() {
		org := model.Organization{
			Name: "Dwars door Wolvertem",
			City: "Meise",
			Date: time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC),
		}

		Convey("Then the label shows city and date", func() {
			So(org.Label(), ShouldEqual, "Dwars door Wolvertem (Meise, 07-03-2024)")
		})
	})

	Convey("Given property keys", t, func() {
		So(model.IsCalculated(model.PropPoints), ShouldBeTrue)
		So(model.IsCalculated(model.PropRelPos), ShouldBeTrue)
		So(model.IsCalculated(model.PropRemark), ShouldBeFalse)
		So(model.IsUserProp(model.PropPos), ShouldBeTrue)
		So(model.IsUserProp(model.PropRemark), ShouldBeTrue)
		So(model.IsUserProp(model.PropPoints), ShouldBeFalse)
		So(model.IsUserProp("shoe"), ShouldBeFalse)
	})
}
