package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/raceseries/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		Convey("When encoding an entry", func() {
			entry := types.Entry{Rank: 1, PersonID: "p-1", Name: "Anna", Points: 265, Races: 9}
			b, err := json.Marshal(entry)

			Convey("Then it should use snake case field names", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"rank":1,"person_id":"p-1","name":"Anna","points":265,"races":9}`)
			})
		})

		Convey("When creating an entry with zero values", func() {
			entry := types.Entry{}

			Convey("Then it should have default values", func() {
				So(entry.Rank, ShouldEqual, 0)
				So(entry.PersonID, ShouldEqual, "")
				So(entry.Points, ShouldEqual, 0)
			})
		})
	})
}
