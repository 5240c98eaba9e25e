// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RaceKind classifies a race for scoring.
type RaceKind string

const (
	MainRace          RaceKind = "Hoofdwedstrijd"
	SecondaryRace     RaceKind = "Bijwedstrijd"
	ParticipationRace RaceKind = "Deelname"
)

// Valid reports whether k is one of the three race kinds.
func (k RaceKind) Valid() bool {
	switch k {
	case MainRace, SecondaryRace, ParticipationRace:
		return true
	}
	return false
}

// OrgKind classifies an organization.
type OrgKind string

const (
	Competition       OrgKind = "Wedstrijd"
	ParticipationOnly OrgKind = "Deelname"
)

// Valid reports whether k is a known organization kind.
func (k OrgKind) Valid() bool {
	return k == Competition || k == ParticipationOnly
}

// DefaultRaceKind is the kind a non-main race gets inside an organization of kind k.
func (k OrgKind) DefaultRaceKind() RaceKind {
	if k == ParticipationOnly {
		return ParticipationRace
	}
	return SecondaryRace
}

// Sex is the scoring category of a person.
type Sex string

const (
	Heren      Sex = "Heren"
	Dames      Sex = "Dames"
	SexUnknown Sex = ""
)

// ParseSex accepts Heren/Dames in any case and the M/F/H/D shorthands.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heren", "h", "m":
		return Heren, nil
	case "dames", "d", "f", "v":
		return Dames, nil
	}
	return SexUnknown, fmt.Errorf("unknown sex %q", s)
}

// Graph labels.
const (
	LabelPerson       = "Person"
	LabelOrganization = "Organization"
	LabelRace         = "Race"
	LabelParticipant  = "Participant"
	LabelLocation     = "Location"
	LabelDay          = "Day"
	LabelCategory     = "Category"
	LabelMF           = "MF"
	LabelOrgType      = "OrgType"
	LabelRaceType     = "RaceType"
)

// Relation types.
const (
	RelIs           = "is"           // Person -> Participant
	RelParticipates = "participates" // Participant -> Race
	RelPrecedes     = "precedes"     // Participant -> Participant that arrived just before
	RelHas          = "has"          // Organization -> Race
	RelIn           = "In"           // Organization -> Location
	RelOn           = "On"           // Organization -> Day
	RelType         = "type"         // Race -> RaceType, Organization -> OrgType
	RelMF           = "mf"           // Person -> MF
	RelInCategory   = "inCategory"   // Person -> Category
)

// Property keys.
const (
	PropName   = "name"
	PropCity   = "city"
	PropKey    = "key"
	PropSeq    = "seq"
	PropPos    = "pos"
	PropRemark = "remark"
	PropPoints = "points"
	PropRelPos = "rel_pos"
)

// CalculatedProps are written by the points engine only.
var CalculatedProps = []string{PropPoints, PropRelPos}

// IsCalculated reports whether key is engine-owned.
func IsCalculated(key string) bool {
	for _, k := range CalculatedProps {
		if k == key {
			return true
		}
	}
	return false
}

// UserProps are the participant properties a user may set.
var UserProps = []string{PropPos, PropRemark}

// IsUserProp reports whether key is user-settable on a participant.
func IsUserProp(key string) bool {
	for _, k := range UserProps {
		if k == key {
			return true
		}
	}
	return false
}

// FirstPosition is the "after" value that places a participant before every
// existing arrival.
const FirstPosition = "-1"

// DayLayout is the key format of Day nodes.
const DayLayout = "2006-01-02"

// Person is a registered runner.
type Person struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Sex        Sex    `json:"sex,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	Races      int    `json:"races"`
}

// Organization is an event on one day in one location.
type Organization struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	City string    `json:"city"`
	Date time.Time `json:"date"`
	Kind OrgKind   `json:"kind"`
}

// Label renders "name (city, DD-MM-YYYY)".
func (o Organization) Label() string {
	return fmt.Sprintf("%s (%s, %s)", o.Name, o.City, o.Date.Format("02-01-2006"))
}

// Race belongs to exactly one organization.
type Race struct {
	ID    string   `json:"id"`
	OrgID string   `json:"org_id"`
	Name  string   `json:"name"`
	Kind  RaceKind `json:"kind"`
}

// Participant is one person's arrival in one race.
type Participant struct {
	ID         string `json:"id"`
	RaceID     string `json:"race_id"`
	PersonID   string `json:"person_id"`
	PersonName string `json:"person_name,omitempty"`
	Sex        Sex    `json:"sex,omitempty"`
	Pos        string `json:"pos,omitempty"`
	Remark     string `json:"remark,omitempty"`
	Points     int    `json:"points"`
	RelPos     int    `json:"rel_pos,omitempty"`
}

// Location is a city hosting organizations.
type Location struct {
	ID   string `json:"id"`
	City string `json:"city"`
}

// Category is an age category; Seq orders them young to old.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Seq  int    `json:"seq"`
}

// RaceResult is one scored race of a person.
type RaceResult struct {
	OrgID    string    `json:"org_id"`
	OrgLabel string    `json:"org"`
	Date     time.Time `json:"date"`
	RaceID   string    `json:"race_id"`
	RaceName string    `json:"race"`
	Kind     RaceKind  `json:"kind"`
	Points   int       `json:"points"`
	RelPos   int       `json:"rel_pos,omitempty"`
}
