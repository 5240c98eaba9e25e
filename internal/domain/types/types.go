// Package types contains common types used across the application
package types

// Entry represents a standings entry
type Entry struct {
	Rank     int    `json:"rank"`
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Races    int    `json:"races"`
}
