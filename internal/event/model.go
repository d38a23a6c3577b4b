// Package event provides the event model and repositories used to hydrate
// retrieval candidates before scoring.
package event

import "time"

// Category classifies an event for mood matching and slate diversity.
type Category string

const (
	CategoryMusic     Category = "MUSIC"
	CategoryArts      Category = "ARTS"
	CategoryFood      Category = "FOOD"
	CategoryNightlife Category = "NIGHTLIFE"
	CategorySports    Category = "SPORTS"
	CategoryCommunity Category = "COMMUNITY"
	CategoryLearning  Category = "LEARNING"
	CategoryOutdoors  Category = "OUTDOORS"
)

// Event is a surfaced-able happening. Price == nil means price is unknown
// and is treated as free by scoring. Lat/Lng may be zero when the venue has
// no precise location.
type Event struct {
	ID           string
	Title        string
	Description  string
	Category     Category
	City         string
	Neighborhood string
	VenueID      string
	VenueName    string
	Price        *float64
	StartTime    time.Time
	EndTime      time.Time
	Lat          float64
	Lng          float64
}

// Free reports whether the event costs nothing (or the price is unknown).
func (e *Event) Free() bool {
	return e.Price == nil || *e.Price <= 0
}

// EffectivePrice returns the event's price, with unknown treated as free.
func (e *Event) EffectivePrice() float64 {
	if e.Price == nil || *e.Price < 0 {
		return 0
	}
	return *e.Price
}
