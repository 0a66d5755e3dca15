package model

import "time"

// RawEvent is a single scheduled event before projection. It comes either
// from the external event feed or from a resolved recurrence template and
// is never mutated after creation.
type RawEvent struct {
	Name string `json:"name"`

	// Airports holds airport identifiers in feed order. Order does not
	// matter for deduplication but is preserved for pairing.
	Airports []string `json:"airports"`

	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`

	Banner string `json:"banner,omitempty"`
	Link   string `json:"link,omitempty"`

	// Recurring marks events produced by the recurrence resolver
	// ("manually scheduled") as opposed to feed events.
	Recurring     bool `json:"recurring,omitempty"`
	IntervalWeeks int  `json:"interval_weeks,omitempty"`
}

// AirportRecord is one row of the static airport table.
type AirportRecord struct {
	Identifier  string  `json:"identifier"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"name"`
}

// ResolvedAirport is the outcome of an airport lookup. A miss yields
// Found=false, zero coordinates and the identifier as display name.
type ResolvedAirport struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Found       bool
}

// Coord is a latitude/longitude pair in degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Category is a temporal bucket.
type Category string

const (
	CategoryOngoing  Category = "ongoing"
	CategoryToday    Category = "today"
	CategoryTomorrow Category = "tomorrow"
	CategoryDay2     Category = "day2"
	CategoryDay3     Category = "day3"
	CategoryDay4to5  Category = "day4to5"
	CategoryDay6Plus Category = "day6plus"
)

// Categories lists every bucket in display order.
var Categories = []Category{
	CategoryOngoing,
	CategoryToday,
	CategoryTomorrow,
	CategoryDay2,
	CategoryDay3,
	CategoryDay4to5,
	CategoryDay6Plus,
}

// Valid reports whether c is one of the seven known buckets.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// ColorPair is the start/end color of an arc or ring.
type ColorPair [2]string

// EventInfo is the event-level metadata shared by every arc and point
// projected from the same event.
type EventInfo struct {
	EventName string    `json:"event_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Banner    string    `json:"banner,omitempty"`
	Link      string    `json:"link,omitempty"`
	Recurring bool      `json:"recurring,omitempty"`
	Category  Category  `json:"category"`
	Color     ColorPair `json:"color"`
}

// ProjectedArc connects two airports of one event. Single-airport events
// produce a self-arc whose end longitude is slightly offset.
type ProjectedArc struct {
	EventInfo

	StartIdentifier string `json:"start_icao"`
	EndIdentifier   string `json:"end_icao"`
	StartCoord      Coord  `json:"start"`
	EndCoord        Coord  `json:"end"`

	// InvolvedAirportLabels lists every airport of the event as
	// "name (identifier)", not only the two ends of this arc.
	InvolvedAirportLabels []string `json:"airports_involved"`
}

// ProjectedPoint is a ring marker for a single-airport event.
type ProjectedPoint struct {
	EventInfo

	Identifier string  `json:"icao"`
	Coord      Coord   `json:"coord"`
	Radius     float64 `json:"radius"`
}

// Info returns the shared event metadata.
func (a ProjectedArc) Info() EventInfo { return a.EventInfo }

// Info returns the shared event metadata.
func (p ProjectedPoint) Info() EventInfo { return p.EventInfo }

// Projection is the geometry produced for one or more events.
type Projection struct {
	Arcs   []ProjectedArc   `json:"arcs"`
	Points []ProjectedPoint `json:"points"`
}
