// Package traffic holds live pilot positions from the network feed and
// decides which of them to show next to events.
package traffic

import "time"

// FlightPlan is the filed plan of a connected pilot.
type FlightPlan struct {
	FlightRules   string `json:"flight_rules"`
	Aircraft      string `json:"aircraft"`
	AircraftShort string `json:"aircraft_short"`
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	Alternate     string `json:"alternate"`
	CruiseTAS     string `json:"cruise_tas"`
	Altitude      string `json:"altitude"`
	Route         string `json:"route"`
	Remarks       string `json:"remarks"`
}

// Pilot is one connected pilot.
type Pilot struct {
	CID         int         `json:"cid"`
	Name        string      `json:"name"`
	Callsign    string      `json:"callsign"`
	Server      string      `json:"server"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Altitude    int         `json:"altitude"`
	Groundspeed int         `json:"groundspeed"`
	Heading     int         `json:"heading"`
	Transponder string      `json:"transponder"`
	FlightPlan  *FlightPlan `json:"flight_plan"`
	LogonTime   time.Time   `json:"logon_time"`
	LastUpdated time.Time   `json:"last_updated"`
}

// General is the feed header.
type General struct {
	Version int       `json:"version"`
	Reload  int       `json:"reload"`
	Update  time.Time `json:"update_timestamp"`
}

// Data is one decoded network snapshot.
type Data struct {
	General General `json:"general"`
	Pilots  []Pilot `json:"pilots"`
}

// Filter keeps pilots with a flight plan. With eventOnly set, a pilot is
// kept only when its departure or arrival is in ongoing.
func Filter(pilots []Pilot, ongoing map[string]struct{}, eventOnly bool) []Pilot {
	out := make([]Pilot, 0, len(pilots))
	for _, p := range pilots {
		if p.FlightPlan == nil {
			continue
		}
		if eventOnly {
			_, dep := ongoing[p.FlightPlan.Departure]
			_, arr := ongoing[p.FlightPlan.Arrival]
			if !dep && !arr {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
