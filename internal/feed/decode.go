package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eventmap/internal/model"
	"eventmap/internal/traffic"
)

// eventsEnvelope is the event feed payload.
type eventsEnvelope struct {
	Data []eventDTO `json:"data"`
}

type airportDTO struct {
	ICAO string `json:"icao"`
}

type eventDTO struct {
	Name      string       `json:"name"`
	Link      string       `json:"link"`
	Banner    *string      `json:"banner"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	Airports  []airportDTO `json:"airports"`
}

// DecodeStats counts records dropped at the ingestion boundary.
type DecodeStats struct {
	Total          int
	NoAirports     int
	BadTime        int
	EndBeforeStart int
}

// Dropped returns the number of rejected records.
func (s DecodeStats) Dropped() int {
	return s.NoAirports + s.BadTime + s.EndBeforeStart
}

// DecodeEvents validates the event feed and converts it to RawEvents.
// A record without airports, with an unparsable timestamp or ending before
// it starts is dropped; the rest of the batch is kept.
func DecodeEvents(body []byte) ([]model.RawEvent, DecodeStats, error) {
	var env eventsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("feed: decode events: %w", err)
	}

	stats := DecodeStats{Total: len(env.Data)}
	out := make([]model.RawEvent, 0, len(env.Data))
	for _, d := range env.Data {
		airports := make([]string, 0, len(d.Airports))
		for _, a := range d.Airports {
			id := strings.ToUpper(strings.TrimSpace(a.ICAO))
			if id != "" {
				airports = append(airports, id)
			}
		}
		if len(airports) == 0 {
			stats.NoAirports++
			continue
		}

		start, err1 := time.Parse(time.RFC3339, d.StartTime)
		end, err2 := time.Parse(time.RFC3339, d.EndTime)
		if err1 != nil || err2 != nil {
			stats.BadTime++
			continue
		}
		if end.Before(start) {
			stats.EndBeforeStart++
			continue
		}

		ev := model.RawEvent{
			Name:     strings.TrimSpace(d.Name),
			Airports: airports,
			Start:    start.UTC(),
			End:      end.UTC(),
			Link:     d.Link,
		}
		if d.Banner != nil {
			ev.Banner = *d.Banner
		}
		out = append(out, ev)
	}
	return out, stats, nil
}

// DecodeTraffic decodes the live network feed.
func DecodeTraffic(body []byte) (traffic.Data, error) {
	var d traffic.Data
	if err := json.Unmarshal(body, &d); err != nil {
		return traffic.Data{}, fmt.Errorf("feed: decode traffic: %w", err)
	}
	return d, nil
}
