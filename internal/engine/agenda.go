package engine

import (
	"slices"
	"time"

	"eventmap/internal/category"
	"eventmap/internal/model"
)

// AgendaEntry is one event in the side list.
type AgendaEntry struct {
	model.EventInfo

	DayLabel string        `json:"day_label"`
	Airports []string      `json:"airports"`
	Coords   []model.Coord `json:"coords"`
}

// Agenda lists each event of v once, keyed by name, sorted by start time.
// Arcs are considered before points, so a multi-airport event keeps its
// full roster.
func Agenda(v View, now time.Time) []AgendaEntry {
	byName := make(map[string]int)
	var out []AgendaEntry

	for _, a := range v.Arcs {
		if _, ok := byName[a.EventName]; ok {
			continue
		}
		byName[a.EventName] = len(out)
		out = append(out, AgendaEntry{
			EventInfo: a.EventInfo,
			Airports:  a.InvolvedAirportLabels,
			Coords:    []model.Coord{a.StartCoord, a.EndCoord},
		})
	}
	for _, p := range v.Points {
		if _, ok := byName[p.EventName]; ok {
			continue
		}
		byName[p.EventName] = len(out)
		out = append(out, AgendaEntry{
			EventInfo: p.EventInfo,
			Airports:  []string{p.Identifier},
			Coords:    []model.Coord{p.Coord},
		})
	}

	slices.SortStableFunc(out, func(a, b AgendaEntry) int {
		return a.StartTime.Compare(b.StartTime)
	})
	for i := range out {
		out[i].DayLabel = category.DayLabel(out[i].StartTime, now)
	}
	return out
}
