package project

import (
	"time"

	"eventmap/internal/airport"
	"eventmap/internal/category"
	"eventmap/internal/model"
)

const (
	// SelfArcOffset shifts the end longitude of a single-airport arc so the
	// arc does not collapse onto a point. It is not a real route.
	SelfArcOffset = 0.05

	// RingRadius is the marker radius for single-airport events.
	RingRadius = 100000
)

// Projector turns events into renderable geometry.
type Projector struct {
	airports airport.Resolver
}

// New returns a Projector resolving airports through r.
func New(r airport.Resolver) *Projector {
	return &Projector{airports: r}
}

// Project converts one event into arcs and points. Airports that do not
// resolve drop only the geometry they take part in.
func (p *Projector) Project(ev model.RawEvent, now time.Time) model.Projection {
	var out model.Projection

	switch len(ev.Airports) {
	case 0:
		return out
	case 1:
		p.projectSingle(ev, now, &out)
	default:
		p.projectPairs(ev, now, &out)
	}
	return out
}

// ProjectAll projects every event with the same now.
func (p *Projector) ProjectAll(events []model.RawEvent, now time.Time) model.Projection {
	var out model.Projection
	for _, ev := range events {
		pr := p.Project(ev, now)
		out.Arcs = append(out.Arcs, pr.Arcs...)
		out.Points = append(out.Points, pr.Points...)
	}
	return out
}

func info(ev model.RawEvent, now time.Time) model.EventInfo {
	c := category.Categorize(ev.Start, ev.End, now)
	return model.EventInfo{
		EventName: ev.Name,
		StartTime: ev.Start,
		EndTime:   ev.End,
		Banner:    ev.Banner,
		Link:      ev.Link,
		Recurring: ev.Recurring,
		Category:  c.Category,
		Color:     c.Color,
	}
}

func (p *Projector) projectSingle(ev model.RawEvent, now time.Time, out *model.Projection) {
	id := ev.Airports[0]
	a := p.airports.Resolve(id)
	if !a.Found {
		return
	}

	meta := info(ev, now)
	coord := model.Coord{Lat: a.Latitude, Lng: a.Longitude}

	out.Points = append(out.Points, model.ProjectedPoint{
		EventInfo:  meta,
		Identifier: id,
		Coord:      coord,
		Radius:     RingRadius,
	})
	out.Arcs = append(out.Arcs, model.ProjectedArc{
		EventInfo:             meta,
		StartIdentifier:       id,
		EndIdentifier:         id,
		StartCoord:            coord,
		EndCoord:              model.Coord{Lat: a.Latitude, Lng: a.Longitude + SelfArcOffset},
		InvolvedAirportLabels: []string{airport.Label(a, id)},
	})
}

func (p *Projector) projectPairs(ev model.RawEvent, now time.Time, out *model.Projection) {
	resolved := make([]model.ResolvedAirport, len(ev.Airports))
	labels := make([]string, len(ev.Airports))
	for i, id := range ev.Airports {
		resolved[i] = p.airports.Resolve(id)
		labels[i] = airport.Label(resolved[i], id)
	}

	meta := info(ev, now)
	seen := make(map[[2]string]struct{})

	for i := 0; i < len(ev.Airports); i++ {
		for j := i + 1; j < len(ev.Airports); j++ {
			a, b := ev.Airports[i], ev.Airports[j]
			key := [2]string{a, b}
			if b < a {
				key = [2]string{b, a}
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			ra, rb := resolved[i], resolved[j]
			if !ra.Found || !rb.Found {
				continue
			}
			out.Arcs = append(out.Arcs, model.ProjectedArc{
				EventInfo:             meta,
				StartIdentifier:       a,
				EndIdentifier:         b,
				StartCoord:            model.Coord{Lat: ra.Latitude, Lng: ra.Longitude},
				EndCoord:              model.Coord{Lat: rb.Latitude, Lng: rb.Longitude},
				InvolvedAirportLabels: labels,
			})
		}
	}
}
