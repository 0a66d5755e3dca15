// Package engine ties the pipeline together: recurring events are resolved
// and merged with the feed into a Generation, and a View projects,
// categorizes and filters that generation against a single instant.
package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"eventmap/internal/airport"
	"eventmap/internal/filter"
	"eventmap/internal/merge"
	"eventmap/internal/model"
	"eventmap/internal/project"
	"eventmap/internal/recur"
)

// Engine holds the static inputs of the pipeline. It has no mutable state
// and may be used from several goroutines.
type Engine struct {
	airports  airport.Resolver
	projector *project.Projector
	templates []recur.Template
}

// New validates templates and returns an Engine. A template error is a
// configuration error; callers should treat it as fatal.
func New(airports airport.Resolver, templates []recur.Template) (*Engine, error) {
	if err := recur.Validate(templates); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		airports:  airports,
		projector: project.New(airports),
		templates: slices.Clone(templates),
	}, nil
}

// Generation is one merged, deduplicated set of events. A newer generation
// fully replaces an older one.
type Generation struct {
	ID             string           `json:"id"`
	FetchStartedAt time.Time        `json:"fetch_started_at"`
	BuiltAt        time.Time        `json:"built_at"`
	Events         []model.RawEvent `json:"events"`
}

// Build resolves recurring templates relative to now and merges them after
// the external events.
func (e *Engine) Build(external []model.RawEvent, fetchStartedAt, now time.Time) (Generation, error) {
	recurring, err := recur.ResolveAll(e.templates, now)
	if err != nil {
		return Generation{}, fmt.Errorf("engine: resolve recurring events: %w", err)
	}
	return Generation{
		ID:             uuid.NewString(),
		FetchStartedAt: fetchStartedAt,
		BuiltAt:        now,
		Events:         merge.Merge(external, recurring),
	}, nil
}

// AirportLabel is a map label for an airport referenced by the view.
type AirportLabel struct {
	Identifier string      `json:"icao"`
	Name       string      `json:"name"`
	Coord      model.Coord `json:"coord"`
}

// View is the filtered output handed to the renderer.
type View struct {
	GenerationID string                 `json:"generation_id"`
	Now          time.Time              `json:"now"`
	Arcs         []model.ProjectedArc   `json:"arcs"`
	Points       []model.ProjectedPoint `json:"points"`

	// ReferencedAirports holds every identifier used by the filtered arcs
	// and points; OngoingAirports only those of ongoing events.
	ReferencedAirports []string       `json:"referenced_airports"`
	OngoingAirports    []string       `json:"ongoing_airports"`
	AirportLabels      []AirportLabel `json:"airport_labels"`
}

// View projects gen, categorizes against now and applies settings. The same
// now is used for every step.
func (e *Engine) View(gen Generation, settings filter.Settings, now time.Time) View {
	pr := e.projector.ProjectAll(gen.Events, now)

	v := View{
		GenerationID: gen.ID,
		Now:          now,
		Arcs:         filter.Apply(pr.Arcs, settings),
		Points:       filter.Apply(pr.Points, settings),
	}

	referenced := make(map[string]struct{})
	ongoing := make(map[string]struct{})
	add := func(cat model.Category, ids ...string) {
		for _, id := range ids {
			referenced[id] = struct{}{}
			if cat == model.CategoryOngoing {
				ongoing[id] = struct{}{}
			}
		}
	}
	for _, a := range v.Arcs {
		add(a.Category, a.StartIdentifier, a.EndIdentifier)
	}
	for _, p := range v.Points {
		add(p.Category, p.Identifier)
	}

	v.ReferencedAirports = sortedKeys(referenced)
	v.OngoingAirports = sortedKeys(ongoing)

	v.AirportLabels = make([]AirportLabel, 0, len(v.ReferencedAirports))
	for _, id := range v.ReferencedAirports {
		r := e.airports.Resolve(id)
		if !r.Found {
			continue
		}
		v.AirportLabels = append(v.AirportLabels, AirportLabel{
			Identifier: id,
			Name:       r.DisplayName,
			Coord:      model.Coord{Lat: r.Latitude, Lng: r.Longitude},
		})
	}
	return v
}

// OngoingSet returns OngoingAirports as a set.
func (v View) OngoingSet() map[string]struct{} {
	set := make(map[string]struct{}, len(v.OngoingAirports))
	for _, id := range v.OngoingAirports {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
