package airport

import (
	"strings"

	"eventmap/internal/model"
)

// Resolver looks up airports by identifier. A miss is a normal outcome and
// is reported through ResolvedAirport.Found, never as an error.
type Resolver interface {
	Resolve(identifier string) model.ResolvedAirport
}

// Table is a read-only, in-memory airport lookup keyed by identifier.
// It is built once at startup and shared without locking.
type Table struct {
	byID map[string]model.AirportRecord
}

// NewTable builds a Table from records. Identifiers are normalized to upper
// case; a later record with the same identifier replaces an earlier one.
func NewTable(records []model.AirportRecord) *Table {
	t := &Table{byID: make(map[string]model.AirportRecord, len(records))}
	for _, r := range records {
		id := normalize(r.Identifier)
		if id == "" {
			continue
		}
		r.Identifier = id
		t.byID[id] = r
	}
	return t
}

// Resolve returns the airport for identifier, or a fallback with
// Found=false whose display name is the identifier itself.
func (t *Table) Resolve(identifier string) model.ResolvedAirport {
	if t != nil {
		if r, ok := t.byID[normalize(identifier)]; ok {
			return model.ResolvedAirport{
				Latitude:    r.Latitude,
				Longitude:   r.Longitude,
				DisplayName: r.DisplayName,
				Found:       true,
			}
		}
	}
	return model.ResolvedAirport{DisplayName: identifier}
}

// Len returns the number of airports in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byID)
}

// Label formats a resolved airport for display as "name (identifier)".
// Unresolved airports carry the identifier as name.
func Label(a model.ResolvedAirport, identifier string) string {
	return a.DisplayName + " (" + identifier + ")"
}

func normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
