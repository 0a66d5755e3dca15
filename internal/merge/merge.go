package merge

import (
	"slices"
	"strings"

	"github.com/iancoleman/orderedmap"

	"eventmap/internal/model"
)

// Key returns the dedup key of ev: sorted airport identifiers joined with
// "-", then "|" and the event name.
func Key(ev model.RawEvent) string {
	ids := slices.Clone(ev.Airports)
	slices.Sort(ids)
	return strings.Join(ids, "-") + "|" + ev.Name
}

// Dedupe collapses events that share a dedup key, keeping the one with the
// earliest start. Ties keep the first seen. Events without airports are
// dropped. Output follows the order in which keys were first seen.
func Dedupe(events []model.RawEvent) []model.RawEvent {
	kept := orderedmap.New()
	for _, ev := range events {
		if len(ev.Airports) == 0 {
			continue
		}
		key := Key(ev)
		if prev, ok := kept.Get(key); ok && !ev.Start.Before(prev.(model.RawEvent).Start) {
			continue
		}
		// Set keeps the original position of an existing key.
		kept.Set(key, ev)
	}

	out := make([]model.RawEvent, 0, len(kept.Keys()))
	for _, key := range kept.Keys() {
		v, _ := kept.Get(key)
		out = append(out, v.(model.RawEvent))
	}
	return out
}

// Merge concatenates external and recurring events, external first, and
// dedupes the result.
func Merge(external, recurring []model.RawEvent) []model.RawEvent {
	all := make([]model.RawEvent, 0, len(external)+len(recurring))
	all = append(all, external...)
	all = append(all, recurring...)
	return Dedupe(all)
}
