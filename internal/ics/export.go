// Package ics exports the current event set as an iCalendar feed.
package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventmap/internal/category"
	"eventmap/internal/merge"
	"eventmap/internal/model"
)

const productID = "-//eventmap//events//EN"

// UID derives a stable identifier from the event key and start instant so
// that calendar clients update rather than duplicate entries.
func UID(ev model.RawEvent) string {
	sum := sha256.Sum256([]byte(merge.Key(ev) + "|" + ev.Start.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:16]) + "@eventmap"
}

const bucketProperty ical.ComponentProperty = "X-EVENTMAP-BUCKET"

// Export renders events as a VCALENDAR. CATEGORIES tells recurring events
// from feed events; the bucket relative to now goes into X-EVENTMAP-BUCKET.
func Export(events []model.RawEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Events")

	for _, ev := range events {
		ve := cal.AddEvent(UID(ev))
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Name)
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetLocation(strings.Join(ev.Airports, ", "))
		if ev.Link != "" {
			ve.SetURL(ev.Link)
		}
		desc := "Airports: " + strings.Join(ev.Airports, ", ")
		if ev.Recurring {
			desc += "\nRecurring event"
		}
		ve.SetDescription(desc)

		kind := "External"
		if ev.Recurring {
			kind = "Recurring"
		}
		ve.AddProperty(ical.ComponentPropertyCategories, kind)
		res := category.Categorize(ev.Start, ev.End, now)
		ve.AddProperty(bucketProperty, string(res.Category))
	}
	return cal.Serialize()
}
