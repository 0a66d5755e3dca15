package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmap/internal/model"
)

var base = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func event(name string, startOffset time.Duration, airports ...string) model.RawEvent {
	return model.RawEvent{
		Name:     name,
		Airports: airports,
		Start:    base.Add(startOffset),
		End:      base.Add(startOffset + 2*time.Hour),
	}
}

func TestKey(t *testing.T) {
	a := event("Fly-In", 0, "LSZH", "EDDF", "EDDM")
	b := event("Fly-In", 0, "EDDM", "LSZH", "EDDF")
	assert.Equal(t, "EDDF-EDDM-LSZH|Fly-In", Key(a))
	assert.Equal(t, Key(a), Key(b))

	// Key must not reorder the caller's slice.
	assert.Equal(t, []string{"LSZH", "EDDF", "EDDM"}, a.Airports)
}

func TestDedupeKeepsEarliest(t *testing.T) {
	late := event("Fly-In", 48*time.Hour, "LSZH", "EDDF")
	early := event("Fly-In", 24*time.Hour, "EDDF", "LSZH")
	other := event("Other", 0, "EGLL")

	got := Dedupe([]model.RawEvent{late, other, early})
	require.Len(t, got, 2)

	// The surviving event takes the slot of the first-seen key.
	assert.Equal(t, early.Start, got[0].Start)
	assert.Equal(t, []string{"EDDF", "LSZH"}, got[0].Airports)
	assert.Equal(t, "Other", got[1].Name)
}

func TestDedupeTieKeepsFirst(t *testing.T) {
	first := event("Fly-In", 0, "LSZH")
	first.Link = "first"
	second := event("Fly-In", 0, "LSZH")
	second.Link = "second"

	got := Dedupe([]model.RawEvent{first, second})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Link)
}

func TestDedupeDropsEventsWithoutAirports(t *testing.T) {
	got := Dedupe([]model.RawEvent{event("Nowhere", 0), event("Somewhere", 0, "EGLL")})
	require.Len(t, got, 1)
	assert.Equal(t, "Somewhere", got[0].Name)
}

func TestDedupeDifferentNamesSameAirports(t *testing.T) {
	got := Dedupe([]model.RawEvent{event("A", 0, "LSZH"), event("B", 0, "LSZH")})
	assert.Len(t, got, 2)
}

func TestDedupeSurvivorIsEarliestForEveryKey(t *testing.T) {
	var in []model.RawEvent
	for i := 0; i < 20; i++ {
		offset := time.Duration((i*7)%11) * time.Hour
		in = append(in, event("Loop", offset, "EGLL", "EHAM"))
		in = append(in, event("Loop", offset, "LFPG"))
	}

	got := Dedupe(in)
	require.Len(t, got, 2)
	for _, survivor := range got {
		for _, ev := range in {
			if Key(ev) == Key(survivor) {
				assert.False(t, ev.Start.Before(survivor.Start))
			}
		}
	}
}

func TestMergeExternalFirst(t *testing.T) {
	external := []model.RawEvent{event("Zurich Night", 24*time.Hour, "LSZH")}
	recurring := []model.RawEvent{event("Zurich Night", 0, "LSZH"), event("Munich Wednesday", 0, "EDDM")}
	recurring[0].Recurring = true

	got := Merge(external, recurring)
	require.Len(t, got, 2)
	assert.Equal(t, "Zurich Night", got[0].Name)
	assert.True(t, got[0].Recurring, "earlier recurring occurrence wins")
	assert.Equal(t, "Munich Wednesday", got[1].Name)
}
