package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmap/internal/airport"
	"eventmap/internal/engine"
	"eventmap/internal/feed"
	"eventmap/internal/metrics"
	"eventmap/internal/model"
	"eventmap/internal/traffic"
)

type fakeEvents struct {
	events []model.RawEvent
	stats  feed.DecodeStats
	err    error
	calls  atomic.Int32
}

func (f *fakeEvents) FetchEvents(ctx context.Context) ([]model.RawEvent, feed.DecodeStats, error) {
	f.calls.Add(1)
	return f.events, f.stats, f.err
}

type fakeTraffic struct {
	data  traffic.Data
	err   error
	calls atomic.Int32
}

func (f *fakeTraffic) FetchTraffic(ctx context.Context) (traffic.Data, error) {
	f.calls.Add(1)
	return f.data, f.err
}

var testNow = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func newRefresher(t *testing.T, ev EventSource, tr TrafficSource) (*Refresher, *engine.Store) {
	t.Helper()
	table := airport.NewTable([]model.AirportRecord{
		{Identifier: "EGLL", Latitude: 51.47, Longitude: -0.45, DisplayName: "London Heathrow"},
	})
	eng, err := engine.New(table, nil)
	require.NoError(t, err)
	store := engine.NewStore()
	r := New(eng, store, ev, tr, metrics.New(), Options{})
	r.now = func() time.Time { return testNow }
	return r, store
}

func TestRefreshEventsPublishes(t *testing.T) {
	ev := &fakeEvents{events: []model.RawEvent{{
		Name:     "Heathrow Rush",
		Airports: []string{"EGLL"},
		Start:    testNow,
		End:      testNow.Add(time.Hour),
	}}}
	r, store := newRefresher(t, ev, nil)

	require.NoError(t, r.RefreshEvents(context.Background()))

	gen, ok := store.Generation()
	require.True(t, ok)
	assert.Len(t, gen.Events, 1)
	assert.Equal(t, testNow, gen.FetchStartedAt)
}

func TestRefreshEventsKeepsPreviousOnFailure(t *testing.T) {
	ev := &fakeEvents{events: []model.RawEvent{{
		Name:     "Heathrow Rush",
		Airports: []string{"EGLL"},
		Start:    testNow,
		End:      testNow.Add(time.Hour),
	}}}
	r, store := newRefresher(t, ev, nil)
	require.NoError(t, r.RefreshEvents(context.Background()))
	before, _ := store.Generation()

	ev.err = errors.New("feed down")
	r.now = func() time.Time { return testNow.Add(time.Minute) }
	assert.Error(t, r.RefreshEvents(context.Background()))

	after, _ := store.Generation()
	assert.Equal(t, before.ID, after.ID)
}

func TestRefreshTraffic(t *testing.T) {
	tr := &fakeTraffic{data: traffic.Data{Pilots: []traffic.Pilot{{CID: 1}, {CID: 2}}}}
	r, store := newRefresher(t, &fakeEvents{}, tr)

	require.NoError(t, r.RefreshTraffic(context.Background()))
	d, ok := store.Traffic()
	require.True(t, ok)
	assert.Len(t, d.Pilots, 2)

	tr.err = errors.New("timeout")
	assert.Error(t, r.RefreshTraffic(context.Background()))
	d, _ = store.Traffic()
	assert.Len(t, d.Pilots, 2)
}

func TestRunOnceRefreshesBoth(t *testing.T) {
	ev := &fakeEvents{}
	tr := &fakeTraffic{err: errors.New("timeout")}
	r, store := newRefresher(t, ev, tr)

	err := r.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), ev.calls.Load())
	assert.Equal(t, int32(1), tr.calls.Load())

	_, ok := store.Generation()
	assert.True(t, ok)
}

func TestStartRejectsBadSpec(t *testing.T) {
	r, _ := newRefresher(t, &fakeEvents{}, nil)
	r.opts.EventsSpec = "not a cron spec"
	assert.Error(t, r.Start(context.Background()))
}

func TestStartRunsJobs(t *testing.T) {
	ev := &fakeEvents{}
	r, _ := newRefresher(t, ev, nil)
	r.opts.EventsSpec = "@every 1s"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))

	assert.Eventually(t, func() bool { return ev.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
