package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventsBody = `{"data":[
 {"name":"Heathrow Rush","link":"https://example.org/1","banner":"https://example.org/b.png",
  "start_time":"2026-10-19T16:00:00.000000Z","end_time":"2026-10-19T20:00:00.000000Z",
  "airports":[{"icao":"egll"},{"icao":" EDDF "}]},
 {"name":"No Airports","start_time":"2026-10-19T16:00:00Z","end_time":"2026-10-19T20:00:00Z","airports":[]},
 {"name":"Bad Time","start_time":"yesterday","end_time":"2026-10-19T20:00:00Z","airports":[{"icao":"LSZH"}]},
 {"name":"Backwards","start_time":"2026-10-19T20:00:00Z","end_time":"2026-10-19T16:00:00Z","airports":[{"icao":"LSZH"}]},
 {"name":"No Banner","banner":null,"start_time":"2026-10-20T10:00:00Z","end_time":"2026-10-20T12:00:00Z","airports":[{"icao":"EDDM"}]}
]}`

func TestDecodeEventsDropsMalformedRecords(t *testing.T) {
	events, stats, err := DecodeEvents([]byte(eventsBody))
	require.NoError(t, err)

	assert.Equal(t, DecodeStats{Total: 5, NoAirports: 1, BadTime: 1, EndBeforeStart: 1}, stats)
	assert.Equal(t, 3, stats.Dropped())
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "Heathrow Rush", first.Name)
	assert.Equal(t, []string{"EGLL", "EDDF"}, first.Airports)
	assert.Equal(t, time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, "https://example.org/b.png", first.Banner)
	assert.False(t, first.Recurring)

	assert.Equal(t, "No Banner", events[1].Name)
	assert.Empty(t, events[1].Banner)
}

func TestDecodeEventsRejectsInvalidBody(t *testing.T) {
	_, _, err := DecodeEvents([]byte(`{"data":`))
	assert.Error(t, err)
}

func TestDecodeTraffic(t *testing.T) {
	body := `{"general":{"version":3,"reload":1,"update_timestamp":"2026-10-19T15:00:00Z"},
	"pilots":[{"cid":1,"callsign":"SWR12","latitude":47.4,"longitude":8.5,"altitude":3000,
	"flight_plan":{"departure":"LSZH","arrival":"EDDF","cruise_tas":"450"}},
	{"cid":2,"callsign":"N123","flight_plan":null}]}`

	d, err := DecodeTraffic([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 3, d.General.Version)
	require.Len(t, d.Pilots, 2)
	require.NotNil(t, d.Pilots[0].FlightPlan)
	assert.Equal(t, "EDDF", d.Pilots[0].FlightPlan.Arrival)
	assert.Nil(t, d.Pilots[1].FlightPlan)
}

func TestFetchUsesValidators(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "eventmap-test", r.Header.Get("User-Agent"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(eventsBody))
	}))
	defer srv.Close()

	c := NewClient(Options{EventsURL: srv.URL, UserAgent: "eventmap-test"})

	first, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(2), hits.Load())

	events, _, err := c.FetchEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFetchFallsBackToCachedBody(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(eventsBody))
	}))
	defer srv.Close()

	c := NewClient(Options{EventsURL: srv.URL})
	_, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	res, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, eventsBody, string(res.Body))
}

func TestFetchFallsBackOnTruncatedBody(t *testing.T) {
	var truncate atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !truncate.Load() {
			_, _ = w.Write([]byte(eventsBody))
			return
		}
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 4096\r\n\r\n{\"data\":[")
		_ = buf.Flush()
	}))
	defer srv.Close()

	c := NewClient(Options{})
	_, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	truncate.Store(true)
	res, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, eventsBody, string(res.Body))

	fresh := NewClient(Options{})
	_, err = fresh.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{})
	_, err := c.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)

	_, err = c.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchNotModifiedWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := NewClient(Options{})
	_, err := c.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNotModifiedNoCache)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://my.vatsim.net/...(redacted)", redactURL("https://my.vatsim.net/api/v2/events/latest"))
	assert.Equal(t, "https://example.org", redactURL("https://example.org"))
	assert.Equal(t, "feed://...(redacted)", redactURL("::nope"))
}
