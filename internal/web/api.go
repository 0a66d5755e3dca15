package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"eventmap/internal/engine"
	"eventmap/internal/filter"
	"eventmap/internal/ics"
	appLog "eventmap/internal/log"
	"eventmap/internal/model"
	"eventmap/internal/traffic"
)

var errNoData = errors.New("no event data yet")

const (
	contentTypeJSON    = "application/json; charset=utf-8"
	contentTypeMsgpack = "application/msgpack"
)

// agendaResponse is the JSON response shape for /api/agenda.
type agendaResponse struct {
	GenerationID string               `json:"generation_id"`
	Now          time.Time            `json:"now"`
	Entries      []engine.AgendaEntry `json:"entries"`
}

// pilotsResponse is the JSON response shape for /api/pilots.
type pilotsResponse struct {
	Update    time.Time       `json:"update"`
	EventOnly bool            `json:"event_only"`
	Pilots    []traffic.Pilot `json:"pilots"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents returns the filtered map view.
//
// GET /api/events?categories=ongoing,today&normal=true&exam=false
//
//	&range_start=2026-10-19T00:00:00Z&range_end=2026-10-21T00:00:00Z
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "events", func(v engine.View, now time.Time) any {
		return v
	})
}

// handleAgenda returns the side list for the same query as /api/events.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "agenda", func(v engine.View, now time.Time) any {
		entries := engine.Agenda(v, now)
		if entries == nil {
			entries = []engine.AgendaEntry{}
		}
		return agendaResponse{GenerationID: v.GenerationID, Now: now, Entries: entries}
	})
}

// handlePilots returns live pilots. With event_only=true only pilots
// flying from or to an ongoing event airport of the filtered view are kept.
func (s *Server) handlePilots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eventOnly := false
	if raw := q.Get("event_only"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "event_only must be a boolean")
			return
		}
		eventOnly = b
	}

	data, ok := s.store.Traffic()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no traffic data yet")
		return
	}

	var ongoing map[string]struct{}
	if eventOnly {
		v, err := s.view(q, s.currentTime())
		if err != nil {
			s.writeViewError(w, err)
			return
		}
		ongoing = v.OngoingSet()
	}

	writeJSON(w, http.StatusOK, pilotsResponse{
		Update:    data.General.Update,
		EventOnly: eventOnly,
		Pilots:    traffic.Filter(data.Pilots, ongoing, eventOnly),
	})
}

// handleCalendar exports the current generation as iCalendar.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	gen, ok := s.store.Generation()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, errNoData.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(gen.Events, s.currentTime())))
}

// serveCached renders a view-derived body, reusing a cached rendering of
// the same query, format, generation, minute and ongoing state. Clients sending
// Accept: application/msgpack get MessagePack instead of JSON.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, route string, render func(engine.View, time.Time) any) {
	now := s.currentTime()
	q := r.URL.Query()
	contentType := negotiate(r)

	gen, ok := s.store.Generation()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, errNoData.Error())
		return
	}

	key := fmt.Sprintf("%s|%s|%s|%s|%d|%d", route, contentType, q.Encode(), gen.ID,
		now.Truncate(time.Minute).Unix(), boundariesPassed(gen, now))
	if body, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		writeBody(w, contentType, body)
		return
	}
	s.metrics.CacheMiss()

	settings, err := parseSettings(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := s.engine.View(gen, settings, now)

	var body []byte
	if contentType == contentTypeMsgpack {
		body, err = encodeMsgpack(render(v, now))
	} else {
		body, err = json.Marshal(render(v, now))
	}
	if err != nil {
		appLog.Error("failed to encode response", err, "route", route, "content_type", contentType)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	s.cache.Add(key, body)
	writeBody(w, contentType, body)
}

// boundariesPassed counts event starts reached and ends passed at now. It
// changes exactly when some event enters or leaves the ongoing state, so a
// cached body never outlives such a transition.
func boundariesPassed(gen engine.Generation, now time.Time) int {
	n := 0
	for _, ev := range gen.Events {
		if !now.Before(ev.Start) {
			n++
		}
		if now.After(ev.End) {
			n++
		}
	}
	return n
}

func negotiate(r *http.Request) string {
	if strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack) {
		return contentTypeMsgpack
	}
	return contentTypeJSON
}

// encodeMsgpack uses the json tags so both formats share field names.
func encodeMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) view(q url.Values, now time.Time) (engine.View, error) {
	gen, ok := s.store.Generation()
	if !ok {
		return engine.View{}, errNoData
	}
	settings, err := parseSettings(q)
	if err != nil {
		return engine.View{}, err
	}
	return s.engine.View(gen, settings, now), nil
}

func (s *Server) writeViewError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNoData) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) currentTime() time.Time {
	return s.now().In(s.loc)
}

// parseSettings applies query parameters on top of the default settings.
// The toggles go through the setters, so normal=false&exam=false still
// leaves one of them on.
func parseSettings(q url.Values) (filter.Settings, error) {
	st := filter.Default()

	if q.Has("categories") {
		var cats []model.Category
		for _, part := range strings.Split(q.Get("categories"), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			c := model.Category(part)
			if !c.Valid() {
				return st, fmt.Errorf("unknown category %q", part)
			}
			cats = append(cats, c)
		}
		st = st.WithCategories(cats)
	}

	if raw := q.Get("normal"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return st, errors.New("normal must be a boolean")
		}
		st = st.WithShowNormal(b)
	}
	if raw := q.Get("exam"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return st, errors.New("exam must be a boolean")
		}
		st = st.WithShowExam(b)
	}

	rs, re := q.Get("range_start"), q.Get("range_end")
	switch {
	case rs == "" && re == "":
	case rs == "" || re == "":
		return st, errors.New("range_start and range_end must be given together")
	default:
		start, err := time.Parse(time.RFC3339, rs)
		if err != nil {
			return st, errors.New("range_start must be RFC 3339")
		}
		end, err := time.Parse(time.RFC3339, re)
		if err != nil {
			return st, errors.New("range_end must be RFC 3339")
		}
		st = st.WithDateRange(true, &filter.DateRange{Start: start, End: end})
	}
	return st, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Add("Vary", "Accept")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
