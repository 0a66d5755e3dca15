package engine

import (
	"sync"
	"time"

	"eventmap/internal/traffic"
)

// Store keeps the latest published generation and traffic snapshot for the
// HTTP layer. Results of overlapping refreshes are ordered by the time
// their fetch started, not by when they finished.
type Store struct {
	mu sync.RWMutex

	gen    Generation
	hasGen bool

	traffic        traffic.Data
	trafficFetched time.Time
	hasTraffic     bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Publish stores gen unless a generation whose fetch started later is
// already present. It reports whether gen was accepted.
func (s *Store) Publish(gen Generation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasGen && gen.FetchStartedAt.Before(s.gen.FetchStartedAt) {
		return false
	}
	s.gen = gen
	s.hasGen = true
	return true
}

// Generation returns the current generation.
func (s *Store) Generation() (Generation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen, s.hasGen
}

// PublishTraffic stores a traffic snapshot with the same ordering rule as
// Publish.
func (s *Store) PublishTraffic(d traffic.Data, fetchStartedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasTraffic && fetchStartedAt.Before(s.trafficFetched) {
		return false
	}
	s.traffic = d
	s.trafficFetched = fetchStartedAt
	s.hasTraffic = true
	return true
}

// Traffic returns the current traffic snapshot.
func (s *Store) Traffic() (traffic.Data, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traffic, s.hasTraffic
}
