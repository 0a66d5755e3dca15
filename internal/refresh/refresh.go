// Package refresh drives the feed -> engine -> store pipeline on a schedule.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"eventmap/internal/engine"
	"eventmap/internal/feed"
	appLog "eventmap/internal/log"
	"eventmap/internal/metrics"
	"eventmap/internal/model"
	"eventmap/internal/traffic"
)

// EventSource fetches the external event feed.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]model.RawEvent, feed.DecodeStats, error)
}

// TrafficSource fetches the live network feed.
type TrafficSource interface {
	FetchTraffic(ctx context.Context) (traffic.Data, error)
}

// Options configures a Refresher. Empty specs disable the matching job.
type Options struct {
	EventsSpec  string
	TrafficSpec string
	Location    *time.Location
}

// Refresher fetches feeds and publishes the results into a Store.
type Refresher struct {
	engine  *engine.Engine
	store   *engine.Store
	events  EventSource
	traffic TrafficSource
	metrics *metrics.Metrics
	opts    Options

	// now is replaceable in tests.
	now func() time.Time
}

func New(eng *engine.Engine, store *engine.Store, events EventSource, tr TrafficSource, m *metrics.Metrics, opts Options) *Refresher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Refresher{
		engine:  eng,
		store:   store,
		events:  events,
		traffic: tr,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// RefreshEvents fetches the event feed, builds a generation and publishes
// it. On fetch failure the previous generation stays in the store.
func (r *Refresher) RefreshEvents(ctx context.Context) error {
	started := r.now().In(r.opts.Location)

	external, stats, err := r.events.FetchEvents(ctx)
	r.metrics.Dropped("no_airports", stats.NoAirports)
	r.metrics.Dropped("bad_time", stats.BadTime)
	r.metrics.Dropped("end_before_start", stats.EndBeforeStart)
	if err != nil {
		r.metrics.Refresh("events", r.now().Sub(started), err)
		return fmt.Errorf("refresh events: %w", err)
	}

	gen, err := r.engine.Build(external, started, r.now().In(r.opts.Location))
	r.metrics.Refresh("events", r.now().Sub(started), err)
	if err != nil {
		return fmt.Errorf("refresh events: %w", err)
	}

	if !r.store.Publish(gen) {
		appLog.Warn("stale generation discarded", "generation", gen.ID, "fetch_started_at", started)
		return nil
	}
	r.metrics.Generation(len(gen.Events), gen.BuiltAt)
	appLog.Info("generation published",
		"generation", gen.ID,
		"external", len(external),
		"events", len(gen.Events),
		"dropped", stats.Dropped(),
	)
	return nil
}

// RefreshTraffic fetches and publishes a live network snapshot.
func (r *Refresher) RefreshTraffic(ctx context.Context) error {
	started := r.now()

	data, err := r.traffic.FetchTraffic(ctx)
	r.metrics.Refresh("traffic", r.now().Sub(started), err)
	if err != nil {
		return fmt.Errorf("refresh traffic: %w", err)
	}

	if r.store.PublishTraffic(data, started) {
		r.metrics.Pilots(len(data.Pilots))
		appLog.Debug("traffic published", "pilots", len(data.Pilots), "update", data.General.Update)
	}
	return nil
}

// RunOnce refreshes both feeds concurrently. A traffic failure does not
// stop the event refresh and vice versa; the first error is returned.
func (r *Refresher) RunOnce(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error { return r.RefreshEvents(ctx) })
	if r.traffic != nil {
		eg.Go(func() error { return r.RefreshTraffic(ctx) })
	}
	return eg.Wait()
}

// Start registers the cron jobs and returns once they are scheduled. The
// scheduler stops when ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.opts.Location))

	if r.opts.EventsSpec != "" {
		if _, err := c.AddFunc(r.opts.EventsSpec, func() {
			if err := r.RefreshEvents(ctx); err != nil {
				appLog.Error("event refresh failed", err)
			}
		}); err != nil {
			return fmt.Errorf("refresh: schedule %q: %w", r.opts.EventsSpec, err)
		}
	}
	if r.opts.TrafficSpec != "" && r.traffic != nil {
		if _, err := c.AddFunc(r.opts.TrafficSpec, func() {
			if err := r.RefreshTraffic(ctx); err != nil {
				appLog.Error("traffic refresh failed", err)
			}
		}); err != nil {
			return fmt.Errorf("refresh: schedule %q: %w", r.opts.TrafficSpec, err)
		}
	}

	c.Start()
	appLog.Info("scheduler started", "events", r.opts.EventsSpec, "traffic", r.opts.TrafficSpec)

	go func() {
		<-ctx.Done()
		stopped := c.Stop()
		<-stopped.Done()
		appLog.Info("scheduler stopped")
	}()
	return nil
}
