package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"eventmap/internal/airport"
	"eventmap/internal/config"
	"eventmap/internal/engine"
	"eventmap/internal/feed"
	"eventmap/internal/filter"
	appLog "eventmap/internal/log"
	"eventmap/internal/metrics"
	"eventmap/internal/refresh"
	"eventmap/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	_ = godotenv.Load(".env")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Setup(appLog.Options{
		Level:      appLog.ParseLevel(conf.Log.Level),
		File:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
		MaxAgeDays: conf.Log.MaxAgeDays,
	})
	defer appLog.Sync()

	appLog.Info("eventmap starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Warn("invalid timezone; using UTC", "timezone", conf.Timezone, "err", err)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"traffic_refresh", conf.TrafficCron,
		"airports_path", conf.AirportsPath,
		"recurring_count", len(conf.Recurring),
		"once", flags.once,
	)

	airports, err := airport.LoadFile(conf.AirportsPath)
	if err != nil {
		appLog.Error("failed to load airports", err, "path", conf.AirportsPath)
		os.Exit(1)
	}
	appLog.Info("airports loaded", "count", airports.Len())

	eng, err := engine.New(airports, conf.Recurring)
	if err != nil {
		appLog.Error("invalid recurring event configuration", err)
		os.Exit(1)
	}

	m := metrics.New()
	store := engine.NewStore()
	client := feed.NewClient(feed.Options{
		EventsURL: conf.Feed.EventsURL,
		DataURL:   conf.Feed.DataURL,
		UserAgent: conf.Feed.UserAgent,
		Timeout:   conf.Feed.Timeout,
	})
	refresher := refresh.New(eng, store, client, client, m, refresh.Options{
		EventsSpec:  conf.RefreshCron,
		TrafficSpec: conf.TrafficCron,
		Location:    loc,
	})

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		code := runOnce(ctx, refresher, eng, store)
		cancel()
		appLog.Sync()
		os.Exit(code)
	}

	if err := refresher.RunOnce(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}
	if err := refresher.Start(ctx); err != nil {
		appLog.Error("failed to start scheduler", err)
		os.Exit(1)
	}

	srv := web.NewServer(conf, eng, store, m, loc)
	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("eventmap exiting")
}

// runOnce refreshes once and prints the default view to stdout.
func runOnce(ctx context.Context, r *refresh.Refresher, eng *engine.Engine, store *engine.Store) int {
	if err := r.RefreshEvents(ctx); err != nil {
		appLog.Error("refresh failed", err)
		return 1
	}
	gen, _ := store.Generation()
	v := eng.View(gen, filter.Default(), gen.BuiltAt)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		appLog.Error("failed to write view", err)
		return 1
	}
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventmap/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh, print the default view as JSON and exit")

	flag.Parse()

	return cfg
}
