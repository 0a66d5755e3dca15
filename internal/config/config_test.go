package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmap/internal/recur"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshCron)
	assert.Equal(t, "@every 15s", cfg.TrafficCron)
	assert.Equal(t, DefaultEventsURL, cfg.Feed.EventsURL)
	assert.Len(t, cfg.Recurring, len(recur.Defaults()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `listen: ":9000"
timezone: Europe/Zurich
feed:
  timeout: 5s
recurring:
  - name: Test Night
    weekday: 3
    start_utc: "18:00"
    end_utc: "20:00"
    airports: [LSGG]
    interval_weeks: 1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("EVENTMAP_LISTEN", ":9100")
	t.Setenv("EVENTMAP_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("EVENTMAP_BASIC_AUTH_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Listen)
	assert.Equal(t, 5*time.Second, cfg.Feed.Timeout)
	require.Len(t, cfg.Recurring, 1)
	assert.Equal(t, "Test Night", cfg.Recurring[0].Name)
	assert.True(t, cfg.BasicAuth.Enabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Zurich", loc.String())
}

func TestLoadEmptyRecurringDisablesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recurring: []\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg.Recurring)
	assert.Empty(t, cfg.Recurring)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.AirportsPath = "/data/airports.json"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/airports.json", got.AirportsPath)
	assert.Equal(t, cfg.Recurring, got.Recurring)
}
