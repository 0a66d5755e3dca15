package recur

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"eventmap/internal/model"
)

const week = 7 * 24 * time.Hour

var (
	// ErrMissingAnchor is returned for a multi-week template without an
	// anchor week. It is a configuration error and must abort startup.
	ErrMissingAnchor = errors.New("recur: anchor_week required when interval_weeks > 1")

	// ErrInvalidTemplate wraps any other malformed template field.
	ErrInvalidTemplate = errors.New("recur: invalid template")
)

// Template describes a recurring event that is not published by the
// external feed. Weekday and times of day are UTC.
type Template struct {
	Name string `yaml:"name" json:"name"`
	// Weekday is 0 (Sunday) .. 6 (Saturday).
	Weekday  int      `yaml:"weekday" json:"weekday"`
	StartUTC string   `yaml:"start_utc" json:"start_utc"` // "HH:MM"
	EndUTC   string   `yaml:"end_utc" json:"end_utc"`     // "HH:MM"
	Airports []string `yaml:"airports" json:"airports"`
	Banner   string   `yaml:"banner,omitempty" json:"banner,omitempty"`
	Link     string   `yaml:"link,omitempty" json:"link,omitempty"`
	// IntervalWeeks is 1 for weekly, N for every Nth week. Zero means 1.
	IntervalWeeks int `yaml:"interval_weeks" json:"interval_weeks"`
	// AnchorWeek is a "YYYY-MM-DD" date (UTC) of a known occurrence. Required
	// when IntervalWeeks > 1.
	AnchorWeek string `yaml:"anchor_week,omitempty" json:"anchor_week,omitempty"`
}

// compiled is a validated Template with parsed fields.
type compiled struct {
	tpl      Template
	weekday  rrule.Weekday
	start    time.Duration // offset from UTC midnight
	end      time.Duration
	interval int
	anchor   time.Time
	airports []string // trimmed, upper-cased
}

// rrule weekdays indexed by time.Weekday.
var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func compile(t Template) (compiled, error) {
	c := compiled{tpl: t, interval: t.IntervalWeeks}
	if strings.TrimSpace(t.Name) == "" {
		return c, fmt.Errorf("%w: empty name", ErrInvalidTemplate)
	}
	if t.Weekday < 0 || t.Weekday > 6 {
		return c, fmt.Errorf("%w: %q: weekday %d out of range 0-6", ErrInvalidTemplate, t.Name, t.Weekday)
	}
	c.weekday = weekdays[t.Weekday]

	var err error
	if c.start, err = parseTimeOfDay(t.StartUTC); err != nil {
		return c, fmt.Errorf("%w: %q: start_utc: %v", ErrInvalidTemplate, t.Name, err)
	}
	if c.end, err = parseTimeOfDay(t.EndUTC); err != nil {
		return c, fmt.Errorf("%w: %q: end_utc: %v", ErrInvalidTemplate, t.Name, err)
	}
	if c.end < c.start {
		return c, fmt.Errorf("%w: %q: end_utc before start_utc", ErrInvalidTemplate, t.Name)
	}
	if len(t.Airports) == 0 {
		return c, fmt.Errorf("%w: %q: no airports", ErrInvalidTemplate, t.Name)
	}
	c.airports = make([]string, 0, len(t.Airports))
	for _, a := range t.Airports {
		id := strings.ToUpper(strings.TrimSpace(a))
		if id == "" {
			return c, fmt.Errorf("%w: %q: empty airport identifier", ErrInvalidTemplate, t.Name)
		}
		c.airports = append(c.airports, id)
	}

	if c.interval <= 0 {
		c.interval = 1
	}
	if c.interval > 1 {
		if t.AnchorWeek == "" {
			return c, fmt.Errorf("%w: %q", ErrMissingAnchor, t.Name)
		}
		c.anchor, err = time.Parse(time.DateOnly, t.AnchorWeek)
		if err != nil {
			return c, fmt.Errorf("%w: %q: anchor_week: %v", ErrInvalidTemplate, t.Name, err)
		}
	}
	return c, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	tod, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute, nil
}

// Validate checks every template. It is meant to run once at startup so a
// broken template fails loudly instead of being skipped per request.
func Validate(templates []Template) error {
	var errs []error
	for _, t := range templates {
		if _, err := compile(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveAll returns exactly one occurrence per template: the next upcoming
// or currently active one relative to ref.
func ResolveAll(templates []Template, ref time.Time) ([]model.RawEvent, error) {
	out := make([]model.RawEvent, 0, len(templates))
	for _, t := range templates {
		ev, err := Resolve(t, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Resolve computes the occurrence of t relative to ref.
func Resolve(t Template, ref time.Time) (model.RawEvent, error) {
	c, err := compile(t)
	if err != nil {
		return model.RawEvent{}, err
	}

	ref = ref.UTC()
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)

	// The first two weekly occurrences on or after today's start time are
	// this week's candidate and next week's rollover.
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  1,
		Count:     2,
		Byweekday: []rrule.Weekday{c.weekday},
		Dtstart:   midnight.Add(c.start),
	})
	if err != nil {
		return model.RawEvent{}, fmt.Errorf("recur: %q: build rule: %w", t.Name, err)
	}
	occ := rule.All()
	if len(occ) != 2 {
		return model.RawEvent{}, fmt.Errorf("recur: %q: expected 2 occurrences, got %d", t.Name, len(occ))
	}

	start := occ[0]
	dur := c.end - c.start
	sameDay := start.Year() == ref.Year() && start.YearDay() == ref.YearDay()
	if sameDay && start.Add(dur).Before(ref) {
		start = occ[1]
	}

	if c.interval > 1 {
		diffWeeks := int64(math.Floor(float64(start.Sub(c.anchor)) / float64(week)))
		if diffWeeks%int64(c.interval) != 0 {
			start = start.Add(week)
		}
	}

	return model.RawEvent{
		Name:          t.Name,
		Airports:      c.airports,
		Start:         start,
		End:           start.Add(dur),
		Banner:        t.Banner,
		Link:          t.Link,
		Recurring:     true,
		IntervalWeeks: c.interval,
	}, nil
}

// Defaults returns the built-in recurring events.
func Defaults() []Template {
	return []Template{
		{
			Name:          "Zurich Night",
			Weekday:       int(time.Tuesday),
			StartUTC:      "19:00",
			EndUTC:        "21:00",
			Airports:      []string{"LSZH"},
			Banner:        "/images/events/zurich-night.png",
			Link:          "https://vacc.ch",
			IntervalWeeks: 1,
		},
		{
			Name:          "Frankfurt Friday",
			Weekday:       int(time.Friday),
			StartUTC:      "19:00",
			EndUTC:        "21:00",
			Airports:      []string{"EDDF"},
			Banner:        "/images/events/frankfurt-friday.png",
			Link:          "https://vatsim-germany.org/",
			IntervalWeeks: 2,
			AnchorWeek:    "2024-01-19",
		},
		{
			Name:          "Munich Wednesday",
			Weekday:       int(time.Wednesday),
			StartUTC:      "17:30",
			EndUTC:        "20:30",
			Airports:      []string{"EDDM"},
			Banner:        "/images/events/munich-wednesday.png",
			Link:          "https://vatsim-germany.org/events/view",
			IntervalWeeks: 1,
		},
	}
}
