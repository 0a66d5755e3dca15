package filter

import (
	"maps"
	"strings"
	"time"

	"eventmap/internal/model"
)

// DateRange is an inclusive custom window. It only takes effect when both
// bounds are set.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Settings is an immutable snapshot of the user's filter choices. Use the
// With*/Toggle* methods to derive new values; they keep ShowNormal and
// ShowExam from both being false. The zero value equals Default().
type Settings struct {
	// nil means the default buckets.
	enabled      map[model.Category]bool
	hideNormal   bool
	hideExam     bool
	useDateRange bool
	dateRange    *DateRange
}

// Default returns the initial settings: every bucket except day6plus,
// both event types, no date range.
func Default() Settings {
	return Settings{enabled: defaultEnabled()}
}

func defaultEnabled() map[model.Category]bool {
	enabled := make(map[model.Category]bool, len(model.Categories))
	for _, c := range model.Categories {
		enabled[c] = c != model.CategoryDay6Plus
	}
	return enabled
}

func (s Settings) clone() Settings {
	s.enabled = maps.Clone(s.enabled)
	if s.dateRange != nil {
		r := *s.dateRange
		s.dateRange = &r
	}
	return s
}

func (s Settings) ShowNormal() bool   { return !s.hideNormal }
func (s Settings) ShowExam() bool     { return !s.hideExam }
func (s Settings) UseDateRange() bool { return s.useDateRange }

// Enabled reports whether bucket c is switched on.
func (s Settings) Enabled(c model.Category) bool {
	if s.enabled == nil {
		return c != model.CategoryDay6Plus
	}
	return s.enabled[c]
}

// DateRange returns the configured range, if any.
func (s Settings) DateRange() (DateRange, bool) {
	if s.dateRange == nil {
		return DateRange{}, false
	}
	return *s.dateRange, true
}

// WithCategory returns s with bucket c switched on or off.
func (s Settings) WithCategory(c model.Category, on bool) Settings {
	s = s.clone()
	if s.enabled == nil {
		s.enabled = defaultEnabled()
	}
	s.enabled[c] = on
	return s
}

// WithCategories returns s with exactly the listed buckets enabled.
func (s Settings) WithCategories(cats []model.Category) Settings {
	s = s.clone()
	s.enabled = make(map[model.Category]bool, len(model.Categories))
	for _, c := range cats {
		s.enabled[c] = true
	}
	return s
}

// ToggleCategory flips bucket c.
func (s Settings) ToggleCategory(c model.Category) Settings {
	return s.WithCategory(c, !s.Enabled(c))
}

// WithShowNormal sets the non-exam toggle. Turning it off while exams are
// already hidden turns exams back on.
func (s Settings) WithShowNormal(on bool) Settings {
	s = s.clone()
	s.hideNormal = !on
	if s.hideNormal && s.hideExam {
		s.hideExam = false
	}
	return s
}

// WithShowExam sets the exam toggle. Turning it off while normal events are
// already hidden turns normal events back on.
func (s Settings) WithShowExam(on bool) Settings {
	s = s.clone()
	s.hideExam = !on
	if s.hideExam && s.hideNormal {
		s.hideNormal = false
	}
	return s
}

func (s Settings) ToggleNormal() Settings { return s.WithShowNormal(s.hideNormal) }
func (s Settings) ToggleExam() Settings   { return s.WithShowExam(s.hideExam) }

// WithDateRange enables the custom range mode with r. A nil r keeps the
// mode flag but leaves it without effect until both bounds are set.
func (s Settings) WithDateRange(use bool, r *DateRange) Settings {
	s = s.clone()
	s.useDateRange = use
	if r == nil {
		s.dateRange = nil
	} else {
		cp := *r
		s.dateRange = &cp
	}
	return s
}

// Item is anything carrying event metadata: arcs and points.
type Item interface {
	Info() model.EventInfo
}

// IsExam reports whether an event name marks an exam.
func IsExam(name string) bool {
	return strings.Contains(strings.ToLower(name), "exam")
}

// Passes applies every predicate to one event.
func (s Settings) Passes(info model.EventInfo) bool {
	if IsExam(info.EventName) {
		if s.hideExam {
			return false
		}
	} else if s.hideNormal {
		return false
	}

	if s.useDateRange {
		r := s.dateRange
		if r == nil || r.Start.IsZero() || r.End.IsZero() {
			return true
		}
		return !info.StartTime.After(r.End) && !info.EndTime.Before(r.Start)
	}
	return s.Enabled(info.Category)
}

// Apply returns the items that pass s, in input order.
func Apply[T Item](items []T, s Settings) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.Passes(it.Info()) {
			out = append(out, it)
		}
	}
	return out
}
