// Package category assigns projected events to one of seven temporal
// buckets. Day differences are computed on calendar days in the location
// of the reference time, so callers choose the display zone through now.
package category

import (
	"math"
	"time"

	"eventmap/internal/model"
)

// Result is the bucket and color pair for an event.
type Result struct {
	Category model.Category
	Color    model.ColorPair
}

var colors = map[model.Category]model.ColorPair{
	model.CategoryOngoing:  {"#00ff00", "#00ff00"},
	model.CategoryToday:    {"#cea500", "#cea500"},
	model.CategoryTomorrow: {"#c96b00", "#c96b00"},
	model.CategoryDay2:     {"#be3333", "#be3333"},
	model.CategoryDay3:     {"#ff00ff91", "#ff00ff91"},
	model.CategoryDay4to5:  {"#8800ff", "#8800ff"},
	model.CategoryDay6Plus: {"#00f", "#0ff"},
}

// Color returns the color pair of a bucket.
func Color(c model.Category) model.ColorPair {
	return colors[c]
}

// Categorize classifies an event. An event running at now is always
// ongoing. Otherwise the calendar-day distance of its start from now picks
// the bucket; past events fall into today.
func Categorize(start, end, now time.Time) Result {
	c := bucket(start, end, now)
	return Result{Category: c, Color: colors[c]}
}

func bucket(start, end, now time.Time) model.Category {
	if !now.Before(start) && !now.After(end) {
		return model.CategoryOngoing
	}

	switch d := DayDiff(start, now); {
	case d <= 0:
		return model.CategoryToday
	case d == 1:
		return model.CategoryTomorrow
	case d == 2:
		return model.CategoryDay2
	case d == 3:
		return model.CategoryDay3
	case d <= 5:
		return model.CategoryDay4to5
	default:
		return model.CategoryDay6Plus
	}
}

// DayDiff returns the number of calendar days from now's date to t's date,
// both taken in now's location. The midnight-to-midnight delta is rounded
// so days of 23 or 25 hours still count as one.
func DayDiff(t, now time.Time) int {
	loc := now.Location()
	delta := midnight(t.In(loc)).Sub(midnight(now))
	return int(math.Round(delta.Hours() / 24))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayLabel returns the agenda header for an event starting at t: "Today",
// "Tomorrow", or the date as "Monday, 2 Jan". It uses DayDiff so headers
// always agree with the buckets.
func DayLabel(t, now time.Time) string {
	switch DayDiff(t, now) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return t.In(now.Location()).Format("Monday, 2 Jan")
	}
}

// Label is the UI name of a bucket.
func Label(c model.Category) string {
	switch c {
	case model.CategoryOngoing:
		return "Ongoing"
	case model.CategoryToday:
		return "Today"
	case model.CategoryTomorrow:
		return "Tomorrow"
	case model.CategoryDay2:
		return "In 2 days"
	case model.CategoryDay3:
		return "In 3 days"
	case model.CategoryDay4to5:
		return "In 4-5 days"
	case model.CategoryDay6Plus:
		return "In 6+ days"
	}
	return string(c)
}
