// Package reltime renders the relative-time labels the resonance
// pipeline's temporal-labeling phase attaches to each surviving memory.
package reltime

import (
	"fmt"
	"time"
)

// Label returns a human-readable relative-time string for the gap between
// now and t, followed by the exact calendar date (e.g. "yesterday in the
// afternoon — 12 Mar"). The year is appended only when it differs from
// now's year.
func Label(t, now time.Time) string {
	return fmt.Sprintf("%s — %s", relative(t, now), calendarDate(t, now))
}

func relative(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < 60*time.Second:
		return "just a moment ago"
	case d < time.Minute*60:
		return minutesLabel(d)
	case d < 24*time.Hour:
		return hoursLabel(d, t)
	}

	days := int(d / (24 * time.Hour))
	switch {
	case days == 1:
		return "yesterday " + dayPart(t)
	case days == 2:
		return "the day before yesterday " + dayPart(t)
	case days >= 3 && days <= 6:
		return fmt.Sprintf("%d days ago %s", days, dayPart(t))
	case days >= 7 && days <= 13:
		return "last week"
	case days >= 14 && days <= 29:
		weeks := days / 7
		return fmt.Sprintf("%d weeks ago", weeks)
	}

	months := monthsBetween(t, now)
	switch {
	case months >= 1 && months <= 10:
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	case months == 11:
		return "almost a year ago"
	}

	years := months / 12
	remMonths := months % 12
	switch {
	case years == 1:
		if remMonths >= 10 {
			return "almost 2 years ago"
		}
		if remMonths >= 1 {
			return "a year and a few months ago"
		}
		return "a year ago"
	case years >= 2 && years <= 4:
		if remMonths >= 10 {
			return fmt.Sprintf("almost %d years ago", years+1)
		}
		return fmt.Sprintf("%d years ago or so", years)
	default:
		return fmt.Sprintf("about %d years ago", years)
	}
}

func minutesLabel(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes <= 1:
		return "a minute ago"
	case minutes <= 4:
		return "a few minutes ago"
	default:
		return fmt.Sprintf("about %d minutes ago", minutes)
	}
}

func hoursLabel(d time.Duration, t time.Time) string {
	hours := int(d / time.Hour)
	switch {
	case hours < 1:
		return "almost 1h ago"
	case hours == 1:
		return "less than 2h ago"
	case hours <= 3:
		return "a few hours ago"
	default:
		return "this " + dayPart(t)
	}
}

// dayPart classifies t's local hour into the four day-part buckets the
// spec's label table uses.
func dayPart(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 6 && h <= 12:
		return "in the morning"
	case h >= 13 && h <= 19:
		return "in the afternoon"
	case h >= 20 || h == 0:
		return "at night"
	default: // 1-5
		return "in the early morning"
	}
}

// monthsBetween returns the whole number of calendar months between t and
// now (now assumed >= t).
func monthsBetween(t, now time.Time) int {
	years := now.Year() - t.Year()
	months := int(now.Month()) - int(t.Month())
	total := years*12 + months
	if now.Day() < t.Day() {
		total--
	}
	if total < 0 {
		total = 0
	}
	return total
}

// calendarDate renders "<d MMM>" and appends " YYYY" when t's year differs
// from now's year.
func calendarDate(t, now time.Time) string {
	if t.Year() != now.Year() {
		return fmt.Sprintf("%d %s %d", t.Day(), t.Month().String()[:3], t.Year())
	}
	return fmt.Sprintf("%d %s", t.Day(), t.Month().String()[:3])
}
