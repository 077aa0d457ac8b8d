package reltime

import (
	"strings"
	"testing"
	"time"
)

func TestRelative_Thresholds(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"just now", 10 * time.Second, "just a moment ago"},
		{"a minute", 90 * time.Second, "a minute ago"},
		{"a few minutes", 3 * time.Minute, "a few minutes ago"},
		{"several minutes", 20 * time.Minute, "about 20 minutes ago"},
		{"less than an hour", 30 * time.Minute, "about 30 minutes ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := relative(now.Add(-tt.ago), now)
			if got != tt.want {
				t.Fatalf("relative(-%v) = %q, want %q", tt.ago, got, tt.want)
			}
		})
	}
}

func TestRelative_Yesterday(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	got := relative(ts, now)
	if !strings.HasPrefix(got, "yesterday") {
		t.Fatalf("expected yesterday prefix, got %q", got)
	}
}

func TestRelative_DayBeforeYesterday(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)
	got := relative(ts, now)
	if !strings.HasPrefix(got, "the day before yesterday") {
		t.Fatalf("expected day-before-yesterday prefix, got %q", got)
	}
}

func TestRelative_DaysAgo(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := now.Add(-4 * 24 * time.Hour)
	got := relative(ts, now)
	if !strings.HasPrefix(got, "4 days ago") {
		t.Fatalf("expected '4 days ago' prefix, got %q", got)
	}
}

func TestRelative_LastWeek(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := now.Add(-10 * 24 * time.Hour)
	if got := relative(ts, now); got != "last week" {
		t.Fatalf("relative = %q, want %q", got, "last week")
	}
}

func TestRelative_WeeksAgo(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := now.Add(-20 * 24 * time.Hour)
	if got := relative(ts, now); got != "2 weeks ago" {
		t.Fatalf("relative = %q, want %q", got, "2 weeks ago")
	}
}

func TestRelative_MonthsAgo(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	got := relative(ts, now)
	if got != "2 months ago" {
		t.Fatalf("relative = %q, want %q", got, "2 months ago")
	}
}

func TestRelative_AlmostAYear(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	got := relative(ts, now)
	if got != "almost a year ago" {
		t.Fatalf("relative = %q, want %q", got, "almost a year ago")
	}
}

func TestDayPart(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{7, "in the morning"},
		{12, "in the morning"},
		{13, "in the afternoon"},
		{19, "in the afternoon"},
		{20, "at night"},
		{0, "at night"},
		{3, "in the early morning"},
	}
	for _, tt := range tests {
		ts := time.Date(2026, 1, 1, tt.hour, 0, 0, 0, time.UTC)
		got := dayPart(ts)
		if got != tt.want {
			t.Fatalf("dayPart(hour=%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestLabel_AppendsCalendarDate(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	got := Label(ts, now)
	if !strings.Contains(got, "14 Mar") {
		t.Fatalf("expected calendar date '14 Mar' in label, got %q", got)
	}
}

func TestLabel_IncludesYearWhenDifferent(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	ts := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	got := Label(ts, now)
	if !strings.Contains(got, "2024") {
		t.Fatalf("expected year 2024 in label, got %q", got)
	}
}
