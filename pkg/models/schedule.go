package models

import (
	"strings"
	"time"
)

// Canonical layouts for ScheduleItem.Date and ScheduleItem.Time.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var dateLayouts = []string{
	DateLayout,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
}

// Times are matched after upper-casing and removing spaces, so "9:00 am"
// arrives as "9:00AM".
var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04PM",
	"3:04:05PM",
	"3PM",
	"15.04",
}

// ParsePostDate reads a calendar date in any of the accepted layouts. The
// result is midnight UTC on that date.
func ParsePostDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParsePostTime reads a wall-clock time such as "09:00", "09:00:00" or
// "9:00 AM". Seconds are dropped.
func ParsePostTime(s string) (hour, minute int, ok bool) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	s = strings.ReplaceAll(s, ".M.", "M")
	if s == "" {
		return 0, 0, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

// CanonicalDate rewrites s as YYYY-MM-DD. Unparseable input is returned
// trimmed but otherwise unchanged so it stays visible for editing.
func CanonicalDate(s string) string {
	if d, ok := ParsePostDate(s); ok {
		return d.Format(DateLayout)
	}
	return strings.TrimSpace(s)
}

// CanonicalTime rewrites s as HH:MM, or returns "" when s is not a usable time.
func CanonicalTime(s string) string {
	h, m, ok := ParsePostTime(s)
	if !ok {
		return ""
	}
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format(TimeLayout)
}
