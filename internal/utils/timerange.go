package utils

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	naturaldate "github.com/tj/go-naturaldate"
)

// ParseNaturalTimeRange resolves a relative time expression ("yesterday",
// "last week", "3 days ago", or an explicit date) against now in the user's
// timezone and returns an inclusive [start, end] pair in UTC, bounds swapped
// if the parse lands after the reference. Returns false when the expression
// cannot be parsed.
func ParseNaturalTimeRange(text, tzName string, now time.Time) (time.Time, time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, time.Time{}, false
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}
	ref := now.In(loc)

	start, err := naturaldate.Parse(text, ref, naturaldate.WithDirection(naturaldate.Past))
	if err != nil || echoedReference(start, ref, text) {
		// Explicit dates ("2024-03-01", "March 1") fall through here, as does
		// input naturaldate could not parse.
		start, err = dateparse.ParseIn(text, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
	}

	end := ref
	if start.After(end) {
		start, end = end, start
	}

	return start.UTC(), end.UTC(), true
}

// echoedReference reports whether the parser returned the reference time
// unchanged for input that does not actually name the present moment.
// naturaldate answers unparseable text with the reference time and a nil
// error, which would otherwise pass as a degenerate [now, now] range.
func echoedReference(parsed, ref time.Time, text string) bool {
	if !parsed.Equal(ref) {
		return false
	}
	switch strings.ToLower(text) {
	case "now", "right now":
		return false
	}
	return true
}
