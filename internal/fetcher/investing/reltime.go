package investing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var digitsRe = regexp.MustCompile(`\d+`)

// absoluteFormats are tried before any relative-time handling.
var absoluteFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 02, 2006 15:04",
	"Jan 02, 2006",
	"01/02/2006",
}

// ParseArticleDate turns a listing-page date string into an absolute time.
// It understands RFC3339 and a few site formats, plus relative phrases like
// "5 minutes ago" and "2 hours ago". The second return value reports whether
// the string was actually parsed; when it is false the current time is
// returned so the article is kept rather than dropped.
func ParseArticleDate(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now, false
	}

	for _, layout := range absoluteFormats {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Location() == time.UTC {
				return t, true
			}
			return t.UTC(), true
		}
	}

	lower := strings.ToLower(s)
	if strings.Contains(lower, "just now") || strings.Contains(lower, "moments ago") {
		return now, true
	}

	if strings.Contains(lower, "ago") {
		match := digitsRe.FindString(lower)
		if match == "" {
			return now, false
		}
		value, err := strconv.Atoi(match)
		if err != nil {
			return now, false
		}
		switch {
		case strings.Contains(lower, "second"):
			return now.Add(-time.Duration(value) * time.Second), true
		case strings.Contains(lower, "minute"):
			return now.Add(-time.Duration(value) * time.Minute), true
		case strings.Contains(lower, "hour"):
			return now.Add(-time.Duration(value) * time.Hour), true
		case strings.Contains(lower, "day"):
			return now.AddDate(0, 0, -value), true
		case strings.Contains(lower, "week"):
			return now.AddDate(0, 0, -value*7), true
		case strings.Contains(lower, "month"):
			return now.AddDate(0, 0, -value*30), true
		}
	}

	return now, false
}
