package investing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseArticleDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		input  string
		want   time.Time
		parsed bool
	}{
		{"rfc3339", "2025-05-31T08:15:00Z", time.Date(2025, 5, 31, 8, 15, 0, 0, time.UTC), true},
		{"site format", "Jan 02, 2025 15:04", time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC), true},
		{"just now", "Just now", now, true},
		{"moments ago", "moments ago", now, true},
		{"seconds ago", "30 seconds ago", now.Add(-30 * time.Second), true},
		{"minutes ago", "5 minutes ago", now.Add(-5 * time.Minute), true},
		{"hours ago", "2 hours ago", now.Add(-2 * time.Hour), true},
		{"one day ago", "1 day ago", now.AddDate(0, 0, -1), true},
		{"weeks ago", "3 weeks ago", now.AddDate(0, 0, -21), true},
		{"months ago", "2 months ago", now.AddDate(0, 0, -60), true},
		{"ago without number", "a while ago", now, false},
		{"garbage", "sometime last quarter", now, false},
		{"empty", "", now, false},
		{"whitespace", "   ", now, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, parsed := ParseArticleDate(tt.input, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.parsed, parsed)
		})
	}
}

// Unparseable strings must still yield a usable timestamp so callers keep
// the article instead of dropping it.
func TestParseArticleDateUnparseableYieldsNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got, parsed := ParseArticleDate("???", now)
	assert.False(t, parsed)
	assert.Equal(t, now, got)
}

func TestSlugLookup(t *testing.T) {
	t.Parallel()

	slug, ok := Slug("TSLA")
	assert.True(t, ok)
	assert.Equal(t, "tesla-motors", slug)

	_, ok = Slug("ZZZZ")
	assert.False(t, ok)
}
