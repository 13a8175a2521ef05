package pubdate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockMeta struct {
	modified time.Time
	err      error
	calls    int
}

func (m *mockMeta) LastModified(ctx context.Context, rawURL string) (time.Time, error) {
	m.calls++
	return m.modified, m.err
}

func jst(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, JST)
}

func TestParse(t *testing.T) {
	ref := jst(2024, 1, 10, 12, 0)
	n := NewNormalizer(nil)

	tests := []struct {
		name  string
		label string
		ref   time.Time
		want  time.Time
	}{
		{"hours ago", "3時間前", ref, jst(2024, 1, 10, 9, 0)},
		{"minutes ago", "15分前", ref, jst(2024, 1, 10, 11, 45)},
		{"days ago", "2日前", ref, jst(2024, 1, 8, 12, 0)},
		{"relative with noise", "・ 5時間前", ref, jst(2024, 1, 10, 7, 0)},
		{"english hours", "2 hours ago", ref, jst(2024, 1, 10, 10, 0)},
		{"english mins", "30 mins ago", ref, jst(2024, 1, 10, 11, 30)},
		{"month day kanji", "1月5日", ref, jst(2024, 1, 5, 0, 0)},
		{"month day kanji with time", "1月5日 08:15", ref, jst(2024, 1, 5, 8, 15)},
		{"month day slash with weekday and time", "1/9(火) 18:03", ref, jst(2024, 1, 9, 18, 3)},
		{"full date", "2023/12/31", ref, jst(2023, 12, 31, 0, 0)},
		{"full date with weekday", "2023/12/31(日)", ref, jst(2023, 12, 31, 0, 0)},
		{"full date with wide weekday and time", "2023/12/31（日） 21:40", ref, jst(2023, 12, 31, 21, 40)},
		{"full date weekday glued to time", "2023/12/31(日)21:40", ref, jst(2023, 12, 31, 21, 40)},
		{"full date kanji", "2023年12月1日", ref, jst(2023, 12, 1, 0, 0)},
		{"clock earlier today", "09:30", ref, jst(2024, 1, 10, 9, 30)},
		{"clock rolls back past midnight", "23:50", jst(2024, 1, 10, 0, 10), jst(2024, 1, 9, 23, 50)},
		{"iso z to jst", "2024-01-09T15:30:00Z", ref, jst(2024, 1, 10, 0, 30)},
		{"iso z with millis", "2024-01-09T15:30:00.000Z", ref, jst(2024, 1, 10, 0, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Parse(tt.label, tt.ref)
			assert.True(t, got.Parsed(), "label %q should parse", tt.label)
			assert.True(t, tt.want.Equal(got.Time), "want %v got %v", tt.want, got.Time)
		})
	}
}

func TestParseUnparsed(t *testing.T) {
	ref := jst(2024, 1, 10, 12, 0)
	n := NewNormalizer(nil)

	for _, label := range []string{"不明", "", "13/45", "2024/02/30", "25:00", "2024-01-09T15:30:00+09:00", "昨日"} {
		got := n.Parse(label, ref)
		assert.Equal(t, Unparsed(label), got, "label %q", label)
		assert.Equal(t, label, got.String())
	}
}

func TestTimestampString(t *testing.T) {
	ts := NewNormalizer(nil).Parse("3時間前", jst(2024, 1, 10, 12, 0))
	assert.Equal(t, "2024/01/10 09:00", ts.String())
}

func TestNormalizeFallsBackToLastModified(t *testing.T) {
	ref := jst(2024, 1, 10, 12, 0)
	meta := &mockMeta{modified: time.Date(2024, 1, 9, 23, 0, 0, 0, time.UTC)}
	n := NewNormalizer(meta)

	got := n.Normalize(context.Background(), "不明", ref, "https://example.com/a")
	assert.True(t, got.Parsed())
	assert.Equal(t, "2024/01/10 08:00", got.String())
	assert.Equal(t, 1, meta.calls)

	// Parsable labels never hit the network
	n.Normalize(context.Background(), "3時間前", ref, "https://example.com/a")
	assert.Equal(t, 1, meta.calls)

	// No resource URL, no fallback
	got = n.Normalize(context.Background(), "不明", ref, "")
	assert.False(t, got.Parsed())
	assert.Equal(t, 1, meta.calls)
}

func TestNormalizeFallbackFailureKeepsLabel(t *testing.T) {
	n := NewNormalizer(&mockMeta{err: errors.New("head failed")})
	got := n.Normalize(context.Background(), "不明", jst(2024, 1, 10, 12, 0), "https://example.com/a")
	assert.Equal(t, Unparsed("不明"), got)
}
