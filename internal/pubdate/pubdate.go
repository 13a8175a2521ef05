// Package pubdate normalizes the publication labels found on news listing pages
// ("3時間前", "1/10(水) 12:30", "2024/01/10(水)", "23:50", ISO instants) into
// timestamps on the Japanese civil calendar.
package pubdate

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// JST is the fixed +9h offset used for UTC instants and Last-Modified headers
var JST = time.FixedZone("JST", 9*60*60)

// DisplayLayout is how parsed timestamps are written to the store
const DisplayLayout = "2006/01/02 15:04"

// Timestamp is either a parsed instant or the raw label that could not be parsed
type Timestamp struct {
	Time  time.Time
	Label string
}

// Unparsed wraps a label no strategy could parse
func Unparsed(label string) Timestamp {
	return Timestamp{Label: label}
}

// Parsed reports whether the timestamp carries a parsed instant
func (t Timestamp) Parsed() bool {
	return !t.Time.IsZero()
}

// String renders the persisted form: the formatted instant or the literal label
func (t Timestamp) String() string {
	if t.Parsed() {
		return t.Time.Format(DisplayLayout)
	}
	return t.Label
}

// LastModifier reads the last modification time of a resource with a metadata-only request
type LastModifier interface {
	LastModified(ctx context.Context, rawURL string) (time.Time, error)
}

// Normalizer parses publication labels
type Normalizer struct {
	Meta LastModifier
}

// NewNormalizer creates a normalizer; meta may be nil to disable the HEAD fallback
func NewNormalizer(meta LastModifier) *Normalizer {
	return &Normalizer{Meta: meta}
}

var (
	relativeJa = regexp.MustCompile(`(\d+)\s*(分|時間|日)前`)
	relativeEn = regexp.MustCompile(`(?i)(\d+)\s*(minutes?|mins?|hours?|hrs?|days?)\s+ago`)
	monthDayJa = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日(?:\s*(\d{1,2}):(\d{2}))?$`)
	monthDay   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:\s*[(（][^)）]*[)）])?(?:\s+(\d{1,2}):(\d{2}))?$`)
	fullDate   = regexp.MustCompile(`^(\d{4})[/\-年](\d{1,2})[/\-月](\d{1,2})日?(?:\s+(\d{1,2}):(\d{2}))?$`)
	weekday    = regexp.MustCompile(`\s*[(（][^)）]*[)）]`)
	clock      = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Parse tries every label form in priority order. It never fails: a label nothing
// understands comes back as Unparsed.
func (n *Normalizer) Parse(label string, ref time.Time) Timestamp {
	s := strings.TrimSpace(label)
	if s == "" {
		return Unparsed(label)
	}

	for _, parse := range []func(string, time.Time) (time.Time, bool){
		parseRelative,
		parseMonthDay,
		parseFullDate,
		parseClock,
		parseISO,
	} {
		if t, ok := parse(s, ref); ok {
			return Timestamp{Time: t, Label: label}
		}
	}
	return Unparsed(label)
}

// Normalize is Parse plus the Last-Modified fallback for resourceURL
func (n *Normalizer) Normalize(ctx context.Context, label string, ref time.Time, resourceURL string) Timestamp {
	ts := n.Parse(label, ref)
	if ts.Parsed() || resourceURL == "" || n.Meta == nil {
		return ts
	}

	modified, err := n.Meta.LastModified(ctx, resourceURL)
	if err != nil || modified.IsZero() {
		return ts
	}
	return Timestamp{Time: modified.In(JST), Label: label}
}

func parseRelative(s string, ref time.Time) (time.Time, bool) {
	if m := relativeJa.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		switch m[2] {
		case "分":
			return ref.Add(-time.Duration(n) * time.Minute), true
		case "時間":
			return ref.Add(-time.Duration(n) * time.Hour), true
		case "日":
			return ref.AddDate(0, 0, -n), true
		}
	}

	if m := relativeEn.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		unit := strings.ToLower(m[2])
		switch {
		case strings.HasPrefix(unit, "min"):
			return ref.Add(-time.Duration(n) * time.Minute), true
		case strings.HasPrefix(unit, "h"):
			return ref.Add(-time.Duration(n) * time.Hour), true
		case strings.HasPrefix(unit, "day"):
			return ref.AddDate(0, 0, -n), true
		}
	}
	return time.Time{}, false
}

func parseMonthDay(s string, ref time.Time) (time.Time, bool) {
	m := monthDayJa.FindStringSubmatch(s)
	if m == nil {
		m = monthDay.FindStringSubmatch(s)
	}
	if m == nil {
		return time.Time{}, false
	}
	return civil(ref.Year(), m[1], m[2], m[3], m[4], ref.Location())
}

func parseFullDate(s string, ref time.Time) (time.Time, bool) {
	cleaned := strings.Join(strings.Fields(weekday.ReplaceAllString(s, " ")), " ")
	m := fullDate.FindStringSubmatch(cleaned)
	if m == nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return civil(year, m[2], m[3], m[4], m[5], ref.Location())
}

func parseClock(s string, ref time.Time) (time.Time, bool) {
	m := clock.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	t, ok := civil(ref.Year(), strconv.Itoa(int(ref.Month())), strconv.Itoa(ref.Day()), m[1], m[2], ref.Location())
	if !ok {
		return time.Time{}, false
	}
	// A clock label later than now was published yesterday
	if t.After(ref) {
		t = t.AddDate(0, 0, -1)
	}
	return t, true
}

func parseISO(s string, _ time.Time) (time.Time, bool) {
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(JST), true
}

// civil builds a date in loc, rejecting out-of-range fields instead of normalizing them
func civil(year int, month, day, hour, minute string, loc *time.Location) (time.Time, bool) {
	mo, err1 := strconv.Atoi(month)
	d, err2 := strconv.Atoi(day)
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}

	h, mi := 0, 0
	if hour != "" {
		var err error
		if h, err = strconv.Atoi(hour); err != nil {
			return time.Time{}, false
		}
		if mi, err = strconv.Atoi(minute); err != nil {
			return time.Time{}, false
		}
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 || h > 23 || mi > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(mo), d, h, mi, 0, 0, loc)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
