package aitime

import (
	"regexp"
	"strings"
	"time"
)

// Patterns for relative time expressions
var (
	dayPattern     = regexp.MustCompile(`\b(today|tonight|tomorrow|yesterday)\b`)
	periodPattern  = regexp.MustCompile(`\b(this|next|last|past|coming)\s+(week|weekend|month|year)\b`)
	weekdayPattern = regexp.MustCompile(`\b(this|next|last|coming)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	instantPattern = regexp.MustCompile(`\b(now|right now|currently|current|latest|at the moment|these days|so far)\b`)
)

// relDateOffsets maps relative date keywords to day offsets.
var relDateOffsets = map[string]int{
	"today":     0,
	"tonight":   0,
	"tomorrow":  1,
	"yesterday": -1,
}

// relPeriodOffsets maps qualifiers to a number of periods from the current one.
var relPeriodOffsets = map[string]int{
	"this":   0,
	"coming": 1,
	"next":   1,
	"last":   -1,
}

// weekdayMap maps weekday names to their offset from Monday.
var weekdayMap = map[string]int{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,
}

// Detector is a rule-based TimeSensitivity for English text. Bare weekday
// names ("on Saturday") describe habits and are not treated as relative.
type Detector struct{}

// NewDetector creates a new detector.
func NewDetector() *Detector {
	return &Detector{}
}

var _ TimeSensitivity = (*Detector)(nil)

// IsTimeSensitive reports whether text contains a relative time expression.
func (d *Detector) IsTimeSensitive(text string) bool {
	s := strings.ToLower(text)
	return dayPattern.MatchString(s) ||
		periodPattern.MatchString(s) ||
		weekdayPattern.MatchString(s) ||
		instantPattern.MatchString(s)
}

// Resolve maps the earliest relative expression in text to a range around ref.
// Instant expressions such as "now" resolve to the empty range [ref, ref].
func (d *Detector) Resolve(text string, ref time.Time) (TimeRange, bool) {
	s := strings.ToLower(text)

	type hit struct {
		pos     int
		resolve func() TimeRange
	}
	var best *hit
	consider := func(loc []int, resolve func() TimeRange) {
		if loc != nil && (best == nil || loc[0] < best.pos) {
			best = &hit{pos: loc[0], resolve: resolve}
		}
	}

	if m := dayPattern.FindStringSubmatchIndex(s); m != nil {
		word := s[m[2]:m[3]]
		consider(m, func() TimeRange { return dayRange(ref, relDateOffsets[word]) })
	}
	if m := periodPattern.FindStringSubmatchIndex(s); m != nil {
		qualifier, unit := s[m[2]:m[3]], s[m[4]:m[5]]
		consider(m, func() TimeRange { return periodRange(ref, qualifier, unit) })
	}
	if m := weekdayPattern.FindStringSubmatchIndex(s); m != nil {
		qualifier, day := s[m[2]:m[3]], s[m[4]:m[5]]
		consider(m, func() TimeRange {
			monday := weekStart(ref).AddDate(0, 0, 7*relPeriodOffsets[qualifier]+weekdayMap[day])
			return TimeRange{Start: monday, End: monday.AddDate(0, 0, 1)}
		})
	}
	if m := instantPattern.FindStringIndex(s); m != nil {
		consider(m, func() TimeRange { return TimeRange{Start: ref, End: ref} })
	}

	if best == nil {
		return TimeRange{}, false
	}
	return best.resolve(), true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayRange(ref time.Time, offset int) TimeRange {
	start := startOfDay(ref).AddDate(0, 0, offset)
	return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// weekStart returns Monday 00:00 of ref's week.
func weekStart(ref time.Time) time.Time {
	weekday := int(ref.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return startOfDay(ref).AddDate(0, 0, -(weekday - 1))
}

func periodRange(ref time.Time, qualifier, unit string) TimeRange {
	if qualifier == "past" {
		switch unit {
		case "week", "weekend":
			return TimeRange{Start: ref.AddDate(0, 0, -7), End: ref}
		case "month":
			return TimeRange{Start: ref.AddDate(0, -1, 0), End: ref}
		default:
			return TimeRange{Start: ref.AddDate(-1, 0, 0), End: ref}
		}
	}

	offset := relPeriodOffsets[qualifier]
	switch unit {
	case "week":
		start := weekStart(ref).AddDate(0, 0, 7*offset)
		return TimeRange{Start: start, End: start.AddDate(0, 0, 7)}
	case "weekend":
		saturday := weekStart(ref).AddDate(0, 0, 7*offset+5)
		return TimeRange{Start: saturday, End: saturday.AddDate(0, 0, 2)}
	case "month":
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()).AddDate(0, offset, 0)
		return TimeRange{Start: start, End: start.AddDate(0, 1, 0)}
	default:
		start := time.Date(ref.Year()+offset, 1, 1, 0, 0, 0, 0, ref.Location())
		return TimeRange{Start: start, End: start.AddDate(1, 0, 0)}
	}
}
