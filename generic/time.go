package generic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date at day granularity
// =============================================================================

// TimePoint is a calendar date. Only year, month and day are significant.
// The zero value is the "none" sentinel produced for unparseable input.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar date.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool       { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool        { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool        { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// SortsBefore orders dates with the "none" sentinel after every valid date.
// Two sentinels are unordered.
func (tp TimePoint) SortsBefore(other TimePoint) bool {
	switch {
	case tp.IsZero():
		return false
	case other.IsZero():
		return true
	default:
		return tp.Before(other)
	}
}

// Arithmetic
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// Ptr returns a pointer to a copy of tp, or nil for the sentinel.
func (tp TimePoint) Ptr() *TimePoint {
	if tp.IsZero() {
		return nil
	}
	return &tp
}

// DateLayout is the canonical wire format for dates.
const DateLayout = "2006-01-02"

// MarshalText encodes the date as YYYY-MM-DD; the sentinel encodes as "".
func (tp TimePoint) MarshalText() ([]byte, error) {
	return []byte(tp.String()), nil
}

// UnmarshalText accepts every format ParseDate understands. Empty input
// yields the sentinel.
func (tp *TimePoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*tp = TimePoint{}
		return nil
	}
	parsed, ok := ParseDate(string(b))
	if !ok {
		return fmt.Errorf("unparseable date %q", string(b))
	}
	*tp = parsed
	return nil
}

// =============================================================================
// DATE NORMALIZER - Free-text import dates
// =============================================================================

var (
	dottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2,4})$`)

	// "нояб. 25 г.", "сент 2024", "мая 24г". The month must start a word.
	russianMonth = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(янв|февр|мар|апр|ма[йя]|июн|июл|авг|сент|окт|нояб|дек)\p{L}*\.?\s+(\d{2,4})\s*г?\.?`)

	russianMonths = map[string]time.Month{
		"янв":  time.January,
		"февр": time.February,
		"мар":  time.March,
		"апр":  time.April,
		"май":  time.May,
		"мая":  time.May,
		"июн":  time.June,
		"июл":  time.July,
		"авг":  time.August,
		"сент": time.September,
		"окт":  time.October,
		"нояб": time.November,
		"дек":  time.December,
	}

	fallbackLayouts = []string{
		DateLayout,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02",
		"01/02/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 2006",
		"January 2006",
	}
)

// ParseDate normalizes a free-text date. Recognized forms, tried in order:
//
//  1. DD.MM.YYYY or DD.MM.YY
//  2. Abbreviated Russian month names ("нояб. 25 г."), day fixed to 1
//  3. Common calendar layouts (ISO, RFC3339, US, English month names)
//
// Two-digit years pivot at 50: "51" => 1951, "50" => 2050.
// The second return value is false for unparseable input.
func ParseDate(raw string) (TimePoint, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return TimePoint{}, false
	}

	if m := dottedDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return validDate(pivotYear(year), time.Month(month), day)
	}

	if m := russianMonth.FindStringSubmatch(s); m != nil {
		month, ok := russianMonths[strings.ToLower(m[1])]
		if ok {
			year, _ := strconv.Atoi(m[2])
			return NewTimePoint(pivotYear(year), month, 1), true
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), true
		}
	}
	return TimePoint{}, false
}

// MustParseDate is ParseDate without the ok flag; failures yield the sentinel.
func MustParseDate(raw string) TimePoint {
	tp, _ := ParseDate(raw)
	return tp
}

func pivotYear(year int) int {
	if year >= 100 {
		return year
	}
	if year > 50 {
		return 1900 + year
	}
	return 2000 + year
}

// validDate rejects overflowing days such as 31.02 instead of normalizing them.
func validDate(year int, month time.Month, day int) (TimePoint, bool) {
	if month < time.January || month > time.December || day < 1 {
		return TimePoint{}, false
	}
	tp := NewTimePoint(year, month, day)
	if tp.Month() != month || tp.Day() != day {
		return TimePoint{}, false
	}
	return tp, true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// EarliestOf returns the earliest valid date, or the sentinel if none is valid.
func EarliestOf(dates ...TimePoint) TimePoint {
	var earliest TimePoint
	for _, d := range dates {
		if d.SortsBefore(earliest) {
			earliest = d
		}
	}
	return earliest
}
