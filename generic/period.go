package generic

import "fmt"

// =============================================================================
// WINDOW - Optional reporting date range
// =============================================================================

// Window is the reporting date range [Start, End]. A nil bound is unbounded
// on that side; a Window with both bounds nil is inactive.
//
// Examples:
//   - Q1 2024:      {Start: 2024-01-01, End: 2024-03-31}
//   - Up to March:  {End: 2024-03-31}
//   - Everything:   {}
type Window struct {
	Start *TimePoint
	End   *TimePoint
}

// NewWindow builds a window from optional bounds.
// Returns ErrInvalidWindow when both bounds are set and end is before start.
func NewWindow(start, end *TimePoint) (Window, error) {
	w := Window{Start: start, End: end}
	if start != nil && end != nil && end.Before(*start) {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrInvalidWindow, start, end)
	}
	return w, nil
}

// ParseWindow builds a window from optional free-text bounds.
// Empty strings are unbounded; unparseable strings are an error.
func ParseWindow(start, end string) (Window, error) {
	var s, e *TimePoint
	if start != "" {
		tp, ok := ParseDate(start)
		if !ok {
			return Window{}, fmt.Errorf("%w: bad start date %q", ErrInvalidWindow, start)
		}
		s = &tp
	}
	if end != "" {
		tp, ok := ParseDate(end)
		if !ok {
			return Window{}, fmt.Errorf("%w: bad end date %q", ErrInvalidWindow, end)
		}
		e = &tp
	}
	return NewWindow(s, e)
}

// Active reports whether at least one bound is set.
func (w Window) Active() bool {
	return w.Start != nil || w.End != nil
}

// Contains returns true if t is a valid date within [Start, End].
// The "none" sentinel is outside every window, including an inactive one.
func (w Window) Contains(t TimePoint) bool {
	if t.IsZero() {
		return false
	}
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Overlaps reports whether the closed range [from, to] intersects the window.
// Nil range bounds are unbounded.
func (w Window) Overlaps(from, to *TimePoint) bool {
	if w.End != nil && from != nil && from.After(*w.End) {
		return false
	}
	if w.Start != nil && to != nil && to.Before(*w.Start) {
		return false
	}
	return true
}

// ReportDate is the reference date for age-based checks: End when set,
// otherwise now.
func (w Window) ReportDate(now TimePoint) TimePoint {
	if w.End != nil {
		return *w.End
	}
	return now
}

// String returns a string representation of the window.
func (w Window) String() string {
	s, e := "-inf", "+inf"
	if w.Start != nil {
		s = w.Start.String()
	}
	if w.End != nil {
		e = w.End.String()
	}
	return "[" + s + ", " + e + "]"
}
