package submissions

import (
	"errors"
	"strings"
	"time"
)

// DateRange enum for relative analytics windows.
type DateRange string

const (
	RangeAll    DateRange = "all"
	RangeWeek   DateRange = "week"
	RangeMonth  DateRange = "month"
	RangeYear   DateRange = "year"
	RangeCustom DateRange = "custom"
)

const dayLayout = "2006-01-02"

var errBadBound = errors.New("expected YYYY-MM-DD or RFC3339 timestamp")

// Query holds caller-supplied filters exactly as received. It is a value and
// never shared between requests.
type Query struct {
	Rating    int // 0 = any
	Date      string
	DateRange DateRange
	StartDate string
	EndDate   string
}

// Criteria is a resolved Query: absolute bounds, ready to match records or to
// be translated into SQL. Zero values mean "no bound".
type Criteria struct {
	Rating int
	From   time.Time // inclusive
	Before time.Time // exclusive
	Status Status
}

// IsZero reports whether the criteria match everything.
func (c Criteria) IsZero() bool {
	return c.Rating == 0 && c.From.IsZero() && c.Before.IsZero() && c.Status == ""
}

// Match reports whether s satisfies every bound.
func (c Criteria) Match(s *Submission) bool {
	if c.Rating != 0 && s.Rating != c.Rating {
		return false
	}
	if c.Status != "" && s.Status != c.Status {
		return false
	}
	if !c.From.IsZero() && s.Timestamp.Before(c.From) {
		return false
	}
	if !c.Before.IsZero() && !s.Timestamp.Before(c.Before) {
		return false
	}
	return true
}

// Apply keeps the matching records and preserves their order.
func Apply(list []*Submission, c Criteria) []*Submission {
	if c.IsZero() {
		return list
	}
	out := make([]*Submission, 0, len(list))
	for _, s := range list {
		if c.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Resolve turns the query into absolute bounds. Calendar days are taken in
// loc (UTC when nil). Relative ranges count back from now: week=7, month=30,
// year=365 days. Explicit start/end dates are inclusive; a date-only end
// covers its whole day. Filters are combined with AND.
func (q Query) Resolve(now time.Time, loc *time.Location) (Criteria, error) {
	if loc == nil {
		loc = time.UTC
	}
	var c Criteria
	if q.Rating != 0 {
		if err := ValidateRating(q.Rating); err != nil {
			return Criteria{}, err
		}
		c.Rating = q.Rating
	}

	if d := strings.TrimSpace(q.Date); d != "" {
		day, err := time.ParseInLocation(dayLayout, d, loc)
		if err != nil {
			return Criteria{}, &ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
		}
		c.narrow(day, day.AddDate(0, 0, 1))
	}

	start := strings.TrimSpace(q.StartDate)
	end := strings.TrimSpace(q.EndDate)
	if start != "" || end != "" {
		var from, before time.Time
		if start != "" {
			t, _, err := parseBound(start, loc)
			if err != nil {
				return Criteria{}, &ValidationError{Field: "start_date", Message: err.Error()}
			}
			from = t
		}
		if end != "" {
			t, dateOnly, err := parseBound(end, loc)
			if err != nil {
				return Criteria{}, &ValidationError{Field: "end_date", Message: err.Error()}
			}
			if dateOnly {
				before = t.AddDate(0, 0, 1)
			} else {
				before = t.Add(time.Nanosecond)
			}
		}
		if !from.IsZero() && !before.IsZero() && !from.Before(before) {
			return Criteria{}, &ValidationError{Field: "end_date", Message: "end_date must not be before start_date"}
		}
		c.narrow(from, before)
		return c, nil
	}

	switch DateRange(strings.ToLower(string(q.DateRange))) {
	case "", RangeAll:
	case RangeWeek:
		c.narrow(now.AddDate(0, 0, -7), time.Time{})
	case RangeMonth:
		c.narrow(now.AddDate(0, 0, -30), time.Time{})
	case RangeYear:
		c.narrow(now.AddDate(0, 0, -365), time.Time{})
	case RangeCustom:
		return Criteria{}, &ValidationError{Field: "date_range", Message: "custom range needs start_date or end_date"}
	default:
		return Criteria{}, &ValidationError{Field: "date_range", Message: "unknown date range " + string(q.DateRange)}
	}
	return c, nil
}

// narrow intersects the current window with [from, before).
func (c *Criteria) narrow(from, before time.Time) {
	if !from.IsZero() && (c.From.IsZero() || from.After(c.From)) {
		c.From = from
	}
	if !before.IsZero() && (c.Before.IsZero() || before.Before(c.Before)) {
		c.Before = before
	}
}

func parseBound(v string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dayLayout, v, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", v, loc); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, errBadBound
}
