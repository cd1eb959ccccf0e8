package core

import (
	"fmt"
	"time"
)

// DateRange is an inclusive window from the start of Start's day to the end of End's day
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DateRangeOptions selects either explicit bounds or a days-ago window.
// DaysAgo takes precedence when set.
type DateRangeOptions struct {
	Start   *time.Time
	End     *time.Time
	DaysAgo *int
}

// NewDateRange builds a normalized DateRange
func NewDateRange(opts DateRangeOptions, now time.Time) (DateRange, error) {
	if opts.DaysAgo != nil {
		if *opts.DaysAgo < 0 {
			return DateRange{}, fmt.Errorf("days ago must not be negative: %d", *opts.DaysAgo)
		}
		return DateRange{
			Start: StartOfDay(now.AddDate(0, 0, -*opts.DaysAgo)),
			End:   EndOfDay(now),
		}, nil
	}

	if opts.Start == nil || opts.End == nil {
		return DateRange{}, ErrDateRangeUnspecified
	}

	r := DateRange{
		Start: StartOfDay(*opts.Start),
		End:   EndOfDay(*opts.End),
	}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("%w: %s > %s", ErrDateRangeInverted,
			r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	}
	return r, nil
}

// DaysAgo is shorthand for a window covering the last n days through today
func DaysAgo(n int, now time.Time) (DateRange, error) {
	return NewDateRange(DateRangeOptions{DaysAgo: &n}, now)
}

// Between is shorthand for explicit bounds
func Between(start, end time.Time) (DateRange, error) {
	return NewDateRange(DateRangeOptions{Start: &start, End: &end}, time.Now())
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay moves t to the last microsecond of its day
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, t.Location())
}

// SearchEnd is the exclusive day bound for a BEFORE search key
func (r DateRange) SearchEnd() time.Time {
	return StartOfDay(r.End).AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the window
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Duration returns the number of whole days between the bounds
func (r DateRange) Duration() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s to %s", r.Start.Format("January 02, 2006"), r.End.Format("January 02, 2006"))
}
