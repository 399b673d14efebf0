// Package schedule plans outreach send times inside business hours.
package schedule

import (
	"fmt"
	"time"
)

// Calendar knows the business-hours window sends are allowed in:
// weekdays between the start hour (inclusive) and end hour (exclusive) in
// the configured timezone.
type Calendar struct {
	loc       *time.Location
	startHour int
	endHour   int
}

// New creates a calendar for a timezone and daily window.
func New(timezone string, startHour, endHour int) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", timezone, err)
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("invalid business window %d-%d", startHour, endHour)
	}
	return &Calendar{loc: loc, startHour: startHour, endHour: endHour}, nil
}

// InWindow reports whether t falls inside the send window.
func (c *Calendar) InWindow(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= c.startHour && hour < c.endHour
}

// SnapForward returns t unchanged when it is inside the window, otherwise the
// start of the next window: same day when t is before opening, the next
// business day when t is after closing or on a weekend.
func (c *Calendar) SnapForward(t time.Time) time.Time {
	local := t.In(c.loc)

	for {
		switch local.Weekday() {
		case time.Saturday:
			local = c.windowOpen(local.AddDate(0, 0, 2))
			continue
		case time.Sunday:
			local = c.windowOpen(local.AddDate(0, 0, 1))
			continue
		}
		if local.Hour() < c.startHour {
			return c.windowOpen(local)
		}
		if local.Hour() >= c.endHour {
			local = c.windowOpen(local.AddDate(0, 0, 1))
			continue
		}
		return local
	}
}

// PlanSequence turns day offsets into concrete send times: base plus each
// offset in days, every result snapped into the window.
func (c *Calendar) PlanSequence(base time.Time, dayOffsets []int) []time.Time {
	times := make([]time.Time, 0, len(dayOffsets))
	for _, offset := range dayOffsets {
		times = append(times, c.SnapForward(base.AddDate(0, 0, offset)))
	}
	return times
}

// NextDayOpen returns the opening of the first business-day window after t's
// day, used to push a send past an exhausted daily budget.
func (c *Calendar) NextDayOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	return c.SnapForward(c.windowOpen(local.AddDate(0, 0, 1)))
}

func (c *Calendar) windowOpen(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.startHour, 0, 0, 0, c.loc)
}
