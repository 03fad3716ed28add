// Package marketclock anchors trading-day boundaries, the market-open
// instant and minute buckets to the exchange timezone.
package marketclock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock resolves trading-day times for one exchange session.
type Clock struct {
	loc      *time.Location
	openHour int
	openMin  int
}

// New builds a clock for the given IANA timezone and "HH:MM" open time.
// Defaults: America/New_York, 09:30.
func New(timezone, open string) (*Clock, error) {
	if strings.TrimSpace(timezone) == "" {
		timezone = "America/New_York"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading market timezone failed: %w", err)
	}
	h, m, err := parseOpen(open)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc, openHour: h, openMin: m}, nil
}

func parseOpen(open string) (int, int, error) {
	open = strings.TrimSpace(open)
	if open == "" {
		return 9, 30, nil
	}
	parts := strings.SplitN(open, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("market open must be HH:MM, got %q", open)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("market open hour invalid in %q", open)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("market open minute invalid in %q", open)
	}
	return h, m, nil
}

// Location returns the exchange timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// DayStart returns midnight of t's calendar day in the exchange timezone.
func (c *Clock) DayStart(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// DayEnd returns midnight of the following calendar day.
func (c *Clock) DayEnd(t time.Time) time.Time {
	return c.DayStart(t).AddDate(0, 0, 1)
}

// OpenAt returns the market-open instant of t's calendar day.
func (c *Clock) OpenAt(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.openHour, c.openMin, 0, 0, c.loc)
}

// SameTradingDay reports whether a and b fall on the same calendar day in
// the exchange timezone.
func (c *Clock) SameTradingDay(a, b time.Time) bool {
	return c.DayStart(a).Equal(c.DayStart(b))
}

// MinuteBucket truncates t to its minute in the exchange timezone; used as
// the display bucket on executions.
func (c *Clock) MinuteBucket(t time.Time) time.Time {
	return t.In(c.loc).Truncate(time.Minute)
}

// MinutesSinceOpen counts whole minutes from market open to t. Pre-open
// fills yield negative values.
func (c *Clock) MinutesSinceOpen(t time.Time) int {
	open := c.OpenAt(t)
	d := t.Sub(open)
	if d < 0 {
		return -int((-d) / time.Minute)
	}
	return int(d / time.Minute)
}
