// Package market answers trading-session questions in the exchange's local time.
package market

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"PredictionRadar/pkg/config"
)

// Session state labels
const (
	LabelWeekend    = "Weekend"
	LabelPreMarket  = "Pre-Market"
	LabelAfterHours = "After-Hours"
	LabelOpen       = "Market Open"
)

// MarketStatus snapshot of the session at a given instant
type MarketStatus struct {
	Label       string    `json:"status"`
	IsClosed    bool      `json:"is_closed"`
	CurrentTime time.Time `json:"current_time"`
	NextChange  time.Time `json:"next_change"`
}

// Clock regular trading session, Monday to Friday
type Clock struct {
	loc         *time.Location
	openMinute  int
	closeMinute int
	now         func() time.Time
}

// Option configures a Clock
type Option func(*Clock)

// WithNow replaces the wall clock, mainly for tests
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// NewClock builds a clock from the market section of the config
func NewClock(cfg config.MarketConfig, opts ...Option) (*Clock, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load market timezone %q: %w", cfg.Timezone, err)
	}
	open, err := config.ParseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	closing, err := config.ParseClock(cfg.Close)
	if err != nil {
		return nil, err
	}

	c := &Clock{
		loc:         loc,
		openMinute:  open,
		closeMinute: closing,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location market timezone
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now current time in the market timezone
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// IsMarketClosed weekend, before the open, or at/after the close
func (c *Clock) IsMarketClosed(t time.Time) bool {
	local := t.In(c.loc)
	if isWeekend(local.Weekday()) {
		return true
	}
	return local.Before(c.OpenOn(local)) || !local.Before(c.CloseOn(local))
}

// IsAfterClose reports whether t is at or past the close of its own day
func (c *Clock) IsAfterClose(t time.Time) bool {
	local := t.In(c.loc)
	return !local.Before(c.CloseOn(local))
}

// Status labels the session and projects the next open or close
func (c *Clock) Status(t time.Time) MarketStatus {
	local := t.In(c.loc)
	status := MarketStatus{
		IsClosed:    c.IsMarketClosed(local),
		CurrentTime: local,
	}

	switch {
	case isWeekend(local.Weekday()):
		status.Label = LabelWeekend
		status.NextChange = c.nextOpen(local)
	case local.Before(c.OpenOn(local)):
		status.Label = LabelPreMarket
		status.NextChange = c.OpenOn(local)
	case status.IsClosed:
		status.Label = LabelAfterHours
		status.NextChange = c.nextOpen(local)
	default:
		status.Label = LabelOpen
		status.NextChange = c.CloseOn(local)
	}
	return status
}

// CollectionDate market-local calendar date, YYYY-MM-DD
func (c *Clock) CollectionDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// OpenOn session open on the market-local day of t
func (c *Clock) OpenOn(t time.Time) time.Time {
	return c.at(t, c.openMinute)
}

// CloseOn session close on the market-local day of t
func (c *Clock) CloseOn(t time.Time) time.Time {
	return c.at(t, c.closeMinute)
}

func (c *Clock) at(t time.Time, minuteOfDay int) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), minuteOfDay/60, minuteOfDay%60, 0, 0, c.loc)
}

// nextOpen first session open strictly after t on a weekday
func (c *Clock) nextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	for day := 0; day < 8; day++ {
		d := time.Date(local.Year(), local.Month(), local.Day()+day, 0, 0, 0, 0, c.loc)
		open := c.OpenOn(d)
		if !isWeekend(d.Weekday()) && open.After(local) {
			return open
		}
	}
	return c.OpenOn(local.AddDate(0, 0, 1))
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
