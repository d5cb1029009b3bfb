package simulate

import (
	"fmt"
	"math"
	"time"
)

const (
	// Hours in [0, nightEndHour) count as night.
	nightEndHour = 7

	// DefaultNightKeepProbability is the chance a night sample is kept
	// instead of being drawn again.
	DefaultNightKeepProbability = 0.5

	// DefaultMaxAttempts caps night re-draws; the last sample is accepted.
	DefaultMaxAttempts = 20
)

// Clock generates historical event times inside a lookback window, biased
// toward daytime hours by rejecting part of the night samples.
type Clock struct {
	DaysBack int

	// Location decides which local hour counts as night. Defaults to time.Local.
	Location *time.Location

	NightKeepProbability float64
	MaxAttempts          int

	// Now is overridable for tests.
	Now func() time.Time
}

// MaxDaysBack keeps the window span representable as a time.Duration.
const MaxDaysBack = int(math.MaxInt64 / int64(24*time.Hour))

func NewClock(daysBack int) (*Clock, error) {
	if daysBack < 1 {
		return nil, fmt.Errorf("days back must be at least 1 (got %d)", daysBack)
	}
	if daysBack > MaxDaysBack {
		return nil, fmt.Errorf("days back must be at most %d (got %d)", MaxDaysBack, daysBack)
	}
	return &Clock{
		DaysBack:             daysBack,
		Location:             time.Local,
		NightKeepProbability: DefaultNightKeepProbability,
		MaxAttempts:          DefaultMaxAttempts,
		Now:                  time.Now,
	}, nil
}

// Window returns the [start, end] range Next draws from.
func (c *Clock) Window() (time.Time, time.Time) {
	end := c.Now()
	start := end.AddDate(0, 0, -c.DaysBack)
	return start, end
}

// Next draws a time uniformly from the window. A night-hour draw is kept with
// probability NightKeepProbability and otherwise re-drawn, at most MaxAttempts
// draws in total.
func (c *Clock) Next(rnd *Rand) time.Time {
	start, end := c.Window()
	span := float64(end.Sub(start))

	maxAttempts := c.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var t time.Time
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		t = start.Add(time.Duration(rnd.Float64() * span)).In(c.location())
		if !IsNight(t) {
			break
		}
		if rnd.Float64() < c.NightKeepProbability {
			break
		}
	}
	return t
}

func (c *Clock) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// IsNight reports whether t falls in the low-traffic hours of its location.
func IsNight(t time.Time) bool {
	return t.Hour() < nightEndHour
}
