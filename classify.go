package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock minute of day, used for the off-peak window
// bounds.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) minuteOfDay() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime parses "HH:MM" into a ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// OffPeakWindow is the fixed daily clock-time range billed at the reduced
// rate, inclusive at the start minute and exclusive at the end minute.
// A window whose start is later than its end wraps past midnight.
type OffPeakWindow struct {
	Start ClockTime
	End   ClockTime
}

// Contains reports whether t's wall-clock time in loc falls in the window.
func (w OffPeakWindow) Contains(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	m := local.Hour()*60 + local.Minute()
	start := w.Start.minuteOfDay()
	end := w.End.minuteOfDay()
	if start <= end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

// Classifier assigns each reading timestamp to exactly one tariff period.
// Dispatch membership is checked first so a timestamp inside both a dispatch
// window and the clock window counts once, as smart charging.
type Classifier struct {
	Window     OffPeakWindow
	Location   *time.Location
	Dispatches []DispatchWindow
}

// Classify returns the tariff period for the given timestamp.
func (c *Classifier) Classify(t time.Time) Period {
	for _, w := range c.Dispatches {
		if w.Contains(t) {
			return PeriodSmartCharging
		}
	}
	if c.Window.Contains(t, c.loc()) {
		return PeriodOffPeak
	}
	return PeriodPeak
}

func (c *Classifier) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}
