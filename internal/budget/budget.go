// Package budget keeps the rolling time-spent counter of a block set.
package budget

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

const (
	hour = 3600
	day  = 86400
	// 1970-01-04 was the first Sunday after the epoch.
	sundayAnchor = 3 * day
)

// Counter is the persisted time data of one block set. It is stored as the
// array [created, total, periodStart, periodSpent, lockdownUntil].
type Counter struct {
	Created       int64
	Total         float64
	PeriodStart   int64
	PeriodSpent   float64
	LockdownUntil int64
}

// New returns a zeroed counter created at now.
func New(now int64) *Counter {
	return &Counter{Created: now}
}

// Decode parses a stored counter. It returns nil when the value is missing
// or is not an array of five numbers.
func Decode(raw gjson.Result) *Counter {
	if !raw.IsArray() {
		return nil
	}
	fields := raw.Array()
	if len(fields) != 5 {
		return nil
	}
	for _, f := range fields {
		if f.Type != gjson.Number && f.Type != gjson.String {
			return nil
		}
	}
	return &Counter{
		Created:       fields[0].Int(),
		Total:         fields[1].Float(),
		PeriodStart:   fields[2].Int(),
		PeriodSpent:   fields[3].Float(),
		LockdownUntil: fields[4].Int(),
	}
}

// MarshalJSON writes the counter in its five-element array form.
func (c Counter) MarshalJSON() ([]byte, error) {
	return json.Marshal([5]any{c.Created, c.Total, c.PeriodStart, c.PeriodSpent, c.LockdownUntil})
}

// UnmarshalJSON accepts only the five-element array form.
func (c *Counter) UnmarshalJSON(data []byte) error {
	d := Decode(gjson.ParseBytes(data))
	if d == nil {
		return fmt.Errorf("invalid time data: %s", data)
	}
	*c = *d
	return nil
}

// Clone returns a copy of c, or nil.
func (c *Counter) Clone() *Counter {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// InLockdown reports whether the counter forces a block at now.
func (c *Counter) InLockdown(now int64) bool {
	return c != nil && c.LockdownUntil > now
}

// PeriodStart returns the start of the fixed-length period containing now,
// in Unix seconds. Periods longer than an hour are aligned to local
// midnight, and periods longer than a day to local Sunday midnight. It
// returns 0 when no period is configured.
func PeriodStart(now time.Time, periodSeconds int64) int64 {
	if periodSeconds <= 0 {
		return 0
	}
	secs := now.Unix()
	var offset, anchor int64
	if periodSeconds > hour {
		_, zoneOffset := now.Zone()
		offset = int64(zoneOffset)
		if periodSeconds > day {
			anchor = sundayAnchor
		}
	}
	local := secs + offset - anchor
	start := local - mod(local, periodSeconds)
	return start - offset + anchor
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Accrue adds secs to the counter, creating it when c is nil. When
// countInPeriod is set and a period is active, the time is also added to
// the current period, starting a fresh count when the period has rolled
// over. A negative stored period start suspends period accounting.
func Accrue(c *Counter, now int64, secs float64, periodStart int64, countInPeriod bool) *Counter {
	if c == nil {
		c = New(now)
	}
	c.Total += secs

	if countInPeriod && periodStart > 0 && c.PeriodStart >= 0 {
		if c.PeriodStart != periodStart {
			c.PeriodStart = periodStart
			c.PeriodSpent = secs
		} else {
			c.PeriodSpent += secs
		}
	}
	return c
}

// SecondsLeft returns how many seconds of budget remain in the period
// starting at periodStart. A counter from an older period has spent nothing.
func SecondsLeft(c *Counter, periodStart int64, budgetSeconds float64) float64 {
	if c == nil || c.PeriodStart != periodStart {
		return budgetSeconds
	}
	return math.Max(0, budgetSeconds-c.PeriodSpent)
}

// Lockdown forces a block until the given Unix time. An active lockdown is
// only ever extended.
func Lockdown(c *Counter, now, until int64) *Counter {
	if c == nil {
		c = New(now)
	}
	if until > c.LockdownUntil {
		c.LockdownUntil = until
	}
	return c
}

// PeriodEnd returns when the counter's current period ends.
func (c *Counter) PeriodEnd(periodSeconds int64) time.Time {
	return time.Unix(c.PeriodStart+periodSeconds, 0)
}
