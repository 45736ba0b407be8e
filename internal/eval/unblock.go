package eval

import (
	"math"
	"time"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/budget"
	"github.com/SoarinFerret/TabWarden/internal/schedule"
)

// UnblockTime returns when set will stop blocking, projected from now. It
// reports false when the set has no time data, blocks around the clock, or
// does not currently block.
func UnblockTime(set *blockset.Set, c *budget.Counter, now time.Time) (time.Time, bool) {
	if c == nil || set.AlwaysBlocks() {
		return time.Time{}, false
	}
	if c.InLockdown(now.Unix()) {
		return time.Unix(c.LockdownUntil, 0).In(now.Location()), true
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowEnd := func(w schedule.Window) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, w.End, 0, 0, now.Location())
	}
	projected := schedule.Project(set.Windows, set.ActiveDays, int(now.Weekday()), LookaheadDays+1)
	mins := minuteOfDay(now)

	var periodStart int64
	var periodEnd time.Time
	if set.HasBudget {
		periodStart = budget.PeriodStart(now, set.BudgetPeriod)
		periodEnd = time.Unix(periodStart+set.BudgetPeriod, 0).In(now.Location())
	}

	switch {
	case set.HasSchedule() && !set.HasBudget:
		if w, ok := schedule.Find(projected, mins); ok {
			return windowEnd(w), true
		}

	case !set.HasSchedule() && set.HasBudget:
		if budget.SecondsLeft(c, periodStart, set.BudgetSeconds()) == 0 {
			return periodEnd, true
		}

	case set.HasSchedule() && set.HasBudget && set.Conjunction:
		if w, ok := schedule.Find(projected, mins); ok {
			end := windowEnd(w)
			if periodEnd.Before(end) {
				return periodEnd, true
			}
			return end, true
		}

	case set.HasSchedule() && set.HasBudget:
		// An exhausted budget keeps blocking until the period resets. If the
		// reset lands inside a window the block carries on to its end.
		if budget.SecondsLeft(c, periodStart, set.BudgetSeconds()) == 0 {
			if w, ok := schedule.Find(projected, minutesSince(midnight, periodEnd)); ok {
				return windowEnd(w), true
			}
			return periodEnd, true
		}
		if w, ok := schedule.Find(projected, mins); ok {
			return windowEnd(w), true
		}
	}

	return time.Time{}, false
}

// minutesSince counts wall-clock minutes from midnight to t, across days.
func minutesSince(midnight, t time.Time) int {
	t = t.In(midnight.Location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, midnight.Location())
	days := int(math.Round(day.Sub(midnight).Hours() / 24))
	return days*schedule.MinutesPerDay + minuteOfDay(t)
}

// UnblockTimeFor looks up set n in opts and returns its unblock time.
func UnblockTimeFor(opts *blockset.Options, counters map[int]*budget.Counter, n int, now time.Time) (time.Time, bool) {
	set, ok := opts.Set(n)
	if !ok {
		return time.Time{}, false
	}
	return UnblockTime(set, counters[n], now)
}
