package eval

import (
	"math"
	"time"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/budget"
	"github.com/SoarinFerret/TabWarden/internal/schedule"
)

// LookaheadDays is how many days past today windows are projected over.
const LookaheadDays = 7

var infinity = math.Inf(1)

// Verdict is the evaluation of one block set at one instant.
type Verdict struct {
	Lockdown        bool
	InWindow        bool
	BudgetExhausted bool
	Block           bool

	SecsBeforeWindow float64
	SecsBeforeBudget float64
	SecsLeft         float64
}

// Decision is the outcome of evaluating a page against every block set.
type Decision struct {
	Blocked     bool
	Set         int
	RedirectURL string

	// SecsLeft is +Inf when no set will block the page.
	SecsLeft    float64
	SecsLeftSet int
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// secondsBeforeWindow returns 0 inside a window, the seconds until the next
// window within the lookahead otherwise, and +Inf when there is none.
func secondsBeforeWindow(set *blockset.Set, now time.Time) float64 {
	if !set.HasSchedule() {
		return infinity
	}
	mins := minuteOfDay(now)
	projected := schedule.Project(set.Windows, set.ActiveDays, int(now.Weekday()), LookaheadDays+1)
	w, ok := schedule.Next(projected, mins)
	if !ok {
		return infinity
	}
	if w.Start <= mins {
		return 0
	}
	return float64((w.Start-mins)*60 - now.Second())
}

// secondsBeforeBudget returns the budget left in the current period, or
// +Inf when no budget applies today.
func secondsBeforeBudget(set *blockset.Set, c *budget.Counter, now time.Time) float64 {
	if !set.HasBudget || !set.ActiveOn(int(now.Weekday())) {
		return infinity
	}
	periodStart := budget.PeriodStart(now, set.BudgetPeriod)
	return budget.SecondsLeft(c, periodStart, set.BudgetSeconds())
}

// EvaluateSet decides whether set blocks at now and how long until it will.
//
// In AND-mode an unconfigured condition counts as satisfied, so the other
// one governs alone. In OR-mode it never triggers. A set with neither a
// schedule nor a budget only blocks during a lockdown.
func EvaluateSet(set *blockset.Set, c *budget.Counter, now time.Time) Verdict {
	v := Verdict{
		Lockdown:         c.InLockdown(now.Unix()),
		SecsBeforeWindow: secondsBeforeWindow(set, now),
		SecsBeforeBudget: secondsBeforeBudget(set, c, now),
	}
	v.InWindow = set.HasSchedule() && v.SecsBeforeWindow == 0
	v.BudgetExhausted = set.HasBudget && v.SecsBeforeBudget == 0

	var combined bool
	switch {
	case !set.HasSchedule() && !set.HasBudget:
		v.SecsLeft = infinity
	case set.Conjunction:
		windowCond, windowSecs := true, 0.0
		if set.HasSchedule() {
			windowCond, windowSecs = v.InWindow, v.SecsBeforeWindow
		}
		budgetCond, budgetSecs := true, 0.0
		if set.HasBudget {
			budgetCond, budgetSecs = v.BudgetExhausted, v.SecsBeforeBudget
		}
		combined = windowCond && budgetCond
		v.SecsLeft = windowSecs + budgetSecs
	default:
		combined = v.InWindow || v.BudgetExhausted
		v.SecsLeft = math.Min(v.SecsBeforeWindow, v.SecsBeforeBudget)
	}

	v.Block = v.Lockdown || combined
	return v
}

// Applies reports whether set covers pageURL, either through its patterns
// or through one of the guarded browser pages.
func Applies(set *blockset.Set, pageURL string) bool {
	if !set.Enabled() {
		return false
	}
	return set.Matches(pageURL) || set.MatchesSpecialPage(pageURL)
}

// Evaluate checks pageURL against every enabled set in ascending order.
// The first set that blocks wins. A repeat check of an already loaded page
// only blocks through sets with ActiveBlock.
func Evaluate(sets []blockset.Set, counters map[int]*budget.Counter, pageURL string, now time.Time, repeat bool) Decision {
	d := Decision{SecsLeft: infinity}
	for i := range sets {
		set := &sets[i]
		if !Applies(set, pageURL) {
			continue
		}

		v := EvaluateSet(set, counters[set.Number], now)
		if v.Block && (!repeat || set.ActiveBlock) {
			return Decision{
				Blocked:     true,
				Set:         set.Number,
				RedirectURL: set.RedirectURL(pageURL),
				SecsLeft:    0,
				SecsLeftSet: set.Number,
			}
		}

		if v.SecsLeft < d.SecsLeft {
			d.SecsLeft = v.SecsLeft
			d.SecsLeftSet = set.Number
		}
	}
	return d
}

// CountsInPeriod reports whether time spent now counts toward the set's
// budget period: only on active days, and in AND-mode only inside a window.
func CountsInPeriod(set *blockset.Set, now time.Time) bool {
	if !set.ActiveOn(int(now.Weekday())) {
		return false
	}
	if set.Conjunction && set.HasSchedule() {
		return schedule.Contains(set.Windows, minuteOfDay(now))
	}
	return true
}

// AccrueTime adds time spent on pageURL to the counter of every set whose
// patterns match it. Focus time is used for sets that count focus only.
// It returns the numbers of the sets whose counters changed.
func AccrueTime(sets []blockset.Set, counters map[int]*budget.Counter, pageURL string, secsOpen, secsFocus float64, now time.Time) []int {
	var touched []int
	for i := range sets {
		set := &sets[i]
		if !set.Enabled() || !set.Matches(pageURL) {
			continue
		}

		secs := secsOpen
		if set.CountFocus {
			secs = secsFocus
		}
		periodStart := budget.PeriodStart(now, set.BudgetPeriod)
		counters[set.Number] = budget.Accrue(counters[set.Number], now.Unix(), secs, periodStart, CountsInPeriod(set, now))
		touched = append(touched, set.Number)
	}
	return touched
}
