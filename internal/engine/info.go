package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/SoarinFerret/TabWarden/internal/budget"
	"github.com/SoarinFerret/TabWarden/internal/eval"
	"github.com/SoarinFerret/TabWarden/internal/state"
)

// BlockInfo is shown on the block page.
type BlockInfo struct {
	BlockedSet     string `json:"blockedSet"`
	BlockedSetName string `json:"blockedSetName"`
	BlockedURL     string `json:"blockedURL"`
	UnblockTime    string `json:"unblockTime,omitempty"`
}

// SetStatus summarises one block set.
type SetStatus struct {
	Number        int        `json:"number"`
	Name          string     `json:"name,omitempty"`
	Enabled       bool       `json:"enabled"`
	Blocking      bool       `json:"blocking"`
	Lockdown      bool       `json:"lockdown"`
	SecsLeft      *float64   `json:"secs_left,omitempty"`
	BudgetUsed    float64    `json:"budget_used"`
	BudgetSeconds float64    `json:"budget_seconds,omitempty"`
	UnblockAt     *time.Time `json:"unblock_at,omitempty"`
}

// Status is the daemon-wide summary reported over D-Bus.
type Status struct {
	StartedAt     time.Time   `json:"started_at"`
	OptionsLoaded bool        `json:"options_loaded"`
	Sleeping      bool        `json:"sleeping"`
	Locked        bool        `json:"locked"`
	Tabs          int         `json:"tabs"`
	Sets          []SetStatus `json:"sets"`
}

const (
	sameDayLayout   = "15:04:05"
	otherDayLayout  = "Mon 2 Jan 2006 15:04:05"
	maxLockdownTime = 366 * 24 * time.Hour
)

func formatUnblockTime(at, now time.Time) string {
	y1, m1, d1 := at.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return at.Format(sameDayLayout)
	}
	return at.Format(otherDayLayout)
}

func (e *Engine) unblockTime(n int, now time.Time) (time.Time, bool) {
	return eval.UnblockTimeFor(e.opts, e.counters, n, now)
}

// UnblockTime returns when set n stops blocking.
func (e *Engine) UnblockTime(ctx context.Context, n int) (time.Time, bool, error) {
	var at time.Time
	var ok bool
	err := e.Do(ctx, func(context.Context) {
		at, ok = e.unblockTime(n, e.now())
	})
	return at, ok, err
}

// BlockInfo describes a block page URL.
func (e *Engine) BlockInfo(ctx context.Context, url string) (BlockInfo, error) {
	var info BlockInfo
	var err error
	if doErr := e.Do(ctx, func(context.Context) {
		info, err = e.blockInfo(url)
	}); doErr != nil {
		return BlockInfo{}, doErr
	}
	return info, err
}

// Lockdown blocks set n for d regardless of its schedule and budget, then
// re-checks every tab.
func (e *Engine) Lockdown(ctx context.Context, n int, d time.Duration) (time.Time, error) {
	if d <= 0 || d > maxLockdownTime {
		return time.Time{}, fmt.Errorf("lockdown duration %s out of range", d)
	}

	var until time.Time
	var err error
	doErr := e.Do(ctx, func(ctx context.Context) {
		set, ok := e.opts.Set(n)
		if !ok || !set.Enabled() {
			err = fmt.Errorf("block set %d is not configured", n)
			return
		}
		now := e.now()
		c := budget.Lockdown(e.counters[n], now.Unix(), now.Add(d).Unix())
		e.counters[n] = c
		until = time.Unix(c.LockdownUntil, 0).In(now.Location())
		e.log.Info().Int("set", n).Time("until", until).Msg("lockdown started")
		e.processTabs(ctx)
		e.save(ctx)
	})
	if doErr != nil {
		return time.Time{}, doErr
	}
	return until, err
}

// Tabs returns a snapshot of the tracked tabs.
func (e *Engine) Tabs(ctx context.Context) ([]state.TabView, error) {
	var views []state.TabView
	err := e.Do(ctx, func(context.Context) {
		views = e.tabs.Snapshot()
	})
	return views, err
}

// Status summarises the daemon and every block set.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.Do(ctx, func(context.Context) {
		st = e.status(e.now())
	})
	return st, err
}

func (e *Engine) status(now time.Time) Status {
	st := Status{
		StartedAt:     e.startedAt,
		OptionsLoaded: e.opts != nil,
		Sleeping:      e.sleeping,
		Locked:        e.locked,
		Tabs:          e.tabs.Len(),
	}
	if e.opts == nil {
		return st
	}

	for i := range e.opts.Sets {
		set := &e.opts.Sets[i]
		c := e.counters[set.Number]
		v := eval.EvaluateSet(set, c, now)

		ss := SetStatus{
			Number:   set.Number,
			Name:     set.Name,
			Enabled:  set.Enabled(),
			Blocking: set.Enabled() && v.Block,
			Lockdown: v.Lockdown,
		}
		if !math.IsInf(v.SecsLeft, 1) {
			secs := v.SecsLeft
			ss.SecsLeft = &secs
		}
		if set.HasBudget {
			ss.BudgetSeconds = set.BudgetSeconds()
			ss.BudgetUsed = ss.BudgetSeconds - budget.SecondsLeft(c, budget.PeriodStart(now, set.BudgetPeriod), ss.BudgetSeconds)
		}
		if ss.Blocking {
			if at, ok := eval.UnblockTime(set, c, now); ok {
				ss.UnblockAt = &at
			}
		}
		st.Sets = append(st.Sets, ss)
	}
	return st
}
