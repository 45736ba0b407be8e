package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/browser"
	"github.com/SoarinFerret/TabWarden/internal/eval"
)

// Accrue adds time spent on url to every matching set. It implements
// state.Accruer and must only be called on the engine goroutine.
func (e *Engine) Accrue(url string, secsOpen, secsFocus float64, now time.Time) {
	if e.opts == nil {
		return
	}
	touched := eval.AccrueTime(e.opts.Sets, e.counters, blockset.PageURL(url), secsOpen, secsFocus, now)
	if len(touched) > 0 {
		e.log.Debug().
			Str("url", url).
			Float64("open", secsOpen).
			Float64("focus", secsFocus).
			Ints("sets", touched).
			Msg("time accrued")
	}
}

// checkTab records the tab's URL and redirects it when a set blocks the
// page. It reports whether the tab was blocked.
func (e *Engine) checkTab(ctx context.Context, id int, url string, repeat bool) bool {
	tab := e.tabs.Navigate(id, url, repeat)
	if !tab.Blockable || e.opts == nil {
		return false
	}

	now := e.now()
	d := eval.Evaluate(e.opts.Sets, e.counters, blockset.PageURL(url), now, repeat)
	if d.Blocked {
		// Stop the clocks before leaving the page so the time lands on it.
		e.tabs.Clock(id, false, false, now, e)
		e.log.Info().Int("tab", id).Int("set", d.Set).Str("url", url).Msg("blocking page")
		if err := e.browser.Redirect(ctx, id, d.RedirectURL); err != nil {
			e.log.Warn().Err(err).Int("tab", id).Msg("failed to redirect tab")
		}
		return true
	}

	e.tabs.SetSecsLeft(id, d.SecsLeft, d.SecsLeftSet)
	return false
}

// processTabs re-clocks and re-checks every tab the browser reports.
func (e *Engine) processTabs(ctx context.Context) {
	tabs, err := e.browser.QueryTabs(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to query tabs")
		return
	}

	now := e.now()
	for _, tab := range tabs {
		focus := tab.Active && tab.WindowID == e.focusedWindow

		// Flush the time spent so far. The check may replace the tab when
		// its URL changed, so the clocks restart afterwards.
		e.tabs.Clock(tab.ID, false, false, now, e)
		if e.checkTab(ctx, tab.ID, tab.URL, true) {
			continue
		}
		if !e.paused() {
			e.tabs.Clock(tab.ID, true, focus, now, e)
		}
		e.updateTimeLeftWidget(ctx, tab.ID)
	}
}

// updateTimeLeftWidget sends the tab its remaining time, or null when no
// set will block it.
func (e *Engine) updateTimeLeftWidget(ctx context.Context, id int) {
	tab, ok := e.tabs.Get(id)
	if !ok || !tab.Blockable || strings.HasPrefix(tab.URL, "about:") {
		return
	}

	msg := browser.Message{Type: browser.MessageTimeLeft}
	if !math.IsInf(tab.SecsLeft, 1) {
		text := formatTime(tab.SecsLeft)
		msg.Content = &text
	}
	if err := e.browser.SendMessage(ctx, id, msg); err != nil {
		// Pages without the content script cannot receive it.
		e.log.Debug().Err(err).Int("tab", id).Msg("failed to update time left")
	}
}

// formatTime renders seconds as [d.]HH:MM:SS.
func formatTime(secs float64) string {
	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	total := int64(math.Floor(secs))
	d := total / 86400
	h := total / 3600 % 24
	m := total / 60 % 60
	s := total % 60

	days := ""
	if d > 0 {
		days = fmt.Sprintf("%d.", d)
	}
	return fmt.Sprintf("%s%s%02d:%02d:%02d", sign, days, h, m, s)
}
