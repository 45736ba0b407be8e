package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/SoarinFerret/TabWarden/internal/browser"
	"github.com/SoarinFerret/TabWarden/internal/budget"
	"github.com/SoarinFerret/TabWarden/internal/config"
	"github.com/SoarinFerret/TabWarden/internal/store"
)

// Monday 3 June 2024, 10:00 UTC.
var start = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	ctx     context.Context
	eng     *Engine
	browser *fakeBrowser
	clock   *fakeClock
	path    string
}

func newHarness(t *testing.T, doc string, tabs ...browser.TabInfo) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	st, err := store.NewFileStore(path)
	require.NoError(t, err)

	h := &harness{
		t:       t,
		browser: newFakeBrowser(tabs...),
		clock:   &fakeClock{now: start},
		path:    path,
	}
	// The ticker never fires during a test; ticks are driven by hand.
	cfg := &config.Config{NumSets: 3, Tick: config.Duration{Duration: time.Hour}}
	h.eng = NewEngine(cfg, st, h.browser, zerolog.Nop(), WithClock(h.clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = context.Background()
	done := make(chan error, 1)
	go func() { done <- h.eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		st, err := h.eng.Status(h.ctx)
		return err == nil && st.OptionsLoaded
	}, 2*time.Second, 5*time.Millisecond)
	return h
}

func (h *harness) tick() {
	require.NoError(h.t, h.eng.Do(h.ctx, h.eng.handleAlarm))
}

func (h *harness) counter(n int) *budget.Counter {
	var c *budget.Counter
	require.NoError(h.t, h.eng.Do(h.ctx, func(context.Context) {
		c = h.eng.counters[n].Clone()
	}))
	return c
}

const scheduleDoc = `{
	"setName1": "News",
	"blockRE1": "^https://news\\.example\\.com",
	"times1": "0900-1700",
	"days1": [true, true, true, true, true, true, true]
}`

func TestFormatTime(t *testing.T) {
	tests := []struct {
		secs     float64
		expected string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
		{86399, "23:59:59"},
		{90061, "1.01:01:01"},
		{-5, "-00:00:05"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatTime(tt.secs))
		})
	}
}

func TestFormatUnblockTime(t *testing.T) {
	assert.Equal(t, "17:00:00", formatUnblockTime(start.Add(7*time.Hour), start))
	assert.Equal(t, "Tue 4 Jun 2024 09:00:00", formatUnblockTime(start.Add(23*time.Hour), start))
}

func TestMergeCounter(t *testing.T) {
	live := &budget.Counter{Created: 100, Total: 50, PeriodStart: 3600, PeriodSpent: 20}
	older := &budget.Counter{Created: 100, Total: 40, PeriodStart: 3600, PeriodSpent: 10, LockdownUntil: 9000}
	reset := &budget.Counter{Created: 200}

	merged := mergeCounter(live, older, 500)
	assert.Equal(t, 50.0, merged.Total)
	assert.Equal(t, int64(9000), merged.LockdownUntil)

	assert.Equal(t, reset, mergeCounter(live, reset, 500))
	assert.Equal(t, live, mergeCounter(live, nil, 500))
	assert.Equal(t, &budget.Counter{Created: 500}, mergeCounter(nil, nil, 500))
}

func TestBeforeNavigate_BlocksInsideWindow(t *testing.T) {
	h := newHarness(t, scheduleDoc)

	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, 7, 0, "https://news.example.com/today#top"))

	url, ok := h.browser.redirect(7)
	require.True(t, ok, "page inside the window should be redirected")
	assert.Equal(t, "blocked.html?1&https://news.example.com/today", url)
}

func TestBeforeNavigate_IgnoresSubframesAndOtherPages(t *testing.T) {
	h := newHarness(t, scheduleDoc)

	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, 7, 3, "https://news.example.com/"))
	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, 8, 0, "https://other.example.com/"))

	_, ok := h.browser.redirect(7)
	assert.False(t, ok, "subframe navigation must not be checked")
	_, ok = h.browser.redirect(8)
	assert.False(t, ok, "unmatched page must not be blocked")

	tabs, err := h.eng.Tabs(h.ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Nil(t, tabs[0].SecsLeft)
}

func TestBeforeNavigate_OutsideWindowReportsTimeLeft(t *testing.T) {
	h := newHarness(t, scheduleDoc)
	h.clock.Advance(-2 * time.Hour) // 08:00

	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, 7, 0, "https://news.example.com/"))
	_, ok := h.browser.redirect(7)
	assert.False(t, ok)

	tabs, err := h.eng.Tabs(h.ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	require.NotNil(t, tabs[0].SecsLeft)
	assert.Equal(t, 3600.0, *tabs[0].SecsLeft)
	assert.Equal(t, 1, tabs[0].SecsLeftSet)
}

const budgetDoc = `{
	"blockRE1": "^https://video\\.example\\.com",
	"limitMins1": "1",
	"limitPeriod1": "3600",
	"activeBlock1": true,
	"days1": [true, true, true, true, true, true, true]
}`

func TestBudget_AccruesThenBlocks(t *testing.T) {
	tab := browser.TabInfo{ID: 4, WindowID: 1, URL: "https://video.example.com/watch", Active: true}
	h := newHarness(t, budgetDoc, tab)

	require.NoError(t, h.eng.HandleWindowFocused(h.ctx, 1))
	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, tab.ID, 0, tab.URL))
	require.NoError(t, h.eng.HandleTabUpdated(h.ctx, tab, StatusComplete))

	h.clock.Advance(30 * time.Second)
	h.tick()

	c := h.counter(1)
	assert.Equal(t, 30.0, c.Total)
	assert.Equal(t, 30.0, c.PeriodSpent)
	assert.Equal(t, start.Unix(), c.PeriodStart)

	content, ok := h.browser.lastTimeLeft(tab.ID)
	require.True(t, ok)
	require.NotNil(t, content)
	assert.Equal(t, "00:00:30", *content)
	_, blocked := h.browser.redirect(tab.ID)
	assert.False(t, blocked)

	h.clock.Advance(31 * time.Second)
	h.tick()

	url, blocked := h.browser.redirect(tab.ID)
	require.True(t, blocked, "exhausted budget should block an open page with active blocking")
	assert.Equal(t, "blocked.html?1&https://video.example.com/watch", url)

	// The counters are persisted at the end of the tick.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(h.path)
		return err == nil && gjson.GetBytes(data, "timedata1.1").Float() >= 61
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBudget_UnfocusedTimeDoesNotCount(t *testing.T) {
	tab := browser.TabInfo{ID: 4, WindowID: 2, URL: "https://video.example.com/watch", Active: true}
	h := newHarness(t, budgetDoc, tab)

	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, tab.ID, 0, tab.URL))
	require.NoError(t, h.eng.HandleTabUpdated(h.ctx, tab, StatusComplete))

	h.clock.Advance(time.Minute)
	h.tick()

	assert.Zero(t, h.counter(1).Total, "tab in an unfocused window accrues open time only")
}

func TestTick_URLChangeKeepsClocks(t *testing.T) {
	tab := browser.TabInfo{ID: 4, WindowID: 1, URL: "https://video.example.com/watch?v=1", Active: true}
	h := newHarness(t, budgetDoc, tab)

	require.NoError(t, h.eng.HandleWindowFocused(h.ctx, 1))
	h.tick()

	// In-page navigation that only the tick notices.
	h.clock.Advance(20 * time.Second)
	h.browser.setURL(tab.ID, "https://video.example.com/watch?v=2")
	h.tick()
	assert.Equal(t, 20.0, h.counter(1).Total)

	h.clock.Advance(10 * time.Second)
	h.tick()
	assert.Equal(t, 30.0, h.counter(1).Total, "clocks keep running on the new URL")
}

func TestTick_UpdatesBackgroundTabs(t *testing.T) {
	front := browser.TabInfo{ID: 4, WindowID: 1, URL: "https://video.example.com/a", Active: true}
	back := browser.TabInfo{ID: 5, WindowID: 1, URL: "https://video.example.com/b"}
	h := newHarness(t, budgetDoc, front, back)

	require.NoError(t, h.eng.HandleWindowFocused(h.ctx, 1))
	h.tick()
	h.clock.Advance(15 * time.Second)
	h.tick()

	content, ok := h.browser.lastTimeLeft(back.ID)
	require.True(t, ok, "inactive tabs get the widget too")
	require.NotNil(t, content)
	assert.Equal(t, "00:00:45", *content)
}

func TestSleep_StopsClocks(t *testing.T) {
	tab := browser.TabInfo{ID: 4, WindowID: 1, URL: "https://video.example.com/watch", Active: true}
	h := newHarness(t, budgetDoc, tab)

	require.NoError(t, h.eng.HandleWindowFocused(h.ctx, 1))
	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, tab.ID, 0, tab.URL))
	require.NoError(t, h.eng.HandleTabUpdated(h.ctx, tab, StatusComplete))

	h.clock.Advance(10 * time.Second)
	require.NoError(t, h.eng.HandleSleep(h.ctx))
	assert.Equal(t, 10.0, h.counter(1).Total)

	h.clock.Advance(time.Hour)
	h.tick()
	assert.Equal(t, 10.0, h.counter(1).Total, "time asleep must not accrue")

	require.NoError(t, h.eng.HandleWake(h.ctx))
	h.tick()
	h.clock.Advance(5 * time.Second)
	h.tick()
	assert.Equal(t, 15.0, h.counter(1).Total)

	st, err := h.eng.Status(h.ctx)
	require.NoError(t, err)
	assert.False(t, st.Sleeping)
}

func TestTabRemoved_FlushesTime(t *testing.T) {
	tab := browser.TabInfo{ID: 4, WindowID: 1, URL: "https://video.example.com/watch", Active: true}
	h := newHarness(t, budgetDoc)

	require.NoError(t, h.eng.HandleWindowFocused(h.ctx, 1))
	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, tab.ID, 0, tab.URL))
	require.NoError(t, h.eng.HandleTabUpdated(h.ctx, tab, StatusComplete))

	h.clock.Advance(12 * time.Second)
	require.NoError(t, h.eng.HandleTabRemoved(h.ctx, tab.ID))
	assert.Equal(t, 12.0, h.counter(1).Total)

	tabs, err := h.eng.Tabs(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, tabs)
}

func TestLockdown(t *testing.T) {
	tab := browser.TabInfo{ID: 9, WindowID: 1, URL: "https://video.example.com/", Active: true}
	h := newHarness(t, budgetDoc, tab)
	require.NoError(t, h.eng.HandleBeforeNavigate(h.ctx, tab.ID, 0, tab.URL))

	until, err := h.eng.Lockdown(h.ctx, 1, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, start.Add(2*time.Hour), until)

	_, blocked := h.browser.redirect(tab.ID)
	assert.True(t, blocked, "lockdown should block open tabs at once")

	at, ok, err := h.eng.UnblockTime(h.ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, until.Unix(), at.Unix())

	until, err = h.eng.Lockdown(h.ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, start.Add(2*time.Hour).Unix(), until.Unix(), "a shorter lockdown must not cut the active one")
	assert.Equal(t, start.Add(2*time.Hour).Unix(), h.counter(1).LockdownUntil)

	_, err = h.eng.Lockdown(h.ctx, 2, time.Hour)
	assert.Error(t, err, "unconfigured set")
	_, err = h.eng.Lockdown(h.ctx, 1, 0)
	assert.Error(t, err)
}

func TestMessage_BlockedInfo(t *testing.T) {
	h := newHarness(t, scheduleDoc)

	reply, err := h.eng.HandleMessage(h.ctx, 7, "moz-extension://abc/blocked.html?1&https://news.example.com/today#frag",
		browser.Message{Type: browser.MessageBlocked})
	require.NoError(t, err)

	info, ok := reply.(BlockInfo)
	require.True(t, ok)
	assert.Equal(t, "1", info.BlockedSet)
	assert.Equal(t, "News", info.BlockedSetName)
	assert.Equal(t, "https://news.example.com/today#frag", info.BlockedURL)
	assert.Equal(t, "17:00:00", info.UnblockTime)

	_, err = h.eng.HandleMessage(h.ctx, 7, "https://example.com/", browser.Message{Type: "bogus"})
	assert.Error(t, err)
}

func TestMessage_OptionsReload(t *testing.T) {
	h := newHarness(t, scheduleDoc)

	require.NoError(t, os.WriteFile(h.path, []byte(budgetDoc), 0644))
	_, err := h.eng.HandleMessage(h.ctx, 1, "", browser.Message{Type: browser.MessageOptions})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := h.eng.Status(h.ctx)
		return err == nil && len(st.Sets) > 0 && st.Sets[0].BudgetSeconds == 60
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWidget_SkipsAboutPages(t *testing.T) {
	doc := `{
		"blockRE1": "^https://video\\.example\\.com",
		"prevConfig1": true,
		"times1": "1100-1200",
		"days1": [true, true, true, true, true, true, true]
	}`
	tab := browser.TabInfo{ID: 2, WindowID: 1, URL: "about:config", Active: true}
	h := newHarness(t, doc, tab)

	h.tick()
	_, sent := h.browser.lastTimeLeft(tab.ID)
	assert.False(t, sent, "about: pages have no content script")
}

func TestStatus(t *testing.T) {
	h := newHarness(t, scheduleDoc)

	st, err := h.eng.Status(h.ctx)
	require.NoError(t, err)
	assert.True(t, st.OptionsLoaded)
	require.Len(t, st.Sets, 3)

	news := st.Sets[0]
	assert.True(t, news.Enabled)
	assert.True(t, news.Blocking)
	require.NotNil(t, news.UnblockAt)
	assert.Equal(t, start.Add(7*time.Hour).Unix(), news.UnblockAt.Unix())

	assert.False(t, st.Sets[1].Enabled)
}

func TestBrowserOffline(t *testing.T) {
	h := newHarness(t, scheduleDoc)
	require.NoError(t, h.eng.HandleWindowFocused(h.ctx, 5))
	h.browser.setOffline(true)

	// A tick against an unreachable browser is logged and skipped.
	h.tick()

	var focused int
	require.NoError(t, h.eng.Do(h.ctx, func(context.Context) { focused = h.eng.focusedWindow }))
	assert.Equal(t, 5, focused, "focus is kept when the browser cannot be asked")
}
