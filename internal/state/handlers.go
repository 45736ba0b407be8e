package state

import (
	"time"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
)

// Clock starts or stops the open and focus clocks of tab id. Stopping a
// running clock hands the elapsed seconds to acc. Non-blockable tabs are
// never clocked.
func (m *Manager) Clock(id int, open, focus bool, now time.Time, acc Accruer) {
	m.mu.Lock()
	url, secsOpen, secsFocus, ok := m.clock(id, open, focus, now)
	m.mu.Unlock()

	if ok && (secsOpen > 0 || secsFocus > 0) && acc != nil {
		acc.Accrue(url, secsOpen, secsFocus, now)
	}
}

// Remove stops the tab's clocks, flushing their time to acc, and forgets it.
func (m *Manager) Remove(id int, now time.Time, acc Accruer) {
	m.mu.Lock()
	url, secsOpen, secsFocus, ok := m.clock(id, false, false, now)
	delete(m.tabs, id)
	m.mu.Unlock()

	if ok && (secsOpen > 0 || secsFocus > 0) && acc != nil {
		acc.Accrue(url, secsOpen, secsFocus, now)
	}
}

// StopAll stops every running clock, as when the machine sleeps.
func (m *Manager) StopAll(now time.Time, acc Accruer) {
	for _, id := range m.IDs() {
		m.Clock(id, false, false, now, acc)
	}
}

func (m *Manager) clock(id int, open, focus bool, now time.Time) (string, float64, float64, bool) {
	tab, ok := m.tabs[id]
	if !ok || !tab.Blockable {
		return "", 0, 0, false
	}
	secsOpen := tick(&tab.OpenTime, open, now, tab.URL)
	secsFocus := tick(&tab.FocusTime, focus, now, tab.URL)
	return tab.URL, secsOpen, secsFocus, true
}

// tick starts the clock at since when running is set, or stops it and
// returns the seconds it ran.
func tick(since *time.Time, running bool, now time.Time, url string) float64 {
	if running {
		if since.IsZero() {
			*since = now
		}
		return 0
	}
	if since.IsZero() {
		return 0
	}
	var secs float64
	if blockset.Clockable(url) {
		secs = now.Sub(*since).Seconds()
	}
	*since = time.Time{}
	return secs
}
