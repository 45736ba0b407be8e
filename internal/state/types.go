package state

import (
	"math"
	"time"
)

// Tab is the tracking state of one browser tab.
type Tab struct {
	ID        int
	URL       string
	Blockable bool

	// OpenTime and FocusTime are zero while the corresponding clock is stopped.
	OpenTime  time.Time
	FocusTime time.Time

	// SecsLeft is the time before the nearest set blocks the page, +Inf if none.
	SecsLeft    float64
	SecsLeftSet int
}

// TabView is the serialisable form of a Tab.
type TabView struct {
	ID          int        `json:"id"`
	URL         string     `json:"url"`
	Blockable   bool       `json:"blockable"`
	Open        bool       `json:"open"`
	Focused     bool       `json:"focused"`
	OpenSince   *time.Time `json:"open_since,omitempty"`
	FocusSince  *time.Time `json:"focus_since,omitempty"`
	SecsLeft    *float64   `json:"secs_left,omitempty"`
	SecsLeftSet int        `json:"secs_left_set,omitempty"`
}

// View converts the tab for display.
func (t *Tab) View() TabView {
	v := TabView{
		ID:          t.ID,
		URL:         t.URL,
		Blockable:   t.Blockable,
		Open:        !t.OpenTime.IsZero(),
		Focused:     !t.FocusTime.IsZero(),
		SecsLeftSet: t.SecsLeftSet,
	}
	if v.Open {
		open := t.OpenTime
		v.OpenSince = &open
	}
	if v.Focused {
		focus := t.FocusTime
		v.FocusSince = &focus
	}
	if !math.IsInf(t.SecsLeft, 1) {
		secs := t.SecsLeft
		v.SecsLeft = &secs
	}
	return v
}

// Accruer receives time spent on a page when a tab's clocks stop.
type Accruer interface {
	Accrue(url string, secsOpen, secsFocus float64, now time.Time)
}

// AccrueFunc adapts a function to the Accruer interface.
type AccrueFunc func(url string, secsOpen, secsFocus float64, now time.Time)

func (f AccrueFunc) Accrue(url string, secsOpen, secsFocus float64, now time.Time) {
	f(url, secsOpen, secsFocus, now)
}
