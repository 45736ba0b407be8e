// Package schedule turns block set schedule text into minute-of-day windows
// and projects them across the following days.
package schedule

import (
	"sort"
	"strconv"
	"strings"
)

const MinutesPerDay = 1440

// Window is a half-open interval [Start, End) in minutes since midnight of
// the first projected day.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether minute m falls inside the window.
func (w Window) Contains(m int) bool {
	return m >= w.Start && m < w.End
}

// Parse reads a list of "HH:MM-HH:MM" (or "HHMM-HHMM") ranges separated by
// commas or whitespace. Entries that do not parse are dropped. The result
// is sorted and merged.
func Parse(text string) []Window {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	})

	var windows []Window
	for _, f := range fields {
		parts := strings.Split(f, "-")
		if len(parts) != 2 {
			continue
		}
		start, ok1 := parseClock(parts[0])
		end, ok2 := parseClock(parts[1])
		if !ok1 || !ok2 || start >= end {
			continue
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return Normalize(windows)
}

// parseClock converts "HH:MM" or "HHMM" to minutes since midnight. 24:00 is
// accepted as the end of the day.
func parseClock(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ":", "")
	if len(s) != 4 {
		return 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(s[2:])
	if err != nil || m < 0 || m > 59 || h < 0 {
		return 0, false
	}
	mins := h*60 + m
	if mins > MinutesPerDay {
		return 0, false
	}
	return mins, true
}

// Normalize sorts windows by start and merges overlapping or adjacent ones.
func Normalize(windows []Window) []Window {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// Project lays the daily windows out over numDays days starting at startDay
// (0 = Sunday), skipping days that are not active, and merges windows that
// run into each other across midnight.
func Project(windows []Window, activeDays [7]bool, startDay, numDays int) []Window {
	var all []Window
	for i := 0; i < numDays; i++ {
		if !activeDays[(startDay+i)%7] {
			continue
		}
		offset := i * MinutesPerDay
		for _, w := range windows {
			shifted := Window{Start: w.Start + offset, End: w.End + offset}
			if n := len(all); n > 0 && shifted.Start <= all[n-1].End {
				if shifted.End > all[n-1].End {
					all[n-1].End = shifted.End
				}
				continue
			}
			all = append(all, shifted)
		}
	}
	return all
}

// Find returns the window containing minute m.
func Find(windows []Window, m int) (Window, bool) {
	for _, w := range windows {
		if w.Contains(m) {
			return w, true
		}
	}
	return Window{}, false
}

// Contains reports whether minute m falls inside any of the windows.
func Contains(windows []Window, m int) bool {
	_, ok := Find(windows, m)
	return ok
}

// Next returns the first window that has not ended by minute m: either the
// one containing m or the next one to start.
func Next(windows []Window, m int) (Window, bool) {
	for _, w := range windows {
		if w.End > m {
			return w, true
		}
	}
	return Window{}, false
}

// AllDay reports whether the windows cover the whole day.
func AllDay(windows []Window) bool {
	return len(windows) == 1 && windows[0].Start == 0 && windows[0].End == MinutesPerDay
}

// String renders windows back to "HH:MM-HH:MM" form.
func String(windows []Window) string {
	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		parts = append(parts, clock(w.Start)+"-"+clock(w.End))
	}
	return strings.Join(parts, ",")
}

func clock(m int) string {
	h := m / 60
	mm := m % 60
	return pad2(h) + ":" + pad2(mm)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
