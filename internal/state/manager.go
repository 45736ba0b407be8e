package state

import (
	"math"
	"sort"
	"sync"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
)

// Manager is the process-wide map of tab ID to tab state.
type Manager struct {
	mu   sync.Mutex
	tabs map[int]*Tab
}

// NewManager returns an empty tab store.
func NewManager() *Manager {
	return &Manager{tabs: make(map[int]*Tab)}
}

// Get returns a copy of the tab's state.
func (m *Manager) Get(id int) (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return Tab{}, false
	}
	return *tab, true
}

// Navigate records that tab id shows url. A new tab, a fresh navigation or
// a repeat check that finds a different URL starts the tab over; a repeat
// check of the same URL keeps its clocks.
func (m *Manager) Navigate(id int, url string, repeat bool) Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok || !repeat || tab.URL != url {
		tab = &Tab{ID: id, URL: url}
		m.tabs[id] = tab
	}
	tab.Blockable = blockset.Blockable(url)
	tab.SecsLeft = math.Inf(1)
	tab.SecsLeftSet = 0
	return *tab
}

// SetSecsLeft stores the time before the nearest block for tab id.
func (m *Manager) SetSecsLeft(id int, secs float64, set int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tab, ok := m.tabs[id]; ok {
		tab.SecsLeft = secs
		tab.SecsLeftSet = set
	}
}

// IDs returns the known tab IDs in ascending order.
func (m *Manager) IDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int, 0, len(m.tabs))
	for id := range m.tabs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Snapshot returns a display view of every tab, ordered by ID.
func (m *Manager) Snapshot() []TabView {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]TabView, 0, len(m.tabs))
	for _, tab := range m.tabs {
		views = append(views, tab.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Len returns the number of tracked tabs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tabs)
}
