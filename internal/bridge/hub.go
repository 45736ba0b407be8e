// Package bridge connects the extension to the engine over local HTTP.
// The extension posts browser events and polls for the actions the engine
// wants carried out.
package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SoarinFerret/TabWarden/internal/browser"
)

const (
	ActionRedirect = "redirect"
	ActionMessage  = "message"

	// maxOutbox bounds the actions kept for an extension that stopped polling.
	maxOutbox = 1024
)

// Action is an instruction queued for the extension.
type Action struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	TabID   int              `json:"tabId"`
	URL     string           `json:"url,omitempty"`
	Message *browser.Message `json:"message,omitempty"`
	Created time.Time        `json:"created"`
}

// Hub mirrors the browser's tabs from the events it receives and queues
// actions for the extension. It implements browser.Browser.
type Hub struct {
	mu      sync.Mutex
	tabs    map[int]browser.TabInfo
	focused int
	outbox  []Action
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		tabs:    make(map[int]browser.TabInfo),
		focused: browser.WindowNone,
		now:     time.Now,
	}
}

var _ browser.Browser = (*Hub)(nil)

func (h *Hub) QueryTabs(ctx context.Context) ([]browser.TabInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tabs := make([]browser.TabInfo, 0, len(h.tabs))
	for _, t := range h.tabs {
		tabs = append(tabs, t)
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	return tabs, nil
}

func (h *Hub) LastFocusedWindow(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused, nil
}

func (h *Hub) Redirect(ctx context.Context, tabID int, url string) error {
	return h.enqueue(Action{Type: ActionRedirect, TabID: tabID, URL: url})
}

func (h *Hub) SendMessage(ctx context.Context, tabID int, msg browser.Message) error {
	return h.enqueue(Action{Type: ActionMessage, TabID: tabID, Message: &msg})
}

func (h *Hub) enqueue(a Action) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.tabs[a.TabID]; !ok {
		return fmt.Errorf("tab %d is not known", a.TabID)
	}
	if len(h.outbox) >= maxOutbox {
		return fmt.Errorf("outbox full, extension is not polling")
	}
	a.ID = uuid.NewString()
	a.Created = h.now()
	h.outbox = append(h.outbox, a)
	return nil
}

// Drain returns and clears the queued actions.
func (h *Hub) Drain() []Action {
	h.mu.Lock()
	defer h.mu.Unlock()

	actions := h.outbox
	h.outbox = nil
	if actions == nil {
		actions = []Action{}
	}
	return actions
}

// Observe records the latest state of a tab.
func (h *Hub) Observe(tab browser.TabInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tab.Active {
		// Only one tab per window is active.
		for id, t := range h.tabs {
			if t.WindowID == tab.WindowID && t.Active && id != tab.ID {
				t.Active = false
				h.tabs[id] = t
			}
		}
	}
	h.tabs[tab.ID] = tab
}

// Navigate updates the URL of a known tab, creating it when unknown.
func (h *Hub) Navigate(tabID int, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tabs[tabID]
	if !ok {
		t = browser.TabInfo{ID: tabID, WindowID: browser.WindowNone}
	}
	t.URL = url
	h.tabs[tabID] = t
}

// Activate marks tabID as the active tab of windowID.
func (h *Hub) Activate(tabID, windowID int) {
	h.mu.Lock()
	t, ok := h.tabs[tabID]
	h.mu.Unlock()
	if !ok {
		t = browser.TabInfo{ID: tabID}
	}
	t.WindowID = windowID
	t.Active = true
	h.Observe(t)
}

// Forget drops a closed tab and any actions still queued for it.
func (h *Hub) Forget(tabID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.tabs, tabID)
	kept := h.outbox[:0]
	for _, a := range h.outbox {
		if a.TabID != tabID {
			kept = append(kept, a)
		}
	}
	h.outbox = kept
}

// Focus records the focused window.
func (h *Hub) Focus(windowID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.focused = windowID
}

// Sync replaces the known tabs with a full snapshot from the extension.
func (h *Hub) Sync(tabs []browser.TabInfo, focused int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tabs = make(map[int]browser.TabInfo, len(tabs))
	for _, t := range tabs {
		h.tabs[t.ID] = t
	}
	h.focused = focused
}
