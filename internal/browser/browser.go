// Package browser describes what the engine needs from the browser.
package browser

import "context"

// TabInfo is the browser's view of one tab.
type TabInfo struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
	Active   bool   `json:"active"`
}

// Message is sent to a tab's content script, or received from one.
type Message struct {
	Type    string  `json:"type"`
	Content *string `json:"content"`
}

const (
	MessageTimeLeft = "timeleft"
	MessageOptions  = "options"
	MessageBlocked  = "blocked"
)

// WindowNone is the window ID reported when no browser window has focus.
const WindowNone = -1

// Browser is implemented by the extension bridge. All calls are best
// effort: an error means the browser could not be reached.
type Browser interface {
	QueryTabs(ctx context.Context) ([]TabInfo, error)
	LastFocusedWindow(ctx context.Context) (int, error)
	Redirect(ctx context.Context, tabID int, url string) error
	SendMessage(ctx context.Context, tabID int, msg Message) error
}
