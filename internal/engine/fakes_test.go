package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SoarinFerret/TabWarden/internal/browser"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	tabID int
	msg   browser.Message
}

type fakeBrowser struct {
	mu        sync.Mutex
	tabs      []browser.TabInfo
	focused   int
	redirects map[int]string
	messages  []sentMessage
	offline   bool
}

func newFakeBrowser(tabs ...browser.TabInfo) *fakeBrowser {
	return &fakeBrowser{tabs: tabs, focused: 1, redirects: make(map[int]string)}
}

var errOffline = errors.New("browser offline")

func (b *fakeBrowser) QueryTabs(ctx context.Context) ([]browser.TabInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return nil, errOffline
	}
	return append([]browser.TabInfo(nil), b.tabs...), nil
}

func (b *fakeBrowser) LastFocusedWindow(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return 0, errOffline
	}
	return b.focused, nil
}

func (b *fakeBrowser) Redirect(ctx context.Context, tabID int, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.redirects[tabID] = url
	for i := range b.tabs {
		if b.tabs[i].ID == tabID {
			b.tabs[i].URL = url
		}
	}
	return nil
}

func (b *fakeBrowser) SendMessage(ctx context.Context, tabID int, msg browser.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, sentMessage{tabID, msg})
	return nil
}

func (b *fakeBrowser) redirect(tabID int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url, ok := b.redirects[tabID]
	return url, ok
}

// lastTimeLeft returns the content of the last widget message sent to tabID.
func (b *fakeBrowser) lastTimeLeft(tabID int) (*string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.messages) - 1; i >= 0; i-- {
		m := b.messages[i]
		if m.tabID == tabID && m.msg.Type == browser.MessageTimeLeft {
			return m.msg.Content, true
		}
	}
	return nil, false
}

func (b *fakeBrowser) setURL(tabID int, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tabs {
		if b.tabs[i].ID == tabID {
			b.tabs[i].URL = url
		}
	}
}

func (b *fakeBrowser) setOffline(offline bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = offline
}
