package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/SoarinFerret/TabWarden/internal/blockset"
	"github.com/SoarinFerret/TabWarden/internal/browser"
)

// Status values reported with a tab-updated event.
const (
	StatusLoading  = "loading"
	StatusComplete = "complete"
)

// HandleBeforeNavigate is called before a tab starts loading url. Only
// top-level frames (frameID 0) are checked.
func (e *Engine) HandleBeforeNavigate(ctx context.Context, tabID, frameID int, url string) error {
	if frameID != 0 {
		return nil
	}
	return e.Do(ctx, func(ctx context.Context) {
		e.tabs.Clock(tabID, false, false, e.now(), e)
		e.checkTab(ctx, tabID, url, false)
	})
}

// HandleTabUpdated starts the tab's clocks once its page has loaded.
func (e *Engine) HandleTabUpdated(ctx context.Context, tab browser.TabInfo, status string) error {
	if status != StatusComplete {
		return nil
	}
	return e.Do(ctx, func(ctx context.Context) {
		if _, ok := e.tabs.Get(tab.ID); !ok {
			// Pages loaded before the daemon started were never navigated.
			if e.checkTab(ctx, tab.ID, tab.URL, false) {
				return
			}
		}
		if !e.paused() {
			focus := tab.Active && tab.WindowID == e.focusedWindow
			e.tabs.Clock(tab.ID, true, focus, e.now(), e)
		}
		if tab.Active {
			e.updateTimeLeftWidget(ctx, tab.ID)
		}
	})
}

// HandleTabActivated starts the focus clock of the newly active tab.
func (e *Engine) HandleTabActivated(ctx context.Context, tabID, windowID int) error {
	return e.Do(ctx, func(ctx context.Context) {
		if !e.paused() {
			e.tabs.Clock(tabID, true, windowID == e.focusedWindow, e.now(), e)
		}
		e.updateTimeLeftWidget(ctx, tabID)
	})
}

// HandleTabRemoved flushes the tab's time and forgets it.
func (e *Engine) HandleTabRemoved(ctx context.Context, tabID int) error {
	return e.Do(ctx, func(ctx context.Context) {
		e.tabs.Remove(tabID, e.now(), e)
	})
}

// HandleWindowFocused records the focused window. The next tick moves the
// focus clocks over.
func (e *Engine) HandleWindowFocused(ctx context.Context, windowID int) error {
	return e.Do(ctx, func(ctx context.Context) {
		e.focusedWindow = windowID
	})
}

// HandleMessage answers a message from a content script or the block page.
// A "blocked" message returns the BlockInfo for senderURL.
func (e *Engine) HandleMessage(ctx context.Context, tabID int, senderURL string, msg browser.Message) (any, error) {
	var reply any
	var err error
	doErr := e.Do(ctx, func(ctx context.Context) {
		switch msg.Type {
		case browser.MessageOptions:
			e.reload(ctx)
		case browser.MessageBlocked:
			var info BlockInfo
			info, err = e.blockInfo(senderURL)
			reply = info
		default:
			err = fmt.Errorf("unknown message type %q", msg.Type)
		}
	})
	if doErr != nil {
		return nil, doErr
	}
	return reply, err
}

// ReloadOptions schedules an option reload.
func (e *Engine) ReloadOptions(ctx context.Context) error {
	return e.Do(ctx, e.reload)
}

// HandleSleep stops every clock; nothing accrues until HandleWake.
func (e *Engine) HandleSleep(ctx context.Context) error {
	return e.Do(ctx, func(ctx context.Context) {
		e.sleeping = true
		e.tabs.StopAll(e.now(), e)
		e.log.Info().Msg("system sleeping, clocks stopped")
	})
}

// HandleWake lets the next tick restart the clocks.
func (e *Engine) HandleWake(ctx context.Context) error {
	return e.Do(ctx, func(ctx context.Context) {
		e.sleeping = false
		e.log.Info().Msg("system awake")
	})
}

// HandleLock stops every clock while the session is locked.
func (e *Engine) HandleLock(ctx context.Context) error {
	return e.Do(ctx, func(ctx context.Context) {
		e.locked = true
		e.tabs.StopAll(e.now(), e)
		e.log.Info().Msg("session locked, clocks stopped")
	})
}

// HandleUnlock lets the next tick restart the clocks.
func (e *Engine) HandleUnlock(ctx context.Context) error {
	return e.Do(ctx, func(ctx context.Context) {
		e.locked = false
		e.log.Info().Msg("session unlocked")
	})
}

// handleAlarm is the periodic tick: refresh focus, re-evaluate every tab
// and persist the counters.
func (e *Engine) handleAlarm(ctx context.Context) {
	if e.opts == nil {
		return
	}

	if id, err := e.browser.LastFocusedWindow(ctx); err != nil {
		e.log.Debug().Err(err).Msg("failed to get focused window")
	} else {
		e.focusedWindow = id
	}

	e.processTabs(ctx)
	e.save(ctx)
}

// blockInfo describes the block page at url for display.
func (e *Engine) blockInfo(url string) (BlockInfo, error) {
	parsed, ok := blockset.ParseBlockPage(url)
	if !ok {
		return BlockInfo{}, fmt.Errorf("not a block page: %s", url)
	}

	info := BlockInfo{BlockedSet: parsed.Set, BlockedURL: parsed.BlockedURL}
	n, err := strconv.Atoi(parsed.Set)
	if err != nil {
		return info, nil
	}
	set, ok := e.opts.Set(n)
	if !ok {
		return info, nil
	}
	info.BlockedSetName = set.Name

	now := e.now()
	if at, ok := e.unblockTime(n, now); ok {
		info.UnblockTime = formatUnblockTime(at, now)
	}
	return info, nil
}
