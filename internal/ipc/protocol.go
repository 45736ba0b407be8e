package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/SoarinFerret/TabWarden/internal/engine"
	"github.com/SoarinFerret/TabWarden/internal/state"
)

const (
	ObjectPath    = "/io/github/soarinferret/tabwarden"
	InterfaceName = "io.github.soarinferret.tabwarden.Manager"
	ServiceName   = "io.github.soarinferret.tabwarden"
)

// Controller is the engine surface exposed on the bus.
type Controller interface {
	Status(ctx context.Context) (engine.Status, error)
	Tabs(ctx context.Context) ([]state.TabView, error)
	ReloadOptions(ctx context.Context) error
	UnblockTime(ctx context.Context, set int) (time.Time, bool, error)
	BlockInfo(ctx context.Context, url string) (engine.BlockInfo, error)
	Lockdown(ctx context.Context, set int, d time.Duration) (time.Time, error)
}

// TabWarden is the exported D-Bus object. Structured replies are JSON
// strings.
type TabWarden struct {
	Engine  Controller
	Timeout time.Duration
}

func (t *TabWarden) context() (context.Context, context.CancelFunc) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func encode(v any) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

func (t *TabWarden) GetStatus() (string, *dbus.Error) {
	ctx, cancel := t.context()
	defer cancel()

	status, err := t.Engine.Status(ctx)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return encode(status)
}

func (t *TabWarden) ListTabs() (string, *dbus.Error) {
	ctx, cancel := t.context()
	defer cancel()

	tabs, err := t.Engine.Tabs(ctx)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	if tabs == nil {
		tabs = []state.TabView{}
	}
	return encode(tabs)
}

func (t *TabWarden) ReloadOptions() *dbus.Error {
	ctx, cancel := t.context()
	defer cancel()

	if err := t.Engine.ReloadOptions(ctx); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// UnblockTime returns the Unix time set stops blocking, and false when it
// is not blocking or never unblocks.
func (t *TabWarden) UnblockTime(set int32) (int64, bool, *dbus.Error) {
	ctx, cancel := t.context()
	defer cancel()

	at, ok, err := t.Engine.UnblockTime(ctx, int(set))
	if err != nil {
		return 0, false, dbus.MakeFailedError(err)
	}
	if !ok {
		return 0, false, nil
	}
	return at.Unix(), true, nil
}

func (t *TabWarden) BlockInfo(url string) (string, *dbus.Error) {
	ctx, cancel := t.context()
	defer cancel()

	info, err := t.Engine.BlockInfo(ctx, url)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return encode(info)
}

// Lockdown blocks set for duration (a Go duration string such as "2h30m")
// and returns when the lockdown ends.
func (t *TabWarden) Lockdown(set int32, duration string) (int64, *dbus.Error) {
	d, err := time.ParseDuration(duration)
	if err != nil {
		return 0, dbus.MakeFailedError(fmt.Errorf("invalid duration %q: %w", duration, err))
	}

	ctx, cancel := t.context()
	defer cancel()

	until, err := t.Engine.Lockdown(ctx, int(set), d)
	if err != nil {
		return 0, dbus.MakeFailedError(err)
	}
	return until.Unix(), nil
}
