package ipc

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// Connect opens the system or session bus.
func Connect(bus string) (*dbus.Conn, error) {
	switch bus {
	case "system":
		conn, err := dbus.ConnectSystemBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to system bus: %w", err)
		}
		return conn, nil
	case "session":
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
}

// Serve exports tw on bus under ServiceName until ctx is done.
func Serve(ctx context.Context, bus string, tw *TabWarden, logger zerolog.Logger) error {
	conn, err := Connect(bus)
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	if err := conn.Export(tw, dbus.ObjectPath(ObjectPath), InterfaceName); err != nil {
		return fmt.Errorf("failed to export interface: %w", err)
	}

	logger.Info().Str("bus", bus).Str("name", ServiceName).Msg("D-Bus service ready")
	<-ctx.Done()
	return nil
}

// Client calls the exported object from another process.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func Dial(bus string) (*Client, error) {
	conn, err := Connect(bus)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, obj: conn.Object(ServiceName, dbus.ObjectPath(ObjectPath))}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(method string, args ...any) *dbus.Call {
	return c.obj.Call(InterfaceName+"."+method, 0, args...)
}

func (c *Client) GetStatus() (string, error) {
	var result string
	err := c.call("GetStatus").Store(&result)
	return result, err
}

func (c *Client) ListTabs() (string, error) {
	var result string
	err := c.call("ListTabs").Store(&result)
	return result, err
}

func (c *Client) ReloadOptions() error {
	return c.call("ReloadOptions").Store()
}

func (c *Client) UnblockTime(set int) (int64, bool, error) {
	var at int64
	var ok bool
	err := c.call("UnblockTime", int32(set)).Store(&at, &ok)
	return at, ok, err
}

func (c *Client) BlockInfo(url string) (string, error) {
	var result string
	err := c.call("BlockInfo", url).Store(&result)
	return result, err
}

func (c *Client) Lockdown(set int, duration string) (int64, error) {
	var until int64
	err := c.call("Lockdown", int32(set), duration).Store(&until)
	return until, err
}
