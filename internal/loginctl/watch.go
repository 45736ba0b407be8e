package loginctl

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// Listener is told when the machine sleeps or a watched session locks.
type Listener interface {
	HandleSleep(ctx context.Context) error
	HandleWake(ctx context.Context) error
	HandleLock(ctx context.Context) error
	HandleUnlock(ctx context.Context) error
}

// Watch follows logind on the system bus until ctx is done. Lock changes
// are only reported for user sessions owned by username, or for every user
// session when username is empty.
func Watch(ctx context.Context, l Listener, username string, logger zerolog.Logger) error {
	log := logger.With().Str("component", "loginctl").Logger()

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return fmt.Errorf("add match failed: %w", err)
	}

	// watch for property changes (session locked)
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("add match for PropertiesChanged failed: %w", err)
	}

	c := make(chan *dbus.Signal, 10)
	conn.Signal(c)
	defer conn.RemoveSignal(c)

	for {
		select {
		case sig := <-c:
			ev, ok := classify(sig)
			if !ok {
				break
			}
			if ev == eventLock || ev == eventUnlock {
				if !watched(conn, sig.Path, username, log) {
					break
				}
			}
			log.Info().Str("event", ev.String()).Msg("logind event")
			if err := dispatch(ctx, l, ev); err != nil {
				log.Warn().Err(err).Str("event", ev.String()).Msg("listener failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

type event int

const (
	eventSleep event = iota
	eventWake
	eventLock
	eventUnlock
)

func (e event) String() string {
	switch e {
	case eventSleep:
		return "sleep"
	case eventWake:
		return "wake"
	case eventLock:
		return "lock"
	default:
		return "unlock"
	}
}

// classify maps a logind signal to an event.
func classify(sig *dbus.Signal) (event, bool) {
	switch sig.Name {
	case "org.freedesktop.login1.Manager.PrepareForSleep":
		if len(sig.Body) == 0 {
			return 0, false
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			return 0, false
		}
		if sleeping {
			return eventSleep, true
		}
		return eventWake, true

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 3 {
			return 0, false
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != "org.freedesktop.login1.Session" {
			return 0, false
		}
		changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return 0, false
		}
		val, exists := changedProps["LockedHint"]
		if !exists {
			return 0, false
		}
		locked, ok := val.Value().(bool)
		if !ok {
			return 0, false
		}
		if locked {
			return eventLock, true
		}
		return eventUnlock, true
	}
	return 0, false
}

func dispatch(ctx context.Context, l Listener, ev event) error {
	switch ev {
	case eventSleep:
		return l.HandleSleep(ctx)
	case eventWake:
		return l.HandleWake(ctx)
	case eventLock:
		return l.HandleLock(ctx)
	default:
		return l.HandleUnlock(ctx)
	}
}

// watched reports whether the session at path is a user session of username.
func watched(conn *dbus.Conn, path dbus.ObjectPath, username string, log zerolog.Logger) bool {
	class, err := getSessionClass(conn, path)
	if err != nil {
		log.Debug().Err(err).Str("session", string(path)).Msg("failed to get session class")
		return false
	}
	if class != "user" {
		return false
	}
	if username == "" {
		return true
	}
	owner, err := getUsernameFromSession(conn, path)
	if err != nil {
		log.Debug().Err(err).Str("session", string(path)).Msg("failed to get username")
		return false
	}
	return owner == username
}

func getUsernameFromSession(conn *dbus.Conn, sessionPath dbus.ObjectPath) (string, error) {
	sessionObj := conn.Object("org.freedesktop.login1", sessionPath)

	var userInfo []interface{}
	err := sessionObj.Call("org.freedesktop.DBus.Properties.Get", 0,
		"org.freedesktop.login1.Session", "User").Store(&userInfo)
	if err != nil || len(userInfo) < 2 {
		return "", fmt.Errorf("failed to get user info: %w", err)
	}
	userPath, ok := userInfo[1].(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("failed to get user object path")
	}
	userObj := conn.Object("org.freedesktop.login1", userPath)
	var username dbus.Variant
	err = userObj.Call("org.freedesktop.DBus.Properties.Get", 0,
		"org.freedesktop.login1.User", "Name").Store(&username)
	if err != nil {
		return "", fmt.Errorf("failed to get username: %w", err)
	}
	name, ok := username.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected type for user name")
	}
	return name, nil
}

func getSessionClass(conn *dbus.Conn, sessionPath dbus.ObjectPath) (string, error) {
	obj := conn.Object("org.freedesktop.login1", sessionPath)
	var class dbus.Variant
	err := obj.Call("org.freedesktop.DBus.Properties.Get", 0,
		"org.freedesktop.login1.Session", "Class").Store(&class)
	if err != nil {
		return "", err
	}
	if v, ok := class.Value().(string); ok {
		return v, nil
	}
	return "", fmt.Errorf("unexpected type for session class")
}
