// ipc_dbus.go - system-bus transport for the command channel
//
// The other transport variant for spec.md §6's "system-bus object path
// with matching method names". Uses github.com/godbus/dbus/v5, the real
// dependency evidenced by the helixml-helix desktop package in the
// retrieval pack, exported via Conn.Export the same way that package
// drives GNOME's RemoteDesktop/ScreenCast interfaces.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	freconBusName      = "org.chromium.Frecon"
	freconObjectPath   = dbus.ObjectPath("/org/chromium/Frecon")
	freconIface        = "org.chromium.Frecon"
	powerManagerDest   = "org.chromium.PowerManager"
	powerManagerPath   = dbus.ObjectPath("/org/chromium/PowerManager")
	powerManagerIface  = "org.chromium.PowerManager"
	sessionManagerDest = "org.chromium.SessionManager"
	sessionManagerPath = dbus.ObjectPath("/org/chromium/SessionManager")

	dbusCallTimeout = 3 * time.Second // spec.md §5's "3-second reply deadline"
)

// DBusTransport exposes the same verb set as SocketTransport over the
// system bus, and separately emits TakeDisplayOwnership/
// ReleaseDisplayOwnership signals and power-manager brightness calls.
type DBusTransport struct {
	conn    *dbus.Conn
	handler CommandHandler
}

// freconDBusAPI is the object exported at freconObjectPath; each exported
// method matches one command-channel verb (spec.md §6).
type freconDBusAPI struct {
	handler CommandHandler
}

func (a *freconDBusAPI) MakeVT(vt int32) (string, *dbus.Error) {
	res := a.handler(CommandRequest{Verb: "MakeVT", Args: map[string]string{"vt": fmt.Sprint(vt)}})
	if res.Err != nil {
		return "", dbus.MakeFailedError(res.Err)
	}
	return res.Reply, nil
}

func (a *freconDBusAPI) SwitchVT(vt int32) *dbus.Error {
	res := a.handler(CommandRequest{Verb: "SwitchVT", Args: map[string]string{"vt": fmt.Sprint(vt)}})
	if res.Err != nil {
		return dbus.MakeFailedError(res.Err)
	}
	return nil
}

func (a *freconDBusAPI) Terminate() *dbus.Error {
	res := a.handler(CommandRequest{Verb: "Terminate"})
	if res.Err != nil {
		return dbus.MakeFailedError(res.Err)
	}
	return nil
}

func (a *freconDBusAPI) Image(path, location, offset string) *dbus.Error {
	args := map[string]string{"image": path}
	if location != "" {
		args["location"] = location
	}
	if offset != "" {
		args["offset"] = offset
	}
	res := a.handler(CommandRequest{Verb: "Image", Args: args})
	if res.Err != nil {
		return dbus.MakeFailedError(res.Err)
	}
	return nil
}

// NewDBusTransport connects to the system bus, exports the verb set, and
// requests freconBusName.
func NewDBusTransport(handler CommandHandler) (*DBusTransport, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("ipc: system bus connect: %w", err)
	}

	api := &freconDBusAPI{handler: handler}
	if err := conn.Export(api, freconObjectPath, freconIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ipc: export: %w", err)
	}

	reply, err := conn.RequestName(freconBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ipc: request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("ipc: bus name %s already owned", freconBusName)
	}

	return &DBusTransport{conn: conn, handler: handler}, nil
}

// godbus reads its transport socket on an internal worker goroutine and
// dispatches Export'd method calls from there too; that is a property of
// the library, not a goroutine this daemon spawns, so it does not violate
// the single-threaded event loop's own dispatch discipline. Because of
// that, DBusTransport has no Fd() to register in the poll set — incoming
// calls and signals arrive asynchronously and the loop only needs to
// drain the buffered signal channel SubscribeLoginPromptVisible hands
// back, which it does with a non-blocking select each iteration.

// TakeDisplayOwnership tells the graphical session it may resume drawing,
// emitted when switching from a text VT back to VT 0 (spec.md §4.4).
func (t *DBusTransport) TakeDisplayOwnership() error {
	return t.conn.Emit(freconObjectPath, freconIface+".TakeDisplayOwnership")
}

// ReleaseDisplayOwnership tells the graphical session to stop drawing
// because frecon is about to mode-set a text VT.
func (t *DBusTransport) ReleaseDisplayOwnership() error {
	return t.conn.Emit(freconObjectPath, freconIface+".ReleaseDisplayOwnership")
}

// SetBrightness dispatches F6/F7 hotkeys to the power manager, with the
// 3-second reply deadline spec.md §5 requires for power-manager calls.
func (t *DBusTransport) SetBrightness(up bool) error {
	method := powerManagerIface + ".DecreaseScreenBrightness"
	if up {
		method = powerManagerIface + ".IncreaseScreenBrightness"
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbusCallTimeout)
	defer cancel()
	call := t.conn.Object(powerManagerDest, powerManagerPath).CallWithContext(ctx, method, 0)
	return call.Err
}

// SubscribeLoginPromptVisible arms delivery of the session manager's
// "login prompt visible" signal, which destroys the splash terminal (and,
// in daemon-without-VTs mode, ends the process) per spec.md §6.
func (t *DBusTransport) SubscribeLoginPromptVisible() (<-chan *dbus.Signal, error) {
	matchRule := []dbus.MatchOption{
		dbus.WithMatchObjectPath(sessionManagerPath),
		dbus.WithMatchInterface(sessionManagerDest),
		dbus.WithMatchMember("LoginPromptVisible"),
	}
	if err := t.conn.AddMatchSignal(matchRule...); err != nil {
		return nil, err
	}
	ch := make(chan *dbus.Signal, 4)
	t.conn.Signal(ch)
	return ch, nil
}

func (t *DBusTransport) Close() {
	t.conn.Close()
}
