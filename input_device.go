// input_device.go - evdev discovery, exclusive grab, and raw event read
//
// Grounded on original_source/input.c's input_add/input_remove/input_get_event.
// The C daemon multiplexes device fds and a udev notification fd through
// select(2); here every device fd is instead registered directly in the
// single poll(2) set event_loop.go owns, so there is no separate
// input_setfds step.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"
)

// inputDevice is one open, exclusively-grabbed (or best-effort grabbed)
// evdev node.
type inputDevice struct {
	path    string
	file    *os.File
	grabbed bool
}

// InputManager owns the set of open evdev nodes and the shared modifier
// state the keyboard translation table reads.
type InputManager struct {
	devices   []*inputDevice
	kbd       *KeyboardState
	lidClosed bool
}

// NewInputManager enumerates /dev/input/event* and opens+grabs every node
// it can, skipping (without failing) any already grabbed by another
// process — the coexistence rule spec.md §4.5 requires so a graphical
// session with exclusive input doesn't prevent frecon from starting.
func NewInputManager() (*InputManager, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("input manager: glob: %w", err)
	}
	sort.Strings(paths)

	m := &InputManager{kbd: NewKeyboardState()}
	for _, p := range paths {
		dev, err := openInputDevice(p)
		if err != nil {
			logWarning("input: skipping %s: %v", p, err)
			continue
		}
		m.devices = append(m.devices, dev)
		if querySwLid(int(dev.file.Fd())) {
			m.lidClosed = true
		}
	}
	return m, nil
}

// HasDevices reports whether at least one evdev node was opened, used by
// main.go to decide whether the dev/test stdin fallback is needed.
func (m *InputManager) HasDevices() bool { return len(m.devices) > 0 }

// LidClosed reports the last SW_LID state observed across every grabbed
// device, updated both at construction (via EVIOCGSW) and at runtime (via
// EV_SW events seen in ReadReady).
func (m *InputManager) LidClosed() bool { return m.lidClosed }

// openInputDevice opens devname RDONLY and attempts an exclusive grab,
// mirroring input_add: the grab is taken then immediately released as a
// liveness probe in the C version, but frecon actually wants the grab held
// for the device's whole lifetime, so unlike input_add this keeps it.
func openInputDevice(devname string) (*inputDevice, error) {
	f, err := os.OpenFile(devname, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	if err := grabIoctl(int(f.Fd()), 1); err != nil {
		f.Close()
		return nil, fmt.Errorf("grabbed by another process: %w", err)
	}

	return &inputDevice{path: devname, file: f, grabbed: true}, nil
}

func grabIoctl(fd int, val int32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(eviocgrabIoctl), uintptr(unsafe.Pointer(&val)))
	if errno != 0 {
		return errno
	}
	return nil
}

// querySwLid reads a device's current switch-state bitmask via EVIOCGSW
// and reports whether SW_LID is set. Harmless (returns false) on a device
// that doesn't support EV_SW at all.
func querySwLid(fd int) bool {
	var bits [1]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(eviocgswIoctl), uintptr(unsafe.Pointer(&bits[0])))
	if errno != 0 {
		return false
	}
	return bits[0]&(1<<swLid) != 0
}

// probeLidClosed briefly opens every evdev node (without grabbing) and
// queries its switch state via EVIOCGSW, reporting whether any reports
// SW_LID closed. Used for the initial DRM scan, before an InputManager
// exists to track this off the poll loop.
func probeLidClosed() bool {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return false
	}
	for _, p := range paths {
		f, err := os.OpenFile(p, os.O_RDONLY, 0)
		if err != nil {
			continue
		}
		closed := querySwLid(int(f.Fd()))
		f.Close()
		if closed {
			return true
		}
	}
	return false
}

// Ungrab releases every device's exclusive grab, letting a graphical
// session's compositor reclaim input while VT 0 is active (spec.md §5:
// "evdev grabs are held while any text VT is active; released while VT 0
// is active").
func (m *InputManager) Ungrab() {
	for _, d := range m.devices {
		if !d.grabbed {
			continue
		}
		if err := grabIoctl(int(d.file.Fd()), 0); err != nil {
			logWarning("input: ungrab %s: %v", d.path, err)
			continue
		}
		d.grabbed = false
	}
}

// Grab re-acquires an exclusive grab on every device Ungrab released,
// on switching back from VT 0 to a text VT.
func (m *InputManager) Grab() {
	for _, d := range m.devices {
		if d.grabbed {
			continue
		}
		if err := grabIoctl(int(d.file.Fd()), 1); err != nil {
			logWarning("input: grab %s: %v", d.path, err)
			continue
		}
		d.grabbed = true
	}
}

// Fds returns every open device descriptor for registration in the event
// loop's poll set.
func (m *InputManager) Fds() []int {
	fds := make([]int, 0, len(m.devices))
	for _, d := range m.devices {
		fds = append(fds, int(d.file.Fd()))
	}
	return fds
}

// KeyEvent is a translated, ready-to-dispatch key action.
type KeyEvent struct {
	Code    uint16
	Pressed bool
	Repeat  bool
}

// ReadReady drains pending input_event records from the device whose fd
// is fd (as reported by the poll set), returning translated key events.
// Non-EV_KEY events are discarded per spec.md §4.5.
func (m *InputManager) ReadReady(fd int) ([]KeyEvent, error) {
	dev := m.deviceByFd(fd)
	if dev == nil {
		return nil, nil
	}

	var events []KeyEvent
	buf := make([]byte, unsafe.Sizeof(inputEvent{}))
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EAGAIN {
			break
		}
		if err != nil {
			return events, err
		}
		if n < len(buf) {
			break
		}
		ev := (*inputEvent)(unsafe.Pointer(&buf[0]))
		if ev.Type == evSw && ev.Code == swLid {
			m.lidClosed = ev.Value != 0
			continue
		}
		if ev.Type != evKey {
			continue
		}
		events = append(events, KeyEvent{
			Code:    ev.Code,
			Pressed: ev.Value != keyRelease,
			Repeat:  ev.Value == keyRepeat,
		})
	}
	return events, nil
}

func (m *InputManager) deviceByFd(fd int) *inputDevice {
	for _, d := range m.devices {
		if int(d.file.Fd()) == fd {
			return d
		}
	}
	return nil
}

// Close releases every open device (and its grab, implicitly, on close).
func (m *InputManager) Close() {
	for _, d := range m.devices {
		d.file.Close()
	}
	m.devices = nil
}
