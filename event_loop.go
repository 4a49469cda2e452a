// event_loop.go - single-threaded readiness multiplexer, §4.7
//
// Translates the select(2) loop in original_source/main.c/input.c into the
// poll(2) idiom: one []unix.PollFd rebuilt every iteration from the IPC
// transport, every open input device, and every live terminal's PTY
// master. There is no background goroutine anywhere in this file; the
// dbus transport's internal worker goroutine (see ipc_dbus.go) is the one
// exception, and it is library-owned, not daemon-owned.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

// Daemon owns every live component the event loop dispatches against.
type Daemon struct {
	surface *VideoSurface
	device  *DrmDevice

	terminals map[int]*Terminal
	activeVT  int

	input *InputManager
	stdin *StdinFallbackSource // dev/test fallback, set when no evdev node was grabbable

	socket  *SocketTransport
	dbus    *DBusTransport
	loginCh <-chan *dbus.Signal

	splash *SplashPlayer

	preview VideoOutput // dev-preview mirror window, nil unless --dev-preview

	lidClosed bool // last SW_LID state observed, compared each dispatchHotplug call

	cfg *Config

	sigCh chan os.Signal

	exiting bool
}

// NewDaemon wires the components config selected at startup. Callers
// build the DrmDevice/VideoSurface and initial terminal set themselves
// (main.go) since the headless/no-VTs/splash-only paths diverge too much
// to share a single constructor cleanly.
func NewDaemon(cfg *Config, surface *VideoSurface, device *DrmDevice) *Daemon {
	d := &Daemon{
		surface:   surface,
		device:    device,
		terminals: make(map[int]*Terminal),
		cfg:       cfg,
		sigCh:     make(chan os.Signal, 4),
	}
	signal.Notify(d.sigCh, unix.SIGTERM, unix.SIGINT)
	return d
}

// ArmLoginPromptSignal subscribes to the session manager's signal and
// stores the channel for Run to drain non-blockingly each iteration.
func (d *Daemon) ArmLoginPromptSignal() error {
	if d.dbus == nil {
		return nil
	}
	ch, err := d.dbus.SubscribeLoginPromptVisible()
	if err != nil {
		return err
	}
	d.loginCh = ch
	return nil
}

// AddTerminal registers t and, if it is the first terminal added, makes
// it active (vt 0, the splash terminal, per spec.md §4.4's convention).
func (d *Daemon) AddTerminal(t *Terminal) {
	d.terminals[t.vtIndex] = t
	if len(d.terminals) == 1 {
		d.activeVT = t.vtIndex
	}
}

// handleCommand is the CommandHandler both IPC transports dispatch
// through; it runs on the event loop's own goroutine, so it may touch
// Daemon state directly without locking.
func (d *Daemon) handleCommand(req CommandRequest) CommandResult {
	switch req.Verb {
	case "MakeVT":
		return d.cmdMakeVT(req)
	case "SwitchVT":
		return d.cmdSwitchVT(req)
	case "Terminate":
		d.exiting = true
		return CommandResult{}
	case "Image":
		return d.cmdImage(req)
	default:
		return CommandResult{Err: fmt.Errorf("unknown verb %q", req.Verb)}
	}
}

func (d *Daemon) cmdMakeVT(req CommandRequest) CommandResult {
	vt, err := argInt(req, "vt")
	if err != nil || vt < 1 || vt > d.cfg.NumVTs {
		return CommandResult{Err: fmt.Errorf("vt out of range")}
	}
	if t, ok := d.terminals[vt]; ok {
		return CommandResult{Reply: t.pty.slave.Name()}
	}
	t, err := NewTerminal(vt, d.surface, d.cfg.Scale)
	if err != nil {
		return CommandResult{Err: err}
	}
	d.terminals[vt] = t
	return CommandResult{Reply: t.pty.slave.Name()}
}

func (d *Daemon) cmdSwitchVT(req CommandRequest) CommandResult {
	vt, err := argInt(req, "vt")
	if err != nil || vt < 0 || vt > d.cfg.NumVTs {
		return CommandResult{Err: fmt.Errorf("vt out of range")}
	}
	d.switchTo(vt)
	return CommandResult{}
}

func (d *Daemon) cmdImage(req CommandRequest) CommandResult {
	path, ok := req.Args["image"]
	if !ok {
		return CommandResult{Err: fmt.Errorf("missing image argument")}
	}
	offX, offY, _, err := argXY(req, "offset")
	if err != nil {
		return CommandResult{Err: err}
	}
	// location and offset are mutually exclusive (spec.md §6: "if both
	// location and offset are given, offset is ignored"), so a present
	// location always wins.
	if locX, locY, hasLoc, lerr := argXY(req, "location"); lerr == nil && hasLoc {
		offX, offY = locX, locY
	}
	if d.splash != nil && d.splash.program != nil {
		d.splash.program.AddFrame(SplashFrame{Path: path, OffsetX: offX, OffsetY: offY})
	}
	return CommandResult{}
}

// switchTo deactivates the currently active terminal (re-grabbing or
// releasing evdev ownership and DRM master as appropriate, spec.md §5's
// shared-resource rules) and activates vt. vt 0 hands ownership back to
// the graphical session: release the evdev grabs, drop DRM master, and
// write the best-effort drm_master_relax debugfs toggle so the session's
// compositor can reclaim it. Switching to a text VT re-grabs input and
// re-takes DRM master.
func (d *Daemon) switchTo(vt int) {
	if vt == d.activeVT {
		return
	}
	if cur, ok := d.terminals[d.activeVT]; ok {
		cur.Deactivate()
	}
	d.activeVT = vt
	if vt == 0 {
		if d.dbus != nil {
			_ = d.dbus.TakeDisplayOwnership()
		}
		if d.input != nil {
			d.input.Ungrab()
		}
		if d.device != nil {
			if err := drmDropMaster(d.device.file); err != nil {
				logWarning("drm: drop master on switch to vt0: %v", err)
			}
		}
		RelaxDrmMaster()
		return
	}
	if d.dbus != nil {
		_ = d.dbus.ReleaseDisplayOwnership()
	}
	if d.device != nil {
		if err := drmSetMaster(d.device.file); err != nil {
			logWarning("drm: set master on switch to vt%d: %v", vt, err)
		}
	}
	if d.input != nil {
		d.input.Grab()
	}
	if t, ok := d.terminals[vt]; ok {
		_ = t.Activate()
	}
}

// Run drives the loop until a Terminate command, a fatal exception on the
// active terminal, or a termination signal. Dispatch order exactly
// matches spec.md §4.7: IPC, exception-check the active terminal,
// hotplug, input, then each terminal's PTY.
func (d *Daemon) Run() error {
	for !d.exiting {
		timeout := d.pollTimeout()

		fds, index := d.buildPollSet()
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if err != nil && err != unix.EINTR {
			return fmt.Errorf("event loop: poll: %w", err)
		}

		select {
		case <-d.sigCh:
			d.exiting = true
			continue
		default:
		}

		if d.loginCh != nil {
			select {
			case <-d.loginCh:
				d.onLoginPromptVisible()
			default:
			}
		}

		if n <= 0 {
			d.stepSplash()
			continue
		}

		d.dispatchIPC(fds, index)
		if d.exiting {
			break
		}
		if d.checkActiveException(fds, index) {
			return fmt.Errorf("event loop: active terminal fatal exception")
		}
		d.dispatchHotplug()
		d.dispatchInput(fds, index)
		d.dispatchPTYs(fds, index)

		d.stepSplash()
		d.pushPreviewFrame()

		if active, ok := d.terminals[d.activeVT]; ok && active.vtIndex != 0 && active.PollChildDone() {
			if err := active.Respawn(); err != nil {
				logWarning("event loop: respawn vt%d: %v", active.vtIndex, err)
			}
		}
	}
	return nil
}

// pollFdKind tags each entry in the poll set so dispatch can route a
// ready fd back to the right subsystem without a second fd->owner scan.
type pollFdKind int

const (
	kindIPCListener pollFdKind = iota
	kindIPCConn
	kindInput
	kindStdin
	kindPTY
)

type pollFdIndex struct {
	kind pollFdKind
	vt   int // meaningful only for kindPTY
}

func (d *Daemon) buildPollSet() ([]unix.PollFd, []pollFdIndex) {
	var fds []unix.PollFd
	var index []pollFdIndex

	if d.socket != nil {
		if fd, ok := d.socket.ListenerFd(); ok {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			index = append(index, pollFdIndex{kind: kindIPCListener})
		}
		if fd, ok := d.socket.ConnFd(); ok {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			index = append(index, pollFdIndex{kind: kindIPCConn})
		}
	}

	if d.input != nil {
		for _, fd := range d.input.Fds() {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			index = append(index, pollFdIndex{kind: kindInput})
		}
	}

	if d.stdin != nil {
		fds = append(fds, unix.PollFd{Fd: int32(d.stdin.Fd()), Events: unix.POLLIN})
		index = append(index, pollFdIndex{kind: kindStdin})
	}

	for vt, t := range d.terminals {
		fds = append(fds, unix.PollFd{Fd: int32(t.Fd()), Events: unix.POLLIN})
		index = append(index, pollFdIndex{kind: kindPTY, vt: vt})
	}

	return fds, index
}

func (d *Daemon) dispatchIPC(fds []unix.PollFd, index []pollFdIndex) {
	if d.socket == nil {
		return
	}
	for i, pf := range fds {
		if pf.Revents&unix.POLLIN == 0 {
			continue
		}
		switch index[i].kind {
		case kindIPCListener:
			if err := d.socket.AcceptOne(); err != nil {
				logWarning("ipc: accept: %v", err)
			}
		case kindIPCConn:
			d.socket.ReadCommand()
		}
	}
}

// checkActiveException reports whether the active terminal's PTY raised a
// genuine error condition. POLLHUP is deliberately excluded: a PTY master
// also reports it on ordinary child exit, which the respawn path at the
// bottom of Run handles, and treating it as fatal here would crash the
// daemon on every shell exit instead of respawning it.
func (d *Daemon) checkActiveException(fds []unix.PollFd, index []pollFdIndex) bool {
	for i, pf := range fds {
		if index[i].kind != kindPTY || index[i].vt != d.activeVT {
			continue
		}
		if pf.Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return true
		}
	}
	return false
}

// dispatchHotplug re-scans DRM connectors once per iteration's hotplug
// slot, but only when the lid switch changed state since the last
// iteration. A full uevent-driven hotplug source is out of scope for this
// retrieval pack (no netlink library appears anywhere in it), but spec.md
// §4.5's SW_LID trigger needs no such library: InputManager already reads
// EV_SW off the same evdev fds the event loop polls for keys, so the lid
// bit comes along for free.
func (d *Daemon) dispatchHotplug() {
	if d.input == nil {
		return
	}
	lidClosed := d.input.LidClosed()
	if lidClosed == d.lidClosed {
		return
	}
	d.lidClosed = lidClosed

	next, result, err := drmRescan(d.device, lidClosed)
	if err != nil {
		logWarning("drm: rescan: %v", err)
		return
	}
	d.device = next
	if result != rescanChanged {
		return
	}
	if next == nil {
		logWarning("drm: rescan found no usable device after lid change")
		return
	}

	surf, err := newVideoSurface(next)
	if err != nil {
		logWarning("drm: rescan: new surface: %v", err)
		return
	}
	if err := next.setMode(surf); err != nil {
		logWarning("drm: rescan: mode-set: %v", err)
		return
	}
	if d.surface != nil {
		d.surface.destroy()
	}
	d.surface = surf
	for _, t := range d.terminals {
		t.surface = surf
		if err := t.Resize(); err != nil {
			logWarning("terminal vt%d: resize after rescan: %v", t.vtIndex, err)
			continue
		}
		if t.IsActive() {
			t.Render(true)
		}
	}
}

func (d *Daemon) dispatchInput(fds []unix.PollFd, index []pollFdIndex) {
	for i, pf := range fds {
		if pf.Revents&unix.POLLIN == 0 {
			continue
		}
		switch index[i].kind {
		case kindInput:
			events, err := d.input.ReadReady(int(pf.Fd))
			if err != nil {
				logWarning("input: read: %v", err)
				continue
			}
			for _, ev := range events {
				d.handleKeyEvent(ev)
			}
		case kindStdin:
			d.dispatchStdin()
		}
	}
}

// dispatchStdin drains the dev/test stdin fallback and writes each byte
// straight to the active terminal's PTY, bypassing the evdev keysym
// translation path entirely since stdin already delivers final bytes.
func (d *Daemon) dispatchStdin() {
	active, ok := d.terminals[d.activeVT]
	if !ok || !active.IsActive() {
		_ = d.stdin.Drain(func(byte) {})
		return
	}
	if err := d.stdin.Drain(func(b byte) {
		if err := active.FeedKey([]byte{b}); err != nil {
			logWarning("terminal vt%d: write stdin byte: %v", active.vtIndex, err)
		}
	}); err != nil {
		logWarning("stdin fallback: drain: %v", err)
	}
}

func (d *Daemon) handleKeyEvent(ev KeyEvent) {
	kbd := d.input.kbd
	if kbd.UpdateModifier(ev) {
		return
	}

	if hk, vt := kbd.ClassifyHotkey(ev); hk != HotkeyNone {
		d.dispatchHotkey(hk, vt)
		return
	}

	if !ev.Pressed {
		return
	}
	active, ok := d.terminals[d.activeVT]
	if !ok || !active.IsActive() {
		return
	}
	seq, ok := kbd.Translate(ev)
	if !ok {
		return
	}
	if err := active.FeedKey([]byte(seq)); err != nil {
		logWarning("terminal vt%d: write key: %v", active.vtIndex, err)
	}
}

func (d *Daemon) dispatchHotkey(hk Hotkey, vtTarget int) {
	switch hk {
	case HotkeySwitchVT:
		d.switchTo(vtTarget)
	case HotkeyBrightnessDown:
		if d.dbus != nil {
			_ = d.dbus.SetBrightness(false)
		}
	case HotkeyBrightnessUp:
		if d.dbus != nil {
			_ = d.dbus.SetBrightness(true)
		}
	case HotkeyZoomIn:
		d.zoomActive(1)
	case HotkeyZoomOut:
		d.zoomActive(-1)
	case HotkeyScrollLineUp:
		d.scrollActive(1, true)
	case HotkeyScrollLineDown:
		d.scrollActive(1, false)
	case HotkeyScrollPageUp:
		d.scrollActive(0, true)
	case HotkeyScrollPageDown:
		d.scrollActive(0, false)
	}
}

// scrollActive pages the active terminal's scrollback view. lines is the
// line count for a line-scroll; for a page-scroll (lines == 0) it resolves
// to the terminal's own page size.
func (d *Daemon) scrollActive(lines int, up bool) {
	t, ok := d.terminals[d.activeVT]
	if !ok {
		return
	}
	if lines == 0 {
		lines = t.scrollPageLines()
	}
	if up {
		t.ScrollUp(lines)
	} else {
		t.ScrollDown(lines)
	}
}

func (d *Daemon) zoomActive(delta int) {
	t, ok := d.terminals[d.activeVT]
	if !ok {
		return
	}
	if err := t.Zoom(delta); err != nil {
		logWarning("terminal vt%d: zoom: %v", t.vtIndex, err)
	}
}

func (d *Daemon) dispatchPTYs(fds []unix.PollFd, index []pollFdIndex) {
	buf := make([]byte, 4096)
	for i, pf := range fds {
		if index[i].kind != kindPTY || pf.Revents&unix.POLLIN == 0 {
			continue
		}
		t, ok := d.terminals[index[i].vt]
		if !ok {
			continue
		}
		n, err := t.pty.Read(buf)
		if err != nil {
			continue
		}
		if err := t.FeedPTYOutput(buf[:n]); err != nil {
			logWarning("terminal vt%d: feed: %v", t.vtIndex, err)
			continue
		}
		t.Render(false)
	}
}

// stepSplash advances the splash program, if one is configured, and in
// --splash-only mode ends the loop once playback has finished.
func (d *Daemon) stepSplash() {
	if d.splash == nil {
		return
	}
	_, done := d.splash.Step(time.Now())
	if done && d.cfg.SplashOnly {
		d.exiting = true
	}
}

// pollTimeout returns poll(2)'s wait duration for the current iteration.
// Splash playback wants frequent wakeups to pace itself (stepSplash calls
// Step exactly once per iteration, after dispatch); once it's done, a
// coarser wait still keeps signals and respawns observed promptly without
// spinning.
func (d *Daemon) pollTimeout() time.Duration {
	if d.splash != nil && !d.splash.done {
		return 10 * time.Millisecond
	}
	return 250 * time.Millisecond
}

// onLoginPromptVisible destroys the splash terminal and, in
// daemon-without-VTs mode, ends the process, per spec.md §6.
func (d *Daemon) onLoginPromptVisible() {
	if t, ok := d.terminals[0]; ok {
		_ = t.Close()
		delete(d.terminals, 0)
	}
	d.splash = nil
	if d.cfg.NumVTs == 0 {
		d.exiting = true
	}
}

// pushPreviewFrame mirrors the current surface contents into the
// dev-preview window, when one is running. This is instrumentation only:
// the real console output always goes through DRM (or is discarded, in
// plain headless mode with no --dev-preview).
func (d *Daemon) pushPreviewFrame() {
	if d.preview == nil {
		return
	}
	buf, err := d.surface.lock()
	if err != nil {
		return
	}
	_ = d.preview.UpdateFrame(buf)
	d.surface.unlock()
}

// Close tears down every owned component in reverse dependency order.
func (d *Daemon) Close() {
	for _, t := range d.terminals {
		_ = t.Close()
	}
	if d.input != nil {
		d.input.Close()
	}
	if d.stdin != nil {
		d.stdin.Stop()
	}
	if d.socket != nil {
		d.socket.Close()
	}
	if d.dbus != nil {
		d.dbus.Close()
	}
	if d.preview != nil {
		_ = d.preview.Close()
	}
	if d.surface != nil {
		d.surface.destroy()
	}
}
