package main

import "testing"

func newTestDaemon() *Daemon {
	return &Daemon{
		terminals: make(map[int]*Terminal),
		cfg:       &Config{NumVTs: 2},
	}
}

func TestHandleCommand_UnknownVerb(t *testing.T) {
	d := newTestDaemon()
	res := d.handleCommand(CommandRequest{Verb: "Bogus"})
	if res.Err == nil {
		t.Fatal("expected error for unknown verb")
	}
}

func TestHandleCommand_Terminate_SetsExiting(t *testing.T) {
	d := newTestDaemon()
	res := d.handleCommand(CommandRequest{Verb: "Terminate"})
	if res.Err != nil {
		t.Fatalf("Terminate returned error: %v", res.Err)
	}
	if !d.exiting {
		t.Fatal("Terminate should set d.exiting")
	}
}

func TestCmdSwitchVT_RejectsOutOfRange(t *testing.T) {
	d := newTestDaemon()
	res := d.cmdSwitchVT(CommandRequest{Verb: "SwitchVT", Args: map[string]string{"vt": "9"}})
	if res.Err == nil {
		t.Fatal("expected error for vt out of [0,NumVTs] range")
	}
}

func TestCmdSwitchVT_RejectsMissingArg(t *testing.T) {
	d := newTestDaemon()
	res := d.cmdSwitchVT(CommandRequest{Verb: "SwitchVT"})
	if res.Err == nil {
		t.Fatal("expected error for missing vt argument")
	}
}

func TestCmdMakeVT_RejectsOutOfRange(t *testing.T) {
	d := newTestDaemon()
	res := d.cmdMakeVT(CommandRequest{Verb: "MakeVT", Args: map[string]string{"vt": "0"}})
	if res.Err == nil {
		t.Fatal("expected error for vt 0, which is reserved for the splash terminal")
	}
}

func TestSwitchTo_NoOpWhenAlreadyActive(t *testing.T) {
	d := newTestDaemon()
	d.activeVT = 1
	d.switchTo(1) // must not panic despite no terminals/dbus/surface configured
	if d.activeVT != 1 {
		t.Fatalf("activeVT = %d, want 1", d.activeVT)
	}
}

func TestBuildPollSet_EmptyDaemonHasNoFds(t *testing.T) {
	d := newTestDaemon()
	fds, index := d.buildPollSet()
	if len(fds) != 0 || len(index) != 0 {
		t.Fatalf("expected no poll entries for an empty daemon, got %d", len(fds))
	}
}

func TestDispatchHotkey_SwitchVTCallsSwitchTo(t *testing.T) {
	d := newTestDaemon()
	d.activeVT = 1
	d.dispatchHotkey(HotkeySwitchVT, 1)
	if d.activeVT != 1 {
		t.Fatalf("activeVT = %d, want 1 (no-op switch to the already-active vt)", d.activeVT)
	}
}

func TestZoomActive_NoActiveTerminalIsNoOp(t *testing.T) {
	d := newTestDaemon()
	d.activeVT = 5 // no terminal registered at this index
	d.zoomActive(1) // must not panic
}

func TestDispatchHotkey_ZoomInWithNoActiveTerminalIsNoOp(t *testing.T) {
	d := newTestDaemon()
	d.dispatchHotkey(HotkeyZoomIn, 0) // must not panic despite no terminals
}

func TestSwitchTo_ToVTZeroIsSafeWithoutDevice(t *testing.T) {
	d := newTestDaemon()
	d.activeVT = 1
	d.switchTo(0) // must not panic despite nil device/input/dbus
	if d.activeVT != 0 {
		t.Fatalf("activeVT = %d, want 0", d.activeVT)
	}
}

func TestSwitchTo_ToNonZeroVTIsSafeWithoutDevice(t *testing.T) {
	d := newTestDaemon()
	d.activeVT = 0
	d.switchTo(2) // must not panic despite nil device/input/dbus and no vt2 terminal
	if d.activeVT != 2 {
		t.Fatalf("activeVT = %d, want 2", d.activeVT)
	}
}

func TestDispatchHotplug_NoInputManagerIsNoOp(t *testing.T) {
	d := newTestDaemon()
	d.dispatchHotplug() // must not panic despite d.input == nil
}

func TestScrollActive_NoActiveTerminalIsNoOp(t *testing.T) {
	d := newTestDaemon()
	d.activeVT = 5 // no terminal registered at this index
	d.scrollActive(1, true)
	d.scrollActive(0, false)
}

func TestDispatchHotkey_ScrollWithNoActiveTerminalIsNoOp(t *testing.T) {
	d := newTestDaemon()
	d.dispatchHotkey(HotkeyScrollPageUp, 0) // must not panic despite no terminals
	d.dispatchHotkey(HotkeyScrollLineDown, 0)
}

func TestPollTimeout_NoSplashUsesCoarseWait(t *testing.T) {
	d := newTestDaemon()
	if got := d.pollTimeout(); got <= 0 {
		t.Fatalf("pollTimeout() = %v, want a positive coarse wait", got)
	}
}
