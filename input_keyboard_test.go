package main

import "testing"

func TestKeyboardState_ModifierTracking(t *testing.T) {
	k := NewKeyboardState()
	if k.Shift() || k.Ctrl() || k.Alt() || k.Meta() {
		t.Fatal("new keyboard state should have no modifiers held")
	}

	if !k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: true}) {
		t.Fatal("UpdateModifier should consume a shift key event")
	}
	if !k.Shift() {
		t.Fatal("Shift() should report true after left shift press")
	}

	k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: false})
	if k.Shift() {
		t.Fatal("Shift() should report false after release")
	}
}

func TestKeyboardState_UpdateModifier_IgnoresNonModifier(t *testing.T) {
	k := NewKeyboardState()
	if k.UpdateModifier(KeyEvent{Code: keyEnter, Pressed: true}) {
		t.Fatal("UpdateModifier should not consume a non-modifier key")
	}
}

func TestKeyboardState_CapsLockToggles(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyCapsLock, Pressed: true})
	if !k.capsLock {
		t.Fatal("capsLock should toggle on press")
	}
	k.UpdateModifier(KeyEvent{Code: keyCapsLock, Pressed: false})
	if !k.capsLock {
		t.Fatal("capsLock should not toggle on release")
	}
}

func TestKeyboardState_Translate_NamedKey(t *testing.T) {
	k := NewKeyboardState()
	seq, ok := k.Translate(KeyEvent{Code: keyEnter, Pressed: true})
	if !ok || seq != "\r" {
		t.Fatalf("got (%q,%v), want (\"\\r\",true)", seq, ok)
	}
}

func TestKeyboardState_Translate_CtrlDigit(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftCtrl, Pressed: true})
	// asciiTable only has key1 wired, which maps unshifted to '1'. The
	// control-code mapping applies to letters only, so Ctrl+1 still
	// translates to the single byte '1'.
	seq, ok := k.Translate(KeyEvent{Code: key1, Pressed: true})
	if !ok {
		t.Fatal("expected Translate to report ok=true for a mapped key")
	}
	if len(seq) != 1 {
		t.Fatalf("expected a single translated byte, got %q", seq)
	}
}

func TestKeyboardState_Translate_UnmappedKeyNotOK(t *testing.T) {
	k := NewKeyboardState()
	if _, ok := k.Translate(KeyEvent{Code: 0xFFFF, Pressed: true}); ok {
		t.Fatal("expected ok=false for an unmapped key code")
	}
}

func TestClassifyHotkey_ShiftUpIsLineScroll(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: true})
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyUp, Pressed: true})
	if hk != HotkeyScrollLineUp {
		t.Fatalf("hk = %v, want HotkeyScrollLineUp", hk)
	}
}

func TestClassifyHotkey_MetaUpIsPageScroll(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftMeta, Pressed: true})
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyUp, Pressed: true})
	if hk != HotkeyScrollPageUp {
		t.Fatalf("hk = %v, want HotkeyScrollPageUp", hk)
	}
}

func TestClassifyHotkey_CtrlAltFnSwitchesVT(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftCtrl, Pressed: true})
	k.UpdateModifier(KeyEvent{Code: keyLeftAlt, Pressed: true})
	hk, vt := k.ClassifyHotkey(KeyEvent{Code: keyF2, Pressed: true})
	if hk != HotkeySwitchVT || vt != 1 {
		t.Fatalf("got (%v,%d), want (HotkeySwitchVT,1)", hk, vt)
	}
}

func TestClassifyHotkey_ShiftSwallowsCtrlAltFn(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftCtrl, Pressed: true})
	k.UpdateModifier(KeyEvent{Code: keyLeftAlt, Pressed: true})
	k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: true})
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyF2, Pressed: true})
	if hk != HotkeyNone {
		t.Fatalf("hk = %v, want HotkeyNone when Shift is also held", hk)
	}
}

func TestClassifyHotkey_ReleaseNeverDispatches(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: true})
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyUp, Pressed: false})
	if hk != HotkeyNone {
		t.Fatalf("hk = %v, want HotkeyNone on key release", hk)
	}
}

func TestClassifyHotkey_CtrlShiftMinusIsZoomOut(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftCtrl, Pressed: true})
	k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: true})
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyMinus, Pressed: true})
	if hk != HotkeyZoomOut {
		t.Fatalf("hk = %v, want HotkeyZoomOut", hk)
	}
}

func TestClassifyHotkey_CtrlShiftEqualIsZoomIn(t *testing.T) {
	k := NewKeyboardState()
	k.UpdateModifier(KeyEvent{Code: keyLeftCtrl, Pressed: true})
	k.UpdateModifier(KeyEvent{Code: keyLeftShift, Pressed: true})
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyEqual, Pressed: true})
	if hk != HotkeyZoomIn {
		t.Fatalf("hk = %v, want HotkeyZoomIn", hk)
	}
}

func TestClassifyHotkey_F6WithoutMetaIsBrightnessDown(t *testing.T) {
	k := NewKeyboardState()
	hk, _ := k.ClassifyHotkey(KeyEvent{Code: keyF6, Pressed: true})
	if hk != HotkeyBrightnessDown {
		t.Fatalf("hk = %v, want HotkeyBrightnessDown", hk)
	}
}
