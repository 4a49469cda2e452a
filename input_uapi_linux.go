// input_uapi_linux.go - evdev wire struct and ioctl encodings
//
// Struct layout and ioctl numbering grounded on the retrieved
// andrieee44/mylib/linux/input uapi definitions (other_examples), adapted
// to this package's own raw-ioctl style (drm_ioctl.go's hardcoded
// _IO/_IOR/_IOW encodings rather than importing mylib's ioctl helper,
// since only the single uapi file was retrieved, not the ioctl package it
// depends on).
package main

// evdev ioctl numbers, Linux x86_64/arm64 encoding (type 'E' = 0x45):
//
//	_IOW('E', 0x90, int) = 0x40000000 | (4<<16) | (0x45<<8) | 0x90
const (
	eviocgrabIoctl = 0x40044590 // EVIOCGRAB: grab(1)/release(0) exclusive access

	// EVIOCGSW(len), len=1: _IOR('E', 0x1b, 1) = 0x80000000 | (1<<16) | (0x45<<8) | 0x1b
	eviocgswIoctl = 0x8001451b
)

// inputEvent mirrors struct input_event's wire layout on 64-bit Linux
// (16-byte timeval pair, padded to match the kernel ABI).
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Event types relevant to a text console (pointer/multitouch axes are
// ignored per spec.md §4.5).
const (
	evSyn = 0x00
	evKey = 0x01
	evSw  = 0x05
)

// swLid is SW_LID's code within EV_SW events and bit index within
// EVIOCGSW's returned bitmask.
const swLid = 0x00

// Key value semantics for EV_KEY events.
const (
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// A subset of linux/input-event-codes.h key codes: one digit key, the
// editing/cursor cluster, the function keys, and the modifier keys the keyboard state machine
// tracks independently per side (spec.md §4.5: "six independent bits").
const (
	keyEsc       = 1
	key1         = 2
	keyMinus     = 12
	keyEqual     = 13
	keyBackspace = 14
	keyTab       = 15
	keyEnter     = 28
	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyRightShift = 54
	keyLeftAlt   = 56
	keySpace     = 57
	keyCapsLock  = 58
	keyRightCtrl = 97
	keyRightAlt  = 100
	keyUp        = 103
	keyLeft      = 105
	keyRight     = 106
	keyDown      = 108
	keyLeftMeta  = 125
	keyRightMeta = 126

	keyF1  = 59
	keyF2  = 60
	keyF3  = 61
	keyF4  = 62
	keyF5  = 63
	keyF6  = 64
	keyF7  = 65
	keyF8  = 66
	keyF9  = 67
	keyF10 = 68
	keyF11 = 87
	keyF12 = 88
)
