// drm_headless.go - headless fallback per spec.md §4.1/§8 failure semantics
package main

// headlessWidth/Height/Pitch match spec.md §8's boundary behavior for
// "no connected monitor": 640x480x2560 (pitch = width * 4 bytes/px).
const (
	headlessWidth  = 640
	headlessHeight = 480
	headlessPitch  = headlessWidth * 4
)

// newHeadlessSurface builds a VideoSurface with no backing DrmDevice.
// Mode-sets against it are no-ops; the event loop still runs normally.
func newHeadlessSurface() *VideoSurface {
	return &VideoSurface{
		device:  nil,
		width:   headlessWidth,
		height:  headlessHeight,
		pitch:   headlessPitch,
		scaling: 1,
		headless: true,
		buf:     make([]byte, headlessPitch*headlessHeight),
	}
}
