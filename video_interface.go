// video_interface.go - dev-preview video output interface
package main

import "fmt"

// VideoError provides detailed error context for video operations.
type VideoError struct {
	Operation string
	Details   string
	Err       error
}

func (e *VideoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("video %s failed: %s", e.Operation, e.Details)
}

// DisplayConfig mirrors the dimensions of a VideoSurface for the dev-preview
// backend, which has no DRM device of its own to mode-set.
type DisplayConfig struct {
	Width  int
	Height int
	Scale  int
}

func ClampScale(s int) int {
	if s < 1 {
		return 1
	}
	if s > 4 {
		return 4
	}
	return s
}

// VideoOutput is the dev-preview mirror of the real VideoSurface, started
// by main.go only when --dev-preview is passed. It never participates in
// the real DRM mode-set path.
type VideoOutput interface {
	Start() error
	Stop() error
	Close() error
	IsStarted() bool

	SetDisplayConfig(config DisplayConfig) error
	GetDisplayConfig() DisplayConfig
	UpdateFrame(buffer []byte) error // raw XRGB8888 scanlines

	WaitForVSync() error
	GetFrameCount() uint64
	GetRefreshRate() int
}

const (
	videoBackendEbiten = iota
	videoBackendHeadless
)

// NewVideoOutput creates the dev-preview backend named by backend.
func NewVideoOutput(backend int) (VideoOutput, error) {
	switch backend {
	case videoBackendEbiten:
		return newEbitenPreview()
	case videoBackendHeadless:
		return newHeadlessPreview(), nil
	}
	return nil, &VideoError{Operation: "backend creation", Details: fmt.Sprintf("unknown backend %d", backend)}
}
