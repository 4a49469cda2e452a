//go:build headless

package main

import "sync/atomic"

// HeadlessPreview discards frames; used in environments with neither a DRM
// card nor a display server to mirror into.
type HeadlessPreview struct {
	started     bool
	config      DisplayConfig
	frameCount  uint64
	refreshRate int
}

func newEbitenPreview() (VideoOutput, error) { return newHeadlessPreview(), nil }

func newHeadlessPreview() *HeadlessPreview {
	return &HeadlessPreview{refreshRate: 60}
}

func (h *HeadlessPreview) Start() error { h.started = true; return nil }
func (h *HeadlessPreview) Stop() error  { h.started = false; return nil }
func (h *HeadlessPreview) Close() error { h.started = false; return nil }
func (h *HeadlessPreview) IsStarted() bool { return h.started }

func (h *HeadlessPreview) SetDisplayConfig(config DisplayConfig) error {
	h.config = config
	return nil
}

func (h *HeadlessPreview) GetDisplayConfig() DisplayConfig { return h.config }

func (h *HeadlessPreview) UpdateFrame(buffer []byte) error {
	atomic.AddUint64(&h.frameCount, 1)
	return nil
}

func (h *HeadlessPreview) WaitForVSync() error { return nil }
func (h *HeadlessPreview) GetFrameCount() uint64 {
	return atomic.LoadUint64(&h.frameCount)
}
func (h *HeadlessPreview) GetRefreshRate() int {
	if h.refreshRate == 0 {
		return 60
	}
	return h.refreshRate
}
