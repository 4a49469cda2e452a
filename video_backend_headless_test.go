//go:build headless

package main

import "testing"

func TestHeadlessPreview_SetDisplayConfig_StoresScale(t *testing.T) {
	out := newHeadlessPreview()
	cfg := DisplayConfig{Width: 640, Height: 480, Scale: 2}
	if err := out.SetDisplayConfig(cfg); err != nil {
		t.Fatalf("SetDisplayConfig returned error: %v", err)
	}
	got := out.GetDisplayConfig()
	if got.Scale != 2 || got.Width != 640 || got.Height != 480 {
		t.Fatalf("got %+v, want Width=640 Height=480 Scale=2", got)
	}
}

func TestHeadlessPreview_UpdateFrame_CountsFrames(t *testing.T) {
	out := newHeadlessPreview()
	if err := out.UpdateFrame(make([]byte, 64)); err != nil {
		t.Fatalf("UpdateFrame returned error: %v", err)
	}
	if out.GetFrameCount() != 1 {
		t.Fatalf("expected frame count 1, got %d", out.GetFrameCount())
	}
}
