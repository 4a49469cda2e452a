package main

import "testing"

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.NumVTs != 4 {
		t.Fatalf("NumVTs = %d, want 4", cfg.NumVTs)
	}
	if cfg.Scale != 1 {
		t.Fatalf("Scale = %d, want 1", cfg.Scale)
	}
	if cfg.Port != defaultIPCPort {
		t.Fatalf("Port = %d, want %d", cfg.Port, defaultIPCPort)
	}
	if cfg.LoopStart != -1 {
		t.Fatalf("LoopStart = %d, want -1", cfg.LoopStart)
	}
}

func TestParseConfig_TrailingArgsBecomeImages(t *testing.T) {
	cfg, err := ParseConfig([]string{"--scale=2", "a.png", "b.png"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if len(cfg.Images) != 2 || cfg.Images[0] != "a.png" || cfg.Images[1] != "b.png" {
		t.Fatalf("Images = %v, want [a.png b.png]", cfg.Images)
	}
	if cfg.Scale != 2 {
		t.Fatalf("Scale = %d, want 2", cfg.Scale)
	}
}

func TestParseConfig_ImageFlagsAppendInOrder(t *testing.T) {
	cfg, err := ParseConfig([]string{"--image=lo.png", "--image-hires=hi.png", "trailing.png"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	want := []string{"lo.png", "hi.png", "trailing.png"}
	if len(cfg.Images) != len(want) {
		t.Fatalf("Images = %v, want %v", cfg.Images, want)
	}
	for i, v := range want {
		if cfg.Images[i] != v {
			t.Fatalf("Images[%d] = %q, want %q", i, cfg.Images[i], v)
		}
	}
}

func TestParseConfig_ClearColorHex(t *testing.T) {
	cfg, err := ParseConfig([]string{"--clear=0x112233"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.ClearColor != 0x112233 {
		t.Fatalf("ClearColor = %#x, want 0x112233", cfg.ClearColor)
	}
}

func TestParseConfig_OffsetPair(t *testing.T) {
	cfg, err := ParseConfig([]string{"--offset=10,-5"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.OffsetX != 10 || cfg.OffsetY != -5 {
		t.Fatalf("offset = (%d,%d), want (10,-5)", cfg.OffsetX, cfg.OffsetY)
	}
}

func TestParseConfig_RejectsSplashOnlyWithVTs(t *testing.T) {
	if _, err := ParseConfig([]string{"--splash-only", "--enable-vts"}); err == nil {
		t.Fatal("expected error for --splash-only with --enable-vts")
	}
}

func TestParseConfig_RejectsBadScale(t *testing.T) {
	if _, err := ParseConfig([]string{"--scale=0"}); err == nil {
		t.Fatal("expected error for --scale=0")
	}
}

func TestParseConfig_RejectsNumVTsAboveMax(t *testing.T) {
	if _, err := ParseConfig([]string{"--num-vts=13"}); err == nil {
		t.Fatal("expected error for --num-vts above the documented maximum of 12")
	}
}

func TestParseConfig_AcceptsNumVTsAtMax(t *testing.T) {
	cfg, err := ParseConfig([]string{"--num-vts=12"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.NumVTs != 12 {
		t.Fatalf("NumVTs = %d, want 12", cfg.NumVTs)
	}
}

func TestParseConfig_RejectsMalformedOffset(t *testing.T) {
	if _, err := ParseConfig([]string{"--offset=10"}); err == nil {
		t.Fatal("expected error for malformed --offset")
	}
}
