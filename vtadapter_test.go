package main

import "testing"

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestVTAdapter_ForceAll_ReflectsLiveContent(t *testing.T) {
	v := NewVTAdapter(10, 3, discardWriter{})
	if err := v.Feed([]byte("A")); err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}

	var found bool
	for _, c := range v.ForceAll() {
		if c.X == 0 && c.Y == 0 {
			found = true
			if c.Char != 'A' {
				t.Fatalf("cell(0,0).Char = %q, want 'A'", c.Char)
			}
		}
	}
	if !found {
		t.Fatal("ForceAll did not include cell (0,0)")
	}
}

func TestVTAdapter_ScrollUp_NoHistoryIsNoOp(t *testing.T) {
	v := NewVTAdapter(10, 3, discardWriter{})
	v.ScrollUp(5)
	if v.Scrolled() {
		t.Fatal("ScrollUp with no scrollback history should leave the view at the live screen")
	}
}

func TestVTAdapter_ScrollDown_ClampsAtZero(t *testing.T) {
	v := NewVTAdapter(10, 3, discardWriter{})
	v.ScrollDown(3)
	if v.Scrolled() {
		t.Fatal("ScrollDown below zero should clamp to the live screen")
	}
}

func TestVTAdapter_ScrollUpThenToBottom_RoundTrips(t *testing.T) {
	v := NewVTAdapter(10, 3, discardWriter{})
	for i := 0; i < 10; i++ {
		if err := v.Feed([]byte("line\r\n")); err != nil {
			t.Fatalf("Feed returned error: %v", err)
		}
	}
	if v.scrollback.count() == 0 {
		t.Skip("vt10x did not report any scrolled lines for this sequence")
	}
	v.ScrollUp(1)
	if !v.Scrolled() {
		t.Fatal("ScrollUp(1) with available history should page into scrollback")
	}
	v.ScrollToBottom()
	if v.Scrolled() {
		t.Fatal("ScrollToBottom should return to the live screen")
	}
}

func TestVTAdapter_Resize_ClearsScrollback(t *testing.T) {
	v := NewVTAdapter(10, 3, discardWriter{})
	v.scrollback.push(make([]vtCell, 10))
	v.scrollOffset = 1

	v.Resize(20, 6)

	if v.scrollback.count() != 0 {
		t.Fatal("Resize should clear scrollback captured at the old width")
	}
	if v.Scrolled() {
		t.Fatal("Resize should reset scrollOffset to the live screen")
	}
}
