package main

import "testing"

func TestFontRenderer_CellDimensions(t *testing.T) {
	f := newFontRenderer(2)
	if got := f.CellWidth(); got != 16 {
		t.Fatalf("CellWidth() = %d, want 16", got)
	}
	if got := f.CellHeight(); got != 32 {
		t.Fatalf("CellHeight() = %d, want 32", got)
	}
}

func TestFontRenderer_DrawCell_PaintsWithinBounds(t *testing.T) {
	f := newFontRenderer(1)
	stride := glyphWidth * bytesPerPixel
	buf := make([]byte, stride*glyphHeight)

	f.DrawCell(buf, stride, 0, 0, 'A', 0xFFFFFF, 0x000000, false)

	allZero := true
	for _, b := range buf {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatalf("DrawCell left buffer untouched, expected some foreground pixels")
	}
}

func TestFontRenderer_DrawCell_UnknownGlyphNoPanic(t *testing.T) {
	f := newFontRenderer(1)
	stride := glyphWidth * bytesPerPixel
	buf := make([]byte, stride*glyphHeight)

	delete(glyphs, replacementGlyph)
	defer func() { glyphs = buildGlyphTable() }()

	f.DrawCell(buf, stride, 0, 0, rune(0x1F600), 0xFFFFFF, 0x000000, false)
}

func TestCodepointIndex_ReplacesUnknown(t *testing.T) {
	idx, ok := codepointIndex(rune(0x1F600))
	if !ok {
		t.Fatalf("expected replacement glyph to be available")
	}
	if idx != replacementGlyph {
		t.Fatalf("codepointIndex() = %d, want replacementGlyph", idx)
	}
}
