// terminal.go - one logical VT: PTY, VT parser, surface, lifecycle
package main

import "fmt"

const scrollbackLines = 200 // term.c's hardcoded scrollback_size

// Terminal owns one VT: its PTY pair, child process, VT parser state, and
// the VideoSurface it renders into when active. Only the current terminal
// ever drives a surface or receives input (spec.md §4.4 invariant).
type Terminal struct {
	vtIndex int
	active  bool

	pty *ptySession
	vt  *VTAdapter

	surface *VideoSurface
	font    *FontRenderer

	cols, rows int

	fg, bg uint32

	childDone bool
}

// NewTerminal creates a terminal for vtIndex sized to fit surface at the
// given font scale and spawns its shell on a new PTY. It does not touch
// the surface; Activate draws it. vtIndex 0 is reserved for the splash terminal
// per spec.md §4.4's VT-index convention.
func NewTerminal(vtIndex int, surface *VideoSurface, scale int) (*Terminal, error) {
	width, height := surface.dimensions()
	font := newFontRenderer(scale)
	cols := width / font.CellWidth()
	rows := height / font.CellHeight()
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	pty, err := spawnShell(cols, rows)
	if err != nil {
		return nil, fmt.Errorf("terminal vt%d: %w", vtIndex, err)
	}

	vt := NewVTAdapter(cols, rows, pty)

	return &Terminal{
		vtIndex: vtIndex,
		pty:     pty,
		vt:      vt,
		surface: surface,
		font:    font,
		cols:    cols,
		rows:    rows,
		fg:      0xFFFFFF,
		bg:      0x000000,
	}, nil
}

// Fd is the PTY master descriptor the event loop polls for readability.
func (t *Terminal) Fd() int { return t.pty.Fd() }

// IsActive reports whether this terminal currently owns the display and
// input devices.
func (t *Terminal) IsActive() bool { return t.active }

// Activate marks the terminal active, snaps the view back to the live
// screen, and forces a full redraw. It does not mode-set the surface or
// grab input devices; Daemon.switchTo takes DRM master and grabs input
// around the call, and no mode-set is done on a switch. Per spec.md §4.4,
// the caller is responsible for deactivating any previously active
// terminal first.
func (t *Terminal) Activate() error {
	t.active = true
	t.vt.ScrollToBottom()
	t.Render(true)
	return nil
}

// Deactivate stops drawing but leaves the PTY and child running.
func (t *Terminal) Deactivate() {
	t.active = false
}

// FeedPTYOutput parses bytes read from the PTY master.
func (t *Terminal) FeedPTYOutput(data []byte) error {
	return t.vt.Feed(data)
}

// FeedKey writes translated keyboard bytes to the PTY master (the
// input subsystem's keysym encoder produces these). Typing snaps the view
// back to the live screen, same as xterm and friends.
func (t *Terminal) FeedKey(data []byte) error {
	t.vt.ScrollToBottom()
	_, err := t.pty.Write(data)
	return err
}

// Render redraws changed cells (or every cell, if full is true) into the
// surface. Only meaningful while the terminal is active.
func (t *Terminal) Render(full bool) {
	if !t.active {
		return
	}
	buf, err := t.surface.lock()
	if err != nil {
		return
	}
	defer t.surface.unlock()

	cells := t.vt.Draw()
	if full {
		cells = t.vt.ForceAll()
	}
	for _, c := range cells {
		px := c.X * t.font.CellWidth()
		py := c.Y * t.font.CellHeight()
		if c.Char == 0 {
			t.font.FillChar(buf, t.pitch(), px, py, c.BG)
			continue
		}
		t.font.DrawCell(buf, t.pitch(), px, py, c.Char, c.FG, c.BG, c.Reverse)
	}
}

func (t *Terminal) pitch() int {
	return t.surface.pitch
}

// scrollPageLines is how many lines a page-up/page-down hotkey moves,
// a full screen's worth short one line of overlap.
func (t *Terminal) scrollPageLines() int {
	if t.rows <= 1 {
		return 1
	}
	return t.rows - 1
}

// ScrollUp pages the view n lines further into scrollback history and
// repaints immediately; a no-op once the ring's oldest line is reached.
func (t *Terminal) ScrollUp(n int) {
	t.vt.ScrollUp(n)
	if t.active {
		t.Render(true)
	}
}

// ScrollDown pages the view n lines back toward the live screen.
func (t *Terminal) ScrollDown(n int) {
	t.vt.ScrollDown(n)
	if t.active {
		t.Render(true)
	}
}

// ScrollToBottom drops back to the live screen, called on Activate and on
// any key that produces PTY input while scrolled.
func (t *Terminal) ScrollToBottom() {
	t.vt.ScrollToBottom()
}

// Resize re-grids the terminal to the surface's current dimensions,
// propagating the new size to both the VT parser and the PTY (spec.md
// §4.4 hotplug scenario: "the active Terminal is re-grid-sized").
func (t *Terminal) Resize() error {
	width, height := t.surface.dimensions()
	t.cols = width / t.font.CellWidth()
	t.rows = height / t.font.CellHeight()
	if t.cols < 1 {
		t.cols = 1
	}
	if t.rows < 1 {
		t.rows = 1
	}
	t.vt.Resize(t.cols, t.rows)
	return t.pty.Resize(t.cols, t.rows)
}

// PollChildDone mirrors term_is_child_done's WNOHANG poll, called once per
// event-loop iteration.
func (t *Terminal) PollChildDone() bool {
	if t.childDone {
		return true
	}
	if t.pty.ChildDone() {
		t.childDone = true
	}
	return t.childDone
}

// Respawn replaces the terminal's PTY and child in place, keeping the same
// VT index and surface, per spec.md §4.4's "child exit" rule for non-splash
// terminals.
func (t *Terminal) Respawn() error {
	_ = t.pty.Wait()
	t.pty.Close()

	pty, err := spawnShell(t.cols, t.rows)
	if err != nil {
		return fmt.Errorf("respawn vt%d: %w", t.vtIndex, err)
	}
	t.pty = pty
	t.vt = NewVTAdapter(t.cols, t.rows, pty)
	t.childDone = false
	if t.active {
		t.Render(true)
	}
	return nil
}

// Close tears down the PTY and child. Used for explicit terminal close and
// final shutdown.
func (t *Terminal) Close() error {
	t.active = false
	return t.pty.Close()
}

// SetColors records a default foreground/background. Render does not read
// them: every cell's colors come from the VT parser.
func (t *Terminal) SetColors(fg, bg uint32) {
	t.fg, t.bg = fg, bg
}

const (
	minFontScale = 1
	maxFontScale = 4
)

// Zoom changes the font renderer's pixel scale by delta (+1 or -1 per
// keypress), clamped to [minFontScale, maxFontScale], re-grids the
// terminal and PTY to the new cell count, and forces a full redraw.
// Resolves spec.md §9's Open Question on whether Ctrl+Shift+Minus/Equal
// is wired: it is, since VideoSurface already exposes the pixel buffer
// this only needs to re-blit into at a different cell pitch.
func (t *Terminal) Zoom(delta int) error {
	scale := t.font.scale + delta
	if scale < minFontScale {
		scale = minFontScale
	}
	if scale > maxFontScale {
		scale = maxFontScale
	}
	if scale == t.font.scale {
		return nil
	}
	t.font = newFontRenderer(scale)
	if err := t.Resize(); err != nil {
		return err
	}
	if t.active {
		t.Render(true)
	}
	return nil
}
