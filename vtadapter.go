// vtadapter.go - VT/xterm parser half of the terminal
//
// Wraps github.com/hinshun/vt10x, the pack's evidenced pairing with
// creack/pty (other_examples' thicc panel.go). vt10x.Terminal is a
// snapshot API with no libtsm-style per-cell age counter, so this adapter
// keeps its own generation stamp per cell and only reports cells that
// actually changed since the last redraw, the same early-out term_draw_cell
// uses in original_source/term.c via tsm_age_t.
package main

import "github.com/hinshun/vt10x"

// vtCell is one cell's fully-resolved rendered state: the rune vt10x holds
// plus the colors/reverse flag colorOf already extracts from its Glyph.
type vtCell struct {
	char rune
	fg   uint32
	bg   uint32
	rev  bool
}

// vtCellAge tracks the redraw generation a cell was last painted at.
type vtCellAge struct {
	gen uint64
	vtCell
}

// scrollbackRing holds the fixed number of most-recently-scrolled-off rows,
// per spec.md §3's "scrollback ring (fixed lines, e.g. 200)". Grounded on
// other_examples' thicc terminal panel's Scrollback buffer, re-authored here
// since only its usage (Push/Count/a row accessor), not its definition, was
// in the retrieval pack.
type scrollbackRing struct {
	lines [][]vtCell
	cap   int
}

func newScrollbackRing(capacity int) *scrollbackRing {
	return &scrollbackRing{cap: capacity}
}

func (r *scrollbackRing) push(line []vtCell) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.cap {
		r.lines = r.lines[len(r.lines)-r.cap:]
	}
}

func (r *scrollbackRing) count() int { return len(r.lines) }

func (r *scrollbackRing) at(i int) []vtCell {
	if i < 0 || i >= len(r.lines) {
		return nil
	}
	return r.lines[i]
}

func (r *scrollbackRing) clear() { r.lines = nil }

// VTAdapter feeds PTY output into a vt10x state machine and exposes only
// the cells that changed since the previous Draw call. It also keeps a
// scrollback ring fed from rows that scroll off the top of the live grid,
// and a scrollOffset that pages the view back into that history.
type VTAdapter struct {
	term vt10x.Terminal
	cols int
	rows int
	gen  uint64
	ages [][]vtCellAge

	scrollback   *scrollbackRing
	scrollOffset int
}

// NewVTAdapter creates a parser sized cols x rows, writing keyboard input
// and DSR/CPR responses back through w (the PTY master).
func NewVTAdapter(cols, rows int, w ptyWriter) *VTAdapter {
	term := vt10x.New(vt10x.WithSize(cols, rows), vt10x.WithWriter(w))
	return &VTAdapter{
		term:       term,
		cols:       cols,
		rows:       rows,
		ages:       newAgeGrid(cols, rows),
		scrollback: newScrollbackRing(scrollbackLines),
	}
}

// ptyWriter is the subset of *ptySession that vt10x.WithWriter needs.
type ptyWriter interface {
	Write(p []byte) (int, error)
}

func newAgeGrid(cols, rows int) [][]vtCellAge {
	g := make([][]vtCellAge, rows)
	for y := range g {
		g[y] = make([]vtCellAge, cols)
	}
	return g
}

// Feed parses newly read PTY output, then checks whether any rows scrolled
// off the top of the grid as a result and, if so, pushes them into the
// scrollback ring.
func (v *VTAdapter) Feed(data []byte) error {
	before := v.snapshotScreen()
	_, err := v.term.Write(data)
	v.captureScrolledLines(before)
	return err
}

// Resize grows or shrinks the screen grid, preserving ages where possible.
// The scrollback ring is cleared: its rows were captured at the old width
// and can't be replayed at a different column count.
func (v *VTAdapter) Resize(cols, rows int) {
	v.term.Resize(cols, rows)
	v.cols, v.rows = cols, rows
	v.ages = newAgeGrid(cols, rows)
	v.scrollback.clear()
	v.scrollOffset = 0
}

func (v *VTAdapter) snapshotRow(y int) []vtCell {
	row := make([]vtCell, v.cols)
	for x := 0; x < v.cols; x++ {
		glyph := v.term.Cell(x, y)
		fg, bg, reverse := colorOf(glyph)
		row[x] = vtCell{char: glyph.Char, fg: fg, bg: bg, rev: reverse}
	}
	return row
}

func (v *VTAdapter) snapshotScreen() [][]vtCell {
	rows := make([][]vtCell, v.rows)
	for y := range rows {
		rows[y] = v.snapshotRow(y)
	}
	return rows
}

func rowsEqual(a, b []vtCell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].char != b[i].char {
			return false
		}
	}
	return true
}

// captureScrolledLines detects how many rows scrolled off the top of the
// grid between before (a snapshot taken just before the write that may have
// scrolled it) and the live screen now, pushing each into the scrollback
// ring. Grounded on other_examples' thicc panel's captureScrolledLines: the
// old top row is searched for in the new screen; the row it's now found at
// is how many lines scrolled away. A second pass searches the other
// direction (new top row found among the old rows) to cover output that
// scrolled by exactly one line with no matching second row.
func (v *VTAdapter) captureScrolledLines(before [][]vtCell) {
	if len(before) == 0 || len(before) != v.rows {
		return
	}
	top := v.snapshotRow(0)
	if rowsEqual(top, before[0]) {
		return
	}

	for newY := 1; newY < v.rows; newY++ {
		if !rowsEqual(v.snapshotRow(newY), before[0]) {
			continue
		}
		if newY+1 < v.rows && newY+1 < len(before) && !rowsEqual(v.snapshotRow(newY+1), before[1]) {
			continue
		}
		for i := 0; i < newY; i++ {
			v.scrollback.push(before[i])
		}
		return
	}

	for oldY := 1; oldY < len(before); oldY++ {
		if !rowsEqual(top, before[oldY]) {
			continue
		}
		for i := 0; i < oldY; i++ {
			v.scrollback.push(before[i])
		}
		return
	}
}

// ScrollUp pages the view n lines further into scrollback history, clamped
// at the oldest captured line (spec.md §8: "page-up at the top is a
// no-op").
func (v *VTAdapter) ScrollUp(n int) {
	v.scrollOffset += n
	if max := v.scrollback.count(); v.scrollOffset > max {
		v.scrollOffset = max
	}
}

// ScrollDown pages the view n lines back toward the live screen.
func (v *VTAdapter) ScrollDown(n int) {
	v.scrollOffset -= n
	if v.scrollOffset < 0 {
		v.scrollOffset = 0
	}
}

// ScrollToBottom returns the view to the live screen.
func (v *VTAdapter) ScrollToBottom() { v.scrollOffset = 0 }

// Scrolled reports whether the view is currently paged into history.
func (v *VTAdapter) Scrolled() bool { return v.scrollOffset > 0 }

// changedCell is one cell whose content differs from the prior Draw.
type changedCell struct {
	X, Y       int
	Char       rune
	FG, BG     uint32
	Reverse    bool
}

// cellAt resolves the cell currently shown at (x, y), accounting for
// scrollOffset: 0 reads straight from the live vt10x grid, >0 reads from the
// scrollback ring (or the live grid's top rows, once the ring is exhausted),
// per the lineIndex mapping other_examples' thicc panel renders scrollback
// with.
func (v *VTAdapter) cellAt(x, y int) vtCell {
	if v.scrollOffset == 0 {
		glyph := v.term.Cell(x, y)
		fg, bg, reverse := colorOf(glyph)
		return vtCell{char: glyph.Char, fg: fg, bg: bg, rev: reverse}
	}

	count := v.scrollback.count()
	lineIndex := count - v.scrollOffset + y
	var row []vtCell
	switch {
	case lineIndex < 0:
		row = nil
	case lineIndex < count:
		row = v.scrollback.at(lineIndex)
	default:
		row = v.snapshotRow(lineIndex - count)
	}
	if x < len(row) {
		return row[x]
	}
	return vtCell{}
}

// Draw returns every cell that changed since the last call, bumping the
// adapter's generation counter. A fresh VTAdapter's first Draw always
// returns the full grid.
func (v *VTAdapter) Draw() []changedCell {
	v.gen++
	var changed []changedCell

	for y := 0; y < v.rows; y++ {
		if y >= len(v.ages) {
			continue
		}
		for x := 0; x < v.cols; x++ {
			if x >= len(v.ages[y]) {
				continue
			}
			c := v.cellAt(x, y)

			prev := v.ages[y][x]
			if prev.gen != 0 && prev.vtCell == c {
				continue
			}

			v.ages[y][x] = vtCellAge{gen: v.gen, vtCell: c}
			changed = append(changed, changedCell{X: x, Y: y, Char: c.char, FG: c.fg, BG: c.bg, Reverse: c.rev})
		}
	}
	return changed
}

// ForceAll returns every cell currently shown (live grid, or scrollback if
// scrolled) regardless of whether it changed since the last Draw, resetting
// their recorded age to the new generation. Used for a full redraw
// (activating a terminal, resizing, zooming, paging scrollback) where the
// screen content must be repainted as-is, not blanked.
func (v *VTAdapter) ForceAll() []changedCell {
	v.gen++
	cells := make([]changedCell, 0, v.cols*v.rows)

	for y := 0; y < v.rows; y++ {
		for x := 0; x < v.cols; x++ {
			c := v.cellAt(x, y)
			if y < len(v.ages) && x < len(v.ages[y]) {
				v.ages[y][x] = vtCellAge{gen: v.gen, vtCell: c}
			}
			cells = append(cells, changedCell{X: x, Y: y, Char: c.char, FG: c.fg, BG: c.bg, Reverse: c.rev})
		}
	}
	return cells
}

// colorOf extracts the packed 0xRRGGBB colors vt10x assigned a glyph. Color
// 0 in vt10x means "default", mapped here to white-on-black.
func colorOf(g vt10x.Glyph) (fg, bg uint32, reverse bool) {
	fg = resolveColor(uint32(g.FG), 0xFFFFFF)
	bg = resolveColor(uint32(g.BG), 0x000000)
	reverse = g.Mode&vt10x.AttrReverse != 0
	return fg, bg, reverse
}

func resolveColor(c uint32, def uint32) uint32 {
	if c == 0 {
		return def
	}
	return c & 0xFFFFFF
}

// Cursor reports the current cursor cell and whether it should be drawn.
func (v *VTAdapter) Cursor() (x, y int, visible bool) {
	cur := v.term.Cursor()
	return cur.X, cur.Y, v.term.CursorVisible()
}

// Size returns the parser's current grid dimensions.
func (v *VTAdapter) Size() (cols, rows int) { return v.cols, v.rows }
