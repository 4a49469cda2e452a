// splash.go - pre-login splash image sequencer
//
// Grounded on original_source/splash.c's splash_run: monotonic pacing loop,
// loop-segment wraparound once the linear pass completes, the
// drm_master_relax best-effort handoff write, and the display_info.bin
// cookie written for the graphical session to read.
package main

import (
	"os"
	"time"
)

const (
	maxSplashImages  = 30
	maxSplashWaitSec = 8
)

// SplashFrame is one entry of a splash sequence: a PNG path, its on-screen
// offset, and the duration it stays up before the next frame.
type SplashFrame struct {
	Path     string
	OffsetX  int
	OffsetY  int
	Duration time.Duration

	loaded bool
	img    *decodedImage
}

// SplashProgram is an ordered sequence of frames plus the looping
// parameters set by --frame-interval/--loop-start style flags (spec.md
// §6). LoopStart < 0 means "no loop": play once and stop advancing.
type SplashProgram struct {
	Frames       []SplashFrame
	ClearColor   uint32
	LoopStart    int
	LoopCount    int // negative means loop forever
	LoopDuration time.Duration
	LoopOffsetX  int
	LoopOffsetY  int
	DevModeRelax bool

	failCount     int
	lastFailLogAt time.Time
}

// AddFrame appends a frame, enforcing the same MAX_SPLASH_IMAGES cap
// splash_add_image does.
func (p *SplashProgram) AddFrame(f SplashFrame) bool {
	if len(p.Frames) >= maxSplashImages {
		return false
	}
	p.Frames = append(p.Frames, f)
	return true
}

// SplashPlayer drives a SplashProgram against a splash Terminal's surface.
type SplashPlayer struct {
	program *SplashProgram
	term    *Terminal

	index      int
	loopsLeft  int
	lastShowAt time.Time
	activated  bool
	done       bool
}

// NewSplashPlayer prepares a player for program, targeting term (the VT 0
// splash terminal). Playback does not start until the first call to Step.
func NewSplashPlayer(program *SplashProgram, term *Terminal) *SplashPlayer {
	loops := program.LoopCount
	return &SplashPlayer{program: program, term: term, loopsLeft: loops}
}

// writeDisplayInfoCookie mirrors splash_init's /tmp/display_info.bin write:
// a byte flag for "internal panel" followed by the raw EDID blob, read by
// the graphical session that takes over after the splash finishes.
func writeDisplayInfoCookie(internalPanel bool, edid []byte) error {
	f, err := os.OpenFile("/tmp/display_info.bin", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	flag := byte(0)
	if internalPanel {
		flag = 1
	}
	if _, err := f.Write([]byte{flag}); err != nil {
		return err
	}
	_, err = f.Write(edid)
	return err
}

// Step advances playback by at most one frame and returns the duration the
// event loop should use as its next poll timeout (spec.md §4.6: "pump the
// event loop with a small cap... between frames"). done is true once the
// sequence has nothing left to show (no loop configured and the linear
// pass finished).
func (p *SplashPlayer) Step(now time.Time) (timeout time.Duration, done bool) {
	if p.done || len(p.program.Frames) == 0 {
		return 0, true
	}

	frame := &p.program.Frames[p.index]
	if !frame.loaded {
		img, err := decodePNG(frame.Path, p.term.surface.scaling)
		if err != nil {
			p.recordFailure(now, "decode %s: %v", frame.Path, err)
			p.advance()
			return time.Microsecond, false
		}
		frame.img = img
		frame.loaded = true
	}

	duration := frame.Duration
	if p.index >= p.program.LoopStart && p.program.LoopStart >= 0 {
		duration = p.program.loopDuration()
	}

	if !p.lastShowAt.IsZero() {
		elapsed := now.Sub(p.lastShowAt)
		if remaining := duration - elapsed; remaining > 0 {
			return remaining, false
		}
	}

	offsetX, offsetY := frame.OffsetX, frame.OffsetY
	if p.index >= p.program.LoopStart && p.program.LoopStart >= 0 {
		offsetX, offsetY = p.program.LoopOffsetX, p.program.LoopOffsetY
	}

	if err := p.show(frame, offsetX, offsetY); err != nil {
		p.recordFailure(now, "show %s: %v", frame.Path, err)
	} else if !p.activated {
		// First successful show: mode-set now so the viewer never sees a
		// half-drawn frame (spec.md §4.6 step 2).
		_ = p.term.Activate()
		p.activated = true
	}

	p.lastShowAt = now
	p.advance()
	return time.Microsecond, false
}

// loopDuration is the per-frame duration inside the loop: LoopDuration
// when set, otherwise the last frame's duration.
func (p *SplashProgram) loopDuration() time.Duration {
	if p.LoopDuration > 0 {
		return p.LoopDuration
	}
	if len(p.Frames) == 0 {
		return 0
	}
	return p.Frames[len(p.Frames)-1].Duration
}

func (p *SplashPlayer) show(frame *SplashFrame, offsetX, offsetY int) error {
	buf, err := p.term.surface.lock()
	if err != nil {
		return err
	}
	defer p.term.surface.unlock()

	width, height := p.term.surface.dimensions()
	stride := p.term.surface.pitch
	startX := (width-frame.img.width)/2 + offsetX
	startY := (height-frame.img.height)/2 + offsetY
	blitImage(buf, stride, startX, startY, frame.img)
	return nil
}

func (p *SplashPlayer) advance() {
	p.index++
	if p.index < len(p.program.Frames) {
		return
	}

	if p.program.LoopStart < 0 || p.program.LoopStart >= len(p.program.Frames) {
		p.done = true
		return
	}

	if p.loopsLeft == 0 {
		p.done = true
		return
	}
	if p.loopsLeft > 0 {
		p.loopsLeft--
	}
	p.index = p.program.LoopStart
}

// recordFailure counts and rate-limits failure logging (spec.md §4.6: "do
// not abort the sequence" but "rate-limited so an always-failing animation
// cannot flood the log").
func (p *SplashPlayer) recordFailure(now time.Time, format string, args ...interface{}) {
	p.program.failCount++
	if now.Sub(p.program.lastFailLogAt) < time.Second {
		return
	}
	p.program.lastFailLogAt = now
	logWarning(format, args...)
}

// RelaxDrmMaster writes "Y" to drm_master_relax, the best-effort handoff
// original_source/splash.c performs before Chrome (or any successor
// graphical session) can take display ownership. Failure is non-fatal:
// the caller simply won't support live VT transitions afterward.
func RelaxDrmMaster() bool {
	f, err := os.OpenFile("/sys/kernel/debug/dri/drm_master_relax", os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	defer f.Close()
	n, err := f.Write([]byte("Y"))
	return err == nil && n == 1
}
