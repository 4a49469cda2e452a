//go:build !headless

// video_backend_ebiten.go - windowed dev-preview mirror of the console framebuffer
package main

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// EbitenPreview mirrors the active VideoSurface's pixels into a resizable
// window. It never receives keyboard input itself — text VT input always
// flows through the evdev subsystem (or the dev-stdin fallback) — so unlike
// the teacher's original backend this one carries no clipboard or key
// injection code.
type EbitenPreview struct {
	running     bool
	window      *ebiten.Image
	width       int
	height      int
	scale       int
	frameBuffer []byte
	bufferMutex sync.RWMutex
	frameCount  uint64
	refreshRate int
	vsyncChan   chan struct{}
}

func newEbitenPreview() (VideoOutput, error) {
	return &EbitenPreview{
		width:       headlessWidth,
		height:      headlessHeight,
		scale:       1,
		frameBuffer: make([]byte, headlessWidth*headlessHeight*bytesPerPixel),
		refreshRate: 60,
		vsyncChan:   make(chan struct{}, 1),
	}, nil
}

func (eo *EbitenPreview) Start() error {
	if eo.running {
		return nil
	}
	eo.running = true
	ebiten.SetWindowSize(eo.width*eo.scale, eo.height*eo.scale)
	ebiten.SetWindowTitle("frecon dev preview")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		if err := ebiten.RunGame(eo); err != nil {
			logWarning("dev-preview: ebiten exited: %v", err)
		}
	}()

	<-eo.vsyncChan
	return nil
}

func (eo *EbitenPreview) Stop() error {
	eo.running = false
	return nil
}

func (eo *EbitenPreview) Close() error { return eo.Stop() }

func (eo *EbitenPreview) UpdateFrame(data []byte) error {
	eo.bufferMutex.Lock()
	copy(eo.frameBuffer, data)
	eo.bufferMutex.Unlock()
	return nil
}

func (eo *EbitenPreview) SetDisplayConfig(config DisplayConfig) error {
	eo.bufferMutex.Lock()
	defer eo.bufferMutex.Unlock()

	width, height := config.Width, config.Height
	if width <= 0 {
		width = headlessWidth
	}
	if height <= 0 {
		height = headlessHeight
	}
	eo.width, eo.height = width, height
	eo.scale = ClampScale(config.Scale)

	newSize := width * height * bytesPerPixel
	if len(eo.frameBuffer) != newSize {
		eo.frameBuffer = make([]byte, newSize)
	}
	ebiten.SetWindowSize(width*eo.scale, height*eo.scale)
	if eo.window != nil {
		eo.window.Dispose()
		eo.window = nil
	}
	return nil
}

func (eo *EbitenPreview) GetDisplayConfig() DisplayConfig {
	eo.bufferMutex.RLock()
	defer eo.bufferMutex.RUnlock()
	return DisplayConfig{Width: eo.width, Height: eo.height, Scale: eo.scale}
}

func (eo *EbitenPreview) WaitForVSync() error {
	<-eo.vsyncChan
	return nil
}

func (eo *EbitenPreview) GetFrameCount() uint64 { return eo.frameCount }
func (eo *EbitenPreview) GetRefreshRate() int   { return eo.refreshRate }
func (eo *EbitenPreview) IsStarted() bool       { return eo.running }

// Update implements ebiten.Game.
func (eo *EbitenPreview) Update() error {
	if ebiten.IsWindowBeingClosed() || !eo.running {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (eo *EbitenPreview) Draw(screen *ebiten.Image) {
	eo.bufferMutex.RLock()
	if eo.window == nil {
		eo.window = ebiten.NewImage(eo.width, eo.height)
	}
	eo.window.WritePixels(eo.frameBuffer)
	eo.bufferMutex.RUnlock()
	screen.DrawImage(eo.window, nil)

	eo.frameCount++
	select {
	case eo.vsyncChan <- struct{}{}:
	default:
	}
}

// Layout implements ebiten.Game.
func (eo *EbitenPreview) Layout(_, _ int) (int, int) {
	return eo.width, eo.height
}
