// video_surface.go - dumb-buffer framebuffer surface, §4.2
package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const bytesPerPixel = 4 // XRGB8888 only, per spec.md §3

// VideoSurface is a dumb buffer tied to one DrmDevice (or none, in
// headless mode). Fields mirror spec.md §3 plus the supplemented GEM
// handle/fb-id split from SPEC_FULL.md §3.1.
type VideoSurface struct {
	device *DrmDevice

	width, height int
	pitch         int
	scaling       int

	handle uint32 // GEM handle, freed via DRM_IOCTL_MODE_DESTROY_DUMB
	fbID   uint32 // framebuffer id, freed via DRM_IOCTL_MODE_RMFB

	mapOffset uint64
	mapData   []byte // valid iff lockCount > 0
	lockCount int

	headless bool
	buf      []byte // backing store when headless (no mmap available)
}

// newVideoSurface allocates a 32bpp dumb buffer sized to dev's console mode
// and computes the integer DPI scaling factor per spec.md §4.2.
func newVideoSurface(dev *DrmDevice) (*VideoSurface, error) {
	width := int(dev.consoleMode.Hdisplay)
	height := int(dev.consoleMode.Vdisplay)

	dumb, err := drmCreateDumb(dev.file, uint32(width), uint32(height), 32)
	if err != nil {
		return nil, fmt.Errorf("video surface: create dumb: %w", err)
	}

	fbID, err := drmAddFb(dev.file, dumb.Width, dumb.Height, dumb.Pitch, 32, 24, dumb.Handle)
	if err != nil {
		_ = drmDestroyDumb(dev.file, dumb.Handle)
		return nil, fmt.Errorf("video surface: add fb: %w", err)
	}

	offset, err := drmMapDumb(dev.file, dumb.Handle)
	if err != nil {
		_ = drmRmFb(dev.file, fbID)
		_ = drmDestroyDumb(dev.file, dumb.Handle)
		return nil, fmt.Errorf("video surface: map dumb: %w", err)
	}

	dev.ref()
	return &VideoSurface{
		device:    dev,
		width:     int(dumb.Width),
		height:    int(dumb.Height),
		pitch:     int(dumb.Pitch),
		scaling:   computeScaling(int(dumb.Width), dev.mmWidth),
		handle:    dumb.Handle,
		fbID:      fbID,
		mapOffset: offset,
	}, nil
}

// computeScaling implements spec.md §4.2's DPI formula, lifted from
// original_source/video.c: dots-per-cm = width*10/mmWidth; thresholds
// {67,100,133} map to scaling {1,2,3,4}. Unknown mmWidth -> scaling 1.
func computeScaling(width int, mmWidth uint32) int {
	if mmWidth == 0 {
		return 1
	}
	dotsPerCM := width * 10 / int(mmWidth)
	switch {
	case dotsPerCM > 133:
		return 4
	case dotsPerCM > 100:
		return 3
	case dotsPerCM > 67:
		return 2
	default:
		return 1
	}
}

// lock is reentrant via lockCount; the first lock call mmaps the buffer.
func (s *VideoSurface) lock() ([]byte, error) {
	if s.headless {
		s.lockCount++
		return s.buf, nil
	}
	if s.lockCount == 0 {
		data, err := unix.Mmap(int(s.device.file.Fd()), int64(s.mapOffset), s.pitch*s.height,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("video surface: mmap: %w", err)
		}
		s.mapData = data
	}
	s.lockCount++
	return s.mapData, nil
}

// unlock decrements lockCount; at zero it flushes (marks the whole surface
// dirty via DIRTYFB) and unmaps, per spec.md §4.2 and §8's invariant that
// the map is never reachable once lockCount hits zero.
func (s *VideoSurface) unlock() error {
	if s.lockCount == 0 {
		return fmt.Errorf("video surface: unlock without a matching lock")
	}
	s.lockCount--
	if s.lockCount > 0 {
		return nil
	}
	if s.headless {
		return nil
	}
	if err := drmDirtyFb(s.device.file, s.fbID); err != nil {
		logWarning("video surface: DIRTYFB failed: %v", err)
	}
	err := unix.Munmap(s.mapData)
	s.mapData = nil
	return err
}

// destroy frees the fb and GEM handle and drops the device reference — an
// operation the distilled spec.md omits but original_source/video.c performs
// on video_destroy (SPEC_FULL.md §3.1).
func (s *VideoSurface) destroy() {
	if s.headless {
		return
	}
	if s.lockCount > 0 {
		_ = unix.Munmap(s.mapData)
		s.mapData = nil
		s.lockCount = 0
	}
	if err := drmRmFb(s.device.file, s.fbID); err != nil {
		logWarning("video surface: RmFB during destroy: %v", err)
	}
	if err := drmDestroyDumb(s.device.file, s.handle); err != nil {
		logWarning("video surface: DESTROY_DUMB during destroy: %v", err)
	}
	s.device.unref()
}

func (s *VideoSurface) dimensions() (width, height int) { return s.width, s.height }
