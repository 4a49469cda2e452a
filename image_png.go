// image_png.go - PNG decode for splash frames
//
// The original daemon's image.c uses libpng with a setjmp/longjmp error
// jump for malformed files (spec.md §9's design note); Go's image/png
// returns a plain error on the same condition, so this wrapper needs no
// recover/panic machinery to match that behavior — an ordinary error
// return already gives splash.go the same "skip this frame, keep playing"
// semantics libpng's jump buffer gave the C version.
package main

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// decodedImage is a splash frame already converted to the XRGB8888 layout
// VideoSurface expects.
type decodedImage struct {
	width, height int
	pix           []byte // tightly packed XRGB8888, row-major
}

// decodePNG loads and converts path, returning an error (never panicking)
// on a malformed or unreadable file. scale applies the surface's integer
// DPI scaling factor (video_surface.go's computeScaling) via
// golang.org/x/image/draw's nearest-neighbor scaler, matching the crisp
// pixel-doubling the font renderer uses for glyphs.
func decodePNG(path string, scale int) (*decodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if scale < 1 {
		scale = 1
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	if scale == 1 {
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	} else {
		xdraw.NearestNeighbor.Scale(rgba, rgba.Bounds(), src, bounds, xdraw.Src, nil)
	}
	width, height = width*scale, height*scale

	pix := make([]byte, width*height*bytesPerPixel)
	for y := 0; y < height; y++ {
		srcRow := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
		dstRow := pix[y*width*bytesPerPixel : (y+1)*width*bytesPerPixel]
		for x := 0; x < width; x++ {
			r := srcRow[x*4+0]
			g := srcRow[x*4+1]
			b := srcRow[x*4+2]
			dstRow[x*4+0] = b
			dstRow[x*4+1] = g
			dstRow[x*4+2] = r
			dstRow[x*4+3] = 0xFF
		}
	}

	return &decodedImage{width: width, height: height, pix: pix}, nil
}

// blitImage copies img into dst (an XRGB8888 framebuffer of the given
// stride) with its top-left corner at (startX, startY), clipping at the
// destination bounds. Negative offsets (an image larger than the surface,
// or a negative manifest offset) are clipped rather than rejected. The
// destination row width is taken as stride / bytesPerPixel.
func blitImage(dst []byte, stride int, startX, startY int, img *decodedImage) {
	x0, x1 := 0, img.width
	if startX < 0 {
		x0 = -startX
	}
	if w := stride / bytesPerPixel; startX+x1 > w {
		x1 = w - startX
	}
	for y := 0; y < img.height && x0 < x1; y++ {
		dy := startY + y
		if dy < 0 {
			continue
		}
		rowOff := dy*stride + (startX+x0)*bytesPerPixel
		rowLen := (x1 - x0) * bytesPerPixel
		if rowOff+rowLen > len(dst) {
			break
		}
		srcRow := img.pix[(y*img.width+x0)*bytesPerPixel:]
		copy(dst[rowOff:rowOff+rowLen], srcRow[:rowLen])
	}
}
