//go:build ignore

// genfont.go prints a Go glyph table generated from a bitmap font source
// (a plain 8x16-per-glyph PNG strip), the offline-tool analogue of the
// teacher's tools/font2rgba.go. Not part of the daemon build; run with
// `go run tools/genfont.go <strip.png>`. The output declares a
// generatedGlyphs map, which nothing in the daemon reads: font_glyphs.go
// builds its table with buildGlyphTable.
package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: genfont <strip.png>")
		os.Exit(1)
	}
	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	const cellW, cellH = 8, 16
	bounds := img.Bounds()
	cols := bounds.Dx() / cellW
	rows := bounds.Dy() / cellH

	fmt.Println("// Code generated by tools/genfont.go; DO NOT EDIT.")
	fmt.Println("package main")
	fmt.Println()
	fmt.Println("var generatedGlyphs = map[int][16]byte{")
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			codepoint := row*cols + col
			var bitmap [cellH]byte
			for y := 0; y < cellH; y++ {
				var b byte
				for x := 0; x < cellW; x++ {
					px := image.Pt(col*cellW+x, row*cellH+y)
					r, g, bch, _ := img.At(px.X, px.Y).RGBA()
					if r+g+bch > 0 {
						b |= 0x80 >> uint(x)
					}
				}
				bitmap[y] = b
			}
			fmt.Printf("\t0x%04X: {", codepoint)
			for _, b := range bitmap {
				fmt.Printf("0x%02X, ", b)
			}
			fmt.Println("},")
		}
	}
	fmt.Println("}")
}
