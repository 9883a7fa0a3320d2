// Package testutil provides fakes for the pipeline collaborators and helpers
// for synthetic bill pages.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderPage draws text lines on a white page, scaled up so OCR engines can
// read them.
func RenderPage(lines []string, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	width := 20
	for _, ln := range lines {
		if w := font.MeasureString(face, ln).Ceil() + 20; w > width {
			width = w
		}
	}
	lineHeight := 22
	height := lineHeight*len(lines) + 20

	small := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(small, small.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: small, Src: image.NewUniform(color.Black), Face: face}
	for i, ln := range lines {
		d.Dot = fixed.P(10, 10+lineHeight*(i+1)-6)
		d.DrawString(ln)
	}
	if scale == 1 {
		return small
	}

	big := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	for y := 0; y < big.Bounds().Dy(); y++ {
		for x := 0; x < big.Bounds().Dx(); x++ {
			big.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return big
}

// BlankPage returns a white page.
func BlankPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

// PNG encodes img.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// FakePDF is enough for PDF sniffing; only fake rasterizers can read it.
var FakePDF = []byte("%PDF-1.4\n% billparse test document\n")
