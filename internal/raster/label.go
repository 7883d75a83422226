package raster

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const labelPadding = 3

// drawLabel returns a copy of img with label printed on a dark backing box.
func drawLabel(img image.Image, label string) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	box := image.Rect(0, 0, width+2*labelPadding, height+2*labelPadding).Intersect(out.Bounds())
	draw.Draw(out, box, image.NewUniform(color.RGBA{A: 200}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(labelPadding, labelPadding+metrics.Ascent.Ceil()),
	}
	d.DrawString(label)
	return out
}
