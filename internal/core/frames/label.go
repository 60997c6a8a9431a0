package frames

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label returns a copy of img with text stamped in the top-left corner on a dark plate
func Label(img image.Image, text string) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	face := basicfont.Face7x13
	const pad = 4
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()
	plate := image.Rect(b.Min.X, b.Min.Y, b.Min.X+w+2*pad, b.Min.Y+h+2*pad).Intersect(b)
	draw.Draw(dst, plate, image.NewUniform(color.RGBA{0, 0, 0, 160}), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(b.Min.X+pad, b.Min.Y+pad+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return dst
}
