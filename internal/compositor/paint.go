package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// Palette used for generated content. Kept muted so operator-facing
// placeholders are visibly distinct from real content.
var (
	colorBackground = color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	colorIdle       = color.RGBA{R: 0x1c, G: 0x24, B: 0x38, A: 0xff}
	colorNoContent  = color.RGBA{R: 0x26, G: 0x1a, B: 0x2e, A: 0xff}
	colorCameraTile = color.RGBA{R: 0x2a, G: 0x3d, B: 0x4f, A: 0xff}
	colorVideoTile  = color.RGBA{R: 0x31, G: 0x2b, B: 0x3f, A: 0xff}
	colorErrorTile  = color.RGBA{R: 0x66, G: 0x1f, B: 0x1f, A: 0xff}
	colorBorder     = color.RGBA{R: 0x8a, G: 0x9b, B: 0xae, A: 0xff}
	colorText       = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	colorLive       = color.RGBA{R: 0xd0, G: 0x21, B: 0x2f, A: 0xff}
)

// fillRect fills a rectangle with the given colour at the given opacity.
func fillRect(dst *image.RGBA, rect image.Rectangle, col color.RGBA, opacity float64) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), image.NewUniform(scaleColor(col, opacity)), image.Point{}, draw.Over)
}

// drawBorder strokes the inside edge of a rectangle.
func drawBorder(dst *image.RGBA, rect image.Rectangle, col color.RGBA, thickness int) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}

	top := image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness)
	bottom := image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y)
	left := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y)
	right := image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y)

	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		fillRect(dst, edge, col, 1)
	}
}

// drawText renders a single line of text with the built-in bitmap face. The
// y coordinate is the text baseline.
func drawText(dst *image.RGBA, x, y int, text string, col color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawTextCentered renders a single line of text horizontally centered in
// the given rectangle.
func drawTextCentered(dst *image.RGBA, rect image.Rectangle, text string, col color.RGBA) {
	width := font.MeasureString(basicfont.Face7x13, text).Ceil()
	x := rect.Min.X + (rect.Dx()-width)/2
	y := rect.Min.Y + rect.Dy()/2 + basicfont.Face7x13.Ascent/2
	drawText(dst, x, y, text, col)
}

// drawImageScaled scales an image into the destination rectangle, applying
// a uniform opacity.
func drawImageScaled(dst *image.RGBA, src image.Image, rect image.Rectangle, opacity float64) {
	if opacity >= 1 {
		xdraw.ApproxBiLinear.Scale(dst, rect, src, src.Bounds(), xdraw.Over, nil)
		return
	}

	tmp := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.ApproxBiLinear.Scale(tmp, tmp.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	mask := image.NewUniform(color.Alpha{A: scaleAlpha(0xff, opacity)})
	draw.DrawMask(dst, rect.Intersect(dst.Bounds()), tmp, image.Point{}, mask, image.Point{}, draw.Over)
}

// drawImageRotated draws an image scaled into rect and rotated about the
// rect's center, applying a uniform opacity.
func drawImageRotated(dst *image.RGBA, src image.Image, rect image.Rectangle, rotationDeg, opacity float64) {
	m := transformMatrix(rect, src.Bounds(), rotationDeg)

	var opts *xdraw.Options
	if opacity < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: scaleAlpha(0xff, opacity)})}
	}
	xdraw.ApproxBiLinear.Transform(dst, m, src, src.Bounds(), xdraw.Over, opts)
}

// transformMatrix maps srcBounds onto rect, scaled to fill it and rotated by
// rotationDeg degrees clockwise about the rect's center.
func transformMatrix(rect, srcBounds image.Rectangle, rotationDeg float64) f64.Aff3 {
	sx := float64(rect.Dx()) / float64(srcBounds.Dx())
	sy := float64(rect.Dy()) / float64(srcBounds.Dy())
	bx := float64(rect.Min.X) - sx*float64(srcBounds.Min.X)
	by := float64(rect.Min.Y) - sy*float64(srcBounds.Min.Y)
	cx := float64(rect.Min.X) + float64(rect.Dx())/2
	cy := float64(rect.Min.Y) + float64(rect.Dy())/2

	sin, cos := math.Sincos(rotationDeg * math.Pi / 180)

	return f64.Aff3{
		cos * sx, -sin * sy, cos*(bx-cx) - sin*(by-cy) + cx,
		sin * sx, cos * sy, sin*(bx-cx) + cos*(by-cy) + cy,
	}
}

// parseHexColor parses a colour of the form "#rrggbb", falling back to the
// default text colour on malformed input.
func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return colorText
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// scaleColor applies an opacity to an alpha-premultiplied colour. All four
// channels scale together to keep the colour valid under draw.Over.
func scaleColor(col color.RGBA, opacity float64) color.RGBA {
	if opacity >= 1 {
		return col
	}
	if opacity <= 0 {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(float64(col.R) * opacity),
		G: uint8(float64(col.G) * opacity),
		B: uint8(float64(col.B) * opacity),
		A: uint8(float64(col.A) * opacity),
	}
}

func scaleAlpha(a uint8, opacity float64) uint8 {
	if opacity >= 1 {
		return a
	}
	if opacity <= 0 {
		return 0
	}
	return uint8(float64(a) * opacity)
}
