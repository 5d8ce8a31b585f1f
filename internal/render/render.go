// Package render draws character sequences as colored text images, with each
// character tinted by the activation of a chosen neuron.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/samcharles93/mlstm/internal/charset"
)

const (
	// DefaultWidth is the canvas width in pixels.
	DefaultWidth = 500
	// DefaultNeuronRange is the activation magnitude mapped to full saturation.
	DefaultNeuronRange = 0.8

	margin     = 10
	topOffset  = 5
	lineHeight = 12
	// bottom pad below the last line's origin.
	bottomPad = margin + 7
)

var Black = color.RGBA{A: 255}

// Glyph is one character with its draw color.
type Glyph struct {
	Code  byte
	Color color.RGBA
}

// NeuronColor maps an activation onto a red/green scale. Values are clamped to
// [-rng, rng]; negative activations are red, positive green, zero yellow.
func NeuronColor(v, rng float32) color.RGBA {
	if rng <= 0 {
		rng = DefaultNeuronRange
	}
	if v != v {
		v = 0
	}
	t := max(-rng, min(v, rng))
	g := uint8(math.Round(float64((t + rng) / (2 * rng) * 255)))
	r := 255 - g
	switch {
	case r > g:
		return color.RGBA{R: r, A: 255}
	case g > r:
		return color.RGBA{G: g, A: 255}
	default:
		return color.RGBA{R: r, G: g, A: 255}
	}
}

// Colorize pairs codes with the colors of their activations. The result has
// the length of the shorter input.
func Colorize(codes []byte, activations []float32, rng float32) []Glyph {
	n := min(len(codes), len(activations))
	out := make([]Glyph, n)
	for i := range n {
		out[i] = Glyph{Code: codes[i], Color: NeuronColor(activations[i], rng)}
	}
	return out
}

// Plain renders every code in black.
func Plain(codes []byte) []Glyph {
	out := make([]Glyph, len(codes))
	for i, c := range codes {
		out[i] = Glyph{Code: c, Color: Black}
	}
	return out
}

func advance(c byte) (w, pad int) {
	if c == ' ' {
		return 7, 0
	}
	return 5, 2
}

// Layout returns the top-left origin of each character and the canvas height
// needed to hold them at the given width.
func Layout(codes []byte, width int) ([]image.Point, int) {
	if len(codes) == 0 {
		return nil, topOffset + bottomPad
	}
	first, _ := advance(codes[0])
	x, y := margin-first, topOffset
	pts := make([]image.Point, len(codes))
	for i, c := range codes {
		w, pad := advance(c)
		if x+w > width-margin {
			x = margin + pad
			y += lineHeight
		} else {
			x += w + pad
		}
		pts[i] = image.Pt(x, y)
	}
	return pts, y + bottomPad
}

// Draw renders glyphs on a white canvas of the given width.
func Draw(glyphs []Glyph, width int) *image.RGBA {
	if width <= 0 {
		width = DefaultWidth
	}
	codes := make([]byte, len(glyphs))
	for i, g := range glyphs {
		codes[i] = g.Code
	}
	pts, height := Layout(codes, width)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for i, g := range glyphs {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(g.Color),
			Face: face,
			Dot:  fixed.P(pts[i].X, pts[i].Y+face.Ascent),
		}
		d.DrawString(string(charset.Rune(g.Code)))
	}
	return img
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// WritePNG saves img to path.
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
