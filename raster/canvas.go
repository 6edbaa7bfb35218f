package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/tsawler/pageview/graphicsstate"
	"github.com/tsawler/pageview/model"
)

// flatness is the curve flattening tolerance in device pixels.
const flatness = 0.25

// Canvas paints onto an RGBA image whose bounds start at (0, 0).
type Canvas struct {
	dst  *image.RGBA
	rast *vector.Rasterizer
}

var _ graphicsstate.Painter = (*Canvas)(nil)

// NewCanvas creates a canvas drawing into dst.
func NewCanvas(dst *image.RGBA) *Canvas {
	size := dst.Bounds().Size()
	return &Canvas{dst: dst, rast: vector.NewRasterizer(size.X, size.Y)}
}

// Target returns dst if it is non-nil and has the given size, or a new
// image of that size.
func Target(dst *image.RGBA, size image.Point) *image.RGBA {
	if dst != nil && dst.Bounds() == (image.Rectangle{Max: size}) {
		return dst
	}
	return image.NewRGBA(image.Rectangle{Max: size})
}

// Image returns the destination image.
func (c *Canvas) Image() *image.RGBA {
	return c.dst
}

// Clear fills the whole canvas with col.
func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Fill fills p with col. evenOdd is accepted but rendered as nonzero.
func (c *Canvas) Fill(p *graphicsstate.Path, evenOdd bool, col color.NRGBA) {
	if col.A == 0 {
		return
	}
	var polys [][]model.Point
	for _, sp := range p.Flatten(flatness) {
		polys = append(polys, sp.Points)
	}
	c.fillPolygons(polys, col)
}

// Stroke strokes p with col.
func (c *Canvas) Stroke(p *graphicsstate.Path, style graphicsstate.StrokeStyle, col color.NRGBA) {
	if col.A == 0 {
		return
	}
	c.fillPolygons(strokePolygons(p.Flatten(flatness), style), col)
}

// DrawImage draws img with m mapping pixel space to device space.
func (c *Canvas) DrawImage(img image.Image, m model.Matrix, alpha float64) {
	if alpha <= 0 || degenerate(m) {
		return
	}
	var opts *draw.Options
	if alpha < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})}
	}
	draw.BiLinear.Transform(c.dst, aff3(m), img, img.Bounds(), draw.Over, opts)
}

// FillMask paints col through mask with m mapping mask pixels to device
// space.
func (c *Canvas) FillMask(mask image.Image, m model.Matrix, col color.NRGBA) {
	if col.A == 0 || degenerate(m) {
		return
	}
	opts := &draw.Options{SrcMask: mask, SrcMaskP: mask.Bounds().Min}
	draw.BiLinear.Transform(c.dst, aff3(m), image.NewUniform(col), mask.Bounds(), draw.Over, opts)
}

// fillPolygons rasterizes closed polygons with the nonzero rule.
func (c *Canvas) fillPolygons(polys [][]model.Point, col color.NRGBA) {
	bounds := c.dst.Bounds()
	// One pixel of slack keeps clipped edges from showing antialiasing.
	clip := rect{
		minX: float64(bounds.Min.X) - 1, minY: float64(bounds.Min.Y) - 1,
		maxX: float64(bounds.Max.X) + 1, maxY: float64(bounds.Max.Y) + 1,
	}

	size := bounds.Size()
	c.rast.Reset(size.X, size.Y)
	drawn := false
	for _, poly := range polys {
		poly = clip.polygon(poly)
		if len(poly) < 3 {
			continue
		}
		c.rast.MoveTo(float32(poly[0].X), float32(poly[0].Y))
		for _, pt := range poly[1:] {
			c.rast.LineTo(float32(pt.X), float32(pt.Y))
		}
		c.rast.ClosePath()
		drawn = true
	}
	if !drawn {
		return
	}
	c.rast.Draw(c.dst, bounds, image.NewUniform(col), image.Point{})
}

func aff3(m model.Matrix) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

func degenerate(m model.Matrix) bool {
	det := m[0]*m[3] - m[1]*m[2]
	return math.Abs(det) < 1e-12 || math.IsNaN(det) || math.IsInf(det, 0)
}
