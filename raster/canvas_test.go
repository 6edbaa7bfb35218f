package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/tsawler/pageview/graphicsstate"
	"github.com/tsawler/pageview/model"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

func newCanvas(w, h int) *Canvas {
	c := NewCanvas(image.NewRGBA(image.Rect(0, 0, w, h)))
	c.Clear(color.White)
	return c
}

func rectPath(x0, y0, x1, y1 float64) *graphicsstate.Path {
	p := graphicsstate.NewPath()
	p.Rectangle(x0, y0, x1-x0, y1-y0)
	return p
}

func assertPixel(t *testing.T, img *image.RGBA, x, y int, want color.RGBA) {
	t.Helper()
	if got := img.RGBAAt(x, y); got != want {
		t.Errorf("pixel (%d, %d) = %v, want %v", x, y, got, want)
	}
}

func TestTarget(t *testing.T) {
	prev := image.NewRGBA(image.Rect(0, 0, 4, 3))
	if Target(prev, image.Pt(4, 3)) != prev {
		t.Error("Target did not reuse an image of the right size")
	}
	if got := Target(prev, image.Pt(5, 3)); got == prev || got.Bounds().Size() != image.Pt(5, 3) {
		t.Errorf("Target(wrong size) = %v", got.Bounds())
	}
	if got := Target(nil, image.Pt(2, 2)); got.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("Target(nil) bounds = %v", got.Bounds())
	}
}

func TestFill(t *testing.T) {
	c := newCanvas(10, 10)
	c.Fill(rectPath(2, 2, 8, 8), false, red)

	img := c.Image()
	assertPixel(t, img, 5, 5, color.RGBA{R: 255, A: 255})
	assertPixel(t, img, 2, 2, color.RGBA{R: 255, A: 255})
	assertPixel(t, img, 0, 0, white)
	assertPixel(t, img, 9, 9, white)
}

func TestFillFarOutsideCanvas(t *testing.T) {
	c := newCanvas(8, 8)
	c.Fill(rectPath(-1e7, -1e7, 1e7, 1e7), false, blue)
	for _, pt := range []image.Point{{0, 0}, {7, 7}, {3, 5}} {
		assertPixel(t, c.Image(), pt.X, pt.Y, color.RGBA{B: 255, A: 255})
	}

	c = newCanvas(8, 8)
	c.Fill(rectPath(100, 100, 200, 200), false, blue)
	assertPixel(t, c.Image(), 7, 7, white)
}

func TestFillTransparentIsNoop(t *testing.T) {
	c := newCanvas(4, 4)
	c.Fill(rectPath(0, 0, 4, 4), false, color.NRGBA{R: 255})
	assertPixel(t, c.Image(), 1, 1, white)
}

func TestStroke(t *testing.T) {
	c := newCanvas(10, 10)
	p := graphicsstate.NewPath()
	p.MoveTo(1, 5)
	p.LineTo(9, 5)
	c.Stroke(p, graphicsstate.StrokeStyle{Width: 2, MiterLimit: 10}, black)

	img := c.Image()
	assertPixel(t, img, 5, 4, color.RGBA{A: 255})
	assertPixel(t, img, 5, 5, color.RGBA{A: 255})
	assertPixel(t, img, 5, 7, white)
	// Butt caps stop at the end points.
	assertPixel(t, img, 0, 5, white)
}

func TestStrokePolygonCounts(t *testing.T) {
	square := []graphicsstate.Subpath{{
		Points: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		Closed: true,
	}}
	line := []graphicsstate.Subpath{{Points: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}}}
	dot := []graphicsstate.Subpath{{Points: []model.Point{{X: 3, Y: 3}, {X: 3, Y: 3}}}}

	tests := []struct {
		name     string
		subpaths []graphicsstate.Subpath
		style    graphicsstate.StrokeStyle
		want     int
	}{
		{"closed square", square, graphicsstate.StrokeStyle{Width: 2, MiterLimit: 10}, 8},
		{"round caps", line, graphicsstate.StrokeStyle{Width: 2, Cap: graphicsstate.RoundCap}, 3},
		{"square caps", line, graphicsstate.StrokeStyle{Width: 2, Cap: graphicsstate.SquareCap}, 1},
		{"dashed line", line, graphicsstate.StrokeStyle{Width: 1, Dash: []float64{2, 2}}, 3},
		{"dot with butt cap", dot, graphicsstate.StrokeStyle{Width: 2}, 0},
		{"dot with round cap", dot, graphicsstate.StrokeStyle{Width: 2, Cap: graphicsstate.RoundCap}, 1},
		{"zero width", line, graphicsstate.StrokeStyle{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(strokePolygons(tt.subpaths, tt.style)); got != tt.want {
				t.Errorf("polygons = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStrokePolygonsWindSameWay(t *testing.T) {
	sub := []graphicsstate.Subpath{{Points: []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 5}}}}
	for i, poly := range strokePolygons(sub, graphicsstate.StrokeStyle{Width: 3, MiterLimit: 10, Cap: graphicsstate.RoundCap}) {
		area := 0.0
		for j := range poly {
			a, b := poly[j], poly[(j+1)%len(poly)]
			area += a.X*b.Y - b.X*a.Y
		}
		if area < 0 {
			t.Errorf("polygon %d winds the other way", i)
		}
	}
}

func TestDashPolyline(t *testing.T) {
	line := []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}
	tests := []struct {
		name   string
		dash   []float64
		phase  float64
		starts []float64
	}{
		{"even pattern", []float64{2, 2}, 0, []float64{0, 4, 8}},
		{"with phase", []float64{2, 2}, 1, []float64{0, 3, 7}},
		{"odd pattern", []float64{3}, 0, []float64{0, 6}},
		{"phase past period", []float64{2, 2}, 9, []float64{0, 3, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces := dashPolyline(line, tt.dash, tt.phase)
			if len(pieces) != len(tt.starts) {
				t.Fatalf("pieces = %v, want starts %v", pieces, tt.starts)
			}
			for i, p := range pieces {
				if p[0].X != tt.starts[i] {
					t.Errorf("piece %d starts at %v, want %v", i, p[0].X, tt.starts[i])
				}
			}
		})
	}

	// Dashes continue around corners.
	corner := []model.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 3}}
	pieces := dashPolyline(corner, []float64{4, 1}, 0)
	if len(pieces) != 2 || len(pieces[0]) != 3 {
		t.Errorf("corner pieces = %v", pieces)
	}
}

func TestClipPolygon(t *testing.T) {
	r := rect{minX: 0, minY: 0, maxX: 10, maxY: 10}
	tri := []model.Point{{X: -10, Y: 5}, {X: 5, Y: -10}, {X: 20, Y: 20}}
	out := r.polygon(tri)
	if len(out) < 3 {
		t.Fatalf("clipped triangle vanished: %v", out)
	}
	for _, p := range out {
		if p.X < -1e-9 || p.X > 10+1e-9 || p.Y < -1e-9 || p.Y > 10+1e-9 {
			t.Errorf("point %v outside clip rectangle", p)
		}
	}
	if got := r.polygon([]model.Point{{X: 20, Y: 20}, {X: 30, Y: 20}, {X: 30, Y: 30}}); len(got) != 0 {
		t.Errorf("outside polygon clipped to %v, want nothing", got)
	}
}

func uniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDrawImage(t *testing.T) {
	c := newCanvas(10, 10)
	src := uniformRGBA(2, 2, color.RGBA{R: 255, A: 255})
	c.DrawImage(src, model.Scale(5, 5), 1)
	assertPixel(t, c.Image(), 2, 2, color.RGBA{R: 255, A: 255})
	assertPixel(t, c.Image(), 7, 7, color.RGBA{R: 255, A: 255})

	c = newCanvas(10, 10)
	c.DrawImage(src, model.Scale(5, 5).Multiply(model.Translate(10, 0)), 1)
	assertPixel(t, c.Image(), 2, 2, white)
}

func TestDrawImageAlpha(t *testing.T) {
	c := newCanvas(4, 4)
	c.DrawImage(uniformRGBA(1, 1, color.RGBA{A: 255}), model.Scale(4, 4), 0.5)
	got := c.Image().RGBAAt(2, 2)
	if got.R < 120 || got.R > 135 || got.A != 255 {
		t.Errorf("half transparent black over white = %v, want mid gray", got)
	}
}

func TestFillMask(t *testing.T) {
	mask := image.NewAlpha(image.Rect(0, 0, 2, 1))
	mask.SetAlpha(0, 0, color.Alpha{A: 255})
	c := newCanvas(20, 10)
	c.FillMask(mask, model.Scale(10, 10), blue)

	assertPixel(t, c.Image(), 3, 5, color.RGBA{B: 255, A: 255})
	assertPixel(t, c.Image(), 17, 5, white)
}

func TestDegenerateImageMatrix(t *testing.T) {
	c := newCanvas(4, 4)
	c.DrawImage(uniformRGBA(1, 1, color.RGBA{A: 255}), model.Matrix{1, 0, 2, 0, 0, 0}, 1)
	assertPixel(t, c.Image(), 1, 1, white)
}
