package view

import (
	"image"
	"math"

	"github.com/tsawler/pageview/model"
)

// pointsPerInch is the PDF reference resolution.
const pointsPerInch = 72

// Params holds the view parameters set by the foreground.
type Params struct {
	Zoom     Zoom
	Rotation int // degrees, always in [0, 360)
	DPIX     int
	DPIY     int
	Display  image.Point // display size in device pixels, at least 1x1
	Offset   image.Point // scroll offset in device pixels
	TileMax  image.Point // maximum tile size in device pixels
}

// DefaultParams returns zoom 1.0 at 160 DPI with 1024x1024 tiles.
func DefaultParams() Params {
	return Params{
		Zoom:    Explicit(1),
		DPIX:    160,
		DPIY:    160,
		Display: image.Pt(1, 1),
		TileMax: image.Pt(1024, 1024),
	}
}

// Metadata is derived from Params and the page box by ComputeMetadata.
type Metadata struct {
	// Transform maps page space to device space.
	Transform model.Matrix

	ScaleX, ScaleY float64

	// PageSize is the rendered page size in device pixels.
	PageSize image.Point

	// OffsetMax is the largest valid scroll offset per axis.
	OffsetMax image.Point

	ScrollX, ScrollY bool
}

// normalizeRotation maps any angle to [0, 360).
func normalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ComputeMetadata derives the page-to-device transform, rendered size and
// scroll bounds. It is a pure function; an invalid box yields zero metadata
// with an identity transform.
func ComputeMetadata(p Params, box model.PageBox, pageRotation int) Metadata {
	md := Metadata{Transform: model.Identity()}
	if !box.IsValid() {
		return md
	}

	pageWidth := box.Width()
	pageHeight := box.Height()
	rotation := normalizeRotation(pageRotation + p.Rotation)

	// Page space is bottom-up, device space top-down: mirror, then move
	// the page origin to (0, 0) and rotate.
	m := model.Scale(1, -1).
		Multiply(model.Translate(-box.Left, box.Top)).
		Multiply(model.RotateDegrees(rotation))

	// Shift the rotated page back into the positive quadrant.
	switch rotation {
	case 90:
		m = m.Multiply(model.Translate(pageHeight, 0))
	case 180:
		m = m.Multiply(model.Translate(pageWidth, pageHeight))
	case 270:
		m = m.Multiply(model.Translate(0, pageWidth))
	}

	if rotation%180 == 90 {
		pageWidth, pageHeight = pageHeight, pageWidth
	}

	display := p.Display
	if display.X < 1 {
		display.X = 1
	}
	if display.Y < 1 {
		display.Y = 1
	}

	var scaleX, scaleY float64
	switch p.Zoom.Mode() {
	case ZoomFitHeight:
		scaleX = float64(display.Y) / pageHeight
		scaleY = scaleX
	case ZoomFitWidth:
		scaleX = float64(display.X) / pageWidth
		scaleY = scaleX
	case ZoomFitPage:
		scaleX = math.Min(float64(display.X)/pageWidth, float64(display.Y)/pageHeight)
		scaleY = scaleX
	default:
		factor, _ := p.Zoom.Factor()
		scaleX = factor * float64(p.DPIX) / pointsPerInch
		scaleY = factor * float64(p.DPIY) / pointsPerInch
	}

	md.Transform = m.Multiply(model.Scale(scaleX, scaleY))
	md.ScaleX = scaleX
	md.ScaleY = scaleY
	md.PageSize = image.Pt(floorPixels(pageWidth*scaleX), floorPixels(pageHeight*scaleY))

	if md.PageSize.X > display.X {
		md.ScrollX = true
		md.OffsetMax.X = md.PageSize.X - display.X
	}
	if md.PageSize.Y > display.Y {
		md.ScrollY = true
		md.OffsetMax.Y = md.PageSize.Y - display.Y
	}

	return md
}

// ClampOffset limits off to [0, OffsetMax] on both axes.
func (md Metadata) ClampOffset(off image.Point) image.Point {
	return image.Pt(clamp(off.X, 0, md.OffsetMax.X), clamp(off.Y, 0, md.OffsetMax.Y))
}

// CenteredViewBox returns the tile to render: up to TileMax pixels per
// axis, centred on the visible area and clamped to the rendered page.
func CenteredViewBox(p Params, md Metadata) image.Rectangle {
	x0, x1 := centeredSpan(p.Offset.X, p.Display.X, p.TileMax.X, md.PageSize.X)
	y0, y1 := centeredSpan(p.Offset.Y, p.Display.Y, p.TileMax.Y, md.PageSize.Y)
	return image.Rect(x0, y0, x1, y1)
}

func centeredSpan(offset, display, tile, size int) (int, int) {
	if size <= 0 {
		return 0, 0
	}
	if tile <= 0 || size <= tile {
		return 0, size
	}
	start := clamp(offset-(tile-display)/2, 0, size-tile)
	return start, start + tile
}

// WithinViewBox reports whether the visible area at the current offset is
// fully covered by vb on every scrollable axis.
func WithinViewBox(p Params, md Metadata, vb image.Rectangle) bool {
	if md.ScrollX && (p.Offset.X+p.Display.X > vb.Max.X || p.Offset.X < vb.Min.X) {
		return false
	}
	if md.ScrollY && (p.Offset.Y+p.Display.Y > vb.Max.Y || p.Offset.Y < vb.Min.Y) {
		return false
	}
	return true
}

// pixelEpsilon absorbs floating point noise so that, for example, a fit-width
// page is exactly as wide as the display rather than one pixel narrower.
const pixelEpsilon = 1e-6

func floorPixels(v float64) int {
	return int(math.Floor(v + pixelEpsilon))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
