package graphicsstate

import (
	"errors"
	"image/color"
	"math"

	"github.com/tsawler/pageview/model"
	"github.com/tsawler/pageview/reader"
)

// ErrStackUnderflow is returned by Restore without a matching Save.
var ErrStackUnderflow = errors.New("graphicsstate: restore without save")

// LineCap is the shape at the ends of open stroked subpaths.
type LineCap int

const (
	ButtCap LineCap = iota
	RoundCap
	SquareCap
)

// LineJoin is the shape at the corners of stroked paths.
type LineJoin int

const (
	MiterJoin LineJoin = iota
	RoundJoin
	BevelJoin
)

// RGB is a colour with components in the 0-1 range.
type RGB struct {
	R, G, B float64
}

// Black is the initial fill and stroke colour.
var Black = RGB{}

// GraphicsState holds the parameters of the PDF graphics state that affect
// painting.
type GraphicsState struct {
	CTM model.Matrix

	LineWidth  float64
	LineCap    LineCap
	LineJoin   LineJoin
	MiterLimit float64
	Dash       []float64
	DashPhase  float64

	StrokeColor RGB
	FillColor   RGB
	StrokeAlpha float64
	FillAlpha   float64

	// Colour spaces for SC and sc. A pattern space has no usable colour
	// and leaves the previous one in place.
	StrokeSpace   *reader.ColorSpace
	FillSpace     *reader.ColorSpace
	strokePattern bool
	fillPattern   bool

	stack []GraphicsState
}

// NewGraphicsState creates a new graphics state with default values
func NewGraphicsState(ctm model.Matrix) *GraphicsState {
	return &GraphicsState{
		CTM:         ctm,
		LineWidth:   1.0,
		MiterLimit:  10,
		StrokeAlpha: 1,
		FillAlpha:   1,
		StrokeSpace: reader.DeviceGray(),
		FillSpace:   reader.DeviceGray(),
	}
}

// Save pushes the current graphics state onto the stack (q operator)
func (gs *GraphicsState) Save() {
	saved := *gs
	saved.stack = nil
	saved.Dash = append([]float64(nil), gs.Dash...)
	gs.stack = append(gs.stack, saved)
}

// Restore pops a graphics state from the stack (Q operator)
func (gs *GraphicsState) Restore() error {
	if len(gs.stack) == 0 {
		return ErrStackUnderflow
	}
	saved := gs.stack[len(gs.stack)-1]
	stack := gs.stack[:len(gs.stack)-1]
	*gs = saved
	gs.stack = stack
	return nil
}

// Depth returns the number of saved states.
func (gs *GraphicsState) Depth() int {
	return len(gs.stack)
}

// Concat prepends m to the CTM (cm operator): m maps the new user space
// into the current one.
func (gs *GraphicsState) Concat(m model.Matrix) {
	gs.CTM = m.Multiply(gs.CTM)
}

// DeviceLineWidth returns the line width in device units. Zero width lines
// are one device unit wide.
func (gs *GraphicsState) DeviceLineWidth() float64 {
	return math.Max(gs.LineWidth*gs.CTM.ScaleFactor(), 1)
}

// StrokeStyle returns the stroke parameters in device units.
func (gs *GraphicsState) StrokeStyle() StrokeStyle {
	scale := gs.CTM.ScaleFactor()
	var dash []float64
	if len(gs.Dash) > 0 {
		dash = make([]float64, len(gs.Dash))
		for i, d := range gs.Dash {
			dash[i] = d * scale
		}
	}
	return StrokeStyle{
		Width:      gs.DeviceLineWidth(),
		Cap:        gs.LineCap,
		Join:       gs.LineJoin,
		MiterLimit: gs.MiterLimit,
		Dash:       dash,
		DashPhase:  gs.DashPhase * scale,
	}
}

// FillPaint returns the fill colour with the fill alpha applied.
func (gs *GraphicsState) FillPaint() color.NRGBA {
	return toNRGBA(gs.FillColor, gs.FillAlpha)
}

// StrokePaint returns the stroke colour with the stroke alpha applied.
func (gs *GraphicsState) StrokePaint() color.NRGBA {
	return toNRGBA(gs.StrokeColor, gs.StrokeAlpha)
}

func toNRGBA(c RGB, alpha float64) color.NRGBA {
	return color.NRGBA{R: unit8(c.R), G: unit8(c.G), B: unit8(c.B), A: unit8(alpha)}
}

// unit8 maps 0-1 to 0-255.
func unit8(f float64) uint8 {
	switch {
	case f <= 0 || math.IsNaN(f):
		return 0
	case f >= 1:
		return 255
	}
	return uint8(f*255 + 0.5)
}

// StrokeStyle describes how a path is stroked, in device units.
type StrokeStyle struct {
	Width      float64
	Cap        LineCap
	Join       LineJoin
	MiterLimit float64
	Dash       []float64
	DashPhase  float64
}
