package view

import (
	"fmt"
	"strconv"
	"strings"
)

// ZoomMode selects how the page scale is derived.
type ZoomMode int

const (
	// ZoomExplicit uses a caller supplied factor, multiplied by DPI/72.
	ZoomExplicit ZoomMode = iota
	// ZoomFitPage scales so the whole page is visible.
	ZoomFitPage
	// ZoomFitWidth scales the page width to the display width.
	ZoomFitWidth
	// ZoomFitHeight scales the page height to the display height.
	ZoomFitHeight
)

// Zoom is either an explicit positive factor or one of the fit modes.
// The zero value is not a valid zoom; use Explicit(1) for actual size.
type Zoom struct {
	mode   ZoomMode
	factor float64
}

// Explicit returns a zoom with a fixed factor; 1.0 renders the page at the
// configured DPI.
func Explicit(factor float64) Zoom {
	return Zoom{mode: ZoomExplicit, factor: factor}
}

// FitPage returns the zoom that shows the whole page.
func FitPage() Zoom { return Zoom{mode: ZoomFitPage} }

// FitWidth returns the zoom that fills the display width.
func FitWidth() Zoom { return Zoom{mode: ZoomFitWidth} }

// FitHeight returns the zoom that fills the display height.
func FitHeight() Zoom { return Zoom{mode: ZoomFitHeight} }

// Mode returns the zoom mode.
func (z Zoom) Mode() ZoomMode { return z.mode }

// Factor returns the explicit factor and true, or 0 and false for fit modes.
func (z Zoom) Factor() (float64, bool) {
	if z.mode != ZoomExplicit {
		return 0, false
	}
	return z.factor, true
}

// IsFit reports whether the scale is derived from the display size.
func (z Zoom) IsFit() bool { return z.mode != ZoomExplicit }

// Valid reports whether z can be applied to a page.
func (z Zoom) Valid() bool {
	switch z.mode {
	case ZoomFitPage, ZoomFitWidth, ZoomFitHeight:
		return true
	case ZoomExplicit:
		return z.factor > 0
	}
	return false
}

// String returns the textual form accepted by ParseZoom.
func (z Zoom) String() string {
	switch z.mode {
	case ZoomFitPage:
		return "fit"
	case ZoomFitWidth:
		return "fit-width"
	case ZoomFitHeight:
		return "fit-height"
	}
	return strconv.FormatFloat(z.factor, 'g', -1, 64)
}

// ParseZoom parses "fit", "fit-width", "fit-height" or a positive number.
// A trailing "%" reads the number as a percentage.
func ParseZoom(s string) (Zoom, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "fit", "fit-page", "page":
		return FitPage(), nil
	case "fit-width", "width":
		return FitWidth(), nil
	case "fit-height", "height":
		return FitHeight(), nil
	}

	percent := strings.HasSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return Zoom{}, fmt.Errorf("%w: zoom %q", ErrInvalidParameter, s)
	}
	if percent {
		f /= 100
	}
	z := Explicit(f)
	if !z.Valid() {
		return Zoom{}, fmt.Errorf("%w: zoom must be positive, got %q", ErrInvalidParameter, s)
	}
	return z, nil
}

// MarshalText implements encoding.TextMarshaler.
func (z Zoom) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (z *Zoom) UnmarshalText(text []byte) error {
	parsed, err := ParseZoom(string(text))
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}
