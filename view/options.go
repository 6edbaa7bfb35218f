package view

import (
	"image"
	"time"
)

// DefaultLazyDelay is the debounce applied to scroll-driven renders.
const DefaultLazyDelay = 250 * time.Millisecond

// Option configures a Viewer.
type Option func(*options)

type options struct {
	params    Params
	lazyDelay time.Duration
	listener  func()
}

// defaultOptions returns the default viewer configuration.
func defaultOptions() options {
	return options{
		params:    DefaultParams(),
		lazyDelay: DefaultLazyDelay,
	}
}

// WithDPI sets the display resolution. Non-positive values are ignored.
func WithDPI(x, y int) Option {
	return func(o *options) {
		if x > 0 && y > 0 {
			o.params.DPIX = x
			o.params.DPIY = y
		}
	}
}

// WithTileMax sets the maximum tile size. Non-positive values are ignored.
func WithTileMax(x, y int) Option {
	return func(o *options) {
		if x > 0 && y > 0 {
			o.params.TileMax = image.Pt(x, y)
		}
	}
}

// WithZoom sets the initial zoom. Invalid zooms are ignored.
func WithZoom(z Zoom) Option {
	return func(o *options) {
		if z.Valid() {
			o.params.Zoom = z
		}
	}
}

// WithRotation sets the initial rotation in degrees.
func WithRotation(deg int) Option {
	return func(o *options) {
		o.params.Rotation = normalizeRotation(deg)
	}
}

// WithLazyDelay sets the debounce used for scroll-driven renders.
func WithLazyDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.lazyDelay = d
		}
	}
}

// WithRenderListener registers the completion callback.
func WithRenderListener(fn func()) Option {
	return func(o *options) {
		o.listener = fn
	}
}
