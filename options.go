package pageview

import (
	"image"
	"runtime"

	"github.com/tsawler/pageview/view"
)

// RenderOptions holds configuration for one-shot rendering.
type RenderOptions struct {
	// Page selection (1-indexed); nil means all pages
	pages []int

	password string

	// View parameters; zero DPI keeps the viewer default
	zoom       view.Zoom
	dpiX, dpiY int
	rotation   int

	// size is the output size; zero renders the whole page
	size image.Point

	// concurrency bounds the number of pages rendered at once
	concurrency int
}

// defaultOptions returns the default render options.
func defaultOptions() RenderOptions {
	return RenderOptions{
		zoom:        view.Explicit(1),
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// clone creates a deep copy of RenderOptions.
func (o RenderOptions) clone() RenderOptions {
	newOpts := o
	if o.pages != nil {
		newOpts.pages = make([]int, len(o.pages))
		copy(newOpts.pages, o.pages)
	}
	return newOpts
}

// viewOptions turns the options into viewer options.
func (o RenderOptions) viewOptions() []view.Option {
	opts := []view.Option{
		view.WithZoom(o.zoom),
		view.WithRotation(o.rotation),
		view.WithLazyDelay(0),
	}
	if o.dpiX > 0 && o.dpiY > 0 {
		opts = append(opts, view.WithDPI(o.dpiX, o.dpiY))
	}
	return opts
}
