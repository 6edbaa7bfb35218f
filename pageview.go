// Package pageview renders PDF pages, either interactively through a
// view.Viewer or in one shot through a fluent Renderer.
//
// Interactive use:
//
//	v := pageview.New(view.WithDPI(96, 96), view.WithRenderListener(repaint))
//	defer v.Close()
//	if err := v.Open("document.pdf", ""); err != nil {
//	    // handle error
//	}
//	v.StartRendering(800, 600)
//
// One-shot rendering:
//
//	pages, err := pageview.Open("document.pdf").
//	    Pages(1, 2).
//	    DPI(144, 144).
//	    Render(ctx)
//
// For lower-level access, the reader, pages and graphicsstate packages are
// also available.
package pageview

import (
	"github.com/tsawler/pageview/backend"
	"github.com/tsawler/pageview/view"
)

// New creates a viewer backed by the PDF decoder. Call Close on it when
// done to stop its render worker.
func New(opts ...view.Option) *view.Viewer {
	return view.New(backend.PDF{}, opts...)
}

// Open returns a Renderer for the PDF file at filename. Nothing is read
// until a terminal operation such as Render or PageCount is called.
//
// Example:
//
//	pages, err := pageview.Open("document.pdf").Render(ctx)
func Open(filename string) *Renderer {
	return &Renderer{
		filename: filename,
		options:  defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	count := pageview.Must(pageview.Open("document.pdf").PageCount())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
