// Package view schedules asynchronous, incremental rendering of one page of
// a document for interactive display.
//
// A [Viewer] owns the view parameters (zoom, rotation, DPI, display size,
// scroll offset, tile limits), derives the page-to-device transform from
// them, and runs a single background worker that renders the tile around
// the visible area into one of two alternating buffers.
//
// # Render Requests
//
// Discrete actions (opening a document or page, changing zoom, rotation,
// DPI or tile size) request a render immediately. Scrolling requests a
// debounced ("lazy") render, and only when the visible area leaves the
// tile already rendered. Requests never queue: a newer request replaces a
// pending one, and a debounced request restarts its delay when superseded.
//
//	v := view.New(backend.PDF{}, view.WithZoom(view.FitWidth()))
//	defer v.Close()
//	v.SetRenderListener(func() {
//	    if rv, ok := v.Current(); ok {
//	        display(rv.Image, rv.ViewBox)
//	    }
//	})
//	v.StartRendering(800, 600)
//	if err := v.Open("report.pdf", ""); err != nil {
//	    // errors.Is(err, view.ErrPasswordNeeded), ...
//	}
//	v.SetOffset(0, 40, true) // scroll
//
// # Errors
//
// Load failures are returned synchronously and wrap one of the sentinel
// errors declared here. Render failures are logged and leave the previous
// buffer current.
//
// # Decoders
//
// Documents are opened through the [Decoder] interface; see package backend
// for the PDF implementation.
package view
