// Package backend implements the view decoder interfaces for PDF files.
//
// [PDF] opens documents with package reader, walks the page tree with
// package pages and paints tiles by running the page content through a
// graphicsstate.Interpreter onto a raster.Canvas:
//
//	v := view.New(backend.PDF{})
//	if err := v.Open("report.pdf", ""); err != nil {
//		// errors.Is(err, view.ErrPasswordNeeded) and friends
//	}
//
// Reader errors are translated into the view load error taxonomy. Content
// problems that do not prevent painting, such as a truncated content
// stream or an undecodable image, are logged at warning level through
// view.Logger and the tile is still returned.
package backend
