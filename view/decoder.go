package view

import (
	"image"

	"github.com/tsawler/pageview/model"
)

// Decoder opens documents. Implementations wrap the load errors declared in
// this package (ErrPasswordNeeded, ErrWrongPassword, ...) so the viewer can
// report them unchanged.
type Decoder interface {
	Open(path, password string) (Document, error)
}

// Document is an open document handle.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// LoadPage opens the page with the given 1-based number.
	LoadPage(number int) (Page, error)

	// Close releases the handle. Closing twice is a no-op.
	Close() error
}

// Page is an open page handle.
type Page interface {
	// Number returns the 1-based page number.
	Number() int

	// Box returns the intrinsic page box in page space.
	Box() model.PageBox

	// Rotation returns the intrinsic page rotation in degrees.
	Rotation() int

	// Render draws the part of the page selected by clip, in device
	// coordinates after applying m, into an image the size of clip. The
	// returned image's bounds start at (0, 0). dst is reused when it has
	// the right size and may be nil.
	Render(dst *image.RGBA, clip image.Rectangle, m model.Matrix) (*image.RGBA, error)

	// Close releases the handle. Closing twice is a no-op.
	Close() error
}
