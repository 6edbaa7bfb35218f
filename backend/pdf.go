package backend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/tsawler/pageview/graphicsstate"
	"github.com/tsawler/pageview/model"
	"github.com/tsawler/pageview/pages"
	"github.com/tsawler/pageview/raster"
	"github.com/tsawler/pageview/reader"
	"github.com/tsawler/pageview/view"
)

// errClosed is returned for handles used after Close.
var errClosed = errors.New("backend: handle is closed")

// PDF is a view.Decoder for PDF files.
type PDF struct{}

var _ view.Decoder = PDF{}

// Open opens the PDF file at path, decrypting it with password if needed.
func (PDF) Open(path, password string) (view.Document, error) {
	r, err := reader.OpenWithPassword(path, password)
	if err != nil {
		return nil, translate(err)
	}
	count, err := r.PageCount()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %v", view.ErrLoadFailed, err)
	}

	view.Logger().Info("document opened",
		"path", path,
		"version", r.Version().String(),
		"pages", count,
		"encrypted", r.Encrypted(),
		"repaired", r.Repaired())
	return &document{r: r, count: count}, nil
}

// translate maps reader errors onto the view load errors.
func translate(err error) error {
	switch {
	case errors.Is(err, reader.ErrPasswordRequired):
		return fmt.Errorf("%w: %v", view.ErrPasswordNeeded, err)
	case errors.Is(err, reader.ErrWrongPassword):
		return fmt.Errorf("%w: %v", view.ErrWrongPassword, err)
	case errors.Is(err, reader.ErrRepairFailed):
		return fmt.Errorf("%w: %v", view.ErrCannotRepair, err)
	case errors.Is(err, reader.ErrUnsupportedEncryption):
		return fmt.Errorf("%w: %v", view.ErrCannotDecryptXref, err)
	}
	return fmt.Errorf("%w: %v", view.ErrLoadFailed, err)
}

// document serializes access to the reader, which is not safe for
// concurrent use, across the document and its pages.
type document struct {
	mu     sync.Mutex
	r      *reader.Reader
	count  int
	closed bool
}

func (d *document) PageCount() int {
	return d.count
}

func (d *document) LoadPage(number int) (view.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("%w: %v", view.ErrLoadFailed, errClosed)
	}
	if number < 1 || number > d.count {
		return nil, fmt.Errorf("%w: page %d out of range 1-%d", view.ErrLoadFailed, number, d.count)
	}
	p, err := d.r.GetPage(number - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", view.ErrLoadFailed, number, err)
	}
	box, err := p.Box()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", view.ErrLoadFailed, number, err)
	}

	view.Logger().Info("page opened", "page", number, "box", box, "rotate", p.Rotate())
	return &page{doc: d, p: p, number: number, box: box, rotate: p.Rotate()}, nil
}

func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.r.Close()
}

type page struct {
	doc    *document
	p      *pages.Page
	number int
	box    model.PageBox
	rotate int
	closed bool
}

func (p *page) Number() int        { return p.number }
func (p *page) Box() model.PageBox { return p.box }
func (p *page) Rotation() int      { return p.rotate }

// Render paints the page on a white background. m maps page space to
// device space; the tile covers clip in device space.
func (p *page) Render(dst *image.RGBA, clip image.Rectangle, m model.Matrix) (*image.RGBA, error) {
	if clip.Empty() {
		return nil, fmt.Errorf("%w: empty clip %v", view.ErrPageRender, clip)
	}

	d := p.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || p.closed {
		return nil, fmt.Errorf("%w: %v", view.ErrPageRender, errClosed)
	}

	content, err := p.p.ContentData()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d contents: %v", view.ErrPageRender, p.number, err)
	}
	resources, err := p.p.Resources()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d resources: %v", view.ErrPageRender, p.number, err)
	}

	out := raster.Target(dst, clip.Size())
	canvas := raster.NewCanvas(out)
	canvas.Clear(color.White)

	ctm := m.Multiply(model.Translate(float64(-clip.Min.X), float64(-clip.Min.Y)))
	in := graphicsstate.NewInterpreter(d.r, canvas, ctm)
	if err := in.Run(content, resources); err != nil {
		view.Logger().Warn("page painted with problems", "page", p.number, "error", err)
	}
	return out, nil
}

func (p *page) Close() error {
	p.doc.mu.Lock()
	p.closed = true
	p.doc.mu.Unlock()
	return nil
}
