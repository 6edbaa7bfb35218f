package pageview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tsawler/pageview/backend"
	"github.com/tsawler/pageview/view"
)

// ErrNeedSize is returned when a fit zoom is used without an output size.
var ErrNeedSize = errors.New("pageview: fit zoom needs an output size")

// PageImage is one rendered page.
type PageImage struct {
	// Number is the 1-based page number.
	Number int

	// Image holds the pixels. Its bounds start at (0, 0).
	Image *image.RGBA

	// ViewBox is the part of the rendered page the image covers, in
	// device pixels.
	ViewBox image.Rectangle

	// Metadata describes the page-to-device mapping used.
	Metadata view.Metadata
}

// Renderer provides a fluent interface for rendering PDF pages to images.
// Each configuration method returns a new Renderer instance, making it
// safe for concurrent use and allowing method chaining.
type Renderer struct {
	filename string
	options  RenderOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a copy of the Renderer with a deep copy of options.
func (r *Renderer) clone() *Renderer {
	return &Renderer{
		filename: r.filename,
		options:  r.options.clone(),
		err:      r.err,
	}
}

// Password sets the password used to open an encrypted document.
func (r *Renderer) Password(password string) *Renderer {
	n := r.clone()
	n.options.password = password
	return n
}

// Pages selects the pages to render (1-indexed). Duplicates are rendered
// once, in ascending order.
func (r *Renderer) Pages(pages ...int) *Renderer {
	n := r.clone()
	n.options.pages = append([]int(nil), pages...)
	return n
}

// PageRange selects an inclusive range of pages (1-indexed).
func (r *Renderer) PageRange(start, end int) *Renderer {
	n := r.clone()
	if start > end {
		n.err = fmt.Errorf("invalid page range: %d-%d", start, end)
		return n
	}
	n.options.pages = nil
	for p := start; p <= end; p++ {
		n.options.pages = append(n.options.pages, p)
	}
	return n
}

// Zoom sets the zoom. Fit zooms need an output size, see Size.
func (r *Renderer) Zoom(z view.Zoom) *Renderer {
	n := r.clone()
	if !z.Valid() {
		n.err = fmt.Errorf("%w: zoom %v", view.ErrInvalidParameter, z)
		return n
	}
	n.options.zoom = z
	return n
}

// DPI sets the output resolution.
func (r *Renderer) DPI(x, y int) *Renderer {
	n := r.clone()
	if x <= 0 || y <= 0 {
		n.err = fmt.Errorf("%w: DPI %dx%d", view.ErrInvalidParameter, x, y)
		return n
	}
	n.options.dpiX, n.options.dpiY = x, y
	return n
}

// Rotate adds a rotation in degrees to each page's own rotation.
func (r *Renderer) Rotate(degrees int) *Renderer {
	n := r.clone()
	n.options.rotation = degrees
	return n
}

// Size sets the display size, which fit zooms are computed against and
// which bounds the output image. Without it the whole page is rendered.
func (r *Renderer) Size(width, height int) *Renderer {
	n := r.clone()
	if width <= 0 || height <= 0 {
		n.err = fmt.Errorf("%w: size %dx%d", view.ErrInvalidParameter, width, height)
		return n
	}
	n.options.size = image.Pt(width, height)
	return n
}

// Concurrency bounds how many pages are rendered at once. Each page gets
// its own viewer and document handle.
func (r *Renderer) Concurrency(limit int) *Renderer {
	n := r.clone()
	if limit < 1 {
		limit = 1
	}
	n.options.concurrency = limit
	return n
}

// PageCount returns the number of pages in the document.
func (r *Renderer) PageCount() (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	doc, err := backend.PDF{}.Open(r.filename, r.options.password)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.PageCount(), nil
}

// Render renders the selected pages, in page order.
func (r *Renderer) Render(ctx context.Context) ([]PageImage, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.options.size == (image.Point{}) && r.options.zoom.IsFit() {
		return nil, ErrNeedSize
	}

	numbers, err := r.resolvePages()
	if err != nil {
		return nil, err
	}

	out := make([]PageImage, len(numbers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.concurrency)
	for i, number := range numbers {
		g.Go(func() error {
			img, err := r.renderPage(ctx, number)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolvePages validates the page selection against the document.
func (r *Renderer) resolvePages() ([]int, error) {
	count, err := r.PageCount()
	if err != nil {
		return nil, err
	}

	// If no pages specified, use all pages
	if len(r.options.pages) == 0 {
		numbers := make([]int, count)
		for i := range numbers {
			numbers[i] = i + 1
		}
		return numbers, nil
	}

	seen := make(map[int]bool)
	var numbers []int
	for _, p := range r.options.pages {
		if p < 1 || p > count {
			return nil, fmt.Errorf("page %d out of range (1-%d)", p, count)
		}
		if !seen[p] {
			seen[p] = true
			numbers = append(numbers, p)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

// renderPage drives a private viewer through one render pass.
func (r *Renderer) renderPage(ctx context.Context, number int) (PageImage, error) {
	done := make(chan struct{}, 1)
	opts := append(r.options.viewOptions(), view.WithRenderListener(func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}))
	v := New(opts...)
	defer v.Close()

	if err := v.OpenAt(r.filename, r.options.password, view.AtPage(number), image.Point{}); err != nil {
		return PageImage{}, fmt.Errorf("page %d: %w", number, err)
	}

	size := r.options.size
	if size == (image.Point{}) {
		size = v.Metadata().PageSize
	}
	if err := v.SetTileMax(size.X, size.Y); err != nil {
		return PageImage{}, fmt.Errorf("page %d: %w", number, err)
	}
	v.StartRendering(size.X, size.Y)

	select {
	case <-done:
	case <-ctx.Done():
		return PageImage{}, ctx.Err()
	}

	cur, ok := v.Current()
	if !ok {
		return PageImage{}, fmt.Errorf("%w: page %d", view.ErrPageRender, number)
	}
	return PageImage{
		Number:   number,
		Image:    cur.Image,
		ViewBox:  cur.ViewBox,
		Metadata: v.Metadata(),
	}, nil
}
