package view

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsawler/pageview/model"
)

// Viewer holds one open document and page, the view parameters, and the
// render worker that turns them into tiles.
//
// Two locks are involved. mu is the document lock: it guards the decoder
// handles and is held while opening or closing and for each render pass in
// its entirety. stateMu guards the view parameters and derived metadata and
// is only ever held briefly, so setters never wait for a render. When both
// are needed mu is taken first.
type Viewer struct {
	decoder Decoder
	sched   *scheduler
	buffers bufferPair

	mu   sync.Mutex
	doc  Document
	page Page

	stateMu      sync.Mutex
	params       Params
	meta         Metadata
	dirty        bool
	viewBox      image.Rectangle
	box          model.PageBox
	pageRotation int
	pageNumber   int
	pageCount    int
	ready        bool
	rendering    bool
	lazyDelay    time.Duration

	havePixmap atomic.Bool
	listener   atomic.Pointer[func()]
	notifying  atomic.Bool
	closeOnce  sync.Once
}

// New creates a viewer that opens documents with dec and starts its render
// worker. Call Close to stop the worker and release the document.
func New(dec Decoder, opts ...Option) *Viewer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	v := &Viewer{
		decoder:   dec,
		params:    o.params,
		lazyDelay: o.lazyDelay,
		dirty:     true,
		viewBox:   image.Rect(0, 0, 1, 1),
	}
	v.SetRenderListener(o.listener)
	v.sched = newScheduler(v.renderPass)
	v.sched.start()
	return v
}

// Open opens the document at path on its first page.
func (v *Viewer) Open(path, password string) error {
	return v.OpenAt(path, password, AtPage(1), image.Point{})
}

// OpenAt opens the document at path on the given page with an initial
// scroll offset. Any open document is closed first. The error, if any, wraps
// one of ErrPasswordNeeded, ErrWrongPassword, ErrCannotRepair,
// ErrCannotDecryptXref or ErrLoadFailed.
func (v *Viewer) OpenAt(path, password string, target PageTarget, offset image.Point) error {
	Logger().Info("opening document", "path", path, "page", target.String())

	v.mu.Lock()
	v.closeLocked()

	doc, err := v.decoder.Open(path, password)
	if err != nil {
		v.mu.Unlock()
		return asLoadError(err)
	}
	v.doc = doc

	count := doc.PageCount()
	v.stateMu.Lock()
	v.pageCount = count
	v.pageNumber = 0
	v.stateMu.Unlock()

	err = v.loadPageLocked(target.resolve(0, count), offset)
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.requestRender(0)
	return nil
}

// OpenPage switches to another page of the open document, resetting the
// scroll offset. Out-of-range targets fail with ErrLoadFailed and leave the
// current page untouched.
func (v *Viewer) OpenPage(target PageTarget) error {
	Logger().Info("opening page", "page", target.String())

	v.mu.Lock()
	if v.doc == nil {
		v.mu.Unlock()
		return fmt.Errorf("%w: no document open", ErrLoadFailed)
	}

	v.stateMu.Lock()
	number := target.resolve(v.pageNumber, v.pageCount)
	v.stateMu.Unlock()

	err := v.loadPageLocked(number, image.Point{})
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.requestRender(0)
	return nil
}

// loadPageLocked replaces the current page. Callers hold mu.
func (v *Viewer) loadPageLocked(number int, offset image.Point) error {
	count := v.doc.PageCount()
	if number < 1 || number > count {
		return fmt.Errorf("%w: page %d out of range [1, %d]", ErrLoadFailed, number, count)
	}

	v.closePageLocked()

	page, err := v.doc.LoadPage(number)
	if err != nil {
		return asLoadError(err)
	}

	box := page.Box()
	if !box.IsValid() {
		page.Close()
		return fmt.Errorf("%w: page %d has empty box %v", ErrLoadFailed, number, box)
	}
	v.page = page

	v.stateMu.Lock()
	v.box = box
	v.pageRotation = page.Rotation()
	v.pageNumber = number
	v.params.Offset = offset
	v.dirty = true
	v.viewBox = image.Rect(0, 0, 1, 1)
	v.ready = true
	v.stateMu.Unlock()

	v.havePixmap.Store(false)
	return nil
}

// closePageLocked releases the page handle. Callers hold mu.
func (v *Viewer) closePageLocked() {
	if v.page != nil {
		if err := v.page.Close(); err != nil {
			Logger().Warn("closing page", "error", err)
		}
		v.page = nil
	}
	v.stateMu.Lock()
	v.ready = false
	v.box = model.PageBox{}
	v.pageRotation = 0
	v.dirty = true
	v.stateMu.Unlock()
}

// closeLocked releases both handles. Callers hold mu.
func (v *Viewer) closeLocked() {
	v.closePageLocked()
	if v.doc != nil {
		if err := v.doc.Close(); err != nil {
			Logger().Warn("closing document", "error", err)
		}
		v.doc = nil
	}
	v.stateMu.Lock()
	v.pageCount = 0
	v.pageNumber = 0
	v.stateMu.Unlock()
}

// HasPage reports whether target resolves to a page of the open document.
func (v *Viewer) HasPage(target PageTarget) bool {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	n := target.resolve(v.pageNumber, v.pageCount)
	return n >= 1 && n <= v.pageCount
}

// IsReady reports whether both a document and a page are open.
func (v *Viewer) IsReady() bool {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	return v.ready
}

// PageNumber returns the current 1-based page number, or 0.
func (v *Viewer) PageNumber() int {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	return v.pageNumber
}

// PageCount returns the number of pages of the open document, or 0.
func (v *Viewer) PageCount() int {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	return v.pageCount
}

// HavePixmap reports whether a render pass has completed since the current
// page was opened.
func (v *Viewer) HavePixmap() bool {
	return v.havePixmap.Load()
}

// Current returns the most recent successful render.
func (v *Viewer) Current() (RenderedView, bool) {
	return v.buffers.load()
}

// SetRenderListener replaces the completion callback. It is called from
// the render worker after every pass, outside the document lock; it may
// call back into the viewer. nil installs a no-op.
func (v *Viewer) SetRenderListener(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	v.listener.Store(&fn)
}

// SetDPI sets the display resolution and renders immediately.
func (v *Viewer) SetDPI(x, y int) error {
	if x <= 0 || y <= 0 {
		return fmt.Errorf("%w: dpi %dx%d", ErrInvalidParameter, x, y)
	}
	Logger().Debug("set dpi", "x", x, "y", y)

	v.stateMu.Lock()
	v.params.DPIX, v.params.DPIY = x, y
	v.dirty = true
	v.stateMu.Unlock()

	v.requestRender(0)
	return nil
}

// SetTileMax sets the maximum tile size and renders immediately.
func (v *Viewer) SetTileMax(x, y int) error {
	if x <= 0 || y <= 0 {
		return fmt.Errorf("%w: tile %dx%d", ErrInvalidParameter, x, y)
	}
	Logger().Debug("set tile max", "x", x, "y", y)

	v.stateMu.Lock()
	v.params.TileMax = image.Pt(x, y)
	v.dirty = true
	v.stateMu.Unlock()

	v.requestRender(0)
	return nil
}

// SetRotation sets the view rotation in degrees, or adds to it when
// relative is true, and renders immediately. The stored rotation is always
// in [0, 360).
func (v *Viewer) SetRotation(degrees int, relative bool) {
	Logger().Debug("set rotation", "degrees", degrees, "relative", relative)

	v.stateMu.Lock()
	base := 0
	if relative {
		base = v.params.Rotation
	}
	v.params.Rotation = normalizeRotation(base + degrees)
	v.dirty = true
	v.stateMu.Unlock()

	v.requestRender(0)
}

// SetZoom sets the zoom and renders immediately. With relative set and an
// explicit z, the current effective zoom is multiplied by z's factor; a fit
// mode is first resolved to the zoom it currently yields. Fit modes are
// always applied as they are.
func (v *Viewer) SetZoom(z Zoom, relative bool) error {
	if !z.Valid() {
		return fmt.Errorf("%w: zoom %v", ErrInvalidParameter, z)
	}
	Logger().Debug("set zoom", "zoom", z.String(), "relative", relative)

	v.stateMu.Lock()
	if factor, ok := z.Factor(); ok && relative {
		z = Explicit(v.effectiveZoomLocked() * factor)
	}
	v.params.Zoom = z
	v.dirty = true
	v.stateMu.Unlock()

	v.requestRender(0)
	return nil
}

// effectiveZoomLocked returns the explicit factor equivalent to the
// current zoom. Callers hold stateMu.
func (v *Viewer) effectiveZoomLocked() float64 {
	if factor, ok := v.params.Zoom.Factor(); ok {
		return factor
	}
	v.ensureMetadataLocked()
	if v.params.DPIX <= 0 || v.meta.ScaleX == 0 {
		return 1
	}
	return v.meta.ScaleX * pointsPerInch / float64(v.params.DPIX)
}

// SetOffset scrolls to (x, y), or by (x, y) when relative is true. The
// offset is clamped to the scrollable range. A debounced render is
// requested only when the visible area leaves the rendered tile.
func (v *Viewer) SetOffset(x, y int, relative bool) {
	v.stateMu.Lock()
	v.ensureMetadataLocked()
	off := image.Pt(x, y)
	if relative {
		off = off.Add(v.params.Offset)
	}
	v.params.Offset = v.meta.ClampOffset(off)
	within := WithinViewBox(v.params, v.meta, v.viewBox)
	delay := v.lazyDelay
	v.stateMu.Unlock()

	if !within {
		v.requestRender(delay)
	}
}

// Offset returns the clamped scroll offset.
func (v *Viewer) Offset() image.Point {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	v.ensureMetadataLocked()
	return v.params.Offset
}

// Params returns a snapshot of the view parameters with the offset
// clamped.
func (v *Viewer) Params() Params {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	v.ensureMetadataLocked()
	return v.params
}

// Metadata returns the derived metadata, recomputing it if needed.
func (v *Viewer) Metadata() Metadata {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	v.ensureMetadataLocked()
	return v.meta
}

// ViewBox returns the tile of the most recent successful render on the
// current page.
func (v *Viewer) ViewBox() image.Rectangle {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	return v.viewBox
}

// ensureMetadataLocked recomputes the metadata if the dirty flag is set
// and re-clamps the offset. Callers hold stateMu.
func (v *Viewer) ensureMetadataLocked() {
	if !v.dirty {
		return
	}
	v.meta = ComputeMetadata(v.params, v.box, v.pageRotation)
	v.params.Offset = v.meta.ClampOffset(v.params.Offset)
	v.dirty = false
	Logger().Debug("page metadata computed",
		"page_size", v.meta.PageSize, "offset_max", v.meta.OffsetMax,
		"scale_x", v.meta.ScaleX, "scale_y", v.meta.ScaleY)
}

// StartRendering records the display size and enables render requests.
func (v *Viewer) StartRendering(width, height int) {
	Logger().Debug("start rendering", "width", width, "height", height)

	v.stateMu.Lock()
	v.params.Display = image.Pt(max(width, 1), max(height, 1))
	v.dirty = true
	v.rendering = true
	v.stateMu.Unlock()

	v.requestRender(0)
}

// StopRendering disables render requests. Parameters keep updating.
func (v *Viewer) StopRendering() {
	Logger().Debug("stop rendering")

	v.stateMu.Lock()
	v.rendering = false
	v.stateMu.Unlock()
}

// requestRender hands a request to the worker when rendering is enabled.
func (v *Viewer) requestRender(delay time.Duration) {
	v.stateMu.Lock()
	enabled := v.rendering
	v.stateMu.Unlock()

	if enabled {
		v.sched.submit(delay)
	}
}

// renderPass runs on the worker goroutine.
func (v *Viewer) renderPass() {
	v.mu.Lock()
	if v.doc != nil && v.page != nil {
		v.renderLocked()
	}
	v.havePixmap.Store(true)
	v.mu.Unlock()

	v.notifying.Store(true)
	defer v.notifying.Store(false)
	(*v.listener.Load())()
}

// renderLocked renders the tile around the current offset into the next
// buffer slot. Callers hold mu.
func (v *Viewer) renderLocked() {
	v.stateMu.Lock()
	v.ensureMetadataLocked()
	vb := CenteredViewBox(v.params, v.meta)
	m := v.meta.Transform
	v.stateMu.Unlock()

	if vb.Empty() {
		Logger().Debug("empty view box, nothing to render")
		return
	}

	Logger().Debug("rendering tile", "page", v.page.Number(), "view_box", vb)
	img, err := v.page.Render(v.buffers.scratch(), vb, m)
	if err != nil {
		if !errors.Is(err, ErrPageRender) {
			err = errors.Join(ErrPageRender, err)
		}
		Logger().Warn("render failed, keeping previous buffer", "page", v.page.Number(), "error", err)
		return
	}

	v.buffers.commit(RenderedView{Image: img, ViewBox: vb, Transform: m})

	v.stateMu.Lock()
	v.viewBox = vb
	v.stateMu.Unlock()
}

// Close stops the render worker, waiting for a pass in progress to finish,
// and releases the document. The viewer cannot be reused.
//
// While the render listener is running, Close only signals the worker,
// which exits once the listener returns. This lets the listener close the
// viewer.
func (v *Viewer) Close() error {
	v.closeOnce.Do(func() {
		if v.notifying.Load() {
			v.sched.halt()
		} else {
			v.sched.stop()
		}

		v.mu.Lock()
		v.closeLocked()
		v.mu.Unlock()
	})
	return nil
}
