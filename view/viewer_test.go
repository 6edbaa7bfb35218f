package view

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tsawler/pageview/model"
)

// renderCall records one Render invocation on a fake page.
type renderCall struct {
	page int
	clip image.Rectangle
	m    model.Matrix
}

// fakeDecoder serves documents with identical letter-sized pages.
type fakeDecoder struct {
	pages   int
	box     model.PageBox
	openErr error

	gate       chan struct{} // when set, each Render waits for a token
	failRender atomic.Bool

	mu      sync.Mutex
	calls   []renderCall
	opened  int
	closed  int
	entered chan struct{}
}

func newFakeDecoder(pages int) *fakeDecoder {
	return &fakeDecoder{
		pages:   pages,
		box:     letter,
		entered: make(chan struct{}, 64),
	}
}

func (d *fakeDecoder) Open(path, password string) (Document, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	return &fakeDocument{dec: d}, nil
}

func (d *fakeDecoder) renders() []renderCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]renderCall(nil), d.calls...)
}

type fakeDocument struct {
	dec    *fakeDecoder
	closed bool
}

func (doc *fakeDocument) PageCount() int { return doc.dec.pages }

func (doc *fakeDocument) LoadPage(number int) (Page, error) {
	return &fakePage{dec: doc.dec, number: number}, nil
}

func (doc *fakeDocument) Close() error {
	if !doc.closed {
		doc.closed = true
		doc.dec.mu.Lock()
		doc.dec.closed++
		doc.dec.mu.Unlock()
	}
	return nil
}

type fakePage struct {
	dec    *fakeDecoder
	number int
}

func (p *fakePage) Number() int        { return p.number }
func (p *fakePage) Box() model.PageBox { return p.dec.box }
func (p *fakePage) Rotation() int      { return 0 }
func (p *fakePage) Close() error       { return nil }

func (p *fakePage) Render(dst *image.RGBA, clip image.Rectangle, m model.Matrix) (*image.RGBA, error) {
	p.dec.entered <- struct{}{}
	if p.dec.gate != nil {
		<-p.dec.gate
	}
	p.dec.mu.Lock()
	p.dec.calls = append(p.dec.calls, renderCall{page: p.number, clip: clip, m: m})
	p.dec.mu.Unlock()

	if p.dec.failRender.Load() {
		return nil, fmt.Errorf("%w: synthetic failure", ErrPageRender)
	}
	return image.NewRGBA(image.Rect(0, 0, clip.Dx(), clip.Dy())), nil
}

// notifyCounter counts completion notifications.
type notifyCounter struct {
	n  atomic.Int32
	ch chan struct{}
}

func newNotifyCounter() *notifyCounter {
	return &notifyCounter{ch: make(chan struct{}, 64)}
}

func (c *notifyCounter) notify() {
	c.n.Add(1)
	c.ch <- struct{}{}
}

func (c *notifyCounter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for render notification")
	}
}

func openViewer(t *testing.T, dec *fakeDecoder, opts ...Option) (*Viewer, *notifyCounter) {
	t.Helper()
	c := newNotifyCounter()
	opts = append(opts, WithRenderListener(c.notify))
	v := New(dec, opts...)
	t.Cleanup(func() { v.Close() })

	v.StartRendering(300, 300)
	c.wait(t) // pass with no document
	if err := v.Open("doc.pdf", ""); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	c.wait(t)
	return v, c
}

func TestViewerOpenRendersImmediately(t *testing.T) {
	dec := newFakeDecoder(3)
	v, _ := openViewer(t, dec)

	if !v.IsReady() || !v.HavePixmap() {
		t.Fatalf("IsReady=%v HavePixmap=%v, want both true", v.IsReady(), v.HavePixmap())
	}
	rv, ok := v.Current()
	if !ok {
		t.Fatal("Current() returned no view")
	}
	if rv.ViewBox != image.Rect(0, 0, 1024, 1024) {
		t.Errorf("ViewBox = %v, want (0,0)-(1024,1024)", rv.ViewBox)
	}
	if rv.Image.Bounds().Size() != rv.ViewBox.Size() {
		t.Errorf("image size %v, view box size %v", rv.Image.Bounds().Size(), rv.ViewBox.Size())
	}
	if md := v.Metadata(); md.PageSize != image.Pt(1360, 1760) || md.OffsetMax != image.Pt(1060, 1460) {
		t.Errorf("metadata = %+v", md)
	}
}

func TestViewerOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"password needed", fmt.Errorf("decoder: %w", ErrPasswordNeeded), ErrPasswordNeeded},
		{"wrong password", ErrWrongPassword, ErrWrongPassword},
		{"cannot repair", ErrCannotRepair, ErrCannotRepair},
		{"cannot decrypt xref", ErrCannotDecryptXref, ErrCannotDecryptXref},
		{"unclassified", errors.New("disk on fire"), ErrLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := newFakeDecoder(1)
			dec.openErr = tt.err
			v := New(dec)
			defer v.Close()

			err := v.Open("doc.pdf", "secret")
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
			if v.IsReady() {
				t.Error("IsReady() = true after failed open")
			}
		})
	}
}

func TestViewerZeroSizePageRejected(t *testing.T) {
	dec := newFakeDecoder(1)
	dec.box = model.PageBox{Right: 612}
	v := New(dec)
	defer v.Close()

	if err := v.Open("doc.pdf", ""); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("Open() error = %v, want ErrLoadFailed", err)
	}
}

func TestViewerPageTargets(t *testing.T) {
	dec := newFakeDecoder(5)
	v, c := openViewer(t, dec)

	steps := []struct {
		target  PageTarget
		want    int
		wantErr bool
	}{
		{AtPage(3), 3, false},
		{Relative(1), 4, false},
		{LastPage(), 5, false},
		{Relative(1), 5, true},
		{AtPage(0), 5, true},
		{Relative(-4), 1, false},
		{Relative(-1), 1, true},
	}

	for _, step := range steps {
		has := v.HasPage(step.target)
		err := v.OpenPage(step.target)
		if step.wantErr {
			if !errors.Is(err, ErrLoadFailed) {
				t.Errorf("OpenPage(%v) error = %v, want ErrLoadFailed", step.target, err)
			}
			if has {
				t.Errorf("HasPage(%v) = true for failing target", step.target)
			}
		} else {
			if err != nil {
				t.Fatalf("OpenPage(%v) error: %v", step.target, err)
			}
			if !has {
				t.Errorf("HasPage(%v) = false", step.target)
			}
			c.wait(t)
		}
		if got := v.PageNumber(); got != step.want {
			t.Errorf("after OpenPage(%v) page = %d, want %d", step.target, got, step.want)
		}
	}

	calls := dec.renders()
	if last := calls[len(calls)-1]; last.page != 1 {
		t.Errorf("last render on page %d, want 1", last.page)
	}
}

func TestViewerOpenAtPageAndOffset(t *testing.T) {
	dec := newFakeDecoder(4)
	c := newNotifyCounter()
	v := New(dec, WithRenderListener(c.notify))
	defer v.Close()
	v.StartRendering(300, 300)
	c.wait(t)

	if err := v.OpenAt("doc.pdf", "", LastPage(), image.Pt(5000, 200)); err != nil {
		t.Fatalf("OpenAt() error: %v", err)
	}
	c.wait(t)

	if v.PageNumber() != 4 {
		t.Errorf("page = %d, want 4", v.PageNumber())
	}
	if got := v.Offset(); got != image.Pt(1060, 200) {
		t.Errorf("offset = %v, want clamped (1060,200)", got)
	}

	// Reopening closes the previous document.
	if err := v.Open("other.pdf", ""); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	c.wait(t)
	dec.mu.Lock()
	opened, closed := dec.opened, dec.closed
	dec.mu.Unlock()
	if opened != 2 || closed != 1 {
		t.Errorf("opened=%d closed=%d, want 2 and 1", opened, closed)
	}
}

func TestViewerRotationNormalized(t *testing.T) {
	v := New(newFakeDecoder(1))
	defer v.Close()

	steps := []struct {
		deg      int
		relative bool
		want     int
	}{
		{90, false, 90},
		{90, true, 180},
		{270, true, 90},
		{-180, true, 270},
		{-90, false, 270},
		{720, true, 270},
		{-1000, false, 80},
	}

	for _, s := range steps {
		v.SetRotation(s.deg, s.relative)
		got := v.Params().Rotation
		if got != s.want {
			t.Errorf("SetRotation(%d, %v) = %d, want %d", s.deg, s.relative, got, s.want)
		}
		if got < 0 || got >= 360 {
			t.Errorf("rotation %d outside [0,360)", got)
		}
	}
}

func TestViewerSetOffsetClamps(t *testing.T) {
	v, _ := openViewer(t, newFakeDecoder(1))

	inputs := []struct {
		x, y     int
		relative bool
	}{
		{-100, -100, false},
		{1 << 30, 1 << 30, false},
		{500, 500, false},
		{-2000, 3000, true},
		{600, -50, true},
		{math.MaxInt32, math.MinInt32, false},
	}

	for _, in := range inputs {
		v.SetOffset(in.x, in.y, in.relative)
		off := v.Offset()
		md := v.Metadata()
		if off.X < 0 || off.X > md.OffsetMax.X || off.Y < 0 || off.Y > md.OffsetMax.Y {
			t.Errorf("SetOffset(%d,%d,%v) -> %v outside [0,%v]", in.x, in.y, in.relative, off, md.OffsetMax)
		}
	}
}

func TestViewerRapidZoomChangesCoalesce(t *testing.T) {
	dec := newFakeDecoder(1)
	v, c := openViewer(t, dec)
	before := len(dec.renders())

	// Hold the worker in a pass so both changes land while it is busy.
	for len(dec.entered) > 0 {
		<-dec.entered
	}
	dec.gate = make(chan struct{})
	v.SetRotation(0, true)
	<-dec.entered

	if err := v.SetZoom(Explicit(2), false); err != nil {
		t.Fatal(err)
	}
	if err := v.SetZoom(Explicit(0.5), true); err != nil {
		t.Fatal(err)
	}
	close(dec.gate)

	c.wait(t) // the blocked pass
	c.wait(t) // one pass for both zoom changes
	time.Sleep(50 * time.Millisecond)

	calls := dec.renders()
	if got := len(calls) - before; got != 2 {
		t.Fatalf("renders after zoom changes = %d, want 2 (blocked pass + one coalesced)", got)
	}

	f, _ := v.Params().Zoom.Factor()
	if f != 1 {
		t.Errorf("effective zoom = %v, want 1", f)
	}
	want := 160.0 / 72.0
	if got := calls[len(calls)-1].m[0]; math.Abs(got-want) > 1e-9 {
		t.Errorf("rendered scale = %v, want %v", got, want)
	}
}

func TestViewerRelativeZoomFromFit(t *testing.T) {
	v, _ := openViewer(t, newFakeDecoder(1), WithZoom(FitWidth()))

	if err := v.SetZoom(Explicit(2), true); err != nil {
		t.Fatal(err)
	}
	f, ok := v.Params().Zoom.Factor()
	if !ok {
		t.Fatal("relative zoom from fit-width is still a fit mode")
	}
	// fit-width scale 300/612 expressed as a factor of 160 DPI, doubled
	want := 2 * (300.0 / 612.0) * 72 / 160
	if math.Abs(f-want) > 1e-9 {
		t.Errorf("zoom factor = %v, want %v", f, want)
	}

	if err := v.SetZoom(Explicit(0), false); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("SetZoom(0) error = %v, want ErrInvalidParameter", err)
	}
}

func TestViewerLazyScrollRendersOnce(t *testing.T) {
	dec := newFakeDecoder(1)
	v, c := openViewer(t, dec, WithTileMax(300, 300), WithLazyDelay(150*time.Millisecond))
	before := len(dec.renders())

	for i := 0; i < 10; i++ {
		v.SetOffset(10, 10, true)
		time.Sleep(5 * time.Millisecond)
	}

	c.wait(t)
	time.Sleep(300 * time.Millisecond)

	calls := dec.renders()
	if got := len(calls) - before; got != 1 {
		t.Fatalf("renders = %d, want 1", got)
	}
	if clip := calls[len(calls)-1].clip; clip != image.Rect(100, 100, 400, 400) {
		t.Errorf("rendered clip = %v, want the final offset (100,100)-(400,400)", clip)
	}
}

func TestViewerScrollWithinTileDoesNotRender(t *testing.T) {
	dec := newFakeDecoder(1)
	v, c := openViewer(t, dec, WithLazyDelay(10*time.Millisecond))
	before := c.n.Load()

	v.SetOffset(100, 100, false)
	v.SetOffset(724, 724, false)
	time.Sleep(80 * time.Millisecond)

	if got := c.n.Load(); got != before {
		t.Errorf("notifications = %d, want %d (offset still inside the tile)", got, before)
	}

	v.SetOffset(800, 0, false)
	c.wait(t)
}

func TestViewerStopRenderingSuppressesRequests(t *testing.T) {
	dec := newFakeDecoder(1)
	v, c := openViewer(t, dec)
	before := c.n.Load()

	v.StopRendering()
	if err := v.SetZoom(Explicit(3), false); err != nil {
		t.Fatal(err)
	}
	if err := v.SetDPI(96, 96); err != nil {
		t.Fatal(err)
	}
	v.SetOffset(900, 900, false)
	time.Sleep(50 * time.Millisecond)

	if got := c.n.Load(); got != before {
		t.Errorf("notifications while stopped = %d, want %d", got, before)
	}
	if p := v.Params(); p.DPIX != 96 {
		t.Errorf("DPI not updated while stopped: %d", p.DPIX)
	}

	v.StartRendering(300, 300)
	c.wait(t)
}

func TestViewerRenderFailureKeepsBuffer(t *testing.T) {
	dec := newFakeDecoder(1)
	v, c := openViewer(t, dec)
	prev, ok := v.Current()
	if !ok {
		t.Fatal("no initial view")
	}

	dec.failRender.Store(true)
	if err := v.SetZoom(Explicit(2), false); err != nil {
		t.Fatal(err)
	}
	c.wait(t)

	cur, ok := v.Current()
	if !ok || cur.Image != prev.Image || cur.Transform != prev.Transform {
		t.Error("failed render replaced the current buffer")
	}
	if !v.HavePixmap() {
		t.Error("HavePixmap() = false after failed pass")
	}

	dec.failRender.Store(false)
	v.SetRotation(90, false)
	c.wait(t)
	if cur, _ := v.Current(); cur.Transform == prev.Transform {
		t.Error("successful render after failure did not become current")
	}
}

func TestViewerNotifiesWithoutDocument(t *testing.T) {
	dec := newFakeDecoder(1)
	c := newNotifyCounter()
	v := New(dec, WithRenderListener(c.notify))
	defer v.Close()

	if v.HavePixmap() {
		t.Fatal("HavePixmap() = true before any pass")
	}
	v.StartRendering(100, 100)
	c.wait(t)

	if !v.HavePixmap() {
		t.Error("HavePixmap() = false after skipped pass")
	}
	if _, ok := v.Current(); ok {
		t.Error("Current() returned a view without a document")
	}
	if len(dec.renders()) != 0 {
		t.Error("decoder called without a document")
	}
}

func TestViewerListenerMayReenter(t *testing.T) {
	dec := newFakeDecoder(1)
	v := New(dec)
	defer v.Close()

	done := make(chan image.Rectangle, 8)
	v.SetRenderListener(func() {
		rv, _ := v.Current()
		_ = v.Offset()
		done <- rv.ViewBox
	})
	v.StartRendering(300, 300)
	<-done
	if err := v.Open("doc.pdf", ""); err != nil {
		t.Fatal(err)
	}

	select {
	case vb := <-done:
		if vb.Empty() {
			t.Error("listener saw no view box")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener deadlocked")
	}
}

func TestViewerCloseStopsWorker(t *testing.T) {
	dec := newFakeDecoder(1)
	v, _ := openViewer(t, dec)

	if err := v.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if v.sched.currentState() != stateStopped {
		t.Errorf("worker state = %v, want stopped", v.sched.currentState())
	}
	if v.IsReady() {
		t.Error("IsReady() = true after Close")
	}

	// Setters after Close do not block or panic.
	v.SetRotation(90, true)
	if err := v.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestViewerInvalidParameters(t *testing.T) {
	v := New(newFakeDecoder(1))
	defer v.Close()

	if err := v.SetDPI(0, 72); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("SetDPI(0,72) error = %v", err)
	}
	if err := v.SetTileMax(256, -1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("SetTileMax(256,-1) error = %v", err)
	}
	if p := v.Params(); p.DPIX != 160 || p.TileMax != image.Pt(1024, 1024) {
		t.Errorf("invalid setters changed params: %+v", p)
	}
}

func TestViewerFailedScrollKeepsViewBox(t *testing.T) {
	dec := newFakeDecoder(1)
	v, c := openViewer(t, dec, WithTileMax(400, 400), WithLazyDelay(10*time.Millisecond))

	dec.failRender.Store(true)
	v.SetOffset(900, 900, false)
	c.wait(t)

	cur, ok := v.Current()
	if !ok {
		t.Fatal("no current view")
	}
	if vb := v.ViewBox(); vb != cur.ViewBox {
		t.Errorf("ViewBox() = %v after failed pass, want the current tile %v", vb, cur.ViewBox)
	}

	// The failed tile was never drawn, so scrolling inside it must render.
	dec.failRender.Store(false)
	v.SetOffset(905, 905, false)
	c.wait(t)

	want := image.Rect(855, 855, 1255, 1255)
	if cur, _ := v.Current(); cur.ViewBox != want {
		t.Errorf("current tile = %v, want %v", cur.ViewBox, want)
	}
	if vb := v.ViewBox(); vb != want {
		t.Errorf("ViewBox() = %v, want %v", vb, want)
	}
}

func TestViewerCurrentSurvivesPageChange(t *testing.T) {
	dec := newFakeDecoder(3)
	v, c := openViewer(t, dec)
	prev, ok := v.Current()
	if !ok {
		t.Fatal("no initial view")
	}

	v.StopRendering()
	if err := v.OpenPage(Relative(1)); err != nil {
		t.Fatal(err)
	}
	if v.HavePixmap() {
		t.Error("HavePixmap() = true before the new page rendered")
	}
	cur, ok := v.Current()
	if !ok {
		t.Fatal("Current() returned no view after OpenPage")
	}
	if cur.Image != prev.Image {
		t.Error("OpenPage replaced the current view before rendering")
	}

	v.StartRendering(300, 300)
	c.wait(t)
	if !v.HavePixmap() {
		t.Error("HavePixmap() = false after the new page rendered")
	}
	if calls := dec.renders(); calls[len(calls)-1].page != 2 {
		t.Errorf("last render on page %d, want 2", calls[len(calls)-1].page)
	}
}

func TestViewerListenerMayClose(t *testing.T) {
	dec := newFakeDecoder(1)
	v := New(dec)

	closed := make(chan error, 4)
	v.SetRenderListener(func() {
		closed <- v.Close()
	})
	v.StartRendering(100, 100)

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close from the render listener did not return")
	}

	select {
	case <-v.sched.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after Close")
	}
	if err := v.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestViewerParamsOffsetClamped(t *testing.T) {
	v, _ := openViewer(t, newFakeDecoder(1))

	v.SetOffset(1000, 1000, false)
	v.StopRendering()
	if err := v.SetZoom(Explicit(0.5), false); err != nil {
		t.Fatal(err)
	}

	p := v.Params()
	if want := image.Pt(380, 580); p.Offset != want {
		t.Errorf("Params().Offset = %v, want %v", p.Offset, want)
	}
	if p.Offset != v.Offset() {
		t.Errorf("Params().Offset = %v, Offset() = %v", p.Offset, v.Offset())
	}
}
