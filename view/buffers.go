package view

import (
	"image"
	"sync/atomic"

	"github.com/tsawler/pageview/model"
)

// RenderedView is a completed render: the pixels of one tile plus the
// view box and transform used to produce them.
type RenderedView struct {
	// Image holds the tile; its bounds start at (0, 0) and have the size
	// of ViewBox.
	Image *image.RGBA

	// ViewBox is the tile position in device space of the whole page.
	ViewBox image.Rectangle

	// Transform is the page-to-device matrix of the render.
	Transform model.Matrix
}

// bufferPair alternates between two slots. The render pass writes the slot
// after the current one and publishes it by advancing the index, so readers
// always see a complete render.
//
// Pixel memory is recycled: the image of a slot is passed back to the
// decoder as its destination two renders later. Readers that keep an image
// beyond the next completion notification must copy it.
type bufferPair struct {
	slots   [2]atomic.Pointer[RenderedView]
	current atomic.Int32
	valid   atomic.Bool
}

func (b *bufferPair) nextIndex() int32 {
	return (b.current.Load() + 1) % 2
}

// scratch returns the image of the slot the next render will write, for
// reuse as a destination. It returns nil when the slot is empty.
func (b *bufferPair) scratch() *image.RGBA {
	if v := b.slots[b.nextIndex()].Load(); v != nil {
		return v.Image
	}
	return nil
}

// commit stores v in the next slot and makes it current.
func (b *bufferPair) commit(v RenderedView) {
	next := b.nextIndex()
	b.slots[next].Store(&v)
	b.current.Store(next)
	b.valid.Store(true)
}

// load returns the current view, or false before the first commit.
func (b *bufferPair) load() (RenderedView, bool) {
	if !b.valid.Load() {
		return RenderedView{}, false
	}
	idx := b.current.Load()
	v := b.slots[idx].Load()
	if v == nil {
		return RenderedView{}, false
	}
	return *v, true
}
