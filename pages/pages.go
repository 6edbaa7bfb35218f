package pages

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tsawler/pageview/core"
	"github.com/tsawler/pageview/model"
)

// ErrNoPages is returned when the page tree holds no pages.
var ErrNoPages = errors.New("pages: document has no pages")

// ObjectResolver interface for resolving indirect references
type ObjectResolver interface {
	Resolve(obj core.Object) (core.Object, error)
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// inheritable lists the page attributes a page takes from its ancestors.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// maxTreeDepth bounds page tree nesting.
const maxTreeDepth = 64

// defaultMediaBox is US Letter, used when no MediaBox is found.
var defaultMediaBox = model.PageBox{Left: 0, Bottom: 0, Right: 612, Top: 792}

// PageTree represents the PDF page tree
type PageTree struct {
	root     core.Dict
	resolver ObjectResolver
	pages    []*Page
}

// NewPageTree creates a new page tree from the root pages dictionary
func NewPageTree(root core.Dict, resolver ObjectResolver) *PageTree {
	return &PageTree{
		root:     root,
		resolver: resolver,
	}
}

// Count returns the number of pages found by walking the tree. The /Count
// entries are not trusted.
func (t *PageTree) Count() (int, error) {
	if err := t.load(); err != nil {
		return 0, err
	}
	return len(t.pages), nil
}

// GetPage returns the page at the given index (0-based)
func (t *PageTree) GetPage(index int) (*Page, error) {
	if err := t.load(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(t.pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(t.pages))
	}
	return t.pages[index], nil
}

// Pages returns all pages in document order.
func (t *PageTree) Pages() ([]*Page, error) {
	if err := t.load(); err != nil {
		return nil, err
	}
	return t.pages, nil
}

func (t *PageTree) load() error {
	if t.pages != nil {
		return nil
	}
	w := &treeWalker{resolver: t.resolver, visited: make(map[int]bool)}
	if err := w.walk(t.root, core.Dict{}, 0); err != nil {
		return fmt.Errorf("failed to traverse page tree: %w", err)
	}
	if len(w.pages) == 0 {
		return ErrNoPages
	}
	t.pages = w.pages
	return nil
}

type treeWalker struct {
	resolver ObjectResolver
	visited  map[int]bool
	pages    []*Page
}

// walk visits node, passing attributes inherited so far to its kids.
func (w *treeWalker) walk(node core.Dict, inherited core.Dict, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("page tree deeper than %d levels", maxTreeDepth)
	}

	typ, _ := node.GetName("Type")
	kidsObj := node.Get("Kids")
	if typ == "Page" || (typ != "Pages" && kidsObj == nil) {
		w.pages = append(w.pages, NewPage(node, inherited, w.resolver))
		return nil
	}

	attrs := make(core.Dict, len(inheritable))
	for k, v := range inherited {
		attrs[k] = v
	}
	for _, k := range inheritable {
		if v := node.Get(k); v != nil {
			attrs[k] = v
		}
	}

	kidsResolved, err := w.resolver.Resolve(kidsObj)
	if err != nil {
		return fmt.Errorf("failed to resolve /Kids: %w", err)
	}
	kids, ok := kidsResolved.(core.Array)
	if !ok {
		return fmt.Errorf("invalid /Kids type: %T", kidsResolved)
	}

	for i, kid := range kids {
		if ref, ok := kid.(core.IndirectRef); ok {
			if w.visited[ref.Number] {
				return fmt.Errorf("page tree cycle at object %d", ref.Number)
			}
			w.visited[ref.Number] = true
		}
		resolved, err := w.resolver.Resolve(kid)
		if err != nil {
			return fmt.Errorf("failed to resolve kid %d: %w", i, err)
		}
		kidDict, ok := resolved.(core.Dict)
		if !ok {
			// Broken kids are skipped rather than failing the document.
			continue
		}
		if err := w.walk(kidDict, attrs, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Page represents a single PDF page
type Page struct {
	dict      core.Dict
	inherited core.Dict
	resolver  ObjectResolver
}

// NewPage creates a page from its dictionary and the attributes inherited
// from its ancestors. inherited may be nil.
func NewPage(dict core.Dict, inherited core.Dict, resolver ObjectResolver) *Page {
	return &Page{
		dict:      dict,
		inherited: inherited,
		resolver:  resolver,
	}
}

// Dict returns the page dictionary.
func (p *Page) Dict() core.Dict {
	return p.dict
}

// attr looks an attribute up on the page, then among inherited ones.
func (p *Page) attr(name string) (core.Object, error) {
	obj := p.dict.Get(name)
	if obj == nil {
		obj = p.inherited.Get(name)
	}
	if obj == nil {
		return nil, nil
	}
	return p.resolver.Resolve(obj)
}

// MediaBox returns the page media box. Pages without a usable one get US
// Letter.
func (p *Page) MediaBox() (model.PageBox, error) {
	box, err := p.box("MediaBox")
	if err != nil {
		return model.PageBox{}, err
	}
	if box == nil || !box.IsValid() {
		return defaultMediaBox, nil
	}
	return *box, nil
}

// CropBox returns the crop box, or the media box when there is none.
func (p *Page) CropBox() (model.PageBox, error) {
	box, err := p.box("CropBox")
	if err != nil || box == nil {
		return p.MediaBox()
	}
	return *box, nil
}

// Box returns the visible page area: the crop box clipped to the media box.
func (p *Page) Box() (model.PageBox, error) {
	media, err := p.MediaBox()
	if err != nil {
		return model.PageBox{}, err
	}
	crop, err := p.CropBox()
	if err != nil {
		return model.PageBox{}, err
	}
	box := crop.Intersect(media)
	if !box.IsValid() {
		return media, nil
	}
	return box, nil
}

func (p *Page) box(name string) (*model.PageBox, error) {
	obj, err := p.attr(name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if obj == nil {
		return nil, nil
	}
	arr, ok := obj.(core.Array)
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("invalid %s: %v", name, obj)
	}

	r := make([]float64, 4)
	for i, elem := range arr {
		v, err := p.resolver.Resolve(elem)
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case core.Int:
			r[i] = float64(n)
		case core.Real:
			r[i] = float64(n)
		default:
			return nil, fmt.Errorf("invalid %s element type: %T", name, v)
		}
	}
	box := model.NewPageBox(r)
	return &box, nil
}

// Rotate returns the page rotation normalised to 0, 90, 180 or 270.
// Values that are not multiples of 90 count as 0.
func (p *Page) Rotate() int {
	obj, err := p.attr("Rotate")
	if err != nil {
		return 0
	}
	var deg int
	switch v := obj.(type) {
	case core.Int:
		deg = int(v)
	case core.Real:
		deg = int(v)
	}
	if deg%90 != 0 {
		return 0
	}
	return ((deg % 360) + 360) % 360
}

// Resources returns the page resources. A page without resources gets an
// empty dictionary.
func (p *Page) Resources() (core.Dict, error) {
	obj, err := p.attr("Resources")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	res, ok := obj.(core.Dict)
	if !ok {
		return core.Dict{}, nil
	}
	return res, nil
}

// Contents returns the page content streams in order. Entries that do not
// resolve to streams are skipped.
func (p *Page) Contents() ([]*core.Stream, error) {
	obj, err := p.resolver.Resolve(p.dict.Get("Contents"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}

	switch v := obj.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case core.Array:
		streams := make([]*core.Stream, 0, len(v))
		for i, elem := range v {
			resolved, err := p.resolver.Resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
			}
			if s, ok := resolved.(*core.Stream); ok {
				streams = append(streams, s)
			}
		}
		return streams, nil
	}
	return nil, nil
}

// ContentData returns the decoded content streams joined by newlines, as
// one stream. Operators may span stream boundaries.
func (p *Page) ContentData() ([]byte, error) {
	streams, err := p.Contents()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for i, s := range streams {
		data, err := s.Decoded()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content stream %d: %w", i, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Width returns the width of Box.
func (p *Page) Width() (float64, error) {
	box, err := p.Box()
	return box.Width(), err
}

// Height returns the height of Box.
func (p *Page) Height() (float64, error) {
	box, err := p.Box()
	return box.Height(), err
}
