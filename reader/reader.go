package reader

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/tsawler/pageview/core"
	"github.com/tsawler/pageview/pages"
)

// PDFVersion is the version from the file header.
type PDFVersion struct {
	Major int
	Minor int
}

// String formats the version as "major.minor".
func (v PDFVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Reader gives object-level access to a PDF file. It is not safe for
// concurrent use; open one Reader per goroutine.
type Reader struct {
	src    io.ReaderAt
	size   int64
	closer io.Closer

	xrefTable *core.XRefTable
	trailer   core.Dict
	version   PDFVersion
	repaired  bool

	// object streams found by repair whose members are not indexed yet
	pendingObjStms []int

	objCache   map[int]core.Object
	objStreams map[int]*core.ObjectStream
	loading    map[int]bool

	crypt      *securityHandler
	encryptNum int

	pageTree *pages.PageTree
}

// Ensure Reader implements pages.ObjectResolver
var _ pages.ObjectResolver = (*Reader)(nil)

var versionPattern = regexp.MustCompile(`%PDF-(\d+)\.(\d+)`)

// Open opens a PDF file that is not encrypted, or whose empty user
// password opens it.
func Open(filename string) (*Reader, error) {
	return OpenWithPassword(filename, "")
}

// OpenWithPassword opens a PDF file, authenticating with password as either
// the user or the owner password when the file is encrypted.
func OpenWithPassword(filename, password string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	r, err := NewReader(file, info.Size(), password)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReader reads a PDF from src. When the cross-reference data is missing
// or damaged the file is scanned and the table rebuilt.
func NewReader(src io.ReaderAt, size int64, password string) (*Reader, error) {
	r := &Reader{
		src:        src,
		size:       size,
		objCache:   make(map[int]core.Object),
		objStreams: make(map[int]*core.ObjectStream),
		loading:    make(map[int]bool),
	}
	r.version = r.parseHeader()

	if err := r.loadXRef(); err != nil {
		if rerr := r.repair(); rerr != nil {
			return nil, fmt.Errorf("%w: %v (scan: %v)", ErrRepairFailed, err, rerr)
		}
	}

	if err := r.setupEncryption(password); err != nil {
		return nil, err
	}
	if r.repaired {
		r.indexObjectStreams()
	}

	// A table that parses but points at garbage is only noticed here.
	if _, err := r.GetCatalog(); err != nil {
		if r.repaired {
			return nil, fmt.Errorf("%w: %v", ErrRepairFailed, err)
		}
		if rerr := r.repair(); rerr != nil {
			return nil, fmt.Errorf("%w: %v (scan: %v)", ErrRepairFailed, err, rerr)
		}
		r.indexObjectStreams()
		if _, err := r.GetCatalog(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepairFailed, err)
		}
	}

	return r, nil
}

// Close closes the underlying file, if the Reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// parseHeader finds %PDF-x.y within the first kilobyte. A missing header
// is tolerated and reported as version 0.0.
func (r *Reader) parseHeader() PDFVersion {
	head := make([]byte, min(1024, r.size))
	n, _ := r.src.ReadAt(head, 0)
	m := versionPattern.FindSubmatch(head[:n])
	if m == nil {
		return PDFVersion{}
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	return PDFVersion{Major: major, Minor: minor}
}

func (r *Reader) section() *io.SectionReader {
	return io.NewSectionReader(r.src, 0, r.size)
}

// loadXRef reads every cross-reference section along the /Prev chain.
func (r *Reader) loadXRef() error {
	tables, err := core.NewXRefParser(r.section()).ParseAllXRefs()
	if err != nil {
		return fmt.Errorf("failed to parse xref: %w", err)
	}
	table := core.MergeXRefTables(tables...)
	if !table.Trailer.Has("Root") {
		return fmt.Errorf("trailer missing /Root entry")
	}

	r.xrefTable = table
	r.trailer = table.Trailer
	return nil
}

// repair replaces the cross-reference table with one rebuilt from a scan of
// the whole file. Cached objects are dropped.
func (r *Reader) repair() error {
	rebuilt, err := core.ReconstructXRef(r.section())
	if err != nil {
		return err
	}

	// Keep the encryption entries of the original trailer if the scan
	// had to synthesise one.
	if r.trailer != nil {
		for _, k := range []string{"Encrypt", "ID", "Info"} {
			if !rebuilt.Trailer.Has(k) && r.trailer.Has(k) {
				rebuilt.Trailer.Set(k, r.trailer.Get(k))
			}
		}
	}

	r.xrefTable = rebuilt.XRefTable
	r.trailer = rebuilt.Trailer
	r.repaired = true
	r.objCache = make(map[int]core.Object)
	r.objStreams = make(map[int]*core.ObjectStream)

	r.pendingObjStms = rebuilt.ObjectStreams
	return nil
}

// indexObjectStreams adds members of object streams found by repair to the
// table. Objects that also appear at the top level keep that definition.
func (r *Reader) indexObjectStreams() {
	for _, stmNum := range r.pendingObjStms {
		stm, err := r.objectStream(stmNum)
		if err != nil {
			continue
		}
		nums, err := stm.ObjectNumbers()
		if err != nil {
			continue
		}
		for idx, num := range nums {
			if _, ok := r.xrefTable.Get(num); ok {
				continue
			}
			r.xrefTable.Set(num, &core.XRefEntry{
				Type:       core.XRefEntryCompressed,
				Offset:     int64(stmNum),
				Generation: idx,
				InUse:      true,
			})
		}
	}
	r.pendingObjStms = nil
}

// Version returns the PDF version
func (r *Reader) Version() PDFVersion {
	return r.version
}

// Repaired reports whether the cross-reference table was rebuilt by
// scanning the file.
func (r *Reader) Repaired() bool {
	return r.repaired
}

// Encrypted reports whether the document is encrypted.
func (r *Reader) Encrypted() bool {
	return r.crypt != nil
}

// GetObject loads an object by number, decrypting it when needed. Loaded
// objects are cached.
func (r *Reader) GetObject(objNum int) (core.Object, error) {
	if obj, ok := r.objCache[objNum]; ok {
		return obj, nil
	}
	if r.loading[objNum] {
		return nil, fmt.Errorf("object %d references itself while loading", objNum)
	}
	r.loading[objNum] = true
	defer delete(r.loading, objNum)

	entry, ok := r.xrefTable.Get(objNum)
	if !ok || !entry.InUse {
		// Missing objects are null.
		return core.Null{}, nil
	}

	var obj core.Object
	var err error
	switch entry.Type {
	case core.XRefEntryCompressed:
		obj, err = r.loadCompressed(objNum, entry)
	default:
		obj, err = r.loadAt(objNum, entry)
	}
	if err != nil {
		return nil, err
	}

	r.objCache[objNum] = obj
	return obj, nil
}

func (r *Reader) loadAt(objNum int, entry *core.XRefEntry) (core.Object, error) {
	if entry.Offset < 0 || entry.Offset >= r.size {
		return nil, fmt.Errorf("object %d offset %d outside file", objNum, entry.Offset)
	}

	parser := core.NewParser(io.NewSectionReader(r.src, entry.Offset, r.size-entry.Offset))
	parser.SetReferenceResolver(r)
	indObj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %d: %w", objNum, err)
	}
	if indObj.Ref.Number != objNum {
		return nil, fmt.Errorf("object number mismatch: expected %d, got %d", objNum, indObj.Ref.Number)
	}

	obj := indObj.Object
	if r.crypt != nil && objNum != r.encryptNum && !isXRefStream(obj) {
		obj, err = r.crypt.decryptObject(obj, indObj.Ref)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt object %d: %w", objNum, err)
		}
	}
	return obj, nil
}

func (r *Reader) loadCompressed(objNum int, entry *core.XRefEntry) (core.Object, error) {
	stm, err := r.objectStream(int(entry.Offset))
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}

	obj, num, err := stm.GetObjectByIndex(entry.Generation)
	if err == nil && num == objNum {
		return obj, nil
	}
	// The index is only a hint; fall back to a lookup by number.
	obj, _, err = stm.GetObjectByNumber(objNum)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}
	return obj, nil
}

func (r *Reader) objectStream(num int) (*core.ObjectStream, error) {
	if stm, ok := r.objStreams[num]; ok {
		return stm, nil
	}
	obj, err := r.GetObject(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %T", num, obj)
	}
	stm, err := core.NewObjectStream(s)
	if err != nil {
		return nil, err
	}
	r.objStreams[num] = stm
	return stm, nil
}

func isXRefStream(obj core.Object) bool {
	s, ok := obj.(*core.Stream)
	if !ok {
		return false
	}
	t, _ := s.Dict.GetName("Type")
	return t == "XRef"
}

// ResolveReference resolves an indirect reference
func (r *Reader) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return r.GetObject(ref.Number)
}

// GetCatalog returns the document catalog (root object)
func (r *Reader) GetCatalog() (core.Dict, error) {
	rootRef := r.trailer.Get("Root")
	if rootRef == nil {
		return nil, fmt.Errorf("trailer missing /Root entry")
	}

	obj, err := r.Resolve(rootRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}

	catalog, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary: %T", obj)
	}

	return catalog, nil
}

// GetInfo returns the raw document info dictionary, or nil when the file
// has none.
func (r *Reader) GetInfo() (core.Dict, error) {
	infoRef := r.trailer.Get("Info")
	if infoRef == nil {
		return nil, nil
	}

	obj, err := r.Resolve(infoRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve info: %w", err)
	}

	info, ok := obj.(core.Dict)
	if !ok {
		return nil, nil
	}

	return info, nil
}

// XRefTable returns the cross-reference table in use.
func (r *Reader) XRefTable() *core.XRefTable {
	return r.xrefTable
}

// Resolve follows obj if it is a reference and returns it unchanged
// otherwise.
func (r *Reader) Resolve(obj core.Object) (core.Object, error) {
	if ref, ok := obj.(core.IndirectRef); ok {
		return r.ResolveReference(ref)
	}
	return obj, nil
}

// PageCount returns the number of pages in the PDF
func (r *Reader) PageCount() (int, error) {
	if err := r.ensurePageTree(); err != nil {
		return 0, err
	}
	return r.pageTree.Count()
}

// GetPage returns the page at the given index (0-based)
func (r *Reader) GetPage(index int) (*pages.Page, error) {
	if err := r.ensurePageTree(); err != nil {
		return nil, err
	}
	return r.pageTree.GetPage(index)
}

func (r *Reader) ensurePageTree() error {
	if r.pageTree != nil {
		return nil
	}

	catalog, err := r.GetCatalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	pagesObj, err := r.Resolve(catalog.Get("Pages"))
	if err != nil {
		return fmt.Errorf("failed to resolve pages: %w", err)
	}

	pagesDict, ok := pagesObj.(core.Dict)
	if !ok {
		return fmt.Errorf("catalog /Pages is not a dictionary: %T", pagesObj)
	}

	r.pageTree = pages.NewPageTree(pagesDict, r)
	return nil
}
