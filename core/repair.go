package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// ErrNoCatalog is returned by ReconstructXRef when the scan finds objects
// but nothing that can serve as the document catalog.
var ErrNoCatalog = errors.New("core: no catalog found while rebuilding xref")

var (
	objStart     = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)[ \t\r\n\f\x00]+(\d+)[ \t\r\n\f\x00]+obj\b`)
	typeCatalog  = regexp.MustCompile(`/Type\s*/Catalog\b`)
	typeObjStm   = regexp.MustCompile(`/Type\s*/ObjStm\b`)
	typeXRef     = regexp.MustCompile(`/Type\s*/XRef\b`)
	trailerStart = []byte("trailer")
)

// RepairedTable is the result of a full-file scan. ObjectStreams lists the
// object numbers of object streams found, whose members are not yet in the
// table.
type RepairedTable struct {
	*XRefTable
	ObjectStreams []int
}

// ReconstructXRef rebuilds a cross-reference table by scanning the whole
// file for "N G obj" headers. Later definitions of the same object win, as
// they would in an incrementally updated file. The trailer is taken from
// the last parseable trailer dictionary or cross-reference stream; failing
// both, a minimal one is synthesised around the first catalog found.
func ReconstructXRef(r io.ReadSeeker) (*RepairedTable, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to start: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	table := NewXRefTable()
	repaired := &RepairedTable{XRefTable: table}
	var catalog *IndirectRef
	var streamTrailer Dict

	for _, m := range objStart.FindAllSubmatchIndex(data, -1) {
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		offset := int64(m[2])
		table.Set(num, &XRefEntry{Type: XRefEntryUncompressed, Offset: offset, Generation: gen, InUse: true})

		head := objectHead(data[m[1]:])
		switch {
		case typeCatalog.Match(head):
			if catalog == nil {
				catalog = &IndirectRef{Number: num, Generation: gen}
			}
		case typeObjStm.Match(head):
			repaired.ObjectStreams = append(repaired.ObjectStreams, num)
		case typeXRef.Match(head):
			if d, err := NewParser(bytes.NewReader(head)).ParseObject(); err == nil {
				if dict, ok := d.(Dict); ok {
					streamTrailer = dict
				}
			}
		}
	}

	if table.Size() == 0 {
		return nil, fmt.Errorf("no objects found in %d bytes", len(data))
	}

	if trailer := lastTrailer(data); trailer != nil && trailer.Has("Root") {
		table.Trailer = trailer
	} else if streamTrailer != nil && streamTrailer.Has("Root") {
		table.Trailer = streamTrailer
	} else if catalog != nil {
		table.Trailer = Dict{"Root": *catalog, "Size": Int(maxObjectNumber(table) + 1)}
	} else {
		return nil, ErrNoCatalog
	}

	// Offsets and filters from a stale stream trailer must not leak in.
	for _, k := range []string{"Prev", "XRefStm", "Filter", "DecodeParms", "Length", "W", "Index", "Type"} {
		table.Trailer.Delete(k)
	}

	return repaired, nil
}

// objectHead returns the text of an object up to its stream or endobj
// keyword, limited to a reasonable size.
func objectHead(data []byte) []byte {
	const limit = 4096
	if len(data) > limit {
		data = data[:limit]
	}
	end := len(data)
	for _, kw := range [][]byte{[]byte("stream"), []byte("endobj")} {
		if i := bytes.Index(data, kw); i >= 0 && i < end {
			end = i
		}
	}
	return data[:end]
}

// lastTrailer parses the last "trailer" dictionary in data, if any.
func lastTrailer(data []byte) Dict {
	for end := len(data); end > 0; {
		i := bytes.LastIndex(data[:end], trailerStart)
		if i < 0 {
			return nil
		}
		obj, err := NewParser(bytes.NewReader(data[i+len(trailerStart):])).ParseObject()
		if err == nil {
			if dict, ok := obj.(Dict); ok {
				return dict
			}
		}
		end = i
	}
	return nil
}

func maxObjectNumber(t *XRefTable) int {
	highest := 0
	for n := range t.Entries {
		if n > highest {
			highest = n
		}
	}
	return highest
}
