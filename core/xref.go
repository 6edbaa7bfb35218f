package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoXRef is returned when no startxref marker can be found.
var ErrNoXRef = errors.New("core: startxref not found")

// XRefEntryType classifies a cross-reference entry.
type XRefEntryType int

const (
	// XRefEntryFree marks a deleted or unused object number.
	XRefEntryFree XRefEntryType = iota
	// XRefEntryUncompressed is an object stored at a byte offset.
	XRefEntryUncompressed
	// XRefEntryCompressed is an object stored inside an object stream.
	XRefEntryCompressed
)

func (t XRefEntryType) String() string {
	switch t {
	case XRefEntryFree:
		return "free"
	case XRefEntryUncompressed:
		return "uncompressed"
	case XRefEntryCompressed:
		return "compressed"
	}
	return fmt.Sprintf("XRefEntryType(%d)", int(t))
}

// XRefEntry is one cross-reference entry.
//
// For compressed entries Offset holds the object number of the containing
// object stream and Generation the index of the object within it.
type XRefEntry struct {
	Type       XRefEntryType
	Offset     int64
	Generation int
	InUse      bool
}

// XRefTable maps object numbers to entries, together with the trailer.
type XRefTable struct {
	Entries map[int]*XRefEntry
	Trailer Dict

	// IsStream is set when the section was read from a cross-reference
	// stream rather than a classic table.
	IsStream bool
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: make(Dict),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or updates an XRef entry
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// Size returns the number of entries in the table
func (x *XRefTable) Size() int {
	return len(x.Entries)
}

// XRefParser reads cross-reference sections, classic tables as well as
// cross-reference streams, from a seekable source.
type XRefParser struct {
	reader io.ReadSeeker
}

// NewXRefParser creates a new XRef parser
func NewXRefParser(r io.ReadSeeker) *XRefParser {
	return &XRefParser{
		reader: r,
	}
}

// tailSize is how much of the file end is searched for startxref.
const tailSize = 2048

// FindXRef returns the offset recorded after the last startxref keyword.
func (x *XRefParser) FindXRef() (int64, error) {
	fileSize, err := x.reader.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to seek to end: %w", err)
	}

	readSize := int64(tailSize)
	if fileSize < readSize {
		readSize = fileSize
	}
	if _, err := x.reader.Seek(fileSize-readSize, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to startxref area: %w", err)
	}

	buf := make([]byte, readSize)
	n, err := io.ReadFull(x.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("failed to read startxref area: %w", err)
	}
	buf = buf[:n]

	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx == -1 {
		return 0, ErrNoXRef
	}

	fields := strings.Fields(string(buf[idx+len("startxref"):]))
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: missing offset", ErrNoXRef)
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid xref offset %q: %w", fields[0], err)
	}
	if offset < 0 || offset >= fileSize {
		return 0, fmt.Errorf("xref offset %d outside file of %d bytes", offset, fileSize)
	}

	return offset, nil
}

// ParseXRef parses the cross-reference section at offset, dispatching on
// whether it is a classic table or a stream.
func (x *XRefParser) ParseXRef(offset int64) (*XRefTable, error) {
	if _, err := x.reader.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to xref: %w", err)
	}

	isStream, err := x.isXRefStream()
	if err != nil {
		return nil, err
	}
	if isStream {
		return x.parseXRefStream()
	}

	table, err := x.parseXRefTable()
	if err != nil {
		return nil, err
	}

	// Hybrid files carry the compressed entries in a separate stream.
	if stmOffset, ok := table.Trailer.GetInt("XRefStm"); ok {
		if _, err := x.reader.Seek(int64(stmOffset), io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek to XRefStm: %w", err)
		}
		stm, err := x.parseXRefStream()
		if err != nil {
			return nil, fmt.Errorf("failed to parse XRefStm: %w", err)
		}
		for num, entry := range stm.Entries {
			if existing, ok := table.Get(num); !ok || !existing.InUse {
				table.Set(num, entry)
			}
		}
	}

	return table, nil
}

var objHeader = regexp.MustCompile(`^\d+\s+\d+\s+obj`)

// isXRefStream reports whether the data at the current position starts an
// indirect object (a cross-reference stream) rather than the xref keyword.
// The read position is left unchanged.
func (x *XRefParser) isXRefStream() (bool, error) {
	pos, err := x.reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}
	defer x.reader.Seek(pos, io.SeekStart)

	head := make([]byte, 64)
	n, err := io.ReadFull(x.reader, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	head = bytes.TrimLeft(head[:n], " \t\r\n\f\x00")

	switch {
	case bytes.HasPrefix(head, []byte("xref")):
		return false, nil
	case objHeader.Match(head):
		return true, nil
	}
	return false, fmt.Errorf("no cross-reference section at offset %d", pos)
}

// scanPDFLines splits on LF, CR or CRLF.
func scanPDFLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseXRefTable parses a classic table starting at the xref keyword.
func (x *XRefParser) parseXRefTable() (*XRefTable, error) {
	scanner := bufio.NewScanner(x.reader)
	scanner.Split(scanPDFLines)

	if !scanner.Scan() {
		return nil, fmt.Errorf("failed to read xref keyword")
	}
	line := strings.TrimSpace(scanner.Text())
	if line != "xref" {
		return nil, fmt.Errorf("expected 'xref' keyword, got '%s'", line)
	}

	table := NewXRefTable()
	foundTrailer := false

	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "trailer") {
			trailer, err := x.parseTrailer(strings.TrimPrefix(line, "trailer"), scanner)
			if err != nil {
				return nil, fmt.Errorf("failed to parse trailer: %w", err)
			}
			table.Trailer = trailer
			foundTrailer = true
			break
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid subsection header: %s", line)
		}
		first, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid first object number: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid count %q", parts[1])
		}

		for i := 0; i < count; i++ {
			if !scanner.Scan() {
				return nil, fmt.Errorf("unexpected end of xref subsection")
			}
			entry, err := x.parseEntry(scanner.Text())
			if err != nil {
				return nil, fmt.Errorf("failed to parse xref entry: %w", err)
			}
			table.Set(first+i, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if !foundTrailer {
		return nil, fmt.Errorf("xref table missing trailer")
	}

	return table, nil
}

// parseEntry parses a classic entry, "nnnnnnnnnn ggggg n". Field widths
// are not enforced since many writers get them wrong.
func (x *XRefParser) parseEntry(line string) (*XRefEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("xref entry too short: %q", line)
	}

	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: %w", fields[0], err)
	}
	generation, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid generation %q: %w", fields[1], err)
	}

	switch fields[2] {
	case "n":
		return &XRefEntry{Type: XRefEntryUncompressed, Offset: offset, Generation: generation, InUse: true}, nil
	case "f":
		return &XRefEntry{Type: XRefEntryFree, Offset: offset, Generation: generation}, nil
	}
	return nil, fmt.Errorf("invalid in-use flag: %q", fields[2])
}

// parseTrailer parses the dictionary following the trailer keyword. rest is
// whatever followed the keyword on its own line.
func (x *XRefParser) parseTrailer(rest string, scanner *bufio.Scanner) (Dict, error) {
	var text strings.Builder
	text.WriteString(rest)
	text.WriteString("\n")

	depth := strings.Count(rest, "<<") - strings.Count(rest, ">>")
	seen := strings.Contains(rest, "<<")
	for !(seen && depth <= 0) && scanner.Scan() {
		line := scanner.Text()
		text.WriteString(line)
		text.WriteString("\n")
		depth += strings.Count(line, "<<") - strings.Count(line, ">>")
		if strings.Contains(line, "<<") {
			seen = true
		}
	}

	parser := NewParser(strings.NewReader(text.String()))
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer dictionary: %w", err)
	}

	dict, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("trailer is not a dictionary, got %T", obj)
	}
	return dict, nil
}

// parseXRefStream parses a cross-reference stream object at the current
// position. The stream dictionary doubles as the trailer.
func (x *XRefParser) parseXRefStream() (*XRefTable, error) {
	parser := NewParser(x.reader)
	indObj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream object: %w", err)
	}

	stream, ok := indObj.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("xref stream object is %T, not a stream", indObj.Object)
	}
	dict := stream.Dict

	if typ, _ := dict.GetName("Type"); typ != "XRef" {
		return nil, fmt.Errorf("xref stream has /Type %q", typ)
	}
	size, ok := dict.GetInt("Size")
	if !ok || size < 0 {
		return nil, fmt.Errorf("xref stream missing /Size")
	}

	wArr, ok := dict.GetArray("W")
	if !ok {
		return nil, fmt.Errorf("xref stream missing /W")
	}
	if len(wArr) != 3 {
		return nil, fmt.Errorf("xref stream /W has %d elements, want 3", len(wArr))
	}
	w := make([]int, 3)
	for i := range w {
		v, ok := wArr.GetInt(i)
		if !ok || v < 0 || v > 8 {
			return nil, fmt.Errorf("invalid /W[%d]", i)
		}
		w[i] = int(v)
	}

	index := []int{0, int(size)}
	if idxArr, ok := dict.GetArray("Index"); ok {
		if len(idxArr)%2 != 0 {
			return nil, fmt.Errorf("xref stream /Index has odd length %d", len(idxArr))
		}
		index = index[:0]
		for i := range idxArr {
			v, ok := idxArr.GetInt(i)
			if !ok || v < 0 {
				return nil, fmt.Errorf("invalid /Index[%d]", i)
			}
			index = append(index, int(v))
		}
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	table := NewXRefTable()
	table.IsStream = true
	table.Trailer = dict

	for i := 0; i < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			entry, n, err := x.parseXRefStreamEntry(data, w)
			if err != nil {
				return nil, fmt.Errorf("xref stream entry %d: %w", first+j, err)
			}
			data = data[n:]
			table.Set(first+j, entry)
		}
	}

	return table, nil
}

// parseXRefStreamEntry decodes one binary entry of field widths w and
// returns it with the number of bytes consumed. A zero-width type field
// defaults to type 1.
func (x *XRefParser) parseXRefStreamEntry(data []byte, w []int) (*XRefEntry, int, error) {
	total := w[0] + w[1] + w[2]
	if len(data) < total {
		return nil, 0, fmt.Errorf("need %d bytes, have %d", total, len(data))
	}

	typ := int64(1)
	if w[0] > 0 {
		typ = readBigEndianInt(data, w[0])
	}
	field1 := readBigEndianInt(data[w[0]:], w[1])
	field2 := int(readBigEndianInt(data[w[0]+w[1]:], w[2]))

	entry := &XRefEntry{Offset: field1, Generation: field2}
	switch typ {
	case 0:
		entry.Type = XRefEntryFree
	case 1:
		entry.Type = XRefEntryUncompressed
		entry.InUse = true
	case 2:
		entry.Type = XRefEntryCompressed
		entry.InUse = true
	default:
		// Unknown types are treated as references to the null object.
		entry.Type = XRefEntryFree
	}
	return entry, total, nil
}

// readBigEndianInt reads width bytes of data as an unsigned big-endian
// integer.
func readBigEndianInt(data []byte, width int) int64 {
	var v int64
	for i := 0; i < width && i < len(data); i++ {
		v = v<<8 | int64(data[i])
	}
	return v
}

// ParseXRefFromEOF finds and parses the XRef table by scanning from EOF
func (x *XRefParser) ParseXRefFromEOF() (*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, err
	}

	table, err := x.ParseXRef(offset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref: %w", err)
	}

	return table, nil
}

// MergeXRefTables merges sections ordered oldest first. Later entries
// override earlier ones; trailer keys missing from the newest trailer are
// taken from older ones.
func MergeXRefTables(tables ...*XRefTable) *XRefTable {
	merged := NewXRefTable()
	for _, table := range tables {
		for objNum, entry := range table.Entries {
			merged.Set(objNum, entry)
		}
		for k, v := range table.Trailer {
			merged.Trailer[k] = v
		}
		merged.IsStream = merged.IsStream || table.IsStream
	}
	return merged
}

// ParseAllXRefs follows the /Prev chain from the last section and returns
// every section, oldest first.
func (x *XRefParser) ParseAllXRefs() ([]*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, err
	}

	var tables []*XRefTable
	seen := make(map[int64]bool)
	for {
		if seen[offset] {
			return nil, fmt.Errorf("xref /Prev chain loops at offset %d", offset)
		}
		seen[offset] = true

		table, err := x.ParseXRef(offset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse xref at %d: %w", offset, err)
		}
		tables = append([]*XRefTable{table}, tables...)

		prev, ok := table.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = int64(prev)
	}

	return tables, nil
}
