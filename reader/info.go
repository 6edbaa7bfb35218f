package reader

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/tsawler/pageview/core"
)

// DocumentInfo holds the text entries of the document information
// dictionary, decoded to UTF-8.
type DocumentInfo struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	ModDate      string
}

// Info returns the decoded document information dictionary. A document
// without one yields the zero value.
func (r *Reader) Info() (DocumentInfo, error) {
	dict, err := r.GetInfo()
	if err != nil || dict == nil {
		return DocumentInfo{}, err
	}

	get := func(key string) string {
		obj, err := r.Resolve(dict.Get(key))
		if err != nil {
			return ""
		}
		s, _ := obj.(core.String)
		return TextString(s)
	}

	return DocumentInfo{
		Title:        get("Title"),
		Author:       get("Author"),
		Subject:      get("Subject"),
		Keywords:     get("Keywords"),
		Creator:      get("Creator"),
		Producer:     get("Producer"),
		CreationDate: get("CreationDate"),
		ModDate:      get("ModDate"),
	}, nil
}

var (
	bomUTF16BE = []byte{0xfe, 0xff}
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
)

// TextString decodes a PDF text string: UTF-16BE or UTF-8 when it starts
// with a byte order mark, PDFDocEncoding otherwise. PDFDocEncoding is read
// as Latin-1, which agrees with it outside the 0x80-0x9f range.
func TextString(s core.String) string {
	b := []byte(s)
	switch {
	case bytes.HasPrefix(b, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(b)
		if err != nil {
			return ""
		}
		return string(out)

	case bytes.HasPrefix(b, bomUTF8):
		if utf8.Valid(b[3:]) {
			return string(b[3:])
		}
		return ""

	default:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return string(b)
		}
		return string(out)
	}
}
