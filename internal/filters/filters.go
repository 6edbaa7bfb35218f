package filters

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for filters that are recognised but not
// implemented.
var ErrUnsupported = errors.New("filters: unsupported filter")

// Func decodes one filter stage.
type Func func(data []byte, p Params) ([]byte, error)

// Params holds the DecodeParms entries the filters understand.
type Params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      int

	// CCITT fax
	K        int
	Rows     int
	BlackIs1 bool
}

// DefaultParams returns the values PDF assigns to absent entries. Columns
// defaults to 1 for predictors; CCITTFax uses 1728 when Columns is unset.
func DefaultParams() Params {
	return Params{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
		EarlyChange:      1,
	}
}

var registry = map[string]Func{
	"FlateDecode":     Flate,
	"ASCIIHexDecode":  ignoreParams(ASCIIHex),
	"ASCII85Decode":   ignoreParams(ASCII85),
	"LZWDecode":       LZW,
	"RunLengthDecode": ignoreParams(RunLength),
	"CCITTFaxDecode":  CCITTFax,
	"JBIG2Decode":     unsupported("JBIG2Decode"),
}

var abbreviations = map[string]string{
	"Fl":  "FlateDecode",
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
}

// Lookup returns the decoder for a filter name.
func Lookup(name string) (Func, bool) {
	if long, ok := abbreviations[name]; ok {
		name = long
	}
	fn, ok := registry[name]
	return fn, ok
}

func ignoreParams(fn func([]byte) ([]byte, error)) Func {
	return func(data []byte, _ Params) ([]byte, error) { return fn(data) }
}

func unsupported(name string) Func {
	return func([]byte, Params) ([]byte, error) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}
