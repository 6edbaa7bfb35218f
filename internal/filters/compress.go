package filters

import (
	"bytes"
	stdlzw "compress/lzw"
	"compress/zlib"
	"fmt"
	"io"

	"golang.org/x/image/ccitt"
	"golang.org/x/image/tiff/lzw"
)

// Flate inflates zlib data and undoes the predictor. A stream truncated
// after some output yields what was decoded.
func Flate(data []byte, p Params) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	defer zr.Close()

	out, err := readPartial(zr)
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	return Unpredict(out, p)
}

// LZW decodes LZW data. EarlyChange 1, the default, widens codes one
// code early as TIFF does; 0 selects the classic variant.
func LZW(data []byte, p Params) ([]byte, error) {
	var rc io.ReadCloser
	if p.EarlyChange == 0 {
		rc = stdlzw.NewReader(bytes.NewReader(data), stdlzw.MSB, 8)
	} else {
		rc = lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	}
	defer rc.Close()

	out, err := readPartial(rc)
	if err != nil {
		return nil, fmt.Errorf("lzw: %w", err)
	}
	return Unpredict(out, p)
}

// CCITTFax decodes Group 3 or Group 4 fax data into packed 1-bit rows.
// K < 0 selects Group 4.
func CCITTFax(data []byte, p Params) ([]byte, error) {
	sf := ccitt.Group3
	if p.K < 0 {
		sf = ccitt.Group4
	}
	columns := p.Columns
	if columns <= 1 {
		columns = 1728
	}
	rows := p.Rows
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}

	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows, &ccitt.Options{Invert: p.BlackIs1})
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ccitt: %w", err)
	}
	return out, nil
}

// readPartial reads r to the end. An error after some output is dropped;
// damaged streams often still carry a usable prefix.
func readPartial(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}
