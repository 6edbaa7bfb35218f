// Package filters decodes PDF stream data.
//
// Each filter is looked up by its PDF name, long or abbreviated:
//
//	fn, ok := filters.Lookup("FlateDecode")
//	data, err := fn(raw, filters.Params{Predictor: 12, Columns: 5, Colors: 1, BitsPerComponent: 8})
//
// Flate and LZW output is passed through the TIFF or PNG predictor named
// by Params.Predictor. Image codecs (DCTDecode, JPXDecode) are not
// filters here; the image decoder handles them.
package filters
