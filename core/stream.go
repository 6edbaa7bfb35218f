package core

import (
	"fmt"

	"github.com/tsawler/pageview/internal/filters"
)

// Decode applies the stream's Filter chain to its data. Image codecs
// (DCTDecode, JPXDecode) end the chain and their input is returned
// unchanged for the image decoder.
func (s *Stream) Decode() ([]byte, error) {
	names, err := filterNames(s.Dict.Get("Filter"))
	if err != nil {
		return nil, err
	}
	parms := s.Dict.Get("DecodeParms")

	data := s.Data
	for i, name := range names {
		parm := paramsObjToDict(parms)
		if arr, ok := parms.(Array); ok {
			parm = paramsObjToDict(arr.Get(i))
		}

		switch name {
		case "DCTDecode", "DCT", "JPXDecode":
			return data, nil
		case "Crypt":
			// Decryption happens when the object is loaded; only the
			// Identity crypt filter can remain here.
			if n, ok := parm.GetName("Name"); ok && n != "Identity" {
				return nil, fmt.Errorf("crypt filter %s not supported", n)
			}
			continue
		}

		fn, ok := filters.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown filter: %s", name)
		}
		if data, err = fn(data, decodeParams(parm)); err != nil {
			return nil, fmt.Errorf("filter %d (%s): %w", i, name, err)
		}
	}
	return data, nil
}

func filterNames(obj Object) ([]string, error) {
	switch f := obj.(type) {
	case nil, Null:
		return nil, nil
	case Name:
		return []string{string(f)}, nil
	case Array:
		names := make([]string, len(f))
		for i, elem := range f {
			n, ok := elem.(Name)
			if !ok {
				return nil, fmt.Errorf("filter %d is not a name: %T", i, elem)
			}
			names[i] = string(n)
		}
		return names, nil
	}
	return nil, fmt.Errorf("invalid Filter type: %T", obj)
}

// paramsObjToDict returns obj as a Dict, or nil for null and other types.
func paramsObjToDict(obj Object) Dict {
	d, _ := obj.(Dict)
	return d
}

// decodeParams reads DecodeParms entries over the PDF defaults.
func decodeParams(d Dict) filters.Params {
	p := filters.DefaultParams()
	ints := map[string]*int{
		"Predictor":        &p.Predictor,
		"Colors":           &p.Colors,
		"BitsPerComponent": &p.BitsPerComponent,
		"Columns":          &p.Columns,
		"EarlyChange":      &p.EarlyChange,
		"K":                &p.K,
		"Rows":             &p.Rows,
	}
	for key, dst := range ints {
		switch v := d.Get(key).(type) {
		case Int:
			*dst = int(v)
		case Real:
			*dst = int(v)
		}
	}
	if b, ok := d.GetBool("BlackIs1"); ok {
		p.BlackIs1 = bool(b)
	}
	return p
}
