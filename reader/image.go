package reader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/tsawler/pageview/core"
)

// ErrUnsupportedImage is returned for image encodings that cannot be
// decoded, such as JPXDecode and JBIG2Decode.
var ErrUnsupportedImage = errors.New("reader: unsupported image")

// Image is a decoded image XObject or inline image.
type Image struct {
	Width  int
	Height int

	// Stencil is set for image masks. Pixels is then an *image.Alpha that
	// is opaque where the current fill colour is painted.
	Stencil bool

	// Pixels holds the samples: *image.Gray, *image.RGBA, *image.NRGBA
	// (when a soft mask applies) or *image.Alpha for stencils.
	Pixels image.Image
}

// DecodeImage decodes an image stream with its filters, colour space,
// /Decode array and soft mask.
func (r *Reader) DecodeImage(s *core.Stream) (*Image, error) {
	return decodeImage(s, r.Resolve)
}

type resolveFunc func(core.Object) (core.Object, error)

func decodeImage(s *core.Stream, resolve resolveFunc) (*Image, error) {
	d := s.Dict
	width, _ := d.GetInt("Width")
	height, _ := d.GetInt("Height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	img := &Image{Width: int(width), Height: int(height)}

	switch lastFilter(d) {
	case "JPXDecode", "JBIG2Decode":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, lastFilter(d))
	}

	data, err := s.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}

	if mask, _ := d.GetBool("ImageMask"); mask {
		img.Stencil = true
		img.Pixels = decodeStencil(data, img.Width, img.Height, decodeInverted(d, resolve))
		return img, nil
	}

	var pix image.Image
	if f := lastFilter(d); f == "DCTDecode" || f == "DCT" {
		pix, err = jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG: %w", err)
		}
		img.Width, img.Height = pix.Bounds().Dx(), pix.Bounds().Dy()
	} else {
		csObj, err := resolve(d.Get("ColorSpace"))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve colour space: %w", err)
		}
		cs, err := parseColorSpace(csObj, resolve)
		if err != nil {
			return nil, err
		}
		bpc := 8
		if v, ok := d.GetInt("BitsPerComponent"); ok {
			bpc = int(v)
		}
		pix, err = decodeSamples(data, img.Width, img.Height, bpc, cs, decodeArray(d, resolve))
		if err != nil {
			return nil, err
		}
	}

	if smObj := d.Get("SMask"); smObj != nil {
		if sm, err := resolve(smObj); err == nil {
			if ss, ok := sm.(*core.Stream); ok {
				if alpha, err := decodeImage(ss, resolve); err == nil {
					pix = applySoftMask(pix, alpha.Pixels)
				}
			}
		}
	}

	img.Pixels = pix
	return img, nil
}

func lastFilter(d core.Dict) string {
	switch f := d.Get("Filter").(type) {
	case core.Name:
		return string(f)
	case core.Array:
		if n, ok := f.GetName(len(f) - 1); ok {
			return string(n)
		}
	}
	return ""
}

// ColorSpace describes how colour components map to RGB.
type ColorSpace struct {
	family string // gray, rgb, cmyk, indexed or separation
	n      int

	base   *ColorSpace
	hival  int
	lookup []byte
}

var (
	csGray = &ColorSpace{family: "gray", n: 1}
	csRGB  = &ColorSpace{family: "rgb", n: 3}
	csCMYK = &ColorSpace{family: "cmyk", n: 4}
)

// DeviceGray returns the DeviceGray colour space.
func DeviceGray() *ColorSpace { return csGray }

// DeviceRGB returns the DeviceRGB colour space.
func DeviceRGB() *ColorSpace { return csRGB }

// DeviceCMYK returns the DeviceCMYK colour space.
func DeviceCMYK() *ColorSpace { return csCMYK }

func parseColorSpace(obj core.Object, resolve resolveFunc) (*ColorSpace, error) {
	switch v := obj.(type) {
	case nil:
		return csGray, nil
	case core.Name:
		switch v {
		case "DeviceGray", "G", "CalGray":
			return csGray, nil
		case "DeviceRGB", "RGB", "CalRGB":
			return csRGB, nil
		case "DeviceCMYK", "CMYK":
			return csCMYK, nil
		}
		return nil, fmt.Errorf("%w: colour space %s", ErrUnsupportedImage, v)

	case core.Array:
		family, _ := v.GetName(0)
		switch family {
		case "CalGray":
			return csGray, nil
		case "CalRGB":
			return csRGB, nil
		case "ICCBased":
			return iccColorSpace(v, resolve)
		case "Indexed", "I":
			return indexedColorSpace(v, resolve)
		case "Separation":
			return &ColorSpace{family: "separation", n: 1}, nil
		case "DeviceGray", "DeviceRGB", "DeviceCMYK", "G", "RGB", "CMYK":
			return parseColorSpace(family, resolve)
		}
		return nil, fmt.Errorf("%w: colour space %s", ErrUnsupportedImage, family)
	}
	return nil, fmt.Errorf("%w: colour space of type %T", ErrUnsupportedImage, obj)
}

func iccColorSpace(a core.Array, resolve resolveFunc) (*ColorSpace, error) {
	if len(a) < 2 {
		return nil, fmt.Errorf("ICCBased colour space without stream")
	}
	obj, err := resolve(a[1])
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("ICCBased profile is %T", obj)
	}
	if alt := s.Dict.Get("Alternate"); alt != nil {
		if altObj, err := resolve(alt); err == nil {
			if cs, err := parseColorSpace(altObj, resolve); err == nil {
				return cs, nil
			}
		}
	}
	switch n, _ := s.Dict.GetInt("N"); n {
	case 1:
		return csGray, nil
	case 3:
		return csRGB, nil
	case 4:
		return csCMYK, nil
	default:
		return nil, fmt.Errorf("%w: ICCBased with %d components", ErrUnsupportedImage, n)
	}
}

func indexedColorSpace(a core.Array, resolve resolveFunc) (*ColorSpace, error) {
	if len(a) < 4 {
		return nil, fmt.Errorf("indexed colour space needs 4 entries, has %d", len(a))
	}
	baseObj, err := resolve(a[1])
	if err != nil {
		return nil, err
	}
	base, err := parseColorSpace(baseObj, resolve)
	if err != nil {
		return nil, err
	}
	if base.family == "indexed" {
		return nil, fmt.Errorf("indexed colour space over indexed base")
	}
	hival, _ := a.GetInt(2)

	lookupObj, err := resolve(a[3])
	if err != nil {
		return nil, err
	}
	var lookup []byte
	switch l := lookupObj.(type) {
	case core.String:
		lookup = []byte(l)
	case *core.Stream:
		if lookup, err = l.Decode(); err != nil {
			return nil, fmt.Errorf("failed to decode palette: %w", err)
		}
	default:
		return nil, fmt.Errorf("indexed palette is %T", lookupObj)
	}

	return &ColorSpace{family: "indexed", n: 1, base: base, hival: int(hival), lookup: lookup}, nil
}

// ColorSpace resolves obj and parses it as a colour space.
func (r *Reader) ColorSpace(obj core.Object) (*ColorSpace, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	return parseColorSpace(resolved, r.Resolve)
}

// N returns the number of components of a colour in this space.
func (cs *ColorSpace) N() int { return cs.n }

// Family returns gray, rgb, cmyk, indexed or separation.
func (cs *ColorSpace) Family() string { return cs.family }

// RGB converts colour components in the 0-1 range, or a palette index for
// indexed spaces, to RGB in the 0-1 range.
func (cs *ColorSpace) RGB(c []float64) (r, g, b float64) {
	if len(c) < cs.n {
		return 0, 0, 0
	}
	if cs.family == "indexed" {
		comps := make([]byte, 1)
		comps[0] = byte(math.Max(0, math.Min(255, c[0])))
		r8, g8, b8 := cs.rgb(comps)
		return float64(r8) / 255, float64(g8) / 255, float64(b8) / 255
	}
	comps := make([]byte, cs.n)
	for i := range comps {
		comps[i] = clampByte(c[i] * 255)
	}
	r8, g8, b8 := cs.rgb(comps)
	return float64(r8) / 255, float64(g8) / 255, float64(b8) / 255
}

// rgb converts one pixel's components, each scaled to 0-255.
func (cs *ColorSpace) rgb(c []byte) (r, g, b uint8) {
	switch cs.family {
	case "gray":
		return c[0], c[0], c[0]
	case "separation":
		v := 255 - c[0]
		return v, v, v
	case "rgb":
		return c[0], c[1], c[2]
	case "cmyk":
		return color.CMYKToRGB(c[0], c[1], c[2], c[3])
	case "indexed":
		i := min(int(c[0]), cs.hival) * cs.base.n
		if i+cs.base.n > len(cs.lookup) {
			return 0, 0, 0
		}
		return cs.base.rgb(cs.lookup[i : i+cs.base.n])
	}
	return 0, 0, 0
}

// decodeArray returns the /Decode array as pairs of reals, or nil.
func decodeArray(d core.Dict, resolve resolveFunc) []float64 {
	obj, err := resolve(d.Get("Decode"))
	if err != nil {
		return nil
	}
	a, ok := obj.(core.Array)
	if !ok {
		return nil
	}
	out := make([]float64, len(a))
	for i := range a {
		switch v := a[i].(type) {
		case core.Int:
			out[i] = float64(v)
		case core.Real:
			out[i] = float64(v)
		}
	}
	return out
}

func decodeInverted(d core.Dict, resolve resolveFunc) bool {
	da := decodeArray(d, resolve)
	return len(da) >= 2 && da[0] == 1 && da[1] == 0
}

// sampleTable maps every raw sample of component comp to a byte. Indexed
// samples map to palette indices.
func sampleTable(cs *ColorSpace, bpc, comp int, decode []float64) []byte {
	maxv := (1 << bpc) - 1
	lo, hi := 0.0, 1.0
	if cs.family == "indexed" {
		hi = float64(maxv)
	}
	if len(decode) >= 2*comp+2 {
		lo, hi = decode[2*comp], decode[2*comp+1]
	}

	table := make([]byte, maxv+1)
	for raw := range table {
		v := lo + float64(raw)*(hi-lo)/float64(maxv)
		if cs.family != "indexed" {
			v *= 255
		}
		table[raw] = clampByte(v)
	}
	return table
}

func clampByte(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v + 0.5)
}

// decodeSamples unpacks rows of bpc-bit samples into an image.
func decodeSamples(data []byte, w, h, bpc int, cs *ColorSpace, decode []float64) (image.Image, error) {
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("%w: %d bits per component", ErrUnsupportedImage, bpc)
	}

	n := cs.n
	stride := (w*n*bpc + 7) / 8
	if len(data) < stride*h {
		return nil, fmt.Errorf("image data truncated: have %d bytes, need %d", len(data), stride*h)
	}

	readBits := bpc
	if bpc == 16 {
		readBits = 8
	}
	tables := make([][]byte, n)
	for c := range tables {
		tables[c] = sampleTable(cs, readBits, c, decode)
	}

	sample := func(row []byte, i int) int {
		switch bpc {
		case 8:
			return int(row[i])
		case 16:
			return int(row[2*i])
		}
		bit := i * bpc
		shift := 8 - bpc - bit%8
		return int(row[bit/8]>>shift) & (1<<bpc - 1)
	}

	if cs.family == "gray" {
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row := data[y*stride : (y+1)*stride]
			for x := 0; x < w; x++ {
				out.Pix[y*out.Stride+x] = tables[0][sample(row, x)]
			}
		}
		return out, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	comps := make([]byte, n)
	for y := 0; y < h; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			for c := 0; c < n; c++ {
				comps[c] = tables[c][sample(row, x*n+c)]
			}
			r, g, b := cs.rgb(comps)
			i := y*out.Stride + 4*x
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = r, g, b, 0xff
		}
	}
	return out, nil
}

// decodeStencil unpacks a 1-bit image mask. Samples of 0 are painted,
// or samples of 1 when inverted.
func decodeStencil(data []byte, w, h int, inverted bool) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	stride := (w + 7) / 8
	for y := 0; y < h && (y+1)*stride <= len(data); y++ {
		row := data[y*stride:]
		for x := 0; x < w; x++ {
			bit := row[x/8]>>(7-x%8)&1 == 1
			if bit == inverted {
				out.Pix[y*out.Stride+x] = 0xff
			}
		}
	}
	return out
}

// applySoftMask combines pix with the luminosity of mask as alpha. The mask
// is sampled nearest-neighbour when the sizes differ.
func applySoftMask(pix, mask image.Image) image.Image {
	b := pix.Bounds()
	mb := mask.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		my := mb.Min.Y + (y-b.Min.Y)*mb.Dy()/b.Dy()
		for x := b.Min.X; x < b.Max.X; x++ {
			mx := mb.Min.X + (x-b.Min.X)*mb.Dx()/b.Dx()
			a := color.GrayModel.Convert(mask.At(mx, my)).(color.Gray).Y
			r, g, bl, _ := pix.At(x, y).RGBA()
			out.SetNRGBA(x, y, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: a})
		}
	}
	return out
}

// inlineKeys expands the abbreviations allowed in inline image
// dictionaries.
var inlineKeys = map[string]string{
	"W": "Width", "H": "Height", "BPC": "BitsPerComponent", "CS": "ColorSpace",
	"F": "Filter", "DP": "DecodeParms", "IM": "ImageMask", "D": "Decode", "I": "Interpolate",
}

// InlineImageStream turns the dictionary and data of an inline image into
// a stream that DecodeImage accepts. Colour space and filter abbreviations
// are understood by the decoders themselves.
func InlineImageStream(dict core.Dict, data []byte) *core.Stream {
	full := make(core.Dict, len(dict)+1)
	for k, v := range dict {
		if long, ok := inlineKeys[k]; ok {
			k = long
		}
		full[k] = v
	}
	full["Subtype"] = core.Name("Image")
	return &core.Stream{Dict: full, Data: data}
}
