package contentstream

import (
	"fmt"

	"github.com/tsawler/pageview/core"
)

// inlineImage reads "<key value>... ID <data> EI" after BI. Operands
// pending before BI are dropped.
func (p *Parser) inlineImage() error {
	p.stack = p.stack[:0]
	dict := core.Dict{}
	for {
		p.skip()
		if p.pos >= len(p.data) {
			return fmt.Errorf("missing ID")
		}
		if p.data[p.pos] != '/' {
			if word := p.regular(); word != "ID" {
				return fmt.Errorf("unexpected %q before ID", word)
			}
			break
		}
		p.pos++
		key := p.name()

		p.skip()
		if p.pos >= len(p.data) {
			return fmt.Errorf("missing value for /%s", key)
		}
		obj, word, err := p.token()
		if err != nil {
			return err
		}
		if word != "" {
			obj = core.Name(word)
		}
		dict[key] = obj
	}

	// One whitespace byte separates ID from the data.
	if p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
		p.pos++
	}
	start := p.pos
	end := p.imageEnd(start, inlineImageLength(dict))
	if end < 0 {
		return fmt.Errorf("missing EI")
	}

	data := p.data[start:end]
	p.pos = end
	p.skip()
	p.pos += 2
	p.emit("BI", dict, core.String(data))
	return nil
}

// imageEnd finds where inline image data starting at start ends. A known
// length is trusted when EI follows it; otherwise the data runs to the
// first whitespace-preceded EI.
func (p *Parser) imageEnd(start, length int) int {
	if length >= 0 && start+length <= len(p.data) && p.isEIAt(start+length) {
		return start + length
	}
	for i := start + 1; i+2 <= len(p.data); i++ {
		if p.data[i] == 'E' && isWhitespace(p.data[i-1]) && p.isEIAt(i) {
			return i - 1
		}
	}
	return -1
}

// isEIAt reports whether "EI" followed by whitespace, a delimiter or the
// end of data starts at i, allowing leading whitespace.
func (p *Parser) isEIAt(i int) bool {
	for i < len(p.data) && isWhitespace(p.data[i]) {
		i++
	}
	if i+2 > len(p.data) || p.data[i] != 'E' || p.data[i+1] != 'I' {
		return false
	}
	return i+2 == len(p.data) || isWhitespace(p.data[i+2]) || isDelimiter(p.data[i+2])
}

// inlineImageLength computes the data length of an unfiltered inline image
// in a device colour space, or -1 when it cannot be known up front.
func inlineImageLength(d core.Dict) int {
	if d.Has("F") || d.Has("Filter") {
		return -1
	}
	get := func(short, long string) core.Object {
		if v := d.Get(short); v != nil {
			return v
		}
		return d.Get(long)
	}
	w, ok1 := get("W", "Width").(core.Int)
	h, ok2 := get("H", "Height").(core.Int)
	if !ok1 || !ok2 {
		return -1
	}

	bpc, comps := 1, 1
	if mask, _ := get("IM", "ImageMask").(core.Bool); !mask {
		b, ok := get("BPC", "BitsPerComponent").(core.Int)
		if !ok {
			return -1
		}
		bpc = int(b)
		switch cs, _ := get("CS", "ColorSpace").(core.Name); cs {
		case "G", "DeviceGray":
		case "RGB", "DeviceRGB":
			comps = 3
		case "CMYK", "DeviceCMYK":
			comps = 4
		default:
			return -1
		}
	}
	return (int(w)*comps*bpc + 7) / 8 * int(h)
}
