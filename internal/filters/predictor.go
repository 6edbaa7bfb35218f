package filters

import "fmt"

// Unpredict reverses the predictor named by p.Predictor: 1 is none, 2 is
// TIFF horizontal differencing and 10 to 15 are the PNG filters, where the
// first byte of each row selects the filter.
func Unpredict(data []byte, p Params) ([]byte, error) {
	switch {
	case p.Predictor <= 1:
		return data, nil
	case p.Predictor == 2:
		return unpredictTIFF(data, p)
	case p.Predictor >= 10 && p.Predictor <= 15:
		return unpredictPNG(data, p)
	}
	return nil, fmt.Errorf("predictor %d not supported", p.Predictor)
}

// geometry returns the bytes per complete pixel (at least 1) and per row.
func (p Params) geometry() (pixel, row int) {
	colors, bpc, columns := max(p.Colors, 1), max(p.BitsPerComponent, 1), max(p.Columns, 1)
	pixel = max(colors*bpc/8, 1)
	row = (colors*bpc*columns + 7) / 8
	return pixel, row
}

func unpredictTIFF(data []byte, p Params) ([]byte, error) {
	if p.BitsPerComponent != 8 {
		return nil, fmt.Errorf("TIFF predictor with %d bits per component not supported", p.BitsPerComponent)
	}
	pixel, row := p.geometry()
	out := append([]byte(nil), data...)
	for start := 0; start+row <= len(out); start += row {
		line := out[start : start+row]
		for i := pixel; i < len(line); i++ {
			line[i] += line[i-pixel]
		}
	}
	return out, nil
}

func unpredictPNG(data []byte, p Params) ([]byte, error) {
	pixel, row := p.geometry()
	stride := row + 1
	n := len(data) / stride
	if n == 0 && len(data) > 0 {
		return nil, fmt.Errorf("predicted data of %d bytes is shorter than a row of %d", len(data), stride)
	}

	out := make([]byte, n*row)
	prev := make([]byte, row)
	for r := 0; r < n; r++ {
		tag := data[r*stride]
		line := out[r*row : (r+1)*row]
		copy(line, data[r*stride+1:(r+1)*stride])
		if err := unfilterRow(tag, line, prev, pixel); err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		prev = line
	}
	return out, nil
}

func unfilterRow(tag byte, line, prev []byte, pixel int) error {
	switch tag {
	case 0:
	case 1:
		for i := pixel; i < len(line); i++ {
			line[i] += line[i-pixel]
		}
	case 2:
		for i := range line {
			line[i] += prev[i]
		}
	case 3:
		for i := range line {
			var left int
			if i >= pixel {
				left = int(line[i-pixel])
			}
			line[i] += byte((left + int(prev[i])) / 2)
		}
	case 4:
		for i := range line {
			var left, upLeft byte
			if i >= pixel {
				left, upLeft = line[i-pixel], prev[i-pixel]
			}
			line[i] += paeth(left, prev[i], upLeft)
		}
	default:
		return fmt.Errorf("unknown PNG filter type %d", tag)
	}
	return nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
