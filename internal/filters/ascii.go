package filters

import "fmt"

// ASCIIHex decodes hexadecimal digit pairs up to '>'. Whitespace is
// skipped and a final odd digit is padded with zero.
func ASCIIHex(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if isSpace(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("ASCIIHex: invalid digit %q", c)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

// ASCII85 decodes base-85 groups up to "~>". 'z' stands for four zero
// bytes; a final partial group of n digits yields n-1 bytes.
func ASCII85(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*4/5)
	var group [5]byte
	n := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '~':
			i = len(data)
			continue
		case isSpace(c):
			continue
		case c == 'z' && n == 0:
			out = append(out, 0, 0, 0, 0)
			continue
		case c < '!' || c > 'u':
			return nil, fmt.Errorf("ASCII85: invalid character %q", c)
		}
		group[n] = c - '!'
		n++
		if n == 5 {
			out = appendGroup(out, group, 4)
			n = 0
		}
	}
	if n == 1 {
		return nil, fmt.Errorf("ASCII85: dangling final digit")
	}
	if n > 1 {
		for j := n; j < 5; j++ {
			group[j] = 84
		}
		out = appendGroup(out, group, n-1)
	}
	return out, nil
}

func appendGroup(out []byte, group [5]byte, count int) []byte {
	var v uint32
	for _, d := range group {
		v = v*85 + uint32(d)
	}
	for j := 0; j < count; j++ {
		out = append(out, byte(v>>(24-8*j)))
	}
	return out
}

// RunLength expands PackBits data: a length byte below 128 copies the
// next length+1 bytes, above 128 repeats the next byte 257-length times,
// and 128 ends the data.
func RunLength(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*2)
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, fmt.Errorf("RunLength: literal of %d bytes overruns data", n+1)
			}
			out = append(out, data[i:i+n+1]...)
			i += n + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("RunLength: repeat missing its byte")
			}
			for j := 0; j < 257-n; j++ {
				out = append(out, data[i])
			}
			i++
		}
	}
	return out, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}
