package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokKeyword
	tokInt
	tokReal
	tokString
	tokName
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
)

var tokenNames = [...]string{"EOF", "keyword", "integer", "real", "string", "name", "'['", "']'", "'<<'", "'>>'"}

func (k tokenKind) String() string { return tokenNames[k] }

// token is one lexical item. Strings and names hold their decoded bytes.
type token struct {
	kind tokenKind
	text []byte
	pos  int64
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && string(t.text) == text
}

func (t token) String() string {
	if len(t.text) == 0 {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

// scanner splits PDF object syntax into tokens. Comments and whitespace
// are skipped.
type scanner struct {
	r   *bufio.Reader
	pos int64
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r)}
}

func (s *scanner) readByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err == nil {
		s.pos++
	}
	return b, err
}

// peekByte returns the next byte, or 0 and false at the end of input.
func (s *scanner) peekByte() (byte, bool) {
	b, err := s.r.Peek(1)
	if err != nil {
		return 0, false
	}
	return b[0], true
}

func (s *scanner) skipSpace() {
	for {
		b, ok := s.peekByte()
		switch {
		case !ok:
			return
		case b == '%':
			for ok && b != '\r' && b != '\n' {
				s.readByte()
				b, ok = s.peekByte()
			}
		case isWhitespace(b):
			s.readByte()
		default:
			return
		}
	}
}

func (s *scanner) next() (token, error) {
	s.skipSpace()
	start := s.pos
	b, err := s.readByte()
	if errors.Is(err, io.EOF) {
		return token{kind: tokEOF, pos: start}, nil
	}
	if err != nil {
		return token{}, err
	}

	switch {
	case b == '[':
		return token{kind: tokArrayOpen, pos: start}, nil
	case b == ']':
		return token{kind: tokArrayClose, pos: start}, nil
	case b == '<':
		if next, ok := s.peekByte(); ok && next == '<' {
			s.readByte()
			return token{kind: tokDictOpen, pos: start}, nil
		}
		text, err := s.hexString()
		return token{kind: tokString, text: text, pos: start}, err
	case b == '>':
		if next, ok := s.peekByte(); ok && next == '>' {
			s.readByte()
			return token{kind: tokDictClose, pos: start}, nil
		}
	case b == '(':
		text, err := s.literalString()
		return token{kind: tokString, text: text, pos: start}, err
	case b == '/':
		return token{kind: tokName, text: s.name(), pos: start}, nil
	case isDigit(b) || b == '-' || b == '+' || b == '.':
		text, real := s.number(b)
		kind := tokInt
		if real {
			kind = tokReal
		}
		return token{kind: kind, text: text, pos: start}, nil
	case isAlpha(b):
		return token{kind: tokKeyword, text: s.regular(b), pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at offset %d", b, start)
}

// regular reads the rest of a run of regular characters.
func (s *scanner) regular(first byte) []byte {
	out := []byte{first}
	for {
		b, ok := s.peekByte()
		if !ok || isWhitespace(b) || isDelimiter(b) {
			return out
		}
		s.readByte()
		out = append(out, b)
	}
}

func (s *scanner) number(first byte) ([]byte, bool) {
	out := []byte{first}
	real := first == '.'
	for {
		b, ok := s.peekByte()
		if !ok || !(isDigit(b) || (b == '.' && !real)) {
			return out, real
		}
		real = real || b == '.'
		s.readByte()
		out = append(out, b)
	}
}

// name decodes #xx escapes. A '#' not followed by two hex digits is kept.
func (s *scanner) name() []byte {
	raw := s.regular('/')[1:]
	out := raw[:0]
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) && isHexDigit(raw[i+1]) && isHexDigit(raw[i+2]) {
			out = append(out, hexValue(raw[i+1])<<4|hexValue(raw[i+2]))
			i += 2
			continue
		}
		out = append(out, raw[i])
	}
	return out
}

func (s *scanner) literalString() ([]byte, error) {
	var out []byte
	depth := 1
	for {
		b, err := s.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated string: %w", err)
		}
		switch b {
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return out, nil
			}
		case '\\':
			out, err = s.escape(out)
			if err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, b)
	}
}

var escapes = map[byte]byte{'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f'}

func (s *scanner) escape(out []byte) ([]byte, error) {
	b, err := s.readByte()
	if err != nil {
		return nil, fmt.Errorf("unterminated string: %w", err)
	}
	if c, ok := escapes[b]; ok {
		return append(out, c), nil
	}
	switch {
	case b == '\r':
		if next, ok := s.peekByte(); ok && next == '\n' {
			s.readByte()
		}
		return out, nil
	case b == '\n':
		return out, nil
	case isOctalDigit(b):
		v := b - '0'
		for range 2 {
			next, ok := s.peekByte()
			if !ok || !isOctalDigit(next) {
				break
			}
			s.readByte()
			v = v<<3 | (next - '0')
		}
		return append(out, v), nil
	}
	return append(out, b), nil
}

func (s *scanner) hexString() ([]byte, error) {
	var out []byte
	odd := false
	for {
		b, err := s.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated hex string: %w", err)
		}
		switch {
		case b == '>':
			return out, nil
		case isWhitespace(b):
		case isHexDigit(b):
			if odd {
				out[len(out)-1] |= hexValue(b)
			} else {
				out = append(out, hexValue(b)<<4)
			}
			odd = !odd
		default:
			return nil, fmt.Errorf("invalid hex digit %q at offset %d", b, s.pos-1)
		}
	}
}

// streamEOL consumes the end-of-line marker after the "stream" keyword:
// CRLF or LF, or a lone CR as some producers write. Spaces before the
// marker are tolerated.
func (s *scanner) streamEOL() {
	for b, ok := s.peekByte(); ok && (b == ' ' || b == '\t'); b, ok = s.peekByte() {
		s.readByte()
	}
	switch b, _ := s.peekByte(); b {
	case '\n':
		s.readByte()
	case '\r':
		s.readByte()
		if next, ok := s.peekByte(); ok && next == '\n' {
			s.readByte()
		}
	}
}

// raw reads exactly n bytes of stream data.
func (s *scanner) raw(n int) ([]byte, error) {
	data := make([]byte, n)
	read, err := io.ReadFull(s.r, data)
	s.pos += int64(read)
	if err != nil {
		return nil, fmt.Errorf("stream data: got %d of %d bytes: %w", read, n, err)
	}
	return data, nil
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
func isAlpha(b byte) bool      { return (b|0x20) >= 'a' && (b|0x20) <= 'z' }

func isHexDigit(b byte) bool {
	return isDigit(b) || ((b|0x20) >= 'a' && (b|0x20) <= 'f')
}

func hexValue(b byte) byte {
	if isDigit(b) {
		return b - '0'
	}
	return (b | 0x20) - 'a' + 10
}
