package contentstream

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tsawler/pageview/core"
)

// Operation is an operator with the operands that preceded it.
//
// An inline image is reported as the operator "BI" with two operands: the
// image dictionary as written (abbreviated keys included) and the raw
// image data as a core.String.
type Operation struct {
	Operator string
	Operands []core.Object
}

// Parser splits a content stream into operations.
type Parser struct {
	data  []byte
	pos   int
	ops   []Operation
	stack []core.Object
}

var errEOF = errors.New("unexpected end of content")

// NewParser creates a new content stream parser for the given data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Parse parses the content stream and returns all operations in order. On
// a syntax error the operations parsed so far are returned with the error.
func (p *Parser) Parse() ([]Operation, error) {
	for {
		p.skip()
		if p.pos >= len(p.data) {
			return p.ops, nil
		}
		start := p.pos
		obj, op, err := p.token()
		switch {
		case err != nil:
			return p.ops, fmt.Errorf("offset %d: %w", start, err)
		case op == "BI":
			if err := p.inlineImage(); err != nil {
				return p.ops, fmt.Errorf("offset %d: inline image: %w", start, err)
			}
		case op != "":
			p.emit(op)
		default:
			p.stack = append(p.stack, obj)
		}
	}
}

func (p *Parser) emit(operator string, extra ...core.Object) {
	operands := make([]core.Object, 0, len(p.stack)+len(extra))
	operands = append(append(operands, p.stack...), extra...)
	p.ops = append(p.ops, Operation{Operator: operator, Operands: operands})
	p.stack = p.stack[:0]
}

// token reads an operand, or an operator word returned in op. The caller
// has skipped whitespace.
func (p *Parser) token() (obj core.Object, op string, err error) {
	c := p.data[p.pos]
	switch {
	case c == '(':
		p.pos++
		s, err := p.literal()
		return core.String(s), "", err
	case c == '<' && p.at(1) == '<':
		p.pos += 2
		d, err := p.dict()
		return d, "", err
	case c == '<':
		p.pos++
		s, err := p.hex()
		return core.String(s), "", err
	case c == '/':
		p.pos++
		return core.Name(p.name()), "", nil
	case c == '[':
		p.pos++
		a, err := p.array()
		return a, "", err
	case isNumberStart(c):
		n, err := p.number()
		return n, "", err
	}

	switch word := p.regular(); word {
	case "true":
		return core.Bool(true), "", nil
	case "false":
		return core.Bool(false), "", nil
	case "null":
		return core.Null{}, "", nil
	default:
		return nil, word, nil
	}
}

// operand reads a token that must not be an operator.
func (p *Parser) operand() (core.Object, error) {
	p.skip()
	if p.pos >= len(p.data) {
		return nil, errEOF
	}
	obj, op, err := p.token()
	if err == nil && op != "" {
		err = fmt.Errorf("unexpected %q in operand", op)
	}
	return obj, err
}

func (p *Parser) array() (core.Array, error) {
	arr := core.Array{}
	for {
		p.skip()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed array: %w", errEOF)
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.operand()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) dict() (core.Dict, error) {
	d := core.Dict{}
	for {
		p.skip()
		switch {
		case p.pos >= len(p.data):
			return nil, fmt.Errorf("unclosed dictionary: %w", errEOF)
		case p.data[p.pos] == '>' && p.at(1) == '>':
			p.pos += 2
			return d, nil
		case p.data[p.pos] != '/':
			return nil, fmt.Errorf("dictionary key must be a name")
		}
		p.pos++
		key := p.name()
		value, err := p.operand()
		if err != nil {
			return nil, err
		}
		d[key] = value
	}
}

func (p *Parser) number() (core.Object, error) {
	start := p.pos
	if c := p.data[p.pos]; c == '+' || c == '-' {
		p.pos++
	}
	real := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '.' && !real {
			real = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}

	text := string(p.data[start:p.pos])
	if real {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		return core.Real(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return core.Int(n), nil
}

var escapes = map[byte]byte{
	'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f',
	'(': '(', ')': ')', '\\': '\\',
}

// literal reads a string after its opening parenthesis.
func (p *Parser) literal() (string, error) {
	var out []byte
	for depth := 1; ; {
		if p.pos >= len(p.data) {
			return "", fmt.Errorf("unclosed string: %w", errEOF)
		}
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
		case ')':
			if depth--; depth == 0 {
				return string(out), nil
			}
		case '\\':
			out = p.escape(out)
			continue
		}
		out = append(out, c)
	}
}

func (p *Parser) escape(out []byte) []byte {
	if p.pos >= len(p.data) {
		return out
	}
	c := p.data[p.pos]
	p.pos++
	if e, ok := escapes[c]; ok {
		return append(out, e)
	}
	switch {
	case c == '\r':
		if p.at(0) == '\n' {
			p.pos++
		}
		return out
	case c == '\n':
		return out
	case c >= '0' && c <= '7':
		v := int(c - '0')
		for n := 1; n < 3 && p.at(0) >= '0' && p.at(0) <= '7'; n++ {
			v = v<<3 | int(p.data[p.pos]-'0')
			p.pos++
		}
		return append(out, byte(v))
	}
	return append(out, c)
}

// hex reads a hexadecimal string after its '<'. An odd final digit is
// padded with zero.
func (p *Parser) hex() (string, error) {
	var out []byte
	odd := false
	for ; p.pos < len(p.data); p.pos++ {
		c := p.data[p.pos]
		switch {
		case c == '>':
			p.pos++
			return string(out), nil
		case isWhitespace(c):
		case isHexDigit(c):
			if odd {
				out[len(out)-1] |= hexValue(c)
			} else {
				out = append(out, hexValue(c)<<4)
			}
			odd = !odd
		default:
			return "", fmt.Errorf("invalid hex digit %q", c)
		}
	}
	return string(out), nil
}

// name reads a name after its '/', decoding #xx escapes.
func (p *Parser) name() string {
	var out []byte
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && isHexDigit(p.at(1)) && isHexDigit(p.at(2)) {
			out = append(out, hexValue(p.at(1))<<4|hexValue(p.at(2)))
			p.pos += 3
			continue
		}
		out = append(out, c)
		p.pos++
	}
	return string(out)
}

// regular reads a run of regular characters. A stray delimiter such as
// ')' or '}' is returned on its own.
func (p *Parser) regular() string {
	start := p.pos
	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// at returns the byte i positions ahead, or 0 past the end.
func (p *Parser) at(i int) byte {
	if p.pos+i < len(p.data) {
		return p.data[p.pos+i]
	}
	return 0
}

// skip advances past whitespace and comments.
func (p *Parser) skip() {
	for p.pos < len(p.data) {
		switch c := p.data[p.pos]; {
		case isWhitespace(c):
			p.pos++
		case c == '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isNumberStart(c byte) bool {
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c|0x20 >= 'a' && c|0x20 <= 'f')
}

func hexValue(c byte) byte {
	if c <= '9' {
		return c - '0'
	}
	return c | 0x20 - 'a' + 10
}
