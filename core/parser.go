package core

import (
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver resolves indirect references. The parser uses it for
// stream /Length entries given as references.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser reads PDF objects from an io.Reader.
type Parser struct {
	sc       *scanner
	ahead    []token
	resolver ReferenceResolver
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{sc: newScanner(r)}
}

// SetReferenceResolver sets the resolver used for indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// peek returns the token i positions ahead without consuming it.
func (p *Parser) peek(i int) (token, error) {
	for len(p.ahead) <= i {
		t, err := p.sc.next()
		if err != nil {
			return token{}, err
		}
		p.ahead = append(p.ahead, t)
	}
	return p.ahead[i], nil
}

func (p *Parser) take() (token, error) {
	t, err := p.peek(0)
	if err != nil {
		return token{}, err
	}
	p.ahead = p.ahead[1:]
	return t, nil
}

// ParseObject parses the next object. It returns io.EOF at the end of
// input.
func (p *Parser) ParseObject() (Object, error) {
	t, err := p.take()
	if err != nil {
		return nil, err
	}

	switch t.kind {
	case tokEOF:
		return nil, io.EOF
	case tokInt:
		return p.integer(t)
	case tokReal:
		f, err := strconv.ParseFloat(string(t.text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real %q at offset %d", t.text, t.pos)
		}
		return Real(f), nil
	case tokString:
		return String(t.text), nil
	case tokName:
		return Name(t.text), nil
	case tokArrayOpen:
		return p.array()
	case tokDictOpen:
		return p.dict()
	case tokKeyword:
		switch string(t.text) {
		case "null":
			return Null{}, nil
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
	}
	return nil, fmt.Errorf("unexpected %v at offset %d", t, t.pos)
}

// integer parses an integer, or a reference when "gen R" follows.
func (p *Parser) integer(t token) (Object, error) {
	n, err := strconv.ParseInt(string(t.text), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q at offset %d", t.text, t.pos)
	}

	gen, err := p.peek(0)
	if err != nil || gen.kind != tokInt {
		return Int(n), nil
	}
	r, err := p.peek(1)
	if err != nil || !r.is(tokKeyword, "R") {
		return Int(n), nil
	}
	g, err := strconv.Atoi(string(gen.text))
	if err != nil {
		return Int(n), nil
	}
	p.ahead = p.ahead[2:]
	return IndirectRef{Number: int(n), Generation: g}, nil
}

func (p *Parser) array() (Object, error) {
	arr := Array{}
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokArrayClose:
			p.take()
			return arr, nil
		case tokEOF:
			return nil, fmt.Errorf("unterminated array")
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", len(arr), err)
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) dict() (Object, error) {
	dict := Dict{}
	for {
		t, err := p.take()
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokDictClose:
			return dict, nil
		case tokEOF:
			return nil, fmt.Errorf("unterminated dictionary")
		case tokName:
		default:
			return nil, fmt.Errorf("dictionary key must be a name, got %v at offset %d", t, t.pos)
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("value for /%s: %w", t.text, err)
		}
		dict[string(t.text)] = value
	}
}

// ParseIndirectObject parses "num gen obj value endobj", where value may
// be a stream.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	var header [2]int
	for i, what := range []string{"object number", "generation"} {
		t, err := p.take()
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(string(t.text))
		if t.kind != tokInt || err != nil {
			return nil, fmt.Errorf("expected %s, got %v", what, t)
		}
		header[i] = n
	}
	if err := p.expectKeyword("obj"); err != nil {
		return nil, err
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", header[0], err)
	}

	t, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if t.is(tokKeyword, "stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("object %d: stream must follow a dictionary", header[0])
		}
		p.take()
		if obj, err = p.stream(dict); err != nil {
			return nil, fmt.Errorf("object %d: %w", header[0], err)
		}
	}
	if err := p.expectKeyword("endobj"); err != nil {
		return nil, err
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: header[0], Generation: header[1]},
		Object: obj,
	}, nil
}

func (p *Parser) expectKeyword(kw string) error {
	t, err := p.take()
	if err != nil {
		return err
	}
	if !t.is(tokKeyword, kw) {
		return fmt.Errorf("expected %q, got %v at offset %d", kw, t, t.pos)
	}
	return nil
}

// stream reads the data after the "stream" keyword. No tokens may be
// buffered past the keyword.
func (p *Parser) stream(dict Dict) (*Stream, error) {
	length, err := p.streamLength(dict.Get("Length"))
	if err != nil {
		return nil, err
	}

	p.sc.streamEOL()
	data, err := p.sc.raw(length)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("endstream"); err != nil {
		return nil, err
	}
	return &Stream{Dict: dict, Data: data}, nil
}

func (p *Parser) streamLength(obj Object) (int, error) {
	if ref, ok := obj.(IndirectRef); ok {
		if p.resolver == nil {
			return 0, fmt.Errorf("stream /Length %v needs a reference resolver", ref)
		}
		resolved, err := p.resolver.ResolveReference(ref)
		if err != nil {
			return 0, fmt.Errorf("stream /Length %v: %w", ref, err)
		}
		obj = resolved
	}
	n, ok := obj.(Int)
	if !ok || n < 0 {
		return 0, fmt.Errorf("invalid stream /Length %v", obj)
	}
	return int(n), nil
}
