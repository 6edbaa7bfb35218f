package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Object is a PDF object. The set of implementations is closed.
type Object interface {
	String() string
	object()
}

type (
	// Null is the PDF null object.
	Null struct{}
	// Bool is a PDF boolean.
	Bool bool
	// Int is a PDF integer.
	Int int64
	// Real is a PDF real number.
	Real float64
	// String is a PDF string, literal or hexadecimal, holding raw bytes.
	String string
	// Name is a PDF name without its leading slash.
	Name string
	// Array is a PDF array.
	Array []Object
	// Dict is a PDF dictionary keyed by name.
	Dict map[string]Object
)

func (Null) object()        {}
func (Bool) object()        {}
func (Int) object()         {}
func (Real) object()        {}
func (String) object()      {}
func (Name) object()        {}
func (Array) object()       {}
func (Dict) object()        {}
func (*Stream) object()     {}
func (IndirectRef) object() {}

func (Null) String() string     { return "null" }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }
func (i Int) String() string    { return strconv.FormatInt(int64(i), 10) }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }
func (s String) String() string { return string(s) }
func (n Name) String() string   { return "/" + string(n) }

func (a Array) String() string {
	parts := make([]string, len(a))
	for i, obj := range a {
		parts[i] = objectString(obj)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for i, key := range d.Keys() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "/%s %s", key, objectString(d[key]))
	}
	sb.WriteString(">>")
	return sb.String()
}

func objectString(obj Object) string {
	if obj == nil {
		return "null"
	}
	return obj.String()
}

// as converts obj to T, treating nil as absent.
func as[T Object](obj Object) (T, bool) {
	v, ok := obj.(T)
	return v, ok
}

// Len returns the number of elements.
func (a Array) Len() int { return len(a) }

// Get returns the element at index, or nil when out of range.
func (a Array) Get(index int) Object {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

func (a Array) GetInt(index int) (Int, bool)   { return as[Int](a.Get(index)) }
func (a Array) GetReal(index int) (Real, bool) { return as[Real](a.Get(index)) }
func (a Array) GetName(index int) (Name, bool) { return as[Name](a.Get(index)) }

// Get returns the value for key, or nil.
func (d Dict) Get(key string) Object { return d[key] }

func (d Dict) GetName(key string) (Name, bool)               { return as[Name](d[key]) }
func (d Dict) GetInt(key string) (Int, bool)                 { return as[Int](d[key]) }
func (d Dict) GetReal(key string) (Real, bool)               { return as[Real](d[key]) }
func (d Dict) GetString(key string) (String, bool)           { return as[String](d[key]) }
func (d Dict) GetBool(key string) (Bool, bool)               { return as[Bool](d[key]) }
func (d Dict) GetDict(key string) (Dict, bool)               { return as[Dict](d[key]) }
func (d Dict) GetArray(key string) (Array, bool)             { return as[Array](d[key]) }
func (d Dict) GetIndirectRef(key string) (IndirectRef, bool) { return as[IndirectRef](d[key]) }

// Has reports whether key is present.
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d Dict) Set(key string, value Object) { d[key] = value }
func (d Dict) Delete(key string)            { delete(d, key) }

// Keys returns the keys in sorted order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Stream is a dictionary followed by raw, still filtered, data.
type Stream struct {
	Dict    Dict
	Data    []byte
	decoded []byte
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%d bytes)", s.Dict, len(s.Data))
}

// Decoded returns the filtered stream data, caching the result.
func (s *Stream) Decoded() ([]byte, error) {
	if s.decoded == nil {
		data, err := s.Decode()
		if err != nil {
			return nil, err
		}
		s.decoded = data
	}
	return s.decoded, nil
}

// IndirectRef refers to an indirect object by number and generation.
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject is an object together with the reference it was
// defined under.
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}
