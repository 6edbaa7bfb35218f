package core

import (
	"bytes"
	"fmt"
)

// ObjectStream gives access to the objects packed inside a /Type /ObjStm
// stream. The stream is decoded and its header parsed on first use.
type ObjectStream struct {
	stream *Stream
	n      int
	first  int

	data    []byte
	members []objStmMember
	cache   map[int]Object
}

type objStmMember struct {
	num    int
	offset int
}

// NewObjectStream validates the stream dictionary and wraps it.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("object stream: nil stream")
	}
	d := stream.Dict

	if t, _ := d.GetName("Type"); t != "ObjStm" {
		return nil, fmt.Errorf("object stream: /Type is %v, want /ObjStm", d.Get("Type"))
	}
	n, ok := d.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream: invalid /N %v", d.Get("N"))
	}
	first, ok := d.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream: invalid /First %v", d.Get("First"))
	}

	if ext := d.Get("Extends"); ext != nil {
		if _, ok := ext.(IndirectRef); !ok {
			return nil, fmt.Errorf("object stream: invalid /Extends %T", ext)
		}
	}
	return &ObjectStream{stream: stream, n: int(n), first: int(first), cache: make(map[int]Object)}, nil
}

func (s *ObjectStream) load() error {
	if s.members != nil {
		return nil
	}
	data, err := s.stream.Decode()
	if err != nil {
		return fmt.Errorf("object stream: %w", err)
	}
	if s.first > len(data) {
		return fmt.Errorf("object stream: /First %d beyond data length %d", s.first, len(data))
	}

	p := NewParser(bytes.NewReader(data[:s.first]))
	members := make([]objStmMember, 0, s.n)
	for i := 0; i < s.n; i++ {
		num, err1 := p.ParseObject()
		off, err2 := p.ParseObject()
		if err1 != nil || err2 != nil {
			return fmt.Errorf("object stream: header truncated at entry %d", i)
		}
		ni, ok1 := num.(Int)
		oi, ok2 := off.(Int)
		if !ok1 || !ok2 {
			return fmt.Errorf("object stream: non-integer header entry %d", i)
		}
		members = append(members, objStmMember{num: int(ni), offset: int(oi)})
	}

	s.data = data
	s.members = members
	return nil
}

// GetObjectByIndex parses the index'th member and returns it with its
// object number.
func (s *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := s.load(); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(s.members) {
		return nil, 0, fmt.Errorf("object stream: index %d out of range [0, %d)", index, len(s.members))
	}
	m := s.members[index]
	if obj, ok := s.cache[index]; ok {
		return obj, m.num, nil
	}

	start := s.first + m.offset
	end := len(s.data)
	if index+1 < len(s.members) {
		end = min(end, s.first+s.members[index+1].offset)
	}
	if start >= len(s.data) || start > end {
		return nil, 0, fmt.Errorf("object stream: member %d offset %d out of range", m.num, m.offset)
	}

	obj, err := NewParser(bytes.NewReader(s.data[start:end])).ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("object stream: member %d: %w", m.num, err)
	}
	s.cache[index] = obj
	return obj, m.num, nil
}

// GetObjectByNumber finds a member by object number and returns it with its
// index.
func (s *ObjectStream) GetObjectByNumber(num int) (Object, int, error) {
	if err := s.load(); err != nil {
		return nil, 0, err
	}
	for i, m := range s.members {
		if m.num == num {
			obj, _, err := s.GetObjectByIndex(i)
			return obj, i, err
		}
	}
	return nil, 0, fmt.Errorf("object stream: object %d not present", num)
}

// ObjectNumbers lists member object numbers in header order.
func (s *ObjectStream) ObjectNumbers() ([]int, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	nums := make([]int, len(s.members))
	for i, m := range s.members {
		nums[i] = m.num
	}
	return nums, nil
}
