package view

import "fmt"

type targetKind int

const (
	targetAbsolute targetKind = iota
	targetLast
	targetRelative
)

// PageTarget names a page to open: an absolute 1-based page number, the
// last page, or a page relative to the current one.
type PageTarget struct {
	kind targetKind
	n    int
}

// AtPage targets the page with the given 1-based number.
func AtPage(number int) PageTarget {
	return PageTarget{kind: targetAbsolute, n: number}
}

// LastPage targets the last page of the document.
func LastPage() PageTarget {
	return PageTarget{kind: targetLast}
}

// Relative targets the page delta pages away from the current one.
func Relative(delta int) PageTarget {
	return PageTarget{kind: targetRelative, n: delta}
}

// resolve returns the 1-based page number for the target. The result is not
// range checked.
func (t PageTarget) resolve(current, count int) int {
	switch t.kind {
	case targetLast:
		return count
	case targetRelative:
		return current + t.n
	}
	return t.n
}

func (t PageTarget) String() string {
	switch t.kind {
	case targetLast:
		return "last"
	case targetRelative:
		return fmt.Sprintf("%+d", t.n)
	}
	return fmt.Sprintf("%d", t.n)
}
