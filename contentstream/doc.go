// Package contentstream tokenises PDF content streams into operations.
//
//	ops, err := contentstream.NewParser(data).Parse()
//	for _, op := range ops {
//	    fmt.Println(op.Operator, op.Operands)
//	}
//
// Operands are core objects: numbers, strings, names, arrays, dictionaries,
// booleans and null. Comments are skipped. Inline images (BI ... ID ... EI)
// come back as a single "BI" operation carrying the image dictionary and
// its raw data.
//
// Parsing is lenient about whitespace between tokens. On a syntax error the
// operations read so far are returned along with the error, so a renderer
// can draw what precedes the damage.
package contentstream
