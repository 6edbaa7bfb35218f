// Package core holds the PDF object model and the file-level syntax the
// page renderer reads: objects, indirect objects and streams, the
// cross-reference table, object streams and stream filters.
//
// The object types are [Null], [Bool], [Int], [Real], [String], [Name],
// [Array], [Dict], [Stream] and [IndirectRef]; all satisfy [Object].
// [Parser] reads them from an io.Reader:
//
//	obj, err := core.NewParser(r).ParseObject()
//
// [XRefParser] reads classic tables and xref streams and follows /Prev
// and /XRefStm chains. When those are damaged, [ReconstructXRef] scans
// the whole file for object headers and rebuilds a table and trailer
// from what it finds.
//
// [Stream.Decode] runs the stream's filter chain; [Stream.Decoded] caches
// the result.
package core
