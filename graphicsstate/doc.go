// Package graphicsstate executes PDF content streams.
//
// An [Interpreter] walks the operations of a page or form content stream,
// tracks the [GraphicsState] (CTM, line style, colours and alpha) and hands
// every painting operation to a [Painter] in device space. Paths are built
// in user space with [Path] and transformed by the CTM when painted.
//
// Example usage:
//
//	in := graphicsstate.NewInterpreter(rdr, canvas, pageToDevice)
//	if err := in.Run(content, page.Resources()); err != nil {
//		log.Printf("page painted with problems: %v", err)
//	}
//
// # Coverage
//
// Paths, fills, strokes with dashes, device and indexed colour, ExtGState
// line and alpha parameters, image XObjects, inline images and form
// XObjects are painted. Text, shadings and patterns are not; clipping
// operators are accepted and ignored.
//
// # Errors
//
// Run never stops early. A syntax error ends parsing but everything before
// it is painted and [ErrContentSyntax] is reported; operations that could
// not be carried out are reported with [ErrSkipped].
package graphicsstate
