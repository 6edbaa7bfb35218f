// Package model provides the geometric primitives shared by the page layer,
// the rasteriser and the viewer.
//
// # Coordinate Spaces
//
// Page space is the PDF user space of a page: origin at the bottom-left of
// the media box, Y growing upwards, one unit per point (1/72 inch). Device
// space is the pixel grid of the rendered page: origin at the top-left,
// Y growing downwards.
//
// # Types
//
//   - [Point] - 2D point
//   - [PageBox] - a page rectangle given as left, bottom, right, top
//   - [Matrix] - 2D affine transformation matrix in PDF order [a b c d e f]
//
// Matrices compose by post-concatenation: m.Multiply(n) applies m first and
// n second, so a chain of operations reads left to right.
package model
