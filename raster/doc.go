// Package raster paints device-space graphics onto an *image.RGBA.
//
// A [Canvas] implements graphicsstate.Painter: paths are filled with
// golang.org/x/image/vector, strokes are expanded to polygons (caps, joins
// and dashes included) and filled the same way, and images are resampled
// with golang.org/x/image/draw.
//
//	dst := raster.Target(prev, clip.Size())
//	c := raster.NewCanvas(dst)
//	c.Clear(color.White)
//	in := graphicsstate.NewInterpreter(rdr, c, m)
//
// Everything outside the canvas bounds is discarded before rasterization.
// Even-odd fills are drawn with the nonzero rule.
package raster
