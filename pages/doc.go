// Package pages walks the PDF page tree and exposes page attributes.
//
// [PageTree] flattens the tree into document order. The walk does not rely
// on /Count, skips kids that are not dictionaries and fails on cycles.
//
//	tree := pages.NewPageTree(pagesDict, resolver)
//	n, _ := tree.Count()
//	page, _ := tree.GetPage(0) // 0-indexed
//
// [Page] resolves the inheritable attributes (Resources, MediaBox, CropBox,
// Rotate) from the nearest ancestor that sets them. [Page.Box] is the
// visible area, the crop box clipped to the media box, and
// [Page.ContentData] joins all content streams into one buffer.
package pages
