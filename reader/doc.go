// Package reader opens PDF files and resolves their objects.
//
// It sits on top of the core package: it reads the cross-reference data,
// loads and caches indirect objects (including those packed in object
// streams), decrypts encrypted documents and exposes the page tree.
//
// # Opening PDF Files
//
//	r, err := reader.OpenWithPassword("document.pdf", password)
//	if err != nil {
//	    switch {
//	    case errors.Is(err, reader.ErrPasswordRequired):
//	        // ask for a password
//	    case errors.Is(err, reader.ErrRepairFailed):
//	        // damaged file
//	    }
//	}
//	defer r.Close()
//
// [NewReader] works on any io.ReaderAt.
//
// # Damaged Files
//
// When the cross-reference table cannot be read, or points at the wrong
// bytes, the file is scanned for object headers and the table rebuilt.
// Object streams found by the scan are indexed too. [Reader.Repaired]
// reports whether this happened.
//
// # Encryption
//
// The Standard security handler is supported for revisions 2 to 4 with RC4
// and AES-128 (AESV2). The password may be either the user or the owner
// password. Other handlers and AES-256 fail with [ErrUnsupportedEncryption].
//
// # Document Information
//
// [Reader.Info] decodes the text entries of the information dictionary,
// which may be in PDFDocEncoding or UTF-16BE, to UTF-8.
//
// # Images
//
// [Reader.DecodeImage] turns an image XObject into an image.Image:
// DeviceGray, DeviceRGB, DeviceCMYK, ICCBased, Indexed and Separation
// samples of 1 to 16 bits, DCT (JPEG) data, stencil masks and soft masks.
// [InlineImageStream] adapts inline images to the same decoder.
//
// A Reader is not safe for concurrent use.
package reader
