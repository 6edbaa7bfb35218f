package reader

import "errors"

// Open errors. They are wrapped with context, so test with errors.Is.
var (
	// ErrPasswordRequired means the document is encrypted and the empty
	// user password does not open it.
	ErrPasswordRequired = errors.New("reader: password required")

	// ErrWrongPassword means a non-empty password matched neither the user
	// nor the owner password.
	ErrWrongPassword = errors.New("reader: wrong password")

	// ErrUnsupportedEncryption means the document uses a security handler,
	// revision or cipher this package cannot decrypt.
	ErrUnsupportedEncryption = errors.New("reader: unsupported encryption")

	// ErrRepairFailed means the cross-reference data was unusable and a
	// full-file scan could not rebuild it either.
	ErrRepairFailed = errors.New("reader: document damaged beyond repair")
)
