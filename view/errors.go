package view

import "errors"

// Load errors returned synchronously by Open, OpenAt and OpenPage. Decoders
// wrap one of these so callers can classify failures with errors.Is.
var (
	ErrPasswordNeeded    = errors.New("view: document is encrypted and needs a password")
	ErrWrongPassword     = errors.New("view: wrong password")
	ErrCannotRepair      = errors.New("view: document is damaged and cannot be repaired")
	ErrCannotDecryptXref = errors.New("view: cannot decrypt document structure")
	ErrLoadFailed        = errors.New("view: load failed")
)

// ErrPageRender is wrapped by decoders when rendering a tile fails. Render
// errors never reach the caller; they are logged by the render worker.
var ErrPageRender = errors.New("view: page render failed")

// ErrInvalidParameter is returned by setters given out-of-range values.
var ErrInvalidParameter = errors.New("view: invalid parameter")

var loadErrors = []error{
	ErrPasswordNeeded,
	ErrWrongPassword,
	ErrCannotRepair,
	ErrCannotDecryptXref,
	ErrLoadFailed,
}

// asLoadError makes sure err belongs to the load error taxonomy, wrapping
// anything unclassified as ErrLoadFailed.
func asLoadError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range loadErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return errors.Join(ErrLoadFailed, err)
}
