// Package textio moves text in and out of the focused application through
// the clipboard and simulated editing shortcuts.
package textio

import (
	"fmt"

	"markestedt/aityping/apperr"
)

var (
	// ErrNothingSelected means the copy landed but held only whitespace
	ErrNothingSelected = apperr.New(apperr.Clipboard, "nothing selected")

	// ErrCopyFailed means the clipboard never changed after the simulated copy
	ErrCopyFailed = apperr.New(apperr.Clipboard, "copy failed")
)

const permissionHint = "grant accessibility (input simulation) permission to this app and retry"

func permissionError(op string, err error) error {
	return apperr.Wrap(apperr.Permission, fmt.Sprintf("failed to simulate %s: %s", op, permissionHint), err)
}
