//go:build windows

package core

import (
	"errors"
	"syscall"
)

// isEPIPE reports whether err ultimately wraps ERROR_BROKEN_PIPE, the
// Windows analogue of EPIPE.
func isEPIPE(err error) bool {
	return errors.Is(err, syscall.ERROR_BROKEN_PIPE)
}
