//go:build !windows

package core

import (
	"errors"
	"syscall"
)

// isEPIPE reports whether err ultimately wraps EPIPE, the errno the kernel
// raises when writing to a pipe whose read end has been closed.
func isEPIPE(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}
