//go:build unix

package fileops

import (
	"errors"
	"syscall"
)

// isSharingViolation reports EBUSY, the closest unix analogue of a file
// held open by another process.
func isSharingViolation(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}
