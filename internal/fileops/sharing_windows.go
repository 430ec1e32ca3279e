//go:build windows

package fileops

import (
	"errors"
	"syscall"
)

// errSharingViolation is ERROR_SHARING_VIOLATION.
const errSharingViolation syscall.Errno = 32

func isSharingViolation(err error) bool {
	return errors.Is(err, errSharingViolation)
}
