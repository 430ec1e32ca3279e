//go:build !unix && !windows

package fileops

func isSharingViolation(error) bool { return false }
