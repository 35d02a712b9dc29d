//go:build unix

package elf

import (
	"golang.org/x/sys/unix"
)

// nulTerminated returns name followed by a NUL byte.
func nulTerminated(name string) ([]byte, error) {
	return unix.ByteSliceFromString(name)
}
