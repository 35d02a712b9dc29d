//go:build !unix

package elf

import (
	"fmt"
	"strings"
)

func nulTerminated(name string) ([]byte, error) {
	if strings.IndexByte(name, 0) != -1 {
		return nil, fmt.Errorf("name contains NUL byte")
	}
	return append([]byte(name), 0), nil
}
