package elf

import (
	"errors"
)

// Every parse failure wraps exactly one of the stage errors below, so callers
// can tell which part of the file was rejected with errors.Is.
var (
	ErrNotELF                  = errors.New("not an elf file")
	ErrMalformedHeader         = errors.New("can't parse elf header")
	ErrMalformedSectionHeader  = errors.New("can't parse section header")
	ErrMalformedSectionContent = errors.New("can't parse section content")
	ErrMalformedSegmentHeader  = errors.New("can't parse program header")
	ErrMalformedSymbol         = errors.New("can't parse symbol")

	// Returned by the writer when the model can't be laid out.
	ErrInvalidLayout = errors.New("invalid elf layout")
)
