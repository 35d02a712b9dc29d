package elf

import (
	"fmt"
)

type ProgramType uint32

// see debug/elf for a more complete list
const (
	ProgramNull            = ProgramType(0)          // PT_NULL
	ProgramLoadable        = ProgramType(1)          // PT_LOAD
	ProgramDynamicLinking  = ProgramType(2)          // PT_DYNAMIC
	ProgramInterpreterPath = ProgramType(3)          // PT_INTERP
	ProgramNote            = ProgramType(4)          // PT_NOTE
	ProgramSharedLibrary   = ProgramType(5)          // PT_SHLIB
	ProgramHeaderInfo      = ProgramType(6)          // PT_PHDR
	ProgramThreadLocal     = ProgramType(7)          // PT_TLS
	ProgramGNUEHFrame      = ProgramType(0x6474e550) // PT_GNU_EH_FRAME
	ProgramGNUStack        = ProgramType(0x6474e551) // PT_GNU_STACK
	ProgramGNURelRO        = ProgramType(0x6474e552) // PT_GNU_RELRO
	ProgramGNUProperty     = ProgramType(0x6474e553) // PT_GNU_PROPERTY
)

func (segType ProgramType) String() string {
	switch segType {
	case ProgramNull:
		return "ProgramNull"
	case ProgramLoadable:
		return "Loadable"
	case ProgramDynamicLinking:
		return "DynamicLinking"
	case ProgramInterpreterPath:
		return "InterpreterPath"
	case ProgramNote:
		return "Note"
	case ProgramSharedLibrary:
		return "SharedLibrary"
	case ProgramHeaderInfo:
		return "HeaderInfo"
	case ProgramThreadLocal:
		return "ThreadLocal"
	case ProgramGNUEHFrame:
		return "GNUEHFrame"
	case ProgramGNUStack:
		return "GNUStack"
	case ProgramGNURelRO:
		return "GNURelRO"
	case ProgramGNUProperty:
		return "GNUProperty"
	default:
		return fmt.Sprintf("ProgramUnknown(%d)", segType)
	}
}

type ProgramFlags uint32

const (
	ProgramFlagExecutableBit = ProgramFlags(0x1)
	ProgramFlagWritableBit   = ProgramFlags(0x2)
	ProgramFlagReadableBit   = ProgramFlags(0x4)
)

func (bits ProgramFlags) String() string {
	if bits > 7 {
		return fmt.Sprintf("%#x", uint32(bits))
	}

	rwx := []byte{'-', '-', '-'}
	if bits&ProgramFlagReadableBit != 0 {
		rwx[0] = 'r'
	}

	if bits&ProgramFlagWritableBit != 0 {
		rwx[1] = 'w'
	}

	if bits&ProgramFlagExecutableBit != 0 {
		rwx[2] = 'x'
	}

	return string(rwx)
}

// Width independent program header.  Segments refer to byte ranges already
// owned by sections, so no content is kept here.
type ProgramHeaderEntry struct {
	ProgramType            // p_type
	ProgramFlags           // p_flags
	ContentOffset   uint64 // p_offset
	VirtualAddress  uint64 // p_vaddr
	PhysicalAddress uint64 // p_paddr
	FileImageSize   uint64 // filesz
	MemoryImageSize uint64 // p_memsz
	Alignment       uint64 // p_align
}
