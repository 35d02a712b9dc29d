// Based on linux's man page, elf.h, golang's debug/elf package,
// and the elf 1.2 standard.
package elf

import (
	"bytes"
	"fmt"
)

var (
	// EI_MAG0 - EI_MAG3
	IdentifierMagic = []byte{
		0x7f, // ELFMAG0
		'E',  // ELFMAG1
		'L',  // ELFMAG2
		'F',  // ELFMAG3
	}
)

const (
	MaxNumProgramHeaderEntries = 0xffff // PN_XNUM
	MaxNumSectionHeaderEntries = 0xff00 // SHN_LORESERVE

	IdentifierVersion = 1 // EI_CURRENT
	FormatVersion     = 1 // EV_CURRENT

	ElfIdentifierSize = 16

	Elf32HeaderSize             = 52
	Elf32SectionHeaderEntrySize = 40
	Elf32ProgramHeaderEntrySize = 32
	Elf32SymbolEntrySize        = 16
	Elf32RelEntrySize           = 8
	Elf32RelaEntrySize          = 12
	Elf32DynamicEntrySize       = 8

	Elf64HeaderSize             = 64
	Elf64SectionHeaderEntrySize = 64
	Elf64ProgramHeaderEntrySize = 56
	Elf64SymbolEntrySize        = 24
	Elf64RelEntrySize           = 16
	Elf64RelaEntrySize          = 24
	Elf64DynamicEntrySize       = 16

	// NOTE: Although Elf64_Nhdr is defined, it looks like elf64 files in general
	// still encode notes using Elf32_Nhdr.
	NoteHeaderSize = 12
)

// EI_CLASS
type Class byte

const (
	ClassNone = Class(0) // ELFCLASSNONE
	Class32   = Class(1) // ELFCLASS32
	Class64   = Class(2) // ELFCLASS64
)

func (class Class) String() string {
	switch class {
	case ClassNone:
		return "ClassNone"
	case Class32:
		return "Class32"
	case Class64:
		return "Class64"
	default:
		return fmt.Sprintf("ClassUnknown(%d)", class)
	}
}

// EI_DATA
type DataEncoding byte

const (
	DataEncodingNone                       = DataEncoding(0) // ELFDATANONE
	DataEncodingTwosComplementLittleEndian = DataEncoding(1) // ELFDATA2LSB
	DataEncodingTwosComplementBigEndian    = DataEncoding(2) // ELFDATA2MSB
)

func (encoding DataEncoding) String() string {
	switch encoding {
	case DataEncodingNone:
		return "DataEncodingNone"
	case DataEncodingTwosComplementLittleEndian:
		return "TwosComplementLittleEndian"
	case DataEncodingTwosComplementBigEndian:
		return "TwosComplementBigEndian"
	default:
		return fmt.Sprintf("DataEncodingUnknown(%d)", encoding)
	}
}

// EI_OSABI
// NOTE: golang's debug/elf.OSABI defines a more complete list
type OperatingSystemABI byte

const (
	OperatingSystemABIUnixSystemV = OperatingSystemABI(0)   // ELFOSABI_NONE
	OperatingSystemABIHPUX        = OperatingSystemABI(1)   // ELFOSABI_HPUX
	OperatingSystemABINetBSD      = OperatingSystemABI(2)   // ELFOSABI_NETBSD
	OperatingSystemABILinux       = OperatingSystemABI(3)   // ELFOSABI_LINUX
	OperatingSystemABISolaris     = OperatingSystemABI(6)   // ELFOSABI_SOLARIS
	OperatingSystemABIFreeBSD     = OperatingSystemABI(9)   // ELFOSABI_FREEBSD
	OperatingSystemABIOpenBSD     = OperatingSystemABI(12)  // ELFOSABI_OPENBSD
	OperatingSystemABIARM         = OperatingSystemABI(97)  // ELFOSABI_ARM
	OperatingSystemABIStandalone  = OperatingSystemABI(255) // ELFOSABI_STANDALONE
)

func (osAbi OperatingSystemABI) String() string {
	switch osAbi {
	case OperatingSystemABIUnixSystemV:
		return "UnixSystemV"
	case OperatingSystemABIHPUX:
		return "HPUX"
	case OperatingSystemABINetBSD:
		return "NetBSD"
	case OperatingSystemABILinux:
		return "Linux"
	case OperatingSystemABISolaris:
		return "Solaris"
	case OperatingSystemABIFreeBSD:
		return "FreeBSD"
	case OperatingSystemABIOpenBSD:
		return "OpenBSD"
	case OperatingSystemABIARM:
		return "ARM"
	case OperatingSystemABIStandalone:
		return "Standalone"
	default:
		return fmt.Sprintf("OperatingSystemABIUnknown(%d)", osAbi)
	}
}

// e_type
type FileType uint16

const (
	FileTypeNone         = FileType(0) // ET_NONE
	FileTypeRelocatable  = FileType(1) // ET_REL
	FileTypeExecutable   = FileType(2) // ET_EXEC
	FileTypeSharedObject = FileType(3) // ET_DYN
	FileTypeCore         = FileType(4) // ET_CORE
)

func (ft FileType) String() string {
	switch ft {
	case FileTypeNone:
		return "FileTypeNone"
	case FileTypeRelocatable:
		return "Relocatable"
	case FileTypeExecutable:
		return "Executable"
	case FileTypeSharedObject:
		return "SharedObject"
	case FileTypeCore:
		return "Core"
	default:
		return fmt.Sprintf("FileTypeUnknown(%d)", ft)
	}
}

// e_machine
// NOTE: golang's debug/elf.Machine defines a more complete list of machine
// types.
type MachineArchitecture uint16

const (
	MachineArchitectureNone    = MachineArchitecture(0)   // EM_NONE
	MachineArchitectureX86     = MachineArchitecture(3)   // EM_386
	MachineArchitectureARM     = MachineArchitecture(40)  // EM_ARM
	MachineArchitectureX86_64  = MachineArchitecture(62)  // EM_X86_64
	MachineArchitectureAArch64 = MachineArchitecture(183) // EM_AARCH64
	MachineArchitectureRISCV   = MachineArchitecture(243) // EM_RISCV
)

func (arch MachineArchitecture) String() string {
	switch arch {
	case MachineArchitectureNone:
		return "MachineArchitectureNone"
	case MachineArchitectureX86:
		return "x86"
	case MachineArchitectureARM:
		return "arm"
	case MachineArchitectureX86_64:
		return "x86-64"
	case MachineArchitectureAArch64:
		return "aarch64"
	case MachineArchitectureRISCV:
		return "riscv"
	default:
		return fmt.Sprintf("MachineArchitectureUnknown(%d)", arch)
	}
}

// e_ident.  Each component is kept as its own field; the 16 byte wire form is
// only produced by Pack and consumed by UnpackIdentifier.
type Identifier struct {
	Class                      // EI_CLASS
	DataEncoding               // EI_DATA
	IdentifierVersion  byte    // EI_VERSION
	OperatingSystemABI         // EI_OSABI
	ABIVersion         byte    // EI_ABIVERSION
}

func (id Identifier) String() string {
	return fmt.Sprintf(
		"{%s %s version=%d %s abi=%d}",
		id.Class,
		id.DataEncoding,
		id.IdentifierVersion,
		id.OperatingSystemABI,
		id.ABIVersion)
}

func (id Identifier) Pack() [ElfIdentifierSize]byte {
	var result [ElfIdentifierSize]byte
	copy(result[:], IdentifierMagic)
	result[4] = byte(id.Class)
	result[5] = byte(id.DataEncoding)
	result[6] = id.IdentifierVersion
	result[7] = byte(id.OperatingSystemABI)
	result[8] = id.ABIVersion
	return result
}

// HasMagic reports whether content starts with the elf signature.
func HasMagic(content []byte) bool {
	return len(content) >= len(IdentifierMagic) &&
		bytes.Equal(content[:len(IdentifierMagic)], IdentifierMagic)
}

func UnpackIdentifier(content []byte) (Identifier, error) {
	if !HasMagic(content) {
		return Identifier{}, ErrNotELF
	}

	if len(content) < ElfIdentifierSize {
		return Identifier{}, fmt.Errorf(
			"%w: identifier too short (%d < %d)",
			ErrMalformedHeader,
			len(content),
			ElfIdentifierSize)
	}

	return Identifier{
		Class:              Class(content[4]),
		DataEncoding:       DataEncoding(content[5]),
		IdentifierVersion:  content[6],
		OperatingSystemABI: OperatingSystemABI(content[7]),
		ABIVersion:         content[8],
	}, nil
}

// Width independent elf header.  Addresses and offsets are widened to 64 bits;
// the file's class decides the encoded width.
type ElfHeader struct {
	Identifier                           // e_ident[EI_NIDENT]
	FileType                             // e_type
	MachineArchitecture                  // e_machine
	FormatVersion           uint32       // e_version
	EntryPointAddress       uint64       // e_entry
	ProgramHeaderOffset     uint64       // e_phoff
	SectionHeaderOffset     uint64       // e_shoff
	ArchitectureFlags       uint32       // e_flags
	ElfHeaderSize           uint16       // e_ehsize
	ProgramHeaderEntrySize  uint16       // e_phentsize
	NumProgramHeaderEntries uint16       // e_phnum
	SectionHeaderEntrySize  uint16       // e_shentsize
	NumSectionHeaderEntries uint16       // e_shnum
	SectionStringTableIndex SectionIndex // e_shstrndx
}

func (header ElfHeader) ProgramHeaderTableExists() bool {
	return header.NumProgramHeaderEntries > 0
}

func (header ElfHeader) String() string {
	return fmt.Sprintf(
		"{%s %s %s %s %s entry=%#x phoff=%d phnum=%d shoff=%d shnum=%d shstrndx=%d}",
		header.Class,
		header.DataEncoding,
		header.OperatingSystemABI,
		header.FileType,
		header.MachineArchitecture,
		header.EntryPointAddress,
		header.ProgramHeaderOffset,
		header.NumProgramHeaderEntries,
		header.SectionHeaderOffset,
		header.NumSectionHeaderEntries,
		header.SectionStringTableIndex)
}

// HeaderBuilder assembles headers for synthetic files.
type HeaderBuilder struct {
	header ElfHeader
}

func NewHeaderBuilder() *HeaderBuilder {
	return &HeaderBuilder{
		header: ElfHeader{
			Identifier: Identifier{
				Class:              Class64,
				DataEncoding:       DataEncodingTwosComplementLittleEndian,
				IdentifierVersion:  IdentifierVersion,
				OperatingSystemABI: OperatingSystemABIUnixSystemV,
			},
			FormatVersion: FormatVersion,
		},
	}
}

func (builder *HeaderBuilder) Class(class Class) *HeaderBuilder {
	builder.header.Class = class
	return builder
}

func (builder *HeaderBuilder) Data(encoding DataEncoding) *HeaderBuilder {
	builder.header.DataEncoding = encoding
	return builder
}

func (builder *HeaderBuilder) Version(version byte) *HeaderBuilder {
	builder.header.IdentifierVersion = version
	return builder
}

func (builder *HeaderBuilder) OSABI(osAbi OperatingSystemABI) *HeaderBuilder {
	builder.header.OperatingSystemABI = osAbi
	return builder
}

func (builder *HeaderBuilder) FileType(ft FileType) *HeaderBuilder {
	builder.header.FileType = ft
	return builder
}

func (builder *HeaderBuilder) Machine(
	arch MachineArchitecture,
) *HeaderBuilder {
	builder.header.MachineArchitecture = arch
	return builder
}

func (builder *HeaderBuilder) Entry(address uint64) *HeaderBuilder {
	builder.header.EntryPointAddress = address
	return builder
}

func (builder *HeaderBuilder) Flags(flags uint32) *HeaderBuilder {
	builder.header.ArchitectureFlags = flags
	return builder
}

func (builder *HeaderBuilder) Build() ElfHeader {
	return builder.header
}
