package elf

import (
	"encoding/binary"
	"fmt"
)

// Primitive elf data types.  See the elf 1.2 standard, Figure 1-2 (32-bit)
// and the elf-64 object file format, Table 1.
type (
	Elf32Half  = uint16
	Elf32Word  = uint32
	Elf32Sword = int32
	Elf32Addr  = uint32
	Elf32Off   = uint32

	Elf64Half   = uint16
	Elf64Word   = uint32
	Elf64Sword  = int32
	Elf64Xword  = uint64
	Elf64Sxword = int64
	Elf64Addr   = uint64
	Elf64Off    = uint64
)

// Address is the class dependent address / offset width.  Records whose field
// order is the same for both classes are defined once over this constraint.
type Address interface {
	Elf32Addr | Elf64Addr
}

// byteOrder is satisfied by binary.LittleEndian and binary.BigEndian.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// layout is the per-class record codec used by both the parser and the
// writer.  All records are converted to / from their width independent
// in-memory form at this boundary.
type layout interface {
	Class() Class
	ByteOrder() byteOrder

	HeaderSize() int
	SectionHeaderEntrySize() int
	ProgramHeaderEntrySize() int
	SymbolEntrySize() int
	RelocationEntrySize(withAddends bool) int
	DynamicEntrySize() int

	decodeHeader(content []byte) (ElfHeader, error)
	encodeHeader(header ElfHeader) ([]byte, error)

	decodeSectionHeader(content []byte) (SectionHeaderEntry, error)
	encodeSectionHeader(header SectionHeaderEntry) ([]byte, error)

	decodeProgramHeader(content []byte) (ProgramHeaderEntry, error)

	decodeSymbol(content []byte) (SymbolEntry, error)
	encodeSymbol(entry SymbolEntry) ([]byte, error)

	decodeRelocation(content []byte, withAddends bool) (RelocationEntry, error)
	encodeRelocation(entry RelocationEntry, withAddends bool) ([]byte, error)

	decodeDynamic(content []byte) (DynamicEntry, error)
	encodeDynamic(entry DynamicEntry) ([]byte, error)
}

func newLayout(id Identifier) (layout, error) {
	var order byteOrder
	switch id.DataEncoding {
	case DataEncodingTwosComplementLittleEndian:
		order = binary.LittleEndian
	case DataEncodingTwosComplementBigEndian:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unsupported data encoding: %s", id.DataEncoding)
	}

	switch id.Class {
	case Class32:
		return layout32{order}, nil
	case Class64:
		return layout64{order}, nil
	default:
		return nil, fmt.Errorf("unsupported elf class: %s", id.Class)
	}
}

// Elf32_Ehdr / Elf64_Ehdr
type rawHeader[A Address] struct {
	Identifier              [ElfIdentifierSize]byte
	FileType                uint16
	MachineArchitecture     uint16
	FormatVersion           uint32
	EntryPointAddress       A
	ProgramHeaderOffset     A
	SectionHeaderOffset     A
	ArchitectureFlags       uint32
	ElfHeaderSize           uint16
	ProgramHeaderEntrySize  uint16
	NumProgramHeaderEntries uint16
	SectionHeaderEntrySize  uint16
	NumSectionHeaderEntries uint16
	SectionStringTableIndex uint16
}

// Elf32_Shdr / Elf64_Shdr.  sh_flags, sh_addralign and sh_entsize are Elf32_Word
// in 32-bit files and Elf64_Xword in 64-bit files, which matches A.
type rawSectionHeader[A Address] struct {
	NameIndex        uint32
	SectionType      uint32
	SectionFlags     A
	Address          A
	Offset           A
	Size             A
	Link             uint32
	Info             uint32
	AddressAlignment A
	EntrySize        A
}

// Elf32_Dyn / Elf64_Dyn.  d_tag is signed on the wire; it's carried as A and
// converted through the signed type of the same width.
type rawDynamic[A Address] struct {
	Tag   A
	Value A
}

// narrow converts value to A, recording an error in err (if none is recorded
// yet) when value doesn't fit.
func narrow[A Address](err *error, name string, value uint64) A {
	result := A(value)
	if *err == nil && uint64(result) != value {
		*err = fmt.Errorf(
			"%s (%#x) overflows %d-bit field",
			name,
			value,
			8*binary.Size(result))
	}
	return result
}

func decodeRecord(
	order binary.ByteOrder,
	content []byte,
	size int,
	data any,
) error {
	if len(content) < size {
		return fmt.Errorf("short buffer (%d < %d)", len(content), size)
	}

	n, err := binary.Decode(content[:size], order, data)
	if err != nil {
		return err
	}

	if n != size {
		panic("should never happen")
	}

	return nil
}

func decodeHeaderAs[A Address](
	order binary.ByteOrder,
	content []byte,
	size int,
) (
	ElfHeader,
	error,
) {
	raw := rawHeader[A]{}
	err := decodeRecord(order, content, size, &raw)
	if err != nil {
		return ElfHeader{}, err
	}

	id, err := UnpackIdentifier(raw.Identifier[:])
	if err != nil {
		return ElfHeader{}, err
	}

	return ElfHeader{
		Identifier:              id,
		FileType:                FileType(raw.FileType),
		MachineArchitecture:     MachineArchitecture(raw.MachineArchitecture),
		FormatVersion:           raw.FormatVersion,
		EntryPointAddress:       uint64(raw.EntryPointAddress),
		ProgramHeaderOffset:     uint64(raw.ProgramHeaderOffset),
		SectionHeaderOffset:     uint64(raw.SectionHeaderOffset),
		ArchitectureFlags:       raw.ArchitectureFlags,
		ElfHeaderSize:           raw.ElfHeaderSize,
		ProgramHeaderEntrySize:  raw.ProgramHeaderEntrySize,
		NumProgramHeaderEntries: raw.NumProgramHeaderEntries,
		SectionHeaderEntrySize:  raw.SectionHeaderEntrySize,
		NumSectionHeaderEntries: raw.NumSectionHeaderEntries,
		SectionStringTableIndex: SectionIndex(raw.SectionStringTableIndex),
	}, nil
}

func encodeHeaderAs[A Address](
	order binary.ByteOrder,
	header ElfHeader,
) (
	[]byte,
	error,
) {
	var err error
	raw := rawHeader[A]{
		Identifier:          header.Identifier.Pack(),
		FileType:            uint16(header.FileType),
		MachineArchitecture: uint16(header.MachineArchitecture),
		FormatVersion:       header.FormatVersion,
		EntryPointAddress: narrow[A](
			&err,
			"e_entry",
			header.EntryPointAddress),
		ProgramHeaderOffset: narrow[A](
			&err,
			"e_phoff",
			header.ProgramHeaderOffset),
		SectionHeaderOffset: narrow[A](
			&err,
			"e_shoff",
			header.SectionHeaderOffset),
		ArchitectureFlags:       header.ArchitectureFlags,
		ElfHeaderSize:           header.ElfHeaderSize,
		ProgramHeaderEntrySize:  header.ProgramHeaderEntrySize,
		NumProgramHeaderEntries: header.NumProgramHeaderEntries,
		SectionHeaderEntrySize:  header.SectionHeaderEntrySize,
		NumSectionHeaderEntries: header.NumSectionHeaderEntries,
		SectionStringTableIndex: uint16(header.SectionStringTableIndex),
	}
	if err != nil {
		return nil, err
	}
	return binary.Append(nil, order, &raw)
}

func decodeSectionHeaderAs[A Address](
	order binary.ByteOrder,
	content []byte,
	size int,
) (
	SectionHeaderEntry,
	error,
) {
	raw := rawSectionHeader[A]{}
	err := decodeRecord(order, content, size, &raw)
	if err != nil {
		return SectionHeaderEntry{}, err
	}

	return SectionHeaderEntry{
		NameIndex:        raw.NameIndex,
		SectionType:      SectionType(raw.SectionType),
		SectionFlags:     SectionFlags(raw.SectionFlags),
		Address:          uint64(raw.Address),
		Offset:           uint64(raw.Offset),
		Size:             uint64(raw.Size),
		Link:             raw.Link,
		Info:             raw.Info,
		AddressAlignment: uint64(raw.AddressAlignment),
		EntrySize:        uint64(raw.EntrySize),
	}, nil
}

func encodeSectionHeaderAs[A Address](
	order binary.ByteOrder,
	header SectionHeaderEntry,
) (
	[]byte,
	error,
) {
	var err error
	raw := rawSectionHeader[A]{
		NameIndex:        header.NameIndex,
		SectionType:      uint32(header.SectionType),
		SectionFlags:     narrow[A](&err, "sh_flags", uint64(header.SectionFlags)),
		Address:          narrow[A](&err, "sh_addr", header.Address),
		Offset:           narrow[A](&err, "sh_offset", header.Offset),
		Size:             narrow[A](&err, "sh_size", header.Size),
		Link:             header.Link,
		Info:             header.Info,
		AddressAlignment: narrow[A](&err, "sh_addralign", header.AddressAlignment),
		EntrySize:        narrow[A](&err, "sh_entsize", header.EntrySize),
	}
	if err != nil {
		return nil, err
	}
	return binary.Append(nil, order, &raw)
}

func decodeDynamicAs[A Address](
	order binary.ByteOrder,
	content []byte,
	size int,
) (
	DynamicEntry,
	error,
) {
	raw := rawDynamic[A]{}
	err := decodeRecord(order, content, size, &raw)
	if err != nil {
		return DynamicEntry{}, err
	}

	return DynamicEntry{
		Tag:   DynamicTag(raw.Tag),
		Value: uint64(raw.Value),
	}, nil
}

func encodeDynamicAs[A Address](
	order binary.ByteOrder,
	entry DynamicEntry,
) (
	[]byte,
	error,
) {
	var err error
	raw := rawDynamic[A]{
		Tag:   A(entry.Tag),
		Value: narrow[A](&err, "d_val", entry.Value),
	}
	if err != nil {
		return nil, err
	}
	return binary.Append(nil, order, &raw)
}
