package elf

import (
	"encoding/binary"
	"fmt"
)

// Elf32_Phdr.  Note that p_flags moved in Elf64_Phdr.
type rawProgramHeader32 struct {
	ProgramType     uint32
	ContentOffset   uint32
	VirtualAddress  uint32
	PhysicalAddress uint32
	FileImageSize   uint32
	MemoryImageSize uint32
	ProgramFlags    uint32
	Alignment       uint32
}

// Elf64_Phdr
type rawProgramHeader64 struct {
	ProgramType     uint32
	ProgramFlags    uint32
	ContentOffset   uint64
	VirtualAddress  uint64
	PhysicalAddress uint64
	FileImageSize   uint64
	MemoryImageSize uint64
	Alignment       uint64
}

// Elf32_Sym
type rawSymbol32 struct {
	NameIndex    uint32
	Value        uint32
	Size         uint32
	Info         byte
	Other        byte
	SectionIndex uint16
}

// Elf64_Sym
type rawSymbol64 struct {
	NameIndex    uint32
	Info         byte
	Other        byte
	SectionIndex uint16
	Value        uint64
	Size         uint64
}

// Elf32_Rel / Elf32_Rela.  r_info = (sym << 8) | (type & 0xff)
type rawRela32 struct {
	Offset uint32
	Info   uint32
	Addend int32
}

// Elf64_Rel / Elf64_Rela.  r_info = (sym << 32) | type
type rawRela64 struct {
	Offset uint64
	Info   uint64
	Addend int64
}

type layout32 struct {
	order byteOrder
}

func (layout32) Class() Class { return Class32 }
func (l layout32) ByteOrder() byteOrder { return l.order }
func (layout32) HeaderSize() int { return Elf32HeaderSize }
func (layout32) SectionHeaderEntrySize() int { return Elf32SectionHeaderEntrySize }
func (layout32) ProgramHeaderEntrySize() int { return Elf32ProgramHeaderEntrySize }
func (layout32) SymbolEntrySize() int { return Elf32SymbolEntrySize }
func (layout32) DynamicEntrySize() int { return Elf32DynamicEntrySize }

func (layout32) RelocationEntrySize(withAddends bool) int {
	if withAddends {
		return Elf32RelaEntrySize
	}
	return Elf32RelEntrySize
}

func (l layout32) decodeHeader(content []byte) (ElfHeader, error) {
	return decodeHeaderAs[Elf32Addr](l.order, content, Elf32HeaderSize)
}

func (l layout32) encodeHeader(header ElfHeader) ([]byte, error) {
	return encodeHeaderAs[Elf32Addr](l.order, header)
}

func (l layout32) decodeSectionHeader(
	content []byte,
) (
	SectionHeaderEntry,
	error,
) {
	return decodeSectionHeaderAs[Elf32Addr](
		l.order,
		content,
		Elf32SectionHeaderEntrySize)
}

func (l layout32) encodeSectionHeader(
	header SectionHeaderEntry,
) (
	[]byte,
	error,
) {
	return encodeSectionHeaderAs[Elf32Addr](l.order, header)
}

func (l layout32) decodeProgramHeader(
	content []byte,
) (
	ProgramHeaderEntry,
	error,
) {
	raw := rawProgramHeader32{}
	err := decodeRecord(l.order, content, Elf32ProgramHeaderEntrySize, &raw)
	if err != nil {
		return ProgramHeaderEntry{}, err
	}

	return ProgramHeaderEntry{
		ProgramType:     ProgramType(raw.ProgramType),
		ProgramFlags:    ProgramFlags(raw.ProgramFlags),
		ContentOffset:   uint64(raw.ContentOffset),
		VirtualAddress:  uint64(raw.VirtualAddress),
		PhysicalAddress: uint64(raw.PhysicalAddress),
		FileImageSize:   uint64(raw.FileImageSize),
		MemoryImageSize: uint64(raw.MemoryImageSize),
		Alignment:       uint64(raw.Alignment),
	}, nil
}

func (l layout32) decodeSymbol(content []byte) (SymbolEntry, error) {
	raw := rawSymbol32{}
	err := decodeRecord(l.order, content, Elf32SymbolEntrySize, &raw)
	if err != nil {
		return SymbolEntry{}, err
	}

	return SymbolEntry{
		NameIndex:        raw.NameIndex,
		Info:             raw.Info,
		SymbolVisibility: SymbolVisibility(raw.Other),
		SectionIndex:     SectionIndex(raw.SectionIndex),
		Value:            uint64(raw.Value),
		Size:             uint64(raw.Size),
	}, nil
}

func (l layout32) encodeSymbol(entry SymbolEntry) ([]byte, error) {
	var err error
	raw := rawSymbol32{
		NameIndex:    entry.NameIndex,
		Value:        narrow[Elf32Addr](&err, "st_value", entry.Value),
		Size:         narrow[Elf32Word](&err, "st_size", entry.Size),
		Info:         entry.Info,
		Other:        byte(entry.SymbolVisibility),
		SectionIndex: uint16(entry.SectionIndex),
	}
	if err != nil {
		return nil, err
	}
	return binary.Append(nil, l.order, &raw)
}

func (l layout32) decodeRelocation(
	content []byte,
	withAddends bool,
) (
	RelocationEntry,
	error,
) {
	raw := rawRela32{}
	var err error
	if withAddends {
		err = decodeRecord(l.order, content, Elf32RelaEntrySize, &raw)
	} else {
		values := make([]uint32, 2)
		err = decodeRecord(l.order, content, Elf32RelEntrySize, values)
		raw.Offset = values[0]
		raw.Info = values[1]
	}
	if err != nil {
		return RelocationEntry{}, err
	}

	return RelocationEntry{
		Offset:      uint64(raw.Offset),
		SymbolIndex: raw.Info >> 8,
		Type:        raw.Info & 0xff,
		Addend:      int64(raw.Addend),
	}, nil
}

func (l layout32) encodeRelocation(
	entry RelocationEntry,
	withAddends bool,
) (
	[]byte,
	error,
) {
	if entry.SymbolIndex > 0xffffff {
		return nil, fmt.Errorf(
			"relocation symbol index (%d) overflows 24-bit field",
			entry.SymbolIndex)
	}

	if entry.Type > 0xff {
		return nil, fmt.Errorf(
			"relocation type (%d) overflows 8-bit field",
			entry.Type)
	}

	if withAddends && int64(int32(entry.Addend)) != entry.Addend {
		return nil, fmt.Errorf(
			"r_addend (%d) overflows 32-bit field",
			entry.Addend)
	}

	var err error
	raw := rawRela32{
		Offset: narrow[Elf32Addr](&err, "r_offset", entry.Offset),
		Info:   entry.SymbolIndex<<8 | entry.Type,
		Addend: int32(entry.Addend),
	}
	if err != nil {
		return nil, err
	}

	if withAddends {
		return binary.Append(nil, l.order, &raw)
	}

	return binary.Append(nil, l.order, []uint32{raw.Offset, raw.Info})
}

func (l layout32) decodeDynamic(content []byte) (DynamicEntry, error) {
	entry, err := decodeDynamicAs[Elf32Addr](
		l.order,
		content,
		Elf32DynamicEntrySize)
	if err != nil {
		return DynamicEntry{}, err
	}

	// d_tag is an Elf32_Sword
	entry.Tag = DynamicTag(int32(entry.Tag))
	return entry, nil
}

func (l layout32) encodeDynamic(entry DynamicEntry) ([]byte, error) {
	if int64(int32(entry.Tag)) != int64(entry.Tag) {
		return nil, fmt.Errorf(
			"d_tag (%#x) overflows 32-bit field",
			int64(entry.Tag))
	}
	return encodeDynamicAs[Elf32Addr](l.order, entry)
}

type layout64 struct {
	order byteOrder
}

func (layout64) Class() Class { return Class64 }
func (l layout64) ByteOrder() byteOrder { return l.order }
func (layout64) HeaderSize() int { return Elf64HeaderSize }
func (layout64) SectionHeaderEntrySize() int { return Elf64SectionHeaderEntrySize }
func (layout64) ProgramHeaderEntrySize() int { return Elf64ProgramHeaderEntrySize }
func (layout64) SymbolEntrySize() int { return Elf64SymbolEntrySize }
func (layout64) DynamicEntrySize() int { return Elf64DynamicEntrySize }

func (layout64) RelocationEntrySize(withAddends bool) int {
	if withAddends {
		return Elf64RelaEntrySize
	}
	return Elf64RelEntrySize
}

func (l layout64) decodeHeader(content []byte) (ElfHeader, error) {
	return decodeHeaderAs[Elf64Addr](l.order, content, Elf64HeaderSize)
}

func (l layout64) encodeHeader(header ElfHeader) ([]byte, error) {
	return encodeHeaderAs[Elf64Addr](l.order, header)
}

func (l layout64) decodeSectionHeader(
	content []byte,
) (
	SectionHeaderEntry,
	error,
) {
	return decodeSectionHeaderAs[Elf64Addr](
		l.order,
		content,
		Elf64SectionHeaderEntrySize)
}

func (l layout64) encodeSectionHeader(
	header SectionHeaderEntry,
) (
	[]byte,
	error,
) {
	return encodeSectionHeaderAs[Elf64Addr](l.order, header)
}

func (l layout64) decodeProgramHeader(
	content []byte,
) (
	ProgramHeaderEntry,
	error,
) {
	raw := rawProgramHeader64{}
	err := decodeRecord(l.order, content, Elf64ProgramHeaderEntrySize, &raw)
	if err != nil {
		return ProgramHeaderEntry{}, err
	}

	return ProgramHeaderEntry{
		ProgramType:     ProgramType(raw.ProgramType),
		ProgramFlags:    ProgramFlags(raw.ProgramFlags),
		ContentOffset:   raw.ContentOffset,
		VirtualAddress:  raw.VirtualAddress,
		PhysicalAddress: raw.PhysicalAddress,
		FileImageSize:   raw.FileImageSize,
		MemoryImageSize: raw.MemoryImageSize,
		Alignment:       raw.Alignment,
	}, nil
}

func (l layout64) decodeSymbol(content []byte) (SymbolEntry, error) {
	raw := rawSymbol64{}
	err := decodeRecord(l.order, content, Elf64SymbolEntrySize, &raw)
	if err != nil {
		return SymbolEntry{}, err
	}

	return SymbolEntry{
		NameIndex:        raw.NameIndex,
		Info:             raw.Info,
		SymbolVisibility: SymbolVisibility(raw.Other),
		SectionIndex:     SectionIndex(raw.SectionIndex),
		Value:            raw.Value,
		Size:             raw.Size,
	}, nil
}

func (l layout64) encodeSymbol(entry SymbolEntry) ([]byte, error) {
	raw := rawSymbol64{
		NameIndex:    entry.NameIndex,
		Info:         entry.Info,
		Other:        byte(entry.SymbolVisibility),
		SectionIndex: uint16(entry.SectionIndex),
		Value:        entry.Value,
		Size:         entry.Size,
	}
	return binary.Append(nil, l.order, &raw)
}

func (l layout64) decodeRelocation(
	content []byte,
	withAddends bool,
) (
	RelocationEntry,
	error,
) {
	raw := rawRela64{}
	var err error
	if withAddends {
		err = decodeRecord(l.order, content, Elf64RelaEntrySize, &raw)
	} else {
		values := make([]uint64, 2)
		err = decodeRecord(l.order, content, Elf64RelEntrySize, values)
		raw.Offset = values[0]
		raw.Info = values[1]
	}
	if err != nil {
		return RelocationEntry{}, err
	}

	return RelocationEntry{
		Offset:      raw.Offset,
		SymbolIndex: uint32(raw.Info >> 32),
		Type:        uint32(raw.Info),
		Addend:      raw.Addend,
	}, nil
}

func (l layout64) encodeRelocation(
	entry RelocationEntry,
	withAddends bool,
) (
	[]byte,
	error,
) {
	raw := rawRela64{
		Offset: entry.Offset,
		Info:   uint64(entry.SymbolIndex)<<32 | uint64(entry.Type),
		Addend: entry.Addend,
	}

	if withAddends {
		return binary.Append(nil, l.order, &raw)
	}

	return binary.Append(nil, l.order, []uint64{raw.Offset, raw.Info})
}

func (l layout64) decodeDynamic(content []byte) (DynamicEntry, error) {
	return decodeDynamicAs[Elf64Addr](
		l.order,
		content,
		Elf64DynamicEntrySize)
}

func (l layout64) encodeDynamic(entry DynamicEntry) ([]byte, error) {
	return encodeDynamicAs[Elf64Addr](l.order, entry)
}
