package elf

import (
	"fmt"
)

type SectionType uint32

const (
	SectionTypeNull                  = SectionType(0)          // SHT_NULL
	SectionTypeProgramDefinedInfo    = SectionType(1)          // SHT_PROGBITS
	SectionTypeSymbolTable           = SectionType(2)          // SHT_SYMTAB
	SectionTypeStringTable           = SectionType(3)          // SHT_STRTAB
	SectionTypeRelocationWithAddends = SectionType(4)          // SHT_RELA
	SectionTypeSymbolHashTable       = SectionType(5)          // SHT_HASH
	SectionTypeDynamic               = SectionType(6)          // SHT_DYNAMIC
	SectionTypeNote                  = SectionType(7)          // SHT_NOTE
	SectionTypeNoSpace               = SectionType(8)          // SHT_NOBITS
	SectionTypeRelocationNoAddends   = SectionType(9)          // SHT_REL
	SectionTypeDynamicSymbolTable    = SectionType(11)         // SHT_DYNSYM
	SectionTypeInitArray             = SectionType(14)         // SHT_INIT_ARRAY
	SectionTypeFiniArray             = SectionType(15)         // SHT_FINI_ARRAY
	SectionTypePreInitArray          = SectionType(16)         // SHT_PREINIT_ARRAY
	SectionTypeGroup                 = SectionType(17)         // SHT_GROUP
	SectionTypeSymbolTableIndices    = SectionType(18)         // SHT_SYMTAB_SHNDX
	SectionTypeGNUHash               = SectionType(0x6ffffff6) // SHT_GNU_HASH
	SectionTypeGNUVersionDefinition  = SectionType(0x6ffffffd) // SHT_GNU_verdef
	SectionTypeGNUVersionNeeded      = SectionType(0x6ffffffe) // SHT_GNU_verneed
	SectionTypeGNUVersionSymbol      = SectionType(0x6fffffff) // SHT_GNU_versym
)

func (stype SectionType) String() string {
	switch stype {
	case SectionTypeNull:
		return "SectionTypeNull"
	case SectionTypeProgramDefinedInfo:
		return "ProgramDefinedInfo"
	case SectionTypeSymbolTable:
		return "SymbolTable"
	case SectionTypeStringTable:
		return "StringTable"
	case SectionTypeRelocationWithAddends:
		return "RelocationWithAddends"
	case SectionTypeSymbolHashTable:
		return "SymbolHashTable"
	case SectionTypeDynamic:
		return "Dynamic"
	case SectionTypeNote:
		return "Note"
	case SectionTypeNoSpace:
		return "NoSpace"
	case SectionTypeRelocationNoAddends:
		return "RelocationNoAddends"
	case SectionTypeDynamicSymbolTable:
		return "DynamicSymbolTable"
	case SectionTypeInitArray:
		return "InitArray"
	case SectionTypeFiniArray:
		return "FiniArray"
	case SectionTypePreInitArray:
		return "PreInitArray"
	case SectionTypeGroup:
		return "Group"
	case SectionTypeSymbolTableIndices:
		return "SymbolTableIndices"
	case SectionTypeGNUHash:
		return "GNUHash"
	case SectionTypeGNUVersionDefinition:
		return "GNUVersionDefinition"
	case SectionTypeGNUVersionNeeded:
		return "GNUVersionNeeded"
	case SectionTypeGNUVersionSymbol:
		return "GNUVersionSymbol"
	default:
		return fmt.Sprintf("SectionTypeUnknown(%d)", stype)
	}
}

func (stype SectionType) HasDataInFile() bool {
	return stype != SectionTypeNoSpace
}

type SectionFlags uint64

const (
	SectionContainsWritableData         = SectionFlags(0x1)   // SHF_WRITE
	SectionOccupiesMemory               = SectionFlags(0x2)   // SHF_ALLOC
	SectionContainsInstructions         = SectionFlags(0x4)   // SHF_EXECINSTR
	SectionMayBeMerged                  = SectionFlags(0x10)  // SHF_MERGE
	SectionContainsStrings              = SectionFlags(0x20)  // SHF_STRINGS
	SectionInfoHoldsSectionIndex        = SectionFlags(0x40)  // SHF_INFO_LINK
	SectionRequiresSpecialOrdering      = SectionFlags(0x80)  // SHF_LINK_ORDER
	SectionRequiresOsSpecificProcessing = SectionFlags(0x100) // SHF_OS_NONCONFORMING
	SectionIsGroupMember                = SectionFlags(0x200) // SHF_GROUP
	SectionContainsTLSData              = SectionFlags(0x400) // SHF_TLS
	SectionIsCompressed                 = SectionFlags(0x800) // SHF_COMPRESSED
)

func (flags SectionFlags) String() string {
	result := make([]byte, 11)
	for i := 0; i < 11; i++ {
		result[i] = '-'
	}

	if flags&SectionContainsWritableData != 0 {
		result[0] = 'w'
	}
	if flags&SectionOccupiesMemory != 0 {
		result[1] = 'a'
	}
	if flags&SectionContainsInstructions != 0 {
		result[2] = 'x'
	}
	if flags&SectionMayBeMerged != 0 {
		result[3] = 'm'
	}
	if flags&SectionContainsStrings != 0 {
		result[4] = 's'
	}
	if flags&SectionInfoHoldsSectionIndex != 0 {
		result[5] = 'i'
	}
	if flags&SectionRequiresSpecialOrdering != 0 {
		result[6] = 'l'
	}
	if flags&SectionRequiresOsSpecificProcessing != 0 {
		result[7] = 'o'
	}
	if flags&SectionIsGroupMember != 0 {
		result[8] = 'g'
	}
	if flags&SectionContainsTLSData != 0 {
		result[9] = 't'
	}
	if flags&SectionIsCompressed != 0 {
		result[10] = 'c'
	}

	return string(result)
}

type SectionIndex uint16

const (
	SectionIndexUndefined = SectionIndex(0)      // SHN_UNDEF
	SectionIndexAbsolute  = SectionIndex(0xfff1) // SHN_ABS
	SectionIndexCommon    = SectionIndex(0xfff2) // SHN_COMMON
	SectionIndexExtended  = SectionIndex(0xffff) // SHN_XINDEX

	SectionStringTableName = ".shstrtab"
	StringTableName        = ".strtab"
	SymbolTableName        = ".symtab"
)

// Width independent section header.  sh_flags, sh_addralign and sh_entsize
// are widened to 64 bits.
type SectionHeaderEntry struct {
	NameIndex        uint32 // sh_name
	SectionType             // sh_type
	SectionFlags            // sh_flags
	Address          uint64 // sh_addr
	Offset           uint64 // sh_offset
	Size             uint64 // sh_size
	Link             uint32 // sh_link
	Info             uint32 // sh_info
	AddressAlignment uint64 // sh_addralign
	EntrySize        uint64 // sh_entsize
}

// Section is one entry of the section header table together with its decoded
// content.  The concrete type is chosen by the section type tag:
//
//	SHT_NOBITS            *NoBitsSection
//	SHT_SYMTAB, SHT_DYNSYM *SymbolTableSection
//	SHT_RELA, SHT_REL      *RelocationSection
//	SHT_DYNAMIC           *DynamicSection
//	SHT_STRTAB            *StringTableSection
//	SHT_NOTE              *NoteSection
//	everything else       *RawSection
type Section interface {
	Header() *SectionHeaderEntry

	Name() string
	SetName(name string)

	RawContent() ([]byte, error)

	// Re-encodes the content into the bytes occupied in the file.
	encodeContent(l layout) ([]byte, error)
}

type BaseSection struct {
	SectionHeaderEntry

	name string
}

func newBaseSection(name string, header SectionHeaderEntry) BaseSection {
	return BaseSection{
		SectionHeaderEntry: header,
		name:               name,
	}
}

func (base *BaseSection) Header() *SectionHeaderEntry {
	return &base.SectionHeaderEntry
}

func (base *BaseSection) Name() string {
	return base.name
}

func (base *BaseSection) SetName(name string) {
	base.name = name
}

func (BaseSection) RawContent() ([]byte, error) {
	return nil, fmt.Errorf("cannot get raw content")
}

type NoBitsSection struct {
	BaseSection
}

func NewNoBitsSection(name string, header SectionHeaderEntry) *NoBitsSection {
	header.SectionType = SectionTypeNoSpace
	return &NoBitsSection{
		BaseSection: newBaseSection(name, header),
	}
}

func (NoBitsSection) encodeContent(layout) ([]byte, error) {
	return nil, nil
}

// NewNullSection returns the mandatory section at index 0.
func NewNullSection() *RawSection {
	return NewRawSection("", SectionHeaderEntry{}, nil)
}

type RawSection struct {
	BaseSection

	Content []byte
}

func NewRawSection(
	name string,
	header SectionHeaderEntry,
	buffer []byte,
) *RawSection {
	content := make([]byte, len(buffer))
	copy(content, buffer)

	return &RawSection{
		BaseSection: newBaseSection(name, header),
		Content:     content,
	}
}

func (section *RawSection) RawContent() ([]byte, error) {
	return section.Content, nil
}

func (section *RawSection) encodeContent(layout) ([]byte, error) {
	return section.Content, nil
}

type NoteEntry struct {
	Name        string // name is usually human readable
	Description string // description has no standard format and may be unreadable
	Type        uint32
}

// NoteSection keeps the note bytes verbatim; Entries is a decoded view.
type NoteSection struct {
	RawSection

	Entries []NoteEntry
}

func newNoteSection(
	name string,
	header SectionHeaderEntry,
	buffer []byte,
	entries []NoteEntry,
) *NoteSection {
	return &NoteSection{
		RawSection: *NewRawSection(name, header, buffer),
		Entries:    entries,
	}
}
