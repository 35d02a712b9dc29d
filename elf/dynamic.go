package elf

import (
	"fmt"
)

// d_tag.  See the elf 1.2 standard, Figure 2-10. Dynamic Array Tags and
// debug/elf.DynTag.
type DynamicTag int64

const (
	DynamicTagNull                 = DynamicTag(0)          // DT_NULL
	DynamicTagNeeded               = DynamicTag(1)          // DT_NEEDED
	DynamicTagPLTRelocationsSize   = DynamicTag(2)          // DT_PLTRELSZ
	DynamicTagPLTGOT               = DynamicTag(3)          // DT_PLTGOT
	DynamicTagHash                 = DynamicTag(4)          // DT_HASH
	DynamicTagStringTable          = DynamicTag(5)          // DT_STRTAB
	DynamicTagSymbolTable          = DynamicTag(6)          // DT_SYMTAB
	DynamicTagRela                 = DynamicTag(7)          // DT_RELA
	DynamicTagRelaSize             = DynamicTag(8)          // DT_RELASZ
	DynamicTagRelaEntrySize        = DynamicTag(9)          // DT_RELAENT
	DynamicTagStringTableSize      = DynamicTag(10)         // DT_STRSZ
	DynamicTagSymbolEntrySize      = DynamicTag(11)         // DT_SYMENT
	DynamicTagInit                 = DynamicTag(12)         // DT_INIT
	DynamicTagFini                 = DynamicTag(13)         // DT_FINI
	DynamicTagSharedObjectName     = DynamicTag(14)         // DT_SONAME
	DynamicTagRPath                = DynamicTag(15)         // DT_RPATH
	DynamicTagSymbolic             = DynamicTag(16)         // DT_SYMBOLIC
	DynamicTagRel                  = DynamicTag(17)         // DT_REL
	DynamicTagRelSize              = DynamicTag(18)         // DT_RELSZ
	DynamicTagRelEntrySize         = DynamicTag(19)         // DT_RELENT
	DynamicTagPLTRelocationType    = DynamicTag(20)         // DT_PLTREL
	DynamicTagDebug                = DynamicTag(21)         // DT_DEBUG
	DynamicTagTextRelocations      = DynamicTag(22)         // DT_TEXTREL
	DynamicTagJumpRelocations      = DynamicTag(23)         // DT_JMPREL
	DynamicTagBindNow              = DynamicTag(24)         // DT_BIND_NOW
	DynamicTagInitArray            = DynamicTag(25)         // DT_INIT_ARRAY
	DynamicTagFiniArray            = DynamicTag(26)         // DT_FINI_ARRAY
	DynamicTagInitArraySize        = DynamicTag(27)         // DT_INIT_ARRAYSZ
	DynamicTagFiniArraySize        = DynamicTag(28)         // DT_FINI_ARRAYSZ
	DynamicTagRunPath              = DynamicTag(29)         // DT_RUNPATH
	DynamicTagFlags                = DynamicTag(30)         // DT_FLAGS
	DynamicTagPreInitArray         = DynamicTag(32)         // DT_PREINIT_ARRAY
	DynamicTagPreInitArraySize     = DynamicTag(33)         // DT_PREINIT_ARRAYSZ
	DynamicTagGNUHash              = DynamicTag(0x6ffffef5) // DT_GNU_HASH
	DynamicTagVersionSymbol        = DynamicTag(0x6ffffff0) // DT_VERSYM
	DynamicTagRelaCount            = DynamicTag(0x6ffffff9) // DT_RELACOUNT
	DynamicTagRelCount             = DynamicTag(0x6ffffffa) // DT_RELCOUNT
	DynamicTagFlags1               = DynamicTag(0x6ffffffb) // DT_FLAGS_1
	DynamicTagVersionDefinition    = DynamicTag(0x6ffffffc) // DT_VERDEF
	DynamicTagVersionDefinitionNum = DynamicTag(0x6ffffffd) // DT_VERDEFNUM
	DynamicTagVersionNeeded        = DynamicTag(0x6ffffffe) // DT_VERNEED
	DynamicTagVersionNeededNum     = DynamicTag(0x6fffffff) // DT_VERNEEDNUM
)

var dynamicTagNames = map[DynamicTag]string{
	DynamicTagNull:                 "Null",
	DynamicTagNeeded:               "Needed",
	DynamicTagPLTRelocationsSize:   "PLTRelocationsSize",
	DynamicTagPLTGOT:               "PLTGOT",
	DynamicTagHash:                 "Hash",
	DynamicTagStringTable:          "StringTable",
	DynamicTagSymbolTable:          "SymbolTable",
	DynamicTagRela:                 "Rela",
	DynamicTagRelaSize:             "RelaSize",
	DynamicTagRelaEntrySize:        "RelaEntrySize",
	DynamicTagStringTableSize:      "StringTableSize",
	DynamicTagSymbolEntrySize:      "SymbolEntrySize",
	DynamicTagInit:                 "Init",
	DynamicTagFini:                 "Fini",
	DynamicTagSharedObjectName:     "SharedObjectName",
	DynamicTagRPath:                "RPath",
	DynamicTagSymbolic:             "Symbolic",
	DynamicTagRel:                  "Rel",
	DynamicTagRelSize:              "RelSize",
	DynamicTagRelEntrySize:         "RelEntrySize",
	DynamicTagPLTRelocationType:    "PLTRelocationType",
	DynamicTagDebug:                "Debug",
	DynamicTagTextRelocations:      "TextRelocations",
	DynamicTagJumpRelocations:      "JumpRelocations",
	DynamicTagBindNow:              "BindNow",
	DynamicTagInitArray:            "InitArray",
	DynamicTagFiniArray:            "FiniArray",
	DynamicTagInitArraySize:        "InitArraySize",
	DynamicTagFiniArraySize:        "FiniArraySize",
	DynamicTagRunPath:              "RunPath",
	DynamicTagFlags:                "Flags",
	DynamicTagPreInitArray:         "PreInitArray",
	DynamicTagPreInitArraySize:     "PreInitArraySize",
	DynamicTagGNUHash:              "GNUHash",
	DynamicTagVersionSymbol:        "VersionSymbol",
	DynamicTagRelaCount:            "RelaCount",
	DynamicTagRelCount:             "RelCount",
	DynamicTagFlags1:               "Flags1",
	DynamicTagVersionDefinition:    "VersionDefinition",
	DynamicTagVersionDefinitionNum: "VersionDefinitionNum",
	DynamicTagVersionNeeded:        "VersionNeeded",
	DynamicTagVersionNeededNum:     "VersionNeededNum",
}

func (tag DynamicTag) String() string {
	name, ok := dynamicTagNames[tag]
	if ok {
		return name
	}
	return fmt.Sprintf("DynamicTagUnknown(%#x)", int64(tag))
}

// HasStringValue reports whether d_val is an offset into the dynamic string
// table.
func (tag DynamicTag) HasStringValue() bool {
	switch tag {
	case DynamicTagNeeded,
		DynamicTagSharedObjectName,
		DynamicTagRPath,
		DynamicTagRunPath:
		return true
	default:
		return false
	}
}

// Width independent Elf_Dyn entry.  Value holds either d_val or d_ptr.
type DynamicEntry struct {
	Tag   DynamicTag
	Value uint64

	// Resolved from the linked string table for tags with string values.
	Name string
}

func (entry DynamicEntry) String() string {
	if entry.Name != "" {
		return fmt.Sprintf("%s %s", entry.Tag, entry.Name)
	}
	return fmt.Sprintf("%s %#x", entry.Tag, entry.Value)
}

// DynamicSection holds every entry in the section's declared extent,
// including the ones after the terminating DT_NULL.
type DynamicSection struct {
	BaseSection

	Entries []DynamicEntry

	// Bytes after the last whole entry.
	Trailing []byte
}

func NewDynamicSection(
	name string,
	header SectionHeaderEntry,
	entries []DynamicEntry,
) *DynamicSection {
	header.SectionType = SectionTypeDynamic
	return &DynamicSection{
		BaseSection: newBaseSection(name, header),
		Entries:     entries,
	}
}

func (section *DynamicSection) encodeContent(l layout) ([]byte, error) {
	result := make(
		[]byte,
		0,
		len(section.Entries)*l.DynamicEntrySize()+len(section.Trailing))
	for idx, entry := range section.Entries {
		encoded, err := l.encodeDynamic(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to encode dynamic entry %d: %w", idx, err)
		}
		result = append(result, encoded...)
	}

	return append(result, section.Trailing...), nil
}

// Live returns the entries up to, but not including, the first DT_NULL.
func (section *DynamicSection) Live() []DynamicEntry {
	for idx, entry := range section.Entries {
		if entry.Tag == DynamicTagNull {
			return section.Entries[:idx]
		}
	}
	return section.Entries
}

func (section *DynamicSection) Lookup(tag DynamicTag) (DynamicEntry, bool) {
	for _, entry := range section.Live() {
		if entry.Tag == tag {
			return entry, true
		}
	}
	return DynamicEntry{}, false
}

// NeededLibraries returns the DT_NEEDED names in file order.
func (section *DynamicSection) NeededLibraries() []string {
	result := []string{}
	for _, entry := range section.Live() {
		if entry.Tag == DynamicTagNeeded {
			result = append(result, entry.Name)
		}
	}
	return result
}
