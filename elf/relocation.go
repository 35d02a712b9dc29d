package elf

import (
	"fmt"
)

// Width independent Elf_Rel / Elf_Rela entry.  r_info is split into its
// symbol index and relocation type; the class decides how they're packed.
type RelocationEntry struct {
	Offset      uint64 // r_offset
	SymbolIndex uint32 // ELF_R_SYM(r_info)
	Type        uint32 // ELF_R_TYPE(r_info)
	Addend      int64  // r_addend.  Always zero for SHT_REL
}

type RelocationSection struct {
	BaseSection

	Relocations []RelocationEntry

	// Bytes after the last whole entry.
	Trailing []byte
}

func NewRelocationSection(
	name string,
	header SectionHeaderEntry,
	withAddends bool,
	relocations []RelocationEntry,
) *RelocationSection {
	if withAddends {
		header.SectionType = SectionTypeRelocationWithAddends
	} else {
		header.SectionType = SectionTypeRelocationNoAddends
	}

	return &RelocationSection{
		BaseSection: newBaseSection(name, header),
		Relocations: relocations,
	}
}

func (section *RelocationSection) HasAddends() bool {
	return section.SectionType == SectionTypeRelocationWithAddends
}

func (section *RelocationSection) encodeContent(l layout) ([]byte, error) {
	withAddends := section.HasAddends()

	result := make(
		[]byte,
		0,
		len(section.Relocations)*l.RelocationEntrySize(withAddends)+
			len(section.Trailing))
	for idx, entry := range section.Relocations {
		encoded, err := l.encodeRelocation(entry, withAddends)
		if err != nil {
			return nil, fmt.Errorf("failed to encode relocation %d: %w", idx, err)
		}
		result = append(result, encoded...)
	}

	return append(result, section.Trailing...), nil
}
