package elf

import (
	"fmt"
)

// File is the structural model of one elf file.  Sections and program headers
// refer to each other by index (sh_link, sh_info, st_shndx), never by pointer,
// so the caller may freely reorder the section list before writing.
//
// Invariant (after Condition): Sections[SectionStringTableIndex] is a
// *StringTableSection and NumSectionHeaderEntries == len(Sections).
type File struct {
	ElfHeader
	Sections       []Section
	ProgramHeaders []ProgramHeaderEntry
}

// NewFile starts a synthetic file holding only the null section.
func NewFile(header ElfHeader) *File {
	return &File{
		ElfHeader: header,
		Sections:  []Section{NewNullSection()},
	}
}

func (file *File) SectionCount() int {
	return len(file.Sections)
}

func (file *File) GetSection(name string) (Section, bool) {
	for _, section := range file.Sections {
		if section.Name() == name {
			return section, true
		}
	}

	return nil, false
}

func (file *File) SymbolTable() (*SymbolTableSection, bool) {
	section, ok := file.GetSection(SymbolTableName)
	if !ok {
		return nil, false
	}

	table, ok := section.(*SymbolTableSection)
	return table, ok
}

// SectionNameTable returns the section referenced by e_shstrndx.
func (file *File) SectionNameTable() (*StringTableSection, bool) {
	idx := int(file.SectionStringTableIndex)
	if idx == 0 || idx >= len(file.Sections) {
		return nil, false
	}

	table, ok := file.Sections[idx].(*StringTableSection)
	return table, ok
}

// AddSection appends section.  The caller is responsible for ordering; the
// section name table must be last before Condition is called.
func (file *File) AddSection(section Section) {
	file.Sections = append(file.Sections, section)
}

// AddNamedSection inserts section before the trailing section name table (or
// appends it when there is none), then rebuilds the name table from the
// section names.
func (file *File) AddNamedSection(section Section) error {
	_, ok := file.trailingNameTable()
	if ok {
		last := len(file.Sections) - 1
		file.Sections = append(file.Sections, nil)
		copy(file.Sections[last+1:], file.Sections[last:])
		file.Sections[last] = section
		return file.RebuildSectionNameTable()
	}

	file.AddSection(section)
	return file.RebuildSectionNameTable()
}

// RebuildSectionNameTable regenerates the trailing section name table from
// the names of every non-null section, in order.  A ".shstrtab" section is
// appended when the last section isn't a string table.
func (file *File) RebuildSectionNameTable() error {
	if len(file.Sections) == 0 {
		file.Sections = append(file.Sections, NewNullSection())
	}

	table, ok := file.trailingNameTable()
	if !ok {
		table = NewStringTableSection(
			SectionStringTableName,
			SectionHeaderEntry{AddressAlignment: 1},
			nil)
		file.AddSection(table)
	}

	names := make([]string, 0, len(file.Sections)-1)
	for _, section := range file.Sections[1:] {
		names = append(names, section.Name())
	}

	content, err := BuildStringTable(names)
	if err != nil {
		return fmt.Errorf("%w: section names: %w", ErrInvalidLayout, err)
	}

	table.Content = content
	table.Size = uint64(len(content))
	return nil
}

// trailingNameTable returns the last section when it's a string table that
// holds (or will hold) section names.
func (file *File) trailingNameTable() (*StringTableSection, bool) {
	last := len(file.Sections) - 1
	if last <= 0 {
		return nil, false
	}

	table, ok := file.Sections[last].(*StringTableSection)
	if !ok {
		return nil, false
	}

	if table.Name() != SectionStringTableName &&
		last != int(file.SectionStringTableIndex) {

		return nil, false
	}

	return table, true
}

// RelocationSymbol resolves a relocation's symbol through the relocation
// section's sh_link.
func (file *File) RelocationSymbol(
	section *RelocationSection,
	entry RelocationEntry,
) (
	*Symbol,
	error,
) {
	link := int(section.Link)
	if link == 0 || link >= len(file.Sections) {
		return nil, fmt.Errorf(
			"symbol table index out of bound (%d >= %d)",
			link,
			len(file.Sections))
	}

	table, ok := file.Sections[link].(*SymbolTableSection)
	if !ok {
		return nil, fmt.Errorf(
			"symbol table index (%d) does not point to a symbol table (%s)",
			link,
			file.Sections[link].Name())
	}

	if int(entry.SymbolIndex) >= len(table.Symbols) {
		return nil, fmt.Errorf(
			"relocation symbol index out of bound (%d >= %d)",
			entry.SymbolIndex,
			len(table.Symbols))
	}

	return table.Symbols[entry.SymbolIndex], nil
}
