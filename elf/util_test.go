package elf

import (
	"testing"

	"github.com/pattyshack/gt/testing/expect"
)

const (
	fixtureMangledName   = "_ZN3foo3barEv"
	fixtureDemangledName = "foo::bar()"
)

// newFixtureFile builds a small relocatable file exercising every section
// content variant.  Sections are in emission order with .shstrtab last.
func newFixtureFile(t *testing.T, header ElfHeader) *File {
	l, err := newLayout(header.Identifier)
	expect.Nil(t, err)

	file := NewFile(header)

	file.AddSection(
		NewRawSection(
			".text",
			SectionHeaderEntry{
				SectionType:      SectionTypeProgramDefinedInfo,
				SectionFlags:     SectionOccupiesMemory | SectionContainsInstructions,
				Address:          0x1000,
				AddressAlignment: 4,
			},
			[]byte{0x90, 0x90, 0xc3, 0x00}))

	file.AddSection(
		NewNoBitsSection(
			".bss",
			SectionHeaderEntry{
				SectionFlags:     SectionOccupiesMemory | SectionContainsWritableData,
				Address:          0x2000,
				Size:             0x100,
				AddressAlignment: 8,
			}))

	strtabContent, err := BuildStringTable(
		[]string{"main", "libc.so.6", "data_obj", fixtureMangledName})
	expect.Nil(t, err)

	strtab := NewStringTableSection(
		StringTableName,
		SectionHeaderEntry{AddressAlignment: 1},
		strtabContent)
	file.AddSection(strtab) // 3

	nameIndex := func(name string) uint32 {
		idx, ok := strtab.IndexOf(name)
		expect.True(t, ok)
		return idx
	}

	file.AddSection(
		NewSymbolTableSection(
			SymbolTableName,
			SectionHeaderEntry{
				Link:             3,
				Info:             2,
				AddressAlignment: 8,
				EntrySize:        uint64(l.SymbolEntrySize()),
			},
			[]*Symbol{
				{},
				{
					SymbolEntry: SymbolEntry{
						NameIndex:    nameIndex("data_obj"),
						Info:         SymbolInfo(SymbolBindingLocal, SymbolTypeObject),
						SectionIndex: 2,
						Value:        0x2000,
						Size:         8,
					},
				},
				{
					SymbolEntry: SymbolEntry{
						NameIndex:    nameIndex("main"),
						Info:         SymbolInfo(SymbolBindingGlobal, SymbolTypeFunction),
						SectionIndex: 1,
						Value:        0x1000,
						Size:         3,
					},
				},
				{
					SymbolEntry: SymbolEntry{
						NameIndex:        nameIndex(fixtureMangledName),
						Info:             SymbolInfo(SymbolBindingWeak, SymbolTypeFunction),
						SymbolVisibility: SymbolVisibilityHidden,
						SectionIndex:     1,
						Value:            0x1002,
						Size:             1,
					},
				},
			})) // 4

	file.AddSection(
		NewRelocationSection(
			".rela.text",
			SectionHeaderEntry{
				SectionFlags: SectionInfoHoldsSectionIndex,
				Link:         4,
				Info:         1,
				EntrySize:    uint64(l.RelocationEntrySize(true)),
			},
			true,
			[]RelocationEntry{
				{Offset: 0x1001, SymbolIndex: 2, Type: 2, Addend: -4},
				{Offset: 0x1002, SymbolIndex: 3, Type: 4, Addend: 0x10},
			})) // 5

	file.AddSection(
		NewRelocationSection(
			".rel.data",
			SectionHeaderEntry{
				Link:      4,
				Info:      2,
				EntrySize: uint64(l.RelocationEntrySize(false)),
			},
			false,
			[]RelocationEntry{
				{Offset: 0x2000, SymbolIndex: 1, Type: 8},
			})) // 6

	file.AddSection(
		NewDynamicSection(
			".dynamic",
			SectionHeaderEntry{
				SectionFlags: SectionOccupiesMemory | SectionContainsWritableData,
				Link:         3,
				EntrySize:    uint64(l.DynamicEntrySize()),
			},
			[]DynamicEntry{
				{Tag: DynamicTagNeeded, Value: uint64(nameIndex("libc.so.6"))},
				{Tag: DynamicTagInit, Value: 0x1000},
				{Tag: DynamicTagFini, Value: 0x1002},
				{Tag: DynamicTagNull},
				{Tag: DynamicTagNull},
			})) // 7

	order := l.ByteOrder()
	note := order.AppendUint32(nil, 4) // namesz
	note = order.AppendUint32(note, 4) // descsz
	note = order.AppendUint32(note, 3) // type
	note = append(note, "GNU\x00"...)
	note = append(note, "abcd"...)

	file.AddSection(
		newNoteSection(
			".note.test",
			SectionHeaderEntry{
				SectionType:      SectionTypeNote,
				SectionFlags:     SectionOccupiesMemory,
				AddressAlignment: 4,
			},
			note,
			nil)) // 8

	err = file.RebuildSectionNameTable() // 9
	expect.Nil(t, err)

	return file
}

var fixtureSectionNames = []string{
	"",
	".text",
	".bss",
	".strtab",
	".symtab",
	".rela.text",
	".rel.data",
	".dynamic",
	".note.test",
	".shstrtab",
}

func sectionNames(file *File) []string {
	names := []string{}
	for _, section := range file.Sections {
		names = append(names, section.Name())
	}
	return names
}

func fixtureHeaders() map[string]ElfHeader {
	builder := func() *HeaderBuilder {
		return NewHeaderBuilder().
			FileType(FileTypeRelocatable).
			Entry(0x1000)
	}

	return map[string]ElfHeader{
		"elf64 little endian": builder().
			Machine(MachineArchitectureX86_64).
			Build(),
		"elf64 big endian": builder().
			Data(DataEncodingTwosComplementBigEndian).
			Machine(MachineArchitectureAArch64).
			Build(),
		"elf32 little endian": builder().
			Class(Class32).
			Machine(MachineArchitectureX86).
			Build(),
		"elf32 big endian": builder().
			Class(Class32).
			Data(DataEncodingTwosComplementBigEndian).
			Machine(MachineArchitectureARM).
			Build(),
	}
}

// conditionedFixture returns the fixture's conditioned model and its bytes.
func conditionedFixture(t *testing.T, header ElfHeader) (*File, []byte) {
	file := newFixtureFile(t, header)

	err := file.Condition()
	expect.Nil(t, err)

	content, err := file.Bytes()
	expect.Nil(t, err)

	return file, content
}
