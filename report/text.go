package report

import (
	"fmt"
	"io"

	"github.com/clubby789/elf-utilities/elf"
)

func WriteHeader(writer io.Writer, file *elf.File) {
	fmt.Fprintf(writer, "Header: %v\n", file.ElfHeader)
}

func WriteSections(writer io.Writer, file *elf.File) {
	fmt.Fprintln(writer, "Sections:", len(file.Sections))
	for idx, section := range file.Sections {
		header := section.Header()
		fmt.Fprintf(
			writer,
			"  [%d] %-20s %-16s %s addr=%#x off=%#x size=%#x link=%d info=%d\n",
			idx,
			section.Name(),
			header.SectionType,
			header.SectionFlags,
			header.Address,
			header.Offset,
			header.Size,
			header.Link,
			header.Info)

		switch s := section.(type) {
		case *elf.StringTableSection:
			fmt.Fprintf(writer, "    Number of string entries: %d\n", s.NumEntries())
		case *elf.SymbolTableSection:
			fmt.Fprintf(writer, "    Number of symbols: %d\n", len(s.Symbols))
		case *elf.RelocationSection:
			fmt.Fprintf(
				writer,
				"    Number of relocations: %d (addends: %v)\n",
				len(s.Relocations),
				s.HasAddends())
		case *elf.NoteSection:
			for noteIdx, entry := range s.Entries {
				fmt.Fprintf(
					writer,
					"    %d: Name = %s Type = %d Description length = %d\n",
					noteIdx,
					entry.Name,
					entry.Type,
					len(entry.Description))
			}
		}
	}
}

func WriteSegments(writer io.Writer, file *elf.File) {
	fmt.Fprintln(writer, "Program headers:", len(file.ProgramHeaders))
	for idx, header := range file.ProgramHeaders {
		fmt.Fprintf(
			writer,
			"  [%d] %-12s %s off=%#x vaddr=%#x paddr=%#x filesz=%#x memsz=%#x align=%#x\n",
			idx,
			header.ProgramType,
			header.ProgramFlags,
			header.ContentOffset,
			header.VirtualAddress,
			header.PhysicalAddress,
			header.FileImageSize,
			header.MemoryImageSize,
			header.Alignment)
	}
}

func WriteSymbols(writer io.Writer, file *elf.File) {
	for _, section := range file.Sections {
		table, ok := section.(*elf.SymbolTableSection)
		if !ok {
			continue
		}

		fmt.Fprintf(writer, "Symbols (%s): %d\n", table.Name(), len(table.Symbols))
		for idx, entry := range table.Symbols {
			// Symbol embeds SymbolVisibility, so print fields individually
			// rather than with %v.
			fmt.Fprintf(
				writer,
				"  %d: %x %d %s %s %s %d %s\n",
				idx,
				entry.Value,
				entry.Size,
				entry.Type(),
				entry.Binding(),
				entry.Visibility(),
				entry.SectionIndex,
				entry.PrettyName())
		}
	}
}

func WriteDynamic(writer io.Writer, file *elf.File) {
	for _, section := range file.Sections {
		dynamic, ok := section.(*elf.DynamicSection)
		if !ok {
			continue
		}

		live := dynamic.Live()
		fmt.Fprintf(writer, "Dynamic (%s): %d\n", dynamic.Name(), len(live))
		for idx, entry := range live {
			fmt.Fprintf(writer, "  %d: %v\n", idx, entry)
		}
	}
}

func WriteRelocations(writer io.Writer, file *elf.File) {
	for _, section := range file.Sections {
		relocations, ok := section.(*elf.RelocationSection)
		if !ok {
			continue
		}

		fmt.Fprintf(
			writer,
			"Relocations (%s): %d\n",
			relocations.Name(),
			len(relocations.Relocations))
		for idx, entry := range relocations.Relocations {
			name := "?"
			symbol, err := file.RelocationSymbol(relocations, entry)
			if err == nil {
				name = symbol.PrettyName()
			}

			fmt.Fprintf(
				writer,
				"  %d: %#x type=%d sym=%d (%s) addend=%d\n",
				idx,
				entry.Offset,
				entry.Type,
				entry.SymbolIndex,
				name,
				entry.Addend)
		}
	}
}

// WriteText writes every table in file.
func WriteText(writer io.Writer, file *elf.File) {
	WriteHeader(writer, file)
	WriteSections(writer, file)
	WriteSegments(writer, file)
	WriteSymbols(writer, file)
	WriteDynamic(writer, file)
	WriteRelocations(writer, file)
}
