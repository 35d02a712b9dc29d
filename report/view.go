package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/clubby789/elf-utilities/elf"
)

type HeaderView struct {
	Class            string `yaml:"class"`
	DataEncoding     string `yaml:"data"`
	OSABI            string `yaml:"osabi"`
	ABIVersion       byte   `yaml:"abi_version"`
	FileType         string `yaml:"type"`
	Machine          string `yaml:"machine"`
	EntryPoint       string `yaml:"entry"`
	ProgramHeaders   uint16 `yaml:"program_headers"`
	SectionHeaders   uint16 `yaml:"section_headers"`
	SectionNameTable uint16 `yaml:"shstrndx"`
	Flags            string `yaml:"flags"`
}

type SymbolView struct {
	Index      int    `yaml:"index"`
	Name       string `yaml:"name,omitempty"`
	Demangled  string `yaml:"demangled,omitempty"`
	Value      string `yaml:"value"`
	Size       uint64 `yaml:"size"`
	Type       string `yaml:"type"`
	Binding    string `yaml:"binding"`
	Visibility string `yaml:"visibility"`
	Section    uint16 `yaml:"section"`
}

type RelocationView struct {
	Offset string `yaml:"offset"`
	Symbol uint32 `yaml:"symbol"`
	Type   uint32 `yaml:"type"`
	Addend int64  `yaml:"addend,omitempty"`
}

type DynamicView struct {
	Tag   string `yaml:"tag"`
	Value string `yaml:"value"`
}

type NoteView struct {
	Name              string `yaml:"name"`
	Type              uint32 `yaml:"type"`
	DescriptionLength int    `yaml:"description_length"`
}

type SectionView struct {
	Index     int    `yaml:"index"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Flags     string `yaml:"flags"`
	Address   string `yaml:"address"`
	Offset    string `yaml:"offset"`
	Size      uint64 `yaml:"size"`
	Link      uint32 `yaml:"link"`
	Info      uint32 `yaml:"info"`
	Alignment uint64 `yaml:"alignment"`
	EntrySize uint64 `yaml:"entry_size"`

	Strings     *int             `yaml:"strings,omitempty"`
	Symbols     []SymbolView     `yaml:"symbols,omitempty"`
	Relocations []RelocationView `yaml:"relocations,omitempty"`
	Dynamic     []DynamicView    `yaml:"dynamic,omitempty"`
	Notes       []NoteView       `yaml:"notes,omitempty"`
}

type SegmentView struct {
	Index           int    `yaml:"index"`
	Type            string `yaml:"type"`
	Flags           string `yaml:"flags"`
	Offset          string `yaml:"offset"`
	VirtualAddress  string `yaml:"vaddr"`
	PhysicalAddress string `yaml:"paddr"`
	FileSize        uint64 `yaml:"file_size"`
	MemorySize      uint64 `yaml:"memory_size"`
	Alignment       uint64 `yaml:"alignment"`
}

// FileView is the yaml friendly projection of a parsed file.
type FileView struct {
	Path     string        `yaml:"path,omitempty"`
	Header   HeaderView    `yaml:"header"`
	Sections []SectionView `yaml:"sections"`
	Segments []SegmentView `yaml:"segments,omitempty"`
}

func hex(value uint64) string {
	return fmt.Sprintf("%#x", value)
}

func NewHeaderView(header elf.ElfHeader) HeaderView {
	return HeaderView{
		Class:            header.Class.String(),
		DataEncoding:     header.DataEncoding.String(),
		OSABI:            header.OperatingSystemABI.String(),
		ABIVersion:       header.ABIVersion,
		FileType:         header.FileType.String(),
		Machine:          header.MachineArchitecture.String(),
		EntryPoint:       hex(header.EntryPointAddress),
		ProgramHeaders:   header.NumProgramHeaderEntries,
		SectionHeaders:   header.NumSectionHeaderEntries,
		SectionNameTable: uint16(header.SectionStringTableIndex),
		Flags:            hex(uint64(header.ArchitectureFlags)),
	}
}

func NewSymbolView(idx int, symbol *elf.Symbol) SymbolView {
	return SymbolView{
		Index:      idx,
		Name:       symbol.Name,
		Demangled:  symbol.DemangledName,
		Value:      hex(symbol.Value),
		Size:       symbol.Size,
		Type:       symbol.Type().String(),
		Binding:    symbol.Binding().String(),
		Visibility: symbol.Visibility().String(),
		Section:    uint16(symbol.SectionIndex),
	}
}

func NewSectionView(idx int, section elf.Section) SectionView {
	header := section.Header()
	view := SectionView{
		Index:     idx,
		Name:      section.Name(),
		Type:      header.SectionType.String(),
		Flags:     header.SectionFlags.String(),
		Address:   hex(header.Address),
		Offset:    hex(header.Offset),
		Size:      header.Size,
		Link:      header.Link,
		Info:      header.Info,
		Alignment: header.AddressAlignment,
		EntrySize: header.EntrySize,
	}

	switch s := section.(type) {
	case *elf.StringTableSection:
		count := s.NumEntries()
		view.Strings = &count
	case *elf.SymbolTableSection:
		for symbolIdx, symbol := range s.Symbols {
			view.Symbols = append(view.Symbols, NewSymbolView(symbolIdx, symbol))
		}
	case *elf.RelocationSection:
		for _, entry := range s.Relocations {
			view.Relocations = append(
				view.Relocations,
				RelocationView{
					Offset: hex(entry.Offset),
					Symbol: entry.SymbolIndex,
					Type:   entry.Type,
					Addend: entry.Addend,
				})
		}
	case *elf.DynamicSection:
		for _, entry := range s.Live() {
			value := hex(entry.Value)
			if entry.Name != "" {
				value = entry.Name
			}
			view.Dynamic = append(
				view.Dynamic,
				DynamicView{Tag: entry.Tag.String(), Value: value})
		}
	case *elf.NoteSection:
		for _, entry := range s.Entries {
			view.Notes = append(
				view.Notes,
				NoteView{
					Name:              entry.Name,
					Type:              entry.Type,
					DescriptionLength: len(entry.Description),
				})
		}
	}

	return view
}

func NewSegmentView(idx int, header elf.ProgramHeaderEntry) SegmentView {
	return SegmentView{
		Index:           idx,
		Type:            header.ProgramType.String(),
		Flags:           header.ProgramFlags.String(),
		Offset:          hex(header.ContentOffset),
		VirtualAddress:  hex(header.VirtualAddress),
		PhysicalAddress: hex(header.PhysicalAddress),
		FileSize:        header.FileImageSize,
		MemorySize:      header.MemoryImageSize,
		Alignment:       header.Alignment,
	}
}

func NewFileView(path string, file *elf.File) FileView {
	view := FileView{
		Path:     path,
		Header:   NewHeaderView(file.ElfHeader),
		Sections: []SectionView{},
	}

	for idx, section := range file.Sections {
		view.Sections = append(view.Sections, NewSectionView(idx, section))
	}

	for idx, header := range file.ProgramHeaders {
		view.Segments = append(view.Segments, NewSegmentView(idx, header))
	}

	return view
}

func WriteYAML(writer io.Writer, path string, file *elf.File) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)

	err := encoder.Encode(NewFileView(path, file))
	if err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}

	return encoder.Close()
}
