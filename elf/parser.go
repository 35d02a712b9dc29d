package elf

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ianlancetaylor/demangle"
	"golang.org/x/sync/errgroup"
)

// Resources:
// https://refspecs.linuxfoundation.org/

type parser struct {
	options

	content []byte

	layout

	File
}

// ReadFile reads the whole file into memory, then parses it.
func ReadFile(path string, opts ...Option) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read elf file: %w", err)
	}

	return ParseBytes(content, append([]Option{WithPath(path)}, opts...)...)
}

// ReadFile32 is ReadFile restricted to ELFCLASS32 files.
func ReadFile32(path string, opts ...Option) (*File, error) {
	return ReadFile(path, append(opts, requireClass(Class32))...)
}

// ReadFile64 is ReadFile restricted to ELFCLASS64 files.
func ReadFile64(path string, opts ...Option) (*File, error) {
	return ReadFile(path, append(opts, requireClass(Class64))...)
}

func Parse(reader io.Reader, opts ...Option) (*File, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read elf file: %w", err)
	}

	return ParseBytes(content, opts...)
}

// ParseBytes parses an in-memory elf image.  The returned file doesn't alias
// content.
func ParseBytes(content []byte, opts ...Option) (*File, error) {
	p := parser{
		options: defaultOptions(),
		content: content,
	}

	for _, opt := range opts {
		opt(&p.options)
	}

	err := p.parse()
	if err != nil {
		return nil, err
	}

	return &p.File, nil
}

func requireClass(class Class) Option {
	return func(opts *options) {
		opts.class = class
	}
}

func (p *parser) parse() error {
	// NOTE: identifier (e_ident) has no endian-ness.  We must parse identifier
	// to determine the elf file's endian-ness (including the elf header).
	err := p.parseIdentifier()
	if err != nil {
		return err
	}

	err = p.parseHeader()
	if err != nil {
		return err
	}

	headers, err := p.parseSectionHeaders()
	if err != nil {
		return err
	}

	err = p.parseSectionContents(headers)
	if err != nil {
		return err
	}

	err = p.parseProgramHeaders()
	if err != nil {
		return err
	}

	// Name resolution reads one section while writing another.  It only
	// starts once every section is decoded.
	err = p.bindSectionNames()
	if err != nil {
		return err
	}

	err = p.bindSymbolNames()
	if err != nil {
		return err
	}

	return p.bindDynamicNames()
}

func (p *parser) debug(keyvals ...any) {
	_ = level.Debug(log.With(p.logger, "path", p.path)).Log(keyvals...)
}

func (p *parser) parseIdentifier() error {
	if !HasMagic(p.content) {
		return fmt.Errorf("input file %q is %w", p.path, ErrNotELF)
	}

	id, err := UnpackIdentifier(p.content)
	if err != nil {
		return err
	}

	if p.class != ClassNone && id.Class != p.class {
		return fmt.Errorf(
			"%w: unexpected elf class (%s != %s)",
			ErrMalformedHeader,
			id.Class,
			p.class)
	}

	p.layout, err = newLayout(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	if id.IdentifierVersion != IdentifierVersion {
		return fmt.Errorf(
			"%w: unsupported identifier version: %d",
			ErrMalformedHeader,
			id.IdentifierVersion)
	}

	p.debug(
		"msg", "parsed identifier",
		"class", id.Class,
		"data", id.DataEncoding)
	return nil
}

func (p *parser) parseHeader() error {
	header, err := p.layout.decodeHeader(p.content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	p.ElfHeader = header

	if p.NumSectionHeaderEntries > 0 &&
		int(p.ElfHeader.SectionHeaderEntrySize) !=
			p.layout.SectionHeaderEntrySize() {

		return fmt.Errorf(
			"%w: unexpected section header entry size: %d",
			ErrMalformedHeader,
			p.ElfHeader.SectionHeaderEntrySize)
	}

	if p.NumProgramHeaderEntries > 0 &&
		int(p.ElfHeader.ProgramHeaderEntrySize) !=
			p.layout.ProgramHeaderEntrySize() {

		return fmt.Errorf(
			"%w: unexpected program header entry size: %d",
			ErrMalformedHeader,
			p.ElfHeader.ProgramHeaderEntrySize)
	}

	// For simplicity, we'll disallow extended section header.  Most elf structs
	// (e.g., Elf64_Sym.st_shndx) don't support extended section indexing.
	//
	// https://docs.oracle.com/en/operating-systems/solaris/oracle-solaris/11.4/linkers-libraries/extended-section-header.html
	if p.SectionHeaderOffset > 0 && p.NumSectionHeaderEntries == 0 {
		return fmt.Errorf(
			"%w: extended section header not supported",
			ErrMalformedHeader)
	}

	p.debug("msg", "parsed header", "header", header)
	return nil
}

// tableExtent returns the byte range of a fixed-size entry table, or false
// if the range isn't inside the content.
func (p *parser) tableExtent(
	offset uint64,
	count int,
	entrySize int,
) (
	[]byte,
	bool,
) {
	size := uint64(count) * uint64(entrySize)
	end := offset + size
	if end < offset || end > uint64(len(p.content)) {
		return nil, false
	}
	return p.content[offset:end], true
}

func (p *parser) parseSectionHeaders() ([]SectionHeaderEntry, error) {
	if p.NumSectionHeaderEntries == 0 {
		return nil, nil
	}

	entrySize := p.layout.SectionHeaderEntrySize()
	table, ok := p.tableExtent(
		p.SectionHeaderOffset,
		int(p.NumSectionHeaderEntries),
		entrySize)
	if !ok {
		return nil, fmt.Errorf(
			"%w: out of bound section header table (offset %d, %d entries)",
			ErrMalformedSectionHeader,
			p.SectionHeaderOffset,
			p.NumSectionHeaderEntries)
	}

	headers := make([]SectionHeaderEntry, 0, p.NumSectionHeaderEntries)
	for idx := 0; idx < int(p.NumSectionHeaderEntries); idx++ {
		header, err := p.layout.decodeSectionHeader(table[idx*entrySize:])
		if err != nil {
			return nil, fmt.Errorf(
				"%w: section %d: %w",
				ErrMalformedSectionHeader,
				idx,
				err)
		}
		headers = append(headers, header)
	}

	p.debug("msg", "parsed section headers", "count", len(headers))
	return headers, nil
}

// parseSectionContents decodes every section independently.  Each result is
// written to its own slot, so the decoders can run in parallel.
func (p *parser) parseSectionContents(headers []SectionHeaderEntry) error {
	sections := make([]Section, len(headers))

	group := errgroup.Group{}
	group.SetLimit(max(p.concurrency, 1))
	for idx, header := range headers {
		group.Go(func() error {
			section, err := p.parseSection(header)
			if err != nil {
				return fmt.Errorf("section %d: %w", idx, err)
			}
			sections[idx] = section
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return err
	}

	p.Sections = sections
	p.debug("msg", "parsed section contents", "concurrency", p.concurrency)
	return nil
}

func (p *parser) parseSection(header SectionHeaderEntry) (Section, error) {
	// NOTE: sh_size is a virtual reservation for SHT_NOBITS.
	if !header.SectionType.HasDataInFile() {
		return NewNoBitsSection("", header), nil
	}

	start := header.Offset
	end := start + header.Size
	if end < start || end > uint64(len(p.content)) {
		return nil, fmt.Errorf(
			"%w: out of bound section (%d > %d)",
			ErrMalformedSectionHeader,
			end,
			len(p.content))
	}

	content := p.content[start:end]

	switch header.SectionType {
	case SectionTypeStringTable:
		return NewStringTableSection("", header, content), nil
	case SectionTypeSymbolTable, SectionTypeDynamicSymbolTable:
		return p.parseSymbolTable(header, content)
	case SectionTypeRelocationWithAddends:
		return p.parseRelocations(header, content, true)
	case SectionTypeRelocationNoAddends:
		return p.parseRelocations(header, content, false)
	case SectionTypeDynamic:
		return p.parseDynamic(header, content)
	case SectionTypeNote:
		return p.parseNote(header, content), nil
	default:
		return NewRawSection("", header, content), nil
	}
}

func (p *parser) parseSymbolTable(
	header SectionHeaderEntry,
	content []byte,
) (
	*SymbolTableSection,
	error,
) {
	entrySize := p.layout.SymbolEntrySize()
	if len(content)%entrySize != 0 {
		return nil, fmt.Errorf(
			"%w: invalid symbol table size (%d)",
			ErrMalformedSymbol,
			len(content))
	}

	symbols := make([]*Symbol, 0, len(content)/entrySize)
	for offset := 0; offset < len(content); offset += entrySize {
		entry, err := p.layout.decodeSymbol(content[offset:])
		if err != nil {
			return nil, fmt.Errorf(
				"%w: symbol %d: %w",
				ErrMalformedSymbol,
				len(symbols),
				err)
		}

		symbols = append(symbols, &Symbol{SymbolEntry: entry})
	}

	return NewSymbolTableSection("", header, symbols), nil
}

func (p *parser) parseRelocations(
	header SectionHeaderEntry,
	content []byte,
	withAddends bool,
) (
	*RelocationSection,
	error,
) {
	entrySize := p.layout.RelocationEntrySize(withAddends)
	numEntries := len(content) / entrySize

	relocations := make([]RelocationEntry, 0, numEntries)
	for idx := 0; idx < numEntries; idx++ {
		entry, err := p.layout.decodeRelocation(
			content[idx*entrySize:],
			withAddends)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: relocation %d: %w",
				ErrMalformedSectionContent,
				idx,
				err)
		}
		relocations = append(relocations, entry)
	}

	section := NewRelocationSection("", header, withAddends, relocations)
	section.Trailing = cloneBytes(content[numEntries*entrySize:])
	return section, nil
}

func (p *parser) parseDynamic(
	header SectionHeaderEntry,
	content []byte,
) (
	*DynamicSection,
	error,
) {
	// NOTE: some producers pad after DT_NULL.  The full extent is decoded.
	entrySize := p.layout.DynamicEntrySize()
	numEntries := len(content) / entrySize

	entries := make([]DynamicEntry, 0, numEntries)
	for idx := 0; idx < numEntries; idx++ {
		entry, err := p.layout.decodeDynamic(content[idx*entrySize:])
		if err != nil {
			return nil, fmt.Errorf(
				"%w: dynamic entry %d: %w",
				ErrMalformedSectionContent,
				idx,
				err)
		}
		entries = append(entries, entry)
	}

	section := NewDynamicSection("", header, entries)
	section.Trailing = cloneBytes(content[numEntries*entrySize:])
	return section, nil
}

// parseNote keeps the raw bytes authoritative.  Entries is left empty when the
// content doesn't follow the usual note layout.
func (p *parser) parseNote(
	header SectionHeaderEntry,
	content []byte,
) *NoteSection {
	entries, err := decodeNoteEntries(p.layout, header, content)
	if err != nil {
		p.debug("msg", "skipped note entries", "err", err)
		entries = nil
	}

	return newNoteSection("", header, content, entries)
}

func decodeNoteEntries(
	l layout,
	header SectionHeaderEntry,
	content []byte,
) (
	[]NoteEntry,
	error,
) {
	// NOTE: even though Elf64_Nhdr is defined, it looks like tools continue to
	// use Elf32_Nhdr.  Entries are 4-byte aligned unless the section says 8.
	alignment := uint64(4)
	if header.AddressAlignment == 8 {
		alignment = 8
	}

	align := func(size uint64) uint64 {
		return (size + alignment - 1) / alignment * alignment
	}

	order := l.ByteOrder()

	entries := []NoteEntry{}
	for len(content) > 0 {
		if len(content) < NoteHeaderSize {
			return nil, fmt.Errorf("truncated note header")
		}

		nameSize := uint64(order.Uint32(content))
		descSize := uint64(order.Uint32(content[4:]))
		noteType := order.Uint32(content[8:])
		content = content[NoteHeaderSize:]

		if uint64(len(content)) < nameSize {
			return nil, fmt.Errorf("not enough name bytes")
		}
		name := content[:nameSize]
		for len(name) > 0 && name[len(name)-1] == 0 {
			name = name[:len(name)-1]
		}

		descStart := min(
			align(NoteHeaderSize+nameSize)-NoteHeaderSize,
			uint64(len(content)))
		content = content[descStart:]

		if uint64(len(content)) < descSize {
			return nil, fmt.Errorf("not enough description bytes")
		}
		desc := content[:descSize]

		entries = append(
			entries,
			NoteEntry{
				Name:        string(name),
				Description: string(desc),
				Type:        noteType,
			})

		// The final entry's padding is sometimes omitted.
		content = content[min(align(descSize), uint64(len(content))):]
	}

	return entries, nil
}

func (p *parser) parseProgramHeaders() error {
	if p.NumProgramHeaderEntries == 0 {
		return nil
	}

	entrySize := p.layout.ProgramHeaderEntrySize()
	table, ok := p.tableExtent(
		p.ProgramHeaderOffset,
		int(p.NumProgramHeaderEntries),
		entrySize)
	if !ok {
		return fmt.Errorf(
			"%w: out of bound program header table (offset %d, %d entries)",
			ErrMalformedSegmentHeader,
			p.ProgramHeaderOffset,
			p.NumProgramHeaderEntries)
	}

	programHeaders := make([]ProgramHeaderEntry, 0, p.NumProgramHeaderEntries)
	for idx := 0; idx < int(p.NumProgramHeaderEntries); idx++ {
		header, err := p.layout.decodeProgramHeader(table[idx*entrySize:])
		if err != nil {
			return fmt.Errorf(
				"%w: segment %d: %w",
				ErrMalformedSegmentHeader,
				idx,
				err)
		}
		programHeaders = append(programHeaders, header)
	}

	p.ProgramHeaders = programHeaders
	p.debug("msg", "parsed program headers", "count", len(programHeaders))
	return nil
}

// linkedStringTable returns the string table referenced by an sh_link field.
// See the elf 1.2 standard, Figure 1-12. sh_link and sh_info
// Interpretation.
func (p *parser) linkedStringTable(link uint32) (*StringTableSection, error) {
	if link == 0 || link >= uint32(len(p.Sections)) {
		return nil, fmt.Errorf(
			"string table index out of bound (%d >= %d)",
			link,
			len(p.Sections))
	}

	table, ok := p.Sections[link].(*StringTableSection)
	if !ok {
		return nil, fmt.Errorf(
			"string table index (%d) does not point to a string table",
			link)
	}

	return table, nil
}

func (p *parser) bindSectionNames() error {
	if p.SectionStringTableIndex == SectionIndexUndefined ||
		len(p.Sections) == 0 {

		return nil
	}

	table, err := p.linkedStringTable(uint32(p.SectionStringTableIndex))
	if err != nil {
		return fmt.Errorf(
			"%w: section name table: %w",
			ErrMalformedSectionHeader,
			err)
	}

	// section 0 is always undefined
	for idx, section := range p.Sections[1:] {
		name, err := table.Lookup(section.Header().NameIndex)
		if err != nil {
			return fmt.Errorf(
				"%w: section %d name: %w",
				ErrMalformedSectionHeader,
				idx+1,
				err)
		}
		section.SetName(name)
	}

	p.debug("msg", "bound section names", "table", table.Name())
	return nil
}

func (p *parser) bindSymbolNames() error {
	for _, section := range p.Sections {
		symbols, ok := section.(*SymbolTableSection)
		if !ok {
			continue
		}

		table, err := p.linkedStringTable(symbols.Link)
		if err != nil {
			return fmt.Errorf(
				"%w: symbol table (%s): %w",
				ErrMalformedSymbol,
				symbols.Name(),
				err)
		}

		for idx, symbol := range symbols.Symbols {
			if !symbol.HasName() {
				continue
			}

			name, err := table.Lookup(symbol.NameIndex)
			if err != nil {
				return fmt.Errorf(
					"%w: symbol table (%s) entry %d: %w",
					ErrMalformedSymbol,
					symbols.Name(),
					idx,
					err)
			}

			symbol.Name = name
			if p.demangle {
				symbol.DemangledName = demangleName(name, p.demangleOpt)
			}
		}

		p.debug(
			"msg", "bound symbol names",
			"section", symbols.Name(),
			"count", len(symbols.Symbols))
	}

	return nil
}

func demangleName(name string, opts []demangle.Option) string {
	demangled, err := demangle.ToString(name, opts...)
	if err != nil || demangled == name {
		return ""
	}
	return demangled
}

func (p *parser) bindDynamicNames() error {
	for _, section := range p.Sections {
		dynamic, ok := section.(*DynamicSection)
		if !ok {
			continue
		}

		var table *StringTableSection
		for idx := range dynamic.Entries {
			entry := &dynamic.Entries[idx]
			if !entry.Tag.HasStringValue() {
				continue
			}

			if table == nil {
				var err error
				table, err = p.linkedStringTable(dynamic.Link)
				if err != nil {
					return fmt.Errorf(
						"%w: dynamic section (%s): %w",
						ErrMalformedSectionContent,
						dynamic.Name(),
						err)
				}
			}

			if entry.Value > uint64(^uint32(0)) {
				return fmt.Errorf(
					"%w: dynamic entry %d: out of bound string index (%d)",
					ErrMalformedSectionContent,
					idx,
					entry.Value)
			}

			name, err := table.Lookup(uint32(entry.Value))
			if err != nil {
				return fmt.Errorf(
					"%w: dynamic entry %d (%s): %w",
					ErrMalformedSectionContent,
					idx,
					entry.Tag,
					err)
			}
			entry.Name = name
		}
	}

	return nil
}

func cloneBytes(content []byte) []byte {
	if len(content) == 0 {
		return nil
	}

	result := make([]byte, len(content))
	copy(result, content)
	return result
}
