package elf

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Condition recomputes a self-consistent layout in place:
//
//  1. e_shentsize and e_shnum from the section list
//  2. e_shstrndx as the last section's index
//  3. e_ehsize from the class
//  4. e_shoff as the header size plus the sum of all payload sizes
//  5. every section's sh_offset, packed contiguously after the header
//  6. every section's sh_name, from the section name table content
//
// Sections must already be in final emission order, with the section name
// table last.  The program header table isn't emitted, so e_phoff and e_phnum
// are cleared.
func (file *File) Condition() error {
	l, err := newLayout(file.Identifier)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}

	if len(file.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidLayout)
	}

	if len(file.Sections) > MaxNumSectionHeaderEntries {
		return fmt.Errorf(
			"%w: too many sections (%d)",
			ErrInvalidLayout,
			len(file.Sections))
	}

	last := len(file.Sections) - 1
	nameTable, ok := file.Sections[last].(*StringTableSection)
	if !ok {
		return fmt.Errorf(
			"%w: last section (%s) is not a string table",
			ErrInvalidLayout,
			file.Sections[last].Name())
	}

	payloads, err := file.encodePayloads(l)
	if err != nil {
		return err
	}

	file.SectionHeaderEntrySize = uint16(l.SectionHeaderEntrySize())
	file.NumSectionHeaderEntries = uint16(len(file.Sections))
	file.SectionStringTableIndex = SectionIndex(last)

	file.ElfHeaderSize = uint16(l.HeaderSize())
	file.ProgramHeaderEntrySize = uint16(l.ProgramHeaderEntrySize())
	file.ProgramHeaderOffset = 0
	file.NumProgramHeaderEntries = 0

	offset := uint64(l.HeaderSize())
	for idx, section := range file.Sections {
		header := section.Header()
		header.Offset = offset
		if header.SectionType.HasDataInFile() {
			header.Size = uint64(len(payloads[idx]))
		}
		offset += uint64(len(payloads[idx]))
	}
	file.SectionHeaderOffset = offset

	// The i-th name in the table belongs to section i+1.
	nameIndex := uint32(1)
	for idx, name := range SplitStringTable(nameTable.Content) {
		sectionIdx := idx + 1
		if sectionIdx != last && sectionIdx < len(file.Sections) {
			file.Sections[sectionIdx].Header().NameIndex = nameIndex
		}
		nameIndex += uint32(len(name)) + 1
	}

	tableIndex, ok := nameTable.IndexOf(nameTable.Name())
	if ok {
		nameTable.NameIndex = tableIndex
	}

	return nil
}

func (file *File) encodePayloads(l layout) ([][]byte, error) {
	payloads := make([][]byte, 0, len(file.Sections))
	for idx, section := range file.Sections {
		payload, err := section.encodeContent(l)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: section %d (%s): %w",
				ErrInvalidLayout,
				idx,
				section.Name(),
				err)
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// Bytes serializes the header, every section payload in order, then the
// section header table.  It doesn't recompute the layout; call Condition
// first unless the model is already self-consistent.
func (file *File) Bytes() ([]byte, error) {
	l, err := newLayout(file.Identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}

	payloads, err := file.encodePayloads(l)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}

	header, err := l.encodeHeader(file.ElfHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrInvalidLayout, err)
	}
	buffer.Write(header)

	for _, payload := range payloads {
		buffer.Write(payload)
	}

	for idx, section := range file.Sections {
		entry, err := l.encodeSectionHeader(*section.Header())
		if err != nil {
			return nil, fmt.Errorf(
				"%w: section header %d: %w",
				ErrInvalidLayout,
				idx,
				err)
		}
		buffer.Write(entry)
	}

	// TODO: emit the program header table once segments are laid out.

	return buffer.Bytes(), nil
}

func (file *File) WriteTo(writer io.Writer) (int64, error) {
	content, err := file.Bytes()
	if err != nil {
		return 0, err
	}

	n, err := writer.Write(content)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write elf file: %w", err)
	}

	return int64(n), nil
}

func (file *File) WriteFile(path string, perm os.FileMode) error {
	content, err := file.Bytes()
	if err != nil {
		return err
	}

	err = os.WriteFile(path, content, perm)
	if err != nil {
		return fmt.Errorf("failed to write elf file: %w", err)
	}

	return nil
}
