package elf

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// BuildStringTable builds the content of a string table section:
//
//	NUL (name NUL)* NUL-padding
//
// padded to a multiple of 4 bytes.  The i-th name starts at the offset
// returned by StringTableSection.IndexOf, and names can't contain NUL.
func BuildStringTable(names []string) ([]byte, error) {
	table := []byte{0}
	for _, name := range names {
		data, err := nulTerminated(name)
		if err != nil {
			return nil, fmt.Errorf("invalid string table entry (%q): %w", name, err)
		}
		table = append(table, data...)
	}

	for len(table)%4 != 0 {
		table = append(table, 0)
	}

	return table, nil
}

// SplitStringTable splits string table content on NUL boundaries, dropping the
// leading empty entry.  Padding produces trailing empty entries.
func SplitStringTable(content []byte) []string {
	if len(content) == 0 {
		return nil
	}

	if content[len(content)-1] == 0 {
		content = content[:len(content)-1]
	}

	pieces := bytes.Split(content, []byte{0})

	result := make([]string, 0, len(pieces))
	for _, piece := range pieces[1:] {
		result = append(result, string(piece))
	}
	return result
}

type StringTableSection struct {
	BaseSection

	Content []byte
}

func NewStringTableSection(
	name string,
	header SectionHeaderEntry,
	buffer []byte,
) *StringTableSection {
	content := make([]byte, len(buffer))
	copy(content, buffer)

	header.SectionType = SectionTypeStringTable
	return &StringTableSection{
		BaseSection: newBaseSection(name, header),
		Content:     content,
	}
}

func (table *StringTableSection) RawContent() ([]byte, error) {
	return table.Content, nil
}

func (table *StringTableSection) encodeContent(layout) ([]byte, error) {
	return table.Content, nil
}

// Lookup returns the NUL terminated string starting at index.
func (table *StringTableSection) Lookup(index uint32) (string, error) {
	if index >= uint32(len(table.Content)) {
		return "", fmt.Errorf(
			"out of bound string table index (%d >= %d)",
			index,
			len(table.Content))
	}

	chunk := table.Content[index:]
	end := bytes.IndexByte(chunk, 0)
	if end == -1 {
		return "", fmt.Errorf("string at index %d not terminated", index)
	}

	if !utf8.Valid(chunk[:end]) {
		return "", fmt.Errorf("string at index %d is not valid utf-8", index)
	}

	return string(chunk[:end]), nil
}

// Get is the lenient version of Lookup.  Invalid references map to "".
func (table *StringTableSection) Get(index uint32) string {
	value, err := table.Lookup(index)
	if err != nil {
		return ""
	}
	return value
}

// IndexOf returns the index of the first entry equal to name.  Suffix sharing
// isn't considered.
func (table *StringTableSection) IndexOf(name string) (uint32, bool) {
	if name == "" {
		return 0, len(table.Content) > 0
	}

	offset := 1
	for _, entry := range SplitStringTable(table.Content) {
		if entry == name {
			return uint32(offset), true
		}
		offset += len(entry) + 1
	}

	return 0, false
}

func (table *StringTableSection) Entries() []string {
	return SplitStringTable(table.Content)
}

func (table *StringTableSection) NumEntries() int {
	if len(table.Content) == 0 {
		return 0
	}

	count := 0
	for _, b := range table.Content[1:] {
		if b == 0 {
			count += 1
		}
	}
	return count
}
