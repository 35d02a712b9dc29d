package elf

import (
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

type StringTableSuite struct{}

func TestStringTable(t *testing.T) {
	suite.RunTests(t, &StringTableSuite{})
}

func (StringTableSuite) TestGet(t *testing.T) {
	table := NewStringTableSection(
		"",
		SectionHeaderEntry{},
		[]byte("\x00Milkshake\x00shake\x00no\x00"))

	expect.Equal(t, "Milkshake", table.Get(1))
	expect.Equal(t, "shake", table.Get(5))
	expect.Equal(t, "", table.Get(10))
	expect.Equal(t, "shake", table.Get(11))
	expect.Equal(t, "no", table.Get(17))
	expect.Equal(t, "o", table.Get(18))
	expect.Equal(t, "", table.Get(19))
	expect.Equal(t, "", table.Get(20))
}

func (StringTableSuite) TestLookup(t *testing.T) {
	table := NewStringTableSection(
		"",
		SectionHeaderEntry{},
		[]byte("\x00main\x00bad\xff\x00tail"))

	name, err := table.Lookup(1)
	expect.Nil(t, err)
	expect.Equal(t, "main", name)

	name, err = table.Lookup(0)
	expect.Nil(t, err)
	expect.Equal(t, "", name)

	_, err = table.Lookup(6)
	expect.Error(t, err, "not valid utf-8")

	_, err = table.Lookup(11)
	expect.Error(t, err, "not terminated")

	_, err = table.Lookup(15)
	expect.Error(t, err, "out of bound string table index")
}

func (StringTableSuite) TestBuildAndSplit(t *testing.T) {
	for _, names := range [][]string{
		{},
		{"a"},
		{"abc"},
		{".text", ".data", ".bss", ".shstrtab"},
		{"", "x", ""},
		{".symtab", ".strtab", ".rela.text"},
	} {
		content, err := BuildStringTable(names)
		expect.Nil(t, err)

		expect.True(t, len(content) > 0)
		expect.Equal(t, 0, content[0])
		expect.Equal(t, 0, len(content)%4)

		pieces := SplitStringTable(content)
		expect.True(t, len(pieces) >= len(names))
		expect.Equal(t, names, pieces[:len(names)])
		for _, padding := range pieces[len(names):] {
			expect.Equal(t, "", padding)
		}

		table := NewStringTableSection("", SectionHeaderEntry{}, content)
		offset := uint32(1)
		for _, name := range names {
			expect.Equal(t, name, table.Get(offset))
			offset += uint32(len(name)) + 1
		}
	}
}

func (StringTableSuite) TestBuildLayout(t *testing.T) {
	content, err := BuildStringTable([]string{".text", ".shstrtab"})
	expect.Nil(t, err)
	expect.Equal(t, []byte("\x00.text\x00.shstrtab\x00\x00\x00\x00"), content)

	// Already aligned tables aren't padded further.
	content, err = BuildStringTable([]string{"ab"})
	expect.Nil(t, err)
	expect.Equal(t, []byte("\x00ab\x00"), content)
}

func (StringTableSuite) TestBuildRejectsNul(t *testing.T) {
	_, err := BuildStringTable([]string{"ok", "bad\x00name"})
	expect.Error(t, err, "invalid string table entry")
}

func (StringTableSuite) TestIndexOf(t *testing.T) {
	content, err := BuildStringTable([]string{".text", ".data", ".shstrtab"})
	expect.Nil(t, err)

	table := NewStringTableSection(".shstrtab", SectionHeaderEntry{}, content)

	idx, ok := table.IndexOf(".text")
	expect.True(t, ok)
	expect.Equal(t, 1, idx)

	idx, ok = table.IndexOf(".data")
	expect.True(t, ok)
	expect.Equal(t, 7, idx)

	idx, ok = table.IndexOf(".shstrtab")
	expect.True(t, ok)
	expect.Equal(t, 13, idx)

	_, ok = table.IndexOf(".bss")
	expect.False(t, ok)

	// One NUL of padding follows the last name.
	expect.Equal(t, 4, table.NumEntries())
	expect.Equal(t, SectionTypeStringTable, table.SectionType)
}
