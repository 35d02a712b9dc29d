package elf

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

var (
	elf64HeaderFixture = []byte{
		0x7f, 0x45, 0x4c, 0x46, 0x02, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x3e, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x60, 0xe1, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x20, 0x1d, 0x57, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x38, 0x00, 0x0c, 0x00, 0x40, 0x00,
		0x2c, 0x00, 0x2b, 0x00,
	}

	elf32HeaderFixture = []byte{
		0x7f, 0x45, 0x4c, 0x46, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x90, 0x10, 0x00, 0x00, 0x34, 0x00, 0x00, 0x00, 0xe4, 0x37, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x34, 0x00, 0x20, 0x00, 0x0c, 0x00, 0x28, 0x00,
		0x1f, 0x00, 0x1e, 0x00,
	}
)

type HeaderSuite struct{}

func TestHeader(t *testing.T) {
	suite.RunTests(t, &HeaderSuite{})
}

func (HeaderSuite) TestMagic(t *testing.T) {
	expect.True(t, HasMagic([]byte{0x7f, 0x45, 0x4c, 0x46}))
	expect.False(t, HasMagic([]byte{0x7f, 0x45, 0x4b, 0x46}))
	expect.False(t, HasMagic([]byte{0x7f, 0x42, 0x43, 0x46}))
	expect.False(t, HasMagic([]byte{0x7f, 0x45}))
	expect.False(t, HasMagic(nil))

	_, err := ParseBytes([]byte{0x7f, 0x45, 0x4b, 0x46, 0x02, 0x01})
	expect.Error(t, err, "not an elf file")
	expect.Error(t, err, "<memory>")
	expect.True(t, errors.Is(err, ErrNotELF))

	_, err = ParseBytes(
		[]byte{0x7f, 0x45, 0x4b, 0x46},
		WithPath("/tmp/not-elf"))
	expect.Error(t, err, "/tmp/not-elf")
	expect.True(t, errors.Is(err, ErrNotELF))
}

func (HeaderSuite) TestTruncatedIdentifier(t *testing.T) {
	_, err := ParseBytes([]byte{0x7f, 0x45, 0x4c, 0x46, 0x02, 0x01})
	expect.True(t, errors.Is(err, ErrMalformedHeader))
	expect.False(t, errors.Is(err, ErrNotELF))
}

func (HeaderSuite) TestTruncatedHeader(t *testing.T) {
	_, err := ParseBytes(elf64HeaderFixture[:40])
	expect.True(t, errors.Is(err, ErrMalformedHeader))
	expect.Error(t, err, "short buffer")
}

func (HeaderSuite) TestUnsupportedClass(t *testing.T) {
	content := append([]byte{}, elf64HeaderFixture...)
	content[4] = 3

	_, err := ParseBytes(content)
	expect.True(t, errors.Is(err, ErrMalformedHeader))
	expect.Error(t, err, "unsupported elf class")
}

func (HeaderSuite) TestUnsupportedDataEncoding(t *testing.T) {
	content := append([]byte{}, elf64HeaderFixture...)
	content[5] = 0

	_, err := ParseBytes(content)
	expect.True(t, errors.Is(err, ErrMalformedHeader))
	expect.Error(t, err, "unsupported data encoding")
}

func (HeaderSuite) TestDecodeElf64Header(t *testing.T) {
	id, err := UnpackIdentifier(elf64HeaderFixture)
	expect.Nil(t, err)
	expect.Equal(t, Class64, id.Class)
	expect.Equal(t, DataEncodingTwosComplementLittleEndian, id.DataEncoding)
	expect.Equal(t, IdentifierVersion, id.IdentifierVersion)
	expect.Equal(t, OperatingSystemABIUnixSystemV, id.OperatingSystemABI)

	l, err := newLayout(id)
	expect.Nil(t, err)
	expect.Equal(t, Class64, l.Class())

	header, err := l.decodeHeader(elf64HeaderFixture)
	expect.Nil(t, err)
	expect.Equal(t, FileTypeSharedObject, header.FileType)
	expect.Equal(t, MachineArchitectureX86_64, header.MachineArchitecture)
	expect.Equal(t, FormatVersion, header.FormatVersion)
	expect.Equal(t, 0xe160, header.EntryPointAddress)
	expect.Equal(t, 0x40, header.ProgramHeaderOffset)
	expect.Equal(t, 0x571d20, header.SectionHeaderOffset)
	expect.Equal(t, 0, header.ArchitectureFlags)
	expect.Equal(t, Elf64HeaderSize, header.ElfHeaderSize)
	expect.Equal(t, Elf64ProgramHeaderEntrySize, header.ProgramHeaderEntrySize)
	expect.Equal(t, 12, header.NumProgramHeaderEntries)
	expect.Equal(t, Elf64SectionHeaderEntrySize, header.SectionHeaderEntrySize)
	expect.Equal(t, 44, header.NumSectionHeaderEntries)
	expect.Equal(t, 0x2b, header.SectionStringTableIndex)
	expect.True(t, header.ProgramHeaderTableExists())

	encoded, err := l.encodeHeader(header)
	expect.Nil(t, err)
	expect.Equal(t, elf64HeaderFixture, encoded)
}

func (HeaderSuite) TestDecodeElf32Header(t *testing.T) {
	id, err := UnpackIdentifier(elf32HeaderFixture)
	expect.Nil(t, err)
	expect.Equal(t, Class32, id.Class)

	l, err := newLayout(id)
	expect.Nil(t, err)
	expect.Equal(t, Class32, l.Class())

	header, err := l.decodeHeader(elf32HeaderFixture)
	expect.Nil(t, err)
	expect.Equal(t, FileTypeSharedObject, header.FileType)
	expect.Equal(t, MachineArchitectureX86, header.MachineArchitecture)
	expect.Equal(t, 0x1090, header.EntryPointAddress)
	expect.Equal(t, 0x34, header.ProgramHeaderOffset)
	expect.Equal(t, 0x37e4, header.SectionHeaderOffset)
	expect.Equal(t, Elf32HeaderSize, header.ElfHeaderSize)
	expect.Equal(t, 32, header.ProgramHeaderEntrySize)
	expect.Equal(t, 12, header.NumProgramHeaderEntries)
	expect.Equal(t, 40, header.SectionHeaderEntrySize)
	expect.Equal(t, 31, header.NumSectionHeaderEntries)
	expect.Equal(t, 30, header.SectionStringTableIndex)

	encoded, err := l.encodeHeader(header)
	expect.Nil(t, err)
	expect.Equal(t, elf32HeaderFixture, encoded)
}

func (HeaderSuite) TestHeaderOnlyFile(t *testing.T) {
	// The fixture's section header table lies past the end of the buffer.
	_, err := ParseBytes(elf64HeaderFixture)
	expect.True(t, errors.Is(err, ErrMalformedSectionHeader))
	expect.False(t, errors.Is(err, ErrMalformedHeader))
}

func (HeaderSuite) TestBigEndianLayout(t *testing.T) {
	header := NewHeaderBuilder().
		Data(DataEncodingTwosComplementBigEndian).
		FileType(FileTypeExecutable).
		Machine(MachineArchitectureAArch64).
		Entry(0x400000).
		Build()

	l, err := newLayout(header.Identifier)
	expect.Nil(t, err)

	encoded, err := l.encodeHeader(header)
	expect.Nil(t, err)
	expect.Equal(t, Elf64HeaderSize, len(encoded))
	expect.Equal(t, []byte{0x00, 0x02}, encoded[16:18])

	decoded, err := l.decodeHeader(encoded)
	expect.Nil(t, err)
	expect.Equal(t, header, decoded)
}

func (HeaderSuite) TestIdentifierPack(t *testing.T) {
	id := Identifier{
		Class:              Class32,
		DataEncoding:       DataEncodingTwosComplementBigEndian,
		IdentifierVersion:  IdentifierVersion,
		OperatingSystemABI: OperatingSystemABILinux,
	}

	packed := id.Pack()
	expect.Equal(
		t,
		[]byte{0x7f, 'E', 'L', 'F', 1, 2, 1, 3, 0, 0, 0, 0, 0, 0, 0, 0},
		packed[:])

	// Setting a component twice overwrites it.
	id.Class = Class64
	id.Class = Class32
	expect.Equal(t, packed, id.Pack())

	unpacked, err := UnpackIdentifier(packed[:])
	expect.Nil(t, err)
	expect.Equal(t, id, unpacked)
}

func (HeaderSuite) TestIdentifierString(t *testing.T) {
	id := Identifier{
		Class:              Class32,
		DataEncoding:       DataEncodingTwosComplementBigEndian,
		IdentifierVersion:  IdentifierVersion,
		OperatingSystemABI: OperatingSystemABILinux,
		ABIVersion:         2,
	}

	expected := "{Class32 TwosComplementBigEndian version=1 Linux abi=2}"
	expect.Equal(t, expected, id.String())
	expect.Equal(t, expected, fmt.Sprintf("%v", id))

	header := NewHeaderBuilder().Build()
	expect.Equal(
		t,
		"{Class64 TwosComplementLittleEndian version=1 UnixSystemV abi=0}",
		header.Identifier.String())
}

func (HeaderSuite) TestHeaderBuilder(t *testing.T) {
	header := NewHeaderBuilder().
		Class(Class32).
		OSABI(OperatingSystemABIFreeBSD).
		FileType(FileTypeRelocatable).
		Machine(MachineArchitectureARM).
		Flags(0x5000000).
		Build()

	expect.Equal(t, Class32, header.Class)
	expect.Equal(t, DataEncodingTwosComplementLittleEndian, header.DataEncoding)
	expect.Equal(t, IdentifierVersion, header.IdentifierVersion)
	expect.Equal(t, OperatingSystemABIFreeBSD, header.OperatingSystemABI)
	expect.Equal(t, FileTypeRelocatable, header.FileType)
	expect.Equal(t, MachineArchitectureARM, header.MachineArchitecture)
	expect.Equal(t, FormatVersion, header.FormatVersion)
	expect.Equal(t, 0x5000000, header.ArchitectureFlags)
	expect.False(t, header.ProgramHeaderTableExists())
}

func (HeaderSuite) TestEnumStrings(t *testing.T) {
	expect.Equal(t, "SharedObject", FileTypeSharedObject.String())
	expect.Equal(t, "x86-64", MachineArchitectureX86_64.String())
	expect.Equal(t, "Needed", DynamicTagNeeded.String())
	expect.Equal(
		t,
		"DynamicTagUnknown(0x70000001)",
		DynamicTag(0x70000001).String())

	flags := ProgramFlagReadableBit | ProgramFlagExecutableBit
	expect.Equal(t, "r-x", flags.String())

	sectionFlags := SectionOccupiesMemory | SectionContainsTLSData
	expect.Equal(t, "-a-------t-", sectionFlags.String())
}
