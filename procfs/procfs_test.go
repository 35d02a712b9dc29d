package procfs

import (
	"encoding/binary"
	"os"
	"runtime"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/clubby789/elf-utilities/elf"
)

const mapsFixture = `55d0c6a00000-55d0c6a02000 r--p 00000000 fd:01 1835126                    /usr/bin/cat
55d0c6a02000-55d0c6a07000 r-xp 00002000 fd:01 1835126                    /usr/bin/cat
55d0c6a0b000-55d0c6a0c000 rw-p 0000a000 fd:01 1835126                    /usr/bin/cat
55d0c81f3000-55d0c8214000 rw-p 00000000 00:00 0                          [heap]
7ffd7a1e6000-7ffd7a207000 rw-p 00000000 00:00 0                          [stack]
7ffd7a3e1000-7ffd7a3e3000 r-xp 00000000 00:00 0
`

type ProcfsSuite struct{}

func TestProcfs(t *testing.T) {
	suite.RunTests(t, &ProcfsSuite{})
}

func (ProcfsSuite) TestParseMappings(t *testing.T) {
	mappings, err := ParseMappings([]byte(mapsFixture))
	expect.Nil(t, err)
	expect.Equal(t, 6, len(mappings))

	text := mappings[1]
	expect.Equal(t, 0x55d0c6a02000, text.LowAddress)
	expect.Equal(t, 0x55d0c6a07000, text.HighAddress)
	expect.Equal(
		t,
		elf.ProgramFlagReadableBit|elf.ProgramFlagExecutableBit,
		text.Permissions)
	expect.True(t, text.Private)
	expect.Equal(t, 0x2000, text.Offset)
	expect.Equal(t, 1835126, text.Inode)
	expect.Equal(t, "/usr/bin/cat", text.Pathname)
	expect.Equal(t, "r-x", text.Permissions.String())

	expect.Equal(t, "[heap]", mappings[3].Pathname)
	expect.Equal(t, "", mappings[5].Pathname)
}

func (ProcfsSuite) TestParseMappingsError(t *testing.T) {
	_, err := ParseMappings([]byte("55d0c6a00000 r--p 00000000 fd:01 1\n"))
	expect.Error(t, err, "invalid address range")

	_, err = ParseMappings([]byte("0-1 r--p zz fd:01 1\n"))
	expect.Error(t, err, "failed to parse offset")

	_, err = ParseMappings([]byte("0-1 r--p\n"))
	expect.Error(t, err, "line 1")
}

func (ProcfsSuite) TestParseAuxiliaryVector64(t *testing.T) {
	content := []byte{}
	for _, word := range []uint64{
		uint64(AT_PageSize), 4096,
		uint64(AT_Ignore), 1234,
		uint64(AT_Entry), 0x401000,
		uint64(AT_EndOfVector), 0,
	} {
		content = binary.LittleEndian.AppendUint64(content, word)
	}

	auxv, err := ParseAuxiliaryVector(content, elf.Class64, binary.LittleEndian)
	expect.Nil(t, err)
	expect.Equal(
		t,
		AuxiliaryVector{AT_PageSize: 4096, AT_Entry: 0x401000},
		auxv)
}

func (ProcfsSuite) TestParseAuxiliaryVector32(t *testing.T) {
	content := []byte{}
	for _, word := range []uint32{
		uint32(AT_Entry), 0x8048000,
		uint32(AT_EndOfVector), 0,
	} {
		content = binary.BigEndian.AppendUint32(content, word)
	}

	auxv, err := ParseAuxiliaryVector(content, elf.Class32, binary.BigEndian)
	expect.Nil(t, err)
	expect.Equal(t, AuxiliaryVector{AT_Entry: 0x8048000}, auxv)

	_, err = ParseAuxiliaryVector(content[:8], elf.Class32, binary.BigEndian)
	expect.Error(t, err, "not terminated")

	_, err = ParseAuxiliaryVector(content, elf.ClassNone, binary.BigEndian)
	expect.Error(t, err, "unsupported elf class")
}

func (ProcfsSuite) TestLoadBias(t *testing.T) {
	mappings, err := ParseMappings([]byte(mapsFixture))
	expect.Nil(t, err)

	segments := []elf.ProgramHeaderEntry{
		{ProgramType: elf.ProgramHeaderInfo, ContentOffset: 0x40},
		{
			ProgramType:    elf.ProgramLoadable,
			ContentOffset:  0,
			VirtualAddress: 0,
		},
		{
			ProgramType:    elf.ProgramLoadable,
			ContentOffset:  0x2000,
			VirtualAddress: 0x2000,
		},
	}

	bias, err := LoadBias(mappings, "/usr/bin/cat", segments, 4096)
	expect.Nil(t, err)
	expect.Equal(t, 0x55d0c6a00000, bias)

	_, err = LoadBias(mappings, "/usr/bin/dog", segments, 4096)
	expect.Error(t, err, "no mapping of /usr/bin/dog")

	_, err = LoadBias(mappings, "/usr/bin/cat", segments[:1], 4096)
	expect.Error(t, err, "no loadable segment")

	_, err = LoadBias(mappings, "/usr/bin/cat", segments, 1000)
	expect.Error(t, err, "invalid page size")
}

func (ProcfsSuite) TestSelf(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs requires linux")
	}

	pid := os.Getpid()

	path, err := ResolveExecutable(pid)
	expect.Nil(t, err)

	file, err := elf.ReadFile(ExecutablePath(pid))
	expect.Nil(t, err)

	order := binary.ByteOrder(binary.LittleEndian)
	if file.DataEncoding == elf.DataEncodingTwosComplementBigEndian {
		order = binary.BigEndian
	}

	auxv, err := GetAuxiliaryVector(pid, file.Class, order)
	expect.Nil(t, err)
	expect.Equal(t, uint64(os.Getpagesize()), auxv[AT_PageSize])

	mappings, err := GetMappings(pid)
	expect.Nil(t, err)

	bias, err := LoadBias(
		mappings,
		path,
		file.ProgramHeaders,
		uint64(os.Getpagesize()))
	expect.Nil(t, err)
	expect.Equal(t, file.EntryPointAddress+bias, auxv[AT_Entry])
}
