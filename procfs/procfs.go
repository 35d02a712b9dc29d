package procfs

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/clubby789/elf-utilities/elf"
)

func ExecutablePath(pid int) string {
	return fmt.Sprintf("/proc/%d/exe", pid)
}

// ResolveExecutable returns the path the kernel reports for the process'
// executable, as it appears in the maps file.
func ResolveExecutable(pid int) (string, error) {
	path, err := os.Readlink(ExecutablePath(pid))
	if err != nil {
		return "", fmt.Errorf("failed to resolve process %d executable: %w", pid, err)
	}
	return strings.TrimSuffix(path, " (deleted)"), nil
}

// See elf.h for the full list of auxiliary vector entry types, system v abi
// amd64 supplement section 3.4.3 for description.
type AuxiliaryVectorEntryType uint64

const (
	// AT_NULL. last entry of the vector
	AT_EndOfVector = AuxiliaryVectorEntryType(0)

	// AT_IGNORE. entry with no meaning
	AT_Ignore = AuxiliaryVectorEntryType(1)

	AT_ExecFd        = AuxiliaryVectorEntryType(2) // AT_EXECFD
	AT_ProgramHeader = AuxiliaryVectorEntryType(3) // AT_PHDR

	AT_ProgramHeaderEntrySize  = AuxiliaryVectorEntryType(4) // AT_PHENT
	AT_NumProgramHeaderEntries = AuxiliaryVectorEntryType(5) // AT_PHNUM
	AT_PageSize                = AuxiliaryVectorEntryType(6) // AT_PAGESZ

	// AT_BASE. base address of the interpreter
	AT_BaseAddress = AuxiliaryVectorEntryType(7)

	AT_Flags = AuxiliaryVectorEntryType(8) // AT_FLAGS
	AT_Entry = AuxiliaryVectorEntryType(9) // AT_ENTRY
)

type AuxiliaryVector map[AuxiliaryVectorEntryType]uint64

// ParseAuxiliaryVector decodes (type, value) word pairs up to AT_NULL.  Words
// are 4 bytes for Class32 and 8 bytes for Class64.
func ParseAuxiliaryVector(
	content []byte,
	class elf.Class,
	order binary.ByteOrder,
) (
	AuxiliaryVector,
	error,
) {
	wordSize := 8
	switch class {
	case elf.Class32:
		wordSize = 4
	case elf.Class64:
	default:
		return nil, fmt.Errorf("unsupported elf class (%s)", class)
	}

	word := func(idx int) uint64 {
		if wordSize == 4 {
			return uint64(order.Uint32(content[idx:]))
		}
		return order.Uint64(content[idx:])
	}

	result := AuxiliaryVector{}
	for idx := 0; ; idx += 2 * wordSize {
		if idx+wordSize > len(content) {
			return nil, fmt.Errorf("auxiliary vector not terminated")
		}

		avet := AuxiliaryVectorEntryType(word(idx))
		if avet == AT_EndOfVector {
			return result, nil
		}

		if idx+2*wordSize > len(content) {
			return nil, fmt.Errorf("truncated auxiliary vector entry (%d)", avet)
		}

		if avet == AT_Ignore {
			continue
		}
		result[avet] = word(idx + wordSize)
	}
}

// GetAuxiliaryVector reads the process' auxiliary vector.  Access is governed
// by ptrace.
func GetAuxiliaryVector(
	pid int,
	class elf.Class,
	order binary.ByteOrder,
) (
	AuxiliaryVector,
	error,
) {
	content, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", pid))
	if err != nil {
		return nil, fmt.Errorf(
			"failed to read process %d's auxiliary vector: %w",
			pid,
			err)
	}

	result, err := ParseAuxiliaryVector(content, class, order)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to decode process %d's auxiliary vector: %w",
			pid,
			err)
	}
	return result, nil
}

// Mapping is one line of /proc/<pid>/maps.
type Mapping struct {
	LowAddress  uint64
	HighAddress uint64

	Permissions elf.ProgramFlags
	Private     bool // (copy on write)

	Offset uint64
	Inode  uint64

	Pathname string
}

func (mapping Mapping) String() string {
	return fmt.Sprintf(
		"%#x-%#x %s off=%#x %s",
		mapping.LowAddress,
		mapping.HighAddress,
		mapping.Permissions,
		mapping.Offset,
		mapping.Pathname)
}

func ParseMappings(content []byte) ([]Mapping, error) {
	result := []Mapping{}
	for lineNum, line := range strings.Split(string(content), "\n") {
		if line == "" {
			continue
		}

		mapping, err := parseMapping(line)
		if err != nil {
			return nil, fmt.Errorf("invalid mapping on line %d: %w", lineNum+1, err)
		}
		result = append(result, mapping)
	}

	return result, nil
}

func parseMapping(line string) (Mapping, error) {
	chunks := strings.Fields(line)
	if len(chunks) < 5 {
		return Mapping{}, fmt.Errorf("too few fields (%d)", len(chunks))
	}

	entry := Mapping{}

	low, high, ok := strings.Cut(chunks[0], "-")
	if !ok {
		return Mapping{}, fmt.Errorf("invalid address range (%s)", chunks[0])
	}

	var err error
	entry.LowAddress, err = strconv.ParseUint(low, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse low address: %w", err)
	}

	entry.HighAddress, err = strconv.ParseUint(high, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse high address: %w", err)
	}

	perms := chunks[1]
	if len(perms) != 4 {
		return Mapping{}, fmt.Errorf("invalid permissions (%s)", perms)
	}
	if perms[0] == 'r' {
		entry.Permissions |= elf.ProgramFlagReadableBit
	}
	if perms[1] == 'w' {
		entry.Permissions |= elf.ProgramFlagWritableBit
	}
	if perms[2] == 'x' {
		entry.Permissions |= elf.ProgramFlagExecutableBit
	}
	entry.Private = perms[3] == 'p'

	entry.Offset, err = strconv.ParseUint(chunks[2], 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse offset: %w", err)
	}

	entry.Inode, err = strconv.ParseUint(chunks[4], 10, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("failed to parse inode: %w", err)
	}

	if len(chunks) > 5 {
		entry.Pathname = strings.Join(chunks[5:], " ")
	}

	return entry, nil
}

func GetMappings(pid int) ([]Mapping, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return ParseMappings(content)
}

// LoadBias returns the difference between the runtime and link time address
// of the first loadable segment, located through the mapping of path that
// starts at the segment's page aligned file offset.
func LoadBias(
	mappings []Mapping,
	path string,
	segments []elf.ProgramHeaderEntry,
	pageSize uint64,
) (
	uint64,
	error,
) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return 0, fmt.Errorf("invalid page size (%d)", pageSize)
	}
	mask := ^(pageSize - 1)

	for _, segment := range segments {
		if segment.ProgramType != elf.ProgramLoadable {
			continue
		}

		offset := segment.ContentOffset & mask
		for _, mapping := range mappings {
			if mapping.Pathname == path && mapping.Offset == offset {
				return mapping.LowAddress - segment.VirtualAddress&mask, nil
			}
		}

		return 0, fmt.Errorf(
			"no mapping of %s at offset %#x",
			path,
			offset)
	}

	return 0, fmt.Errorf("no loadable segment")
}
