package elf

import (
	"fmt"
)

type FileAddress uint64

// The bottom 4 bits of st_info
type SymbolType byte

func SymbolInfoToType(info byte) SymbolType {
	return SymbolType(info & 0xf)
}

const (
	SymbolTypeNone                     = SymbolType(0)  // STT_NOTYPE
	SymbolTypeObject                   = SymbolType(1)  // STT_OBJECT
	SymbolTypeFunction                 = SymbolType(2)  // STT_FUNC
	SymbolTypeSection                  = SymbolType(3)  // STT_SECTION
	SymbolTypeSourceFile               = SymbolType(4)  // STT_FILE
	SymbolTypeUninitializedCommonBlock = SymbolType(5)  // STT_COMMON
	SymbolTypeTLSObject                = SymbolType(6)  // STT_TLS
	SymbolTypeIndirectFunction         = SymbolType(10) // STT_GNU_IFUNC
)

func (st SymbolType) String() string {
	switch st {
	case SymbolTypeNone:
		return "NoType"
	case SymbolTypeObject:
		return "Object"
	case SymbolTypeFunction:
		return "Function"
	case SymbolTypeSection:
		return "Section"
	case SymbolTypeSourceFile:
		return "SourceFile"
	case SymbolTypeUninitializedCommonBlock:
		return "UninitializedCommonBlock"
	case SymbolTypeTLSObject:
		return "TLSObject"
	case SymbolTypeIndirectFunction:
		return "IndirectFunction"
	default:
		return fmt.Sprintf("SymbolTypeUnknown(%d)", st)
	}
}

// The top 4 bits of st_info
type SymbolBinding byte

func SymbolInfoToBinding(info byte) SymbolBinding {
	return SymbolBinding(info >> 4)
}

const (
	SymbolBindingLocal  = SymbolBinding(0)  // STB_LOCAL
	SymbolBindingGlobal = SymbolBinding(1)  // STB_GLOBAL
	SymbolBindingWeak   = SymbolBinding(2)  // STB_WEAK
	SymbolBindingUnique = SymbolBinding(10) // STB_GNU_UNIQUE
)

func (sb SymbolBinding) String() string {
	switch sb {
	case SymbolBindingLocal:
		return "Local"
	case SymbolBindingGlobal:
		return "Global"
	case SymbolBindingWeak:
		return "Weak"
	case SymbolBindingUnique:
		return "Unique"
	default:
		return fmt.Sprintf("SymbolBindingUnknown(%d)", sb)
	}
}

// SymbolInfo packs binding and type into st_info.
func SymbolInfo(binding SymbolBinding, st SymbolType) byte {
	return byte(binding)<<4 | byte(st)&0xf
}

type SymbolVisibility byte

const (
	SymbolVisibilityDefault   = SymbolVisibility(0) // STV_DEFAULT
	SymbolVisibilityInternal  = SymbolVisibility(1) // STV_INTERNAL
	SymbolVisibilityHidden    = SymbolVisibility(2) // STV_HIDDEN
	SymbolVisibilityProtected = SymbolVisibility(3) // STV_PROTECTED
)

func (vis SymbolVisibility) String() string {
	switch vis {
	case SymbolVisibilityDefault:
		return "Default"
	case SymbolVisibilityInternal:
		return "Internal"
	case SymbolVisibilityHidden:
		return "Hidden"
	case SymbolVisibilityProtected:
		return "Protected"
	default:
		return fmt.Sprintf("SymbolVisibilityUnknown(%d)", vis)
	}
}

// Width independent symbol table entry.
type SymbolEntry struct {
	NameIndex        uint32 // st_name
	Info             byte   // st_info.  (4 bits st_bind, 4 bits st_type)
	SymbolVisibility        // st_other
	SectionIndex            // st_shndx
	Value            uint64 // st_value
	Size             uint64 // st_size
}

type Symbol struct {
	SymbolEntry

	// Name is empty until the parser resolves it from the symbol table's
	// linked string table, and stays empty when NameIndex is zero.
	Name          string
	DemangledName string // human readable c++ / rust name
}

func (symbol Symbol) HasName() bool {
	return symbol.NameIndex != 0
}

func (symbol Symbol) PrettyName() string {
	if symbol.DemangledName != "" {
		return symbol.DemangledName
	}

	return symbol.Name
}

func (symbol Symbol) Type() SymbolType {
	return SymbolInfoToType(symbol.Info)
}

func (symbol Symbol) Binding() SymbolBinding {
	return SymbolInfoToBinding(symbol.Info)
}

func (symbol Symbol) Visibility() SymbolVisibility {
	return symbol.SymbolVisibility & 0x3
}

func (symbol Symbol) AddressRange() (FileAddress, FileAddress, bool) {
	if symbol.Value == 0 ||
		symbol.NameIndex == 0 ||
		symbol.Type() == SymbolTypeTLSObject {

		return 0, 0, false
	}

	start := FileAddress(symbol.Value)
	end := FileAddress(symbol.Value + symbol.Size)
	return start, end, true
}

type SymbolTableSection struct {
	BaseSection

	Symbols []*Symbol
}

func NewSymbolTableSection(
	name string,
	header SectionHeaderEntry,
	symbols []*Symbol,
) *SymbolTableSection {
	if header.SectionType != SectionTypeDynamicSymbolTable {
		header.SectionType = SectionTypeSymbolTable
	}

	return &SymbolTableSection{
		BaseSection: newBaseSection(name, header),
		Symbols:     symbols,
	}
}

func (table *SymbolTableSection) encodeContent(l layout) ([]byte, error) {
	result := make([]byte, 0, len(table.Symbols)*l.SymbolEntrySize())
	for idx, symbol := range table.Symbols {
		encoded, err := l.encodeSymbol(symbol.SymbolEntry)
		if err != nil {
			return nil, fmt.Errorf("failed to encode symbol %d: %w", idx, err)
		}
		result = append(result, encoded...)
	}
	return result, nil
}

func (table *SymbolTableSection) SymbolsByName(name string) []*Symbol {
	result := []*Symbol{}
	for _, symbol := range table.Symbols {
		if symbol.Name == name || symbol.DemangledName == name {
			result = append(result, symbol)
		}
	}
	return result
}

func (table *SymbolTableSection) SymbolAt(address FileAddress) *Symbol {
	for _, symbol := range table.Symbols {
		low, _, ok := symbol.AddressRange()
		if ok && low == address {
			return symbol
		}
	}

	return nil
}

func (table *SymbolTableSection) SymbolSpans(address FileAddress) *Symbol {
	for _, symbol := range table.Symbols {
		low, high, ok := symbol.AddressRange()
		if ok && low <= address && address < high {
			return symbol
		}
	}

	return nil
}
