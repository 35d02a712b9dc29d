package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/clubby789/elf-utilities/elf"
	"github.com/clubby789/elf-utilities/procfs"
	"github.com/clubby789/elf-utilities/report"
)

type session struct {
	path string
	file *elf.File
	out  io.Writer

	// Non-zero when inspecting a running process' executable.
	pid int
}

type command struct {
	name  string
	usage string
	run   func(*session, []string) error
}

var commands []command

func init() {
	commands = []command{
		{
			name:  "header",
			usage: "print the elf header",
			run:   printHeader,
		},
		{
			name:  "sections",
			usage: "list sections",
			run:   printSections,
		},
		{
			name:  "segments",
			usage: "list program headers",
			run:   printSegments,
		},
		{
			name:  "symbols",
			usage: "list symbols, or those matching <name>",
			run:   printSymbols,
		},
		{
			name:  "lookup",
			usage: "find the symbol spanning <address>",
			run:   lookupAddress,
		},
		{
			name:  "dynamic",
			usage: "list live dynamic entries",
			run:   printDynamic,
		},
		{
			name:  "relocations",
			usage: "list relocations",
			run:   printRelocations,
		},
		{
			name:  "maps",
			usage: "show where the process mapped the loadable segments",
			run:   printMaps,
		},
		{
			name:  "yaml",
			usage: "dump the file as yaml",
			run:   printYAML,
		},
		{
			name:  "add",
			usage: "add <name> <content file> as a new section",
			run:   addSection,
		},
		{
			name:  "write",
			usage: "write the file to <path>",
			run:   writeFile,
		},
		{
			name:  "help",
			usage: "list commands",
			run:   printHelp,
		},
	}
}

// findCommand returns the command uniquely identified by prefix.  An exact
// name always wins over other prefix matches.
func findCommand(prefix string) (command, error) {
	matches := []command{}
	for _, cmd := range commands {
		if cmd.name == prefix {
			return cmd, nil
		}
		if strings.HasPrefix(cmd.name, prefix) {
			matches = append(matches, cmd)
		}
	}

	switch len(matches) {
	case 0:
		return command{}, fmt.Errorf("invalid command: %s", prefix)
	case 1:
		return matches[0], nil
	default:
		names := []string{}
		for _, cmd := range matches {
			names = append(names, cmd.name)
		}
		return command{}, fmt.Errorf(
			"ambiguous command: %s (%s)",
			prefix,
			strings.Join(names, ", "))
	}
}

func (s *session) execute(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	cmd, err := findCommand(args[0])
	if err != nil {
		return err
	}

	return cmd.run(s, args[1:])
}

func printHeader(s *session, args []string) error {
	report.WriteHeader(s.out, s.file)
	return nil
}

func printSections(s *session, args []string) error {
	report.WriteSections(s.out, s.file)
	return nil
}

func printSegments(s *session, args []string) error {
	report.WriteSegments(s.out, s.file)
	return nil
}

func printSymbols(s *session, args []string) error {
	if len(args) == 0 {
		report.WriteSymbols(s.out, s.file)
		return nil
	}

	table, ok := s.file.SymbolTable()
	if !ok {
		return fmt.Errorf("no %s section", elf.SymbolTableName)
	}

	for _, name := range args {
		symbols := table.SymbolsByName(name)
		if len(symbols) == 0 {
			fmt.Fprintf(s.out, "%s: not found\n", name)
			continue
		}

		for _, symbol := range symbols {
			fmt.Fprintf(
				s.out,
				"%s: %#x size=%d %s %s\n",
				symbol.PrettyName(),
				symbol.Value,
				symbol.Size,
				symbol.Type(),
				symbol.Binding())
		}
	}
	return nil
}

func lookupAddress(s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lookup <address>")
	}

	address, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address (%s): %w", args[0], err)
	}

	table, ok := s.file.SymbolTable()
	if !ok {
		return fmt.Errorf("no %s section", elf.SymbolTableName)
	}

	symbol := table.SymbolSpans(elf.FileAddress(address))
	if symbol == nil {
		fmt.Fprintf(s.out, "%#x: no symbol\n", address)
		return nil
	}

	fmt.Fprintf(
		s.out,
		"%#x: %s+%#x\n",
		address,
		symbol.PrettyName(),
		address-symbol.Value)
	return nil
}

func printDynamic(s *session, args []string) error {
	report.WriteDynamic(s.out, s.file)
	return nil
}

func printRelocations(s *session, args []string) error {
	report.WriteRelocations(s.out, s.file)
	return nil
}

func printMaps(s *session, args []string) error {
	if s.pid == 0 {
		return fmt.Errorf("no process attached (start with -p <pid>)")
	}

	path, err := procfs.ResolveExecutable(s.pid)
	if err != nil {
		return err
	}

	mappings, err := procfs.GetMappings(s.pid)
	if err != nil {
		return err
	}

	bias, err := procfs.LoadBias(
		mappings,
		path,
		s.file.ProgramHeaders,
		uint64(os.Getpagesize()))
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "%s loaded at bias %#x\n", path, bias)
	for idx, segment := range s.file.ProgramHeaders {
		if segment.ProgramType != elf.ProgramLoadable {
			continue
		}

		fmt.Fprintf(
			s.out,
			"  [%d] %s %#x-%#x\n",
			idx,
			segment.ProgramFlags,
			segment.VirtualAddress+bias,
			segment.VirtualAddress+segment.MemoryImageSize+bias)
	}

	for _, mapping := range mappings {
		if mapping.Pathname == path {
			fmt.Fprintf(s.out, "  %v\n", mapping)
		}
	}
	return nil
}

func printYAML(s *session, args []string) error {
	return report.WriteYAML(s.out, s.path, s.file)
}

func addSection(s *session, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: add <name> <content file>")
	}

	content, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read section content: %w", err)
	}

	err = s.file.AddNamedSection(
		elf.NewRawSection(
			args[0],
			elf.SectionHeaderEntry{
				SectionType:      elf.SectionTypeProgramDefinedInfo,
				AddressAlignment: 1,
			},
			content))
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "added %s (%d bytes)\n", args[0], len(content))
	return nil
}

func writeFile(s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: write <path>")
	}

	// Parsed name indices don't follow the name table's split order until
	// the table is regenerated.
	err := s.file.RebuildSectionNameTable()
	if err != nil {
		return err
	}

	err = s.file.Condition()
	if err != nil {
		return err
	}

	err = s.file.WriteFile(args[0], 0755)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "wrote %s\n", args[0])
	return nil
}

func printHelp(s *session, args []string) error {
	for _, cmd := range commands {
		fmt.Fprintf(s.out, "  %-12s %s\n", cmd.name, cmd.usage)
	}
	return nil
}
