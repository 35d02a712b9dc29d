package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/clubby789/elf-utilities/elf"
)

func inputPath(c *cli.Command) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("missing input elf file")
	}
	return c.Args().First(), nil
}

func outputPath(c *cli.Command, input string) string {
	output := c.String("output")
	if output == "" {
		output = input + ".modified"
	}
	return output
}

// writeModel regenerates the section name table, recomputes the layout and
// writes the result, preserving the input's permission bits.
func writeModel(file *elf.File, input string, output string) error {
	perm := os.FileMode(0755)
	info, err := os.Stat(input)
	if err == nil {
		perm = info.Mode().Perm()
	}

	err = file.RebuildSectionNameTable()
	if err != nil {
		return err
	}

	err = file.Condition()
	if err != nil {
		return err
	}

	return file.WriteFile(output, perm)
}

func listSections(ctx context.Context, c *cli.Command) error {
	input, err := inputPath(c)
	if err != nil {
		return err
	}

	file, err := elf.ReadFile(input)
	if err != nil {
		return err
	}

	for _, section := range file.Sections[1:] {
		fmt.Fprintln(c.Root().Writer, section.Name())
	}
	return nil
}

func readSection(ctx context.Context, c *cli.Command) error {
	input, err := inputPath(c)
	if err != nil {
		return err
	}
	name := c.String("name")

	file, err := elf.ReadFile(input)
	if err != nil {
		return err
	}

	section, ok := file.GetSection(name)
	if !ok {
		return fmt.Errorf("section %s not found", name)
	}

	content, err := section.RawContent()
	if err != nil {
		return fmt.Errorf("cannot read section %s: %w", name, err)
	}

	fmt.Fprintf(c.Root().Writer, "Content of section %s:\n%s\n", name, content)
	return nil
}

func addSection(c *cli.Command, name string, content []byte) error {
	input, err := inputPath(c)
	if err != nil {
		return err
	}
	output := outputPath(c, input)

	file, err := elf.ReadFile(input)
	if err != nil {
		return err
	}

	_, ok := file.GetSection(name)
	if ok {
		return fmt.Errorf("section %s already exists", name)
	}

	err = file.AddNamedSection(
		elf.NewRawSection(
			name,
			elf.SectionHeaderEntry{
				SectionType:      elf.SectionTypeProgramDefinedInfo,
				AddressAlignment: 1,
			},
			content))
	if err != nil {
		return err
	}

	err = writeModel(file, input, output)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "Section %s added in %s\n", name, output)
	return nil
}

func addSectionFromFile(ctx context.Context, c *cli.Command) error {
	content, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("error reading section data file: %w", err)
	}

	return addSection(c, c.String("name"), content)
}

func addSectionFromString(ctx context.Context, c *cli.Command) error {
	return addSection(c, c.String("name"), []byte(c.String("content")))
}

func rewrite(ctx context.Context, c *cli.Command) error {
	input, err := inputPath(c)
	if err != nil {
		return err
	}
	output := outputPath(c, input)

	file, err := elf.ReadFile(input)
	if err != nil {
		return err
	}

	err = writeModel(file, input, output)
	if err != nil {
		return err
	}

	fmt.Fprintf(
		c.Root().Writer,
		"Rewrote %s to %s (%d sections)\n",
		input,
		output,
		file.SectionCount())
	return nil
}
