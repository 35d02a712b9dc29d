package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/clubby789/elf-utilities/elf"
)

type ActionSuite struct{}

func TestActions(t *testing.T) {
	suite.RunTests(t, &ActionSuite{})
}

func writeInput(t *testing.T) string {
	file := elf.NewFile(
		elf.NewHeaderBuilder().
			Class(elf.Class32).
			FileType(elf.FileTypeRelocatable).
			Build())

	err := file.AddNamedSection(
		elf.NewRawSection(
			".text",
			elf.SectionHeaderEntry{SectionType: elf.SectionTypeProgramDefinedInfo},
			[]byte{0xc3}))
	expect.Nil(t, err)

	err = file.Condition()
	expect.Nil(t, err)

	path := filepath.Join(t.TempDir(), "input.o")
	err = file.WriteFile(path, 0644)
	expect.Nil(t, err)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	out := &bytes.Buffer{}
	app := newApp()
	app.Writer = out

	err := app.Run(context.Background(), append([]string{"elfedit"}, args...))
	return out.String(), err
}

func (ActionSuite) TestListSections(t *testing.T) {
	input := writeInput(t)

	out, err := run(t, "list-sections", input)
	expect.Nil(t, err)
	expect.Equal(t, ".text\n.shstrtab\n", out)
}

func (ActionSuite) TestMissingInput(t *testing.T) {
	_, err := run(t, "list-sections")
	expect.Error(t, err, "missing input elf file")
}

func (ActionSuite) TestReadSection(t *testing.T) {
	input := writeInput(t)

	_, err := run(t, "read-section", "--name", ".missing", input)
	expect.Error(t, err, "section .missing not found")
}

func (ActionSuite) TestAddSectionString(t *testing.T) {
	input := writeInput(t)
	output := input + ".out"

	out, err := run(
		t,
		"add-section-string",
		"--name", ".note.build",
		"--content", "release",
		"--output", output,
		input)
	expect.Nil(t, err)
	expect.Equal(t, "Section .note.build added in "+output+"\n", out)

	parsed, err := elf.ReadFile32(output)
	expect.Nil(t, err)
	expect.Equal(t, 4, parsed.SectionCount())

	out, err = run(t, "read-section", "--name", ".note.build", output)
	expect.Nil(t, err)
	expect.Equal(t, "Content of section .note.build:\nrelease\n", out)

	_, err = run(
		t,
		"add-section-string",
		"--name", ".note.build",
		"--content", "again",
		"--output", output,
		output)
	expect.Error(t, err, "already exists")
}

func (ActionSuite) TestAddSectionFromFile(t *testing.T) {
	input := writeInput(t)

	dataPath := filepath.Join(filepath.Dir(input), "data.bin")
	err := os.WriteFile(dataPath, []byte{1, 2, 3}, 0644)
	expect.Nil(t, err)

	_, err = run(
		t,
		"add-section",
		"--name", ".blob",
		"--file", dataPath,
		input)
	expect.Nil(t, err)

	parsed, err := elf.ReadFile(input + ".modified")
	expect.Nil(t, err)

	section, ok := parsed.GetSection(".blob")
	expect.True(t, ok)

	content, err := section.RawContent()
	expect.Nil(t, err)
	expect.Equal(t, []byte{1, 2, 3}, content)
}

func (ActionSuite) TestRewrite(t *testing.T) {
	input := writeInput(t)
	output := input + ".rewritten"

	_, err := run(t, "rewrite", "--output", output, input)
	expect.Nil(t, err)

	before, err := os.ReadFile(input)
	expect.Nil(t, err)

	rewritten, err := os.ReadFile(output)
	expect.Nil(t, err)
	expect.Equal(t, before, rewritten)
}
