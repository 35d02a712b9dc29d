package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newOutputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "output",
		Usage: "Output elf file (defaults to <input>.modified)",
		Value: "",
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "elfedit",
		Usage: "Inspect and rewrite elf sections",
		Commands: []*cli.Command{
			{
				Name:      "list-sections",
				Usage:     "List all sections in the elf file",
				Action:    listSections,
				ArgsUsage: "<input_elf_file>",
			},
			{
				Name:  "read-section",
				Usage: "Print the content of a section",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Name of the section to read",
						Required: true,
					},
				},
				Action:    readSection,
				ArgsUsage: "<input_elf_file>",
			},
			{
				Name:  "add-section",
				Usage: "Add a section with content from a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Name of the section",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "File containing the section data",
						Required: true,
					},
					newOutputFlag(),
				},
				Action:    addSectionFromFile,
				ArgsUsage: "<input_elf_file>",
			},
			{
				Name:  "add-section-string",
				Usage: "Add a section with string content",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Name of the section",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "content",
						Usage:    "String content for the section",
						Required: true,
					},
					newOutputFlag(),
				},
				Action:    addSectionFromString,
				ArgsUsage: "<input_elf_file>",
			},
			{
				Name:      "rewrite",
				Usage:     "Re-layout the file with a regenerated section name table",
				Flags:     []cli.Flag{newOutputFlag()},
				Action:    rewrite,
				ArgsUsage: "<input_elf_file>",
			},
		},
	}
}

func main() {
	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
