package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/urfave/cli/v3"

	"github.com/clubby789/elf-utilities/elf"
	"github.com/clubby789/elf-utilities/report"
)

func newLogger(verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	allowed := level.AllowInfo()
	if verbose {
		allowed = level.AllowDebug()
	}
	return level.NewFilter(logger, allowed)
}

func printElf(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return fmt.Errorf("missing input elf file")
	}
	path := c.Args().First()

	logger := newLogger(c.Bool("verbose"))

	file, err := elf.ReadFile(
		path,
		elf.WithLogger(logger),
		elf.WithConcurrency(int(c.Int("jobs"))))
	if err != nil {
		return err
	}

	switch format := c.String("format"); format {
	case "text":
		report.WriteText(os.Stdout, file)
		return nil
	case "yaml":
		return report.WriteYAML(os.Stdout, path, file)
	default:
		return fmt.Errorf("unknown output format (%s)", format)
	}
}

func main() {
	app := &cli.Command{
		Name:      "print-elf",
		Usage:     "Dump the headers and tables of an elf file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (text or yaml)",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log parse stages to stderr",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Usage: "Number of goroutines decoding sections (0 uses GOMAXPROCS)",
				Value: 0,
			},
		},
		Action: printElf,
	}

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
