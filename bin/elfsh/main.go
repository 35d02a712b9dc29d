package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/clubby789/elf-utilities/elf"
	"github.com/clubby789/elf-utilities/procfs"
)

func main() {
	pid := 0
	flag.IntVar(&pid, "p", 0, "inspect the executable of an existing process")

	flag.Parse()
	args := flag.Args()

	path := ""
	if pid != 0 {
		if len(args) != 0 {
			fmt.Println("USAGE: elfsh [-p <pid> | <file>]")
			os.Exit(1)
		}
		path = procfs.ExecutablePath(pid)
	} else if len(args) == 1 {
		path = args[0]
	} else {
		fmt.Println("USAGE: elfsh [-p <pid> | <file>]")
		os.Exit(1)
	}

	file, err := elf.ReadFile(path, elf.WithConcurrency(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	s := &session{
		path: path,
		file: file,
		out:  os.Stdout,
		pid:  pid,
	}

	fmt.Printf("loaded %s (%d sections)\n", path, file.SectionCount())

	rl, err := readline.New("elfsh > ")
	if err != nil {
		panic(err)
	}
	defer rl.Close()

	lastLine := ""
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				break
			}
			panic(err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = lastLine
		}
		lastLine = line

		if line == "" {
			continue
		}

		err = s.execute(line)
		if err != nil {
			fmt.Println(err)
		}
	}
}
