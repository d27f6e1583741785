package main

import (
	"flag"
	"io"
	"os"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	prog, serial := programmerFlags(fs)
	var (
		filename  string
		bulkErase bool
	)
	fs.StringVar(&filename, "f", "", "input file")
	fs.BoolVar(&bulkErase, "e", false, "bulk erase entire flash before writing")
	fs.Parse(args)

	if filename == "" && !bulkErase {
		fatalUsage("input file is required")
	}

	var input io.ReadCloser
	var err error
	if filename != "" {
		input, err = os.Open(filename)
		if err != nil {
			fatalf("failed to open file: %v", err)
		}
		defer input.Close()
	}

	p := openProgrammer(*prog, *serial)
	defer p.Close()

	if err := p.Flash.PowerUp(); err != nil {
		fatalf("flash power up failed: %v", err)
	}
	defer p.Flash.PowerDown()

	if bulkErase {
		if err := p.Flash.EraseChip(); err != nil {
			fatalf("bulk erase flash failed: %v", err)
		}
	}

	if input != nil {
		if err := p.Flash.Write(input); err != nil {
			fatalf("write flash failed: %v", err)
		}
	}
}
