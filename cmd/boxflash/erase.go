package main

import (
	"flag"
)

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	prog, serial := programmerFlags(fs)
	var (
		addr int
		size int
		all  bool
	)
	fs.IntVar(&addr, "addr", 0, "start address (4KB aligned)")
	fs.IntVar(&size, "n", 0, "number of bytes to erase (4KB aligned)")
	fs.BoolVar(&all, "all", false, "erase the entire chip")
	fs.Parse(args)

	if !all && size == 0 {
		fatalUsage("either -n or -all is required")
	}

	p := openProgrammer(*prog, *serial)
	defer p.Close()

	if err := p.Flash.PowerUp(); err != nil {
		fatalf("flash power up failed: %v", err)
	}
	defer p.Flash.PowerDown()

	// ReadID configures the per-chip erase timeouts.
	if _, _, err := p.Flash.ReadID(); err != nil {
		fatalf("read flash ID failed: %v", err)
	}

	if all {
		if err := p.Flash.EraseChip(); err != nil {
			fatalf("erase chip failed: %v", err)
		}
		return
	}
	if err := p.Flash.Erase(addr, size); err != nil {
		fatalf("erase flash failed: %v", err)
	}
}
