package main

import (
	"flag"
	"fmt"
)

func probeCommand(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	prog, serial := programmerFlags(fs)
	fs.Parse(args)

	p := openProgrammer(*prog, *serial)
	defer p.Close()

	fmt.Printf("Programmer:      %s\n", p.Master)

	if err := p.Flash.PowerUp(); err != nil {
		fatalf("flash power up failed: %v", err)
	}
	defer p.Flash.PowerDown()

	flashID, name, err := p.Flash.ReadID()
	if err != nil {
		fatalf("read flash ID failed: %v", err)
	}
	if name == "" {
		name = "(unknown)"
	}
	fmt.Printf("JEDEC ID:        %X\n", flashID)
	fmt.Printf("Flash:           %s\n", name)

	sr, err := p.Flash.ReadStatusRegister()
	if err != nil {
		fatalf("read flash status register failed: %v", err)
	}
	fmt.Printf("Status register: %s\n", sr)
}
