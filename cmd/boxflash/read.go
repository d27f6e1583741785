package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	prog, serial := programmerFlags(fs)
	var (
		addr       int
		nread      int
		idOnly     bool
		statusOnly bool
		outFile    string
	)
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.BoolVar(&idOnly, "id", false, "just print flash ID")
	fs.BoolVar(&statusOnly, "s", false, "just print flash status register")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	p := openProgrammer(*prog, *serial)
	defer p.Close()

	if err := p.Flash.PowerUp(); err != nil {
		fatalf("flash power up failed: %v", err)
	}
	defer p.Flash.PowerDown()

	if statusOnly {
		sr, err := p.Flash.ReadStatusRegister()
		if err != nil {
			fatalf("read flash status register failed: %v", err)
		}
		fmt.Println(sr)
		return
	}

	flashID, name, err := p.Flash.ReadID()
	if err != nil {
		fatalf("read flash ID failed: %v", err)
	}
	if idOnly {
		fmt.Printf("%X\t%s\n", flashID, name)
		return
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "unknown flash ID (%X)\n", flashID)
	}

	data, err := p.Flash.Read(addr, nread)
	if err != nil {
		fatalf("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fatalf("write file failed: %v", err)
	}
}
