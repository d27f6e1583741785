// Command boxflash reads, writes, and erases the boot SPI NOR flash of a
// 96Boards Developerbox through the GPIO pins of its CP2102N debug UART
// bridge. It is a de-brick tool: slow, but needs no programmer hardware.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/asahiko/boxflash"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	boxflash <command> [arguments]

Commands:
	probe	 detect the programmer and the flash chip
	read	 read flash memory
	write	 write flash memory
	erase	 erase flash memory

Common arguments:
	-p	 programmer variant (%s)
	-serial	 only use a device whose USB serial number starts with this prefix
`, strings.Join(boxflash.Variants(), ", "))
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "probe":
		probeCommand(flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "write":
		writeCommand(flag.Args()[1:])
	case "erase":
		eraseCommand(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

// programmerFlags registers the arguments shared by every subcommand.
func programmerFlags(fs *flag.FlagSet) (name, serial *string) {
	name = fs.String("p", "developerbox", "programmer variant")
	serial = fs.String("serial", "", "USB serial number prefix")
	return
}

func openProgrammer(name, serial string) *boxflash.Programmer {
	p, err := boxflash.Open(name, boxflash.Params{Serial: serial})
	if err != nil {
		fatalf("%v", err)
	}
	return p
}
