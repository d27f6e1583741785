package boxflash

import (
	"sort"

	"periph.io/x/conn/v3/gpio"
)

// Master is the contract between the bit-banged SPI bus and the hardware
// that owns the pins. One implementing type exists per bridge chip variant,
// each mapping the logical SPI signals onto its own pin layout.
//
// Every call blocks until the underlying transfer completes. Callers must
// issue calls one at a time, in program order; the hardware has no notion
// of pipelined requests. Pin-level transport failures are logged by the
// implementation and degrade (reads report low) rather than propagate.
type Master interface {
	// String returns the variant tag, e.g. "developerbox".
	String() string

	SetCS(gpio.Level)
	SetSCK(gpio.Level)
	SetMOSI(gpio.Level)
	GetMISO() gpio.Level
	// SetSCKAndMOSI changes the clock and data-out pins together when the
	// hardware supports it, saving one transaction per bit.
	SetSCKAndMOSI(sck, mosi gpio.Level)

	// Close tears the variant down. Call exactly once.
	Close() error
}

// Params carries the operator-supplied options shared by every variant.
type Params struct {
	// Serial restricts the device search to bridges whose USB serial
	// number begins with this prefix. Empty matches any device.
	Serial string
}

// masters is the table of variant constructors.
var masters = map[string]func(Params) (Master, error){
	"developerbox": openDeveloperbox,
	"ft232h":       openFT232H,
}

// Variants lists the supported bit-bang master variants.
func Variants() []string {
	names := make([]string, 0, len(masters))
	for name := range masters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
