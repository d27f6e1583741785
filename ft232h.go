package boxflash

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// FT232H drives a flash chip wired to the D-bus pins of an FTDI FT232H in
// plain GPIO mode:
//
//	ADBUS0 | SCK
//	ADBUS1 | MOSI
//	ADBUS2 | MISO
//	ADBUS3 | CS
//
// Unlike the CP2102N it cannot gang two pin writes into one USB
// transaction, so SetSCKAndMOSI degrades to two sequential writes.
type FT232H struct {
	ft   *ftdi.FT232H
	sck  gpio.PinIO
	mosi gpio.PinIO
	miso gpio.PinIO
	cs   gpio.PinIO
}

var hostInitialized atomic.Bool

func openFT232H(p Params) (Master, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6014 // FT232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		ft, ok := dev.(*ftdi.FT232H)
		if !ok {
			continue
		}
		if p.Serial != "" {
			ee := ftdi.EEPROM{}
			if err := ft.EEPROM(&ee); err != nil {
				log.Printf("boxflash: reading the FTDI EEPROM failed: %v", err)
				continue
			}
			if !strings.HasPrefix(ee.Serial, p.Serial) {
				continue
			}
		}
		m := &FT232H{ft: ft, sck: ft.D0, mosi: ft.D1, miso: ft.D2, cs: ft.D3}
		if err := m.miso.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configuring %s as input: %w", m.miso.Name(), err)
		}
		return m, nil
	}

	return nil, errors.New("no FT232H device found")
}

func (f *FT232H) String() string { return "ft232h" }

func (f *FT232H) SetCS(l gpio.Level)   { f.out(f.cs, l) }
func (f *FT232H) SetSCK(l gpio.Level)  { f.out(f.sck, l) }
func (f *FT232H) SetMOSI(l gpio.Level) { f.out(f.mosi, l) }

func (f *FT232H) GetMISO() gpio.Level {
	return f.miso.Read()
}

func (f *FT232H) SetSCKAndMOSI(sck, mosi gpio.Level) {
	f.out(f.sck, sck)
	f.out(f.mosi, mosi)
}

func (f *FT232H) out(p gpio.PinIO, l gpio.Level) {
	if err := p.Out(l); err != nil {
		log.Printf("boxflash: %s: %v", p.Name(), err)
	}
}

// Close is a no-op: the FTDI handle is owned by the periph host driver for
// the remainder of the process.
func (f *FT232H) Close() error { return nil }
