package boxflash

import (
	"fmt"
	"log"
	"strings"

	"periph.io/x/conn/v3/gpio"
)

// USB identity of the Developerbox debug UART bridge.
const (
	cp210xVendorID  = 0x10C4 // Silicon Labs
	cp210xProductID = 0xEA60 // CP2102N USB to UART Bridge Controller
)

// Bit positions of each SPI signal in the CP2102N GPIO latch.
// [96Boards-HW|Developerbox schematic]
const (
	cp210xPinSCK  = 0
	cp210xPinCS   = 1
	cp210xPinMISO = 2
	cp210xPinMOSI = 3
)

// Vendor control transfer encoding. [SiLabs-AN571|5. Interface Specification]
const (
	reqTypeHostToDevice = 0x40
	reqTypeDeviceToHost = 0xC0

	cp210xVendorSpecific = 0xFF // bRequest

	// wValue selectors for cp210xVendorSpecific.
	cp210xWriteLatch = 0x37E1
	cp210xReadLatch  = 0x00C2
)

// CP210x bit-bangs the Developerbox's flash bus through the 4-bit GPIO
// latch of its CP2102N debug UART bridge. It implements Master.
type CP210x struct {
	ctx usbContext
	dev usbDevice
}

func openDeveloperbox(p Params) (Master, error) {
	ctx := newUSBContext()
	dev, err := findDevice(ctx, cp210xVendorID, cp210xProductID, p.Serial)
	if err != nil {
		ctx.close()
		return nil, err
	}
	return &CP210x{ctx: ctx, dev: dev}, nil
}

// findDevice scans the bus for a vid:pid match, optionally narrowed to
// devices whose serial number begins with serialPrefix. The first device
// passing all filters wins; every other opened handle is closed. USB-level
// failures on individual candidates are logged and skipped, never fatal:
// the search only fails once the candidate list is exhausted.
func findDevice(ctx usbContext, vid, pid uint16, serialPrefix string) (usbDevice, error) {
	devs, err := ctx.openDevices(func(d usbDesc) bool {
		return d.vendor == vid && d.product == pid
	})
	if err != nil {
		// A partial result list is still usable; enumeration failures on
		// unrelated devices must not abort the search.
		log.Printf("boxflash: USB enumeration: %v", err)
	}

	var found usbDevice
	for _, dev := range devs {
		if found != nil {
			dev.close()
			continue
		}
		d := dev.desc()
		log.Printf("boxflash: found USB device %04x:%04x at address %d-%d", d.vendor, d.product, d.bus, d.addr)
		if serialPrefix != "" {
			serial, err := dev.serialNumber()
			if err != nil {
				log.Printf("boxflash: reading the USB serial number failed: %v", err)
				dev.close()
				continue
			}
			if !strings.HasPrefix(serial, serialPrefix) {
				dev.close()
				continue
			}
		}
		found = dev
	}
	if found == nil {
		return nil, fmt.Errorf("no USB device %04x:%04x found", vid, pid)
	}
	return found, nil
}

// latchRead returns the current level of the four GPIO pins in the low
// nibble, read fresh from the device. A transport failure reads back as all
// pins low.
func (c *CP210x) latchRead() byte {
	var buf [1]byte
	if _, err := c.dev.control(reqTypeDeviceToHost, cp210xVendorSpecific, cp210xReadLatch, 0, buf[:]); err != nil {
		log.Printf("boxflash: failed to read GPIO pins: %v", err)
		return 0
	}
	return buf[0]
}

// latchWrite updates the pins selected by mask to val; unmasked pins keep
// their state. Value and mask travel in one 16-bit word so that two pins
// can change within a single USB transaction.
func (c *CP210x) latchWrite(val, mask byte) {
	word := uint16(val&0xF)<<8 | uint16(mask&0xF)
	if _, err := c.dev.control(reqTypeHostToDevice, cp210xVendorSpecific, cp210xWriteLatch, word, nil); err != nil {
		log.Printf("boxflash: failed to write GPIO pins: %v", err)
	}
}

func levelBit(l gpio.Level, n int) byte {
	if l == gpio.High {
		return 1 << n
	}
	return 0
}

func (c *CP210x) String() string { return "developerbox" }

func (c *CP210x) SetCS(l gpio.Level) {
	c.latchWrite(levelBit(l, cp210xPinCS), 1<<cp210xPinCS)
}

func (c *CP210x) SetSCK(l gpio.Level) {
	c.latchWrite(levelBit(l, cp210xPinSCK), 1<<cp210xPinSCK)
}

func (c *CP210x) SetMOSI(l gpio.Level) {
	c.latchWrite(levelBit(l, cp210xPinMOSI), 1<<cp210xPinMOSI)
}

func (c *CP210x) GetMISO() gpio.Level {
	return c.latchRead()&(1<<cp210xPinMISO) != 0
}

// SetSCKAndMOSI changes clock and data out with one control transfer
// instead of two, halving the round trips on the per-bit path.
func (c *CP210x) SetSCKAndMOSI(sck, mosi gpio.Level) {
	c.latchWrite(levelBit(sck, cp210xPinSCK)|levelBit(mosi, cp210xPinMOSI),
		1<<cp210xPinSCK|1<<cp210xPinMOSI)
}

// Close releases the device handle, then the USB context. Call exactly once.
func (c *CP210x) Close() error {
	err := c.dev.close()
	if cerr := c.ctx.close(); err == nil {
		err = cerr
	}
	return err
}
