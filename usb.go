package boxflash

import (
	"github.com/google/gousb"
)

// usbDesc is the part of the USB device descriptor the locator filters on.
type usbDesc struct {
	vendor  uint16
	product uint16
	bus     int
	addr    int
}

// usbDevice is an exclusively-owned handle to one opened USB device.
type usbDevice interface {
	desc() usbDesc
	// serialNumber reads the device's serial number string descriptor.
	serialNumber() (string, error)
	// control issues a control transfer and returns the number of bytes
	// transferred during the data phase.
	control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	close() error
}

// usbContext is the process-wide handle to the USB subsystem.
type usbContext interface {
	// openDevices opens every attached device whose descriptor passes keep.
	// Devices whose descriptor cannot be read are skipped. A non-nil error
	// may accompany a partial result list.
	openDevices(keep func(usbDesc) bool) ([]usbDevice, error)
	close() error
}

// newUSBContext is a hook so tests can substitute a fake bus.
var newUSBContext = func() usbContext {
	return &gousbContext{ctx: gousb.NewContext()}
}

type gousbContext struct {
	ctx *gousb.Context
}

func (g *gousbContext) openDevices(keep func(usbDesc) bool) ([]usbDevice, error) {
	devs, err := g.ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		return keep(fromDesc(d))
	})
	out := make([]usbDevice, 0, len(devs))
	for _, d := range devs {
		out = append(out, &gousbDevice{d: d})
	}
	return out, err
}

func (g *gousbContext) close() error {
	return g.ctx.Close()
}

func fromDesc(d *gousb.DeviceDesc) usbDesc {
	return usbDesc{
		vendor:  uint16(d.Vendor),
		product: uint16(d.Product),
		bus:     d.Bus,
		addr:    d.Address,
	}
}

type gousbDevice struct {
	d *gousb.Device
}

func (g *gousbDevice) desc() usbDesc {
	return fromDesc(g.d.Desc)
}

func (g *gousbDevice) serialNumber() (string, error) {
	return g.d.SerialNumber()
}

func (g *gousbDevice) control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return g.d.Control(rType, request, val, idx, data)
}

func (g *gousbDevice) close() error {
	return g.d.Close()
}
