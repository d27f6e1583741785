package boxflash

import (
	"errors"
	"fmt"
)

// controlReq records one control transfer as seen on the wire.
type controlReq struct {
	rType, request uint8
	val, idx       uint16
	dataLen        int
}

// fakeUSBDevice emulates a CP2102N GPIO latch behind the usbDevice
// interface.
type fakeUSBDevice struct {
	d         usbDesc
	serial    string
	serialErr error

	latch      byte
	controlErr error

	reqs   []controlReq
	closed int
}

func (f *fakeUSBDevice) desc() usbDesc { return f.d }

func (f *fakeUSBDevice) serialNumber() (string, error) {
	return f.serial, f.serialErr
}

func (f *fakeUSBDevice) control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	f.reqs = append(f.reqs, controlReq{rType, request, val, idx, len(data)})
	if f.controlErr != nil {
		return 0, f.controlErr
	}
	switch val {
	case cp210xWriteLatch:
		v := byte(idx >> 8 & 0xF)
		mask := byte(idx & 0xF)
		f.latch = f.latch&^mask | v&mask
		return 0, nil
	case cp210xReadLatch:
		if len(data) != 1 {
			return 0, fmt.Errorf("unexpected data phase length %d", len(data))
		}
		data[0] = f.latch
		return 1, nil
	}
	return 0, fmt.Errorf("unexpected control transfer wValue %#04x", val)
}

func (f *fakeUSBDevice) close() error {
	f.closed++
	return nil
}

type fakeUSBContext struct {
	devices []*fakeUSBDevice
	enumErr error

	opened []*fakeUSBDevice
	closed int
}

func (f *fakeUSBContext) openDevices(keep func(usbDesc) bool) ([]usbDevice, error) {
	var out []usbDevice
	for _, d := range f.devices {
		if keep(d.d) {
			f.opened = append(f.opened, d)
			out = append(out, d)
		}
	}
	return out, f.enumErr
}

func (f *fakeUSBContext) close() error {
	f.closed++
	return nil
}

var errFakeTransport = errors.New("fake transport failure")

func cp210xDesc() usbDesc {
	return usbDesc{vendor: cp210xVendorID, product: cp210xProductID, bus: 1, addr: 4}
}
