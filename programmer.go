package boxflash

import (
	"fmt"
)

// Programmer binds a located bridge chip to the bit-banged SPI bus and the
// flash layer on top of it. There is no re-initialization: once closed, a
// Programmer is done.
type Programmer struct {
	Master Master
	Flash  *Flash

	bus *bitbang
}

// Open locates the hardware for the named variant and brings up the SPI
// bus, leaving it idle (CS deasserted, clock low). On failure nothing is
// left half-acquired.
func Open(name string, p Params) (*Programmer, error) {
	open, ok := masters[name]
	if !ok {
		return nil, fmt.Errorf("unknown programmer %q (have %v)", name, Variants())
	}
	m, err := open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	// The USB round trip per pin change dwarfs any SPI timing requirement,
	// so the bus runs with no added clock delay.
	bus := newBitbang(m, 0)
	return &Programmer{Master: m, Flash: NewFlash(bus), bus: bus}, nil
}

// Close releases the device handle and the USB context. Not idempotent;
// call exactly once.
func (p *Programmer) Close() error {
	return p.Master.Close()
}
