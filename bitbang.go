package boxflash

import (
	"errors"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// bitbang clocks SPI mode 0 transfers, MSB first, through the five pin
// operations of a Master. It implements spi.Conn.
type bitbang struct {
	m    Master
	half time.Duration // delay between clock edges; 0 relies on transport latency
}

// newBitbang wires m as an SPI bus idling with CS deasserted and clock and
// data low. freq is the target clock rate; 0 runs as fast as the transport
// allows.
func newBitbang(m Master, freq physic.Frequency) *bitbang {
	b := &bitbang{m: m}
	if freq != 0 {
		b.half = freq.Period() / 2
	}
	m.SetCS(gpio.High)
	m.SetSCKAndMOSI(gpio.Low, gpio.Low)
	return b
}

func (b *bitbang) String() string {
	return "bitbang(" + b.m.String() + ")"
}

func (b *bitbang) Duplex() conn.Duplex {
	return conn.Full
}

// Tx runs one SPI transaction: CS asserted, w clocked out while sampling
// into r, CS deasserted. If r is shorter than w the surplus samples are
// dropped; if longer, zero bytes are clocked out for the tail.
func (b *bitbang) Tx(w, r []byte) error {
	b.m.SetCS(gpio.Low)
	b.exchange(w, r)
	b.m.SetCS(gpio.High)
	return nil
}

// TxPackets implements spi.Conn. CS stays asserted across packets that set
// KeepCS, but is always deasserted after the last one.
func (b *bitbang) TxPackets(pkts []spi.Packet) error {
	for _, p := range pkts {
		if p.BitsPerWord != 0 && p.BitsPerWord != 8 {
			return errors.New("boxflash: only 8 bits per word is supported")
		}
	}
	for i, p := range pkts {
		b.m.SetCS(gpio.Low)
		b.exchange(p.W, p.R)
		if !p.KeepCS || i == len(pkts)-1 {
			b.m.SetCS(gpio.High)
		}
	}
	return nil
}

func (b *bitbang) exchange(w, r []byte) {
	n := max(len(w), len(r))
	for i := 0; i < n; i++ {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in := b.exchangeByte(out)
		if i < len(r) {
			r[i] = in
		}
	}
}

// exchangeByte clocks one byte out on MOSI and returns the byte sampled
// from MISO. Data out changes on the falling edge; data in is sampled while
// the clock is low, just before the rising edge.
func (b *bitbang) exchangeByte(out byte) byte {
	var in byte
	for i := 7; i >= 0; i-- {
		b.m.SetSCKAndMOSI(gpio.Low, out>>i&1 == 1)
		b.delay()
		in <<= 1
		if b.m.GetMISO() == gpio.High {
			in |= 1
		}
		b.m.SetSCK(gpio.High)
		b.delay()
	}
	return in
}

func (b *bitbang) delay() {
	if b.half > 0 {
		time.Sleep(b.half)
	}
}

var _ spi.Conn = &bitbang{}
