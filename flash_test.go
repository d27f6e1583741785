package boxflash

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// scriptConn records every transaction and lets a test mutate the buffer in
// place to simulate the chip's response. Flash always runs full duplex with
// a shared buffer, so w and r alias.
type scriptConn struct {
	txs  [][]byte
	onTx func(buf []byte)
}

func (s *scriptConn) String() string      { return "script" }
func (s *scriptConn) Duplex() conn.Duplex { return conn.Full }

func (s *scriptConn) Tx(w, r []byte) error {
	s.txs = append(s.txs, append([]byte(nil), w...))
	if s.onTx != nil {
		s.onTx(r)
	}
	return nil
}

func (s *scriptConn) TxPackets(p []spi.Packet) error {
	return errors.New("not used by Flash")
}

func (s *scriptConn) txsWithCmd(cmd byte) [][]byte {
	var out [][]byte
	for _, tx := range s.txs {
		if tx[0] == cmd {
			out = append(out, tx)
		}
	}
	return out
}

func addr24(tx []byte) int {
	return int(tx[1])<<16 | int(tx[2])<<8 | int(tx[3])
}

func TestReadID(t *testing.T) {
	sc := &scriptConn{onTx: func(buf []byte) {
		if buf[0] == flashCmdReadID {
			copy(buf[1:], []byte{0xC2, 0x20, 0x15})
		}
	}}
	f := NewFlash(sc)

	id, name, err := f.ReadID()
	if err != nil {
		t.Fatalf("ReadID() = %v", err)
	}
	if id != [3]byte{0xC2, 0x20, 0x15} {
		t.Errorf("id = %X, want C22015", id)
	}
	if name != "Macronix MX25L 16Mb" {
		t.Errorf("name = %q, want the Macronix entry", name)
	}
	if f.pr == nil {
		t.Error("chip parameters not configured after ReadID")
	}
}

func TestReadIDUnknownChip(t *testing.T) {
	sc := &scriptConn{onTx: func(buf []byte) {
		if buf[0] == flashCmdReadID {
			copy(buf[1:], []byte{0x01, 0x02, 0x03})
		}
	}}
	f := NewFlash(sc)

	_, name, err := f.ReadID()
	if err != nil {
		t.Fatalf("ReadID() = %v", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty for an unknown ID", name)
	}
	if f.pr != nil {
		t.Error("parameters configured for an unknown chip")
	}
}

func TestReadChunking(t *testing.T) {
	// Respond with the low byte of each address so reassembly is checkable.
	sc := &scriptConn{}
	sc.onTx = func(buf []byte) {
		if buf[0] != flashCmdRead {
			return
		}
		base := addr24(buf)
		for i := range buf[4:] {
			buf[4+i] = byte(base + i)
		}
	}
	f := NewFlash(sc)

	const start = 0x10
	data, err := f.Read(start, 5000)
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	if len(data) != 5000 {
		t.Fatalf("len(data) = %d, want 5000", len(data))
	}

	reads := sc.txsWithCmd(flashCmdRead)
	if len(reads) != 2 {
		t.Fatalf("got %d read transactions, want 2", len(reads))
	}
	if a := addr24(reads[0]); a != start {
		t.Errorf("first chunk at %#06x, want %#06x", a, start)
	}
	if a := addr24(reads[1]); a != start+4096 {
		t.Errorf("second chunk at %#06x, want %#06x", a, start+4096)
	}
	for i, b := range data {
		if b != byte(start+i) {
			t.Fatalf("data[%d] = %#02x, want %#02x", i, b, byte(start+i))
		}
	}
}

func TestWritePages(t *testing.T) {
	sc := &scriptConn{}
	f := NewFlash(sc)

	input := bytes.Repeat([]byte{0xDB}, 600)
	if err := f.Write(bytes.NewReader(input)); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	progs := sc.txsWithCmd(flashCmdPageProgram)
	if len(progs) != 3 {
		t.Fatalf("got %d page programs, want 3", len(progs))
	}
	wantAddrs := []int{0, 256, 512}
	wantLens := []int{256, 256, 88}
	for i, tx := range progs {
		if a := addr24(tx); a != wantAddrs[i] {
			t.Errorf("page %d at %#06x, want %#06x", i, a, wantAddrs[i])
		}
		if n := len(tx) - 4; n != wantLens[i] {
			t.Errorf("page %d holds %d bytes, want %d", i, n, wantLens[i])
		}
	}
	// Every page program must be preceded by a write enable.
	if n := len(sc.txsWithCmd(flashCmdWriteEnable)); n != 3 {
		t.Errorf("got %d write enables, want 3", n)
	}
}

func TestPageProgramBounds(t *testing.T) {
	f := NewFlash(&scriptConn{})

	if err := f.pageProgram(1<<24, []byte{1}); err == nil {
		t.Error("pageProgram() accepted an address beyond 24 bits")
	}
	if err := f.pageProgram(0, make([]byte, 257)); err == nil {
		t.Error("pageProgram() accepted more than one page")
	}
}

func TestErasePlanner(t *testing.T) {
	sc := &scriptConn{}
	f := NewFlash(sc)

	// 64KB + 64KB + 4KB
	if err := f.Erase(0, 132<<10); err != nil {
		t.Fatalf("Erase() = %v", err)
	}

	big := sc.txsWithCmd(flashCmdErase64KB)
	small := sc.txsWithCmd(flashCmdErase4KB)
	if len(big) != 2 || len(small) != 1 {
		t.Fatalf("got %d/%d 64KB/4KB erases, want 2/1", len(big), len(small))
	}
	if a := addr24(big[1]); a != 64<<10 {
		t.Errorf("second 64KB erase at %#06x, want %#06x", a, 64<<10)
	}
	if a := addr24(small[0]); a != 128<<10 {
		t.Errorf("4KB erase at %#06x, want %#06x", a, 128<<10)
	}
}

func TestBusyWait(t *testing.T) {
	polls := 0
	sc := &scriptConn{}
	sc.onTx = func(buf []byte) {
		if buf[0] != flashCmdReadStatusRegister {
			return
		}
		polls++
		if polls < 3 {
			buf[1] = 1 // BUSY
		} else {
			buf[1] = 0
		}
	}
	f := NewFlash(sc)

	if err := f.BusyWait(time.Millisecond, 0); err != nil {
		t.Fatalf("BusyWait() = %v", err)
	}
	if polls != 3 {
		t.Errorf("polled the status register %d times, want 3", polls)
	}
}

func TestStatusRegisterString(t *testing.T) {
	tests := []struct {
		sr   StatusRegister
		want string
	}{
		{0, "00000000"},
		{0b00000011, "00000011 WEL,BUSY"},
		{0b10000100, "10000100 SRP,BP0"},
	}
	for _, tt := range tests {
		if got := tt.sr.String(); got != tt.want {
			t.Errorf("StatusRegister(%#02x).String() = %q, want %q", byte(tt.sr), got, tt.want)
		}
	}
}
