// Package expander drives the PCA6416A IO-expansion chips that switch the
// 48V outputs. Each chip holds a 16-bit on/off bitmap; the in-memory copy
// always equals the last value successfully written to the device, so a
// failed write rolls the copy back rather than caching a state the hardware
// never reached.
package expander

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fieldnode/fndh-power/internal/hw"
)

// Seven-bit I2C addresses of the two chips on the digital board.
const (
	Addr1 = 0x20
	Addr2 = 0x21
)

// NumBits is the number of switchable outputs per chip.
const NumBits = 16

// PCA6416A register pairs (each register addresses two 8-bit ports).
const (
	regOutput   = 2
	regPolarity = 4
	regConfig   = 6
)

var (
	// ErrBadPosition reports a bit position outside 1-16.
	ErrBadPosition = errors.New("expander: position out of range")

	// ErrBus reports a failed control-bus write. The in-memory bitmap is
	// unchanged when this is returned.
	ErrBus = errors.New("expander: control bus error")
)

// Expander is one PCA6416A chip. Two exist per unit, each independently
// lockable.
type Expander struct {
	mu      sync.Mutex
	bus     hw.I2C
	addr    uint16
	portmap [NumBits]byte
}

// New creates an Expander at the given address. It does not touch the bus;
// call Init before any SetBit.
func New(bus hw.I2C, addr uint16) *Expander {
	return &Expander{bus: bus, addr: addr}
}

// Addr returns the chip's seven-bit I2C address.
func (e *Expander) Addr() uint16 { return e.addr }

// Init drives the chip to the known-safe state: all outputs off, no
// polarity inversion, every pin configured as an output.
func (e *Expander) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.portmap = [NumBits]byte{}
	if err := e.bus.WriteReg(e.addr, regOutput, []byte{0, 0}); err != nil {
		return fmt.Errorf("%w: addr %#x output reset: %v", ErrBus, e.addr, err)
	}
	if err := e.bus.WriteReg(e.addr, regPolarity, []byte{0, 0}); err != nil {
		return fmt.Errorf("%w: addr %#x polarity reset: %v", ErrBus, e.addr, err)
	}
	if err := e.bus.WriteReg(e.addr, regConfig, []byte{0, 0}); err != nil {
		return fmt.Errorf("%w: addr %#x config reset: %v", ErrBus, e.addr, err)
	}
	return nil
}

// SetBit switches the output at position 1-16 on or off. The full bitmap is
// always written in one register transaction; partial writes could briefly
// re-energize unrelated outputs.
func (e *Expander) SetBit(pos int, on bool) error {
	if pos < 1 || pos > NumBits {
		return fmt.Errorf("%w: %d", ErrBadPosition, pos)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.portmap
	var v byte
	if on {
		v = 1
	}
	e.portmap[pos-1] = v
	if err := e.writeLocked(); err != nil {
		e.portmap = prev
		return err
	}
	return nil
}

// WriteAll replaces the whole bitmap in one register write. Bit 0 of bitmap
// is position 1. On failure the in-memory bitmap is unchanged.
func (e *Expander) WriteAll(bitmap uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.portmap
	for i := 0; i < NumBits; i++ {
		e.portmap[i] = byte(bitmap>>i) & 1
	}
	if err := e.writeLocked(); err != nil {
		e.portmap = prev
		return err
	}
	return nil
}

// Bitmap returns a copy of the in-memory map: the last state successfully
// written to the device.
func (e *Expander) Bitmap() [NumBits]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portmap
}

// writeLocked writes both 8-bit halves in a single transaction. Position 1
// is the most significant bit of the low byte, matching the board wiring.
func (e *Expander) writeLocked() error {
	var p1, p2 byte
	for i := 0; i < 8; i++ {
		p1 |= e.portmap[i] << (7 - i)
		p2 |= e.portmap[8+i] << (7 - i)
	}
	if err := e.bus.WriteReg(e.addr, regOutput, []byte{p1, p2}); err != nil {
		return fmt.Errorf("%w: addr %#x: %v", ErrBus, e.addr, err)
	}
	return nil
}
