// Package adc reads the eight MCP3208 analog-to-digital converters on the
// measurement bus. All eight chips share one SPI bus; a 74X138 3-to-8
// decoder driven over four GPIO lines selects which chip sees a
// transaction. Selection and the framed transfer form a single critical
// section: the addressed chip stays electrically selected until the decoder
// is explicitly disabled.
package adc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldnode/fndh-power/internal/hw"
)

const (
	// NumChips is the number of ADC chips behind the decoder.
	NumChips = 8

	// NumChannels is the number of single-ended inputs per chip.
	NumChannels = 8

	// DefaultSettle is the pause between chip select and the SPI frame,
	// letting the analog front end stabilize.
	DefaultSettle = 10 * time.Millisecond
)

var (
	// ErrBadIndex reports a chip or channel outside 0-7. No bus traffic is
	// attempted for a bad index.
	ErrBadIndex = errors.New("adc: index out of range")

	// ErrBus reports a failed measurement-bus transaction.
	ErrBus = errors.New("adc: measurement bus error")
)

// DecoderPins holds the GPIO line offsets driving the 74X138 decoder.
type DecoderPins struct {
	A      int // address bit 0 (LSB)
	B      int // address bit 1
	C      int // address bit 2
	Enable int // active high
}

// DefaultDecoderPins matches the FNDH digital board wiring (BCM offsets).
var DefaultDecoderPins = DecoderPins{A: 6, B: 12, C: 13, Enable: 26}

// Set owns the decoder and the SPI bus for all eight ADC chips.
// One mutex covers select, settle, transfer and deselect; callers must not
// interleave reads on different chips.
type Set struct {
	mu     sync.Mutex
	pins   hw.PinBank
	spi    hw.SPI
	dec    DecoderPins
	settle time.Duration
	sleep  func(time.Duration)
}

// New creates a Set over the given transports. A zero settle is honored,
// which tests use to avoid real delays.
func New(pins hw.PinBank, spi hw.SPI, dec DecoderPins, settle time.Duration) *Set {
	return &Set{pins: pins, spi: spi, dec: dec, settle: settle, sleep: time.Sleep}
}

// Select routes the decoder at chip n (0-7): enable low, address lines to
// the bit pattern of n, enable high. The chip stays selected until
// Deselect. ReadRaw manages selection itself; Select is exported for
// bring-up diagnostics.
func (s *Set) Select(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(n)
}

// Deselect disables every decoder output.
func (s *Set) Deselect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deselectLocked()
}

func (s *Set) selectLocked(n int) error {
	if n < 0 || n >= NumChips {
		return fmt.Errorf("%w: chip %d", ErrBadIndex, n)
	}
	if err := s.pins.Set(s.dec.Enable, 0); err != nil {
		return fmt.Errorf("%w: disable decoder: %v", ErrBus, err)
	}
	if err := s.pins.Set(s.dec.A, n&1); err != nil {
		return fmt.Errorf("%w: address bit A: %v", ErrBus, err)
	}
	if err := s.pins.Set(s.dec.B, (n>>1)&1); err != nil {
		return fmt.Errorf("%w: address bit B: %v", ErrBus, err)
	}
	if err := s.pins.Set(s.dec.C, (n>>2)&1); err != nil {
		return fmt.Errorf("%w: address bit C: %v", ErrBus, err)
	}
	if err := s.pins.Set(s.dec.Enable, 1); err != nil {
		return fmt.Errorf("%w: enable decoder: %v", ErrBus, err)
	}
	return nil
}

func (s *Set) deselectLocked() error {
	if err := s.pins.Set(s.dec.Enable, 0); err != nil {
		return fmt.Errorf("%w: disable decoder: %v", ErrBus, err)
	}
	return nil
}

// ReadRaw returns the 12-bit value (0-4095) from the given input channel on
// the given chip. The whole select/settle/transfer/deselect sequence runs
// under the set's lock.
//
// The MCP3208 command frame is three bytes: start + single-ended + the
// channel number split across the first two bytes. The reply carries the
// result in the low 4 bits of byte 2 and all of byte 3.
func (s *Set) ReadRaw(chip, channel int) (uint16, error) {
	if channel < 0 || channel >= NumChannels {
		return 0, fmt.Errorf("%w: channel %d", ErrBadIndex, channel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectLocked(chip); err != nil {
		return 0, err
	}
	// Deselect must happen even on a failed transfer; leaving a chip
	// selected would corrupt the next caller's transaction.
	defer s.deselectLocked()

	if s.settle > 0 {
		s.sleep(s.settle)
	}

	d2 := byte(channel>>2) & 1
	d1 := byte(channel>>1) & 1
	d0 := byte(channel) & 1
	cmd := []byte{0x6 | d2, d1<<7 | d0<<6, 0}

	r, err := s.spi.Transfer(cmd)
	if err != nil {
		return 0, fmt.Errorf("%w: chip %d channel %d: %v", ErrBus, chip, channel, err)
	}
	if len(r) < 3 {
		return 0, fmt.Errorf("%w: chip %d channel %d: short reply (%d bytes)", ErrBus, chip, channel, len(r))
	}
	return uint16(r[1]&0xF)<<8 | uint16(r[2]), nil
}
