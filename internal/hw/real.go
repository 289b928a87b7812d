//go:build linux

package hw

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Init loads the periph host drivers. Must be called once before opening
// the SPI or I2C buses.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}
	return nil
}

// RealPins drives GPIO output lines through the Linux GPIO character device.
type RealPins struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealPins requests the given line offsets as outputs, all driven low.
func NewRealPins(pins ...int) (*RealPins, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	lines := make(map[int]*gpiocdev.Line, len(pins))
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			for _, l := range lines {
				l.Close()
			}
			chip.Close()
			return nil, fmt.Errorf("request pin %d: %w", pin, err)
		}
		lines[pin] = line
	}

	return &RealPins{chip: chip, lines: lines}, nil
}

// Set drives the line at the given offset to 0 or 1.
func (p *RealPins) Set(pin, value int) error {
	line, ok := p.lines[pin]
	if !ok {
		return fmt.Errorf("pin %d not requested", pin)
	}
	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// Close reconfigures every line as an input (matching Pi boot defaults, so
// the decoder floats deselected) and releases them.
func (p *RealPins) Close() error {
	var errs []error
	for pin, line := range p.lines {
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealSPI talks to the measurement bus through the kernel spidev interface.
type RealSPI struct {
	port spi.PortCloser
	conn spi.Conn
}

// NewRealSPI opens the named SPI port at the given clock frequency.
// The ADC front end is slow; 10 kHz is the proven rate for this board.
func NewRealSPI(dev string, hz int64) (*RealSPI, error) {
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi port %s: %w", dev, err)
	}
	conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %s: %w", dev, err)
	}
	return &RealSPI{port: port, conn: conn}, nil
}

// Transfer clocks tx out and returns the bytes read back.
func (s *RealSPI) Transfer(tx []byte) ([]byte, error) {
	rx := make([]byte, len(tx))
	if err := s.conn.Tx(tx, rx); err != nil {
		return nil, fmt.Errorf("spi transfer: %w", err)
	}
	return rx, nil
}

// Close releases the SPI port.
func (s *RealSPI) Close() error {
	return s.port.Close()
}

// RealI2C talks to the control bus. One mutex serializes every transaction;
// the expanders and the environment sensor share this bus and their
// register protocols cannot survive interleaving.
type RealI2C struct {
	mu  sync.Mutex
	bus i2c.BusCloser
}

// NewRealI2C opens the named I2C bus ("1" on the Pi header).
func NewRealI2C(name string) (*RealI2C, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %s: %w", name, err)
	}
	return &RealI2C{bus: bus}, nil
}

// WriteReg writes data to the device register in one transaction.
func (b *RealI2C) WriteReg(addr uint16, reg byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := append([]byte{reg}, data...)
	if err := b.bus.Tx(addr, w, nil); err != nil {
		return fmt.Errorf("i2c write addr %#x reg %d: %w", addr, reg, err)
	}
	return nil
}

// ReadReg reads n bytes starting at the device register.
func (b *RealI2C) ReadReg(addr uint16, reg byte, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, n)
	if err := b.bus.Tx(addr, []byte{reg}, buf); err != nil {
		return nil, fmt.Errorf("i2c read addr %#x reg %d: %w", addr, reg, err)
	}
	return buf, nil
}

// Wake issues a zero-length write, addressing the device without data.
func (b *RealI2C) Wake(addr uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.bus.Tx(addr, nil, nil); err != nil {
		return fmt.Errorf("i2c wake addr %#x: %w", addr, err)
	}
	return nil
}

// Close releases the I2C bus.
func (b *RealI2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.Close()
}
