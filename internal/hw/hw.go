// Package hw provides the low-level bus transports for the FNDH hardware:
// GPIO output lines for the chip-select decoder, the SPI bus shared by the
// eight ADC chips, and the I2C bus shared by the output expanders and the
// environment sensor.
// The real implementations require Linux; the fakes allow testing without
// hardware.
package hw

// PinBank drives a set of GPIO output lines, addressed by line offset.
type PinBank interface {
	// Set drives the line at the given offset to 0 or 1.
	Set(pin int, value int) error

	// Close releases the lines, returning them to a safe tri-state.
	Close() error
}

// SPI performs full-duplex transfers on the measurement bus.
// The chip-select decoder, not the SPI controller, picks which chip sees
// the transaction, so implementations must leave hardware CS unused.
type SPI interface {
	// Transfer clocks tx out and returns the same number of bytes read back.
	Transfer(tx []byte) ([]byte, error)

	Close() error
}

// I2C performs register transactions on the control bus.
// Implementations must serialize concurrent callers: the control bus cannot
// tolerate interleaved transactions.
type I2C interface {
	// WriteReg writes data to the device register in one transaction.
	WriteReg(addr uint16, reg byte, data []byte) error

	// ReadReg reads n bytes starting at the device register.
	ReadReg(addr uint16, reg byte, n int) ([]byte, error)

	// Wake issues a zero-length write to the device, used to trigger a
	// sensor measurement cycle.
	Wake(addr uint16) error

	Close() error
}

// Default bus device names on the Raspberry Pi.
const (
	DefaultSPIDev = "SPI0.0"
	DefaultI2CBus = "1"
)
