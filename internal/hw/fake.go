package hw

import "errors"

// PinEvent records one output line change.
type PinEvent struct {
	Pin   int
	Value int
}

// FakePins is a test double that records every line change.
type FakePins struct {
	// Values holds the current level of each line.
	Values map[int]int

	// History contains every Set call in order.
	History []PinEvent

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePins creates a FakePins with all lines low.
func NewFakePins() *FakePins {
	return &FakePins{Values: make(map[int]int)}
}

// Set records the line change.
func (f *FakePins) Set(pin, value int) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values[pin] = value
	f.History = append(f.History, PinEvent{Pin: pin, Value: value})
	return nil
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// FakeSPI is a test double that returns scripted responses.
type FakeSPI struct {
	// Responses contains scripted reply frames. Each Transfer consumes the
	// next one; when exhausted, the last frame is returned repeatedly.
	Responses [][]byte

	// Transfers records every command frame sent.
	Transfers [][]byte

	// Err, if set, will be returned by Transfer.
	Err error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeSPI creates a FakeSPI with the given scripted responses.
func NewFakeSPI(responses ...[]byte) *FakeSPI {
	return &FakeSPI{Responses: responses}
}

// Transfer records the frame and returns the next scripted response.
func (f *FakeSPI) Transfer(tx []byte) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.Transfers = append(f.Transfers, append([]byte(nil), tx...))
	if len(f.Responses) == 0 {
		return nil, errors.New("no responses configured")
	}
	resp := f.Responses[f.index]
	if f.index < len(f.Responses)-1 {
		f.index++
	}
	return resp, nil
}

// Close marks the bus as closed.
func (f *FakeSPI) Close() error {
	f.Closed = true
	return nil
}

// I2CWrite records one register write.
type I2CWrite struct {
	Addr uint16
	Reg  byte
	Data []byte
}

// FakeI2C is a test double for the control bus.
type FakeI2C struct {
	// Writes records every WriteReg call in order.
	Writes []I2CWrite

	// ReadData maps a register to the bytes ReadReg returns for it.
	ReadData map[byte][]byte

	// Wakes counts Wake calls.
	Wakes int

	// WriteErr, ReadErr and WakeErr, if set, will be returned by the
	// corresponding call.
	WriteErr error
	ReadErr  error
	WakeErr  error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeI2C creates an empty FakeI2C.
func NewFakeI2C() *FakeI2C {
	return &FakeI2C{ReadData: make(map[byte][]byte)}
}

// WriteReg records the register write.
func (f *FakeI2C) WriteReg(addr uint16, reg byte, data []byte) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Writes = append(f.Writes, I2CWrite{Addr: addr, Reg: reg, Data: append([]byte(nil), data...)})
	return nil
}

// ReadReg returns the scripted bytes for the register, truncated or
// zero-padded to n.
func (f *FakeI2C) ReadReg(addr uint16, reg byte, n int) ([]byte, error) {
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	buf := make([]byte, n)
	copy(buf, f.ReadData[reg])
	return buf, nil
}

// Wake counts the wake request.
func (f *FakeI2C) Wake(addr uint16) error {
	if f.WakeErr != nil {
		return f.WakeErr
	}
	f.Wakes++
	return nil
}

// Close marks the bus as closed.
func (f *FakeI2C) Close() error {
	f.Closed = true
	return nil
}
