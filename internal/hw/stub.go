//go:build !linux

package hw

import "errors"

var errNotLinux = errors.New("hw: not supported on this platform (requires Linux)")

// Init is not available on non-Linux platforms.
func Init() error { return errNotLinux }

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(pins ...int) (*RealPins, error) { return nil, errNotLinux }

func (p *RealPins) Set(pin, value int) error { return errNotLinux }
func (p *RealPins) Close() error             { return nil }

// RealSPI is not available on non-Linux platforms.
type RealSPI struct{}

// NewRealSPI returns an error on non-Linux platforms.
func NewRealSPI(dev string, hz int64) (*RealSPI, error) { return nil, errNotLinux }

func (s *RealSPI) Transfer(tx []byte) ([]byte, error) { return nil, errNotLinux }
func (s *RealSPI) Close() error                       { return nil }

// RealI2C is not available on non-Linux platforms.
type RealI2C struct{}

// NewRealI2C returns an error on non-Linux platforms.
func NewRealI2C(name string) (*RealI2C, error) { return nil, errNotLinux }

func (b *RealI2C) WriteReg(addr uint16, reg byte, data []byte) error     { return errNotLinux }
func (b *RealI2C) ReadReg(addr uint16, reg byte, n int) ([]byte, error)  { return nil, errNotLinux }
func (b *RealI2C) Wake(addr uint16) error                                { return errNotLinux }
func (b *RealI2C) Close() error                                          { return nil }
