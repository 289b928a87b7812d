// Package envsensor reads the HIH7120 humidity/temperature sensor inside
// the unit. Each read is an independent measurement cycle: wake the sensor,
// wait for the conversion, fetch four status/data bytes.
package envsensor

import (
	"fmt"
	"time"

	"github.com/fieldnode/fndh-power/internal/hw"
)

const (
	// DefaultAddr is the sensor's seven-bit I2C address.
	DefaultAddr = 0x27

	// DefaultConversionDelay covers the measurement cycle of the 7xxx
	// series parts. Older device generations need up to 110ms.
	DefaultConversionDelay = 50 * time.Millisecond

	// fullScale is the 14-bit counts range of both measurements, per the
	// HIH7120 datasheet (2^14 - 2).
	fullScale = 16382.0
)

// Reading is one humidity/temperature sample.
type Reading struct {
	Humidity float64 // relative humidity, percent
	TempC    float64 // degrees Celsius
}

// Sensor reads the HIH7120 over the control bus.
type Sensor struct {
	bus   hw.I2C
	addr  uint16
	delay time.Duration
	sleep func(time.Duration)
}

// New creates a Sensor. A zero delay is honored, which tests use.
func New(bus hw.I2C, addr uint16, delay time.Duration) *Sensor {
	return &Sensor{bus: bus, addr: addr, delay: delay, sleep: time.Sleep}
}

// Read performs one measurement cycle. Bus failures surface as an error,
// never as a wrong reading.
//
// Byte layout per the datasheet: humidity is the low 6 bits of byte 0 plus
// byte 1; temperature is bytes 2 and 3 shifted right two bits. The
// temperature raw value comes from its own data bytes, not from the
// humidity bytes.
func (s *Sensor) Read() (Reading, error) {
	if err := s.bus.Wake(s.addr); err != nil {
		return Reading{}, fmt.Errorf("sensor wake: %w", err)
	}
	if s.delay > 0 {
		s.sleep(s.delay)
	}
	data, err := s.bus.ReadReg(s.addr, 0, 4)
	if err != nil {
		return Reading{}, fmt.Errorf("sensor read: %w", err)
	}
	if len(data) < 4 {
		return Reading{}, fmt.Errorf("sensor read: short reply (%d bytes)", len(data))
	}

	hraw := int(data[0]&0x3F)<<8 | int(data[1])
	traw := (int(data[2])<<8 | int(data[3])) >> 2

	return Reading{
		Humidity: float64(hraw) / fullScale * 100.0,
		TempC:    float64(traw)/fullScale*165.0 - 40.0,
	}, nil
}
