// Package power models the 32 switchable 48V outputs: each Channel composes
// an output-expander bit for switching and a pair of ADC channels for
// sensing, resolved from the static routing table by name.
package power

import (
	"fmt"
	"sync"
	"time"
)

// Switcher is the slice of the output expander a channel needs.
type Switcher interface {
	SetBit(pos int, on bool) error
}

// RawReader is the slice of the ADC set a channel needs.
type RawReader interface {
	ReadRaw(chip, channel int) (uint16, error)
}

// Calibration holds the linear scale factors for the analog front end.
// They are board calibration constants, not code: recalibration is a config
// change.
type Calibration struct {
	// FullScaleVolts is the voltage corresponding to a raw count of 4096.
	FullScaleVolts float64 `yaml:"full_scale_volts"`

	// CountsPerMilliamp is the raw counts measured per milliamp of output
	// current.
	CountsPerMilliamp float64 `yaml:"counts_per_milliamp"`
}

// DefaultCalibration matches the production analog front end.
var DefaultCalibration = Calibration{FullScaleVolts: 60.0, CountsPerMilliamp: 4.096}

// Volts converts a raw ADC count on a voltage channel.
func (c Calibration) Volts(raw uint16) float64 {
	return c.FullScaleVolts * float64(raw) / 4096.0
}

// Milliamps converts a raw ADC count on a current channel.
func (c Calibration) Milliamps(raw uint16) float64 {
	return float64(raw) / c.CountsPerMilliamp
}

// Reading is one sensed sample plus the last commanded switch state. The
// state is a commanded mirror, not a measurement; never use it for safety
// decisions.
type Reading struct {
	On        bool
	Volts     float64
	Milliamps float64
}

// State returns the conventional ON/OFF string for the reading.
func (r Reading) State() string {
	if r.On {
		return "ON"
	}
	return "OFF"
}

// Channel is one switchable 48V output.
type Channel struct {
	name string
	sw   Switcher
	adc  RawReader
	r    route
	cal  Calibration

	mu sync.Mutex
	on bool
}

// Name returns the channel's two-character name.
func (c *Channel) Name() string { return c.name }

// TurnOn switches the output on. The cached state is updated only when the
// expander write succeeded.
func (c *Channel) TurnOn() bool {
	if err := c.sw.SetBit(c.r.bit, true); err != nil {
		return false
	}
	c.mu.Lock()
	c.on = true
	c.mu.Unlock()
	return true
}

// TurnOff switches the output off.
func (c *Channel) TurnOff() bool {
	if err := c.sw.SetBit(c.r.bit, false); err != nil {
		return false
	}
	c.mu.Lock()
	c.on = false
	c.mu.Unlock()
	return true
}

// IsOn returns the last commanded state.
func (c *Channel) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// Sense measures the output voltage and current. A read failure is an
// explicit error, never a zero reading.
func (c *Channel) Sense() (Reading, error) {
	vraw, err := c.adc.ReadRaw(c.r.chip, c.r.vchan)
	if err != nil {
		return Reading{}, fmt.Errorf("sense %s voltage: %w", c.name, err)
	}
	iraw, err := c.adc.ReadRaw(c.r.chip, c.r.ichan)
	if err != nil {
		return Reading{}, fmt.Errorf("sense %s current: %w", c.name, err)
	}
	return Reading{
		On:        c.IsOn(),
		Volts:     c.cal.Volts(vraw),
		Milliamps: c.cal.Milliamps(iraw),
	}, nil
}

// String renders the channel like "<A7:  ON: 48.354 V, 51.270 mA>".
func (c *Channel) String() string {
	r, err := c.Sense()
	if err != nil {
		state := "OFF"
		if c.IsOn() {
			state = "ON"
		}
		return fmt.Sprintf("<%s: %3s: error reading ADCs>", c.name, state)
	}
	return fmt.Sprintf("<%s: %3s: %6.3f V, %6.3f mA>", c.name, r.State(), r.Volts, r.Milliamps)
}

// DefaultSwitchDelay is the pause between channels during bulk switching,
// limiting inrush current when many outputs change together.
const DefaultSwitchDelay = 50 * time.Millisecond
