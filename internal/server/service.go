// Package server exposes the controller over the network: a JSON/HTTP RPC
// surface for operators and scripts, plus Prometheus metrics. One Service
// guards the hardware; all RPC handlers and the monitor loop serialize
// through it.
package server

import (
	"log"
	"sync"
	"time"

	"github.com/fieldnode/fndh-power/internal/envsensor"
	"github.com/fieldnode/fndh-power/internal/power"
	"github.com/fieldnode/fndh-power/internal/version"
)

// EnvReader is the slice of the environment sensor the service needs.
type EnvReader interface {
	Read() (envsensor.Reading, error)
}

// PowerAction is a machine-level action requested over RPC. The handler
// only queues it; the daemon owns the cleanup-then-act sequence.
type PowerAction string

const (
	ActionReboot   PowerAction = "REBOOT"
	ActionShutdown PowerAction = "SHUTDOWN"
)

// Service implements the RPC operations. The mutex serializes hardware
// access across concurrent RPC calls and the monitor loop: the shared SPI
// and I2C buses are not safe under interleaved multi-step transactions.
type Service struct {
	mu  sync.Mutex
	reg *power.Registry
	env EnvReader
	met *Metrics

	delay time.Duration
	sleep func(time.Duration)

	actions chan PowerAction
}

// NewService creates a Service. met may be nil when metrics are disabled.
func NewService(reg *power.Registry, env EnvReader, met *Metrics) *Service {
	return &Service{
		reg:   reg,
		env:   env,
		met:   met,
		delay: power.DefaultSwitchDelay,
		sleep: time.Sleep,
		// Buffered so a reboot request never blocks the handler even if
		// the daemon is mid-cleanup.
		actions: make(chan PowerAction, 2),
	}
}

// Actions delivers queued machine-level power actions to the daemon.
func (s *Service) Actions() <-chan PowerAction {
	return s.actions
}

// Ping reports liveness.
func (s *Service) Ping() bool { return true }

// Version returns the daemon's release version.
func (s *Service) Version() string { return version.Version }

// TurnOn switches the named outputs on, in the order given. Results are
// positional: true/false for attempted outputs, nil for names that do not
// exist.
func (s *Service) TurnOn(names []string) []*bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkSwitch(names, func(c *power.Channel) bool { return c.TurnOn() })
}

// TurnOff switches the named outputs off. Results are positional like
// TurnOn.
func (s *Service) TurnOff(names []string) []*bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkSwitch(names, func(c *power.Channel) bool { return c.TurnOff() })
}

// IsOn reports the last commanded state of the named outputs. Results are
// positional, nil for unknown names.
func (s *Service) IsOn(names []string) []*bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*bool, len(names))
	for i, name := range names {
		c := s.reg.Get(name)
		if c == nil {
			continue
		}
		on := c.IsOn()
		out[i] = &on
	}
	return out
}

// TurnAllOn switches every output on, paced to limit inrush.
func (s *Service) TurnAllOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.TurnAllOn()
}

// TurnAllOff switches every output off.
func (s *Service) TurnAllOff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.TurnAllOff()
}

// Readings senses every output. Outputs whose ADC read failed are absent
// from the map; the failure is logged, not fatal, so one dead sense chain
// cannot blind the whole unit.
func (s *Service) Readings() (map[string]power.Reading, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]power.Reading, 32)
	for _, c := range s.reg.All() {
		r, err := c.Sense()
		if err != nil {
			log.Printf("server: %v", err)
			continue
		}
		out[c.Name()] = r
		if s.met != nil {
			s.met.ObserveReading(c.Name(), r)
		}
	}
	return out, time.Now()
}

// Environment reads the humidity/temperature sensor.
func (s *Service) Environment() (envsensor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.env.Read()
	if err != nil {
		return envsensor.Reading{}, err
	}
	if s.met != nil {
		s.met.ObserveEnv(r)
	}
	return r, nil
}

// RequestReboot queues a machine reboot. Deliberately does not take the
// mutex: reboot is the recovery path for a wedged bus transaction.
func (s *Service) RequestReboot() {
	s.queue(ActionReboot)
}

// RequestShutdown queues a machine power-off. Like RequestReboot, it skips
// the mutex.
func (s *Service) RequestShutdown() {
	s.queue(ActionShutdown)
}

func (s *Service) queue(a PowerAction) {
	select {
	case s.actions <- a:
	default:
		log.Printf("server: dropping duplicate %s request", a)
	}
}

func (s *Service) bulkSwitch(names []string, op func(*power.Channel) bool) []*bool {
	out := make([]*bool, len(names))
	for i, name := range names {
		c := s.reg.Get(name)
		if c == nil {
			log.Printf("server: request for unknown output %q", name)
			continue
		}
		ok := op(c)
		out[i] = &ok
		if s.delay > 0 && i < len(names)-1 {
			s.sleep(s.delay)
		}
	}
	return out
}
