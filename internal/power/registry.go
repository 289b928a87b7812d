package power

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Registry is the fixed set of all 32 channels, addressable by name. It is
// built once at startup and lives for the process lifetime.
type Registry struct {
	channels map[string]*Channel
	names    []string // lexicographic, fixes bulk iteration order
	delay    time.Duration
	sleep    func(time.Duration)
}

// NewRegistry builds every channel from the routing table. exp1 and exp2
// are the two expander chips; every channel senses through the one ADC set.
func NewRegistry(exp1, exp2 Switcher, adcs RawReader, cal Calibration, delay time.Duration) (*Registry, error) {
	r := &Registry{
		channels: make(map[string]*Channel, len(routes)),
		delay:    delay,
		sleep:    time.Sleep,
	}
	for name, rt := range routes {
		var sw Switcher
		switch rt.expander {
		case 1:
			sw = exp1
		case 2:
			sw = exp2
		default:
			return nil, fmt.Errorf("routing table: %s references expander %d", name, rt.expander)
		}
		r.channels[name] = &Channel{name: name, sw: sw, adc: adcs, r: rt, cal: cal}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the channel for the given name, or nil if the name is not a
// valid output. Lookup is case-insensitive.
func (r *Registry) Get(name string) *Channel {
	return r.channels[strings.ToUpper(name)]
}

// Names returns the channel names in iteration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns every channel in iteration order.
func (r *Registry) All() []*Channel {
	out := make([]*Channel, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.channels[name])
	}
	return out
}

// TurnAllOn switches every output on in iteration order, pausing between
// channels to limit inrush. Every channel is attempted; the return value is
// true only if all succeeded.
func (r *Registry) TurnAllOn() bool {
	return r.switchAll(func(c *Channel) bool { return c.TurnOn() })
}

// TurnAllOff switches every output off in iteration order. Every channel is
// attempted even after failures, so one jammed channel cannot leave the
// rest energized.
func (r *Registry) TurnAllOff() bool {
	return r.switchAll(func(c *Channel) bool { return c.TurnOff() })
}

func (r *Registry) switchAll(op func(*Channel) bool) bool {
	ok := true
	for i, name := range r.names {
		if !op(r.channels[name]) {
			ok = false
		}
		if r.delay > 0 && i < len(r.names)-1 {
			r.sleep(r.delay)
		}
	}
	return ok
}
