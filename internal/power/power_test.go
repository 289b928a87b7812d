package power

import (
	"errors"
	"testing"
	"time"
)

// fakeSwitcher records SetBit calls and can fail selected positions.
type fakeSwitcher struct {
	bits     map[int]bool
	calls    []int
	failBits map[int]bool
}

func newFakeSwitcher() *fakeSwitcher {
	return &fakeSwitcher{bits: make(map[int]bool), failBits: make(map[int]bool)}
}

func (f *fakeSwitcher) SetBit(pos int, on bool) error {
	f.calls = append(f.calls, pos)
	if f.failBits[pos] {
		return errors.New("control bus error")
	}
	f.bits[pos] = on
	return nil
}

// fakeReader returns a fixed raw value per (chip, channel).
type fakeReader struct {
	values map[[2]int]uint16
	err    error
}

func (f *fakeReader) ReadRaw(chip, channel int) (uint16, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.values[[2]int{chip, channel}], nil
}

func newTestRegistry(t *testing.T, exp1, exp2 Switcher, adcs RawReader) *Registry {
	t.Helper()
	r, err := NewRegistry(exp1, exp2, adcs, DefaultCalibration, 0)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistryNames(t *testing.T) {
	r := newTestRegistry(t, newFakeSwitcher(), newFakeSwitcher(), &fakeReader{})

	names := r.Names()
	if len(names) != 32 {
		t.Fatalf("names: got %d, want 32", len(names))
	}
	if names[0] != "A1" || names[7] != "A8" || names[8] != "B1" || names[31] != "D8" {
		t.Errorf("unexpected iteration order: %v", names)
	}
}

func TestGetRoutingDeterministic(t *testing.T) {
	r := newTestRegistry(t, newFakeSwitcher(), newFakeSwitcher(), &fakeReader{})

	for _, name := range r.Names() {
		a := r.Get(name)
		b := r.Get(name)
		if a == nil || a != b {
			t.Fatalf("Get(%s): not a stable instance", name)
		}
		if a.r != routes[name] {
			t.Errorf("Get(%s): route %+v, want %+v", name, a.r, routes[name])
		}
	}

	if r.Get("a7") == nil {
		t.Error("lookup should be case-insensitive")
	}
	if r.Get("Z9") != nil {
		t.Error("Get(Z9) should be nil")
	}
}

func TestTurnOnRoutesToExpanderBit(t *testing.T) {
	exp1 := newFakeSwitcher()
	exp2 := newFakeSwitcher()
	r := newTestRegistry(t, exp1, exp2, &fakeReader{})

	// A7 is expander 1 bit 2; A1 is expander 2 bit 10.
	if !r.Get("A7").TurnOn() {
		t.Fatal("TurnOn(A7) failed")
	}
	if !exp1.bits[2] {
		t.Error("A7 should drive expander 1 bit 2")
	}
	if !r.Get("A1").TurnOn() {
		t.Fatal("TurnOn(A1) failed")
	}
	if !exp2.bits[10] {
		t.Error("A1 should drive expander 2 bit 10")
	}
}

func TestTurnOnThenIsOn(t *testing.T) {
	r := newTestRegistry(t, newFakeSwitcher(), newFakeSwitcher(), &fakeReader{})
	c := r.Get("B3")

	if c.IsOn() {
		t.Error("channel should start off")
	}
	if !c.TurnOn() || !c.IsOn() {
		t.Error("TurnOn then IsOn should report true")
	}
	if !c.TurnOff() || c.IsOn() {
		t.Error("TurnOff then IsOn should report false")
	}
}

func TestTurnOnFailureKeepsCachedState(t *testing.T) {
	exp2 := newFakeSwitcher()
	exp2.failBits[10] = true // A1
	r := newTestRegistry(t, newFakeSwitcher(), exp2, &fakeReader{})

	c := r.Get("A1")
	if c.TurnOn() {
		t.Fatal("TurnOn should report failure")
	}
	if c.IsOn() {
		t.Error("cached state must not change on a failed write")
	}
}

func TestSenseScaling(t *testing.T) {
	// A1 senses on chip 7, voltage channel 0, current channel 1.
	adcs := &fakeReader{values: map[[2]int]uint16{
		{7, 0}: 4096,
		{7, 1}: 4096,
	}}
	r := newTestRegistry(t, newFakeSwitcher(), newFakeSwitcher(), adcs)

	reading, err := r.Get("A1").Sense()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.Volts != 60.0 {
		t.Errorf("volts: got %v, want 60.0", reading.Volts)
	}
	if reading.Milliamps != 1000.0 {
		t.Errorf("milliamps: got %v, want 1000.0", reading.Milliamps)
	}
}

func TestSenseErrorIsNotZeroReading(t *testing.T) {
	adcs := &fakeReader{err: errors.New("measurement bus error")}
	r := newTestRegistry(t, newFakeSwitcher(), newFakeSwitcher(), adcs)

	_, err := r.Get("C4").Sense()
	if err == nil {
		t.Fatal("Sense must surface a read failure as an error")
	}
}

func TestTurnAllOnAttemptsEveryChannel(t *testing.T) {
	exp1 := newFakeSwitcher()
	exp2 := newFakeSwitcher()
	exp1.failBits[2] = true // A7 and C7 route here
	r := newTestRegistry(t, exp1, exp2, &fakeReader{})

	ok := r.TurnAllOn()
	if ok {
		t.Error("aggregate flag should be false when any channel fails")
	}
	if got := len(exp1.calls) + len(exp2.calls); got != 32 {
		t.Errorf("attempted %d channels, want all 32", got)
	}
}

func TestTurnAllOffDelayBetweenChannels(t *testing.T) {
	r, err := NewRegistry(newFakeSwitcher(), newFakeSwitcher(), &fakeReader{}, DefaultCalibration, DefaultSwitchDelay)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	sleeps := 0
	r.sleep = func(d time.Duration) {
		if d != DefaultSwitchDelay {
			t.Errorf("sleep: got %v, want %v", d, DefaultSwitchDelay)
		}
		sleeps++
	}

	if !r.TurnAllOff() {
		t.Fatal("TurnAllOff failed")
	}
	if sleeps != 31 {
		t.Errorf("sleeps: got %d, want 31 (between 32 channels)", sleeps)
	}
}
