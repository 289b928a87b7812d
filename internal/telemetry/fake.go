package telemetry

// FakePublisher records published telemetry for test assertions.
type FakePublisher struct {
	// Readings contains all readings snapshots that were published.
	Readings []ReadingsSnapshot

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by both publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PublishReadings records the snapshot.
func (f *FakePublisher) PublishReadings(snap ReadingsSnapshot) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Readings = append(f.Readings, snap)
	return nil
}

// PublishSystem records the event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}
