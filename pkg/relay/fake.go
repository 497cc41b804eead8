package relay

import "sync"

// Command is one recorded relay write.
type Command struct {
	Relay Relay
	On    bool
}

// Fake records relay writes for test assertions.
type Fake struct {
	// Commands contains every write in order.
	Commands []Command

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	outputs map[Relay]bool
	sync.Mutex
}

func NewFake() *Fake {
	return &Fake{outputs: make(map[Relay]bool)}
}

func (f *Fake) Set(r Relay, on bool) error {
	f.Lock()
	defer f.Unlock()
	if f.SetError != nil {
		return actuatorError(r, on, f.SetError)
	}
	f.Commands = append(f.Commands, Command{Relay: r, On: on})
	if f.outputs == nil {
		f.outputs = make(map[Relay]bool)
	}
	f.outputs[r] = on
	return nil
}

// Output returns the last value written to r.
func (f *Fake) Output(r Relay) bool {
	f.Lock()
	defer f.Unlock()
	return f.outputs[r]
}

// History returns a copy of the recorded commands.
func (f *Fake) History() []Command {
	f.Lock()
	defer f.Unlock()
	return append([]Command(nil), f.Commands...)
}

// Reset clears recorded commands.
func (f *Fake) Reset() {
	f.Lock()
	defer f.Unlock()
	f.Commands = nil
	f.SetError = nil
}

func (f *Fake) Close() error {
	f.Lock()
	defer f.Unlock()
	f.Closed = true
	return nil
}
