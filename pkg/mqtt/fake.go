package mqtt

import (
	"sync"

	"github.com/nergy-se/solardivert/pkg/state"
)

// FakePublisher records published snapshots for test assertions.
type FakePublisher struct {
	States   []state.State
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	Closed bool
	sync.Mutex
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(s *state.State) error {
	f.Lock()
	defer f.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(s)
	if err != nil {
		return err
	}
	f.States = append(f.States, *s)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Last returns the most recent snapshot, or nil.
func (f *FakePublisher) Last() *state.State {
	f.Lock()
	defer f.Unlock()
	if len(f.States) == 0 {
		return nil
	}
	s := f.States[len(f.States)-1]
	return &s
}

func (f *FakePublisher) Close() error {
	f.Lock()
	defer f.Unlock()
	f.Closed = true
	return nil
}
