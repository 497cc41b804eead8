// Package relay drives the heat pump and circulation pump relays.
// Relay state is write-only: drivers never report what a relay is doing.
package relay

import (
	"errors"
	"fmt"

	"github.com/nergy-se/solardivert/pkg/fault"
)

type Relay int

const (
	HeatPump Relay = iota
	CirculationPump
)

func (r Relay) String() string {
	switch r {
	case HeatPump:
		return "heat pump"
	case CirculationPump:
		return "circulation pump"
	}
	return fmt.Sprintf("Relay(%d)", int(r))
}

// Driver writes relay outputs. Set must be idempotent and return quickly.
type Driver interface {
	Set(r Relay, on bool) error
	Close() error
}

// AllOff drops the heat pump before the circulation pump. Both writes are
// attempted even if the first fails.
func AllOff(d Driver) error {
	var errs []error
	for _, r := range []Relay{HeatPump, CirculationPump} {
		if err := d.Set(r, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func actuatorError(r Relay, on bool, err error) error {
	return fmt.Errorf("set %s to %t: %v: %w", r, on, err, fault.ErrActuator)
}
