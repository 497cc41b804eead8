//go:build !linux

package relay

import "errors"

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

func NewGPIO(chipName string, heatPumpPin, circulationPumpPin int, activeLow bool) (*GPIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (g *GPIO) Set(r Relay, on bool) error {
	return actuatorError(r, on, errors.New("gpio: not supported"))
}

func (g *GPIO) Close() error {
	return nil
}
