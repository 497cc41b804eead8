//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO drives relays wired to GPIO output lines.
type GPIO struct {
	chip  *gpiocdev.Chip
	lines map[Relay]*gpiocdev.Line
}

// NewGPIO requests both lines as outputs driven low (relays off).
func NewGPIO(chipName string, heatPumpPin, circulationPumpPin int, activeLow bool) (*GPIO, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	g := &GPIO{chip: chip, lines: make(map[Relay]*gpiocdev.Line)}
	for r, pin := range map[Relay]int{HeatPump: heatPumpPin, CirculationPump: circulationPumpPin} {
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", r, pin, err)
		}
		g.lines[r] = line
	}
	return g, nil
}

func (g *GPIO) Set(r Relay, on bool) error {
	line, ok := g.lines[r]
	if !ok {
		return actuatorError(r, on, fmt.Errorf("no line requested"))
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return actuatorError(r, on, err)
	}
	return nil
}

// Close drives every line low before releasing it.
func (g *GPIO) Close() error {
	var errs []error
	for r, line := range g.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", r, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", r, err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
