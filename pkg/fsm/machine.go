// Package fsm is the supervisory state machine for the heat pump and
// circulation pump. It is not safe for concurrent use; one control loop owns it.
package fsm

import (
	"fmt"
	"time"

	"github.com/nergy-se/solardivert/pkg/relay"
	"github.com/sirupsen/logrus"
)

// Delays are the guard timer durations.
type Delays struct {
	CirculationDelay  time.Duration
	LowBatteryTimeout time.Duration
	RestartDelay      time.Duration
}

// Machine applies the transition table and owns the single guard timer.
type Machine struct {
	state  State
	relays relay.Driver
	delays Delays
	now    func() time.Time

	timerArmed bool
	deadline   time.Time

	// commanded relay outputs; the only record of what the relays are doing
	heatPump        bool
	circulationPump bool
}

func New(relays relay.Driver, delays Delays, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		state:  Off,
		relays: relays,
		delays: delays,
		now:    now,
	}
}

func (m *Machine) State() State {
	return m.state
}

// Timer returns the guard timer deadline and whether one is armed.
func (m *Machine) Timer() (time.Time, bool) {
	return m.deadline, m.timerArmed
}

// Expired reports whether an armed timer has reached its deadline at now.
func (m *Machine) Expired(now time.Time) bool {
	return m.timerArmed && !now.Before(m.deadline)
}

// Commanded returns the relay outputs last commanded by the machine.
func (m *Machine) Commanded() (heatPump, circulationPump bool) {
	return m.heatPump, m.circulationPump
}

// Fire feeds one event to the machine. Events with no table entry for the
// current state are ignored. A timeout always clears the timer first, even
// when it is ignored, so a transition may re-arm it.
func (m *Machine) Fire(ev Event) error {
	if ev == EventTimeout {
		m.timerArmed = false
	}

	next, effects, ok := Lookup(m.state, ev)
	if !ok {
		logrus.WithFields(logrus.Fields{"state": m.state.String(), "event": ev.String()}).Warn("fsm: ignoring unexpected event")
		return nil
	}

	from := m.state
	for _, e := range effects {
		err := m.apply(e)
		if err != nil {
			return fmt.Errorf("%s on %s: %w", e, ev, err)
		}
	}
	m.state = next

	entry := logrus.WithFields(logrus.Fields{"from": from.String(), "to": next.String(), "event": ev.String()})
	if from != next || len(effects) > 0 {
		entry.Info("fsm: transition")
	} else {
		entry.Debug("fsm: transition")
	}
	return nil
}

func (m *Machine) apply(e Effect) error {
	logrus.Info("fsm: ", e)
	switch e {
	case HeatPumpOn:
		return m.set(relay.HeatPump, true)
	case HeatPumpOff:
		return m.set(relay.HeatPump, false)
	case CirculationPumpOn:
		if !m.heatPump {
			return fmt.Errorf("circulation pump requested while heat pump is off")
		}
		return m.set(relay.CirculationPump, true)
	case CirculationPumpOff:
		return m.set(relay.CirculationPump, false)
	case ArmCirculationDelay:
		m.arm(m.delays.CirculationDelay)
	case ArmLowBatteryTimeout:
		m.arm(m.delays.LowBatteryTimeout)
	case ArmRestartDelay:
		m.arm(m.delays.RestartDelay)
	case CancelTimer:
		m.timerArmed = false
	default:
		return fmt.Errorf("unknown effect %d", int(e))
	}
	return nil
}

func (m *Machine) set(r relay.Relay, on bool) error {
	err := m.relays.Set(r, on)
	if err != nil {
		return err
	}
	switch r {
	case relay.HeatPump:
		m.heatPump = on
	case relay.CirculationPump:
		m.circulationPump = on
	}
	return nil
}

// arm replaces any armed timer.
func (m *Machine) arm(d time.Duration) {
	m.deadline = m.now().Add(d)
	m.timerArmed = true
}

// ForceOff drops both relays, heat pump first, and returns the machine to Off
// with no timer. Used when a session starts and when it is torn down.
func (m *Machine) ForceOff() error {
	m.timerArmed = false
	m.state = Off
	err := relay.AllOff(m.relays)
	if err != nil {
		return err
	}
	m.heatPump = false
	m.circulationPump = false
	return nil
}
