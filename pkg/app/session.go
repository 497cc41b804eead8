package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nergy-se/solardivert/pkg/classify"
	"github.com/nergy-se/solardivert/pkg/esmart"
	"github.com/nergy-se/solardivert/pkg/fault"
	"github.com/nergy-se/solardivert/pkg/fsm"
	"github.com/nergy-se/solardivert/pkg/heattrap"
	"github.com/nergy-se/solardivert/pkg/mqtt"
	"github.com/nergy-se/solardivert/pkg/state"
	"github.com/sirupsen/logrus"
)

// ChargeSource polls the charge controller.
type ChargeSource interface {
	Poll() (*esmart.Reading, error)
}

// Temperatures delivers parsed temperature lines and link failures.
type Temperatures interface {
	Readings() <-chan heattrap.Reading
	Errs() <-chan error
}

// Session is one run of the control loop. It feeds exactly one event per
// iteration to the machine and owns it for its whole life.
type Session struct {
	machine    *fsm.Machine
	charge     ChargeSource
	temps      Temperatures
	thresholds classify.Thresholds
	interval   time.Duration
	publisher  mqtt.Publisher

	// time left until the next charge poll
	budget   time.Duration
	polls    int
	snapshot state.State

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewSession(machine *fsm.Machine, charge ChargeSource, temps Temperatures, thresholds classify.Thresholds, interval time.Duration, publisher mqtt.Publisher) *Session {
	return &Session{
		machine:    machine,
		charge:     charge,
		temps:      temps,
		thresholds: thresholds,
		interval:   interval,
		publisher:  publisher,
		now:        time.Now,
		after:      time.After,
	}
}

// Run drops both relays and then steps until ctx is done or a fatal fault occurs.
func (s *Session) Run(ctx context.Context) error {
	err := s.machine.ForceOff()
	if err != nil {
		return err
	}
	s.publish()

	for {
		err = s.Step(ctx)
		if err == nil {
			continue
		}
		if !fault.Fatal(err) && ctx.Err() == nil {
			logrus.Warnf("app: %s", err)
			continue
		}
		return err
	}
}

// Step runs one iteration: an expired guard timer first, then a bounded wait
// for temperature data, then the charge poll when its budget is used up.
func (s *Session) Step(ctx context.Context) error {
	if s.machine.Expired(s.now()) {
		logrus.Info("app: delay expired")
		return s.dispatch(fsm.EventTimeout)
	}

	wait := s.budget
	if deadline, armed := s.machine.Timer(); armed {
		if untilExpiry := deadline.Sub(s.now()); untilExpiry < wait {
			wait = untilExpiry
		}
	}
	if wait < 0 {
		wait = 0
	}

	before := s.now()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-s.temps.Errs():
		return err
	case r := <-s.temps.Readings():
		s.budget -= s.now().Sub(before)
		return s.temperature(r)
	case <-s.after(wait):
	}

	s.budget -= s.now().Sub(before)
	if s.budget > 0 {
		return nil
	}
	return s.poll()
}

// Polls returns the number of successful charge polls.
func (s *Session) Polls() int {
	return s.polls
}

func (s *Session) temperature(r heattrap.Reading) error {
	s.snapshot.Collector = state.Pointer(r.Collector)
	s.snapshot.Tank = state.Pointer(r.Tank)
	s.snapshot.Ambient = state.Pointer(r.Ambient)

	ev, ok := s.thresholds.Temperature(r)
	status := ""
	if ok {
		status = ev.String()
	}
	logrus.WithFields(logrus.Fields{
		"collector": r.Collector,
		"tank":      r.Tank,
		"ambient":   r.Ambient,
	}).Infof("app: temperature sensors %s", status)

	if !ok {
		return nil
	}
	return s.dispatch(ev)
}

func (s *Session) poll() error {
	r, err := s.charge.Poll()
	if err != nil {
		return fmt.Errorf("charge poll: %w", err)
	}
	s.budget = s.interval
	s.polls++

	s.snapshot.ChargeMode = state.Pointer(r.Mode.String())
	s.snapshot.BatteryVoltage = state.Pointer(r.BatteryVoltage)
	s.snapshot.ChargeCurrent = state.Pointer(r.ChargeCurrent)
	s.snapshot.ChargePower = state.Pointer(r.ChargePower)
	s.snapshot.StateOfCharge = state.Pointer(r.StateOfCharge)

	ev := s.thresholds.Charge(r)
	logrus.WithFields(logrus.Fields{
		"mode":    r.Mode.String(),
		"battery": fmt.Sprintf("%.1fV", r.BatteryVoltage),
		"current": fmt.Sprintf("%.1fA", r.ChargeCurrent),
		"soc":     r.StateOfCharge,
	}).Infof("app: charge status %s", ev)
	return s.dispatch(ev)
}

func (s *Session) dispatch(ev fsm.Event) error {
	err := s.machine.Fire(ev)
	s.snapshot.LastEvent = ev.String()
	s.publish()
	return err
}

func (s *Session) publish() {
	if s.publisher == nil {
		return
	}
	heat, circ := s.machine.Commanded()
	s.snapshot.Time = s.now()
	s.snapshot.State = s.machine.State().String()
	s.snapshot.HeatPump = state.Pointer(heat)
	s.snapshot.CirculationPump = state.Pointer(circ)
	s.snapshot.TimerExpiry = nil
	if deadline, armed := s.machine.Timer(); armed {
		s.snapshot.TimerExpiry = state.Pointer(deadline)
	}
	err := s.publisher.Publish(&s.snapshot)
	if err != nil {
		logrus.Warnf("app: publish state: %s", err)
	}
}
