package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nergy-se/solardivert/pkg/alarm"
	"github.com/nergy-se/solardivert/pkg/api/v1/config"
	"github.com/nergy-se/solardivert/pkg/esmart"
	"github.com/nergy-se/solardivert/pkg/fault"
	"github.com/nergy-se/solardivert/pkg/fsm"
	"github.com/nergy-se/solardivert/pkg/heattrap"
	"github.com/nergy-se/solardivert/pkg/modbusclient"
	"github.com/nergy-se/solardivert/pkg/mqtt"
	"github.com/nergy-se/solardivert/pkg/relay"
	"github.com/nergy-se/solardivert/pkg/state"
	"github.com/nergy-se/solardivert/pkg/version"
	"github.com/sirupsen/logrus"
)

// ChargeLink is an open connection to the charge controller.
type ChargeLink interface {
	ChargeSource
	io.Closer
}

// Links opens the outside world. Charge and Temperature are opened again for
// every session; Relays and Publisher once per process.
type Links struct {
	Charge      func() (ChargeLink, error)
	Temperature func() (io.ReadCloser, error)
	Relays      func() (relay.Driver, error)
	Publisher   func(ctx context.Context, wg *sync.WaitGroup) (mqtt.Publisher, error)
}

type App struct {
	wg     *sync.WaitGroup
	config *config.CliConfig
	links  Links

	relays    relay.Driver
	publisher mqtt.Publisher
	alarms    *alarm.ActiveAlarms
	now       func() time.Time
}

func New(config *config.CliConfig) *App {
	return NewWithLinks(config, DefaultLinks(config))
}

func NewWithLinks(config *config.CliConfig, links Links) *App {
	return &App{
		wg:     &sync.WaitGroup{},
		config: config,
		links:  links,
		alarms: &alarm.ActiveAlarms{},
		now:    time.Now,
	}
}

// DefaultLinks opens the serial ports, sockets and relay hardware named in config.
func DefaultLinks(c *config.CliConfig) Links {
	return Links{
		Charge: func() (ChargeLink, error) {
			if c.EsmartSerial != "" {
				return esmart.OpenSerial(c.EsmartSerial, c.PollTimeout())
			}
			return esmart.DialTCP(c.EsmartAddress, c.PollTimeout())
		},
		Temperature: func() (io.ReadCloser, error) {
			return heattrap.OpenSerial(c.HeattrapSerial, 100*time.Millisecond)
		},
		Relays: func() (relay.Driver, error) {
			switch c.RelayDriver {
			case config.RelayDriverModbus:
				client, err := modbusclient.Dial(c.RelayAddress, byte(c.RelaySlaveID), 2*time.Second)
				if err != nil {
					return nil, err
				}
				return relay.NewModbus(client, uint16(c.HeatPumpRelay), uint16(c.CirculationPumpRelay)), nil
			case config.RelayDriverGPIO:
				return relay.NewGPIO(c.GpioChip, c.HeatPumpRelay, c.CirculationPumpRelay, c.GpioActiveLow)
			}
			return relay.NewDummy(), nil
		},
		Publisher: func(ctx context.Context, wg *sync.WaitGroup) (mqtt.Publisher, error) {
			switch c.MQTTMode {
			case config.MQTTModeEmbedded:
				return mqtt.Start(ctx, wg, c.MQTTListen, c.MQTTTopic)
			case config.MQTTModeBroker:
				return mqtt.NewClient(c.MQTTBroker, c.MQTTClientID, c.MQTTTopic)
			}
			return nil, nil
		},
	}
}

// Start opens the relays, drives them off and starts the supervisor loop.
func (a *App) Start(ctx context.Context) error {
	logrus.Infof("app: starting %s", version.Version)

	relays, err := a.links.Relays()
	if err != nil {
		return fmt.Errorf("error opening relays: %w", err)
	}
	err = relay.AllOff(relays)
	if err != nil {
		relays.Close()
		return fmt.Errorf("error switching relays off: %w", err)
	}
	a.relays = relays

	if a.links.Publisher != nil {
		a.publisher, err = a.links.Publisher(ctx, a.wg)
		if err != nil {
			relays.Close()
			return fmt.Errorf("error starting status publisher: %w", err)
		}
	}

	a.wg.Add(1)
	go a.supervise(ctx)
	return nil
}

func (a *App) Wait() {
	a.wg.Wait()
}

// supervise runs sessions until ctx is done. Only fatal faults restart a
// session; the failed one has already dropped the relays and the next one
// starts after the retry backoff.
func (a *App) supervise(ctx context.Context) {
	defer a.wg.Done()
	defer a.shutdown()

	for {
		recovered, err := a.runSession(ctx)
		if ctx.Err() != nil || !fault.Fatal(err) {
			logrus.Infof("app: shutting down: %v", err)
			return
		}

		if recovered && a.alarms.Clear() {
			logrus.Info("app: previous faults cleared")
		}
		kind := fault.KindOf(err)
		if a.alarms.Add(kind) {
			logrus.WithField("fault", string(kind)).Errorf("app: session failed: %s", err)
		} else {
			logrus.WithField("fault", string(kind)).Warnf("app: session failed again: %s", err)
		}
		a.publishFault(kind)

		logrus.Infof("app: sleeping %s before retrying", a.config.RetryBackoff())
		select {
		case <-ctx.Done():
			logrus.Info("app: shutting down")
			return
		case <-time.After(a.config.RetryBackoff()):
		}
	}
}

// runSession runs one session and reports whether it got as far as a
// successful charge poll before failing.
func (a *App) runSession(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	machine := fsm.New(a.relays, a.config.Delays(), a.now)
	defer func() {
		err := machine.ForceOff()
		if err != nil {
			logrus.Errorf("app: error switching relays off: %s", err)
		}
	}()

	charge, err := a.links.Charge()
	if err != nil {
		return false, err
	}
	defer charge.Close()

	port, err := a.links.Temperature()
	if err != nil {
		return false, err
	}
	defer port.Close()

	source := heattrap.NewSource(port)
	go source.Run(ctx)

	session := NewSession(machine, charge, source, a.config.Thresholds(), a.config.PollInterval(), a.publisher)
	session.now = a.now
	err = session.Run(ctx)
	return session.Polls() > 0, err
}

func (a *App) publishFault(kind fault.Kind) {
	if a.publisher == nil {
		return
	}
	err := a.publisher.Publish(&state.State{
		Time:            a.now(),
		State:           fsm.Off.String(),
		HeatPump:        state.Pointer(false),
		CirculationPump: state.Pointer(false),
		Fault:           string(kind),
	})
	if err != nil {
		logrus.Warnf("app: publish fault: %s", err)
	}
}

func (a *App) shutdown() {
	err := relay.AllOff(a.relays)
	if err != nil {
		logrus.Errorf("app: error switching relays off: %s", err)
	}
	err = a.relays.Close()
	if err != nil {
		logrus.Errorf("app: error closing relays: %s", err)
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
}
