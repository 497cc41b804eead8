package config

import (
	"fmt"
	"math"
	"time"

	"github.com/koding/multiconfig"

	"github.com/nergy-se/solardivert/pkg/classify"
	"github.com/nergy-se/solardivert/pkg/fsm"
)

// Relay drivers.
const (
	RelayDriverModbus = "modbus"
	RelayDriverGPIO   = "gpio"
	RelayDriverDummy  = "dummy"
)

// MQTT modes.
const (
	MQTTModeOff      = "off"
	MQTTModeEmbedded = "embedded"
	MQTTModeBroker   = "broker"
)

type CliConfig struct {
	// EsmartAddress is a host:port of a serial bridge. EsmartSerial takes precedence when set.
	EsmartAddress string `default:"containerpi4.local:8888"`
	EsmartSerial  string
	PollTimeoutMs int `default:"1000"`

	HeattrapSerial string `default:"/dev/ttyACM0"`

	RelayDriver          string `default:"dummy"`
	RelayAddress         string
	RelaySlaveID         int    `default:"1"`
	HeatPumpRelay        int    `default:"1"`
	CirculationPumpRelay int    `default:"0"`
	GpioChip             string `default:"gpiochip0"`
	GpioActiveLow        bool

	// Battery voltages are per 12 V block and scaled by Cells/6.
	Cells        int     `default:"24"`
	FullVolt     float64 `default:"14.2"`
	FullVoltCV   float64 `default:"13.8"`
	LowVolt      float64 `default:"12.4"`
	CriticalVolt float64 `default:"12.0"`
	FullPower    float64 `default:"600"`

	HotDegrees  int `default:"55"`
	ColdDegrees int `default:"54"`

	TickSecs          int `default:"5"`
	LowBatteryTimeout int `default:"120"`
	CirculationDelay  int `default:"30"`
	RestartDelay      int `default:"300"`
	RetrySleep        int `default:"30"`

	MQTTMode     string `default:"off"`
	MQTTListen   string `default:":1883"`
	MQTTBroker   string `default:"tcp://localhost:1883"`
	MQTTTopic    string `default:"solardivert/state"`
	MQTTClientID string `default:"solardivert"`

	LogLevel string `default:"info"`
}

func (c *CliConfig) Thresholds() classify.Thresholds {
	b := classify.Battery{
		Cells:        c.Cells,
		FullVolt:     c.FullVolt,
		FullVoltCV:   c.FullVoltCV,
		LowVolt:      c.LowVolt,
		CriticalVolt: c.CriticalVolt,
		FullPower:    c.FullPower,
	}
	return b.Scale(c.HotDegrees, c.ColdDegrees)
}

func (c *CliConfig) Delays() fsm.Delays {
	return fsm.Delays{
		CirculationDelay:  seconds(c.CirculationDelay),
		LowBatteryTimeout: seconds(c.LowBatteryTimeout),
		RestartDelay:      seconds(c.RestartDelay),
	}
}

func (c *CliConfig) PollInterval() time.Duration {
	return seconds(c.TickSecs)
}

func (c *CliConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

func (c *CliConfig) RetryBackoff() time.Duration {
	return seconds(c.RetrySleep)
}

// Validate checks the configuration once at startup.
func (c *CliConfig) Validate() error {
	if c.Cells <= 0 || c.Cells%6 != 0 {
		return fmt.Errorf("cells must be a positive multiple of 6, got %d", c.Cells)
	}
	if c.CriticalVolt >= c.LowVolt {
		return fmt.Errorf("criticalvolt %.2f must be below lowvolt %.2f", c.CriticalVolt, c.LowVolt)
	}
	if c.LowVolt >= c.FullVoltCV || c.FullVoltCV > c.FullVolt {
		return fmt.Errorf("expected lowvolt < fullvoltcv <= fullvolt, got %.2f %.2f %.2f", c.LowVolt, c.FullVoltCV, c.FullVolt)
	}
	if c.ColdDegrees >= c.HotDegrees {
		return fmt.Errorf("colddegrees %d must be below hotdegrees %d", c.ColdDegrees, c.HotDegrees)
	}
	if c.TickSecs <= 0 {
		return fmt.Errorf("ticksecs must be positive")
	}
	if c.EsmartSerial == "" && c.EsmartAddress == "" {
		return fmt.Errorf("one of esmartserial or esmartaddress is required")
	}
	if c.HeatPumpRelay < 0 || c.HeatPumpRelay > math.MaxUint16 || c.CirculationPumpRelay < 0 || c.CirculationPumpRelay > math.MaxUint16 {
		return fmt.Errorf("relay addresses must be within 0-%d, got %d and %d", math.MaxUint16, c.HeatPumpRelay, c.CirculationPumpRelay)
	}
	if c.HeatPumpRelay == c.CirculationPumpRelay {
		return fmt.Errorf("heatpumprelay and circulationpumprelay are both %d", c.HeatPumpRelay)
	}
	if c.RelaySlaveID < 0 || c.RelaySlaveID > math.MaxUint8 {
		return fmt.Errorf("relayslaveid must be within 0-%d, got %d", math.MaxUint8, c.RelaySlaveID)
	}
	switch c.RelayDriver {
	case RelayDriverModbus:
		if c.RelayAddress == "" {
			return fmt.Errorf("relayaddress is required for the modbus relay driver")
		}
	case RelayDriverGPIO, RelayDriverDummy:
	default:
		return fmt.Errorf("unknown relay driver %q", c.RelayDriver)
	}
	switch c.MQTTMode {
	case MQTTModeOff, MQTTModeEmbedded, MQTTModeBroker:
	default:
		return fmt.Errorf("unknown mqtt mode %q", c.MQTTMode)
	}
	return nil
}

// Loaders returns the default tags, then the TOML file at path if one is
// given, then the environment with the SOLARDIVERT prefix.
func Loaders(path string) []multiconfig.Loader {
	loaders := []multiconfig.Loader{&multiconfig.TagLoader{}}
	if path != "" {
		loaders = append(loaders, &multiconfig.TOMLLoader{Path: path})
	}
	return append(loaders, &multiconfig.EnvironmentLoader{Prefix: "SOLARDIVERT"})
}

func seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
