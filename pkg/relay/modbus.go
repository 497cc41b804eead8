package relay

import (
	"fmt"

	"github.com/nergy-se/solardivert/pkg/modbusclient"
	"github.com/sirupsen/logrus"
)

// Modbus drives relays on a Modbus relay board, one coil per relay.
type Modbus struct {
	client modbusclient.Client
	coils  map[Relay]uint16
}

func NewModbus(client modbusclient.Client, heatPumpCoil, circulationPumpCoil uint16) *Modbus {
	return &Modbus{
		client: client,
		coils: map[Relay]uint16{
			HeatPump:        heatPumpCoil,
			CirculationPump: circulationPumpCoil,
		},
	}
}

func (m *Modbus) Set(r Relay, on bool) error {
	coil, ok := m.coils[r]
	if !ok {
		return actuatorError(r, on, fmt.Errorf("no coil configured"))
	}
	logrus.WithFields(logrus.Fields{"relay": r.String(), "coil": coil, "on": on}).Debug("relay: modbus write")
	err := m.client.WriteSingleCoil(coil, on)
	if err != nil {
		return actuatorError(r, on, err)
	}
	return nil
}

func (m *Modbus) Close() error {
	return m.client.Close()
}
