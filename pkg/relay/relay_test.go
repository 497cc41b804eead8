package relay

import (
	"errors"
	"testing"

	"github.com/nergy-se/solardivert/pkg/fault"
	"github.com/stretchr/testify/assert"
)

func TestAllOffOrder(t *testing.T) {
	f := NewFake()
	assert.NoError(t, f.Set(CirculationPump, true))
	assert.NoError(t, f.Set(HeatPump, true))
	f.Reset()

	assert.NoError(t, AllOff(f))
	assert.Equal(t, []Command{
		{Relay: HeatPump, On: false},
		{Relay: CirculationPump, On: false},
	}, f.History())
	assert.False(t, f.Output(HeatPump))
	assert.False(t, f.Output(CirculationPump))
}

func TestAllOffError(t *testing.T) {
	f := NewFake()
	f.SetError = errors.New("bus error")

	err := AllOff(f)
	assert.ErrorIs(t, err, fault.ErrActuator)
}

type fakeCoils struct {
	writes map[uint16]bool
	err    error
}

func (f *fakeCoils) WriteSingleCoil(address uint16, on bool) error {
	if f.err != nil {
		return f.err
	}
	f.writes[address] = on
	return nil
}

func (f *fakeCoils) Close() error {
	return nil
}

func TestModbusCoils(t *testing.T) {
	coils := &fakeCoils{writes: make(map[uint16]bool)}
	m := NewModbus(coils, 1, 0)

	assert.NoError(t, m.Set(HeatPump, true))
	assert.NoError(t, m.Set(CirculationPump, true))
	assert.Equal(t, map[uint16]bool{0: true, 1: true}, coils.writes)

	assert.NoError(t, AllOff(m))
	assert.Equal(t, map[uint16]bool{0: false, 1: false}, coils.writes)

	coils.err = errors.New("timeout")
	assert.ErrorIs(t, m.Set(HeatPump, true), fault.ErrActuator)
}

func TestRelayString(t *testing.T) {
	assert.Equal(t, "heat pump", HeatPump.String())
	assert.Equal(t, "circulation pump", CirculationPump.String())
}
