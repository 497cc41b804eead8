package classify

import (
	"testing"

	"github.com/nergy-se/solardivert/pkg/esmart"
	"github.com/nergy-se/solardivert/pkg/fsm"
	"github.com/nergy-se/solardivert/pkg/heattrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bank48 = Battery{
	Cells:        24,
	FullVolt:     14.2,
	FullVoltCV:   13.8,
	LowVolt:      12.4,
	CriticalVolt: 12.0,
	FullPower:    600,
}

func TestScale(t *testing.T) {
	th := bank48.Scale(55, 54)
	assert.InDelta(t, 56.8, th.FullVoltage, 1e-9)
	assert.InDelta(t, 55.2, th.FullVoltageCV, 1e-9)
	assert.InDelta(t, 49.6, th.LowVoltage, 1e-9)
	assert.InDelta(t, 48.0, th.CriticalVoltage, 1e-9)
	assert.InDelta(t, 12.5, th.FullCurrent, 1e-9)
	assert.Equal(t, 55, th.HotDegrees)
	assert.Equal(t, 54, th.ColdDegrees)
}

func TestCharge(t *testing.T) {
	th := bank48.Scale(55, 54)

	var tests = []struct {
		name     string
		given    esmart.Reading
		expected fsm.Event
	}{
		{
			name:     "critical in float",
			given:    esmart.Reading{Mode: esmart.ModeFloat, BatteryVoltage: 47.5, ChargeCurrent: 1},
			expected: fsm.EventCritical,
		},
		{
			name:     "low",
			given:    esmart.Reading{Mode: esmart.ModeCC, BatteryVoltage: 49.0, ChargeCurrent: 20},
			expected: fsm.EventLow,
		},
		{
			name:     "low boundary is not low",
			given:    esmart.Reading{Mode: esmart.ModeCC, BatteryVoltage: 49.6, ChargeCurrent: 20},
			expected: fsm.EventTick,
		},
		{
			name:     "critical boundary is low",
			given:    esmart.Reading{Mode: esmart.ModeCC, BatteryVoltage: 48.0, ChargeCurrent: 20},
			expected: fsm.EventLow,
		},
		{
			name:     "full in CV",
			given:    esmart.Reading{Mode: esmart.ModeCV, BatteryVoltage: 55.2, ChargeCurrent: 3},
			expected: fsm.EventFull,
		},
		{
			name:     "full in float",
			given:    esmart.Reading{Mode: esmart.ModeFloat, BatteryVoltage: 55.6, ChargeCurrent: 0.4},
			expected: fsm.EventFull,
		},
		{
			name:     "CV voltage in CC mode is not full",
			given:    esmart.Reading{Mode: esmart.ModeCC, BatteryVoltage: 55.2, ChargeCurrent: 3},
			expected: fsm.EventTick,
		},
		{
			name:     "absolute full in any mode",
			given:    esmart.Reading{Mode: esmart.ModeCC, BatteryVoltage: 56.8, ChargeCurrent: 3},
			expected: fsm.EventFull,
		},
		{
			name:     "still charging hard",
			given:    esmart.Reading{Mode: esmart.ModeCV, BatteryVoltage: 56.9, ChargeCurrent: 12.5},
			expected: fsm.EventTick,
		},
		{
			name:     "normal",
			given:    esmart.Reading{Mode: esmart.ModeFloat, BatteryVoltage: 52.0, ChargeCurrent: 2},
			expected: fsm.EventTick,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, th.Charge(&tt.given))
		})
	}
}

func TestTemperature(t *testing.T) {
	th := Thresholds{HotDegrees: 60, ColdDegrees: 50}

	ev, ok := th.Temperature(heattrap.Reading{Tank: 60})
	assert.True(t, ok)
	assert.Equal(t, fsm.EventHot, ev)

	ev, ok = th.Temperature(heattrap.Reading{Tank: 50})
	assert.True(t, ok)
	assert.Equal(t, fsm.EventCold, ev)

	_, ok = th.Temperature(heattrap.Reading{Tank: 55, Collector: 90})
	assert.False(t, ok)
}

func TestTemperatureFromLine(t *testing.T) {
	r, err := heattrap.ParseLine([]byte("THx, 1, 2, 3, 4, 5, 6, 7, 99"))
	require.NoError(t, err)
	assert.Equal(t, heattrap.Reading{Collector: 2, Tank: 3, Ambient: 99}, *r)

	th := Thresholds{HotDegrees: 3, ColdDegrees: 1}
	ev, ok := th.Temperature(*r)
	assert.True(t, ok)
	assert.Equal(t, fsm.EventHot, ev)
}

func TestDefaultBandIsOneDegree(t *testing.T) {
	th := bank48.Scale(55, 54)

	ev, _ := th.Temperature(heattrap.Reading{Tank: 55})
	assert.Equal(t, fsm.EventHot, ev)
	ev, _ = th.Temperature(heattrap.Reading{Tank: 54})
	assert.Equal(t, fsm.EventCold, ev)
}
