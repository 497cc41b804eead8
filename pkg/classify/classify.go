// Package classify maps telemetry readings to state machine events.
package classify

import (
	"github.com/nergy-se/solardivert/pkg/esmart"
	"github.com/nergy-se/solardivert/pkg/fsm"
	"github.com/nergy-se/solardivert/pkg/heattrap"
)

// Thresholds are absolute bank values, already scaled to the battery voltage.
type Thresholds struct {
	// FullVoltage marks a full bank in any charge mode.
	FullVoltage float64
	// FullVoltageCV marks a full bank while the controller is in CV or FLOAT.
	FullVoltageCV float64
	// FullCurrent is the charge current the bank must be below to count as full.
	FullCurrent     float64
	LowVoltage      float64
	CriticalVoltage float64

	HotDegrees  int
	ColdDegrees int
}

// Battery describes the bank in per 12 V block figures.
type Battery struct {
	Cells        int
	FullVolt     float64
	FullVoltCV   float64
	LowVolt      float64
	CriticalVolt float64
	// FullPower is the charge power below which a charged bank counts as full.
	FullPower float64
}

// Scale converts per-block voltages to bank thresholds. A 12 V block has six cells.
func (b Battery) Scale(hotDegrees, coldDegrees int) Thresholds {
	blocks := float64(b.Cells) / 6.0
	return Thresholds{
		FullVoltage:     b.FullVolt * blocks,
		FullVoltageCV:   b.FullVoltCV * blocks,
		FullCurrent:     b.FullPower / (float64(b.Cells) * 2.0),
		LowVoltage:      b.LowVolt * blocks,
		CriticalVoltage: b.CriticalVolt * blocks,
		HotDegrees:      hotDegrees,
		ColdDegrees:     coldDegrees,
	}
}

// Charge classifies a charge controller reading. Critical and low are checked
// before full.
func (t Thresholds) Charge(r *esmart.Reading) fsm.Event {
	switch {
	case r.BatteryVoltage < t.CriticalVoltage:
		return fsm.EventCritical
	case r.BatteryVoltage < t.LowVoltage:
		return fsm.EventLow
	case t.full(r):
		return fsm.EventFull
	}
	return fsm.EventTick
}

func (t Thresholds) full(r *esmart.Reading) bool {
	if r.ChargeCurrent >= t.FullCurrent {
		return false
	}
	if r.BatteryVoltage >= t.FullVoltage {
		return true
	}
	regulating := r.Mode == esmart.ModeCV || r.Mode == esmart.ModeFloat
	return regulating && r.BatteryVoltage >= t.FullVoltageCV
}

// Temperature classifies a tank reading. ok is false inside the comfortable band.
func (t Thresholds) Temperature(r heattrap.Reading) (ev fsm.Event, ok bool) {
	switch {
	case r.Tank >= t.HotDegrees:
		return fsm.EventHot, true
	case r.Tank <= t.ColdDegrees:
		return fsm.EventCold, true
	}
	return 0, false
}
