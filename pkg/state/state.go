package state

import "time"

// State is a snapshot of the supervisor published for monitoring.
type State struct {
	Time            time.Time  `json:"time"`
	State           string     `json:"state"`
	HeatPump        *bool      `json:"heatPump,omitempty"`
	CirculationPump *bool      `json:"circulationPump,omitempty"`
	TimerExpiry     *time.Time `json:"timerExpiry,omitempty"`
	LastEvent       string     `json:"lastEvent,omitempty"`

	ChargeMode     *string  `json:"chargeMode,omitempty"`
	BatteryVoltage *float64 `json:"batteryVoltage,omitempty"`
	ChargeCurrent  *float64 `json:"chargeCurrent,omitempty"`
	ChargePower    *int     `json:"chargePower,omitempty"`
	StateOfCharge  *int     `json:"stateOfCharge,omitempty"`

	Collector *int `json:"collector,omitempty"`
	Tank      *int `json:"tank,omitempty"`
	Ambient   *int `json:"ambient,omitempty"`

	Fault string `json:"fault,omitempty"`
}

// Map returns the numeric fields that are set, booleans as 0/1.
func (s State) Map() map[string]interface{} {
	m := make(map[string]interface{})
	if s.HeatPump != nil {
		m["heatPump"] = boolToInt(*s.HeatPump)
	}
	if s.CirculationPump != nil {
		m["circulationPump"] = boolToInt(*s.CirculationPump)
	}
	if s.BatteryVoltage != nil {
		m["batteryVoltage"] = *s.BatteryVoltage
	}
	if s.ChargeCurrent != nil {
		m["chargeCurrent"] = *s.ChargeCurrent
	}
	if s.ChargePower != nil {
		m["chargePower"] = *s.ChargePower
	}
	if s.StateOfCharge != nil {
		m["stateOfCharge"] = *s.StateOfCharge
	}
	if s.Collector != nil {
		m["collector"] = *s.Collector
	}
	if s.Tank != nil {
		m["tank"] = *s.Tank
	}
	if s.Ambient != nil {
		m["ambient"] = *s.Ambient
	}

	return m
}

func Pointer[K any](val K) *K {
	return &val
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
