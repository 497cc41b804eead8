// Package esmart talks to an eSmart3 MPPT solar charge controller.
package esmart

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/nergy-se/solardivert/pkg/fault"
)

const (
	StartMarker byte = 0xaa
	// SourceMPPT is the device class byte of a charge controller packet.
	SourceMPPT byte = 3
	// PacketTypeTelemetry is the packet type answering RequestFrame.
	PacketTypeTelemetry byte = 0
	// PacketLen is the minimum length from the start marker needed to decode every field.
	PacketLen = 36
)

// RequestFrame asks the controller for its telemetry packet.
var RequestFrame = []byte{0xaa, 0x01, 0x01, 0x01, 0x00, 0x03, 0x00, 0x00, 0x1e, 0x32}

type Mode uint16

const (
	ModeIdle Mode = iota
	ModeCC
	ModeCV
	ModeFloat
	ModeStarting
	numModes
)

var modeNames = [...]string{"IDLE", "CC", "CV", "FLOAT", "STARTING"}

func (m Mode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint16(m))
}

// Reading is one decoded telemetry packet.
type Reading struct {
	Mode           Mode    `json:"mode"`
	PVVoltage      float64 `json:"pvVoltage"`
	BatteryVoltage float64 `json:"batteryVoltage"`
	ChargeCurrent  float64 `json:"chargeCurrent"`
	LoadVoltage    float64 `json:"loadVoltage"`
	LoadCurrent    float64 `json:"loadCurrent"`
	ChargePower    int     `json:"chargePower"`
	LoadPower      int     `json:"loadPower"`
	BatteryTempC   int     `json:"batteryTempC"`
	InternalTempC  int     `json:"internalTempC"`
	StateOfCharge  int     `json:"stateOfCharge"`
	CO2Grams       int     `json:"co2Grams"`
}

// Decode parses the first telemetry packet found in data.
// Bytes before the start marker are skipped.
func Decode(data []byte) (*Reading, error) {
	idx := bytes.IndexByte(data, StartMarker)
	if idx == -1 {
		return nil, fmt.Errorf("no start marker in %d bytes: %w", len(data), fault.ErrNoSignal)
	}
	data = data[idx:]
	if len(data) < 5 {
		return nil, fmt.Errorf("insufficient data (%d bytes): %w", len(data), fault.ErrNoSignal)
	}
	if data[3] != SourceMPPT {
		return nil, fmt.Errorf("source %d is not an MPPT device: %w", data[3], fault.ErrProtocolMismatch)
	}
	if data[4] != PacketTypeTelemetry {
		return nil, fmt.Errorf("packet type is %d, expected %d: %w", data[4], PacketTypeTelemetry, fault.ErrProtocolMismatch)
	}
	if len(data) < PacketLen {
		return nil, fmt.Errorf("short packet (%d of %d bytes): %w", len(data), PacketLen, fault.ErrNoSignal)
	}

	mode := Mode(u16(data, 8))
	if mode >= numModes {
		return nil, fmt.Errorf("charge mode %d out of range: %w", uint16(mode), fault.ErrProtocolMismatch)
	}

	return &Reading{
		Mode:           mode,
		PVVoltage:      scale10(u16(data, 10)),
		BatteryVoltage: scale10(u16(data, 12)),
		ChargeCurrent:  scale10(u16(data, 14)),
		LoadVoltage:    scale10(u16(data, 18)),
		LoadCurrent:    scale10(u16(data, 20)),
		ChargePower:    int(u16(data, 22)),
		LoadPower:      int(u16(data, 24)),
		BatteryTempC:   int(data[26]),
		InternalTempC:  int(data[28]),
		StateOfCharge:  int(data[30]),
		CO2Grams:       int(u16(data, 34)),
	}, nil
}

func u16(data []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(data[offset : offset+2])
}

func scale10(v uint16) float64 {
	return float64(v) / 10.0
}
