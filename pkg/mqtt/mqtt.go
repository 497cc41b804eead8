// Package mqtt publishes supervisor status snapshots.
package mqtt

import (
	"encoding/json"

	"github.com/nergy-se/solardivert/pkg/state"
)

const DefaultTopic = "solardivert/state"

// Publisher publishes status snapshots. Publish failures must not stop the
// control loop.
type Publisher interface {
	Publish(s *state.State) error
	Close() error
}

func FormatPayload(s *state.State) ([]byte, error) {
	return json.Marshal(s)
}
