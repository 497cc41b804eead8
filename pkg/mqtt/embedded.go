package mqtt

import (
	"context"
	"fmt"
	"sync"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/nergy-se/solardivert/pkg/state"
)

// Embedded runs an MQTT broker in process and publishes through its inline client.
type Embedded struct {
	server *mqttv2.Server
	topic  string
}

// Start starts the broker listening on address. It is closed when ctx is done.
// An empty topic publishes to DefaultTopic.
func Start(ctx context.Context, wg *sync.WaitGroup, address, topic string) (*Embedded, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	err := server.AddListener(tcp)
	if err != nil {
		return nil, fmt.Errorf("error adding listener %s: %w", address, err)
	}

	err = server.Serve()
	if err != nil {
		return nil, err
	}

	wg.Add(1)
	go func() {
		<-ctx.Done()
		server.Close()
		wg.Done()
	}()
	return &Embedded{server: server, topic: topic}, nil
}

func (e *Embedded) Publish(s *state.State) error {
	payload, err := FormatPayload(s)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return e.server.Publish(e.topic, payload, true, 0)
}

// Close is a no-op; the broker lives until its context is done.
func (e *Embedded) Close() error {
	return nil
}
