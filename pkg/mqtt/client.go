package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/nergy-se/solardivert/pkg/state"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// Client publishes to an external MQTT broker. Publish only queues the
// snapshot; a sender goroutine delivers it, and a snapshot still queued when
// a newer one arrives is dropped since the topic is retained.
type Client struct {
	client paho.Client
	topic  string

	latest chan []byte
	done   chan struct{}
}

// NewClient connects to broker. An empty topic publishes to DefaultTopic.
func NewClient(broker, clientID, topic string) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return newClient(client, topic), nil
}

func newClient(client paho.Client, topic string) *Client {
	if topic == "" {
		topic = DefaultTopic
	}
	c := &Client{
		client: client,
		topic:  topic,
		latest: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	go c.send()
	return c
}

func (c *Client) Publish(s *state.State) error {
	payload, err := FormatPayload(s)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	for {
		select {
		case c.latest <- payload:
			return nil
		default:
		}
		select {
		case stale := <-c.latest:
			logrus.Debugf("mqtt: dropping unsent snapshot (%d bytes)", len(stale))
		default:
		}
	}
}

func (c *Client) send() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.latest:
			// QoS 0, retained so new subscribers see the last state
			token := c.client.Publish(c.topic, 0, true, payload)
			if !token.WaitTimeout(publishTimeout) {
				logrus.Warnf("mqtt: publish to %s timed out", c.topic)
				continue
			}
			if err := token.Error(); err != nil {
				logrus.Warnf("mqtt: publish to %s: %s", c.topic, err)
			}
		}
	}
}

func (c *Client) Close() error {
	close(c.done)
	c.client.Disconnect(1000)
	return nil
}
