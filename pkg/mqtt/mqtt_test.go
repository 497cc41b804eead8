package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/nergy-se/solardivert/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	assert.Nil(t, f.Last())

	require.NoError(t, f.Publish(&state.State{State: "on", HeatPump: state.Pointer(true)}))
	require.NoError(t, f.Publish(&state.State{State: "hot"}))

	assert.Equal(t, "hot", f.Last().State)
	assert.Len(t, f.Payloads, 2)
	assert.JSONEq(t, `{"time":"0001-01-01T00:00:00Z","state":"on","heatPump":true}`, string(f.Payloads[0]))
}

func TestEmbeddedBrokerDeliversRetainedState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer func() {
		cancel()
		wg.Wait()
	}()

	broker, err := Start(ctx, wg, "127.0.0.1:18830", "")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(&state.State{State: "on", BatteryVoltage: state.Pointer(55.1)}))

	received := make(chan []byte, 1)
	opts := paho.NewClientOptions().AddBroker("tcp://127.0.0.1:18830").SetClientID("test")
	client := paho.NewClient(opts)
	token := client.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer client.Disconnect(100)

	token = client.Subscribe(DefaultTopic, 0, func(_ paho.Client, msg paho.Message) {
		select {
		case received <- msg.Payload():
		default:
		}
	})
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	select {
	case payload := <-received:
		s := state.State{}
		require.NoError(t, json.Unmarshal(payload, &s))
		assert.Equal(t, "on", s.State)
		assert.Equal(t, 55.1, *s.BatteryVoltage)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for retained message")
	}
}

// stalledBroker holds every publish until release is closed.
type stalledBroker struct {
	paho.Client
	release chan struct{}

	sync.Mutex
	payloads [][]byte
}

func (b *stalledBroker) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b.Lock()
	b.payloads = append(b.payloads, payload.([]byte))
	b.Unlock()
	return &heldToken{release: b.release}
}

func (b *stalledBroker) Disconnect(quiesce uint) {}

func (b *stalledBroker) published() [][]byte {
	b.Lock()
	defer b.Unlock()
	return append([][]byte(nil), b.payloads...)
}

type heldToken struct {
	release chan struct{}
}

func (t *heldToken) Wait() bool {
	<-t.release
	return true
}

func (t *heldToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.release:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *heldToken) Done() <-chan struct{} { return t.release }
func (t *heldToken) Error() error          { return nil }

func TestClientPublishDoesNotWaitForBroker(t *testing.T) {
	broker := &stalledBroker{release: make(chan struct{})}
	c := newClient(broker, "")
	defer c.Close()
	assert.Equal(t, DefaultTopic, c.topic)

	require.NoError(t, c.Publish(&state.State{State: "off"}))
	require.Eventually(t, func() bool {
		return len(broker.published()) == 1
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Publish(&state.State{State: "starting circulation pump"}))
	require.NoError(t, c.Publish(&state.State{State: "on"}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(broker.release)
	require.Eventually(t, func() bool {
		return len(broker.published()) == 2
	}, time.Second, 5*time.Millisecond)

	s := state.State{}
	require.NoError(t, json.Unmarshal(broker.published()[1], &s))
	assert.Equal(t, "on", s.State)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, broker.published(), 2)
}
