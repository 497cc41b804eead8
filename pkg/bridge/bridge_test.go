package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/nergy-se/solardivert/pkg/esmart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort answers every write with the configured reply, delivered in chunks,
// then times out like a quiet serial line.
type fakePort struct {
	mu       sync.Mutex
	reply    []byte
	chunk    int
	pending  []byte
	requests [][]byte
	readErr  error
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, append([]byte(nil), b...))
	p.pending = append(p.pending, p.reply...)
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 {
		return 0, serial.ErrTimeout
	}
	n := len(p.pending)
	if p.chunk > 0 && n > p.chunk {
		n = p.chunk
	}
	n = copy(b, p.pending[:n])
	p.pending = p.pending[n:]
	return n, nil
}

func TestExchange(t *testing.T) {
	port := &fakePort{reply: []byte{0xaa, 0x01, 0x02, 0x03, 0x04, 0x05}, chunk: 2}
	b := New(port)

	reply, err := b.Exchange([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0x01, 0x02, 0x03, 0x04, 0x05}, reply)
	assert.Equal(t, [][]byte{[]byte("ping")}, port.requests)
}

func TestExchangeNoReply(t *testing.T) {
	b := New(&fakePort{})

	reply, err := b.Exchange([]byte("ping"))
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestExchangeReadError(t *testing.T) {
	b := New(&fakePort{readErr: io.ErrUnexpectedEOF})

	_, err := b.Exchange([]byte("ping"))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestServeForwardsPoll(t *testing.T) {
	packet := make([]byte, esmart.PacketLen)
	packet[0] = esmart.StartMarker
	packet[3] = esmart.SourceMPPT
	packet[4] = esmart.PacketTypeTelemetry
	packet[8] = byte(esmart.ModeFloat)
	// battery voltage 0x8C00 little-endian, 14.0 V
	packet[12] = 0x8c
	port := &fakePort{reply: packet, chunk: 10}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(port).Serve(ctx, ln)
	}()

	client, err := esmart.DialTCP(ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer client.Close()

	r, err := client.Poll()
	require.NoError(t, err)
	assert.Equal(t, esmart.ModeFloat, r.Mode)
	assert.InDelta(t, 14.0, r.BatteryVoltage, 0.001)
	assert.Equal(t, [][]byte{esmart.RequestFrame}, port.requests)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeListenerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close()

	err = New(&fakePort{}).Serve(context.Background(), ln)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
