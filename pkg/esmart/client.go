package esmart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/goburrow/serial"
	"github.com/nergy-se/solardivert/pkg/fault"
	"github.com/sirupsen/logrus"
)

const (
	BaudRate = 9600

	headerLen    = 6
	drainTimeout = 5 * time.Millisecond
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Client polls a charge controller over a serial line or a TCP bridge.
// The packet format is the same on both transports.
type Client struct {
	conn    io.ReadWriteCloser
	timeout time.Duration
	buf     []byte
}

func New(conn io.ReadWriteCloser, timeout time.Duration) *Client {
	return &Client{
		conn:    conn,
		timeout: timeout,
		buf:     make([]byte, 1024),
	}
}

// OpenSerial opens the controller's USB serial device.
func OpenSerial(device string, timeout time.Duration) (*Client, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", device, err, fault.ErrLinkUnavailable)
	}
	return New(port, timeout), nil
}

// DialTCP connects to a serial bridge forwarding to the controller.
func DialTCP(address string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v: %w", address, err, fault.ErrLinkUnavailable)
	}
	return New(conn, timeout), nil
}

// Poll sends the request frame and decodes the answer.
// No answer within the timeout is reported as fault.ErrNoSignal.
func (c *Client) Poll() (*Reading, error) {
	err := c.drain()
	if err != nil {
		return nil, err
	}

	_, err = c.conn.Write(RequestFrame)
	if err != nil {
		return nil, fmt.Errorf("write request: %v: %w", err, fault.ErrLinkUnavailable)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := c.conn.(deadliner); ok {
		err = d.SetReadDeadline(deadline)
		if err != nil {
			return nil, fmt.Errorf("set deadline: %v: %w", err, fault.ErrLinkUnavailable)
		}
	}

	var data []byte
	for {
		n, err := c.conn.Read(c.buf)
		data = append(data, c.buf[:n]...)
		if complete(data) {
			break
		}
		if err != nil {
			if isTimeout(err) {
				break
			}
			return nil, fmt.Errorf("read response: %v: %w", err, fault.ErrLinkUnavailable)
		}
		if time.Now().After(deadline) {
			break
		}
	}

	logrus.Debugf("esmart: read %d bytes: % x", len(data), data)
	if idx := frameStart(data); idx != -1 {
		data = data[idx:]
	}
	return Decode(data)
}

// drain discards bytes left over from an earlier answer, such as a checksum
// trailer. Links without read deadlines rely on frameStart instead.
func (c *Client) drain() error {
	d, ok := c.conn.(deadliner)
	if !ok {
		return nil
	}
	err := d.SetReadDeadline(time.Now().Add(drainTimeout))
	if err != nil {
		return fmt.Errorf("set deadline: %v: %w", err, fault.ErrLinkUnavailable)
	}
	for {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			logrus.Debugf("esmart: discarding %d stale bytes: % x", n, c.buf[:n])
		}
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return fmt.Errorf("drain: %v: %w", err, fault.ErrLinkUnavailable)
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// frameStart returns the offset of the first start marker followed by a
// telemetry header, or -1. Stray 0xaa bytes ahead of the answer are skipped.
func frameStart(data []byte) int {
	for off := 0; off < len(data); {
		idx := bytes.IndexByte(data[off:], StartMarker)
		if idx == -1 {
			return -1
		}
		idx += off
		if len(data)-idx >= headerLen && data[idx+3] == SourceMPPT && data[idx+4] == PacketTypeTelemetry {
			return idx
		}
		off = idx + 1
	}
	return -1
}

// frameLen is the whole frame from the marker: header, payload of the length
// at offset 5 and a checksum byte, but never less than PacketLen.
func frameLen(header []byte) int {
	n := headerLen + int(header[5]) + 1
	if n < PacketLen {
		return PacketLen
	}
	return n
}

func complete(data []byte) bool {
	idx := frameStart(data)
	return idx != -1 && len(data)-idx >= frameLen(data[idx:])
}

func isTimeout(err error) bool {
	if errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
