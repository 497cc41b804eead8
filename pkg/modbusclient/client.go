package modbusclient

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

// Client is the subset of Modbus a relay board needs.
type Client interface {
	WriteSingleCoil(address uint16, on bool) error
	Close() error
}

type client struct {
	client modbus.Client
	close  func() error
}

func New(c modbus.Client, close func() error) *client {
	return &client{
		client: c,
		close:  close,
	}
}

// Dial connects to a relay board. Addresses starting with /dev/ use Modbus RTU
// over a serial line, anything else is treated as a Modbus TCP host:port.
func Dial(address string, slaveID byte, timeout time.Duration) (*client, error) {
	if strings.HasPrefix(address, "/dev/") {
		handler := modbus.NewRTUClientHandler(address)
		handler.BaudRate = 9600
		handler.DataBits = 8
		handler.Parity = "N"
		handler.StopBits = 1
		handler.SlaveId = slaveID
		handler.Timeout = timeout
		err := handler.Connect()
		if err != nil {
			return nil, fmt.Errorf("error connecting to %s: %w", address, err)
		}
		return New(modbus.NewClient(handler), handler.Close), nil
	}

	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = timeout
	err := handler.Connect()
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", address, err)
	}
	return New(modbus.NewClient(handler), handler.Close), nil
}

func (c *client) closeIfNeeded(e error) {
	if e == nil {
		return
	}

	if errors.Is(e, syscall.EPIPE) {
		logrus.Warn("reconnect due to broken pipe")
		err := c.close()
		if err != nil {
			logrus.Errorf("error closing client: %s", err)
		}
	}

	if errors.Is(e, os.ErrDeadlineExceeded) {
		logrus.Warn("reconnect due to i/o timeout")
		err := c.close()
		if err != nil {
			logrus.Errorf("error closing client: %s", err)
		}
	}
}

func (c *client) WriteSingleCoil(address uint16, on bool) error {
	_, err := c.client.WriteSingleCoil(address, CoilValue(on))
	if err != nil {
		c.closeIfNeeded(err)
		return fmt.Errorf("error writing coil %d value %t error: %w", address, on, err)
	}
	return nil
}

func (c *client) Close() error {
	return c.close()
}

func CoilValue(b bool) uint16 {
	if b {
		return WriteCoilValueOn
	}
	return WriteCoilValueOff
}

const (
	WriteCoilValueOn  uint16 = 0xff00
	WriteCoilValueOff uint16 = 0
)
