// Package bridge shares one serial device with TCP clients. Every chunk a
// client sends is written to the device and whatever the device answers
// within its read timeout is sent back.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
)

const maxReply = 1024

type Bridge struct {
	port io.ReadWriter
	mu   sync.Mutex
}

func New(port io.ReadWriter) *Bridge {
	return &Bridge{port: port}
}

// OpenSerial opens device at 9600 8N1 with a short read timeout, which ends each reply.
func OpenSerial(device string, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", device, err)
	}
	return port, nil
}

// Exchange writes req to the device and collects the reply until the device
// goes quiet or maxReply bytes have arrived.
func (b *Bridge) Exchange(req []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.port.Write(req)
	if err != nil {
		return nil, fmt.Errorf("serial write: %w", err)
	}

	reply := make([]byte, 0, maxReply)
	buf := make([]byte, maxReply)
	for len(reply) < maxReply {
		n, err := b.port.Read(buf[:maxReply-len(reply)])
		reply = append(reply, buf[:n]...)
		if err != nil {
			if isTimeout(err) {
				break
			}
			return reply, fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return reply, nil
}

// Serve accepts connections on ln until ctx is done.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	wg := &sync.WaitGroup{}
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logrus.Infof("bridge: client connected from %s", conn.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.handle(ctx, conn)
		}()
	}
}

func (b *Bridge) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	buf := make([]byte, maxReply)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			reply, xerr := b.Exchange(buf[:n])
			if xerr != nil {
				logrus.Errorf("bridge: %s", xerr)
				return
			}
			if len(reply) > 0 {
				_, werr := conn.Write(reply)
				if werr != nil {
					logrus.Debugf("bridge: write to %s: %s", conn.RemoteAddr(), werr)
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logrus.Debugf("bridge: read from %s: %s", conn.RemoteAddr(), err)
			}
			logrus.Infof("bridge: client %s disconnected", conn.RemoteAddr())
			return
		}
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}
