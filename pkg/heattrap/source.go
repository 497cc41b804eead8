package heattrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goburrow/serial"
	"github.com/nergy-se/solardivert/pkg/fault"
	"github.com/sirupsen/logrus"
)

const BaudRate = 9600

// OpenSerial opens the controller's serial console. Reads return
// serial.ErrTimeout after readTimeout so a reader can notice cancellation.
func OpenSerial(device string, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", device, err, fault.ErrLinkUnavailable)
	}
	return port, nil
}

// Source turns a byte stream into readings delivered on a channel.
type Source struct {
	r        io.Reader
	readings chan Reading
	errs     chan error
}

func NewSource(r io.Reader) *Source {
	return &Source{
		r:        r,
		readings: make(chan Reading),
		errs:     make(chan error, 1),
	}
}

// Readings delivers one value per valid line.
func (s *Source) Readings() <-chan Reading {
	return s.readings
}

// Errs delivers at most one error, after which Run has returned.
func (s *Source) Errs() <-chan error {
	return s.errs
}

// Run reads until ctx is done or the link fails. Malformed lines are dropped.
func (s *Source) Run(ctx context.Context) {
	dec := &Decoder{}
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.r.Read(buf)
		for _, c := range buf[:n] {
			r, perr := dec.Feed(c)
			if perr != nil {
				logrus.Debugf("heattrap: dropping line: %s", perr)
				continue
			}
			if r == nil {
				continue
			}
			select {
			case s.readings <- *r:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.errs <- fmt.Errorf("heattrap read: %v: %w", err, fault.ErrLinkUnavailable)
			return
		}
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}
