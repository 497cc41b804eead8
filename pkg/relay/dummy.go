package relay

import "github.com/sirupsen/logrus"

// Dummy only logs. Used when no relay hardware is attached.
type Dummy struct{}

func NewDummy() *Dummy {
	return &Dummy{}
}

func (d *Dummy) Set(r Relay, on bool) error {
	logrus.Infof("dummy: %s: %t", r, on)
	return nil
}

func (d *Dummy) Close() error {
	return nil
}
