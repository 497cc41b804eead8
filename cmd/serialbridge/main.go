package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nergy-se/solardivert/pkg/bridge"
	"github.com/sirupsen/logrus"
)

func main() {
	listen := flag.String("listen", ":8888", "tcp listen address")
	device := flag.String("serial", "/dev/ttyUSB0", "serial device to share")
	readTimeout := flag.Duration("read-timeout", 100*time.Millisecond, "quiet time that ends a reply")
	logLevel := flag.String("loglevel", "info", "")
	flag.Parse()

	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("error setting logrus loglevel: %s", err)
	}
	logrus.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := bridge.OpenSerial(*device, *readTimeout)
	if err != nil {
		logrus.Fatal(err)
	}
	defer port.Close()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("bridge: forwarding %s to %s", ln.Addr(), *device)

	err = bridge.New(port).Serve(ctx, ln)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
