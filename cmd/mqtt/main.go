package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os/signal"
	"syscall"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/nergy-se/solardivert/pkg/state"
	"github.com/sirupsen/logrus"
)

// A standalone broker for bench testing. solardivert publishes to it with
// MQTTMode=broker and every state snapshot is logged.
func main() {
	address := flag.String("listen", ":1883", "tcp listen address")
	topic := flag.String("topic", "solardivert/#", "topic filter to log")
	flag.Parse()

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: *address})
	err := server.AddListener(tcp)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		err := server.Serve()
		if err != nil {
			log.Fatal(err)
		}
	}()

	err = server.Subscribe(*topic, 1, func(cl *mqtt.Client, sub packets.Subscription, pk packets.Packet) {
		s := &state.State{}
		err := json.Unmarshal(pk.Payload, s)
		if err != nil {
			logrus.Errorf("%s: %s", pk.TopicName, err)
			return
		}
		logrus.WithFields(logrus.Fields(s.Map())).Infof("%s: %s (last event %s) %s", pk.TopicName, s.State, s.LastEvent, s.Fault)
	})
	if err != nil {
		logrus.Error(err)
		return
	}

	<-ctx.Done()
	server.Close()
}
