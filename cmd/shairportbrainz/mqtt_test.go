package main

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TestMQTTBus_PublishDisconnectedFailsFast verifies that Publish returns an
// error within the bounded wait instead of blocking the daemon loop when the
// broker is unreachable.
func TestMQTTBus_PublishDisconnectedFailsFast(t *testing.T) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://127.0.0.1:1")
	opts.SetClientID("publish-test")
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(false)

	b := &MQTTBus{
		client: mqtt.NewClient(opts),
		logger: testLogger(),
		subs:   make(map[string]func(string, []byte)),
	}

	start := time.Now()
	err := b.Publish("shairport/remote", []byte(remotePlay))
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected publish to fail without a connection")
	}
	if elapsed > mqttPublishTimeout+time.Second {
		t.Fatalf("publish took %v, want bounded by %v", elapsed, mqttPublishTimeout)
	}
}
