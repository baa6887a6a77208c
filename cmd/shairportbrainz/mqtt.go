package main

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageBus abstracts the MQTT client so the router and effects layer can be
// tested with an in-memory fake. The real implementation is MQTTBus below.
type MessageBus interface {
	// Subscribe registers handler for topic and returns an unsubscribe
	// function. Subscriptions survive reconnects.
	Subscribe(topic string, handler func(topic string, payload []byte)) (func(), error)

	// Publish sends payload to topic at QoS 0, unretained.
	Publish(topic string, payload []byte) error

	// Close announces unavailability and disconnects.
	Close()
}

// MQTTBusConfig holds the connection parameters for the broker.
type MQTTBusConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// AvailabilityTopic, when non-empty, gets a retained "online" on every
	// connect and a retained "offline" as the broker-side will and on Close.
	AvailabilityTopic string
}

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

// MQTTBus is the paho-backed MessageBus. It keeps its own subscription table
// and replays it in OnConnect, so callers never deal with reconnects.
type MQTTBus struct {
	client mqtt.Client
	logger *slog.Logger

	availabilityTopic string

	mu   sync.Mutex
	subs map[string]func(topic string, payload []byte)
}

// NewMQTTBus connects to the broker and blocks until the first connect
// succeeds or times out.
func NewMQTTBus(cfg MQTTBusConfig, logger *slog.Logger) (*MQTTBus, error) {
	b := &MQTTBus{
		logger:            logger,
		availabilityTopic: cfg.AvailabilityTopic,
		subs:              make(map[string]func(topic string, payload []byte)),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(true)
	opts.OnConnect = b.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}
	if cfg.AvailabilityTopic != "" {
		opts.SetWill(cfg.AvailabilityTopic, payloadOffline, 0, true)
	}

	b.client = mqtt.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %s", cfg.BrokerURL, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.BrokerURL, err)
	}

	return b, nil
}

// onConnect replays the subscription table and announces availability.
// Runs on first connect and on every automatic reconnect.
func (b *MQTTBus) onConnect(client mqtt.Client) {
	b.logger.Info("mqtt connected")

	if b.availabilityTopic != "" {
		client.Publish(b.availabilityTopic, 0, true, payloadOnline)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, handler := range b.subs {
		b.subscribeLocked(client, topic, handler)
	}
}

func (b *MQTTBus) subscribeLocked(client mqtt.Client, topic string, handler func(string, []byte)) {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Error("mqtt subscribe failed", "topic", topic, "error", err)
		}
	}()
}

// Subscribe implements MessageBus.
func (b *MQTTBus) Subscribe(topic string, handler func(topic string, payload []byte)) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("mqtt subscribe %s: nil handler", topic)
	}

	b.mu.Lock()
	if _, dup := b.subs[topic]; dup {
		b.mu.Unlock()
		return nil, fmt.Errorf("mqtt subscribe %s: duplicate subscription", topic)
	}
	b.subs[topic] = handler
	b.mu.Unlock()

	token := b.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		b.mu.Lock()
		delete(b.subs, topic)
		b.mu.Unlock()
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}

	b.logger.Debug("mqtt subscribed", "topic", topic)

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subs, topic)
		b.mu.Unlock()

		t := b.client.Unsubscribe(topic)
		t.Wait()
		if err := t.Error(); err != nil {
			b.logger.Warn("mqtt unsubscribe failed", "topic", topic, "error", err)
		}
	}
	return unsubscribe, nil
}

// Publish implements MessageBus. The wait is bounded so a wedged broker
// cannot stall the daemon loop.
func (b *MQTTBus) Publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout after %s", topic, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Close implements MessageBus. Publishes a retained "offline" before
// disconnecting so consumers don't have to wait for the broker will.
func (b *MQTTBus) Close() {
	if b.availabilityTopic != "" {
		t := b.client.Publish(b.availabilityTopic, 0, true, payloadOffline)
		t.WaitTimeout(2 * time.Second)
	}
	b.client.Disconnect(250)
}
