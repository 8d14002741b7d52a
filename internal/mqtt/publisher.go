// Package mqtt publishes aggregated snapshots to an MQTT broker for
// downstream displays and loggers.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/solentwx/weather-station/internal/weather"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher sends each snapshot as a JSON message on a fixed topic.
type Publisher struct {
	client paho.Client
	topic  string
}

// New connects to the broker and returns a ready Publisher.
func New(brokerURL, clientID, topic string) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Publish implements weather.Publisher.
func (p *Publisher) Publish(snapshot weather.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tok := p.client.Publish(p.topic, 1, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", p.topic)
	}
	return tok.Error()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(uint(publishTimeout / time.Millisecond))
}
