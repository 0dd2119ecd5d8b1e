package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher forwards broadcast events to an MQTT topic so external
// dashboards and bots can react without polling the HTTP API.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// MQTTOptions configures the publisher.
type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(opts MQTTOptions, logger *slog.Logger) (*MQTTPublisher, error) {
	if opts.Topic == "" {
		opts.Topic = "clawguard/events"
	}
	if opts.ClientID == "" {
		opts.ClientID = "clawguard"
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("notify: mqtt connect %s: %w", opts.Broker, token.Error())
	}

	return &MQTTPublisher{
		client: client,
		topic:  opts.Topic,
		logger: logger.With("component", "mqtt"),
	}, nil
}

// Run pumps broadcaster events to the topic until ctx is done.
func (p *MQTTPublisher) Run(ctx context.Context, b *Broadcaster) error {
	events, cancel := b.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := ev.Marshal()
			if err != nil {
				p.logger.Warn("event encode failed", "type", ev.Type, "error", err)
				continue
			}
			token := p.client.Publish(p.topic, 0, false, data)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				p.logger.Warn("mqtt publish failed", "type", ev.Type, "error", token.Error())
			}
		}
	}
}
