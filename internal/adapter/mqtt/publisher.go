// Package mqtt announces the newest sample of every output feed a process
// extends.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the part of paho.Client the adapter uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Config holds the broker settings. Topic may contain {feed_id}.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
}

// Connect opens an auto-reconnecting client on cfg.Broker.
func Connect(cfg Config, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return client, nil
}

// LastValuePublisher implements process.LastValuePublisher.
type LastValuePublisher struct {
	client Publisher
	topic  string
	logger *slog.Logger
}

// NewLastValuePublisher publishes on topic through client.
func NewLastValuePublisher(client Publisher, topic string, logger *slog.Logger) *LastValuePublisher {
	return &LastValuePublisher{client: client, topic: topic, logger: logger}
}

type timeValue struct {
	Time  int64    `json:"time"`
	Value *float64 `json:"value"`
}

// PublishLastValue sends {"time":t,"value":v} with QoS 1. A nil value is
// published as null.
func (p *LastValuePublisher) PublishLastValue(ctx context.Context, feedID int, t int64, v *float64) error {
	payload, err := json.Marshal(timeValue{Time: t, Value: v})
	if err != nil {
		return fmt.Errorf("marshal last value: %w", err)
	}
	topic := formatTopic(p.topic, feedID)

	token := p.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.Debug("last value published", "topic", topic, "time", t)
	return nil
}

// formatTopic replaces the {feed_id} placeholder.
func formatTopic(pattern string, feedID int) string {
	return strings.ReplaceAll(pattern, "{feed_id}", strconv.Itoa(feedID))
}
