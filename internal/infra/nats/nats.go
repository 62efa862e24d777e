package natsclient

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PayLink/config"
	"github.com/sifan077/PayLink/internal/app/model"
)

const (
	defaultConnectTimeout = 5 * time.Second
	maxReconnects         = 10
	reconnectWait         = 2 * time.Second
	// duplicateWindow bounds how long JetStream remembers Nats-Msg-Id values.
	duplicateWindow = 2 * time.Minute
)

// Connect creates a NATS connection (with JetStream available) using application config.
func Connect(cfg config.NATSConfig) (*nats.Conn, nats.JetStreamContext, error) {
	opts := []nats.Option{
		nats.Timeout(defaultConnectTimeout),
		nats.Name("paylink"),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
	}

	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(buildURL(cfg), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("nats: init jetstream: %w", err)
	}

	return conn, js, nil
}

// EnsureClickStream creates the click stream and its durable pull consumer
// when they do not exist yet.
func EnsureClickStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       model.ClickStreamName,
			Subjects:   []string{model.ClickStreamSubject},
			MaxBytes:   model.ClickStreamMaxBytes,
			Duplicates: duplicateWindow,
		})
		if err != nil {
			return fmt.Errorf("nats: create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("nats: create consumer: %w", err)
		}
	}
	return nil
}

func buildURL(cfg config.NATSConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 4222
	}
	return fmt.Sprintf("nats://%s:%d", host, port)
}
