package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/PayLink/internal/app/model"
)

// ClickPublisher publishes click events to NATS JetStream
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// RecordClick publishes the click for the consumer to persist. The message ID
// doubles as the JetStream de-duplication key.
func (p *ClickPublisher) RecordClick(ctx context.Context, click ClickInput) error {
	msg := newClickMessage(click)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode click: %w", err)
	}

	if _, err := p.js.Publish(model.ClickStreamSubject, data, nats.MsgId(msg.ID), nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish click: %w", err)
	}
	return nil
}

func newClickMessage(click ClickInput) model.ClickMessage {
	at := click.At
	if at.IsZero() {
		at = time.Now()
	}
	id := click.EventID
	if id == "" {
		id = uuid.NewString()
	}
	return model.ClickMessage{
		ID:        id,
		URLID:     click.URLID,
		IP:        click.IP,
		UserAgent: click.UserAgent,
		Referrer:  click.Referrer,
		Timestamp: at.UTC(),
	}
}
