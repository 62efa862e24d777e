package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PayLink/internal/app/model"
	"go.uber.org/zap"
)

const (
	clickFetchBatch = 10
	clickFetchWait  = 5 * time.Second
)

type msgAction int

const (
	actionAck msgAction = iota
	actionNak
	actionTerm
)

// ClickConsumer consumes click events from NATS JetStream
type ClickConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	recorder ClickRecorder
	done     chan struct{}
}

// NewClickConsumer creates a consumer that persists clicks through recorder.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, recorder ClickRecorder) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, recorder: recorder, done: make(chan struct{})}
}

// Start binds to the durable consumer and pulls until ctx is cancelled.
// The stream and consumer must already exist.
func (c *ClickConsumer) Start(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(
		model.ClickStreamSubject,
		model.ClickConsumerName,
		nats.Bind(model.ClickStreamName, model.ClickConsumerName),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := sub.Fetch(clickFetchBatch, nats.MaxWait(clickFetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			var ackErr error
			switch c.process(ctx, msg.Data) {
			case actionAck:
				ackErr = msg.Ack()
			case actionNak:
				ackErr = msg.Nak()
			case actionTerm:
				ackErr = msg.Term()
			}
			if ackErr != nil {
				c.logger.Warn("failed to acknowledge click message", zap.Error(ackErr))
			}
		}
	}
}

// process applies one message and decides how it is acknowledged.
func (c *ClickConsumer) process(ctx context.Context, data []byte) msgAction {
	var msg model.ClickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		return actionTerm
	}

	err := c.recorder.RecordClick(ctx, ClickInput{
		EventID:   msg.ID,
		URLID:     msg.URLID,
		IP:        msg.IP,
		UserAgent: msg.UserAgent,
		Referrer:  msg.Referrer,
		At:        msg.Timestamp,
	})
	switch {
	case err == nil:
		c.logger.Debug("click event stored",
			zap.String("id", msg.ID),
			zap.Uint("url_id", msg.URLID),
			zap.Time("timestamp", msg.Timestamp),
		)
		return actionAck
	case errors.Is(err, ErrNotFound):
		// The URL is gone; redelivery cannot succeed.
		c.logger.Warn("dropping click for unknown url", zap.String("id", msg.ID), zap.Uint("url_id", msg.URLID))
		return actionAck
	default:
		c.logger.Error("failed to store click event",
			zap.String("id", msg.ID),
			zap.Uint("url_id", msg.URLID),
			zap.Error(err))
		return actionNak
	}
}
