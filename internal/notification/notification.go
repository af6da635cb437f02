package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindVerificationCode carries a one-time login code by SMS.
	KindVerificationCode = "verification_code"

	// OutboxKey is the Redis list an SMS worker drains.
	OutboxKey = "sms:outbox:v1"
)

// Message describes a notification payload.
type Message struct {
	Kind        string    `json:"kind"`
	Destination string    `json:"destination"`
	Body        string    `json:"body"`
	QueuedAt    time.Time `json:"queued_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier stands in for an SMS gateway by writing messages to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}

// RedisOutbox queues messages on a Redis list for an out-of-process sender.
type RedisOutbox struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisOutbox builds an outbox notifier.
func NewRedisOutbox(client *redis.Client) *RedisOutbox {
	return &RedisOutbox{client: client, now: time.Now}
}

// Send enqueues message.
func (o *RedisOutbox) Send(ctx context.Context, message Message) error {
	message.QueuedAt = o.now().UTC()
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return o.client.LPush(ctx, OutboxKey, payload).Err()
}

// Fanout sends to every notifier and joins the failures.
type Fanout []Notifier

// Send delivers message to all notifiers.
func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
