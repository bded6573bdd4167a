package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// QueueNotifier hands messages to the worker through a Kafka topic instead of
// sending them from the request path.
type QueueNotifier struct {
	publisher Publisher
	topic     string
	log       logrus.FieldLogger
}

func NewQueueNotifier(publisher Publisher, topic string, log logrus.FieldLogger) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, topic: topic, log: log}
}

// Notify logs an enqueue failure before returning it, like Service.Notify does
// for send failures.
func (q *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	if err := q.publisher.Publish(ctx, q.topic, msg.Recipient, msg); err != nil {
		nerr := &domain.NotificationError{Stage: "enqueue", Err: err}
		q.log.WithFields(logrus.Fields{"kind": msg.Kind, "recipient": msg.Recipient}).
			WithError(nerr).Error("email not queued")
		return nerr
	}
	return nil
}

// DecodeMessage parses a queued message and rejects kinds no template serves.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode notification: %w", err)
	}
	switch msg.Kind {
	case KindBookingConfirmation, KindBookingCancellation:
	default:
		return Message{}, fmt.Errorf("decode notification: unknown kind %q", msg.Kind)
	}
	if msg.Recipient == "" {
		return Message{}, errors.New("decode notification: empty recipient")
	}
	return msg, nil
}
