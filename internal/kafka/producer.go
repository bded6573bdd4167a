package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// BookingEvent is published on every lifecycle transition.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  int64     `json:"booking_id"`
	FlightID   int64     `json:"flight_id"`
	SeatNumber string    `json:"seat_number"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	OrderID    string    `json:"order_id,omitempty"`
	PaymentID  string    `json:"payment_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b *domain.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		FlightID:   b.FlightID,
		SeatNumber: b.SeatNumber,
		Email:      b.PassengerEmail,
		Status:     string(b.Status),
		OrderID:    b.Payment.OrderID,
		PaymentID:  b.Payment.PaymentID,
		OccurredAt: at,
	}
}

type Producer struct {
	writer *kafka.Writer
	log    logrus.FieldLogger
}

func NewProducer(brokers []string, log logrus.FieldLogger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		writer: writer,
		log:    log,
	}
}

// Publish JSON-encodes payload and writes it to topic, keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.log.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug("published to kafka")
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
