package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-invites/internal/logger"
	"ms-invites/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond, // one check-in per write
		WriteTimeout:           5 * time.Second,
		MaxAttempts:            3,
	}
	return NewProducerWithWriter(writer, log)
}

func NewProducerWithWriter(writer MessageWriter, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	return &Producer{Writer: writer, Logger: log}
}

// PublishCheckIn streams a recorded check-in to Kafka, keyed by invite so one guest's
// check-ins stay ordered within a partition.
func (p *Producer) PublishCheckIn(ctx context.Context, evt models.CheckInRecordedEvent) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	p.Logger.LogKafka("publish", "checkin_recorded", fmt.Sprintf("invite=%s count=%d", evt.InviteID, evt.Count))

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.InviteID.String()),
		Value: msgBytes,
	}); err != nil {
		return fmt.Errorf("failed to publish check-in %s: %w", evt.CheckInID, err)
	}
	return nil
}

// NotifyCheckIn lets the producer act as a check-in notifier
func (p *Producer) NotifyCheckIn(ctx context.Context, evt models.CheckInRecordedEvent) error {
	return p.PublishCheckIn(ctx, evt)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
