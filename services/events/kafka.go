// Package eventsvc publishes domain events to kafka or, without a broker, to the logs.
package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/trezcool/somesha/core"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every event as one JSON message keyed by its aggregate id, so events of
// the same aggregate stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

var _ core.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(conf core.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(conf.Brokers...),
			Topic:        conf.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func encode(ev core.Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, errors.Wrapf(err, "marshalling %s event", ev.Type)
	}
	return kafka.Message{
		Key:     []byte(ev.Key),
		Value:   data,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(ev.Type)}},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...core.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := encode(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "writing events")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher logs events at debug level; used when kafka is disabled.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...core.Event) error {
	for _, ev := range events {
		p.logger.Debug(fmt.Sprintf("event %s", ev.Type), map[string]interface{}{
			"key":      ev.Key,
			"actor_id": ev.ActorID,
		})
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NewPublisher picks the kafka publisher when enabled in the config.
func NewPublisher(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.Kafka.Enabled && len(conf.Kafka.Brokers) > 0 {
		return NewKafkaPublisher(conf.Kafka)
	}
	return NewLogPublisher(logger)
}
