package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/alexandrecuer/postprocess/internal/config"
	"github.com/alexandrecuer/postprocess/internal/process"
)

// Writer publishes process results to the result topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes results in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, results []process.Result) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeResult(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeResult(res process.Result) (kafkago.Message, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize process result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(res.JobID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "process", Value: []byte(res.Process)},
			{Key: "finished_at", Value: []byte(res.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}

// Enqueuer puts process items on the queue topic.
// It implements process.Queue.
type Enqueuer struct {
	writer *kafkago.Writer
}

// NewEnqueuer creates a Kafka producer for the configured queue topic.
func NewEnqueuer(cfg *config.Config) *Enqueuer {
	return &Enqueuer{writer: &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaQueueTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}}
}

// Enqueue implements process.Queue.
func (e *Enqueuer) Enqueue(ctx context.Context, item process.Item) error {
	msg, err := serializeItem(item)
	if err != nil {
		return err
	}
	return e.writer.WriteMessages(ctx, msg)
}

func (e *Enqueuer) Close() error {
	return e.writer.Close()
}

func serializeItem(item process.Item) (kafkago.Message, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize process item: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(item.ID),
		Value:   data,
		Headers: []kafkago.Header{{Key: "process", Value: []byte(item.Process)}},
	}, nil
}
