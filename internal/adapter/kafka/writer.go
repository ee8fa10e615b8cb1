package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/CorniiDog/lightning-research-application/internal/config"
	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// StrikeWriter produces computed strikes to the sink topic.
// It implements engine.StrikePublisher.
type StrikeWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewStrikeWriter creates a Kafka producer for the configured sink topic.
func NewStrikeWriter(cfg *config.Config, logger *slog.Logger) *StrikeWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &StrikeWriter{writer: w, logger: logger}
}

// PublishStrikes serializes and publishes a computed strike set in a single
// WriteMessages call. Messages are keyed by strike start time so a consumer
// partitioning by key keeps temporally close strikes together.
func (w *StrikeWriter) PublishStrikes(ctx context.Context, strikes []domain.Strike) error {
	if len(strikes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(strikes))
	for i := range strikes {
		msg, err := serializeStrike(strikes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish strikes: %w", err)
	}
	w.logger.Info("published strikes", "count", len(strikes))
	return nil
}

func (w *StrikeWriter) Close() error {
	return w.writer.Close()
}

// serializeStrike marshals a Strike into a Kafka message.
func serializeStrike(s domain.Strike) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize strike: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatFloat(s.StartTime, 'f', 6, 64)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "point_count", Value: []byte(strconv.Itoa(s.PointCount))},
			{Key: "published_at", Value: []byte(domain.Clock().Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
