//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/CorniiDog/lightning-research-application/internal/adapter/kafka"
	"github.com/CorniiDog/lightning-research-application/internal/cache"
	"github.com/CorniiDog/lightning-research-application/internal/config"
	"github.com/CorniiDog/lightning-research-application/internal/dispatch"
	"github.com/CorniiDog/lightning-research-application/internal/domain"
	"github.com/CorniiDog/lightning-research-application/internal/engine"
	"github.com/CorniiDog/lightning-research-application/internal/filter"
	"github.com/CorniiDog/lightning-research-application/internal/ingest"
	"github.com/CorniiDog/lightning-research-application/internal/observability"
	"github.com/CorniiDog/lightning-research-application/internal/store"
)

const (
	testSourceTopic = "test-raw-points"
	testSinkTopic   = "test-strikes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// startKafka launches a single-node Kafka and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// burstPayloads renders one burst of stitchable points as JSON messages.
func burstPayloads(t *testing.T, start float64, n int) []kafkago.Message {
	t.Helper()
	msgs := make([]kafkago.Message, 0, n)
	for i := 0; i < n; i++ {
		p := domain.Point{
			TimeUnix:    start + float64(i)*0.05,
			Lat:         33.6,
			Lon:         -101.8,
			Alt:         6000 + float64(i*100),
			PowerDB:     10,
			ReducedChi2: 0.5,
			NumStations: 8,
		}
		payload, err := json.Marshal(p)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("point-%d", i)),
			Value: payload,
		})
	}
	return msgs
}

// TestIngestToStrikePublish runs the full path with real Kafka: points
// produced to the source topic flow through the ingest pipeline into the
// store, a computation stitches them, and the strike lands on the sink topic.
func TestIngestToStrikePublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("test-ingest-%d", time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}

	// Produce two bursts, 60 s apart in event time, plus one malformed
	// record that ingest must skip.
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := burstPayloads(t, 1718500000, 8)
	msgs = append(msgs, kafkago.Message{Key: []byte("poison"), Value: []byte("not-json{{{")})
	msgs = append(msgs, burstPayloads(t, 1718500060, 8)...)
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	pointStore := store.NewMemoryStore()
	reader := kafkaadapter.NewReader(cfg, logger)
	t.Cleanup(func() { _ = reader.Close() })

	pipeline := ingest.New(reader, pointStore, logger, metrics, 50)
	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- pipeline.Run(pipelineCtx) }()

	require.Eventually(t, func() bool { return pointStore.Len() == 16 },
		2*time.Minute, 250*time.Millisecond, "points did not reach the store")
	require.NoError(t, pipeline.CheckReadiness(ctx))

	pipelineCancel()
	require.NoError(t, <-errCh)

	// Compute strikes over the ingested points and publish them.
	db, err := cache.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer := kafkaadapter.NewStrikeWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })

	eng := engine.New(pointStore, filter.New(pointStore, logger),
		dispatch.New(2, logger, metrics), cache.New(db, logger, metrics), logger, metrics)
	eng.SetPublisher(writer)

	params := domain.DefaultParameters()
	params.MinLightningPoints = 5

	strikes, err := eng.ComputeStrikes(ctx, nil, params, "")
	require.NoError(t, err)
	require.Len(t, strikes, 2)

	// Both strikes arrive on the sink topic with their headers intact.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i := 0; i < 2; i++ {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err)

		var s domain.Strike
		require.NoError(t, json.Unmarshal(msg.Value, &s))
		assert.Equal(t, 8, s.PointCount)

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "8", headers["point_count"])
		_, err = time.Parse(time.RFC3339, headers["published_at"])
		assert.NoError(t, err)
	}
}

// TestReaderBatchFlushInterval verifies that ExtractBatch returns a partial
// batch once the flush interval elapses instead of waiting for a full one.
func TestReaderBatchFlushInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaGroupID:       fmt.Sprintf("test-flush-%d", time.Now().UnixNano()),
		BatchFlushInterval: time.Second,
	}

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, burstPayloads(t, 1718500000, 3)...))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, batch, 3, "partial batch should flush on the interval")

	for _, rec := range batch {
		require.NotNil(t, rec.Commit)
		require.NoError(t, rec.Commit(ctx))
	}
}
