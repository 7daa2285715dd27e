//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly/hourlytest"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("resstock-baseline-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fitRequest builds a synthetic summer building with 28 baseline days before
// 2018-07-30 and the reporting day itself.
func fitRequest(t *testing.T, id string, seed uint64) []byte {
	t.Helper()
	loc, err := domain.LoadLocation(domain.DefaultTimezone)
	require.NoError(t, err)
	usage, temperature := hourlytest.Generate(hourlytest.Summer(time.Date(2018, 7, 2, 0, 0, 0, 0, loc), 29, seed))

	payload, err := json.Marshal(domain.FitRequest{
		RequestID:   "req-" + id,
		BuildingID:  id,
		State:       "NY",
		County:      "G3600610",
		Date:        "2018-07-30",
		HourRange:   &hourly.HourRange{Start: 16, End: 20},
		Usage:       readings(usage),
		Temperature: readings(temperature),
	})
	require.NoError(t, err)
	return payload
}

func readings(s hourly.Series) []domain.Reading {
	out := make([]domain.Reading, len(s))
	for i, p := range s {
		out[i] = domain.Reading{Time: p.Time.Format(time.RFC3339), Value: p.Value}
	}
	return out
}
