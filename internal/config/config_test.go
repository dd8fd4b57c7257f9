package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/phpfina", cfg.FeedDir)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "postprocess-queue", cfg.KafkaQueueTopic)
	assert.Equal(t, "postprocess-results", cfg.KafkaResultTopic)
	assert.Equal(t, "postprocess", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, 200, cfg.SolverMaxIterations)
	assert.False(t, cfg.SolverTrace)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.ClickHouseEnabled())
	assert.False(t, cfg.MQTTEnabled())
	assert.Equal(t, "emon/postprocess/{feed_id}", cfg.MQTTTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FEED_DIR", "/data/phpfina")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_QUEUE_TOPIC", "custom-queue")
	t.Setenv("KAFKA_RESULT_TOPIC", "custom-results")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("SOLVER_MAX_ITERATIONS", "50")
	t.Setenv("SOLVER_TRACE", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/emoncms")
	t.Setenv("CLICKHOUSE_ADDR", "localhost:9000")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("MQTT_TOPIC", "feeds/{feed_id}")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/phpfina", cfg.FeedDir)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-queue", cfg.KafkaQueueTopic)
	assert.Equal(t, "custom-results", cfg.KafkaResultTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 50, cfg.SolverMaxIterations)
	assert.True(t, cfg.SolverTrace)
	assert.Equal(t, "postgres://localhost/emoncms", cfg.DatabaseURL)
	assert.True(t, cfg.ClickHouseEnabled())
	assert.Equal(t, "postprocess", cfg.ClickHouseDB)
	assert.True(t, cfg.MQTTEnabled())
	assert.Equal(t, "feeds/{feed_id}", cfg.MQTTTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidSolverMaxIterations(t *testing.T) {
	for _, v := range []string{"0", "-3", "many", "20000"} {
		t.Setenv("SOLVER_MAX_ITERATIONS", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "SOLVER_MAX_ITERATIONS")
	}
}

func TestLoad_InvalidSolverTrace(t *testing.T) {
	t.Setenv("SOLVER_TRACE", "sometimes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLVER_TRACE")
}

func TestLoad_SameTopics(t *testing.T) {
	t.Setenv("KAFKA_QUEUE_TOPIC", "jobs")
	t.Setenv("KAFKA_RESULT_TOPIC", "jobs")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_RESULT_TOPIC")
}
