package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedDir string

	KafkaBrokers     []string
	KafkaQueueTopic  string
	KafkaResultTopic string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Solver settings.
	SolverMaxIterations int
	SolverTrace         bool

	// Optional process list persistence. Empty keeps lists in memory.
	DatabaseURL string

	// Optional run history.
	ClickHouseAddr     string
	ClickHouseDB       string
	ClickHouseUser     string
	ClickHousePassword string

	// Optional last value publication. MQTTTopic may contain {feed_id}.
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
}

// ClickHouseEnabled reports whether run history is configured.
func (c *Config) ClickHouseEnabled() bool { return c.ClickHouseAddr != "" }

// MQTTEnabled reports whether last value publication is configured.
func (c *Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	maxIterations, err := parseSolverMaxIterations()
	if err != nil {
		return nil, err
	}

	solverTrace, err := parseBool("SOLVER_TRACE")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedDir:             sharedcfg.EnvOrDefault("FEED_DIR", "/var/lib/phpfina"),
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaQueueTopic:     sharedcfg.EnvOrDefault("KAFKA_QUEUE_TOPIC", "postprocess-queue"),
		KafkaResultTopic:    sharedcfg.EnvOrDefault("KAFKA_RESULT_TOPIC", "postprocess-results"),
		KafkaGroupID:        sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "postprocess"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		BatchSize:           batchSize,
		BatchFlushInterval:  flushInterval,
		SolverMaxIterations: maxIterations,
		SolverTrace:         solverTrace,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseDB:       sharedcfg.EnvOrDefault("CLICKHOUSE_DB", "postprocess"),
		ClickHouseUser:     sharedcfg.EnvOrDefault("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTClientID: sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "postprocess"),
		MQTTTopic:    sharedcfg.EnvOrDefault("MQTT_TOPIC", "emon/postprocess/{feed_id}"),
	}

	if cfg.FeedDir == "" {
		return nil, errors.New("FEED_DIR is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaQueueTopic == "" {
		return nil, errors.New("KAFKA_QUEUE_TOPIC is required")
	}
	if cfg.KafkaResultTopic == "" {
		return nil, errors.New("KAFKA_RESULT_TOPIC is required")
	}
	if cfg.KafkaQueueTopic == cfg.KafkaResultTopic {
		return nil, errors.New("KAFKA_QUEUE_TOPIC and KAFKA_RESULT_TOPIC must differ")
	}
	return cfg, nil
}

func parseSolverMaxIterations() (int, error) {
	s := os.Getenv("SOLVER_MAX_ITERATIONS")
	if s == "" {
		return 200, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 10000 {
		return 0, fmt.Errorf("invalid SOLVER_MAX_ITERATIONS %q: must be between 1 and 10000", s)
	}
	return n, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}
