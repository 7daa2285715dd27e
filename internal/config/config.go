package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultWeatherBaseURL is the ResStock AMY2018 release on the OEDI data lake.
const DefaultWeatherBaseURL = "https://oedi-data-lake.s3.amazonaws.com/nrel-pds-building-stock/end-use-load-profiles-for-us-building-stock/2024/resstock_amy2018_release_2"

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Weather file configuration.
	WeatherEnabled   bool
	WeatherBaseURL   string
	WeatherTimeout   time.Duration
	WeatherCacheSize int

	// InfluxDB prediction sink.
	InfluxEnabled bool
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string

	Model Model
}

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

	weatherTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("WEATHER_TIMEOUT", "30s"))
	if err != nil || weatherTimeout <= 0 {
		return nil, errors.New("invalid WEATHER_TIMEOUT")
	}

	model, err := LoadModel()
	if err != nil {
		return nil, err
	}

	influxToken := os.Getenv("INFLUX_TOKEN")
	influxEnabled := influxToken != ""
	if v := os.Getenv("INFLUX_ENABLED"); v != "" {
		influxEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "baseline-fit-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "baseline-fit-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "resstock-baseline"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		WeatherEnabled:   os.Getenv("WEATHER_ENABLED") != "false",
		WeatherBaseURL:   sharedcfg.EnvOrDefault("WEATHER_BASE_URL", DefaultWeatherBaseURL),
		WeatherTimeout:   weatherTimeout,
		WeatherCacheSize: parseWeatherCacheSize(),

		InfluxEnabled: influxEnabled,
		InfluxURL:     sharedcfg.EnvOrDefault("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:   influxToken,
		InfluxOrg:     sharedcfg.EnvOrDefault("INFLUX_ORG", "resstock"),
		InfluxBucket:  sharedcfg.EnvOrDefault("INFLUX_BUCKET", "baseline"),

		Model: model,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.WeatherEnabled {
		if u, err := url.Parse(cfg.WeatherBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid WEATHER_BASE_URL %q", cfg.WeatherBaseURL)
		}
	}
	if cfg.InfluxEnabled && cfg.InfluxToken == "" {
		return nil, errors.New("INFLUX_ENABLED is true but INFLUX_TOKEN is not set")
	}

	return cfg, nil
}

func parseWeatherCacheSize() int {
	if s := os.Getenv("WEATHER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
