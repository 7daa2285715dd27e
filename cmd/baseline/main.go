// Command baseline consumes fit requests from Kafka, fits an hourly baseline
// model per building and publishes the predictions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	httpadapter "github.com/wattcarbon/resstock-dashboard/internal/adapter/http"
	"github.com/wattcarbon/resstock-dashboard/internal/adapter/influxdb"
	kafkaadapter "github.com/wattcarbon/resstock-dashboard/internal/adapter/kafka"
	"github.com/wattcarbon/resstock-dashboard/internal/adapter/resstock"
	"github.com/wattcarbon/resstock-dashboard/internal/config"
	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
	"github.com/wattcarbon/resstock-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Weather files are feature-flagged via WEATHER_ENABLED; without them
	// every request must carry its own temperatures.
	var weather domain.WeatherSource
	if cfg.WeatherEnabled {
		client := resstock.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, metrics, logger)
		weather = resstock.NewCachedWeather(client, cfg.WeatherCacheSize, metrics)
		logger.Info("resstock weather enabled", "base_url", cfg.WeatherBaseURL, "cache_size", cfg.WeatherCacheSize, "timeout", cfg.WeatherTimeout)
	} else {
		logger.Info("resstock weather disabled")
	}

	analyzer := domain.NewAnalyzer(weather, cfg.Model.Options, cfg.Model.Confidence, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	var loader pipeline.BatchLoader = writer
	var influx *influxdb.Writer
	if cfg.InfluxEnabled {
		influx = influxdb.NewWriter(cfg, metrics, logger)
		checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := influx.Check(checkCtx); err != nil {
			logger.Warn("influxdb not healthy at startup", "url", cfg.InfluxURL, "error", err)
		}
		cancel()
		loader = pipeline.MultiLoader{writer, pipeline.BestEffort(influx, "influxdb", logger)}
		logger.Info("influxdb sink enabled", "url", cfg.InfluxURL, "org", cfg.InfluxOrg, "bucket", cfg.InfluxBucket)
	}

	transformer := pipeline.NewTransformer(analyzer, cfg.Model.Requests, metrics)
	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, analyzer, cfg.Model.Requests, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if influx != nil {
		influx.Close()
	}

	logger.Info("shutdown complete")
}
