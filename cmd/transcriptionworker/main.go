package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/config"
	"github.com/Agnikulu/signalnoise/internal/metrics"
	"github.com/Agnikulu/signalnoise/internal/queue"
	"github.com/Agnikulu/signalnoise/internal/resilience"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/Agnikulu/signalnoise/internal/supervisor"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.dev.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(cfg.Logging.Level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "signalnoise-transcriptionworker").Logger().Level(level)
	logger.Info().Str("config", cfgPath).Msg("starting transcription worker")

	metrics.InitMetrics()
	metricsServer := metrics.NewServer(9102, func() error { return nil })
	if err := metricsServer.Start(); err != nil {
		logger.Warn().Err(err).Msg("metrics server failed to start (non-fatal)")
	}

	st, err := store.Open(store.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}

	transcriber := adapters.NewMultiTranscriber(cfg.Transcription.OpenAIAPIKey, cfg.Transcription.AssemblyAPIKey, cfg.Transcription.Timeout, logger)

	breakerRegistry := resilience.NewCircuitBreakerRegistry(logger)
	breaker := breakerRegistry.Register(resilience.CircuitBreakerConfig{Name: "transcription"})

	features := config.NewFeatureFlagsFromConfig(cfg, logger)
	degradation := resilience.NewDegradationManager(features, logger)

	worker := queue.NewTranscriptionWorker(st, transcriber, breaker, degradation, cfg.Queue.TranscriptionPollInterval, logger)

	sv := supervisor.New(logger, 30*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	sv.Go(ctx, "transcription-worker", worker.Run)

	sv.RegisterCloser("metrics-server", func(ctx context.Context) error {
		return metricsServer.Stop(ctx)
	})
	sv.RegisterCloser("degradation-manager", func(ctx context.Context) error {
		degradation.Stop()
		return nil
	})
	sv.RegisterCloser("database", func(ctx context.Context) error {
		return st.Close()
	})

	sv.Wait(cancel)
	logger.Info().Msg("transcription worker stopped")
}
