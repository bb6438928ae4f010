package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/api"
	"github.com/Agnikulu/signalnoise/internal/config"
	"github.com/Agnikulu/signalnoise/internal/evidence"
	"github.com/Agnikulu/signalnoise/internal/metrics"
	"github.com/Agnikulu/signalnoise/internal/referencecache"
	"github.com/Agnikulu/signalnoise/internal/resilience"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/Agnikulu/signalnoise/internal/supervisor"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	portOverride := flag.Int("port", 0, "Override API port (default from config)")
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
	if *portOverride > 0 {
		cfg.API.Port = *portOverride
	}

	level, _ := zerolog.ParseLevel(cfg.Logging.Level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "signalnoise-api").Logger().Level(level)
	logger.Info().Str("config", cfgPath).Int("port", cfg.API.Port).Msg("starting API server")

	metrics.InitMetrics()
	metricsServer := metrics.NewServer(cfg.API.Port+1000, func() error { return nil })
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

	redisAddr := strings.TrimPrefix(cfg.Redis.URL, "redis://")
	redisClient := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     50,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not reachable at startup (will retry on requests)")
	}
	pingCancel()

	crawler := adapters.NewHTTPCrawler(cfg.Crawler.Timeout, cfg.Crawler.MaxResponseBytes, logger)
	refCache := referencecache.New(st, crawler, redisClient, 10*time.Second, logger)

	llmClientCfg := adapters.LLMClientConfig{
		Provider:    adapters.LLMProvider(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}
	suggester := adapters.NewLLMSuggester(llmClientCfg, logger)
	analyzer := adapters.NewLLMAnalyzer(llmClientCfg, logger)

	engine := evidence.New(st, suggester, analyzer, refCache, logger)

	features := config.NewFeatureFlagsFromConfig(cfg, logger)
	degradation := resilience.NewDegradationManager(features, logger)

	apiServer := api.NewAPIServer(st, engine, analyzer, degradation, cfg, logger)
	httpServer := apiServer.ListenAndServe(fmt.Sprintf(":%d", cfg.API.Port))

	sv := supervisor.New(logger, 30*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	sv.Go(ctx, "http-server", func(ctx context.Context) {
		logger.Info().Str("addr", httpServer.Addr).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("API server stopped unexpectedly")
		}
	})

	sv.RegisterCloser("http-server", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})
	sv.RegisterCloser("metrics-server", func(ctx context.Context) error {
		return metricsServer.Stop(ctx)
	})
	sv.RegisterCloser("degradation-manager", func(ctx context.Context) error {
		degradation.Stop()
		return nil
	})
	sv.RegisterCloser("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})
	sv.RegisterCloser("database", func(ctx context.Context) error {
		return st.Close()
	})

	sv.Wait(cancel)
	logger.Info().Msg("API server stopped")
}
