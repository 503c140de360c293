package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RateSentinel/internal/api"
	"RateSentinel/internal/cache"
	"RateSentinel/internal/calculator"
	"RateSentinel/internal/config"
	"RateSentinel/internal/engine"
	"RateSentinel/internal/guard"
	"RateSentinel/internal/logger"
	"RateSentinel/internal/metrics"
	"RateSentinel/internal/notifier"
	"RateSentinel/internal/provider"
	"RateSentinel/internal/publisher"
	"RateSentinel/internal/recorder"
	"RateSentinel/internal/resolver"
	"RateSentinel/internal/scheduler"
	"RateSentinel/internal/state"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	log.WithFields(logrus.Fields{"config": cfgPath, "tokens": len(cfg.Tokens)}).Info("RateSentinel starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Providers
	oracle := provider.NewOracleProvider(cfg.Providers.Oracle.RPC, cfg.Proxy)
	defer oracle.Close()
	registry := provider.NewRegistry(
		provider.StaticProvider{},
		provider.NewHTTPProvider(cfg.HTTPFeeds(), cfg.Providers.HTTP.APIKey, cfg.Proxy),
		provider.NewYahooProvider(cfg.Providers.Yahoo.BaseURL, cfg.Proxy),
		oracle,
	)
	log.WithField("providers", registry.Names()).Info("providers registered")

	mc := metrics.New()
	res := resolver.New(registry, resolver.Options{
		AttemptTimeout: cfg.Resolver.AttemptTimeout,
		MaxFeedAge:     cfg.Resolver.MaxFeedAge,
		RatePerSecond:  cfg.Resolver.RatePerSecond,
		Burst:          cfg.Resolver.Burst,
		Observer:       mc,
		Logger:         log,
	})

	// Cache
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			log.Fatalf("init redis cache: %v", err)
		}
		defer rs.Close()
		store = rs
	default:
		store = cache.NewMemoryStore(nil)
	}
	log.WithField("backend", cfg.Cache.Backend).Info("sample cache ready")

	// Reference state
	sm, err := state.NewManager(cfg.State.File, log)
	if err != nil {
		log.Fatalf("init reference state: %v", err)
	}

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Publisher
	var pub publisher.Publisher = publisher.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		pub = kp
		log.WithField("topic", cfg.Kafka.Topic).Info("kafka publisher enabled")
	}

	eng := engine.New(engine.Options{
		Tokens:   cfg.Tokens,
		Resolver: res,
		Guard:    guard.New(cfg.GuardBands()),
		Cache:    store,
		State:    sm,
		Params: calculator.Params{
			ScaleFactor:        cfg.Engine.ScaleFactor,
			SmoothingThreshold: cfg.Engine.SmoothingThreshold,
			SmoothingWeight:    cfg.Engine.SmoothingWeight,
		},
		RefreshInterval: cfg.Engine.RefreshInterval,
		CacheTTL:        cfg.Engine.CacheTTL,
		Concurrency:     cfg.Engine.Concurrency,
		Recorder:        rec,
		Publisher:       pub,
		Metrics:         mc,
		Logger:          log,
	})

	// Telegram notifier
	var tn notifier.Notifier = notifier.NoopNotifier{}
	var telegram *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		tn = telegram
	}

	// Scheduler
	sched := scheduler.NewScheduler(ctx, eng, tn, rec, log)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.ReportCron); err != nil {
		log.Fatalf("register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if telegram != nil {
		go telegram.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	// Warm the cache and the reference before serving.
	go sched.RunRefreshNow()

	// HTTP API
	h := api.NewHandler(eng, log)
	srv := api.NewServer(cfg.API.Addr, h.Router(mc.Handler(), mc.Middleware), log)
	srv.Start()

	log.Info("RateSentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	cancel()
	log.Info("RateSentinel stopped")
}
