package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"BreakoutScreener/internal/collector"
	"BreakoutScreener/internal/config"
	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/metrics"
	"BreakoutScreener/internal/model"
	"BreakoutScreener/internal/notifier"
	"BreakoutScreener/internal/pricecache"
	"BreakoutScreener/internal/recorder"
	"BreakoutScreener/internal/scheduler"
	"BreakoutScreener/internal/screener"
	"BreakoutScreener/internal/session"
	"BreakoutScreener/internal/strategy"
	"BreakoutScreener/internal/universe"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			cfgPath = v
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config validation: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("BreakoutScreener starting...")

	u, err := universe.Load(cfg.Instruments.File)
	if err != nil {
		logger.Fatal("load universe: %v", err)
	}
	if !u.HasSector(cfg.Screener.Sector) {
		logger.Fatal("config validation: %v", &model.ConfigurationError{Field: "screener.sector", Reason: "unknown sector " + cfg.Screener.Sector})
	}
	logger.Info("universe: %d instruments in %d sectors", u.Len(), len(u.Sectors())-1)

	gate, err := session.NewGate(cfg.Session.Timezone, cfg.Session.Open, cfg.Session.Close)
	if err != nil {
		logger.Fatal("session gate: %v", err)
	}
	iv, err := model.ParseInterval(cfg.Screener.CandleInterval)
	if err != nil {
		logger.Fatal("candle interval: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data gateway
	var gw collector.Gateway
	switch cfg.Provider.Name {
	case "upstox":
		gw = collector.NewUpstoxGateway(collector.UpstoxConfig{
			BaseURL:     cfg.Provider.BaseURL,
			AccessToken: cfg.Provider.AccessToken,
			Proxy:       cfg.Provider.Proxy,
			Timeout:     cfg.Provider.Timeout,
			RateLimit:   cfg.Provider.RateLimit,
			Burst:       cfg.Provider.Burst,
		})
	case "yahoo":
		gw = collector.NewYahooGateway("", cfg.Provider.Proxy, cfg.Provider.Timeout, cfg.Provider.RateLimit, cfg.Provider.Burst)
	default:
		gw = &collector.MockGateway{Price: 100}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, candle cache disabled: %v", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			gw = collector.NewCachingGateway(rdb, gw, cfg.Redis.Namespace)
			defer rdb.Close()
		}
	}
	logger.Info("data source: %s", gw.Name())

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "")

	var wg sync.WaitGroup
	if cfg.Metrics.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
	}

	// Scheduler
	prices := pricecache.New()
	det := strategy.NewDetector(strategy.Config{
		Interval:         iv,
		Tolerance:        cfg.Screener.Tolerance,
		RequireAboveVWAP: cfg.Screener.RequireAboveVWAP,
		RSIMin:           cfg.Screener.RSIMin,
		RSIMax:           cfg.Screener.RSIMax,
		RSIPeriod:        cfg.Screener.RSIPeriod,
	})
	sched := scheduler.NewScheduler(scheduler.Config{
		Cadence:          cfg.Screener.Cadence,
		Lookback:         cfg.Screener.Lookback,
		CycleTimeout:     cfg.Screener.CycleTimeout,
		Staleness:        cfg.Screener.Staleness,
		MaxConcurrency:   cfg.Screener.MaxConcurrency,
		Sector:           cfg.Screener.Sector,
		FailureThreshold: cfg.Screener.FailureThreshold,
	}, gw, u, prices, det, gate)
	sched.Recorder = rec
	sched.Metrics = m

	svc := screener.NewService(sched, u, gate, rec, cfg.Screener.BreakoutsOnly)

	// Telegram notifier
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.Enabled {
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Provider.Proxy,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Warn("telegram disabled: %v", err)
			tn = nil
		} else {
			sched.Notifier = tn
		}
	}

	if err := sched.Start(ctx); err != nil {
		logger.Fatal("start scheduler: %v", err)
	}

	// Streaming feed
	if cfg.Provider.StreamEnabled {
		feed := collector.NewFeedClient(collector.FeedConfig{
			URL:         cfg.Provider.FeedURL,
			AccessToken: cfg.Provider.AccessToken,
		})
		ids := make([]string, 0, u.Len())
		for _, in := range u.Instruments(cfg.Screener.Sector) {
			ids = append(ids, in.ID)
		}
		ticks, err := feed.Subscribe(ctx, ids)
		if err != nil {
			logger.Warn("stream subscribe failed, relying on quote polling: %v", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.IngestTicks(ctx, ticks)
			}()
			logger.Info("streaming %d instruments", len(ids))
		}
	}

	if tn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tn.ListenForCommands(ctx, svc.HandleCommand)
		}()
		logger.Info("telegram polling started")
	}

	logger.Info("BreakoutScreener is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping...")
	cancel()
	sched.Stop()
	wg.Wait()
	logger.Info("BreakoutScreener stopped")
}
