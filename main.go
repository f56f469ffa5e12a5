package main

import (
	"context"
	"errors"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"futures-core/internal/api"
	"futures-core/internal/engine"
	"futures-core/internal/events"
	"futures-core/internal/gateway"
	"futures-core/internal/monitor"
	"futures-core/internal/selector"
	"futures-core/internal/signal"
	"futures-core/internal/state"
	"futures-core/internal/trader"
	"futures-core/pkg/config"
	"futures-core/pkg/db"
	"futures-core/pkg/exchanges/binance/futures"
	"futures-core/pkg/i18n"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			log.Fatal(i18n.Get("MissingCredentials"))
		}
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.QuoteAsset, cfg.Timeframe, cfg.MaxPositions)
	log.Printf(i18n.Get("UsingDBPath"), cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	defer bus.Close()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf(i18n.Get("DBInitFailed"), err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf(i18n.Get("DBMigrationsFailed"), err)
	}

	// In-memory state seeded from DB
	stateMgr := state.NewManager(database)
	if err := stateMgr.Load(ctx); err != nil {
		log.Fatalf(i18n.Get("StateLoadFailed"), err)
	}
	log.Printf(i18n.Get("StateRestored"), stateMgr.Count())

	analyzerCfg, err := signal.LoadConfig(cfg.AnalyzerConfigPath)
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}
	if cfg.AnalyzerConfigPath != "" {
		log.Printf(i18n.Get("AnalyzerConfigUsed"), cfg.AnalyzerConfigPath)
	}

	client := futures.NewClient(futures.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Testnet:   cfg.BinanceTestnet,
	})
	client.StartTimeSync(ctx)
	exch := gateway.NewBinance(client, cfg.QuoteAsset)

	candleLimit := cfg.CandleLimit
	if candleLimit < analyzerCfg.MinCandles() {
		candleLimit = analyzerCfg.MinCandles()
	}
	screener := selector.New(exch, selector.Options{
		TopByVolume:   cfg.TopByVolume,
		MaxCandidates: cfg.MaxCandidates,
		MinCandles:    candleLimit,
		Timeframe:     cfg.Timeframe,
		DepthLevels:   cfg.DepthLevels,
		MinDepth:      cfg.MinDepth,
	})

	opener := trader.NewOpener(exch, stateMgr, bus, trader.OpenerOptions{
		TradeNotional: cfg.TradeNotional,
		MinNotional:   cfg.MinNotional,
		Leverage:      cfg.Leverage,
		ProfitTarget:  cfg.ProfitTarget,
		LossLimit:     cfg.LossLimit,
		Protective:    cfg.ProtectiveOrders,
	})
	reconciler := trader.NewReconciler(exch, stateMgr, bus, trader.ReconcilerOptions{
		ProfitTarget:    cfg.ProfitTarget,
		LossLimit:       cfg.LossLimit,
		FeeRate:         cfg.FeeRate,
		Protective:      cfg.ProtectiveOrders,
		ProtectionGrace: cfg.ProtectionGrace,
		SettlePause:     cfg.SettlePause,
	})

	metrics := monitor.NewSystemMetrics()
	stopObserve := metrics.Observe(bus)
	defer stopObserve()

	loop := engine.New(exch, screener, opener, reconciler, stateMgr, bus, analyzerCfg, engine.Options{
		QuoteAsset:    cfg.QuoteAsset,
		Timeframe:     cfg.Timeframe,
		CandleLimit:   candleLimit,
		MaxPositions:  cfg.MaxPositions,
		TargetBalance: cfg.TargetBalance,
		PollInterval:  cfg.PollInterval,
		OpenPause:     cfg.OpenPause,
		CapWait:       cfg.CapWait,
		TargetWait:    cfg.TargetWait,
		ErrorBackoff:  cfg.ErrorBackoff,
	})
	loop.SetMetrics(metrics)

	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "v1.0-dev"
	}
	server := api.NewServer(bus, stateMgr, metrics, api.SystemMeta{
		Quote:        cfg.QuoteAsset,
		Timeframe:    cfg.Timeframe,
		Testnet:      cfg.BinanceTestnet,
		MaxPositions: cfg.MaxPositions,
		Version:      version,
	}, cfg.JWTSecret, cfg.DashboardPassword)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println(i18n.Get("ShuttingDown"))
		cancel()
		<-loopDone
	case err := <-loopDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("trading loop stopped: %v", err)
		}
	}
}
