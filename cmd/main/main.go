package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"plex-observer/src/analysis"
	"plex-observer/src/collector"
	"plex-observer/src/config"
	"plex-observer/src/controller"
	"plex-observer/src/convert"
	"plex-observer/src/data_source/plexapi"
	"plex-observer/src/helpers"
	"plex-observer/src/interfaces"
	"plex-observer/src/logger"
	"plex-observer/src/models"
	"plex-observer/src/network"
	"plex-observer/src/server"
	"plex-observer/src/storage"
	"plex-observer/src/store"

	"github.com/joho/godotenv"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Optional .env next to the binary feeds the PLEX_* overrides
	_ = godotenv.Load()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.Name, conf.LogLevel)

	// 1. Storage (optional)
	var db interfaces.IDatabase
	if conf.Storage.Enabled {
		switch conf.Storage.DBType {
		case "postgres":
			db, err = storage.NewPostgresDB(conf.MConfig, logger.NewLogger("PostgresDB", conf.LogLevel))
		default:
			// Default to SQLite
			db, err = storage.NewSQLiteDB(conf.MConfig, logger.NewLogger("SQLiteDB", conf.LogLevel))
		}
		if err != nil {
			appLogger.Critical("Failed to init db: %v", err)
		}
		if err := db.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate db: %v", err)
		}
		defer db.Close()
	}

	// 2. Core components
	netMgr := network.NewHTTPManager(conf.MConfig, logger.NewLogger("HTTPManager", conf.LogLevel))
	quoteStore := store.NewQuoteStore()
	aggregator := analysis.NewAggregator()

	ctrl := controller.NewMarketController(
		conf.MConfig,
		logger.NewLogger("MarketController", conf.LogLevel),
		aggregator,
		quoteStore,
		nil, // sink attached below
		db,
	)
	converter := convert.NewConverter(ctrl)

	srv := server.NewAPIServer(conf.MConfig, logger.NewLogger("APIServer", conf.LogLevel), quoteStore, ctrl, converter)
	ctrl.Sink = srv
	srv.PersistConfig = func() error { return conf.Save(*configPath) }

	// 3. Lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(1)
	go ctrl.Run(ctx, &wg)

	// 4. Restart recovery: backfill the lookback window from storage so the
	// chart has history even before (or without) a successful upstream fetch.
	// Quotes a fresher snapshot already delivered keep precedence.
	if db != nil {
		now := time.Now().Unix()
		from := now - int64(conf.Upstream.LookbackDays)*86400
		if stored, err := db.LoadQuotes(from, now+1); err != nil {
			appLogger.Warning("Failed to load persisted quotes: %v", err)
		} else if len(stored) > 0 {
			appLogger.Info("Recovered %d persisted quotes", len(stored))
			ctrl.DeliverStored(stored)
		}
	}

	// 5. Quote feed: upstream API by default, order-book collector when enabled
	if conf.Collector.Enabled {
		coll := collector.NewCollector(conf.MConfig, netMgr, db)
		coll.Start(ctx, ctrl.QuoteChan(), &wg)
		ctrl.SetConnected(true)
	} else {
		source := plexapi.NewPlexAPISource(conf.MConfig, netMgr)
		source.OnConnectivityChange = ctrl.SetConnected

		// One-shot historical load, retried with backoff. A final failure
		// leaves whatever storage recovered; the live channel still runs
		// and the UI degrades to "no data" rather than dying.
		ticket := ctrl.BeginSnapshot()
		go func() {
			var snapshot []models.MQuote
			err := helpers.RetryWithBackoff(appLogger, "historical snapshot",
				conf.Network.MaxRetries+1, 2*time.Second, func() error {
					var fetchErr error
					snapshot, fetchErr = source.FetchHistoricalSnapshot(ctx)
					return fetchErr
				})
			if err != nil {
				appLogger.Warning("Initial fetch failed: %v", err)
				return
			}
			ctrl.DeliverSnapshot(ticket, snapshot)
		}()

		if err := source.Subscribe(ctx, ctrl.QuoteChan(), &wg); err != nil {
			appLogger.Warning("Live subscription not started: %v", err)
		}
	}

	// 6. Periodic storage retention
	if db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(6 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					cutoff := time.Now().Unix() - int64(conf.Upstream.LookbackDays)*86400
					if err := db.CleanupBefore(cutoff); err != nil {
						appLogger.Warning("Storage cleanup failed: %v", err)
					}
				}
			}
		}()
	}

	// 7. HTTP server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 8. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	appLogger.Info("Shutting down...")
	cancel()
	wg.Wait()
	appLogger.Info("Shutdown complete")
}
