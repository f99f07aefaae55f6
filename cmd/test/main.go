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
	"plex-observer/src/config"
	"plex-observer/src/controller"
	"plex-observer/src/convert"
	"plex-observer/src/data_source/plexapi"
	"plex-observer/src/logger"
	"plex-observer/src/network"
	"plex-observer/src/server"
	"plex-observer/src/store"
)

// -----------------------------------------------------------------------------
// End-to-end harness: runs a fake upstream feed and the full observer
// pipeline against it. Useful for watching the chart update live without
// the real hosted API.
// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	upstreamPort := flag.Int("upstream-port", 9178, "port for the fake upstream feed")
	pushEvery := flag.Duration("push-every", 2*time.Second, "fake live quote interval")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(conf.Name+"-test", "DEBUG")
	conf.LogLevel = "DEBUG"

	// 1. Fake upstream
	fake := newFakeUpstream(*pushEvery)
	fake.start(*upstreamPort)
	conf.Upstream.HistoricalURL = fmt.Sprintf("http://127.0.0.1:%d/historical-data/", *upstreamPort)
	conf.Upstream.LiveURL = fmt.Sprintf("ws://127.0.0.1:%d/ws", *upstreamPort)
	conf.Upstream.Reconnect = true
	conf.Collector.Enabled = false
	conf.Storage.Enabled = false

	// Give the fake upstream a moment to bind
	time.Sleep(200 * time.Millisecond)

	// 2. Pipeline, wired exactly like cmd/main but without storage
	netMgr := network.NewHTTPManager(conf.MConfig, logger.NewLogger("HTTPManager", conf.LogLevel))
	quoteStore := store.NewQuoteStore()

	ctrl := controller.NewMarketController(
		conf.MConfig,
		logger.NewLogger("MarketController", conf.LogLevel),
		analysis.NewAggregator(),
		quoteStore,
		nil,
		nil,
	)
	converter := convert.NewConverter(ctrl)

	srv := server.NewAPIServer(conf.MConfig, logger.NewLogger("APIServer", conf.LogLevel), quoteStore, ctrl, converter)
	ctrl.Sink = srv

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(1)
	go ctrl.Run(ctx, &wg)

	source := plexapi.NewPlexAPISource(conf.MConfig, netMgr)
	source.OnConnectivityChange = ctrl.SetConnected

	ticket := ctrl.BeginSnapshot()
	go func() {
		snapshot, err := source.FetchHistoricalSnapshot(ctx)
		if err != nil {
			appLogger.Warning("Initial fetch failed: %v", err)
			return
		}
		appLogger.Info("Fetched %d historical quotes", len(snapshot))
		ctrl.DeliverSnapshot(ticket, snapshot)
	}()

	if err := source.Subscribe(ctx, ctrl.QuoteChan(), &wg); err != nil {
		appLogger.Critical("Live subscription not started: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	appLogger.Info("Harness running: ws://%s:%d/ws", conf.Host, conf.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	wg.Wait()
}
