package plexapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"plex-observer/src/helpers"
	"plex-observer/src/interfaces"
	"plex-observer/src/logger"
	"plex-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// PlexAPISource consumes the PLEX market-data feed: a GET endpoint returning
// the historical quote window as a JSON array, and a websocket channel
// pushing one JSON quote per message.
//
// The feed itself has no retry contract; by default a closed channel simply
// flips connectivity to false and delivery stops. Reconnect with exponential
// backoff is available behind upstream.reconnect as a documented extension.
// -----------------------------------------------------------------------------

type PlexAPISource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	// OnConnectivityChange is invoked from the subscription goroutine when
	// the live channel opens or closes. Optional.
	OnConnectivityChange func(connected bool)

	connected atomic.Bool
}

// -----------------------------------------------------------------------------

func NewPlexAPISource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *PlexAPISource {
	return &PlexAPISource{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger("PlexAPISource", cfg.LogLevel),
	}
}

// -----------------------------------------------------------------------------

func (s *PlexAPISource) Name() string {
	return "plexapi"
}

// -----------------------------------------------------------------------------

func (s *PlexAPISource) Connected() bool {
	return s.connected.Load()
}

// -----------------------------------------------------------------------------

// FetchHistoricalSnapshot requests the lookback window. Malformed elements
// are dropped individually; a transport failure returns an error and leaves
// the caller's state untouched.
func (s *PlexAPISource) FetchHistoricalSnapshot(ctx context.Context) ([]models.MQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := s.Network.Get(s.Config.Upstream.HistoricalURL, map[string]string{
		"timeframe": "1M",
	})
	if err != nil {
		return nil, &helpers.NetworkError{ObserverError: helpers.ObserverError{
			Message: "historical snapshot fetch failed",
			Cause:   err,
		}}
	}

	var records []models.MQuoteRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &helpers.DataSourceError{ObserverError: helpers.ObserverError{
			Message: "historical snapshot is not a quote array",
			Cause:   err,
		}}
	}

	quotes := make([]models.MQuote, 0, len(records))
	dropped := 0
	for _, rec := range records {
		q, err := rec.ToQuote()
		if err != nil {
			dropped++
			continue
		}
		quotes = append(quotes, q)
	}
	if dropped > 0 {
		s.Logger.Warning("Dropped %d malformed records from snapshot (%d kept)", dropped, len(quotes))
	}

	return quotes, nil
}

// -----------------------------------------------------------------------------

// Subscribe runs the live websocket channel in its own goroutine, pushing
// decoded quotes to outputChan until ctx is cancelled.
func (s *PlexAPISource) Subscribe(ctx context.Context, outputChan chan<- models.MQuote, wg *sync.WaitGroup) error {
	if s.Config.Upstream.LiveURL == "" {
		return fmt.Errorf("no live URL configured")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runSubscription(ctx, outputChan)
	}()

	return nil
}

// -----------------------------------------------------------------------------

func (s *PlexAPISource) runSubscription(ctx context.Context, outputChan chan<- models.MQuote) {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.readChannel(ctx, outputChan)
		s.setConnected(false)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.Logger.Warning("Live channel closed: %v", err)
		}

		if !s.Config.Upstream.Reconnect {
			// Default contract: a closed channel just stops delivering.
			return
		}

		maxWait := time.Duration(s.Config.Upstream.ReconnectMaxWait) * time.Second
		if maxWait <= 0 {
			maxWait = 5 * time.Minute
		}
		delay := helpers.BackoffDelay(attempt, time.Second, maxWait)
		attempt++
		s.Logger.Info("Reconnecting live channel in %v (attempt %d)", delay, attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// -----------------------------------------------------------------------------

// readChannel dials the websocket and reads quotes until the connection
// drops or ctx is cancelled. Malformed messages are dropped one at a time.
func (s *PlexAPISource) readChannel(ctx context.Context, outputChan chan<- models.MQuote) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.Config.Upstream.LiveURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.Config.Upstream.LiveURL, err)
	}
	defer conn.Close()

	s.setConnected(true)
	s.Logger.Info("Live channel open: %s", s.Config.Upstream.LiveURL)

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var rec models.MQuoteRecord
		if err := json.Unmarshal(message, &rec); err != nil {
			s.Logger.Warning("Dropping malformed live message: %v", err)
			continue
		}
		q, err := rec.ToQuote()
		if err != nil {
			s.Logger.Warning("Dropping invalid live quote: %v", err)
			continue
		}

		select {
		case outputChan <- q:
		case <-ctx.Done():
			return nil
		}
	}
}

// -----------------------------------------------------------------------------

func (s *PlexAPISource) setConnected(connected bool) {
	if s.connected.Swap(connected) == connected {
		return
	}
	if s.OnConnectivityChange != nil {
		s.OnConnectivityChange(connected)
	}
}
