package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"plex-observer/src/interfaces"
	"plex-observer/src/logger"
	"plex-observer/src/models"
)

// -----------------------------------------------------------------------------
// Collector polls a raw market-orders endpoint and derives one quote per
// pass: the best buy price, the best sell price and the summed remaining
// volumes of both sides. It is the optional producing counterpart to the
// PlexAPISource consumer, for running the observer directly against the
// order-book API instead of a ready-made quote feed.
// -----------------------------------------------------------------------------

type Collector struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	DB      interfaces.IDatabase // optional, may be nil
	Logger  *logger.Logger

	now func() int64
}

// -----------------------------------------------------------------------------
// Wire shape of the order-book response.
// -----------------------------------------------------------------------------

type marketOrder struct {
	IsBuyOrder   bool    `json:"isBuyOrder"`
	Price        float64 `json:"price"`
	VolumeRemain float64 `json:"volumeRemain"`
}

type ordersResponse struct {
	Orders []marketOrder `json:"orders"`
}

// -----------------------------------------------------------------------------

func NewCollector(cfg *models.MConfig, netMgr interfaces.INetworkManager, db interfaces.IDatabase) *Collector {
	return &Collector{
		Config:  cfg,
		Network: netMgr,
		DB:      db,
		Logger:  logger.NewLogger("Collector", cfg.LogLevel),
		now:     func() int64 { return time.Now().Unix() },
	}
}

// -----------------------------------------------------------------------------

// Start polls immediately, then on every interval tick, pushing each derived
// quote to outputChan until ctx is cancelled.
func (c *Collector) Start(ctx context.Context, outputChan chan<- models.MQuote, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		interval := time.Duration(c.Config.Collector.IntervalMinutes) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.Logger.Info("Collector started (interval %v)", interval)
		c.collectOnce(ctx, outputChan)

		for {
			select {
			case <-ctx.Done():
				c.Logger.Info("Collector stopped")
				return
			case <-ticker.C:
				c.collectOnce(ctx, outputChan)
			}
		}
	}()
}

// -----------------------------------------------------------------------------

func (c *Collector) collectOnce(ctx context.Context, outputChan chan<- models.MQuote) {
	quote, err := c.FetchQuote()
	if err != nil {
		// A failed pass leaves prior state untouched; next tick retries.
		c.Logger.Warning("Collection pass failed: %v", err)
		return
	}

	if c.DB != nil {
		if err := c.DB.SaveQuotes([]models.MQuote{quote}); err != nil {
			c.Logger.Warning("Failed to persist collected quote: %v", err)
		}
	}

	select {
	case outputChan <- quote:
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

// FetchQuote performs one order-book fetch and reduces it to a quote.
func (c *Collector) FetchQuote() (models.MQuote, error) {
	body, err := c.Network.Get(c.Config.Collector.OrdersURL, nil)
	if err != nil {
		return models.MQuote{}, err
	}

	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MQuote{}, fmt.Errorf("bad orders payload: %w", err)
	}

	quote, err := deriveQuote(resp.Orders, c.now())
	if err != nil {
		return models.MQuote{}, err
	}
	return quote, nil
}

// -----------------------------------------------------------------------------

// deriveQuote reduces an order book to a single market snapshot. A book with
// no buy or no sell orders cannot produce a quote.
func deriveQuote(orders []marketOrder, ts int64) (models.MQuote, error) {
	var (
		highestBuy, lowestSell float64
		buyVolume, sellVolume  float64
		haveBuy, haveSell      bool
	)

	for _, o := range orders {
		if o.IsBuyOrder {
			if !haveBuy || o.Price > highestBuy {
				highestBuy = o.Price
			}
			buyVolume += o.VolumeRemain
			haveBuy = true
		} else {
			if !haveSell || o.Price < lowestSell {
				lowestSell = o.Price
			}
			sellVolume += o.VolumeRemain
			haveSell = true
		}
	}

	if !haveBuy || !haveSell {
		return models.MQuote{}, fmt.Errorf("order book missing a side (buy=%v sell=%v)", haveBuy, haveSell)
	}

	return models.MQuote{
		Timestamp:  ts,
		HighestBuy: highestBuy,
		LowestSell: lowestSell,
		BuyVolume:  buyVolume,
		SellVolume: sellVolume,
	}, nil
}
