package controller

import (
	"context"
	"sync"
	"time"

	"plex-observer/src/analysis"
	"plex-observer/src/interfaces"
	"plex-observer/src/logger"
	"plex-observer/src/models"
	"plex-observer/src/store"
)

// -----------------------------------------------------------------------------
// MarketController owns all mutable chart state: the quote store, the active
// timeframe and the connectivity flag. Every mutation goes through one event
// loop, so no two aggregation passes ever run concurrently and each event is
// fully applied before the next is processed.
//
// A new quote can retroactively change an open bucket's open/high/low, and
// live delivery may be out of order, so the default reaction to any event is
// recompute-from-source plus a full series replace. The one exception is the
// finest timeframe, where a strictly-newer quote is a pure append and is
// published as a single point update.
// -----------------------------------------------------------------------------

type MarketController struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Aggregator *analysis.Aggregator
	Store      *store.QuoteStore
	Sink       interfaces.ISeriesSink
	DB         interfaces.IDatabase // optional quote persistence, may be nil

	quotes chan models.MQuote
	events chan interface{}

	// Event-loop state. Only the Run goroutine touches these.
	timeframe   analysis.Timeframe
	connected   bool
	snapshotSeq uint64
	lastBarTime int64
	lastClose   float64
	hasLastBar  bool

	// Published state readable from outside the loop.
	latestBar   models.MCandlePoint
	hasBar      bool
	latestBarMu sync.RWMutex

	now func() int64
}

// -----------------------------------------------------------------------------
// Internal event types. They are applied strictly in arrival order.
// -----------------------------------------------------------------------------

type snapshotEvent struct {
	seq    uint64
	quotes []models.MQuote
}

type storedQuotesEvent struct {
	quotes []models.MQuote
}

type timeframeEvent struct {
	tf analysis.Timeframe
}

type connectivityEvent struct {
	connected bool
}

// -----------------------------------------------------------------------------

func NewMarketController(
	cfg *models.MConfig,
	log *logger.Logger,
	agg *analysis.Aggregator,
	st *store.QuoteStore,
	sink interfaces.ISeriesSink,
	db interfaces.IDatabase,
) *MarketController {
	tf := analysis.DefaultTimeframe
	if cfg.DefaultTimeframe != "" {
		if parsed, err := analysis.ParseTimeframe(cfg.DefaultTimeframe); err == nil {
			tf = parsed
		}
	}

	return &MarketController{
		Config:     cfg,
		Logger:     log,
		Aggregator: agg,
		Store:      st,
		Sink:       sink,
		DB:         db,
		quotes:     make(chan models.MQuote, 64),
		events:     make(chan interface{}, 16),
		timeframe:  tf,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// -----------------------------------------------------------------------------
// External API. These only post events; all state changes happen in Run.
// -----------------------------------------------------------------------------

// QuoteChan is the inbound live-quote channel handed to the source.
func (c *MarketController) QuoteChan() chan<- models.MQuote {
	return c.quotes
}

// -----------------------------------------------------------------------------

// BeginSnapshot marks a historical fetch as in flight and returns its ticket.
// Only the most recently issued ticket will be applied: an older fetch that
// completes late is discarded (last write wins, no cancellation token).
func (c *MarketController) BeginSnapshot() uint64 {
	c.latestBarMu.Lock()
	c.snapshotSeq++
	seq := c.snapshotSeq
	c.latestBarMu.Unlock()
	return seq
}

// -----------------------------------------------------------------------------

// DeliverSnapshot hands a completed historical fetch to the event loop.
func (c *MarketController) DeliverSnapshot(seq uint64, quotes []models.MQuote) {
	c.events <- snapshotEvent{seq: seq, quotes: quotes}
}

// -----------------------------------------------------------------------------

// DeliverStored merges quotes recovered from persistence into the store.
// Unlike a snapshot it never replaces: quotes already present (from a fetch
// or live delivery) keep precedence, so ordering against the upstream fetch
// does not matter.
func (c *MarketController) DeliverStored(quotes []models.MQuote) {
	c.events <- storedQuotesEvent{quotes: quotes}
}

// -----------------------------------------------------------------------------

// SetTimeframe switches the aggregation granularity. The switch invalidates
// all derived state and triggers a synchronous full recompute in the loop.
func (c *MarketController) SetTimeframe(label string) error {
	tf, err := analysis.ParseTimeframe(label)
	if err != nil {
		return err
	}
	c.events <- timeframeEvent{tf: tf}
	return nil
}

// -----------------------------------------------------------------------------

// SetConnected reflects the upstream live-channel state.
func (c *MarketController) SetConnected(connected bool) {
	c.events <- connectivityEvent{connected: connected}
}

// -----------------------------------------------------------------------------

// LatestBar returns the most recently published bar, used by the conversion
// calculator as its buy (open) and sell (close) prices.
func (c *MarketController) LatestBar() (models.MCandlePoint, bool) {
	c.latestBarMu.RLock()
	defer c.latestBarMu.RUnlock()
	return c.latestBar, c.hasBar
}

// -----------------------------------------------------------------------------

// Run processes events until ctx is cancelled. It is the single writer of the
// quote store and the single publisher to the series sink.
func (c *MarketController) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	c.Logger.Info("Controller loop started (timeframe %s)", c.timeframe)

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("Controller loop stopped")
			return

		case q := <-c.quotes:
			c.onQuote(q)

		case ev := <-c.events:
			c.onEvent(ev)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *MarketController) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case snapshotEvent:
		c.latestBarMu.RLock()
		current := c.snapshotSeq
		c.latestBarMu.RUnlock()
		if e.seq != current {
			c.Logger.Info("Discarding stale snapshot (ticket %d, current %d)", e.seq, current)
			return
		}
		c.Store.ReplaceAll(e.quotes)
		c.trim()
		c.Logger.Info("Applied snapshot with %d quotes", c.Store.Size())
		c.publishFull("INITIAL")

	case storedQuotesEvent:
		if c.Store.MergeMissing(e.quotes) == 0 {
			return
		}
		c.trim()
		c.Logger.Info("Recovered persisted quotes (store now %d)", c.Store.Size())
		c.publishFull("INITIAL")

	case timeframeEvent:
		if e.tf == c.timeframe {
			return
		}
		c.timeframe = e.tf
		c.hasLastBar = false
		c.Logger.Info("Timeframe changed to %s", e.tf)
		c.publishFull("INITIAL")

	case connectivityEvent:
		c.connected = e.connected
		c.Sink.SetConnectivity(e.connected)
	}
}

// -----------------------------------------------------------------------------

// onQuote folds one live quote into the store and republishes.
func (c *MarketController) onQuote(q models.MQuote) {
	changed := c.Store.Append(q)
	if !changed {
		return
	}
	c.trim()
	c.persist(q)

	// Append-only fast path: at the identity timeframe a strictly newer
	// quote cannot amend earlier bars, so one point update suffices. The
	// color rule still needs the previous bar's close.
	if c.timeframe == analysis.TimeframeFiveMinute && c.hasLastBar && q.Timestamp > c.lastBarTime {
		point := analysis.IdentityPoint(q, c.lastClose, true)
		c.Sink.UpdatePoint(models.MSeriesPointUpdate{
			Type:      "POINT",
			Timeframe: string(c.timeframe),
			Point:     point,
		})
		c.rememberBar(point.Candle)
		return
	}

	// Out-of-order, duplicate-key or aggregated-timeframe arrival: the
	// quote may change an existing bucket retroactively, recompute all.
	c.publishFull("UPDATE")
}

// -----------------------------------------------------------------------------

// publishFull recomputes every series from the raw store and replaces the
// sink's state wholesale.
func (c *MarketController) publishFull(kind string) {
	set := c.Aggregator.Aggregate(c.Store.Sorted(), c.timeframe)

	c.Sink.SetSeries(models.MSeriesSnapshot{
		Type:      kind,
		Timeframe: string(c.timeframe),
		Connected: c.connected,
		Series:    set,
	})

	if n := set.Len(); n > 0 {
		c.rememberBar(set.Candles[n-1])
	} else {
		c.hasLastBar = false
		c.latestBarMu.Lock()
		c.hasBar = false
		c.latestBarMu.Unlock()
	}
}

// -----------------------------------------------------------------------------

func (c *MarketController) rememberBar(bar models.MCandlePoint) {
	c.lastBarTime = bar.Time
	c.lastClose = bar.Close
	c.hasLastBar = true

	c.latestBarMu.Lock()
	c.latestBar = bar
	c.hasBar = true
	c.latestBarMu.Unlock()
}

// -----------------------------------------------------------------------------

// trim enforces the lookback window on the store.
func (c *MarketController) trim() {
	days := c.Config.Upstream.LookbackDays
	if days <= 0 {
		return
	}
	cutoff := c.now() - int64(days)*86400
	if removed := c.Store.TrimBefore(cutoff); removed > 0 {
		c.Logger.Debug("Trimmed %d quotes older than %d", removed, cutoff)
	}
}

// -----------------------------------------------------------------------------

// persist writes the quote through to storage when configured. Failures are
// logged and absorbed; persistence is never allowed to stall the loop.
func (c *MarketController) persist(q models.MQuote) {
	if c.DB == nil {
		return
	}
	if err := c.DB.SaveQuotes([]models.MQuote{q}); err != nil {
		c.Logger.Warning("Failed to persist quote %d: %v", q.Timestamp, err)
	}
}
