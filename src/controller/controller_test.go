package controller

import (
	"sync"
	"testing"

	"plex-observer/src/analysis"
	"plex-observer/src/logger"
	"plex-observer/src/models"
	"plex-observer/src/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// fakeSink records every publish so tests can assert on the exact sequence
// the controller emits.
// -----------------------------------------------------------------------------

type fakeSink struct {
	mu           sync.Mutex
	snapshots    []models.MSeriesSnapshot
	points       []models.MSeriesPointUpdate
	connectivity []bool
}

func (f *fakeSink) SetSeries(s models.MSeriesSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
}

func (f *fakeSink) UpdatePoint(u models.MSeriesPointUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, u)
}

func (f *fakeSink) SetConnectivity(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectivity = append(f.connectivity, connected)
}

// -----------------------------------------------------------------------------

func newTestController(tf string) (*MarketController, *fakeSink) {
	cfg := &models.MConfig{
		Name:             "test",
		LogLevel:         "INFO",
		DefaultTimeframe: tf,
		Upstream:         models.MUpstreamConfig{LookbackDays: 30},
	}
	sink := &fakeSink{}
	c := NewMarketController(
		cfg,
		logger.NewLogger("test", "INFO"),
		analysis.NewAggregator(),
		store.NewQuoteStore(),
		sink,
		nil,
	)
	// Pin the clock so lookback trimming never interferes with fixtures.
	c.now = func() int64 { return 1715731200 } // 2024-05-15T00:00:00Z
	return c, sink
}

// -----------------------------------------------------------------------------

func quote(ts int64, hb, ls float64) models.MQuote {
	return models.MQuote{Timestamp: ts, HighestBuy: hb, LowestSell: ls, BuyVolume: 1, SellVolume: 2}
}

// -----------------------------------------------------------------------------

func TestController_SnapshotPublishesInitial(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 3600

	seq := c.BeginSnapshot()
	c.onEvent(snapshotEvent{seq: seq, quotes: []models.MQuote{
		quote(base, 900, 910),
		quote(base+300, 920, 905),
	}})

	require.Len(t, sink.snapshots, 1)
	snap := sink.snapshots[0]
	assert.Equal(t, "INITIAL", snap.Type)
	assert.Equal(t, "5M", snap.Timeframe)
	assert.Equal(t, 2, snap.Series.Len())

	bar, ok := c.LatestBar()
	require.True(t, ok)
	assert.Equal(t, base+300, bar.Time)
	assert.Equal(t, 905.0, bar.Close)
}

// -----------------------------------------------------------------------------

func TestController_StaleSnapshotDiscarded(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 3600

	older := c.BeginSnapshot()
	newer := c.BeginSnapshot()

	// The older in-flight fetch completes late and must be dropped.
	c.onEvent(snapshotEvent{seq: older, quotes: []models.MQuote{quote(base, 1, 2)}})
	assert.Empty(t, sink.snapshots)

	c.onEvent(snapshotEvent{seq: newer, quotes: []models.MQuote{quote(base, 900, 910)}})
	require.Len(t, sink.snapshots, 1)
	assert.Equal(t, 900.0, sink.snapshots[0].Series.Candles[0].Open)
}

// -----------------------------------------------------------------------------

func TestController_StoredQuotesBackfillUnderSnapshot(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 3600

	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{
		quote(base+300, 920, 905),
	}})
	require.Len(t, sink.snapshots, 1)

	// Recovery delivers an older quote plus a stale copy of the fetched one;
	// the fetched values keep precedence, the older quote fills the gap.
	c.onEvent(storedQuotesEvent{quotes: []models.MQuote{
		quote(base, 900, 910),
		quote(base+300, 1, 2),
	}})

	require.Len(t, sink.snapshots, 2)
	snap := sink.snapshots[1]
	assert.Equal(t, "INITIAL", snap.Type)
	require.Equal(t, 2, snap.Series.Len())
	assert.Equal(t, 900.0, snap.Series.Candles[0].Open)
	assert.Equal(t, 920.0, snap.Series.Candles[1].Open)

	// Nothing new to merge publishes nothing.
	c.onEvent(storedQuotesEvent{quotes: []models.MQuote{quote(base, 1, 2)}})
	assert.Len(t, sink.snapshots, 2)
}

// -----------------------------------------------------------------------------

func TestController_LiveQuoteFastPathAtFinestTimeframe(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 3600

	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{
		quote(base, 900, 910),
	}})
	require.Len(t, sink.snapshots, 1)

	// A strictly newer quote is a single point append, not a full replace.
	c.onQuote(quote(base+300, 920, 905))

	require.Len(t, sink.points, 1)
	assert.Len(t, sink.snapshots, 1)

	point := sink.points[0].Point
	assert.Equal(t, base+300, point.Candle.Time)
	// 905 < previous close 910 -> down
	assert.Equal(t, models.ColorVolumeDown, point.Volume.Color)

	// The appended bar becomes the new reference for the next color.
	c.onQuote(quote(base+600, 910, 915))
	require.Len(t, sink.points, 2)
	assert.Equal(t, models.ColorVolumeUp, sink.points[1].Point.Volume.Color)
}

// -----------------------------------------------------------------------------

func TestController_OutOfOrderQuoteForcesFullRecompute(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 3600

	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{
		quote(base, 900, 910),
		quote(base+600, 920, 905),
	}})
	require.Len(t, sink.snapshots, 1)

	// Late quote older than the newest bar: full replace, no point update.
	c.onQuote(quote(base+300, 930, 895))

	assert.Empty(t, sink.points)
	require.Len(t, sink.snapshots, 2)
	assert.Equal(t, "UPDATE", sink.snapshots[1].Type)
	assert.Equal(t, 3, sink.snapshots[1].Series.Len())
}

// -----------------------------------------------------------------------------

func TestController_AggregatedTimeframeAlwaysRecomputes(t *testing.T) {
	c, sink := newTestController("1H")
	base := c.now() - 7200

	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{
		quote(base, 900, 910),
	}})

	// Even a strictly newer quote can amend the open bucket retroactively.
	c.onQuote(quote(base+300, 950, 880))

	assert.Empty(t, sink.points)
	require.Len(t, sink.snapshots, 2)
	bar := sink.snapshots[1].Series.Candles[0]
	assert.Equal(t, 950.0, bar.High)
	assert.Equal(t, 880.0, bar.Low)
}

// -----------------------------------------------------------------------------

func TestController_DuplicateQuoteDoesNotRepublish(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 3600

	dup := quote(base, 900, 910)
	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{dup}})
	c.onQuote(dup)

	assert.Len(t, sink.snapshots, 1)
	assert.Empty(t, sink.points)
}

// -----------------------------------------------------------------------------

func TestController_TimeframeSwitchRebuildsSeries(t *testing.T) {
	c, sink := newTestController("5M")
	base := c.now() - 7200

	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{
		quote(base, 900, 910),
		quote(base+300, 920, 905),
		quote(base+3900, 930, 915),
	}})
	require.Equal(t, 3, sink.snapshots[0].Series.Len())

	c.onEvent(timeframeEvent{tf: analysis.TimeframeHour})

	require.Len(t, sink.snapshots, 2)
	snap := sink.snapshots[1]
	assert.Equal(t, "INITIAL", snap.Type)
	assert.Equal(t, "1H", snap.Timeframe)
	assert.Equal(t, 2, snap.Series.Len())

	// Switching to the already-active timeframe is a no-op.
	c.onEvent(timeframeEvent{tf: analysis.TimeframeHour})
	assert.Len(t, sink.snapshots, 2)
}

// -----------------------------------------------------------------------------

func TestController_InvalidTimeframeRejected(t *testing.T) {
	c, _ := newTestController("5M")
	assert.Error(t, c.SetTimeframe("15M"))
	assert.NoError(t, c.SetTimeframe("1D"))
}

// -----------------------------------------------------------------------------

func TestController_ConnectivityForwarded(t *testing.T) {
	c, sink := newTestController("5M")

	c.onEvent(connectivityEvent{connected: true})
	c.onEvent(connectivityEvent{connected: false})

	assert.Equal(t, []bool{true, false}, sink.connectivity)
}

// -----------------------------------------------------------------------------

func TestController_LookbackTrim(t *testing.T) {
	c, sink := newTestController("5M")
	cutoff := c.now() - 30*86400

	c.onEvent(snapshotEvent{seq: c.BeginSnapshot(), quotes: []models.MQuote{
		quote(cutoff-100, 900, 910), // outside the window
		quote(cutoff+100, 920, 905),
	}})

	require.Len(t, sink.snapshots, 1)
	assert.Equal(t, 1, sink.snapshots[0].Series.Len())
	assert.Equal(t, 1, c.Store.Size())
}
