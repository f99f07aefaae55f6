package analysis

import (
	"sort"

	"plex-observer/src/models"
)

// -----------------------------------------------------------------------------
// Aggregator folds an ordered quote sequence into the three chart series
// (candles, colored volume, high/low reference lines) for one timeframe.
// It always recomputes from the raw quotes; derived bars carry no identity
// of their own and are rebuilt rather than patched.
// -----------------------------------------------------------------------------

type Aggregator struct{}

// -----------------------------------------------------------------------------

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// -----------------------------------------------------------------------------

// barAccumulator is one OHLCV bucket while quotes are still being folded in.
type barAccumulator struct {
	key    int64
	open   float64
	high   float64
	low    float64
	close_ float64
	volume float64
}

// -----------------------------------------------------------------------------

// Aggregate buckets quotes by the timeframe and materializes the series set.
// Input order does not matter: quotes are stable-sorted by timestamp first,
// so shuffled or late-arriving input yields identical output. Zero quotes is
// a valid steady state and yields empty (non-nil) series.
func (a *Aggregator) Aggregate(quotes []models.MQuote, tf Timeframe) models.MSeriesSet {
	set := models.MSeriesSet{
		Candles:  []models.MCandlePoint{},
		Volume:   []models.MVolumePoint{},
		HighLine: []models.MLinePoint{},
		LowLine:  []models.MLinePoint{},
	}

	if len(quotes) == 0 {
		return set
	}

	sorted := make([]models.MQuote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	if tf == TimeframeFiveMinute {
		return a.aggregateIdentity(sorted, set)
	}
	return a.aggregateBuckets(sorted, tf, set)
}

// -----------------------------------------------------------------------------

// aggregateIdentity emits one bar per raw quote: the quote's own buy/sell
// prices become the bar's high/low with no accumulation. Volume direction
// compares against the previous bar's close (first bar counts as up).
func (a *Aggregator) aggregateIdentity(sorted []models.MQuote, set models.MSeriesSet) models.MSeriesSet {
	var prevClose float64
	hasPrev := false

	for _, q := range sorted {
		// Guard against duplicate timestamps surviving upstream dedupe:
		// the last quote for a timestamp wins.
		if n := len(set.Candles); n > 0 && set.Candles[n-1].Time == q.Timestamp {
			set.Candles = set.Candles[:n-1]
			set.Volume = set.Volume[:n-1]
			set.HighLine = set.HighLine[:n-1]
			set.LowLine = set.LowLine[:n-1]
			hasPrev = len(set.Candles) > 0
			if hasPrev {
				prevClose = set.Candles[len(set.Candles)-1].Close
			}
		}

		point := IdentityPoint(q, prevClose, hasPrev)
		set.Candles = append(set.Candles, point.Candle)
		set.Volume = append(set.Volume, point.Volume)
		set.HighLine = append(set.HighLine, point.HighPoint)
		set.LowLine = append(set.LowLine, point.LowPoint)

		prevClose = point.Candle.Close
		hasPrev = true
	}

	return set
}

// -----------------------------------------------------------------------------

// aggregateBuckets folds quotes into per-bucket OHLCV accumulators and emits
// bars in ascending bucket-key order. Volume direction here is open-vs-close
// within the same bar, a deliberately different rule from the identity path.
func (a *Aggregator) aggregateBuckets(sorted []models.MQuote, tf Timeframe, set models.MSeriesSet) models.MSeriesSet {
	buckets := make(map[int64]*barAccumulator)
	var order []int64

	for _, q := range sorted {
		key := BucketKey(q.Timestamp, tf)

		acc, ok := buckets[key]
		if !ok {
			buckets[key] = &barAccumulator{
				key:    key,
				open:   q.HighestBuy,
				high:   q.HighestBuy,
				low:    q.LowestSell,
				close_: q.LowestSell,
				volume: q.TotalVolume(),
			}
			order = append(order, key)
			continue
		}

		if q.HighestBuy > acc.high {
			acc.high = q.HighestBuy
		}
		if q.LowestSell < acc.low {
			acc.low = q.LowestSell
		}
		// Close is always the lowest-sell of the chronologically last quote.
		acc.close_ = q.LowestSell
		acc.volume += q.TotalVolume()
	}

	// Input is sorted and BucketKey is monotonic, so first-seen order is
	// already ascending. Sort anyway to keep the ordering invariant local.
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	for _, key := range order {
		acc := buckets[key]

		color := models.ColorVolumeUp
		if acc.open > acc.close_ {
			color = models.ColorVolumeDown
		}

		set.Candles = append(set.Candles, models.MCandlePoint{
			Time:  acc.key,
			Open:  acc.open,
			High:  acc.high,
			Low:   acc.low,
			Close: acc.close_,
		})
		set.Volume = append(set.Volume, models.MVolumePoint{
			Time:  acc.key,
			Value: acc.volume,
			Color: color,
		})
		set.HighLine = append(set.HighLine, models.MLinePoint{Time: acc.key, Value: acc.high})
		set.LowLine = append(set.LowLine, models.MLinePoint{Time: acc.key, Value: acc.low})
	}

	return set
}

// -----------------------------------------------------------------------------

// IdentityPoint builds the single-bar update for one quote at the finest
// timeframe. The caller supplies the previous bar's close, which decides the
// volume color; hasPrev=false (first bar) counts as up.
func IdentityPoint(q models.MQuote, prevClose float64, hasPrev bool) models.MSeriesPoint {
	color := models.ColorVolumeUp
	if hasPrev && q.LowestSell < prevClose {
		color = models.ColorVolumeDown
	}

	return models.MSeriesPoint{
		Candle: models.MCandlePoint{
			Time:  q.Timestamp,
			Open:  q.HighestBuy,
			High:  q.HighestBuy,
			Low:   q.LowestSell,
			Close: q.LowestSell,
		},
		Volume: models.MVolumePoint{
			Time:  q.Timestamp,
			Value: q.TotalVolume(),
			Color: color,
		},
		HighPoint: models.MLinePoint{Time: q.Timestamp, Value: q.HighestBuy},
		LowPoint:  models.MLinePoint{Time: q.Timestamp, Value: q.LowestSell},
	}
}
