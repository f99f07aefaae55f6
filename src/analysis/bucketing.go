package analysis

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Timeframe selection. Labels match the chart's selector buttons.
// -----------------------------------------------------------------------------

type Timeframe string

const (
	TimeframeFiveMinute Timeframe = "5M" // finest granularity, one bar per raw quote
	TimeframeHour       Timeframe = "1H"
	TimeframeDay        Timeframe = "1D"
	TimeframeWeek       Timeframe = "1W"
	TimeframeMonth      Timeframe = "1M"
)

// DefaultTimeframe is used when nothing is configured or selected.
const DefaultTimeframe = TimeframeFiveMinute

// All bucket math runs in one fixed reference zone. Using the ambient system
// zone would move day/week/month boundaries between deployments.
var bucketZone = time.UTC

// -----------------------------------------------------------------------------

// Timeframes lists the supported selections in selector order.
func Timeframes() []Timeframe {
	return []Timeframe{
		TimeframeFiveMinute,
		TimeframeHour,
		TimeframeDay,
		TimeframeWeek,
		TimeframeMonth,
	}
}

// -----------------------------------------------------------------------------

// ParseTimeframe validates a selector label.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range Timeframes() {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// -----------------------------------------------------------------------------

// BucketKey maps a quote timestamp (epoch seconds) to the start of its
// timeframe interval. Pure and monotonic: ts1 <= ts2 implies
// BucketKey(ts1) <= BucketKey(ts2) for a fixed timeframe.
//
// The five-minute timeframe is the identity mapping: the feed itself ticks
// once per five minutes, so every raw quote is its own bar.
func BucketKey(ts int64, tf Timeframe) int64 {
	switch tf {
	case TimeframeFiveMinute:
		return ts

	case TimeframeHour:
		return ts - mod(ts, 3600)

	case TimeframeDay:
		t := time.Unix(ts, 0).In(bucketZone)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, bucketZone).Unix()

	case TimeframeWeek:
		t := time.Unix(ts, 0).In(bucketZone)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, bucketZone)
		// Back up to Monday of that week.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset).Unix()

	case TimeframeMonth:
		t := time.Unix(ts, 0).In(bucketZone)
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, bucketZone).Unix()
	}

	// Unknown timeframes degrade to identity rather than panicking.
	return ts
}

// -----------------------------------------------------------------------------

// WindowSeconds returns the raw-history span a timeframe selection covers
// when slicing quotes for delivery: the finest selection shows the last five
// minutes, the month selection the last thirty days. Unknown selections get
// the one-day window.
func WindowSeconds(tf Timeframe) int64 {
	switch tf {
	case TimeframeFiveMinute:
		return 5 * 60
	case TimeframeHour:
		return 3600
	case TimeframeDay:
		return 86400
	case TimeframeWeek:
		return 7 * 86400
	case TimeframeMonth:
		return 30 * 86400
	}
	return 86400
}

// -----------------------------------------------------------------------------

// mod is a floor modulo so pre-1970 timestamps still truncate downward.
func mod(a, n int64) int64 {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
