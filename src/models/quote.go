package models

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// MQuote is one raw market snapshot for the tracked instrument.
// Immutable once received; ordering is handled by the quote store.
// -----------------------------------------------------------------------------

type MQuote struct {
	Timestamp  int64   `json:"timestamp"` // epoch seconds, UTC
	HighestBuy float64 `json:"highest_buy"`
	LowestSell float64 `json:"lowest_sell"`
	BuyVolume  float64 `json:"buy_volume"`
	SellVolume float64 `json:"sell_volume"`
}

// -----------------------------------------------------------------------------

// TotalVolume returns the combined buy+sell volume of the snapshot.
func (q MQuote) TotalVolume() float64 {
	return q.BuyVolume + q.SellVolume
}

// -----------------------------------------------------------------------------
// MQuoteRecord is the wire shape of a quote as delivered by the upstream API
// (both the historical snapshot array elements and live push messages).
// Pointer fields let us detect missing keys and drop the single record
// instead of aborting the whole batch.
// -----------------------------------------------------------------------------

type MQuoteRecord struct {
	Timestamp  string   `json:"timestamp"` // ISO-8601
	HighestBuy *float64 `json:"highest_buy"`
	LowestSell *float64 `json:"lowest_sell"`
	BuyVolume  *float64 `json:"buy_volume"`
	SellVolume *float64 `json:"sell_volume"`
}

// -----------------------------------------------------------------------------

// ToQuote validates the record and converts it to the internal representation.
func (r MQuoteRecord) ToQuote() (MQuote, error) {
	if r.HighestBuy == nil || r.LowestSell == nil || r.BuyVolume == nil || r.SellVolume == nil {
		return MQuote{}, fmt.Errorf("quote record missing numeric field")
	}

	ts, err := parseQuoteTimestamp(r.Timestamp)
	if err != nil {
		return MQuote{}, fmt.Errorf("quote record has bad timestamp %q: %w", r.Timestamp, err)
	}

	if *r.HighestBuy <= 0 || *r.LowestSell <= 0 {
		return MQuote{}, fmt.Errorf("quote record has non-positive price")
	}
	if *r.BuyVolume < 0 || *r.SellVolume < 0 {
		return MQuote{}, fmt.Errorf("quote record has negative volume")
	}

	return MQuote{
		Timestamp:  ts,
		HighestBuy: *r.HighestBuy,
		LowestSell: *r.LowestSell,
		BuyVolume:  *r.BuyVolume,
		SellVolume: *r.SellVolume,
	}, nil
}

// -----------------------------------------------------------------------------

// parseQuoteTimestamp accepts the timestamp variants the upstream emits:
// RFC3339 with zone, or a naive ISO-8601 string which is taken as UTC.
func parseQuoteTimestamp(s string) (int64, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999", // naive, no zone
		"2006-01-02T15:04:05",
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}

	return 0, fmt.Errorf("unrecognized timestamp layout")
}
