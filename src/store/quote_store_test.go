package store

import (
	"testing"

	"plex-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func q(ts int64, hb float64) models.MQuote {
	return models.MQuote{Timestamp: ts, HighestBuy: hb, LowestSell: hb + 10, BuyVolume: 1, SellVolume: 1}
}

// -----------------------------------------------------------------------------

func TestQuoteStore_AppendAndSort(t *testing.T) {
	s := NewQuoteStore()

	// Out-of-order arrival
	assert.True(t, s.Append(q(300, 900)))
	assert.True(t, s.Append(q(100, 910)))
	assert.True(t, s.Append(q(200, 920)))

	sorted := s.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, int64(100), sorted[0].Timestamp)
	assert.Equal(t, int64(200), sorted[1].Timestamp)
	assert.Equal(t, int64(300), sorted[2].Timestamp)
}

// -----------------------------------------------------------------------------

func TestQuoteStore_DuplicateTimestamp(t *testing.T) {
	s := NewQuoteStore()

	require.True(t, s.Append(q(100, 900)))

	// Exact duplicate is a no-op
	assert.False(t, s.Append(q(100, 900)))
	assert.Equal(t, 1, s.Size())

	// Same timestamp with new values replaces the stored quote
	assert.True(t, s.Append(q(100, 950)))
	assert.Equal(t, 1, s.Size())
	assert.Equal(t, 950.0, s.Sorted()[0].HighestBuy)
}

// -----------------------------------------------------------------------------

func TestQuoteStore_Latest(t *testing.T) {
	s := NewQuoteStore()

	_, ok := s.Latest()
	assert.False(t, ok)

	s.Append(q(300, 900))
	s.Append(q(100, 910))

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(300), latest.Timestamp)
}

// -----------------------------------------------------------------------------

func TestQuoteStore_TrimBefore(t *testing.T) {
	s := NewQuoteStore()
	for ts := int64(100); ts <= 1000; ts += 100 {
		s.Append(q(ts, 900))
	}

	removed := s.TrimBefore(500)
	assert.Equal(t, 4, removed)
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, int64(500), s.Sorted()[0].Timestamp)

	// Nothing left to trim
	assert.Equal(t, 0, s.TrimBefore(500))
}

// -----------------------------------------------------------------------------

func TestQuoteStore_ReplaceAll(t *testing.T) {
	s := NewQuoteStore()
	s.Append(q(100, 900))

	s.ReplaceAll([]models.MQuote{q(200, 910), q(300, 920), q(200, 930)})

	// Duplicate timestamps in the snapshot collapse, last one wins
	require.Equal(t, 2, s.Size())
	sorted := s.Sorted()
	assert.Equal(t, 930.0, sorted[0].HighestBuy)
	assert.Equal(t, int64(300), sorted[1].Timestamp)
}

// -----------------------------------------------------------------------------

func TestQuoteStore_MergeMissing(t *testing.T) {
	s := NewQuoteStore()
	s.Append(q(200, 910))

	// Only unknown timestamps are inserted; present ones keep their values.
	inserted := s.MergeMissing([]models.MQuote{q(100, 900), q(200, 1), q(300, 920)})
	assert.Equal(t, 2, inserted)
	require.Equal(t, 3, s.Size())

	sorted := s.Sorted()
	assert.Equal(t, 900.0, sorted[0].HighestBuy)
	assert.Equal(t, 910.0, sorted[1].HighestBuy)
	assert.Equal(t, 920.0, sorted[2].HighestBuy)

	// A second merge of the same quotes changes nothing.
	assert.Equal(t, 0, s.MergeMissing([]models.MQuote{q(100, 1), q(300, 1)}))
}
