package storage

import (
	"testing"

	"plex-observer/src/logger"
	"plex-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()

	cfg := &models.MConfig{
		Storage: models.MStorageConfig{
			Enabled: true,
			DBType:  "sqlite",
			DBPath:  ":memory:",
		},
	}
	db, err := NewSQLiteDB(cfg, logger.NewLogger("SQLiteDB", "INFO"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func dbQuote(ts int64, hb float64) models.MQuote {
	return models.MQuote{Timestamp: ts, HighestBuy: hb, LowestSell: hb + 10, BuyVolume: 1, SellVolume: 2}
}

// -----------------------------------------------------------------------------

func TestSQLite_SaveAndLoad(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveQuotes([]models.MQuote{
		dbQuote(300, 920),
		dbQuote(100, 900),
		dbQuote(200, 910),
	}))

	// Full window, ascending regardless of insert order.
	quotes, err := db.LoadQuotes(0, 1000)
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, int64(100), quotes[0].Timestamp)
	assert.Equal(t, int64(300), quotes[2].Timestamp)
	assert.Equal(t, 910.0, quotes[1].HighestBuy)
	assert.Equal(t, 920.0, quotes[2].LowestSell-10)

	// Half-open range: from inclusive, to exclusive.
	quotes, err = db.LoadQuotes(100, 300)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, int64(200), quotes[1].Timestamp)
}

// -----------------------------------------------------------------------------

func TestSQLite_UpsertReplacesRow(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveQuotes([]models.MQuote{dbQuote(100, 900)}))
	require.NoError(t, db.SaveQuotes([]models.MQuote{dbQuote(100, 950)}))

	quotes, err := db.LoadQuotes(0, 1000)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 950.0, quotes[0].HighestBuy)
}

// -----------------------------------------------------------------------------

func TestSQLite_CleanupBefore(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveQuotes([]models.MQuote{
		dbQuote(100, 900),
		dbQuote(200, 910),
		dbQuote(300, 920),
	}))

	require.NoError(t, db.CleanupBefore(250))

	quotes, err := db.LoadQuotes(0, 1000)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, int64(300), quotes[0].Timestamp)
}

// -----------------------------------------------------------------------------

func TestSQLite_EmptySaveIsNoop(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.SaveQuotes(nil))
}
