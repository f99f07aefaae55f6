package storage

import (
	"database/sql"
	"fmt"

	"plex-observer/src/logger"
	"plex-observer/src/models"

	_ "modernc.org/sqlite"
)

// SQLite batch constants
const (
	sqliteMaxVars   = 32000
	paramsPerRow    = 5
	sqliteBatchSize = sqliteMaxVars / paramsPerRow // ~6400 rows
)

// -----------------------------------------------------------------------------
// SQLiteDB persists raw quotes in an embedded database. The table survives
// restarts; only derived series are recomputed in memory.
// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	// SQLite types: INTEGER for int64, REAL for float64
	query := `
		CREATE TABLE IF NOT EXISTS plex_prices (
			timestamp INTEGER PRIMARY KEY,
			highest_buy REAL,
			lowest_sell REAL,
			buy_volume REAL,
			sell_volume REAL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create plex_prices: %w", err)
	}

	d.Logger.Info("SQLiteDB initialized (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

// SaveQuotes upserts quotes in batches below the SQLite variable limit.
func (d *SQLiteDB) SaveQuotes(quotes []models.MQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	for start := 0; start < len(quotes); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(quotes) {
			end = len(quotes)
		}
		if err := d.saveBatch(quotes[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) saveBatch(quotes []models.MQuote) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO plex_prices (timestamp, highest_buy, lowest_sell, buy_volume, sell_volume)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(timestamp) DO UPDATE SET
			highest_buy = excluded.highest_buy,
			lowest_sell = excluded.lowest_sell,
			buy_volume = excluded.buy_volume,
			sell_volume = excluded.sell_volume
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, q := range quotes {
		if _, err := stmt.Exec(q.Timestamp, q.HighestBuy, q.LowestSell, q.BuyVolume, q.SellVolume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert quote %d: %w", q.Timestamp, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadQuotes(from, to int64) ([]models.MQuote, error) {
	rows, err := d.DB.Query(`
		SELECT timestamp, highest_buy, lowest_sell, buy_volume, sell_volume
		FROM plex_prices
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []models.MQuote
	for rows.Next() {
		var q models.MQuote
		if err := rows.Scan(&q.Timestamp, &q.HighestBuy, &q.LowestSell, &q.BuyVolume, &q.SellVolume); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupBefore(cutoff int64) error {
	res, err := d.DB.Exec(`DELETE FROM plex_prices WHERE timestamp < ?`, cutoff)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Cleaned up %d quotes older than %d", n, cutoff)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
