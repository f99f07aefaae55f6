package storage

import (
	"database/sql"
	"fmt"

	"plex-observer/src/logger"
	"plex-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------
// PostgresDB persists raw quotes in the plex_prices table, matching the
// schema the hosted feed writes to.
// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	query := `
		CREATE TABLE IF NOT EXISTS plex_prices (
			timestamp BIGINT PRIMARY KEY,
			highest_buy DOUBLE PRECISION,
			lowest_sell DOUBLE PRECISION,
			buy_volume DOUBLE PRECISION,
			sell_volume DOUBLE PRECISION
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create plex_prices: %w", err)
	}

	d.Logger.Info("PostgresDB initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

// SaveQuotes upserts quotes inside one transaction.
func (d *PostgresDB) SaveQuotes(quotes []models.MQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO plex_prices (timestamp, highest_buy, lowest_sell, buy_volume, sell_volume)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (timestamp) DO UPDATE SET
			highest_buy = EXCLUDED.highest_buy,
			lowest_sell = EXCLUDED.lowest_sell,
			buy_volume = EXCLUDED.buy_volume,
			sell_volume = EXCLUDED.sell_volume
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

func (d *PostgresDB) LoadQuotes(from, to int64) ([]models.MQuote, error) {
	rows, err := d.DB.Query(`
		SELECT timestamp, highest_buy, lowest_sell, buy_volume, sell_volume
		FROM plex_prices
		WHERE timestamp >= $1 AND timestamp < $2
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

func (d *PostgresDB) CleanupBefore(cutoff int64) error {
	res, err := d.DB.Exec(`DELETE FROM plex_prices WHERE timestamp < $1`, cutoff)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Cleaned up %d quotes older than %d", n, cutoff)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
