package interfaces

import "plex-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for raw-quote persistence. Only quotes are
// stored; bars and series are derived state and are never persisted.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveQuotes upserts a batch of raw quotes keyed by timestamp.
	SaveQuotes(quotes []models.MQuote) error

	// -----------------------------------------------------------------------------

	// LoadQuotes returns quotes with from <= timestamp < to, ascending.
	LoadQuotes(from, to int64) ([]models.MQuote, error)

	// -----------------------------------------------------------------------------

	// CleanupBefore removes quotes older than the retention cutoff.
	CleanupBefore(cutoff int64) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
