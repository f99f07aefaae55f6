package store

import (
	"sort"
	"sync"

	"plex-observer/src/models"
)

// -----------------------------------------------------------------------------
// QuoteStore owns the raw quote history for the active lookback window.
// It is the single source of truth the aggregation engine recomputes from;
// everything derived from it (bars, series) is rebuilt, never patched.
//
// Live updates may arrive out of order or duplicated, so the store keys
// quotes by timestamp (last write wins) and re-sorts on read.
// -----------------------------------------------------------------------------

type QuoteStore struct {
	byTimestamp map[int64]models.MQuote
	mu          sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		byTimestamp: make(map[int64]models.MQuote),
	}
}

// -----------------------------------------------------------------------------

// Append inserts one quote. A quote with an already-known timestamp replaces
// the stored one. Returns true when the store changed.
func (s *QuoteStore) Append(q models.MQuote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byTimestamp[q.Timestamp]; ok && existing == q {
		return false
	}
	s.byTimestamp[q.Timestamp] = q
	return true
}

// -----------------------------------------------------------------------------

// ReplaceAll swaps the whole history for a fresh snapshot.
func (s *QuoteStore) ReplaceAll(quotes []models.MQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byTimestamp = make(map[int64]models.MQuote, len(quotes))
	for _, q := range quotes {
		s.byTimestamp[q.Timestamp] = q
	}
}

// -----------------------------------------------------------------------------

// MergeMissing inserts only quotes whose timestamp is not already present.
// Used to backfill persisted history underneath fresher data: whatever is
// already in the store keeps precedence. Returns the number inserted.
func (s *QuoteStore) MergeMissing(quotes []models.MQuote) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, q := range quotes {
		if _, ok := s.byTimestamp[q.Timestamp]; ok {
			continue
		}
		s.byTimestamp[q.Timestamp] = q
		inserted++
	}
	return inserted
}

// -----------------------------------------------------------------------------

// Sorted returns the full history ordered by timestamp ascending.
func (s *QuoteStore) Sorted() []models.MQuote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MQuote, 0, len(s.byTimestamp))
	for _, q := range s.byTimestamp {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// -----------------------------------------------------------------------------

// Latest returns the chronologically newest quote, if any.
func (s *QuoteStore) Latest() (models.MQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest models.MQuote
	found := false
	for _, q := range s.byTimestamp {
		if !found || q.Timestamp > latest.Timestamp {
			latest = q
			found = true
		}
	}
	return latest, found
}

// -----------------------------------------------------------------------------

// TrimBefore drops quotes older than the cutoff (lookback enforcement).
// Returns the number of quotes removed.
func (s *QuoteStore) TrimBefore(cutoff int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ts := range s.byTimestamp {
		if ts < cutoff {
			delete(s.byTimestamp, ts)
			removed++
		}
	}
	return removed
}

// -----------------------------------------------------------------------------

// Size returns the number of stored quotes.
func (s *QuoteStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTimestamp)
}
