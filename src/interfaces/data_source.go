package interfaces

import (
	"context"
	"sync"

	"plex-observer/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteSource is the connection lifecycle to the external quote feed:
// a one-shot historical snapshot plus a live subscription, with a
// connectivity flag toggled as the live channel opens and closes.
// -----------------------------------------------------------------------------

type IQuoteSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchHistoricalSnapshot retrieves the raw quotes for the lookback
	// window. Order of the returned slice is not guaranteed.
	FetchHistoricalSnapshot(ctx context.Context) ([]models.MQuote, error)

	// -----------------------------------------------------------------------------

	// Subscribe starts the live channel and pushes one quote at a time to
	// outputChan until ctx is cancelled or the channel closes for good.
	// wg signals when the subscription goroutine has fully stopped.
	Subscribe(ctx context.Context, outputChan chan<- models.MQuote, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Connected reports whether the live channel is currently open.
	Connected() bool
}
