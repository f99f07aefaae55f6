package interfaces

import "plex-observer/src/models"

// -----------------------------------------------------------------------------
// ISeriesSink consumes the derived chart series. The aggregation side is the
// single writer: it either replaces the three series wholesale or, at the
// finest timeframe, appends/updates one point keyed by bucket time.
// -----------------------------------------------------------------------------

type ISeriesSink interface {
	// -----------------------------------------------------------------------------
	// SetSeries replaces the full series set shown to consumers.
	SetSeries(snapshot models.MSeriesSnapshot)

	// -----------------------------------------------------------------------------
	// UpdatePoint appends or amends a single bar, keyed by its bucket time.
	UpdatePoint(update models.MSeriesPointUpdate)

	// -----------------------------------------------------------------------------
	// SetConnectivity reflects the upstream live-channel state to consumers.
	SetConnectivity(connected bool)
}
