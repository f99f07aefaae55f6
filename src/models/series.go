package models

// -----------------------------------------------------------------------------
// Chart series points. Shapes mirror what the chart sink consumes:
// candles as {time, open, high, low, close}, volume/line points as
// {time, value [, color]}. Times are bucket keys (epoch seconds, UTC).
// -----------------------------------------------------------------------------

// Candle up/down palette.
const (
	ColorUp         = "#26a69a"
	ColorDown       = "#ef5350"
	ColorVolumeUp   = "rgba(38, 166, 154, 0.5)"
	ColorVolumeDown = "rgba(239, 83, 80, 0.5)"
)

// -----------------------------------------------------------------------------

type MCandlePoint struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type MVolumePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

type MLinePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// -----------------------------------------------------------------------------
// MSeriesSet holds the three derived series for one timeframe. The four
// slices always share the same length and bucket-key ordering.
// -----------------------------------------------------------------------------

type MSeriesSet struct {
	Candles  []MCandlePoint `json:"candles"`
	Volume   []MVolumePoint `json:"volume"`
	HighLine []MLinePoint   `json:"high_line"`
	LowLine  []MLinePoint   `json:"low_line"`
}

// -----------------------------------------------------------------------------

// Len returns the number of bars in the set.
func (s MSeriesSet) Len() int {
	return len(s.Candles)
}

// -----------------------------------------------------------------------------
// MSeriesPoint is a single-bar update for the append/update fast path.
// -----------------------------------------------------------------------------

type MSeriesPoint struct {
	Candle    MCandlePoint `json:"candle"`
	Volume    MVolumePoint `json:"volume"`
	HighPoint MLinePoint   `json:"high_point"`
	LowPoint  MLinePoint   `json:"low_point"`
}

// -----------------------------------------------------------------------------
// Websocket payloads sent to chart clients.
// -----------------------------------------------------------------------------

type MSeriesSnapshot struct {
	Type      string     `json:"type"` // "INITIAL" or "UPDATE"
	Timeframe string     `json:"timeframe"`
	Connected bool       `json:"connected"`
	Series    MSeriesSet `json:"series"`
}

type MSeriesPointUpdate struct {
	Type      string       `json:"type"` // "POINT"
	Timeframe string       `json:"timeframe"`
	Point     MSeriesPoint `json:"point"`
}

// -----------------------------------------------------------------------------

// MSubscribeCommand is the one client->server message the hub understands.
type MSubscribeCommand struct {
	Command   string `json:"command"`
	Timeframe string `json:"timeframe"`
}
