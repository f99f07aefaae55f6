package convert

import (
	"math"
	"strconv"
	"strings"

	"plex-observer/src/models"

	"github.com/dustin/go-humanize"
)

// -----------------------------------------------------------------------------
// Converter links two numeric fields: an ISK amount and a PLEX amount.
// Prices come from the latest bar: its open is the buy price (ISK -> PLEX),
// its close the sell price (PLEX -> ISK). A zero or absent price is never an
// error, just "no conversion available"; invalid input clears both fields.
// -----------------------------------------------------------------------------

// PriceProvider exposes the latest published bar. The market controller
// satisfies this.
type PriceProvider interface {
	LatestBar() (models.MCandlePoint, bool)
}

// -----------------------------------------------------------------------------

type MConversionResult struct {
	ISK  string `json:"isk"`
	PLEX string `json:"plex"`
	OK   bool   `json:"ok"`
}

// -----------------------------------------------------------------------------

type Converter struct {
	Prices PriceProvider
}

// -----------------------------------------------------------------------------

func NewConverter(prices PriceProvider) *Converter {
	return &Converter{Prices: prices}
}

// -----------------------------------------------------------------------------

// FromISK recomputes the PLEX field after an edit of the ISK field:
// PLEX = floor(ISK / buyPrice).
func (c *Converter) FromISK(input string) MConversionResult {
	isk, err := parseAmount(input)
	if err != nil {
		return MConversionResult{}
	}

	bar, ok := c.Prices.LatestBar()
	if !ok || bar.Open <= 0 {
		return MConversionResult{}
	}

	plex := math.Floor(isk / bar.Open)
	return MConversionResult{
		ISK:  humanize.FormatFloat("#,###.##", isk),
		PLEX: humanize.Comma(int64(plex)),
		OK:   true,
	}
}

// -----------------------------------------------------------------------------

// FromPLEX recomputes the ISK field after an edit of the PLEX field:
// ISK = PLEX * sellPrice.
func (c *Converter) FromPLEX(input string) MConversionResult {
	plex, err := parseAmount(input)
	if err != nil {
		return MConversionResult{}
	}

	bar, ok := c.Prices.LatestBar()
	if !ok || bar.Close <= 0 {
		return MConversionResult{}
	}

	isk := plex * bar.Close
	return MConversionResult{
		ISK:  humanize.FormatFloat("#,###.##", isk),
		PLEX: humanize.Comma(int64(math.Floor(plex))),
		OK:   true,
	}
}

// -----------------------------------------------------------------------------

// parseAmount accepts user-typed numbers, tolerating thousands separators
// and surrounding whitespace. Negative amounts are rejected.
func parseAmount(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
