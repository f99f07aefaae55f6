package collector

import (
	"errors"
	"testing"

	"plex-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

type fakeNetwork struct {
	body []byte
	err  error
	url  string
}

func (f *fakeNetwork) Get(url string, params map[string]string) ([]byte, error) {
	f.url = url
	return f.body, f.err
}

// -----------------------------------------------------------------------------

func buy(price, volume float64) marketOrder {
	return marketOrder{IsBuyOrder: true, Price: price, VolumeRemain: volume}
}

func sell(price, volume float64) marketOrder {
	return marketOrder{IsBuyOrder: false, Price: price, VolumeRemain: volume}
}

// -----------------------------------------------------------------------------

func TestDeriveQuote(t *testing.T) {
	orders := []marketOrder{
		buy(4900000, 10),
		buy(4950000, 5),
		sell(5100000, 20),
		sell(5050000, 8),
	}

	q, err := deriveQuote(orders, 1715731200)
	require.NoError(t, err)

	assert.Equal(t, int64(1715731200), q.Timestamp)
	assert.Equal(t, 4950000.0, q.HighestBuy)
	assert.Equal(t, 5050000.0, q.LowestSell)
	assert.Equal(t, 15.0, q.BuyVolume)
	assert.Equal(t, 28.0, q.SellVolume)
}

// -----------------------------------------------------------------------------

func TestDeriveQuote_CrossedBook(t *testing.T) {
	// Buy above sell is a valid momentary state; the reduction does not
	// try to repair it.
	orders := []marketOrder{
		buy(5200000, 1),
		sell(5100000, 1),
	}

	q, err := deriveQuote(orders, 100)
	require.NoError(t, err)
	assert.Greater(t, q.HighestBuy, q.LowestSell)
}

// -----------------------------------------------------------------------------

func TestDeriveQuote_MissingSide(t *testing.T) {
	_, err := deriveQuote([]marketOrder{buy(100, 1)}, 0)
	assert.Error(t, err)

	_, err = deriveQuote([]marketOrder{sell(100, 1)}, 0)
	assert.Error(t, err)

	_, err = deriveQuote(nil, 0)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestFetchQuote(t *testing.T) {
	net := &fakeNetwork{body: []byte(`{
		"orders": [
			{"isBuyOrder": true, "price": 4900000, "volumeRemain": 3},
			{"isBuyOrder": false, "price": 5100000, "volumeRemain": 7}
		]
	}`)}

	cfg := &models.MConfig{
		LogLevel: "INFO",
		Collector: models.MCollectorConfig{
			OrdersURL: "https://orders.example/type/44992",
		},
	}

	c := NewCollector(cfg, net, nil)
	c.now = func() int64 { return 1715731200 }

	q, err := c.FetchQuote()
	require.NoError(t, err)

	assert.Equal(t, "https://orders.example/type/44992", net.url)
	assert.Equal(t, int64(1715731200), q.Timestamp)
	assert.Equal(t, 4900000.0, q.HighestBuy)
	assert.Equal(t, 5100000.0, q.LowestSell)
}

// -----------------------------------------------------------------------------

func TestFetchQuote_NetworkError(t *testing.T) {
	net := &fakeNetwork{err: errors.New("connection refused")}
	c := NewCollector(&models.MConfig{LogLevel: "INFO"}, net, nil)

	_, err := c.FetchQuote()
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestFetchQuote_MalformedPayload(t *testing.T) {
	net := &fakeNetwork{body: []byte(`{"orders": "nope"}`)}
	c := NewCollector(&models.MConfig{LogLevel: "INFO"}, net, nil)

	_, err := c.FetchQuote()
	assert.Error(t, err)
}
