package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"plex-observer/src/logger"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// fakeUpstream simulates the hosted PLEX feed for end-to-end runs: it serves
// a synthetic historical window and pushes a fresh random quote to every
// websocket subscriber on a short interval.
// -----------------------------------------------------------------------------

type fakeUpstream struct {
	Logger   *logger.Logger
	interval time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

var fakeUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func newFakeUpstream(interval time.Duration) *fakeUpstream {
	return &fakeUpstream{
		Logger:   logger.NewLogger("FakeUpstream", "DEBUG"),
		interval: interval,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// -----------------------------------------------------------------------------

// start serves the fake feed on the given port and begins the push loop.
func (f *fakeUpstream) start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/historical-data/", f.handleHistorical)
	mux.HandleFunc("/ws", f.handleWS)

	go f.pushLoop()
	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		f.Logger.Info("Fake upstream listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			f.Logger.Critical("Fake upstream failed: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// handleHistorical returns two days of synthetic 5-minute quotes.
func (f *fakeUpstream) handleHistorical(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Truncate(5 * time.Minute)
	start := now.Add(-48 * time.Hour)

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, "[")
	first := true
	for ts := start; !ts.After(now); ts = ts.Add(5 * time.Minute) {
		if !first {
			fmt.Fprint(w, ",")
		}
		first = false
		fmt.Fprint(w, quoteJSON(ts))
	}
	fmt.Fprint(w, "]")
}

// -----------------------------------------------------------------------------

func (f *fakeUpstream) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := fakeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	f.mu.Unlock()
	f.Logger.Info("Subscriber connected")
}

// -----------------------------------------------------------------------------

func (f *fakeUpstream) pushLoop() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for range ticker.C {
		msg := []byte(quoteJSON(time.Now().UTC()))

		f.mu.Lock()
		for conn := range f.conns {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				delete(f.conns, conn)
			}
		}
		f.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------

// quoteJSON renders one synthetic quote around a plausible PLEX price level.
func quoteJSON(ts time.Time) string {
	buy := 5_200_000 + rand.Float64()*100_000
	sell := buy + (rand.Float64()-0.3)*50_000
	return fmt.Sprintf(
		`{"timestamp":%q,"highest_buy":%.2f,"lowest_sell":%.2f,"buy_volume":%d,"sell_volume":%d}`,
		ts.Format(time.RFC3339), buy, sell, 1000+rand.Intn(5000), 1000+rand.Intn(5000),
	)
}
