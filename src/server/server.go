package server

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"plex-observer/src/analysis"
	"plex-observer/src/controller"
	"plex-observer/src/convert"
	"plex-observer/src/logger"
	"plex-observer/src/models"
	"plex-observer/src/store"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// APIServer
//
// Serves the REST endpoints and the websocket hub that chart clients consume.
// It is the concrete series sink: the controller publishes full series
// replacements or single-point updates here, and the hub fans them out.
// -----------------------------------------------------------------------------

type APIServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	engine     *gin.Engine
	Store      *store.QuoteStore
	Controller *controller.MarketController
	Converter  *convert.Converter

	// PersistConfig, when set, writes runtime config changes back to disk.
	PersistConfig func() error

	// WebSocket clients. The map belongs to the hub goroutine; handlers
	// read the atomic counter instead.
	clients     map[*Client]struct{}
	clientCount atomic.Int64
	broadcast   chan interface{} // *MSeriesSnapshot, *MSeriesPointUpdate or *statusMessage
	register    chan *Client
	unregister  chan *Client

	// Local cache of the last published state, served to late joiners
	latestState *models.MSeriesSnapshot
	stateMutex  sync.RWMutex

	now func() int64
}

// -----------------------------------------------------------------------------

// statusMessage tells clients the upstream live channel opened or closed.
type statusMessage struct {
	Type      string `json:"type"` // "STATUS"
	Connected bool   `json:"connected"`
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(
	cfg *models.MConfig,
	log *logger.Logger,
	st *store.QuoteStore,
	ctrl *controller.MarketController,
	conv *convert.Converter,
) *APIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		engine:     gin.Default(),
		Store:      st,
		Controller: ctrl,
		Converter:  conv,
		clients:    make(map[*Client]struct{}),
		// Buffered channel so bursts of updates never block the publisher
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		now:        func() int64 { return time.Now().Unix() },
		latestState: &models.MSeriesSnapshot{
			Type:      "INITIAL",
			Timeframe: cfg.DefaultTimeframe,
			Series: models.MSeriesSet{
				Candles:  []models.MCandlePoint{},
				Volume:   []models.MVolumePoint{},
				HighLine: []models.MLinePoint{},
				LowLine:  []models.MLinePoint{},
			},
		},
	}

	// CORS middleware for the local chart frontend
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/historical-data/", s.getHistoricalData)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.PUT("/api/config", s.putConfig)
	s.engine.GET("/api/convert", s.getConvert)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.runHub()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

// getHistoricalData returns the raw quote window as the upstream feed shape:
// an array of {timestamp, highest_buy, lowest_sell, buy_volume, sell_volume}.
// The ?timeframe= selector bounds the window: 5M serves the last five
// minutes, 1M the last thirty days. No or unknown selector means one day.
func (s *APIServer) getHistoricalData(c *gin.Context) {
	tf := analysis.TimeframeDay
	if label := c.Query("timeframe"); label != "" {
		if parsed, err := analysis.ParseTimeframe(label); err == nil {
			tf = parsed
		}
	}
	cutoff := s.now() - analysis.WindowSeconds(tf)

	quotes := s.Store.Sorted()

	out := make([]gin.H, 0, len(quotes))
	for _, q := range quotes {
		if q.Timestamp < cutoff {
			continue
		}
		out = append(out, gin.H{
			"timestamp":   time.Unix(q.Timestamp, 0).UTC().Format(time.RFC3339),
			"highest_buy": q.HighestBuy,
			"lowest_sell": q.LowestSell,
			"buy_volume":  q.BuyVolume,
			"sell_volume": q.SellVolume,
		})
	}

	c.JSON(200, out)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connected := s.latestState.Connected
	s.stateMutex.RUnlock()
	connections := int(s.clientCount.Load())

	var latest int64
	if q, ok := s.Store.Latest(); ok {
		latest = q.Timestamp
	}

	c.JSON(200, gin.H{
		"status":        "ok",
		"connections":   connections,
		"connected":     connected,
		"latest_update": latest,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	s.stateMutex.RLock()
	defaultTF := s.Config.DefaultTimeframe
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"timeframes":        s.Config.Timeframes,
		"default_timeframe": defaultTF,
	})
}

// -----------------------------------------------------------------------------

// putConfig changes the default timeframe at runtime. The switch takes
// effect immediately through the controller; when a persist hook is attached
// the new default also survives restarts.
func (s *APIServer) putConfig(c *gin.Context) {
	var body struct {
		DefaultTimeframe string `json:"default_timeframe"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.DefaultTimeframe == "" {
		c.JSON(400, gin.H{"error": "default_timeframe is required"})
		return
	}

	if err := s.Controller.SetTimeframe(body.DefaultTimeframe); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.stateMutex.Lock()
	s.Config.DefaultTimeframe = body.DefaultTimeframe
	s.stateMutex.Unlock()

	if s.PersistConfig != nil {
		if err := s.PersistConfig(); err != nil {
			s.Logger.Warning("Failed to persist config change: %v", err)
		}
	}

	c.JSON(200, gin.H{"default_timeframe": body.DefaultTimeframe})
}

// -----------------------------------------------------------------------------

// getConvert converts between ISK and PLEX amounts off the latest bar.
// Exactly one of ?isk= or ?plex= is expected; bad input yields cleared
// fields, never an error status.
func (s *APIServer) getConvert(c *gin.Context) {
	if isk, ok := c.GetQuery("isk"); ok {
		c.JSON(200, s.Converter.FromISK(isk))
		return
	}
	if plex, ok := c.GetQuery("plex"); ok {
		c.JSON(200, s.Converter.FromPLEX(plex))
		return
	}
	c.JSON(200, convert.MConversionResult{})
}
