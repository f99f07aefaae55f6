package server

import (
	"encoding/json"
	"net/http"

	"plex-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub is the main hub loop
func (s *APIServer) runHub() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Add(1)
			// Send the current full state on connect
			s.stateMutex.RLock()
			if s.latestState != nil {
				client.send <- s.latestState
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				s.clientCount.Add(-1)
				close(client.send)
			}

		case message := <-s.broadcast:
			s.absorb(message)

			// Broadcast to all clients
			for client := range s.clients {
				select {
				case client.send <- message:
					// Message sent successfully
				default:
					// Client too slow, disconnect to keep the hub loop moving
					delete(s.clients, client)
					s.clientCount.Add(-1)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// absorb merges a broadcast message into the cached state so late joiners
// receive a snapshot consistent with everything already pushed.
func (s *APIServer) absorb(message interface{}) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	switch m := message.(type) {
	case *models.MSeriesSnapshot:
		s.latestState = m

	case *models.MSeriesPointUpdate:
		s.applyPoint(m)

	case *statusMessage:
		s.latestState.Connected = m.Connected
	}
}

// -----------------------------------------------------------------------------

// applyPoint appends the bar, or replaces the last one when the bucket time
// matches. The four series always move together.
func (s *APIServer) applyPoint(u *models.MSeriesPointUpdate) {
	set := &s.latestState.Series
	n := len(set.Candles)

	if n > 0 && set.Candles[n-1].Time == u.Point.Candle.Time {
		set.Candles[n-1] = u.Point.Candle
		set.Volume[n-1] = u.Point.Volume
		set.HighLine[n-1] = u.Point.HighPoint
		set.LowLine[n-1] = u.Point.LowPoint
		return
	}

	set.Candles = append(set.Candles, u.Point.Candle)
	set.Volume = append(set.Volume, u.Point.Volume)
	set.HighLine = append(set.HighLine, u.Point.HighPoint)
	set.LowLine = append(set.LowLine, u.Point.LowPoint)
	s.latestState.Type = "UPDATE"
}

// -----------------------------------------------------------------------------
// Series Sink Interface Implementation
// -----------------------------------------------------------------------------

// SetSeries replaces the full series set and pushes it to every client.
func (s *APIServer) SetSeries(snapshot models.MSeriesSnapshot) {
	s.broadcast <- &snapshot
}

// -----------------------------------------------------------------------------

// UpdatePoint pushes a single-bar append/update.
func (s *APIServer) UpdatePoint(update models.MSeriesPointUpdate) {
	s.broadcast <- &update
}

// -----------------------------------------------------------------------------

// SetConnectivity reflects the upstream channel state to clients.
func (s *APIServer) SetConnectivity(connected bool) {
	s.broadcast <- &statusMessage{Type: "STATUS", Connected: connected}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the hub loop
		send: make(chan interface{}, 256),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage processes the subscribe command. A timeframe in the
// command switches the active aggregation granularity; the resulting full
// series replace reaches all clients through the normal broadcast path.
func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	if cmd.Timeframe != "" {
		if err := s.Controller.SetTimeframe(cmd.Timeframe); err != nil {
			s.Logger.Warning("Client requested invalid timeframe %q: %v", cmd.Timeframe, err)
		}
	}
}
