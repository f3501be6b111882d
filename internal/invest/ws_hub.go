// Package invest — WebSocket hub for real-time position event broadcasting.
package invest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/regionspay/invest-engine/internal/metrics"
	"github.com/regionspay/invest-engine/internal/model"
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type       string `json:"type"`
	PositionID string `json:"position_id"`
	OwnerID    string `json:"owner_id"`
	PlanID     string `json:"plan_id,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Value      string `json:"value,omitempty"`
	Status     string `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// WSHub manages WebSocket connections and broadcasts messages to all
// connected clients when position values change.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "total", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.WebSocketClients.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			// Write lock: failed writes evict the client from the map.
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
					metrics.WebSocketClients.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking lifecycle operations.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}

// HubNotifier broadcasts lifecycle events over the hub.
type HubNotifier struct {
	Hub *WSHub
}

func (n HubNotifier) PositionCreated(p *model.InvestmentPosition) {
	n.Hub.Broadcast(WSMessage{
		Type:       "position_created",
		PositionID: p.ID,
		OwnerID:    p.OwnerID,
		PlanID:     p.PlanID,
		Currency:   p.Currency,
		Amount:     p.Amount.String(),
		Value:      p.CurrentValue.String(),
		Status:     string(p.Status),
	})
}

func (n HubNotifier) SignificantGrowth(p *model.InvestmentPosition, increment decimal.Decimal) {
	n.Hub.Broadcast(WSMessage{
		Type:       "significant_growth",
		PositionID: p.ID,
		OwnerID:    p.OwnerID,
		Currency:   p.Currency,
		Amount:     increment.String(),
		Value:      p.CurrentValue.String(),
		Status:     string(p.Status),
	})
}

func (n HubNotifier) LiquidityAdded(p *model.InvestmentPosition, amount decimal.Decimal) {
	n.Hub.Broadcast(WSMessage{
		Type:       "liquidity_added",
		PositionID: p.ID,
		OwnerID:    p.OwnerID,
		Currency:   p.Currency,
		Amount:     amount.String(),
		Value:      p.CurrentValue.String(),
		Status:     string(p.Status),
	})
}

func (n HubNotifier) PositionCancelled(p *model.InvestmentPosition, reason string) {
	n.Hub.Broadcast(WSMessage{
		Type:       "position_cancelled",
		PositionID: p.ID,
		OwnerID:    p.OwnerID,
		Status:     string(p.Status),
		Reason:     reason,
	})
}
