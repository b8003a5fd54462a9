package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pvp-arena/internal/domain"
)

// Message types
const (
	MessageTypeMatchCreated   = "match_created"
	MessageTypeMatchCompleted = "match_completed"
	MessageTypeSubscribe      = "subscribe"
	MessageTypeUnsubscribe    = "unsubscribe"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeError          = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	PlayerID  string      `json:"player_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// MatchNotice is the payload pushed to a player when a match touches them
type MatchNotice struct {
	MatchID    string `json:"match_id"`
	OpponentID string `json:"opponent_id"`
	Seed       int64  `json:"seed,omitempty"`
	Status     string `json:"status"`
	Won        *bool  `json:"won,omitempty"`
	XPGained   int64  `json:"xp_gained,omitempty"`
}

// Hub maintains the set of active clients and routes match notifications to
// the players they concern
type Hub struct {
	// Registered clients by the player id they follow
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound notifications
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client   *Client
	playerID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all player subscriptions
				for playerID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, playerID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.playerID]; !ok {
				h.clients[req.playerID] = make(map[*Client]bool)
			}
			h.clients[req.playerID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "player_id", req.playerID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.playerID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.playerID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "player_id", req.playerID)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// deliver sends a message to the clients subscribed to its player id
func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	clients, ok := h.clients[message.PlayerID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// NotifyMatchCreated tells the opponent they have been challenged
func (h *Hub) NotifyMatchCreated(match *domain.Match) {
	message := &Message{
		Type:     MessageTypeMatchCreated,
		PlayerID: match.Player2ID,
		Data: MatchNotice{
			MatchID:    match.ID,
			OpponentID: match.Player1ID,
			Seed:       match.Seed,
			Status:     string(match.Status),
		},
		Timestamp: time.Now(),
	}
	h.enqueue(message)
}

// NotifyMatchCompleted tells both participants the match has settled
func (h *Hub) NotifyMatchCompleted(match *domain.Match, result *domain.CombatResult) {
	winnerID, _ := match.Winner(result)
	for _, playerID := range []string{match.Player1ID, match.Player2ID} {
		opponentID := match.Player1ID
		if playerID == match.Player1ID {
			opponentID = match.Player2ID
		}
		won := playerID == winnerID
		xp := int64(0)
		if won {
			xp = result.XPGained
		}
		h.enqueue(&Message{
			Type:     MessageTypeMatchCompleted,
			PlayerID: playerID,
			Data: MatchNotice{
				MatchID:    match.ID,
				OpponentID: opponentID,
				Status:     string(domain.MatchStatusCompleted),
				Won:        &won,
				XPGained:   xp,
			},
			Timestamp: time.Now(),
		})
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a player's notification feed
func (h *Hub) Subscribe(client *Client, playerID string) {
	h.subscribe <- &subscriptionRequest{
		client:   client,
		playerID: playerID,
	}
}

// Unsubscribe removes a client from a player's notification feed
func (h *Hub) Unsubscribe(client *Client, playerID string) {
	h.unsubscribe <- &subscriptionRequest{
		client:   client,
		playerID: playerID,
	}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
