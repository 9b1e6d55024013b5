// Package realtime fans board events out to connected websocket clients. Each
// client subscribes to one tenant's board, optionally narrowed to a single
// pipeline, and receives the board events other users' mutations produce.
package realtime

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/gorilla/websocket"
)

// Client is one websocket subscriber
type Client struct {
	conn       *websocket.Conn
	tenantID   string
	pipelineID string
	send       chan []byte
	hub        *Hub
	closeOnce  sync.Once
}

// Hub tracks connected clients and broadcasts board events to them
type Hub struct {
	logger  ectologger.Logger
	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a new hub
func NewHub(logger ectologger.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]bool),
	}
}

// Register adds a websocket connection to the hub and starts its pumps. An
// empty pipelineID subscribes the client to every pipeline of the tenant.
func (h *Hub) Register(conn *websocket.Conn, tenantID, pipelineID string) *Client {
	client := &Client{
		conn:       conn,
		tenantID:   tenantID,
		pipelineID: pipelineID,
		send:       make(chan []byte, 64),
		hub:        h,
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()

	go client.writePump()
	go client.readPump()

	h.logger.WithFields(map[string]any{
		"tenant_id":   tenantID,
		"pipeline_id": pipelineID,
	}).Debug("Websocket client connected")

	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.mu.Unlock()

	close(client.send)
	metrics.WebsocketClients.Dec()
}

// Broadcast sends a board event to every client subscribed to its board
func (h *Hub) Broadcast(event *events.BoardEvent) {
	data, err := event.ToJSON()
	if err != nil {
		h.logger.WithError(err).Error("Failed to serialize event for broadcast")
		return
	}

	// Sends happen under the read lock so no client's channel can be closed
	// out from under us; unregister takes the write lock.
	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		if client.tenantID != event.TenantID {
			continue
		}
		if client.pipelineID != "" && client.pipelineID != event.PipelineID {
			continue
		}
		select {
		case client.send <- data:
			metrics.WebsocketEventsDelivered.Inc()
		default:
			// The client is not draining its queue; drop it rather than
			// blocking every other subscriber.
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.WithFields(map[string]any{
			"tenant_id": client.tenantID,
		}).Warn("Dropping slow websocket client")
		client.Close()
	}
}

// HandleMessage is the Kafka consumer handler that feeds the hub
func (h *Hub) HandleMessage(ctx context.Context, msg *kafka.ReceivedMessage) error {
	event, err := events.ParseBoardEvent(msg.Value)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Errorf("Failed to parse board event at offset %d", msg.Offset)
		return nil // bad message, nothing to retry
	}

	h.Broadcast(event)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
}

// Close disconnects the client and removes it from the hub
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		c.conn.Close()
	})
}

// writePump drains the send queue onto the wire
func (c *Client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			return
		}
	}
}

// readPump discards inbound frames and detects disconnects. Clients only
// listen; mutations go through the HTTP API.
func (c *Client) readPump() {
	defer c.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
