package ws

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/metrics"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxInboundFrame bounds a decompressed client frame.
const maxInboundFrame = 1 << 20

// Sender is the write side of a websocket connection.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ChainLister returns the chains whose rooms a user joins.
type ChainLister interface {
	ListChainIDsForUser(userID uint) ([]uint, error)
}

// ClientConnection wraps a websocket connection with its handle id. Writes
// are serialized per connection.
type ClientConnection struct {
	ID           string
	UserID       uint
	Conn         Sender
	SupportsGzip bool

	writeMu  sync.Mutex
	pongMu   sync.Mutex
	lastPong time.Time
}

// Send writes one frame, gzip-compressing large payloads when the client
// supports it.
func (c *ClientConnection) Send(data []byte) error {
	frameType := websocket.TextMessage
	if c.SupportsGzip && len(data) > 512 {
		if compressed, err := compressData(data); err == nil && len(compressed) < len(data) {
			data = compressed
			frameType = websocket.BinaryMessage
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(frameType, data)
}

func (c *ClientConnection) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

func (c *ClientConnection) ping(deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, []byte{}, deadline)
}

// Touch records a pong.
func (c *ClientConnection) Touch() {
	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()
}

func (c *ClientConnection) LastPong() time.Time {
	c.pongMu.Lock()
	defer c.pongMu.Unlock()
	return c.lastPong
}

// Hub tracks live connections and the chain rooms they sit in. All three maps
// are guarded by mu; frames are written outside the lock on a snapshot.
type Hub struct {
	mu                sync.RWMutex
	clients           map[string]*ClientConnection // handle id -> connection
	connectionsByUser map[uint]string              // user id -> current handle id
	membersByChain    map[uint]map[string]struct{} // chain id -> handle ids

	chains  ChainLister
	metrics *metrics.Metrics
	log     *logrus.Entry

	pingInterval time.Duration
	pongTimeout  time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewHub creates a new Hub instance
func NewHub(chains ChainLister, m *metrics.Metrics, log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:           make(map[string]*ClientConnection),
		connectionsByUser: make(map[uint]string),
		membersByChain:    make(map[uint]map[string]struct{}),
		chains:            chains,
		metrics:           m,
		log:               logger.Component(log, "hub"),
		pingInterval:      30 * time.Second,
		pongTimeout:       90 * time.Second,
		stopChan:          make(chan struct{}),
		doneChan:          make(chan struct{}),
	}
}

// Start launches the keepalive loop that pings clients and drops the ones
// that stopped answering.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.keepalive()
}

// Stop ends the keepalive loop and closes every connection.
func (h *Hub) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopChan) })

	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()
	if started {
		select {
		case <-h.doneChan:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, client := range h.snapshot(nil) {
		_ = client.Conn.Close()
		h.Disconnect(client.ID)
	}
	h.log.Info("Hub stopped")
	return nil
}

// Connect registers a connection for userID and returns its handle. No room
// is joined until JoinChains.
func (h *Hub) Connect(userID uint, conn Sender, supportsGzip bool) *ClientConnection {
	client := &ClientConnection{
		ID:           uuid.NewString(),
		UserID:       userID,
		Conn:         conn,
		SupportsGzip: supportsGzip,
		lastPong:     time.Now(),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnections(total)
	h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": client.ID, "total": total}).Info("Client connected")
	return client
}

// JoinChains maps userID to connID and adds connID to the room of every chain
// the user takes part in. A different handle previously mapped to the user is
// first removed from all rooms. Calling it again with the same handle is
// harmless.
func (h *Hub) JoinChains(userID uint, connID string) ([]uint, error) {
	chainIDs, err := h.chains.ListChainIDsForUser(userID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	client, ok := h.clients[connID]
	if !ok || client.UserID != userID {
		h.mu.Unlock()
		return nil, errUnknownConnection
	}

	if prev, exists := h.connectionsByUser[userID]; exists && prev != connID {
		h.leaveAllRoomsLocked(prev)
		h.log.WithFields(logrus.Fields{"user_id": userID, "stale_conn_id": prev}).Info("Replaced stale connection")
	}
	h.connectionsByUser[userID] = connID

	for _, chainID := range chainIDs {
		room, exists := h.membersByChain[chainID]
		if !exists {
			room = make(map[string]struct{})
			h.membersByChain[chainID] = room
		}
		room[connID] = struct{}{}
	}
	rooms := len(h.membersByChain)
	h.mu.Unlock()

	h.metrics.SetRooms(rooms)
	h.log.WithFields(logrus.Fields{"user_id": userID, "conn_id": connID, "chains": len(chainIDs)}).Debug("Joined chain rooms")
	return chainIDs, nil
}

// RouteMessage pushes a stored message to its live recipients. Direct
// messages go to the receiver's current handle, or nowhere. Chain messages go
// to every handle in the room except the sender's. Write failures are logged
// and counted only.
func (h *Hub) RouteMessage(msg *models.Message) {
	if msg == nil {
		return
	}
	kind := msg.DeliveryKind()
	targets := h.routeTargets(msg, kind)
	if len(targets) == 0 {
		h.metrics.Delivery(kind, metrics.ResultDropped)
		return
	}

	data, err := json.Marshal(models.NewDelivery(msg))
	if err != nil {
		h.log.WithError(err).WithField("message_id", msg.ID).Error("Failed to encode delivery")
		return
	}

	for _, client := range targets {
		if err := client.Send(data); err != nil {
			h.metrics.Delivery(kind, metrics.ResultFailed)
			h.log.WithError(err).WithFields(logrus.Fields{
				"message_id": msg.ID,
				"user_id":    client.UserID,
				"conn_id":    client.ID,
			}).Warn("Delivery failed")
			continue
		}
		h.metrics.Delivery(kind, metrics.ResultDelivered)
	}
}

func (h *Hub) routeTargets(msg *models.Message, kind string) []*ClientConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch kind {
	case models.DeliveryDirect:
		if msg.ReceiverID == nil {
			return nil
		}
		connID, ok := h.connectionsByUser[*msg.ReceiverID]
		if !ok {
			return nil
		}
		if client, ok := h.clients[connID]; ok {
			return []*ClientConnection{client}
		}
		return nil
	case models.DeliveryChain:
		room := h.membersByChain[*msg.ChainID]
		senderConn := h.connectionsByUser[msg.SenderID]
		targets := make([]*ClientConnection, 0, len(room))
		for connID := range room {
			if connID == senderConn {
				continue
			}
			if client, ok := h.clients[connID]; ok {
				targets = append(targets, client)
			}
		}
		return targets
	}
	return nil
}

// SendToUser pushes an event to the user's current handle. It reports
// whether the user had one.
func (h *Hub) SendToUser(userID uint, v interface{}) bool {
	h.mu.RLock()
	client := h.clients[h.connectionsByUser[userID]]
	h.mu.RUnlock()
	if client == nil {
		return false
	}
	if err := client.WriteJSON(v); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Event push failed")
		return false
	}
	return true
}

// Disconnect removes the handle from every room, deleting rooms left empty,
// and drops the user mapping that points at it.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connID)
	h.leaveAllRoomsLocked(connID)
	for userID, handle := range h.connectionsByUser {
		if handle == connID {
			delete(h.connectionsByUser, userID)
		}
	}
	total, rooms := len(h.clients), len(h.membersByChain)
	h.mu.Unlock()

	h.metrics.SetConnections(total)
	h.metrics.SetRooms(rooms)
	h.log.WithFields(logrus.Fields{"user_id": client.UserID, "conn_id": connID, "total": total}).Info("Client disconnected")
}

// ConnectionsFor counts the live handles of userID, joined or not.
func (h *Hub) ConnectionsFor(userID uint) int {
	return len(h.snapshot(func(c *ClientConnection) bool { return c.UserID == userID }))
}

// IsOnline reports whether the user has a mapped handle.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connectionsByUser[userID]
	return ok
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMembers returns the handle ids in a chain room.
func (h *Hub) RoomMembers(chainID uint) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.membersByChain[chainID]))
	for id := range h.membersByChain[chainID] {
		out = append(out, id)
	}
	return out
}

func (h *Hub) leaveAllRoomsLocked(connID string) {
	for chainID, room := range h.membersByChain {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.membersByChain, chainID)
		}
	}
}

func (h *Hub) snapshot(filter func(*ClientConnection) bool) []*ClientConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*ClientConnection, 0, len(h.clients))
	for _, c := range h.clients {
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) keepalive() {
	defer close(h.doneChan)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

// sweep drops connections without a pong inside pongTimeout and pings the rest.
func (h *Hub) sweep(now time.Time) {
	for _, client := range h.snapshot(nil) {
		if now.Sub(client.LastPong()) > h.pongTimeout {
			h.log.WithField("user_id", client.UserID).Info("Removing dead connection (no pong received)")
			_ = client.Conn.Close()
			h.Disconnect(client.ID)
			continue
		}
		if err := client.ping(now.Add(10 * time.Second)); err != nil {
			h.log.WithError(err).WithField("user_id", client.UserID).Warn("Ping failed")
			_ = client.Conn.Close()
			h.Disconnect(client.ID)
		}
	}
}

func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressMessage inflates a gzip-compressed inbound frame.
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(io.LimitReader(reader, maxInboundFrame))
}
