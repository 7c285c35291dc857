package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirage/server/internal/auth"
	"github.com/mirage/server/internal/chunkcache"
	"github.com/mirage/server/internal/compression"
	"github.com/mirage/server/internal/config"
	"github.com/mirage/server/internal/database"
	"github.com/mirage/server/internal/performance"
	"github.com/mirage/server/internal/streaming"
)

const (
	// Supported WebSocket protocol versions
	ProtocolVersion1 = "mirage-v1"

	// Default ping interval (30 seconds)
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout (60 seconds)
	pongWait = 60 * time.Second

	// Write timeout (10 seconds)
	writeTimeout = 10 * time.Second

	// Largest client message accepted
	maxMessageSize = 64 * 1024

	// Registry lookups made from the read loop
	worldLookupTimeout = 5 * time.Second
)

// WebSocketConnection represents an active WebSocket connection
type WebSocketConnection struct {
	conn       *websocket.Conn
	sessionID  string
	playerName string
	version    string
	send       chan []byte
	quit       chan struct{}
	closeOnce  sync.Once
	hub        *WebSocketHub

	// map size per subscription; only touched by the read loop
	worldSizes map[string]int
}

// WebSocketHub manages all active WebSocket connections
type WebSocketHub struct {
	connections map[*WebSocketConnection]bool
	broadcast   chan []byte
	register    chan *WebSocketConnection
	unregister  chan *WebSocketConnection
	done        chan struct{}
	mu          sync.RWMutex
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError represents an error message sent over WebSocket
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		connections: make(map[*WebSocketConnection]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *WebSocketConnection),
		unregister:  make(chan *WebSocketConnection),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop. When ctx is cancelled every connection is
// closed and Run returns.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Printf("WebSocket connection registered: session_id=%s, player=%s, version=%s", conn.sessionID, conn.playerName, conn.version)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				conn.close()
			}
			h.mu.Unlock()
			log.Printf("WebSocket connection unregistered: session_id=%s", conn.sessionID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					conn.close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				conn.close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// SendToSession sends a message to every connection of a guest session
func (h *WebSocketHub) SendToSession(sessionID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		if conn.sessionID == sessionID {
			select {
			case conn.send <- message:
			default:
				conn.close()
				delete(h.connections, conn)
			}
		}
	}
}

// Count returns the number of registered connections
func (h *WebSocketHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *WebSocketHub) add(conn *WebSocketConnection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

func (h *WebSocketHub) remove(conn *WebSocketConnection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// WebSocketHandlers handles WebSocket connections
type WebSocketHandlers struct {
	hub           *WebSocketHub
	jwtService    *auth.JWTService
	worlds        *database.WorldStorage
	chunks        *chunkcache.Cache
	streamManager *streaming.Manager
	profiler      *performance.Profiler
	defaultRadius int
	compress      bool
	debug         bool
	upgrader      websocket.Upgrader
}

// NewWebSocketHandlers creates a new WebSocket handlers instance
func NewWebSocketHandlers(cfg *config.Config, jwtService *auth.JWTService, worlds *database.WorldStorage, chunks *chunkcache.Cache, profiler *performance.Profiler) *WebSocketHandlers {
	streamManager := streaming.NewManager(cfg.Stream.MaxRadius)
	streamManager.SetDebug(cfg.Logging.Debug())

	allowedOrigins := cfg.Server.AllowedOrigins

	return &WebSocketHandlers{
		hub:           NewWebSocketHub(),
		jwtService:    jwtService,
		worlds:        worlds,
		chunks:        chunks,
		streamManager: streamManager,
		profiler:      profiler,
		defaultRadius: cfg.Stream.DefaultRadius,
		compress:      cfg.Stream.Compress,
		debug:         cfg.Logging.Debug(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token, err := h.extractToken(r)
	if err != nil {
		log.Printf("WebSocket authentication failed: %v", err)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		log.Printf("WebSocket token validation failed: %v", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	requestedVersions := r.Header.Get("Sec-WebSocket-Protocol")
	selectedVersion := h.negotiateVersion(requestedVersions)
	if selectedVersion == "" {
		log.Printf("WebSocket version negotiation failed: requested=%s", requestedVersions)
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	// Browsers reject a subprotocol they did not ask for
	responseHeaders := http.Header{}
	if requestedVersions != "" {
		responseHeaders.Set("Sec-WebSocket-Protocol", selectedVersion)
	}

	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := &WebSocketConnection{
		conn:       conn,
		sessionID:  claims.SessionID,
		playerName: claims.PlayerName,
		version:    selectedVersion,
		send:       make(chan []byte, 256),
		quit:       make(chan struct{}),
		hub:        h.hub,
		worldSizes: make(map[string]int),
	}

	if !h.hub.add(wsConn) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go wsConn.writePump()
	go wsConn.readPump(h)
}

// extractToken extracts JWT token from request (query param or header)
func (h *WebSocketHandlers) extractToken(r *http.Request) (string, error) {
	// Browsers cannot set headers on WebSocket requests
	token := r.URL.Query().Get("token")
	if token != "" {
		return token, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
	}

	return "", fmt.Errorf("missing authentication token")
}

// negotiateVersion selects the highest supported protocol version
func (h *WebSocketHandlers) negotiateVersion(requested string) string {
	if requested == "" {
		return ProtocolVersion1
	}

	requestedVersions := strings.Split(requested, ",")
	for i := range requestedVersions {
		requestedVersions[i] = strings.TrimSpace(requestedVersions[i])
	}

	// Highest first
	supportedVersions := []string{ProtocolVersion1}

	for _, supported := range supportedVersions {
		if slices.Contains(requestedVersions, supported) {
			return supported
		}
	}

	return ""
}

// readPump handles incoming messages from the WebSocket connection
func (c *WebSocketConnection) readPump(handlers *WebSocketHandlers) {
	defer func() {
		if removed := handlers.streamManager.RemoveUserSubscriptions(c.sessionID); removed > 0 && handlers.debug {
			log.Printf("[Stream] Dropped %d subscriptions for session %s", removed, c.sessionID)
		}
		c.hub.remove(c)
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
			return err
		}
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError("", "Invalid message format", "InvalidMessageFormat")
			continue
		}

		handlers.handleMessage(c, &msg)
	}
}

// writePump handles outgoing messages to the WebSocket connection.
// Each message is its own text frame.
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	for {
		select {
		case <-c.quit:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				log.Printf("Failed to write close message: %v", err)
			}
			return

		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline for ping: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage marshals data into a typed message and queues it
func (c *WebSocketConnection) sendMessage(messageType, id string, data interface{}) error {
	response := WebSocketMessage{
		Type: messageType,
		ID:   id,
	}
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
		}
		response.Data = dataBytes
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal %s response: %w", messageType, err)
	}

	select {
	case <-c.quit:
		return fmt.Errorf("failed to send %s: connection closed", messageType)
	default:
	}
	select {
	case c.send <- responseBytes:
		return nil
	default:
		return fmt.Errorf("failed to send %s: channel full", messageType)
	}
}

// close stops the write pump; the send channel itself is never closed
func (c *WebSocketConnection) close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// sendError sends an error message to the client
func (c *WebSocketConnection) sendError(id, errorMsg, code string) {
	errorResp := WebSocketError{
		Type:    "error",
		ID:      id,
		Error:   errorMsg,
		Message: errorMsg,
		Code:    code,
	}

	messageBytes, err := json.Marshal(errorResp)
	if err != nil {
		log.Printf("Failed to marshal error message: %v", err)
		return
	}

	select {
	case <-c.quit:
		return
	case c.send <- messageBytes:
	default:
		log.Printf("Failed to send error message: channel full")
	}
}

// handleMessage routes messages to appropriate handlers
func (h *WebSocketHandlers) handleMessage(conn *WebSocketConnection, msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		h.handlePing(conn, msg)
	case "stream_subscribe":
		h.handleStreamSubscribe(conn, msg)
	case "stream_update_pose":
		h.handleStreamUpdatePose(conn, msg)
	default:
		conn.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

// handlePing responds to ping messages
func (h *WebSocketHandlers) handlePing(conn *WebSocketConnection, msg *WebSocketMessage) {
	if err := conn.sendMessage("pong", msg.ID, nil); err != nil {
		log.Printf("Failed to send pong: %v", err)
	}
}

// StreamSubscribeData is the payload of a stream_subscribe message.
// Omitted radius and compress fall back to the server defaults.
type StreamSubscribeData struct {
	WorldID  int64          `json:"world_id"`
	Pose     streaming.Pose `json:"pose"`
	Radius   *int           `json:"radius,omitempty"`
	Compress *bool          `json:"compress,omitempty"`
}

// StreamAck is the payload of a stream_ack message
type StreamAck struct {
	SubscriptionID string   `json:"subscription_id"`
	WorldID        int64    `json:"world_id"`
	Size           int      `json:"size"`
	Radius         int      `json:"radius"`
	Compress       bool     `json:"compress"`
	TileIDs        []string `json:"tile_ids"`
}

// StreamUpdatePoseData represents the data payload for a stream_update_pose message
type StreamUpdatePoseData struct {
	SubscriptionID string         `json:"subscription_id"`
	Pose           streaming.Pose `json:"pose"`
}

// StreamDelta is the payload of a stream_delta message. Exactly one of Tiles
// and Compressed carries the added tiles.
type StreamDelta struct {
	SubscriptionID string                        `json:"subscription_id"`
	WorldID        int64                         `json:"world_id"`
	Tiles          []compression.Tile            `json:"tiles,omitempty"`
	Compressed     *compression.CompressedChunks `json:"compressed,omitempty"`
	RemovedTileIDs []string                      `json:"removed_tile_ids"`
}

// handleStreamSubscribe registers a subscription, acknowledges it and sends the full initial window.
func (h *WebSocketHandlers) handleStreamSubscribe(conn *WebSocketConnection, msg *WebSocketMessage) {
	var data StreamSubscribeData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		conn.sendError(msg.ID, "Invalid stream_subscribe payload", "InvalidMessageFormat")
		return
	}

	req := streaming.SubscriptionRequest{
		WorldID:  data.WorldID,
		Pose:     data.Pose,
		Radius:   h.defaultRadius,
		Compress: h.compress,
	}
	if data.Radius != nil {
		req.Radius = *data.Radius
	}
	if data.Compress != nil {
		req.Compress = *data.Compress
	}

	if h.debug {
		log.Printf("[Stream] stream_subscribe received: session_id=%s, world_id=%d, pose=(%d,%d), radius=%d, compress=%v",
			conn.sessionID, req.WorldID, req.Pose.X, req.Pose.Y, req.Radius, req.Compress)
	}

	ctx, cancel := context.WithTimeout(context.Background(), worldLookupTimeout)
	world, err := h.worlds.GetWorld(ctx, req.WorldID)
	cancel()
	if err != nil {
		if errors.Is(err, database.ErrWorldNotFound) {
			conn.sendError(msg.ID, err.Error(), "WorldNotFound")
			return
		}
		log.Printf("[Stream] World lookup failed: %v", err)
		conn.sendError(msg.ID, "Failed to look up world", "InternalError")
		return
	}

	op := h.profiler.Start("stream_subscribe")
	plan, err := h.streamManager.PlanSubscription(conn.sessionID, req)
	op.End()
	if err != nil {
		conn.sendError(msg.ID, err.Error(), "InvalidSubscriptionRequest")
		return
	}
	conn.worldSizes[plan.SubscriptionID] = world.Size

	if err := conn.sendMessage("stream_ack", msg.ID, StreamAck{
		SubscriptionID: plan.SubscriptionID,
		WorldID:        req.WorldID,
		Size:           world.Size,
		Radius:         req.Radius,
		Compress:       req.Compress,
		TileIDs:        plan.TileIDs,
	}); err != nil {
		log.Printf("[Stream] %v", err)
		return
	}

	delta, err := h.buildDelta(plan.SubscriptionID, req.WorldID, world.Size, plan.Tiles, nil, req.Compress)
	if err != nil {
		log.Printf("[Stream] Failed to build initial delta for %s: %v", plan.SubscriptionID, err)
		conn.sendError(msg.ID, "Failed to generate tiles", "InternalError")
		return
	}
	if err := conn.sendMessage("stream_delta", msg.ID, delta); err != nil {
		log.Printf("[Stream] %v", err)
	}
}

// handleStreamUpdatePose moves a subscription window and sends the tile delta.
func (h *WebSocketHandlers) handleStreamUpdatePose(conn *WebSocketConnection, msg *WebSocketMessage) {
	var req StreamUpdatePoseData
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		conn.sendError(msg.ID, "Invalid stream_update_pose payload", "InvalidMessageFormat")
		return
	}
	if req.SubscriptionID == "" {
		conn.sendError(msg.ID, "subscription_id is required", "InvalidMessageFormat")
		return
	}

	// Checks that can fail run before UpdatePose commits the move
	subscription, err := h.streamManager.GetSubscription(req.SubscriptionID)
	if err != nil {
		conn.sendError(msg.ID, err.Error(), "SubscriptionNotFound")
		return
	}
	if subscription.UserID != conn.sessionID {
		conn.sendError(msg.ID, fmt.Sprintf("subscription %s: %v", req.SubscriptionID, streaming.ErrNotOwner), "Forbidden")
		return
	}
	size, ok := conn.worldSizes[req.SubscriptionID]
	if !ok {
		conn.sendError(msg.ID, "subscription was not created on this connection", "SubscriptionNotFound")
		return
	}

	op := h.profiler.Start("stream_update_pose")
	delta, err := h.streamManager.UpdatePose(conn.sessionID, req.SubscriptionID, req.Pose)
	op.End()
	if err != nil {
		code := "InvalidSubscriptionRequest"
		switch {
		case errors.Is(err, streaming.ErrSubscriptionNotFound):
			code = "SubscriptionNotFound"
		case errors.Is(err, streaming.ErrNotOwner):
			code = "Forbidden"
		}
		conn.sendError(msg.ID, err.Error(), code)
		return
	}

	payload, err := h.buildDelta(req.SubscriptionID, delta.WorldID, size, delta.Added, delta.RemovedIDs, subscription.Request.Compress)
	if err != nil {
		log.Printf("[Stream] Failed to build delta for %s: %v", req.SubscriptionID, err)
		conn.sendError(msg.ID, "Failed to generate tiles", "InternalError")
		return
	}
	if err := conn.sendMessage("stream_delta", msg.ID, payload); err != nil {
		log.Printf("[Stream] %v", err)
	}
}

// buildDelta generates the added tiles and packs them, compressed or not
func (h *WebSocketHandlers) buildDelta(subscriptionID string, worldID int64, size int, added []streaming.TileCoord, removed []string, compress bool) (*StreamDelta, error) {
	op := h.profiler.Start("stream_tiles")
	tiles := make([]compression.Tile, 0, len(added))
	for _, coord := range added {
		chunk, err := h.chunks.Chunk(worldID, coord.X, coord.Y, size)
		if err != nil {
			op.End()
			return nil, err
		}
		tiles = append(tiles, compression.Tile{X: coord.X, Y: coord.Y, Chunk: chunk})
	}
	op.AddItems(len(tiles))
	op.End()

	if removed == nil {
		removed = []string{}
	}
	delta := &StreamDelta{
		SubscriptionID: subscriptionID,
		WorldID:        worldID,
		RemovedTileIDs: removed,
	}

	if !compress || len(tiles) == 0 {
		delta.Tiles = tiles
		return delta, nil
	}

	op = h.profiler.Start("stream_compress")
	payload, err := compression.CompressAndFormat(compression.FormatGzip, worldID, tiles)
	op.End()
	if err != nil {
		return nil, err
	}
	if h.debug {
		log.Printf("[Stream] Compressed delta for %s: %s", subscriptionID, payload)
	}
	delta.Compressed = payload
	return delta, nil
}

// GetHub returns the WebSocket hub
func (h *WebSocketHandlers) GetHub() *WebSocketHub {
	return h.hub
}

// StreamManager returns the subscription manager
func (h *WebSocketHandlers) StreamManager() *streaming.Manager {
	return h.streamManager
}
