package streaming

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSubscriptionNotFound is returned for unknown subscription IDs
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrNotOwner is returned when a user touches another user's subscription
	ErrNotOwner = errors.New("subscription belongs to another user")
	// ErrPoseOutOfRange is returned when a window around the pose would leave the int range
	ErrPoseOutOfRange = errors.New("pose out of range")
)

// Manager coordinates server-driven streaming subscriptions.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	maxRadius     int
	debug         bool
}

// Subscription tracks an individual client's tile window.
type Subscription struct {
	ID        string
	UserID    string
	Request   SubscriptionRequest
	TileIDs   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pose is the tile the player is centered on.
type Pose struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TileCoord is a tile coordinate inside a window.
type TileCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SubscriptionRequest is sent by clients to begin receiving streaming data.
type SubscriptionRequest struct {
	WorldID  int64 `json:"world_id"`
	Pose     Pose  `json:"pose"`
	Radius   int   `json:"radius"`   // Tiles on each side of the pose
	Compress bool  `json:"compress"` // Send chunks as a compressed batch
}

// SubscriptionPlan captures the initial server response for a subscription.
type SubscriptionPlan struct {
	SubscriptionID string      `json:"subscription_id"`
	TileIDs        []string    `json:"tile_ids"`
	Tiles          []TileCoord `json:"-"`
}

// TileDelta describes server-evaluated tile changes for a subscription.
type TileDelta struct {
	SubscriptionID string
	WorldID        int64
	Added          []TileCoord
	RemovedIDs     []string
	CurrentIDs     []string
}

// NewManager builds a streaming manager instance. Radii above maxRadius are rejected.
func NewManager(maxRadius int) *Manager {
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		maxRadius:     maxRadius,
	}
}

// SetDebug enables verbose window logging.
func (m *Manager) SetDebug(debug bool) {
	m.debug = debug
}

// MaxRadius returns the largest accepted radius.
func (m *Manager) MaxRadius() int {
	return m.maxRadius
}

// PlanSubscription validates the request and registers the subscription plan.
func (m *Manager) PlanSubscription(userID string, req SubscriptionRequest) (*SubscriptionPlan, error) {
	if req.Radius < 0 {
		return nil, fmt.Errorf("radius must not be negative")
	}
	if req.Radius > m.maxRadius {
		return nil, fmt.Errorf("radius cannot exceed %d", m.maxRadius)
	}
	if err := checkPose(req.Pose, req.Radius); err != nil {
		return nil, err
	}

	tiles := ComputeTileWindow(req.Pose, req.Radius)
	tileIDs := tileIDs(req.WorldID, tiles)
	now := time.Now()

	subscription := &Subscription{
		ID:        "sub_" + uuid.NewString(),
		UserID:    userID,
		Request:   req,
		TileIDs:   tileIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.subscriptions[subscription.ID] = subscription
	m.mu.Unlock()

	if m.debug {
		log.Printf("[Stream] PlanSubscription: id=%s user=%s world=%d pose=(%d,%d) radius=%d tiles=%d",
			subscription.ID, userID, req.WorldID, req.Pose.X, req.Pose.Y, req.Radius, len(tiles))
	}

	return &SubscriptionPlan{
		SubscriptionID: subscription.ID,
		TileIDs:        tileIDs,
		Tiles:          tiles,
	}, nil
}

// UpdatePose recomputes the subscription window and returns tile deltas.
func (m *Manager) UpdatePose(userID string, subscriptionID string, pose Pose) (*TileDelta, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	subscription, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrSubscriptionNotFound)
	}
	if subscription.UserID != userID {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotOwner)
	}

	if err := checkPose(pose, subscription.Request.Radius); err != nil {
		return nil, err
	}

	worldID := subscription.Request.WorldID
	window := ComputeTileWindow(pose, subscription.Request.Radius)
	newIDs := tileIDs(worldID, window)

	prev := make(map[string]struct{}, len(subscription.TileIDs))
	for _, id := range subscription.TileIDs {
		prev[id] = struct{}{}
	}
	var added []TileCoord
	for i, coord := range window {
		if _, exists := prev[newIDs[i]]; !exists {
			added = append(added, coord)
		}
	}
	_, removed := diffTileSets(subscription.TileIDs, newIDs)

	if m.debug {
		log.Printf("[Stream] UpdatePose: subscription=%s pose=(%d,%d) added=%d removed=%d",
			subscriptionID, pose.X, pose.Y, len(added), len(removed))
	}

	subscription.TileIDs = newIDs
	subscription.Request.Pose = pose
	subscription.UpdatedAt = time.Now()

	return &TileDelta{
		SubscriptionID: subscriptionID,
		WorldID:        worldID,
		Added:          added,
		RemovedIDs:     removed,
		CurrentIDs:     newIDs,
	}, nil
}

// GetSubscription retrieves a subscription by ID (for use by websocket handler).
func (m *Manager) GetSubscription(subscriptionID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subscription, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, ErrSubscriptionNotFound)
	}
	return subscription, nil
}

// RemoveUserSubscriptions drops every subscription owned by userID and returns how many were removed.
func (m *Manager) RemoveUserSubscriptions(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, subscription := range m.subscriptions {
		if subscription.UserID == userID {
			delete(m.subscriptions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live subscriptions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// checkPose rejects poses whose window [pose-radius, pose+radius] overflows int.
func checkPose(pose Pose, radius int) error {
	if pose.X > math.MaxInt-radius || pose.X < math.MinInt+radius ||
		pose.Y > math.MaxInt-radius || pose.Y < math.MinInt+radius {
		return fmt.Errorf("%w: (%d,%d) with radius %d", ErrPoseOutOfRange, pose.X, pose.Y, radius)
	}
	return nil
}

// ComputeTileWindow returns the square [x-r, x+r] x [y-r, y+r] in row-major order.
// Coordinates are raw; tiles outside the map still generate (as belt 1).
// Callers must keep the window inside the int range (see checkPose).
func ComputeTileWindow(pose Pose, radius int) []TileCoord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	tiles := make([]TileCoord, 0, side*side)
	// Offsets, not absolute bounds: pose+radius may be math.MaxInt
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			tiles = append(tiles, TileCoord{X: pose.X + dx, Y: pose.Y + dy})
		}
	}
	return tiles
}

// TileID formats a tile as "{worldID}_{x}_{y}".
func TileID(worldID int64, coord TileCoord) string {
	return strconv.FormatInt(worldID, 10) + "_" + strconv.Itoa(coord.X) + "_" + strconv.Itoa(coord.Y)
}

// ParseTileID reverses TileID.
func ParseTileID(id string) (int64, TileCoord, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return 0, TileCoord{}, fmt.Errorf("invalid tile id %q: expected world_x_y", id)
	}
	worldID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, TileCoord{}, fmt.Errorf("invalid tile id %q: %w", id, err)
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, TileCoord{}, fmt.Errorf("invalid tile id %q: %w", id, err)
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, TileCoord{}, fmt.Errorf("invalid tile id %q: %w", id, err)
	}
	return worldID, TileCoord{X: x, Y: y}, nil
}

func tileIDs(worldID int64, tiles []TileCoord) []string {
	ids := make([]string, len(tiles))
	for i, coord := range tiles {
		ids[i] = TileID(worldID, coord)
	}
	return ids
}

func diffTileSets(previous, next []string) (added []string, removed []string) {
	prevSet := make(map[string]struct{}, len(previous))
	nextSet := make(map[string]struct{}, len(next))

	for _, id := range previous {
		prevSet[id] = struct{}{}
	}
	for _, id := range next {
		nextSet[id] = struct{}{}
		if _, exists := prevSet[id]; !exists {
			added = append(added, id)
		}
	}
	for _, id := range previous {
		if _, exists := nextSet[id]; !exists {
			removed = append(removed, id)
		}
	}
	return
}
