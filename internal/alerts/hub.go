package alerts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findthem/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// EventSightingCreated is sent when a sighting is reported against one of the organization's cases.
	EventSightingCreated = "sighting_created"
)

// Publisher sends an event to every instance serving the organization.
type Publisher interface {
	PublishOrgEvent(ctx context.Context, orgID uuid.UUID, event string, payload []byte) error
}

// Subscriber receives an organization's events from other instances.
type Subscriber interface {
	SubscribeOrg(orgID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// SightingAlert is the dashboard notification for a new sighting. Reporter contact details are omitted.
type SightingAlert struct {
	SightingID       uuid.UUID `json:"sighting_id"`
	CaseID           uuid.UUID `json:"case_id"`
	SightingLocation string    `json:"sighting_location"`
	SightingDate     time.Time `json:"sighting_date"`
	ConfidenceLevel  *int      `json:"confidence_level,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Hub tracks websocket clients per organization and fans alerts out to them.
// With a Redis publisher, alerts go through Redis only and the subscription delivers them locally.
type Hub struct {
	orgs        map[uuid.UUID]map[string]*Client
	subs        map[uuid.UUID]func()
	subscribing map[uuid.UUID]bool
	mu          sync.RWMutex
	pub         Publisher
	sub         Subscriber
	logger      *zap.Logger
}

// NewHub creates an alert hub. pub and sub may be nil for single-instance delivery.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		orgs:        make(map[uuid.UUID]map[string]*Client),
		subs:        make(map[uuid.UUID]func()),
		subscribing: make(map[uuid.UUID]bool),
		pub:         pub,
		sub:         sub,
		logger:      logger,
	}
}

// Register adds a client. The first client of an organization starts its Redis subscription;
// after a failed subscribe the next client to register tries again.
func (h *Hub) Register(c *Client) {
	orgID := c.OrganizationID
	h.mu.Lock()
	if h.orgs[orgID] == nil {
		h.orgs[orgID] = make(map[string]*Client)
	}
	h.orgs[orgID][c.ID] = c
	start := h.sub != nil && h.subs[orgID] == nil && !h.subscribing[orgID]
	if start {
		h.subscribing[orgID] = true
	}
	h.mu.Unlock()
	h.logger.Debug("alert client connected", zap.String("client_id", c.ID), zap.String("organization_id", orgID.String()))

	if start {
		h.subscribe(orgID)
	}
}

// subscribe opens the organization's Redis subscription without holding the hub lock.
func (h *Hub) subscribe(orgID uuid.UUID) {
	cancel, err := h.sub.SubscribeOrg(orgID, func(event string, payload []byte) {
		h.Broadcast(orgID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	delete(h.subscribing, orgID)
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("alert subscription failed", zap.String("organization_id", orgID.String()), zap.Error(err))
		return
	}
	if len(h.orgs[orgID]) == 0 {
		// Every client left while subscribing.
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[orgID] = cancel
	h.mu.Unlock()
}

// Unregister removes a client. The last client of an organization cancels its subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.orgs[c.OrganizationID]
	if !ok {
		return
	}
	delete(m, c.ID)
	if len(m) == 0 {
		delete(h.orgs, c.OrganizationID)
		if cancel, ok := h.subs[c.OrganizationID]; ok {
			cancel()
			delete(h.subs, c.OrganizationID)
		}
	}
	h.logger.Debug("alert client disconnected", zap.String("client_id", c.ID), zap.String("organization_id", c.OrganizationID.String()))
}

// ClientCount returns the number of connected clients of an organization.
func (h *Hub) ClientCount(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}

// Broadcast sends an event to this instance's clients of an organization. Slow clients drop messages.
func (h *Hub) Broadcast(orgID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal alert", zap.Error(err))
			return
		}
	}
	msg := Message{Event: event, Data: data}

	// Sends happen under the read lock so Unregister cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.orgs[orgID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("alert dropped for slow client", zap.String("client_id", c.ID))
		}
	}
}

// Publish delivers an event to all instances, or locally when no publisher is configured.
func (h *Hub) Publish(ctx context.Context, orgID uuid.UUID, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if h.pub != nil {
		return h.pub.PublishOrgEvent(ctx, orgID, event, data)
	}
	h.Broadcast(orgID, event, json.RawMessage(data))
	return nil
}

// PublishSighting notifies the owning organization of a new sighting.
func (h *Hub) PublishSighting(ctx context.Context, orgID uuid.UUID, s *models.Sighting) error {
	return h.Publish(ctx, orgID, EventSightingCreated, SightingAlert{
		SightingID:       s.ID,
		CaseID:           s.CaseID,
		SightingLocation: s.SightingLocation,
		SightingDate:     s.SightingDate,
		ConfidenceLevel:  s.ConfidenceLevel,
		CreatedAt:        s.CreatedAt,
	})
}

// Close cancels every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.subs {
		cancel()
		delete(h.subs, id)
	}
}
