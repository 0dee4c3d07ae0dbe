package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
)

// welcomeText is the body of the connection message new subscribers receive.
const welcomeText = "Connected to Primis WebSocket server"

// Subscriber is a destination for broadcast frames.
//
// Send must not block indefinitely; transports are expected to buffer and
// drop rather than stall the hub.
type Subscriber interface {
	// Send delivers one encoded frame. An error marks the subscriber dead.
	Send(data []byte) error

	// Close releases the subscriber's transport. Must be idempotent.
	Close() error
}

// Hub tracks live subscribers and fans broadcast messages out to them.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Broadcast holds no lock while encoding, only while walking the set.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
	closed      bool

	logger *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		subscribers: make(map[Subscriber]struct{}),
		logger:      logger.With("component", "broadcast"),
	}
}

// Register adds a subscriber and sends it the welcome message.
//
// Only the new subscriber sees the welcome; existing subscribers are not
// notified of joins. Registration on a shut-down hub closes the subscriber
// immediately.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Close() //nolint:errcheck // best effort
		return
	}
	h.subscribers[s] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	welcome, err := json.Marshal(NewConnection(welcomeText))
	if err == nil {
		if err := s.Send(welcome); err != nil {
			h.Unregister(s)
			return
		}
	}

	h.logger.Info("subscriber registered", "total", count)
}

// Unregister removes a subscriber and closes it. Safe to call for a
// subscriber that was never registered or was already removed.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	_, present := h.subscribers[s]
	if present {
		delete(h.subscribers, s)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if !present {
		return
	}

	s.Close() //nolint:errcheck // transport already going away

	h.logger.Info("subscriber unregistered", "total", count)
}

// Broadcast encodes the message once and delivers it to every subscriber.
//
// Subscribers whose Send fails are removed. A hub with no subscribers is a
// cheap no-op. Encoding failure is logged and the message dropped; nothing
// the ingest path produces should be unencodable.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast message", "type", string(msg.Type), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	delivered := 0
	for _, s := range targets {
		if err := s.Send(data); err != nil {
			h.Unregister(s)
			continue
		}
		delivered++
	}

	h.logger.Debug("broadcast delivered", "type", string(msg.Type), "subscribers", delivered)
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Shutdown notifies and closes every subscriber and rejects future
// registrations. Subsequent Broadcast calls are no-ops. Safe to call with
// zero subscribers and safe to call twice.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	targets := make([]Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		targets = append(targets, s)
	}
	h.subscribers = make(map[Subscriber]struct{})
	h.mu.Unlock()

	goodbye, err := json.Marshal(NewConnection("Server shutting down"))
	for _, s := range targets {
		if err == nil {
			s.Send(goodbye) //nolint:errcheck // best effort on the way out
		}
		s.Close() //nolint:errcheck // best effort on the way out
	}

	h.logger.Info("hub shut down", "closed", len(targets))
}
