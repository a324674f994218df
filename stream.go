package culturedb

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subscription receives consolidated activity updates as they commit.
type Subscription struct {
	ID         string
	Experiment string
	Unit       string

	ch     chan ActivityUpdate
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// C returns the channel for receiving updates.
func (s *Subscription) C() <-chan ActivityUpdate {
	return s.ch
}

// Close closes the subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}

// ActivityHub fans consolidated updates out to live subscribers
// (dashboards). Publication happens after the append transaction commits,
// so a subscriber never sees an update that was rolled back. A slow
// subscriber drops updates rather than stalling producers.
type ActivityHub struct {
	config StreamConfig

	mu     sync.RWMutex
	subs   map[string]*Subscription
	nextID uint64
}

// NewActivityHub creates a hub with the given stream settings.
func NewActivityHub(config StreamConfig) *ActivityHub {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &ActivityHub{
		config: config,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe creates a subscription filtered by experiment and unit. Either
// filter may be empty to match everything.
func (h *ActivityHub) Subscribe(experiment, unit string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		ID:         fmt.Sprintf("sub-%d", h.nextID),
		Experiment: experiment,
		Unit:       unit,
		ch:         make(chan ActivityUpdate, h.config.BufferSize),
		done:       make(chan struct{}),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes and closes a subscription.
func (h *ActivityHub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Publish sends an update to all matching subscriptions.
func (h *ActivityHub) Publish(u ActivityUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.Experiment != "" && sub.Experiment != u.Experiment {
			continue
		}
		if sub.Unit != "" && sub.Unit != u.Unit {
			continue
		}

		select {
		case sub.ch <- u:
		default:
			// Buffer full, drop the update
		}
	}
}

// Count returns the number of active subscriptions.
func (h *ActivityHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CloseAll closes every subscription; used on store shutdown.
func (h *ActivityHub) CloseAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// WebSocket handling

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is the JSON frame format on the WebSocket.
type streamMessage struct {
	Type   string          `json:"type"`
	SubID  string          `json:"sub_id,omitempty"`
	Update *ActivityUpdate `json:"update,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WebSocketHandler upgrades the connection and streams updates matching the
// experiment/unit query parameters until the client disconnects.
func (h *ActivityHub) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = conn.Close() }()

		sub := h.Subscribe(r.URL.Query().Get("experiment"), r.URL.Query().Get("unit"))
		defer h.Unsubscribe(sub.ID)

		ack, _ := json.Marshal(streamMessage{Type: "subscribed", SubID: sub.ID})
		_ = conn.WriteMessage(websocket.TextMessage, ack)

		// Drain client frames so we notice a disconnect promptly.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-clientGone:
				return
			case <-sub.done:
				return
			case u, ok := <-sub.ch:
				if !ok {
					return
				}
				msg, _ := json.Marshal(streamMessage{Type: "update", SubID: sub.ID, Update: &u})
				_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}
}
