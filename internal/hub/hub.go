// internal/hub/hub.go

// Package hub fans events out to subscribers grouped by topic. Delivery is at-most-once and
// best-effort: each subscriber owns a bounded buffer, and an event that does not fit is dropped
// for that subscriber only. There is no acknowledgement and no retry; a subscriber that falls
// behind or reconnects should ask for a fresh snapshot.
package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/selfmetrics"
)

// Topics carried by the hub.
const (
	TopicPerformance = "performance"
	TopicBenchmark   = "benchmark"
	TopicMonitoring  = "monitoring"
)

// Event is one message on a topic.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	onJoin func(*Subscription)
}

// New returns a hub whose subscribers buffer up to buffer events.
func New(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer}
}

// OnSubscribe registers fn to run for every new subscription, after it is registered.
func (h *Hub) OnSubscribe(fn func(*Subscription)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJoin = fn
}

// Subscribe registers a subscriber for rooms. With no rooms it receives every topic.
// Subscribing to a closed hub returns an already-closed subscription.
func (h *Hub) Subscribe(rooms ...string) *Subscription {
	s := &Subscription{
		hub:   h,
		ch:    make(chan Event, h.buffer),
		rooms: make(map[string]bool, len(rooms)),
	}
	for _, r := range rooms {
		s.rooms[r] = true
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.closed = true
		close(s.ch)
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	n := len(h.subs)
	onJoin := h.onJoin
	h.mu.Unlock()

	selfmetrics.SetSubscribers(n)
	logging.WithComponent("hub").WithField("subscribers", n).Debug("subscriber joined")
	if onJoin != nil {
		onJoin(s)
	}
	return s
}

// Publish delivers ev to every subscriber of its topic without blocking and returns the number
// of subscribers that accepted it.
func (h *Hub) Publish(ev Event) int {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}
	delivered := 0
	for _, s := range h.subs {
		if !s.Wants(ev.Topic) {
			continue
		}
		if s.offer(ev) {
			delivered++
		}
	}
	return delivered
}

// Count reports the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		s.closeLocked()
		delete(h.subs, id)
	}
	selfmetrics.SetSubscribers(0)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, s.id)
	s.closeLocked()
	n := len(h.subs)
	h.mu.Unlock()

	selfmetrics.SetSubscribers(n)
	logging.WithComponent("hub").WithField("subscribers", n).Debug("subscriber left")
}

// Subscription is one observer's view of the hub.
type Subscription struct {
	id      uint64
	hub     *Hub
	ch      chan Event
	roomsMu sync.RWMutex
	rooms   map[string]bool
	closed  bool // guarded by hub.mu
	dropped atomic.Uint64
}

// Events is closed when the subscription or the hub closes.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Join adds a room.
func (s *Subscription) Join(room string) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()
	s.rooms[room] = true
}

// Leave removes a room. Leaving the last room makes the subscription receive every topic again.
func (s *Subscription) Leave(room string) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()
	delete(s.rooms, room)
}

// Rooms lists the joined rooms.
func (s *Subscription) Rooms() []string {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Wants reports whether events on topic reach this subscription.
func (s *Subscription) Wants(topic string) bool {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()
	return len(s.rooms) == 0 || s.rooms[topic]
}

// Send delivers ev to this subscription only, regardless of its rooms.
func (s *Subscription) Send(ev Event) bool {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.offer(ev)
}

// Dropped reports how many events did not fit in the buffer.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() { s.hub.remove(s) }

// offer must be called with hub.mu held.
func (s *Subscription) offer(ev Event) bool {
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		selfmetrics.RecordPublished(ev.Topic)
		return true
	default:
		s.dropped.Add(1)
		selfmetrics.RecordDropped(ev.Topic)
		return false
	}
}

// closeLocked must be called with hub.mu held for writing.
func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
