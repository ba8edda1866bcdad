package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

type Kind string

const (
	KindChange            Kind = "change"
	KindToast             Kind = "toast"
	KindSessionTerminated Kind = "session_terminated"
	KindStats             Kind = "stats"
)

// ChangeEvent describes one row write on a watched table
type ChangeEvent struct {
	Table  string    `json:"table"`
	Type   EventType `json:"type"`
	RowID  uint      `json:"id"`
	UserID uint      `json:"user_id,omitempty"` // owner of the row, when known
}

func (e ChangeEvent) key() string {
	return fmt.Sprintf("%s:%s:%d", e.Table, e.Type, e.RowID)
}

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toast is a transient user-facing message
type Toast struct {
	Level   ToastLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message,omitempty"`
}

// Message is the unit of delivery. UserID 0 addresses everyone, narrowed to
// admins when AdminOnly is set.
type Message struct {
	Kind      Kind         `json:"kind"`
	UserID    uint         `json:"user_id,omitempty"`
	AdminOnly bool         `json:"admin_only,omitempty"`
	Change    *ChangeEvent `json:"change,omitempty"`
	Toast     *Toast       `json:"toast,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Origin    string       `json:"origin"`
	At        time.Time    `json:"at"`
}

// Publisher is what services use to emit events
type Publisher interface {
	PublishChange(ev ChangeEvent)
	PublishToast(userID uint, toast Toast)
	Publish(msg Message)
}

// Filter decides whether a subscription wants a message
type Filter func(Message) bool

type Subscription struct {
	C      <-chan Message
	ch     chan Message
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Close unregisters the subscription and closes its channel
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

// Hub fans messages out to in-process subscribers and outbound sinks
type Hub struct {
	instanceID string

	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	sinksMu sync.RWMutex
	sinks   []func(Message)

	// recent local change keys, used to drop the echo coming back through NOTIFY
	recentMu sync.Mutex
	recent   map[string]time.Time
	echoTTL  time.Duration

	dropped atomic.Int64
	logger  zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		instanceID: uuid.NewString(),
		subs:       make(map[*Subscription]struct{}),
		recent:     make(map[string]time.Time),
		echoTTL:    5 * time.Second,
		logger:     logger,
		now:        time.Now,
	}
}

// InstanceID identifies this process in bridged messages
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Subscribe registers a buffered subscription. A nil filter accepts everything.
func (h *Hub) Subscribe(filter Filter, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Message, buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, hub: h}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// AddSink registers a callback for every locally originated message
func (h *Hub) AddSink(sink func(Message)) {
	h.sinksMu.Lock()
	h.sinks = append(h.sinks, sink)
	h.sinksMu.Unlock()
}

// Publish stamps a local message, delivers it and hands it to the sinks
func (h *Hub) Publish(msg Message) {
	msg.Origin = h.instanceID
	if msg.At.IsZero() {
		msg.At = h.now()
	}
	if msg.Kind == KindChange && msg.Change != nil {
		h.remember(msg.Change.key())
	}

	h.deliver(msg)

	h.sinksMu.RLock()
	sinks := h.sinks
	h.sinksMu.RUnlock()
	for _, sink := range sinks {
		sink(msg)
	}
}

// PublishLocal delivers to this instance's subscribers only. Used for messages
// every instance derives on its own, such as recomputed admin stats.
func (h *Hub) PublishLocal(msg Message) {
	msg.Origin = h.instanceID
	if msg.At.IsZero() {
		msg.At = h.now()
	}
	h.deliver(msg)
}

func (h *Hub) PublishChange(ev ChangeEvent) {
	h.Publish(Message{Kind: KindChange, Change: &ev})
}

func (h *Hub) PublishToast(userID uint, toast Toast) {
	h.Publish(Message{Kind: KindToast, UserID: userID, Toast: &toast})
}

// PublishDatabaseChange delivers a change seen on the NOTIFY channel unless this
// instance already published the same change moments ago.
func (h *Hub) PublishDatabaseChange(ev ChangeEvent) bool {
	if h.seenRecently(ev.key()) {
		return false
	}
	h.deliver(Message{Kind: KindChange, Change: &ev, Origin: "postgres", At: h.now()})
	return true
}

// Deliver hands a message that came from another instance to local subscribers only
func (h *Hub) Deliver(msg Message) {
	if msg.Origin == h.instanceID {
		return
	}
	h.deliver(msg)
}

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.filter != nil && !sub.filter(msg) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			h.dropped.Add(1)
			h.logger.Warn().Str("kind", string(msg.Kind)).Msg("skipped slow subscriber")
		}
	}
}

// Dropped counts messages skipped because a subscriber buffer was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscriberCount is reported by /health
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remember(key string) {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	now := h.now()
	h.recent[key] = now
	for k, at := range h.recent {
		if now.Sub(at) > h.echoTTL {
			delete(h.recent, k)
		}
	}
}

func (h *Hub) seenRecently(key string) bool {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	at, ok := h.recent[key]
	if !ok {
		return false
	}
	delete(h.recent, key)
	return h.now().Sub(at) <= h.echoTTL
}

// ForTables accepts change messages for the given tables
func ForTables(tables ...string) Filter {
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return func(m Message) bool {
		return m.Kind == KindChange && m.Change != nil && set[m.Change.Table]
	}
}

// privateTables hold per-user rows; their changes only reach the owner
var privateTables = map[string]bool{
	"notifications":       true,
	"saved_resources":     true,
	"mission_assignments": true,
}

// ForClient is the filter of a user's realtime stream: their own messages,
// broadcasts (admin broadcasts only for admins) and changes on watched tables.
func ForClient(userID uint, isAdmin bool, tables ...string) Filter {
	watch := ForTables(tables...)
	return func(m Message) bool {
		if m.Kind == KindChange {
			if !watch(m) {
				return false
			}
			return !privateTables[m.Change.Table] || m.Change.UserID == userID
		}
		if m.UserID != 0 {
			return m.UserID == userID
		}
		return !m.AdminOnly || isAdmin
	}
}

// NopPublisher discards everything; used where realtime is not wired
type NopPublisher struct{}

func (NopPublisher) PublishChange(ChangeEvent) {}
func (NopPublisher) PublishToast(uint, Toast) {}
func (NopPublisher) Publish(Message) {}
