// Package events provides a typed in-process publish/subscribe bus for
// sync and connectivity notifications.
package events

import (
	"sync"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	EventConnectivityChanged Type = "connectivity.changed"
	EventSyncStarted         Type = "sync.started"
	EventSyncProgress        Type = "sync.progress"
	EventSyncCompleted       Type = "sync.completed"
	EventSyncConflict        Type = "sync.conflict"
	EventRequestCaptured     Type = "request.captured"
	EventRequestReplayed     Type = "request.replayed"
)

// Event is one published notification with its structured payload.
type Event struct {
	Type      Type        `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Structured payloads per event type.

// ConnectivityChanged reports an online/offline transition.
type ConnectivityChanged struct {
	Online bool `json:"online"`
}

// SyncStarted reports the beginning of a sync cycle.
type SyncStarted struct {
	Total int `json:"total"`
}

// SyncProgress reports per-change progress within a cycle.
type SyncProgress struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// SyncCompleted reports the end of a sync cycle.
type SyncCompleted struct {
	Status    string `json:"status"`
	Synced    int    `json:"synced"`
	Conflicts int    `json:"conflicts"`
	Errors    int    `json:"errors"`
}

// SyncConflict reports one resolved conflict.
type SyncConflict struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

// RequestCaptured reports a mutation captured while offline.
type RequestCaptured struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// RequestReplayed reports the outcome of replaying a captured request.
// Dropped marks a request the server rejected outright, as opposed to
// one that landed (Success) or one that will be retried (neither).
type RequestReplayed struct {
	Method  string `json:"method"`
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Dropped bool   `json:"dropped,omitempty"`
}

// Handler consumes published events.
type Handler func(Event)

// Bus dispatches events to any number of subscribers. Publishers never
// depend on their listeners; a slow handler only delays its own caller.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	types   map[Type]bool // nil = all types
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers a handler for the given event types (all types when
// none are given). It returns an unsubscribe function.
func (b *Bus) Subscribe(handler Handler, types ...Type) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var filter map[Type]bool
	if len(types) > 0 {
		filter = make(map[Type]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{types: filter, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers an event to all matching subscribers synchronously.
func (b *Bus) Publish(eventType Type, payload interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.types == nil || sub.types[eventType] {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
