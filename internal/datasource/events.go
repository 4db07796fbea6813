package datasource

import (
	"meshgraph/internal/domain"
)

// EventKind names a data source lifecycle event
type EventKind string

const (
	EventLoadStart       EventKind = "loadStart"
	EventFetchSuccess    EventKind = "fetchSuccess"
	EventFetchError      EventKind = "fetchError"
	EventEmptyNamespaces EventKind = "emptyNamespaces"
)

// EventKinds lists every event kind in emission order of a fetch
var EventKinds = []EventKind{EventLoadStart, EventFetchSuccess, EventFetchError, EventEmptyNamespaces}

// Event is one emission of the data source
type Event struct {
	Kind    EventKind           `json:"kind"`
	Request domain.FetchRequest `json:"-"`
	Data    *domain.GraphData   `json:"-"`
	Err     error               `json:"-"`
}

// Handler receives events on the event loop
type Handler func(Event)

// Subscription identifies a registered handler
type Subscription struct {
	kind EventKind
	id   uint64
}

// Kind returns the event kind the subscription listens to
func (s Subscription) Kind() EventKind {
	return s.kind
}

// Registry delivers each emission exactly once to every handler subscribed
// when the emission starts and still subscribed when its turn comes. It is not
// safe for concurrent use.
type Registry struct {
	nextID   uint64
	handlers map[EventKind][]subscriber
}

type subscriber struct {
	id      uint64
	handler Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[EventKind][]subscriber)}
}

// Subscribe registers h for kind
func (b *Registry) Subscribe(kind EventKind, h Handler) Subscription {
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], subscriber{id: b.nextID, handler: h})
	return Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe removes a handler and reports whether it was registered
func (b *Registry) Unsubscribe(sub Subscription) bool {
	subs := b.handlers[sub.kind]
	for i, s := range subs {
		if s.id == sub.id {
			b.handlers[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Registry) subscribed(kind EventKind, id uint64) bool {
	for _, s := range b.handlers[kind] {
		if s.id == id {
			return true
		}
	}
	return false
}

// Publish delivers event to the handlers of its kind
func (b *Registry) Publish(event Event) {
	subs := append([]subscriber(nil), b.handlers[event.Kind]...)
	for _, s := range subs {
		if !b.subscribed(event.Kind, s.id) {
			continue
		}
		s.handler(event)
	}
}

// Len returns the number of registered handlers
func (b *Registry) Len() int {
	n := 0
	for _, subs := range b.handlers {
		n += len(subs)
	}
	return n
}
