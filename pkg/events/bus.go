// Package events is a small synchronous publish/subscribe bus.
//
// A Bus is created by the application and handed to the stores and views
// that need it; there is no package-level instance.
package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vanderheijden86/ember/pkg/debug"
)

// Topic names an event stream.
type Topic string

const (
	NodeSelected     Topic = "node_selected"
	NodeHovered      Topic = "node_hovered"
	LabelExpanded    Topic = "label_expanded"
	ViewChanged      Topic = "view_changed"
	ZoomChanged      Topic = "graph_zoom_changed"
	OffsetChanged    Topic = "graph_offset_changed"
	GraphRebuilt     Topic = "graph_rebuilt"
	GameChanged      Topic = "game_changed"
	MemorySaved      Topic = "memory_saved"
	PersistenceError Topic = "persistence_error"
)

// Event is delivered to subscribers. Payload type depends on the topic.
type Event struct {
	Topic   Topic
	Payload any
}

// Handler receives events. Handlers run on the publisher's goroutine.
type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	ID    string
	Topic Topic
}

type entry struct {
	id string
	fn Handler
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]entry
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]entry)}
}

// Subscribe registers fn for topic. Subscribing to a closed bus returns a
// subscription that never fires.
func (b *Bus) Subscribe(topic Topic, fn Handler) Subscription {
	sub := Subscription{ID: uuid.NewString(), Topic: topic}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || fn == nil {
		return sub
	}
	b.subs[topic] = append(b.subs[topic], entry{id: sub.ID, fn: fn})
	return sub
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.Topic]
	for i, e := range list {
		if e.id == sub.ID {
			b.subs[sub.Topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.Topic]) == 0 {
		delete(b.subs, sub.Topic)
	}
}

// Publish delivers an event to every current subscriber of topic. A
// panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Publish(topic Topic, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	list := make([]entry, len(b.subs[topic]))
	copy(list, b.subs[topic])
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, e := range list {
		deliver(e, ev)
	}
}

func deliver(e entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("events: handler %s for %s panicked: %v", e.id, ev.Topic, r)
		}
	}()
	e.fn(ev)
}

// Count returns the number of handlers on topic.
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close drops every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[Topic][]entry)
}

func (s Subscription) String() string {
	return fmt.Sprintf("%s#%s", s.Topic, s.ID)
}
