// Package coexist carries the advisory signals that keep at most one audio
// source audible: the story narration and the standalone recordings/videos.
//
// The bus does not pause anything itself. Each playback component publishes
// when it starts and reacts to the other side's start by pausing.
package coexist

import (
	"sync"
)

// Kind identifies a coexistence signal
type Kind string

const (
	// NarrationStarted is published when story narration begins playing
	NarrationStarted Kind = "narration.started"
	// NarrationStopped is published when narration pauses, ends or is closed
	NarrationStopped Kind = "narration.stopped"

	// MediaStarted is published when another source (recording, video) starts
	MediaStarted Kind = "media.started"
	// MediaStopped is published when that source stops
	MediaStopped Kind = "media.stopped"
)

// Event is a published signal
type Event struct {
	Kind   Kind
	Source string // publisher id, e.g. a story or media item id
}

// Handler reacts to an event
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous publish/subscribe channel
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]subscription),
	}
}

// Subscribe registers a handler for one kind and returns its unsubscribe func
func (b *Bus) Subscribe(kind Kind, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

// SubscribeMultiple registers one handler for several kinds
func (b *Bus) SubscribeMultiple(kinds []Kind, handler Handler) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(kinds))
	for _, k := range kinds {
		unsubs = append(unsubs, b.Subscribe(k, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id == id {
			b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[kind]) == 0 {
		delete(b.handlers, kind)
	}
}

// Publish delivers the event to every handler of its kind, in subscription
// order, on the caller's goroutine. Handlers may publish or unsubscribe.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Kind]))
	copy(subs, b.handlers[event.Kind])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Subscribers returns the number of handlers registered for kind
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

// Clear removes all handlers
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Kind][]subscription)
}
