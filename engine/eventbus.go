package engine

import "github.com/golang/glog"

// Event is a post-commit notification: document-oriented (CREATE_DOC,
// UPDATE_DOC, DELETE_DOC, READ_DOC) and collection-oriented
// (CREATE_COLLECTION, DELETE_COLLECTION). Event codes match Operation codes
// (both ultimately match the wire op codes).
type Event struct {
	Code       OpCode
	Collection string
	DocID      string
}

// subscriberQueueDepth bounds the per-subscriber fan-out channel. A full
// channel drops the event and logs it rather than block the publisher,
// which would otherwise stall the single operation worker behind a slow
// AAE originator.
const subscriberQueueDepth = 256

// Subscriber receives Events off its own channel. Callers range over Events()
// in their own goroutine; EventBus never invokes subscriber code directly.
type Subscriber struct {
	ch chan Event
}

// Events returns the channel this subscriber's events arrive on.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// EventBus fans out committed-operation events to subscribers. Publish only
// enqueues onto each subscriber's own buffered channel rather than invoking
// subscriber code directly, so a blocked subscriber never holds up the
// operation worker.
type EventBus struct {
	subs []*Subscriber
}

// NewEventBus returns an empty bus.
func NewEventBus() *EventBus { return &EventBus{} }

// Subscribe registers a new Subscriber and returns it.
func (b *EventBus) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan Event, subscriberQueueDepth)}
	b.subs = append(b.subs, s)
	return s
}

// Publish fans ev out to every subscriber's channel. Publish is called from
// the operation engine's single worker goroutine immediately after a write
// is durable, so subscribers never observe an event before its write has
// landed.
func (b *EventBus) Publish(ev Event) {
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			glog.Warningf("event bus: dropping event %+v, subscriber queue full", ev)
		}
	}
}
