package jobstore

import (
	"sync"

	"transcribecore/pkg/logger"
)

// EventType identifies the kind of streaming event delivered to subscribers.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is one message on a job's event stream, matching spec.md §6.
type Event struct {
	Type     EventType `json:"type"`
	Progress int       `json:"progress,omitempty"`
	Stage    string    `json:"stage,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    any       `json:"error,omitempty"`
}

type subscription struct {
	jobID string
	ch    chan Event
}

type message struct {
	jobID string
	event Event
}

// EventBus is the in-process pub/sub side of C1: a single goroutine owns
// the subscriber map and fans events out without ever blocking the
// publisher on a slow subscriber, per spec.md §5.
//
// Adapted from the teacher's SSE broadcaster (register/unregister/broadcast
// channels driving one listener goroutine); the transport at the HTTP edge
// is websocket rather than SSE (internal/webapi), but the bus itself is
// transport-agnostic.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]bool

	register   chan subscription
	unregister chan subscription
	broadcast  chan message
	shutdown   chan struct{}
}

// NewEventBus starts the bus's listener goroutine and returns it.
func NewEventBus() *EventBus {
	b := &EventBus{
		subscribers: make(map[string]map[chan Event]bool),
		register:    make(chan subscription),
		unregister:  make(chan subscription),
		broadcast:   make(chan message, 64),
		shutdown:    make(chan struct{}),
	}
	go b.listen()
	return b
}

func (b *EventBus) listen() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			if b.subscribers[sub.jobID] == nil {
				b.subscribers[sub.jobID] = make(map[chan Event]bool)
			}
			b.subscribers[sub.jobID][sub.ch] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if subs, ok := b.subscribers[sub.jobID]; ok {
				if _, present := subs[sub.ch]; present {
					delete(subs, sub.ch)
					close(sub.ch)
				}
				if len(subs) == 0 {
					delete(b.subscribers, sub.jobID)
				}
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			subs := b.subscribers[msg.jobID]
			for ch := range subs {
				select {
				case ch <- msg.event:
				default:
					logger.Warn("dropping event for slow subscriber", "job_id", msg.jobID)
				}
			}
			b.mu.RUnlock()

		case <-b.shutdown:
			return
		}
	}
}

// Subscribe registers a new listener for jobID and returns a channel that
// receives events published after this call, per spec.md §4.1's "delivers
// events published after subscription" contract.
func (b *EventBus) Subscribe(jobID string) chan Event {
	ch := make(chan Event, 32)
	b.register <- subscription{jobID: jobID, ch: ch}
	return ch
}

// Unsubscribe closes and removes a previously subscribed channel.
func (b *EventBus) Unsubscribe(jobID string, ch chan Event) {
	b.unregister <- subscription{jobID: jobID, ch: ch}
}

// Publish fans an event out to current subscribers of jobID. Best-effort,
// non-persisted, and never blocks the caller (spec.md §4.1, §5).
func (b *EventBus) Publish(jobID string, ev Event) {
	select {
	case b.broadcast <- message{jobID: jobID, event: ev}:
	default:
		logger.Warn("event bus saturated, dropping publish", "job_id", jobID)
	}
}

// Close stops the listener goroutine.
func (b *EventBus) Close() {
	close(b.shutdown)
}
