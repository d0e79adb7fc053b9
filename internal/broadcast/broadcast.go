// Package broadcast implements the subscriber registry and fan-out logic
// described in spec §4.5: every subscriber gets a bounded outbound queue;
// a subscriber that can't keep up is dropped rather than allowed to
// back-pressure the event-loop actor (spec §5, §7 "Resource" errors).
//
// Registry is owned exclusively by the actor goroutine (internal/actor) —
// Add/Remove/Send/ForceSend/Broadcast all run on that single
// goroutine, mirroring the teacher's Broadcaster (internal/ws/broadcast.go)
// but without its own locking, since here there is only ever one caller.
package broadcast

import (
	"github.com/google/uuid"
)

// QueueCapacity is the bounded size of each subscriber's outbound queue
// (spec: "capacity 256 deltas").
const QueueCapacity = 256

// Frame is an opaque pre-encoded wire message (the actor marshals once,
// fans the same bytes out to every subscriber).
type Frame []byte

// Subscriber is a connected client that issued Subscribe. Outbound holds
// frames waiting to be written by that connection's writer goroutine.
type Subscriber struct {
	ID       string
	Outbound chan Frame
	overflow bool
}

// NewSubscriber creates a subscriber with a fresh bounded outbound queue.
func NewSubscriber() *Subscriber {
	return &Subscriber{
		ID:       uuid.NewString(),
		Outbound: make(chan Frame, QueueCapacity),
	}
}

// Registry tracks all currently-subscribed connections.
type Registry struct {
	subs map[string]*Subscriber
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscriber)}
}

// Add registers a new subscriber.
func (r *Registry) Add(s *Subscriber) { r.subs[s.ID] = s }

// Remove unregisters a subscriber and closes its outbound queue so its
// writer goroutine can exit.
func (r *Registry) Remove(id string) {
	if s, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(s.Outbound)
	}
}

// Count returns the number of currently-registered subscribers.
func (r *Registry) Count() int { return len(r.subs) }

// Each iterates live subscribers in an unspecified order via fn.
func (r *Registry) Each(fn func(*Subscriber)) {
	for _, s := range r.subs {
		fn(s)
	}
}

// Broadcast enqueues frame to every subscriber's outbound queue. A
// subscriber whose queue is full misses the frame and is marked overflowed;
// Broadcast does not remove it but returns its id, so the caller can send
// a terminating Shutdown{reason: "overflow"} frame to that subscriber's
// writer and then Remove it (the writer goroutine drains whatever is left
// in the queue first).
//
// Per spec §5 ("broadcast deltas from a single state change are enqueued to
// every live subscriber before the actor processes the next message"),
// this call is synchronous and does not itself suspend: channel sends here
// are non-blocking (select/default), never waiting on a slow reader.
func (r *Registry) Broadcast(frame Frame) (overflowed []string) {
	for id, s := range r.subs {
		select {
		case s.Outbound <- frame:
		default:
			s.overflow = true
			overflowed = append(overflowed, id)
		}
	}
	return overflowed
}

// Send enqueues frame to a single subscriber (used for the initial
// Snapshot after Subscribe). Returns false if the queue was full.
func (r *Registry) Send(id string, frame Frame) bool {
	s, ok := r.subs[id]
	if !ok {
		return false
	}
	select {
	case s.Outbound <- frame:
		return true
	default:
		s.overflow = true
		return false
	}
}

// ForceSend enqueues frame to a single subscriber, evicting the oldest
// queued frame first if the queue is full. This is for terminal frames
// only (the overflow Shutdown delta): a subscriber that just overflowed
// has a completely full queue, so a plain Send would always lose the
// disconnect notice to the same full-channel default case that caused
// the overflow in the first place (spec §8: an overflowed subscriber
// must still receive its terminating Shutdown delta before removal).
func (r *Registry) ForceSend(id string, frame Frame) bool {
	s, ok := r.subs[id]
	if !ok {
		return false
	}
	select {
	case s.Outbound <- frame:
		return true
	default:
	}
	select {
	case <-s.Outbound:
	default:
	}
	select {
	case s.Outbound <- frame:
		return true
	default:
		return false
	}
}

// Overflowed reports whether a subscriber has ever overflowed its queue.
func (r *Registry) Overflowed(id string) bool {
	s, ok := r.subs[id]
	return ok && s.overflow
}
