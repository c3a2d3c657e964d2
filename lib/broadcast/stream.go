package broadcast

import (
	"sync"
)

// Subscription is one subscriber's independent view of a Stream or Value.
type Subscription[T any] struct {
	id     uint64
	box    *Mailbox[T]
	detach func(id uint64)
	once   sync.Once
}

// C returns the channel the subscriber reads from. It is closed when the
// subscription ends, either via Unsubscribe or because the source closed.
func (s *Subscription[T]) C() <-chan T {
	return s.box.C()
}

// Unsubscribe detaches the subscriber and drops undelivered items.
// It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		if s.detach != nil {
			s.detach(s.id)
		}
		s.box.Discard()
	})
}

// Stream is a hot multicast stream. Every subscriber receives every value
// published after it subscribed, in publish order, through its own mailbox.
// Publish never blocks on slow subscribers.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool
}

// NewStream creates an empty stream
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		subs: make(map[uint64]*Subscription[T]),
	}
}

// Publish delivers v to all current subscribers.
// Returns false if the stream is closed.
func (s *Stream[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for _, sub := range s.subs {
		sub.box.Push(v)
	}
	return true
}

// Subscribe attaches a new subscriber. Subscribing to a closed stream
// returns a subscription whose channel is already closed.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked()
}

func (s *Stream[T]) subscribeLocked() *Subscription[T] {
	sub := &Subscription[T]{box: NewMailbox[T]()}
	if s.closed {
		sub.box.Close()
		return sub
	}
	s.nextID++
	sub.id = s.nextID
	sub.detach = s.remove
	s.subs[sub.id] = sub
	return sub
}

// Len returns the number of active subscribers
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close ends the stream. Subscribers receive what was already published
// and then see their channel closed.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.box.Close()
		delete(s.subs, id)
	}
}

func (s *Stream[T]) remove(id uint64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}
