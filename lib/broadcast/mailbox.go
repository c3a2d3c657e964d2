package broadcast

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the mailbox
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Mailbox is an unbounded multi-producer single-consumer queue that exposes
// its items through a receive channel. Pushing never blocks, no matter how
// slow the consumer is. Items pushed by a single producer are delivered in
// push order.
type Mailbox[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan T
	closed   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMailbox creates a new mailbox and starts its delivery goroutine
func NewMailbox[T any]() *Mailbox[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	m := &Mailbox[T]{
		out:  make(chan T),
		stop: make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	m.head.Store(sentinel)
	m.tail.Store(sentinel)

	go m.deliver()

	return m
}

// Push appends an item to the mailbox.
// Returns false if the mailbox is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Mailbox[T]) Push(value T) bool {
	if m.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var spins uint8 = 0

	for {
		tailNode := m.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				m.tail.CompareAndSwap(tailNode, newNode)
				m.wake()
				return true
			}
		} else {
			// another producer appended but has not moved the tail yet
			m.tail.CompareAndSwap(tailNode, next)
		}

		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// C returns the channel the items are delivered on. The channel is closed
// after Close (once every pending item was delivered) or after Discard.
func (m *Mailbox[T]) C() <-chan T {
	return m.out
}

// Close prevents further pushes. Items already queued are still delivered.
func (m *Mailbox[T]) Close() {
	m.closed.Store(true)
	m.wake()
}

// Discard closes the mailbox and drops everything not yet delivered.
func (m *Mailbox[T]) Discard() {
	m.closed.Store(true)
	m.stopOnce.Do(func() { close(m.stop) })
	m.wake()
}

// Len returns an approximate count of queued items. It is O(n).
func (m *Mailbox[T]) Len() int {
	count := 0
	current := m.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			return count
		}
		count++
		current = next
	}
}

// wake signals the consumer while holding the lock, so a signal can never
// fall between the consumer's emptiness check and its Wait.
func (m *Mailbox[T]) wake() {
	m.mu.Lock()
	m.cond.Signal()
	m.mu.Unlock()
}

// deliver moves items from the linked list to the output channel
func (m *Mailbox[T]) deliver() {
	defer close(m.out)

	var zero T
	for {
		head := m.head.Load()
		next := head.next.Load()

		if next != nil {
			// move head pointer first (frees the old sentinel)
			m.head.Store(next)
			select {
			case m.out <- next.value:
			case <-m.stop:
				return
			}
			next.value = zero
			continue
		}

		select {
		case <-m.stop:
			return
		default:
		}
		if m.closed.Load() {
			return
		}

		m.mu.Lock()
		if m.head.Load().next.Load() == nil && !m.closed.Load() {
			m.cond.Wait()
		}
		m.mu.Unlock()
	}
}
