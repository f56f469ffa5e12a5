package events

import (
	"sync"
	"sync/atomic"
)

// Bus is an in-process pub/sub broker. Listeners subscribe per event
// topic and receive payloads over buffered channels; a slow listener
// never stalls the trading loop, overflow is dropped and counted.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Event][]chan any
	closed    bool
	dropped   atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event topic. The returned
// function removes the listener and closes its channel; calling it
// more than once is safe.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.listeners[e] = append(b.listeners[e], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			chans := b.listeners[e]
			for i, c := range chans {
				if c == ch {
					b.listeners[e] = append(chans[:i], chans[i+1:]...)
					close(c)
					break
				}
			}
		})
	}

	return ch, unsub
}

// Publish delivers the payload to every listener of the topic without
// blocking. Listeners whose buffer is full miss the message.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.listeners[e] {
		select {
		case ch <- payload:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many messages were discarded because a listener
// could not keep up.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down: all listener channels are closed and
// further Publish calls become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for e, chans := range b.listeners {
		for _, ch := range chans {
			close(ch)
		}
		delete(b.listeners, e)
	}
}
