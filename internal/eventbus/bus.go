// Package eventbus is a small in-memory pub/sub used to decouple the
// dispatcher from observers (debug logging, future integrations).
package eventbus

import (
	"sync"
	"time"
)

// Event is a lightweight lifecycle signal (a match, a delivery outcome,
// a session summary). Data should stay small and JSON-friendly.
//
// Publish never blocks: a subscriber that falls behind loses events
// rather than stalling the dispatch path.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

type subscriber struct {
	id int
	ch chan Event
}

type fanoutBus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

// New returns an in-memory fanout bus. It owns no goroutines; delivery
// happens on the publisher's goroutine with non-blocking sends.
func New() Bus {
	return &fanoutBus{}
}

func (b *fanoutBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	targets := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range targets {
		// Unsubscribe may close the channel concurrently; a send on a
		// closed channel panics, so contain it.
		func() {
			defer func() { _ = recover() }()
			select {
			case s.ch <- e:
			default:
				// subscriber full: drop
			}
		}()
	}
}

func (b *fanoutBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, ch: ch})
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
