package audit

import (
	"context"
	"log"
	"sync"
)

// Async hands events to another sink from a background goroutine. When
// the buffer is full the event is dropped and logged.
type Async struct {
	next Sink
	ch   chan Event
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Sink, buffer int) *Async {
	a := &Async{
		next: next,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.ch {
		a.next.Emit(context.Background(), e)
	}
}

func (a *Async) Emit(_ context.Context, e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- e:
	default:
		log.Printf("[audit] buffer full, dropping %s for ticket %d\n", e.Type, e.TicketID)
	}
}

// Close stops accepting events and waits for the buffered ones to drain.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()
	<-a.done
}
