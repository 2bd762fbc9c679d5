// Package audit carries domain events out of the workflows. Emitting never
// fails and never blocks the caller for long.
package audit

import (
	"context"
	"log"
	"sync"
	"time"
)

type EventType string

const (
	TicketReserved    EventType = "ticket.reserved"
	TicketActivated   EventType = "ticket.activated"
	TicketCanceled    EventType = "ticket.canceled"
	TicketReinstated  EventType = "ticket.reinstated"
	TicketRefunded    EventType = "ticket.refunded"
	TicketReclaimed   EventType = "ticket.reclaimed"
	TicketCheckedIn   EventType = "ticket.checked_in"
	TicketRejected    EventType = "ticket.rejected"
	OrderPaid         EventType = "order.paid"
	EventsFinalized   EventType = "event.finalized"
	EventStateChanged EventType = "event.status_changed"
)

type Event struct {
	Type     EventType `json:"type"`
	EventID  uint      `json:"event_id,omitempty"`
	OrderID  uint      `json:"order_id,omitempty"`
	TicketID uint      `json:"ticket_id,omitempty"`
	TierID   uint      `json:"tier_id,omitempty"`
	UserID   uint      `json:"user_id,omitempty"`
	Quantity int       `json:"quantity,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

type Sink interface {
	Emit(ctx context.Context, e Event)
}

// EmitAll sends events in order. Workflows collect events inside their
// transaction and call this once it has committed.
func EmitAll(ctx context.Context, sink Sink, events []Event) {
	if sink == nil {
		return
	}
	for _, e := range events {
		sink.Emit(ctx, e)
	}
}

type LogSink struct{}

func (LogSink) Emit(_ context.Context, e Event) {
	log.Printf("[audit] %s event=%d order=%d ticket=%d tier=%d user=%d qty=%d %s\n",
		e.Type, e.EventID, e.OrderID, e.TicketID, e.TierID, e.UserID, e.Quantity, e.Detail)
}

// MemorySink keeps everything it receives. Used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Emit(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemorySink) Count(t EventType) int {
	n := 0
	for _, e := range m.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
