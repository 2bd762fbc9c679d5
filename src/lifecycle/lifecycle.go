// Package lifecycle holds the legal status transitions for events, orders
// and tickets. Every status write in the service goes through one of the
// Check functions first.
package lifecycle

import (
	"fmt"

	"ticketing/src/types"
)

var orderTransitions = map[types.OrderStatus][]types.OrderStatus{
	types.ORDER_PENDING:  {types.ORDER_PAID, types.ORDER_CANCELED},
	types.ORDER_CANCELED: {types.ORDER_PENDING},
	types.ORDER_PAID:     {types.ORDER_REFUNDED},
}

var ticketTransitions = map[types.TicketStatus][]types.TicketStatus{
	types.TICKET_WAITING:  {types.TICKET_ACTIVE, types.TICKET_CANCELED},
	types.TICKET_CANCELED: {types.TICKET_WAITING},
	types.TICKET_ACTIVE:   {types.TICKET_USED, types.TICKET_REFUNDED, types.TICKET_INVALID},
}

var eventTransitions = map[types.EventStatus][]types.EventStatus{
	types.EVENT_DRAFT:     {types.EVENT_PUBLISHED, types.EVENT_CANCELED},
	types.EVENT_PUBLISHED: {types.EVENT_FINALIZED, types.EVENT_CANCELED},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CheckOrder(from, to types.OrderStatus) error {
	if !allowed(orderTransitions, from, to) {
		return fmt.Errorf("order %s -> %s: %w", from, to, types.ErrIllegalTransition)
	}
	return nil
}

func CheckTicket(from, to types.TicketStatus) error {
	if !allowed(ticketTransitions, from, to) {
		return fmt.Errorf("ticket %s -> %s: %w", from, to, types.ErrIllegalTransition)
	}
	return nil
}

func CheckEvent(from, to types.EventStatus) error {
	if !allowed(eventTransitions, from, to) {
		return fmt.Errorf("event %s -> %s: %w", from, to, types.ErrIllegalTransition)
	}
	return nil
}

// IsTerminalTicket reports whether no further transition can leave status.
func IsTerminalTicket(status types.TicketStatus) bool {
	return len(ticketTransitions[status]) == 0
}
