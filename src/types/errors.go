package types

import "errors"

type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindPrecondition ErrorKind = "precondition"
	KindCapacity     ErrorKind = "capacity"
	KindRejected     ErrorKind = "rejected"
	KindTransient    ErrorKind = "transient"
	KindInvalid      ErrorKind = "invalid"
)

// Error is a failure the caller can act on. Code is stable and safe to
// return over the wire.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrEventNotFound            = newError(KindNotFound, "event_not_found", "event not found")
	ErrTierNotFound             = newError(KindNotFound, "tier_not_found", "ticket tier not found")
	ErrOrderNotFound            = newError(KindNotFound, "order_not_found", "order not found")
	ErrTicketNotFound           = newError(KindNotFound, "ticket_not_found", "ticket not found")
	ErrDeviceNotFound           = newError(KindNotFound, "device_not_found", "device not found")
	ErrResourcesNotFound        = newError(KindNotFound, "resources_not_found", "event or ticket tier for this order no longer exists")
	ErrEventNotPublished        = newError(KindPrecondition, "event_not_published", "event is not open for reservations")
	ErrEventFinalized           = newError(KindPrecondition, "event_finalized", "event has ended")
	ErrOrderNotPending          = newError(KindPrecondition, "order_not_pending", "order is not pending")
	ErrOrderNotCanceled         = newError(KindPrecondition, "order_not_canceled", "order is not canceled")
	ErrOrderNotPaid             = newError(KindPrecondition, "order_not_paid", "order is not paid")
	ErrTicketMissing            = newError(KindPrecondition, "ticket_missing", "order has no tickets awaiting payment")
	ErrNoWaitingTickets         = newError(KindPrecondition, "no_waiting_tickets", "order has no waiting tickets")
	ErrNoCanceledTickets        = newError(KindPrecondition, "no_canceled_tickets", "order has no canceled tickets")
	ErrNoActiveTickets          = newError(KindPrecondition, "no_active_tickets", "order has no active tickets")
	ErrIllegalTransition        = newError(KindPrecondition, "illegal_transition", "status transition not allowed")
	ErrEventNotPublishable      = newError(KindPrecondition, "event_not_publishable", "event needs capacity and at least one tier to be published")
	ErrEventClosed              = newError(KindPrecondition, "event_closed", "event no longer accepts changes")
	ErrEventSoldOut             = newError(KindCapacity, "event_sold_out", "event is sold out")
	ErrInsufficientCapacity     = newError(KindCapacity, "insufficient_capacity", "not enough event capacity left")
	ErrTierSoldOut              = newError(KindCapacity, "tier_sold_out", "ticket tier is sold out")
	ErrTierInsufficientQuantity = newError(KindCapacity, "tier_insufficient_quantity", "not enough tickets left in this tier")
	ErrNoStock                  = newError(KindCapacity, "no_stock", "tickets are no longer available")
	ErrWrongEvent               = newError(KindRejected, "wrong_event", "ticket belongs to another event")
	ErrAlreadyUsed              = newError(KindRejected, "already_used", "ticket has already been used")
	ErrInvalidStatus            = newError(KindRejected, "invalid_status", "ticket is not valid")
	ErrAwaitingConfirmation     = newError(KindRejected, "awaiting_confirmation", "ticket is awaiting payment confirmation")
	ErrTicketExpired            = newError(KindRejected, "expired", "ticket has expired")
	ErrInvalidQuantity          = newError(KindInvalid, "invalid_quantity", "quantity must be positive")
	ErrInvalidPaymentMethod     = newError(KindInvalid, "invalid_payment_method", "unsupported payment method")
	ErrInvalidPrice             = newError(KindInvalid, "invalid_price", "price must be a non-negative amount")
	ErrInvalidDates             = newError(KindInvalid, "invalid_dates", "event must end after it starts")
	ErrTransactionConflict      = newError(KindTransient, "transaction_conflict", "concurrent update, please retry")
)

// AsError unwraps err to a domain error if there is one in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
