package models

// All lists every entity in migration order.
func All() []any {
	return []any{
		&Event{},
		&TicketType{},
		&Order{},
		&Ticket{},
		&Payment{},
		&TicketValidationLog{},
		&Device{},
	}
}
