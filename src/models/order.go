package models

import (
	"ticketing/src/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             uint              `gorm:"primarykey" json:"id"`
	UserID         uint              `gorm:"index" json:"user_id"`
	EventID        uint              `gorm:"index" json:"event_id"`
	Status         types.OrderStatus `gorm:"index" json:"status"`
	Code           string            `gorm:"uniqueIndex;size:64" json:"code"`
	TicketQuantity int               `json:"ticket_quantity"`
	TotalPrice     decimal.Decimal   `gorm:"type:numeric(12,2)" json:"total_price"`

	Tickets []Ticket `json:"tickets,omitempty"`

	types.Timestamps
}

func (o *Order) TicketsWithStatus(status types.TicketStatus) []Ticket {
	var out []Ticket
	for _, t := range o.Tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
