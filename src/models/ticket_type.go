package models

import (
	"ticketing/src/types"

	"github.com/shopspring/decimal"
)

// TicketType is a priced tier of an event. Quantity is what is left to
// sell in this tier.
type TicketType struct {
	ID       uint            `gorm:"primarykey" json:"id"`
	EventID  uint            `gorm:"index" json:"event_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Quantity int             `json:"quantity"`

	types.Timestamps
}

func (t *TicketType) IsFree() bool {
	return t.Price.IsZero()
}
