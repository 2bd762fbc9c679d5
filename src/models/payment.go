package models

import (
	"ticketing/src/types"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID       uint                `gorm:"primarykey" json:"id"`
	TicketID uint                `gorm:"uniqueIndex" json:"ticket_id"`
	OrderID  uint                `gorm:"index" json:"order_id"`
	Amount   decimal.Decimal     `gorm:"type:numeric(12,2)" json:"amount"`
	Status   types.PaymentStatus `json:"status"`
	Method   types.PaymentMethod `json:"method"`

	types.Timestamps
}
