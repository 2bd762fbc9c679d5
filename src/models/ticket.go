package models

import (
	"time"

	"ticketing/src/types"
)

type Ticket struct {
	ID           uint               `gorm:"primarykey" json:"id"`
	OrderID      uint               `gorm:"index" json:"order_id"`
	EventID      uint               `gorm:"index" json:"event_id"`
	TicketTypeID uint               `gorm:"index" json:"ticket_type_id"`
	Status       types.TicketStatus `gorm:"index" json:"status"`
	UserID       *uint              `json:"user_id,omitempty"`
	Code         string             `gorm:"uniqueIndex;size:32" json:"code"`
	ReservedAt   time.Time          `gorm:"index" json:"reserved_at"`
	UsedAt       *time.Time         `json:"used_at,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`

	Event      *Event      `json:"event,omitempty"`
	TicketType *TicketType `json:"tier,omitempty"`

	types.Timestamps
}

// EffectiveExpiry is the instant after which the ticket can no longer be
// used for entry.
func (t *Ticket) EffectiveExpiry(event *Event) time.Time {
	if t.ExpiresAt != nil {
		return *t.ExpiresAt
	}
	return event.EndDate
}
