package models

import (
	"time"

	"ticketing/src/types"
)

// Event is a sellable occasion. Capacity is the number of units still
// available for sale, not the venue size: reservations decrement it and
// releases add back to it.
type Event struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	Title       string            `json:"title"`
	OrganizerID uint              `gorm:"index" json:"organizer,omitempty"`
	Status      types.EventStatus `gorm:"default:'draft';index" json:"status"`
	Capacity    int               `json:"capacity"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `gorm:"index" json:"end_date"`

	TicketTypes []TicketType `json:"tiers,omitempty"`

	types.Timestamps
}

func (e *Event) HasEnded(now time.Time) bool {
	return !now.Before(e.EndDate)
}
