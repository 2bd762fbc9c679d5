package models

import (
	"time"

	"ticketing/src/types"
)

// TicketValidationLog is written once per check-in attempt and never
// updated.
type TicketValidationLog struct {
	ID        uint                    `gorm:"primarykey" json:"id"`
	TicketID  uint                    `gorm:"index" json:"ticket_id"`
	DeviceID  *uint                   `json:"device_id,omitempty"`
	Outcome   types.ValidationOutcome `json:"outcome"`
	Message   string                  `json:"message"`
	CreatedAt time.Time               `json:"created_at"`
}
