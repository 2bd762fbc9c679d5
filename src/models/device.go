package models

import "ticketing/src/types"

// Device is a door scanner. A device with an EventID only admits tickets
// of that event.
type Device struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	Name    string `json:"name"`
	EventID *uint  `json:"event_id,omitempty"`

	types.Timestamps
}
