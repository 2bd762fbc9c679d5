// Package ledger owns the two remaining-inventory counters: Event.Capacity
// and TicketType.Quantity. Nothing else in the service writes them.
package ledger

import (
	"fmt"

	"ticketing/src/models"
	"ticketing/src/types"

	"gorm.io/gorm"
)

// Ledger methods take the caller's transaction so counter changes commit or
// roll back with the rows that caused them.
type Ledger struct{}

func New() *Ledger {
	return &Ledger{}
}

// Reserve takes n units from both the event and the tier, or from neither.
func (l *Ledger) Reserve(tx *gorm.DB, eventID, tierID uint, n int) error {
	if n <= 0 {
		return types.ErrInvalidQuantity
	}
	res := tx.Model(&models.Event{}).
		Where("id = ? AND capacity >= ?", eventID, n).
		Update("capacity", gorm.Expr("capacity - ?", n))
	if res.Error != nil {
		return fmt.Errorf("reserve event capacity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrInsufficientCapacity
	}

	res = tx.Model(&models.TicketType{}).
		Where("id = ? AND event_id = ? AND quantity >= ?", tierID, eventID, n).
		Update("quantity", gorm.Expr("quantity - ?", n))
	if res.Error != nil {
		return fmt.Errorf("reserve tier quantity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// The event decrement above is undone by the caller's rollback.
		return types.ErrTierSoldOut
	}
	return nil
}

// Release gives n units back to both counters.
func (l *Ledger) Release(tx *gorm.DB, eventID, tierID uint, n int) error {
	if n <= 0 {
		return types.ErrInvalidQuantity
	}
	if err := tx.Model(&models.Event{}).
		Where("id = ?", eventID).
		Update("capacity", gorm.Expr("capacity + ?", n)).Error; err != nil {
		return fmt.Errorf("release event capacity: %w", err)
	}
	if err := tx.Model(&models.TicketType{}).
		Where("id = ?", tierID).
		Update("quantity", gorm.Expr("quantity + ?", n)).Error; err != nil {
		return fmt.Errorf("release tier quantity: %w", err)
	}
	return nil
}
