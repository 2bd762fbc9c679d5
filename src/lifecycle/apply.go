package lifecycle

import (
	"fmt"

	"ticketing/src/models"
	"ticketing/src/types"

	"gorm.io/gorm"
)

// MoveTicket checks the transition and writes it only if the row still
// holds the status t was read with. Extra columns in fields are written in
// the same statement.
func MoveTicket(tx *gorm.DB, t *models.Ticket, to types.TicketStatus, fields map[string]any) error {
	if err := CheckTicket(t.Status, to); err != nil {
		return err
	}
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := tx.Model(&models.Ticket{}).Where("id = ? AND status = ?", t.ID, t.Status).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update ticket %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ticket %d is no longer %s: %w", t.ID, t.Status, types.ErrTransactionConflict)
	}
	t.Status = to
	return nil
}

func MoveOrder(tx *gorm.DB, o *models.Order, to types.OrderStatus) error {
	if err := CheckOrder(o.Status, to); err != nil {
		return err
	}
	res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", o.ID, o.Status).Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("update order %d: %w", o.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d is no longer %s: %w", o.ID, o.Status, types.ErrTransactionConflict)
	}
	o.Status = to
	return nil
}

func MoveEvent(tx *gorm.DB, e *models.Event, to types.EventStatus) error {
	if err := CheckEvent(e.Status, to); err != nil {
		return err
	}
	res := tx.Model(&models.Event{}).Where("id = ? AND status = ?", e.ID, e.Status).Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("update event %d: %w", e.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %d is no longer %s: %w", e.ID, e.Status, types.ErrTransactionConflict)
	}
	e.Status = to
	return nil
}
