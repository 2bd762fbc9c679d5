package orders

import (
	"context"
	"fmt"

	"ticketing/src/audit"
	"ticketing/src/lifecycle"
	"ticketing/src/models"
	"ticketing/src/types"

	"gorm.io/gorm"
)

type RefundInput struct {
	OrderID uint
	BuyerID uint
}

// Refund returns every ACTIVE ticket of a PAID order to stock. Used tickets
// stay USED.
func (s *Service) Refund(ctx context.Context, in RefundInput) (*models.Order, error) {
	var (
		order  *models.Order
		events []audit.Event
	)
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		events = events[:0]
		now := s.clock.Now()

		var err error
		order, err = lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != in.BuyerID {
			return types.ErrOrderNotFound
		}
		if order.Status != types.ORDER_PAID {
			return types.ErrOrderNotPaid
		}
		active := ticketsIn(order, types.TICKET_ACTIVE)
		if len(active) == 0 {
			return types.ErrNoActiveTickets
		}
		for _, t := range active {
			err := tx.Model(&models.Payment{}).
				Where("ticket_id = ? AND status = ?", t.ID, types.PAYMENT_COMPLETED).
				Update("status", types.PAYMENT_REFUNDED).Error
			if err != nil {
				return fmt.Errorf("refund payment of ticket %d: %w", t.ID, err)
			}
			if err := lifecycle.MoveTicket(tx, t, types.TICKET_REFUNDED, nil); err != nil {
				return err
			}
			if err := s.ledger.Release(tx, t.EventID, t.TicketTypeID, 1); err != nil {
				return err
			}
			events = append(events, audit.Event{
				Type:     audit.TicketRefunded,
				EventID:  t.EventID,
				OrderID:  order.ID,
				TicketID: t.ID,
				TierID:   t.TicketTypeID,
				UserID:   in.BuyerID,
				At:       now,
			})
		}
		return lifecycle.MoveOrder(tx, order, types.ORDER_REFUNDED)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events)
	return order, nil
}
