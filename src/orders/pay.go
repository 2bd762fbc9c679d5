package orders

import (
	"context"
	"fmt"
	"time"

	"ticketing/src/audit"
	"ticketing/src/lifecycle"
	"ticketing/src/models"
	"ticketing/src/types"

	"gorm.io/gorm"
)

type PayInput struct {
	OrderID uint
	BuyerID uint
	Method  types.PaymentMethod
}

type Receipt struct {
	Order    *models.Order    `json:"order"`
	Payments []models.Payment `json:"payments"`
}

// Pay settles every WAITING ticket of a PENDING order. A ticket that
// already has a Payment is activated without a second one.
func (s *Service) Pay(ctx context.Context, in PayInput) (*Receipt, error) {
	if !in.Method.Valid() {
		return nil, types.ErrInvalidPaymentMethod
	}

	var (
		receipt *Receipt
		events  []audit.Event
	)
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		events = events[:0]
		now := s.clock.Now()

		order, err := lockOrder(tx, in.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != in.BuyerID {
			return types.ErrOrderNotFound
		}
		if order.Status != types.ORDER_PENDING {
			return types.ErrOrderNotPending
		}
		waiting := ticketsIn(order, types.TICKET_WAITING)
		if len(waiting) == 0 {
			return types.ErrTicketMissing
		}
		prices, err := tierPrices(tx, waiting)
		if err != nil {
			return err
		}

		var payments []models.Payment
		for _, t := range waiting {
			var existing int64
			if err := tx.Model(&models.Payment{}).Where("ticket_id = ?", t.ID).Count(&existing).Error; err != nil {
				return fmt.Errorf("check payment of ticket %d: %w", t.ID, err)
			}
			if existing > 0 {
				continue
			}
			payment := models.Payment{
				TicketID: t.ID,
				OrderID:  order.ID,
				Amount:   prices[t.TicketTypeID].Price,
				Status:   types.PAYMENT_COMPLETED,
				Method:   in.Method,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return fmt.Errorf("create payment for ticket %d: %w", t.ID, err)
			}
			payments = append(payments, payment)
		}

		activated, err := s.activate(tx, order, waiting, in.BuyerID, now)
		if err != nil {
			return err
		}
		events = append(events, activated...)
		receipt = &Receipt{Order: order, Payments: payments}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events)
	return receipt, nil
}

// activate binds the buyer to each ticket, makes it ACTIVE and marks the
// order PAID.
func (s *Service) activate(tx *gorm.DB, order *models.Order, tickets []*models.Ticket, buyerID uint, now time.Time) ([]audit.Event, error) {
	events := make([]audit.Event, 0, len(tickets)+1)
	for _, t := range tickets {
		if err := lifecycle.MoveTicket(tx, t, types.TICKET_ACTIVE, map[string]any{"user_id": buyerID}); err != nil {
			return nil, err
		}
		user := buyerID
		t.UserID = &user
		events = append(events, audit.Event{
			Type:     audit.TicketActivated,
			EventID:  t.EventID,
			OrderID:  order.ID,
			TicketID: t.ID,
			TierID:   t.TicketTypeID,
			UserID:   buyerID,
			At:       now,
		})
	}
	if err := lifecycle.MoveOrder(tx, order, types.ORDER_PAID); err != nil {
		return nil, err
	}
	events = append(events, audit.Event{Type: audit.OrderPaid, EventID: order.EventID, OrderID: order.ID, UserID: buyerID, At: now})
	return events, nil
}

func tierPrices(tx *gorm.DB, tickets []*models.Ticket) (map[uint]*models.TicketType, error) {
	ids := make([]uint, 0, len(tickets))
	seen := map[uint]bool{}
	for _, t := range tickets {
		if !seen[t.TicketTypeID] {
			seen[t.TicketTypeID] = true
			ids = append(ids, t.TicketTypeID)
		}
	}
	var tiers []models.TicketType
	if err := tx.Find(&tiers, ids).Error; err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}
	if len(tiers) != len(ids) {
		return nil, types.ErrResourcesNotFound
	}
	out := make(map[uint]*models.TicketType, len(tiers))
	for i := range tiers {
		out[tiers[i].ID] = &tiers[i]
	}
	return out, nil
}
