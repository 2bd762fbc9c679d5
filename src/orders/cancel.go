package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ticketing/src/audit"
	"ticketing/src/lifecycle"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"gorm.io/gorm"
)

// Cancel releases every WAITING ticket of a PENDING order back to the
// ledger.
func (s *Service) Cancel(ctx context.Context, orderID uint) (*models.Order, error) {
	var (
		order  *models.Order
		events []audit.Event
	)
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		events = events[:0]
		now := s.clock.Now()

		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != types.ORDER_PENDING {
			return types.ErrOrderNotPending
		}
		waiting := ticketsIn(order, types.TICKET_WAITING)
		if len(waiting) == 0 {
			return types.ErrNoWaitingTickets
		}
		for _, t := range waiting {
			if err := s.ledger.Release(tx, t.EventID, t.TicketTypeID, 1); err != nil {
				return err
			}
			if err := lifecycle.MoveTicket(tx, t, types.TICKET_CANCELED, nil); err != nil {
				return err
			}
			events = append(events, audit.Event{
				Type:     audit.TicketCanceled,
				EventID:  t.EventID,
				OrderID:  order.ID,
				TicketID: t.ID,
				TierID:   t.TicketTypeID,
				At:       now,
			})
		}
		return lifecycle.MoveOrder(tx, order, types.ORDER_CANCELED)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events)
	return order, nil
}

// RevertCancel puts a CANCELED order back on hold. Stock may have been sold
// to someone else in the meantime, so the current counters are checked
// again for every event and tier the order touches.
func (s *Service) RevertCancel(ctx context.Context, orderID uint) (*models.Order, error) {
	var (
		order  *models.Order
		events []audit.Event
	)
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		events = events[:0]
		now := s.clock.Now()

		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != types.ORDER_CANCELED {
			return types.ErrOrderNotCanceled
		}
		canceled := ticketsIn(order, types.TICKET_CANCELED)
		if len(canceled) == 0 {
			return types.ErrNoCanceledTickets
		}

		byEvent := map[uint]int{}
		byTier := map[uint]int{}
		tierEvent := map[uint]uint{}
		for _, t := range canceled {
			byEvent[t.EventID]++
			byTier[t.TicketTypeID]++
			tierEvent[t.TicketTypeID] = t.EventID
		}
		if err := checkStock(tx, byEvent, byTier); err != nil {
			return err
		}

		tierIDs := make([]uint, 0, len(byTier))
		for id := range byTier {
			tierIDs = append(tierIDs, id)
		}
		sort.Slice(tierIDs, func(i, j int) bool { return tierIDs[i] < tierIDs[j] })
		for _, tierID := range tierIDs {
			err := s.ledger.Reserve(tx, tierEvent[tierID], tierID, byTier[tierID])
			if errors.Is(err, types.ErrInsufficientCapacity) || errors.Is(err, types.ErrTierSoldOut) {
				return types.ErrNoStock
			}
			if err != nil {
				return err
			}
		}

		for _, t := range canceled {
			if err := lifecycle.MoveTicket(tx, t, types.TICKET_WAITING, map[string]any{"reserved_at": now}); err != nil {
				return err
			}
			t.ReservedAt = now
			events = append(events, audit.Event{
				Type:     audit.TicketReinstated,
				EventID:  t.EventID,
				OrderID:  order.ID,
				TicketID: t.ID,
				TierID:   t.TicketTypeID,
				At:       now,
			})
		}
		return lifecycle.MoveOrder(tx, order, types.ORDER_PENDING)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events)
	return order, nil
}

func checkStock(tx *gorm.DB, byEvent, byTier map[uint]int) error {
	eventIDs := make([]uint, 0, len(byEvent))
	for id := range byEvent {
		eventIDs = append(eventIDs, id)
	}
	var events []models.Event
	if err := tx.Scopes(scopes.ForUpdate, scopes.WithIDs(eventIDs...)).Find(&events).Error; err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) != len(eventIDs) {
		return types.ErrResourcesNotFound
	}

	tierIDs := make([]uint, 0, len(byTier))
	for id := range byTier {
		tierIDs = append(tierIDs, id)
	}
	var tiers []models.TicketType
	if err := tx.Scopes(scopes.ForUpdate, scopes.WithIDs(tierIDs...)).Find(&tiers).Error; err != nil {
		return fmt.Errorf("load tiers: %w", err)
	}
	if len(tiers) != len(tierIDs) {
		return types.ErrResourcesNotFound
	}

	for _, e := range events {
		if e.Capacity < byEvent[e.ID] {
			return types.ErrNoStock
		}
	}
	for _, t := range tiers {
		if t.Quantity < byTier[t.ID] {
			return types.ErrNoStock
		}
	}
	return nil
}
