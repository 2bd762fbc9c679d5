package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ticketing/src/audit"
	"ticketing/src/codes"
	"ticketing/src/metrics"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Line struct {
	TierID   uint
	Quantity int
}

type ReserveInput struct {
	BuyerID uint
	EventID uint
	Lines   []Line
}

// Reserve creates a PENDING order with one WAITING ticket per unit. An
// order whose total is zero is activated before the transaction commits.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*models.Order, error) {
	lines, err := mergeLines(in.Lines)
	if err != nil {
		metrics.Reservations.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	var (
		order  *models.Order
		events []audit.Event
	)
	err = s.store.Atomic(ctx, func(tx *gorm.DB) error {
		events = events[:0]
		now := s.clock.Now()

		var event models.Event
		if err := tx.Scopes(scopes.ForUpdate).First(&event, in.EventID).Error; err != nil {
			return notFound(err, types.ErrEventNotFound)
		}
		if err := checkReservable(&event, lines, now); err != nil {
			return err
		}
		tiers, err := loadTiers(tx, event.ID, lines)
		if err != nil {
			return err
		}

		total := 0
		price := decimal.Zero
		for _, line := range lines {
			if err := s.ledger.Reserve(tx, event.ID, line.TierID, line.Quantity); err != nil {
				return err
			}
			total += line.Quantity
			price = price.Add(tiers[line.TierID].Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		code, err := s.codes.Next(ctx, tx, &event)
		if err != nil {
			return err
		}
		order = &models.Order{
			UserID:         in.BuyerID,
			EventID:        event.ID,
			Status:         types.ORDER_PENDING,
			Code:           code,
			TicketQuantity: total,
			TotalPrice:     price,
		}
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		tickets := make([]models.Ticket, 0, total)
		for _, line := range lines {
			for i := 0; i < line.Quantity; i++ {
				tickets = append(tickets, models.Ticket{
					OrderID:      order.ID,
					EventID:      event.ID,
					TicketTypeID: line.TierID,
					Status:       types.TICKET_WAITING,
					Code:         codes.NewRedemptionCode(),
					ReservedAt:   now,
				})
			}
			events = append(events, audit.Event{
				Type:     audit.TicketReserved,
				EventID:  event.ID,
				OrderID:  order.ID,
				TierID:   line.TierID,
				UserID:   in.BuyerID,
				Quantity: line.Quantity,
				At:       now,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&tickets).Error; err != nil {
			return fmt.Errorf("create tickets: %w", err)
		}
		order.Tickets = tickets

		if price.IsZero() {
			activated, err := s.activate(tx, order, ticketsIn(order, types.TICKET_WAITING), in.BuyerID, now)
			if err != nil {
				return err
			}
			events = append(events, activated...)
		}
		return nil
	})
	metrics.Reservations.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events)
	return order, nil
}

// mergeLines folds repeated tiers into one line and orders lines by tier
// id so concurrent reservations touch rows in the same order.
func mergeLines(in []Line) ([]Line, error) {
	if len(in) == 0 {
		return nil, types.ErrInvalidQuantity
	}
	byTier := make(map[uint]int, len(in))
	for _, line := range in {
		if line.Quantity <= 0 {
			return nil, types.ErrInvalidQuantity
		}
		byTier[line.TierID] += line.Quantity
	}
	out := make([]Line, 0, len(byTier))
	for tierID, qty := range byTier {
		out = append(out, Line{TierID: tierID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TierID < out[j].TierID })
	return out, nil
}

func checkReservable(event *models.Event, lines []Line, now time.Time) error {
	switch event.Status {
	case types.EVENT_PUBLISHED:
	case types.EVENT_FINALIZED:
		return types.ErrEventFinalized
	default:
		return types.ErrEventNotPublished
	}
	if event.HasEnded(now) {
		return types.ErrEventFinalized
	}
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	if event.Capacity == 0 {
		return types.ErrEventSoldOut
	}
	if total > event.Capacity {
		return types.ErrInsufficientCapacity
	}
	return nil
}

func loadTiers(tx *gorm.DB, eventID uint, lines []Line) (map[uint]*models.TicketType, error) {
	tiers := make(map[uint]*models.TicketType, len(lines))
	for _, line := range lines {
		var tier models.TicketType
		err := tx.Scopes(scopes.ForUpdate).
			Where("event_id = ?", eventID).
			First(&tier, line.TierID).Error
		if err != nil {
			return nil, notFound(err, types.ErrTierNotFound)
		}
		if tier.Quantity == 0 {
			return nil, types.ErrTierSoldOut
		}
		if tier.Quantity < line.Quantity {
			return nil, types.ErrTierInsufficientQuantity
		}
		tiers[tier.ID] = &tier
	}
	return tiers, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := types.AsError(err); ok {
		return e.Code
	}
	return "error"
}
