// Package orders implements the buyer facing workflows: reserve, pay,
// cancel, revert a cancellation and refund. Each call is one transaction
// that moves the order, its tickets and the inventory counters together.
package orders

import (
	"context"
	"errors"
	"fmt"

	"ticketing/src/audit"
	"ticketing/src/clock"
	"ticketing/src/codes"
	"ticketing/src/db"
	"ticketing/src/ledger"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"gorm.io/gorm"
)

type Service struct {
	store  *db.Store
	ledger *ledger.Ledger
	codes  codes.Allocator
	clock  clock.Clock
	audit  audit.Sink
}

type Option func(*Service)

func WithAllocator(a codes.Allocator) Option {
	return func(s *Service) { s.codes = a }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) { s.audit = sink }
}

func New(store *db.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		ledger: ledger.New(),
		codes:  codes.NewStoreAllocator(),
		clock:  clock.NewSystem(),
		audit:  audit.LogSink{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the order with its tickets. Orders of other buyers are
// reported as missing.
func (s *Service) Get(ctx context.Context, orderID, buyerID uint) (*models.Order, error) {
	var order models.Order
	err := s.store.DB().WithContext(ctx).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&order, orderID).Error
	if err != nil {
		return nil, notFound(err, types.ErrOrderNotFound)
	}
	if order.UserID != buyerID {
		return nil, types.ErrOrderNotFound
	}
	return &order, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// lockOrder reads an order and its tickets for update.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := tx.Scopes(scopes.ForUpdate).First(&order, orderID).Error; err != nil {
		return nil, notFound(err, types.ErrOrderNotFound)
	}
	var tickets []models.Ticket
	err := tx.Scopes(scopes.ForUpdate).
		Where("order_id = ?", order.ID).
		Order("id").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("load tickets of order %d: %w", order.ID, err)
	}
	order.Tickets = tickets
	return &order, nil
}

// ticketsIn returns pointers into order.Tickets so status changes made
// through them are visible on the returned order.
func ticketsIn(order *models.Order, status types.TicketStatus) []*models.Ticket {
	var out []*models.Ticket
	for i := range order.Tickets {
		if order.Tickets[i].Status == status {
			out = append(out, &order.Tickets[i])
		}
	}
	return out
}

func (s *Service) emit(ctx context.Context, events []audit.Event) {
	audit.EmitAll(ctx, s.audit, events)
}
