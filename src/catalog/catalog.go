// Package catalog lets organizers set up what is for sale: events and
// their ticket tiers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketing/src/audit"
	"ticketing/src/clock"
	"ticketing/src/db"
	"ticketing/src/lifecycle"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateEventInput struct {
	OrganizerID uint
	Title       string
	Capacity    int
	StartDate   time.Time
	EndDate     time.Time
}

type AddTierInput struct {
	OrganizerID uint
	EventID     uint
	Name        string
	Price       decimal.Decimal
	Quantity    int
}

type Service struct {
	store *db.Store
	clock clock.Clock
	audit audit.Sink
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) { s.audit = sink }
}

func New(store *db.Store, opts ...Option) *Service {
	s := &Service{store: store, clock: clock.NewSystem(), audit: audit.LogSink{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent stores a DRAFT event. Capacity is the number of units that
// can be sold across all tiers.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	if in.Capacity < 0 {
		return nil, types.ErrInvalidQuantity
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, types.ErrInvalidDates
	}
	event := &models.Event{
		Title:       in.Title,
		OrganizerID: in.OrganizerID,
		Status:      types.EVENT_DRAFT,
		Capacity:    in.Capacity,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
	}
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *Service) AddTier(ctx context.Context, in AddTierInput) (*models.TicketType, error) {
	if in.Price.IsNegative() {
		return nil, types.ErrInvalidPrice
	}
	if in.Quantity < 0 {
		return nil, types.ErrInvalidQuantity
	}
	var tier *models.TicketType
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		event, err := ownedEvent(tx, in.EventID, in.OrganizerID)
		if err != nil {
			return err
		}
		if event.Status != types.EVENT_DRAFT && event.Status != types.EVENT_PUBLISHED {
			return types.ErrEventClosed
		}
		tier = &models.TicketType{
			EventID:  event.ID,
			Name:     in.Name,
			Price:    in.Price,
			Quantity: in.Quantity,
		}
		return tx.Create(tier).Error
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

// Publish opens a DRAFT event for reservations.
func (s *Service) Publish(ctx context.Context, eventID, organizerID uint) (*models.Event, error) {
	return s.move(ctx, eventID, organizerID, types.EVENT_PUBLISHED, func(tx *gorm.DB, event *models.Event) error {
		if event.Capacity <= 0 {
			return types.ErrEventNotPublishable
		}
		var tiers int64
		if err := tx.Model(&models.TicketType{}).Where("event_id = ?", event.ID).Count(&tiers).Error; err != nil {
			return err
		}
		if tiers == 0 {
			return types.ErrEventNotPublishable
		}
		return nil
	})
}

// CancelEvent stops sales for good. Existing orders are left as they are.
func (s *Service) CancelEvent(ctx context.Context, eventID, organizerID uint) (*models.Event, error) {
	return s.move(ctx, eventID, organizerID, types.EVENT_CANCELED, nil)
}

func (s *Service) move(ctx context.Context, eventID, organizerID uint, to types.EventStatus, guard func(*gorm.DB, *models.Event) error) (*models.Event, error) {
	var event *models.Event
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		var err error
		event, err = ownedEvent(tx, eventID, organizerID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckEvent(event.Status, to); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(tx, event); err != nil {
				return err
			}
		}
		return lifecycle.MoveEvent(tx, event, to)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Emit(ctx, audit.Event{Type: audit.EventStateChanged, EventID: event.ID, Detail: string(to), At: s.clock.Now()})
	return event, nil
}

func ownedEvent(tx *gorm.DB, eventID, organizerID uint) (*models.Event, error) {
	var event models.Event
	err := tx.Scopes(scopes.ForUpdate).
		Where("organizer_id = ?", organizerID).
		First(&event, eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
