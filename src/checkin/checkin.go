// Package checkin validates tickets at the door.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ticketing/src/audit"
	"ticketing/src/clock"
	"ticketing/src/db"
	"ticketing/src/lifecycle"
	"ticketing/src/metrics"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"gorm.io/gorm"
)

type Input struct {
	Code     string
	DeviceID *uint
}

// Result summarizes the ticket presented. It is returned alongside a
// rejection too, so the door can show what was scanned.
type Result struct {
	Ticket *models.Ticket     `json:"ticket"`
	Event  *models.Event      `json:"event"`
	Tier   *models.TicketType `json:"tier"`
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

// CheckIn marks an ACTIVE ticket USED. Every attempt on a known ticket
// leaves a validation log row, including rejected ones.
func (s *Service) CheckIn(ctx context.Context, in Input) (*Result, error) {
	var (
		result    *Result
		rejection *types.Error
		outcome   types.ValidationOutcome
	)
	err := s.store.Atomic(ctx, func(tx *gorm.DB) error {
		result, rejection = nil, nil
		now := s.clock.Now()

		var ticket models.Ticket
		if err := tx.Scopes(scopes.ForUpdate).Where("code = ?", in.Code).First(&ticket).Error; err != nil {
			return notFound(err, types.ErrTicketNotFound)
		}
		var device *models.Device
		if in.DeviceID != nil {
			device = &models.Device{}
			if err := tx.First(device, *in.DeviceID).Error; err != nil {
				return notFound(err, types.ErrDeviceNotFound)
			}
		}
		var event models.Event
		if err := tx.Unscoped().First(&event, ticket.EventID).Error; err != nil {
			return fmt.Errorf("load event %d: %w", ticket.EventID, err)
		}
		var tier models.TicketType
		if err := tx.Unscoped().First(&tier, ticket.TicketTypeID).Error; err != nil {
			return fmt.Errorf("load tier %d: %w", ticket.TicketTypeID, err)
		}
		result = &Result{Ticket: &ticket, Event: &event, Tier: &tier}

		var err error
		outcome, rejection, err = s.validate(tx, &ticket, &event, device)
		if err != nil {
			return err
		}

		entry := models.TicketValidationLog{
			TicketID:  ticket.ID,
			Outcome:   outcome,
			Message:   message(rejection),
			CreatedAt: now,
		}
		if device != nil {
			entry.DeviceID = &device.ID
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("write validation log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CheckIns.WithLabelValues(string(outcome)).Inc()
	e := audit.Event{
		Type:     audit.TicketCheckedIn,
		EventID:  result.Ticket.EventID,
		OrderID:  result.Ticket.OrderID,
		TicketID: result.Ticket.ID,
		TierID:   result.Ticket.TicketTypeID,
		Detail:   string(outcome),
		At:       s.clock.Now(),
	}
	if rejection != nil {
		e.Type = audit.TicketRejected
		log.Printf("[checkin] ticket %d rejected: %s\n", result.Ticket.ID, rejection.Code)
		s.audit.Emit(ctx, e)
		return result, rejection
	}
	s.audit.Emit(ctx, e)
	return result, nil
}

// validate decides the outcome and applies the status change it implies.
// Rules are checked in a fixed order: device scope, used, dead, unpaid,
// expiry.
func (s *Service) validate(tx *gorm.DB, ticket *models.Ticket, event *models.Event, device *models.Device) (types.ValidationOutcome, *types.Error, error) {
	if device != nil && device.EventID != nil && *device.EventID != ticket.EventID {
		return types.VALIDATION_WRONG_EVENT, types.ErrWrongEvent, nil
	}
	switch ticket.Status {
	case types.TICKET_USED:
		return types.VALIDATION_ALREADY_USED, types.ErrAlreadyUsed, nil
	case types.TICKET_CANCELED, types.TICKET_REFUNDED, types.TICKET_INVALID:
		return types.VALIDATION_INVALID_STATUS, types.ErrInvalidStatus, nil
	case types.TICKET_WAITING:
		return types.VALIDATION_AWAITING_CONFIRMATION, types.ErrAwaitingConfirmation, nil
	}

	now := s.clock.Now()
	if now.After(ticket.EffectiveExpiry(event)) {
		if err := lifecycle.MoveTicket(tx, ticket, types.TICKET_INVALID, nil); err != nil {
			return "", nil, err
		}
		return types.VALIDATION_EXPIRED, types.ErrTicketExpired, nil
	}
	if err := lifecycle.MoveTicket(tx, ticket, types.TICKET_USED, map[string]any{"used_at": now}); err != nil {
		return "", nil, err
	}
	ticket.UsedAt = &now
	return types.VALIDATION_SUCCESS, nil, nil
}

func message(rejection *types.Error) string {
	if rejection != nil {
		return rejection.Message
	}
	return "checked in"
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
