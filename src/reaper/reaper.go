// Package reaper runs the background sweep that finalizes ended events and
// gives abandoned reservations back to stock.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ticketing/src/audit"
	"ticketing/src/clock"
	"ticketing/src/db"
	"ticketing/src/ledger"
	"ticketing/src/lifecycle"
	"ticketing/src/metrics"
	"ticketing/src/models"
	"ticketing/src/models/scopes"
	"ticketing/src/types"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const JobName = "reaper"

type Config struct {
	// Holds older than TTL are reclaimed.
	TTL       time.Duration
	Interval  time.Duration
	BatchSize int
}

// Result counts what one tick did. Reclaimed is in tickets, Skipped and
// Failed are in candidate tickets.
type Result struct {
	Finalized int64
	Reclaimed int
	Skipped   int
	Failed    int
}

type Reaper struct {
	store  *db.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	audit  audit.Sink
	cfg    Config

	mu     sync.Mutex
	cancel context.CancelFunc
	sched  gocron.Scheduler
	job    gocron.Job
}

type Option func(*Reaper)

func WithClock(c clock.Clock) Option {
	return func(r *Reaper) { r.clock = c }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(r *Reaper) { r.audit = sink }
}

func New(store *db.Store, cfg Config, opts ...Option) *Reaper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	r := &Reaper{
		store:  store,
		ledger: ledger.New(),
		clock:  clock.NewSystem(),
		audit:  audit.LogSink{},
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tick runs both sweeps once. A failing sweep does not stop the other.
func (r *Reaper) Tick(ctx context.Context) Result {
	started := time.Now()
	defer func() { metrics.ReaperTickDuration.Observe(time.Since(started).Seconds()) }()

	var res Result
	finalized, err := r.FinalizeEnded(ctx)
	if err != nil {
		log.Printf("[reaper] finalize ended events: %s\n", err.Error())
	}
	res.Finalized = finalized

	res.Reclaimed, res.Skipped, res.Failed = r.ReclaimExpired(ctx)
	if res.Finalized > 0 || res.Reclaimed > 0 || res.Failed > 0 {
		log.Printf("[reaper] finalized=%d reclaimed=%d skipped=%d failed=%d\n", res.Finalized, res.Reclaimed, res.Skipped, res.Failed)
	}
	return res
}

// FinalizeEnded moves every PUBLISHED event whose end date has passed to
// FINALIZED.
func (r *Reaper) FinalizeEnded(ctx context.Context) (int64, error) {
	if err := lifecycle.CheckEvent(types.EVENT_PUBLISHED, types.EVENT_FINALIZED); err != nil {
		return 0, err
	}
	now := r.clock.Now()
	var n int64
	err := r.store.Atomic(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Event{}).
			Scopes(scopes.WithStatus(types.EVENT_PUBLISHED)).
			Where("end_date < ?", now).
			Update("status", types.EVENT_FINALIZED)
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.EventsFinalized.Add(float64(n))
		r.audit.Emit(ctx, audit.Event{Type: audit.EventsFinalized, Quantity: int(n), At: now})
	}
	return n, nil
}

// ReclaimExpired cancels up to BatchSize stale WAITING tickets, each in its
// own transaction. Item failures are logged and the batch carries on; the
// ticket stays WAITING and is picked up again next tick.
func (r *Reaper) ReclaimExpired(ctx context.Context) (reclaimed, skipped, failed int) {
	cutoff := r.clock.Now().Add(-r.cfg.TTL)

	var ids []uint
	err := r.store.DB().WithContext(ctx).
		Model(&models.Ticket{}).
		Scopes(scopes.WithWaitingStatus, scopes.ReservedBefore(cutoff)).
		Order("reserved_at").
		Limit(r.cfg.BatchSize).
		Pluck("id", &ids).Error
	if err != nil {
		log.Printf("[reaper] select stale tickets: %s\n", err.Error())
		return 0, 0, 1
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		n, err := r.reclaim(ctx, id, cutoff)
		switch {
		case err != nil:
			failed++
			log.Printf("[reaper] reclaim ticket %d: %s\n", id, err.Error())
		case n == 0:
			skipped++
		default:
			reclaimed += n
		}
	}
	if reclaimed > 0 {
		metrics.TicketsReclaimed.Add(float64(reclaimed))
	}
	return reclaimed, skipped, failed
}

var errAlreadyResolved = errors.New("already resolved")

// reclaim re-reads the ticket and its order and cancels the order's hold if
// nobody resolved it since it was selected. It returns the number of
// tickets canceled, 0 when skipped.
func (r *Reaper) reclaim(ctx context.Context, ticketID uint, cutoff time.Time) (int, error) {
	var (
		canceled int
		events   []audit.Event
	)
	err := r.store.Atomic(ctx, func(tx *gorm.DB) error {
		canceled, events = 0, events[:0]
		now := r.clock.Now()

		var ticket models.Ticket
		if err := tx.Scopes(scopes.ForUpdate).First(&ticket, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errAlreadyResolved
			}
			return err
		}
		if ticket.Status != types.TICKET_WAITING || !ticket.ReservedAt.Before(cutoff) {
			return errAlreadyResolved
		}
		var order models.Order
		if err := tx.Scopes(scopes.ForUpdate).First(&order, ticket.OrderID).Error; err != nil {
			return fmt.Errorf("load order %d: %w", ticket.OrderID, err)
		}
		if order.Status != types.ORDER_PENDING {
			return errAlreadyResolved
		}

		var waiting []models.Ticket
		err := tx.Scopes(scopes.ForUpdate, scopes.WithWaitingStatus).
			Where("order_id = ?", order.ID).
			Order("id").
			Find(&waiting).Error
		if err != nil {
			return fmt.Errorf("load tickets of order %d: %w", order.ID, err)
		}
		for i := range waiting {
			t := &waiting[i]
			if err := r.ledger.Release(tx, t.EventID, t.TicketTypeID, 1); err != nil {
				return err
			}
			if err := lifecycle.MoveTicket(tx, t, types.TICKET_CANCELED, nil); err != nil {
				return err
			}
			events = append(events, audit.Event{
				Type:     audit.TicketReclaimed,
				EventID:  t.EventID,
				OrderID:  order.ID,
				TicketID: t.ID,
				TierID:   t.TicketTypeID,
				At:       now,
			})
		}
		canceled = len(waiting)
		return lifecycle.MoveOrder(tx, &order, types.ORDER_CANCELED)
	})
	if errors.Is(err, errAlreadyResolved) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	audit.EmitAll(ctx, r.audit, events)
	return canceled, nil
}

// Start registers Tick on sched every Interval, first run immediately.
// Runs never overlap. The job stops when ctx is done or Stop is called.
func (r *Reaper) Start(ctx context.Context, sched gocron.Scheduler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job != nil {
		return errors.New("reaper already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	job, err := sched.NewJob(
		gocron.DurationJob(r.cfg.Interval),
		gocron.NewTask(func() {
			if runCtx.Err() != nil {
				return
			}
			r.Tick(runCtx)
		}),
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		return err
	}
	r.cancel, r.sched, r.job = cancel, sched, job
	log.Printf("[reaper] scheduled every %s (ttl %s, batch %d)\n", r.cfg.Interval, r.cfg.TTL, r.cfg.BatchSize)
	return nil
}

func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job == nil {
		return
	}
	r.cancel()
	if err := r.sched.RemoveJob(r.job.ID()); err != nil {
		log.Printf("[reaper] remove job: %s\n", err.Error())
	}
	r.cancel, r.sched, r.job = nil, nil, nil
}
