package reaper

import (
	"context"
	"testing"
	"time"

	"ticketing/src/audit"
	"ticketing/src/clock"
	"ticketing/src/db"
	"ticketing/src/metrics"
	"ticketing/src/models"
	"ticketing/src/orders"
	"ticketing/src/testutil"
	"ticketing/src/types"

	"github.com/go-co-op/gocron/v2"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const ttl = 15 * time.Minute

type ReaperTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *gorm.DB
	clock  *clock.Manual
	sink   *audit.MemorySink
	orders *orders.Service
	reaper *Reaper
}

func (s *ReaperTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDB(s.T())
	s.clock = clock.NewManual(testutil.Epoch)
	s.sink = &audit.MemorySink{}
	store := db.New(s.db)
	s.orders = orders.New(store, orders.WithClock(s.clock), orders.WithAuditSink(s.sink))
	s.reaper = New(store, Config{TTL: ttl, Interval: time.Minute, BatchSize: 100}, WithClock(s.clock), WithAuditSink(s.sink))
}

func (s *ReaperTestSuite) reserve(eventID, tierID uint, qty int) *models.Order {
	order, err := s.orders.Reserve(s.ctx, orders.ReserveInput{
		BuyerID: 1,
		EventID: eventID,
		Lines:   []orders.Line{{TierID: tierID, Quantity: qty}},
	})
	s.Require().NoError(err)
	return order
}

func (s *ReaperTestSuite) TestTickReclaimsStaleReservation() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	order := s.reserve(event.ID, tier.ID, 1)
	s.clock.Advance(ttl + time.Minute)
	before := promtest.ToFloat64(metrics.TicketsReclaimed)

	res := s.reaper.Tick(s.ctx)

	s.Equal(1, res.Reclaimed)
	s.Equal(before+1, promtest.ToFloat64(metrics.TicketsReclaimed))
	s.Zero(res.Failed)
	stored := testutil.ReloadOrder(s.T(), s.db, order.ID)
	s.Equal(types.ORDER_CANCELED, stored.Status)
	s.Equal(types.TICKET_CANCELED, stored.Tickets[0].Status)
	s.Equal(10, testutil.ReloadEvent(s.T(), s.db, event.ID).Capacity)
	s.Equal(5, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
	s.Equal(1, s.sink.Count(audit.TicketReclaimed))
}

func (s *ReaperTestSuite) TestTickLeavesFreshReservations() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	order := s.reserve(event.ID, tier.ID, 2)
	s.clock.Advance(ttl - time.Minute)

	res := s.reaper.Tick(s.ctx)

	s.Zero(res.Reclaimed)
	s.Equal(types.ORDER_PENDING, testutil.ReloadOrder(s.T(), s.db, order.ID).Status)
	s.Equal(3, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
}

func (s *ReaperTestSuite) TestTickReclaimsWholeOrder() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	order := s.reserve(event.ID, tier.ID, 3)
	s.clock.Advance(ttl + time.Minute)

	res := s.reaper.Tick(s.ctx)

	// The first ticket cancels its siblings, which are then skipped.
	s.Equal(3, res.Reclaimed)
	s.Equal(2, res.Skipped)
	for _, t := range testutil.ReloadOrder(s.T(), s.db, order.ID).Tickets {
		s.Equal(types.TICKET_CANCELED, t.Status)
	}
	s.Equal(10, testutil.ReloadEvent(s.T(), s.db, event.ID).Capacity)
	s.Equal(5, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
}

func (s *ReaperTestSuite) TestPaidTicketIsLeftAlone() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	order := s.reserve(event.ID, tier.ID, 1)
	s.clock.Advance(ttl + time.Minute)
	_, err := s.orders.Pay(s.ctx, orders.PayInput{OrderID: order.ID, BuyerID: 1, Method: types.PAYMENT_METHOD_CARD})
	s.Require().NoError(err)

	res := s.reaper.Tick(s.ctx)

	s.Zero(res.Reclaimed)
	stored := testutil.ReloadOrder(s.T(), s.db, order.ID)
	s.Equal(types.ORDER_PAID, stored.Status)
	s.Equal(types.TICKET_ACTIVE, stored.Tickets[0].Status)
	s.Equal(4, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
}

func (s *ReaperTestSuite) TestReclaimSkipsTicketResolvedAfterSelection() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	order := s.reserve(event.ID, tier.ID, 1)
	s.clock.Advance(ttl + time.Minute)
	cutoff := s.clock.Now().Add(-ttl)
	// Paid between the candidate query and the per-item transaction.
	_, err := s.orders.Pay(s.ctx, orders.PayInput{OrderID: order.ID, BuyerID: 1, Method: types.PAYMENT_METHOD_CARD})
	s.Require().NoError(err)

	n, err := s.reaper.reclaim(s.ctx, order.Tickets[0].ID, cutoff)

	s.NoError(err)
	s.Zero(n)
	s.Equal(4, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
}

func (s *ReaperTestSuite) TestReclaimSkipsCanceledOrder() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	order := s.reserve(event.ID, tier.ID, 1)
	s.clock.Advance(ttl + time.Minute)
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", types.ORDER_CANCELED).Error)

	n, err := s.reaper.reclaim(s.ctx, order.Tickets[0].ID, s.clock.Now().Add(-ttl))

	s.NoError(err)
	s.Zero(n)
	s.Equal(types.TICKET_WAITING, testutil.ReloadTicket(s.T(), s.db, order.Tickets[0].ID).Status)
	s.Equal(4, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
}

func (s *ReaperTestSuite) TestBatchFailureDoesNotStopSweep() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	broken := s.reserve(event.ID, tier.ID, 1)
	healthy := s.reserve(event.ID, tier.ID, 1)
	// An order row that vanished makes its ticket fail to reclaim.
	s.Require().NoError(s.db.Unscoped().Delete(&models.Order{}, broken.ID).Error)
	s.clock.Advance(ttl + time.Minute)

	res := s.reaper.Tick(s.ctx)

	s.Equal(1, res.Failed)
	s.Equal(1, res.Reclaimed)
	s.Equal(types.ORDER_CANCELED, testutil.ReloadOrder(s.T(), s.db, healthy.ID).Status)
	s.Equal(types.TICKET_WAITING, testutil.ReloadTicket(s.T(), s.db, broken.Tickets[0].ID).Status)
}

func (s *ReaperTestSuite) TestBatchSizeBoundsOneTick() {
	event := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	tier := testutil.CreateTier(s.T(), s.db, event.ID, "GA", "10.00", 5)
	for i := 0; i < 3; i++ {
		s.reserve(event.ID, tier.ID, 1)
	}
	s.clock.Advance(ttl + time.Minute)
	s.reaper.cfg.BatchSize = 2

	first := s.reaper.Tick(s.ctx)
	second := s.reaper.Tick(s.ctx)

	s.Equal(2, first.Reclaimed)
	s.Equal(1, second.Reclaimed)
	s.Equal(5, testutil.ReloadTier(s.T(), s.db, tier.ID).Quantity)
}

func (s *ReaperTestSuite) TestTickFinalizesEndedEvents() {
	ended := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10, Start: testutil.Epoch.Add(-48 * time.Hour), End: testutil.Epoch.Add(-time.Hour)})
	running := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10})
	draft := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10, Status: types.EVENT_DRAFT, Start: testutil.Epoch.Add(-48 * time.Hour), End: testutil.Epoch.Add(-time.Hour)})

	res := s.reaper.Tick(s.ctx)

	s.Equal(int64(1), res.Finalized)
	s.Equal(types.EVENT_FINALIZED, testutil.ReloadEvent(s.T(), s.db, ended.ID).Status)
	s.Equal(types.EVENT_PUBLISHED, testutil.ReloadEvent(s.T(), s.db, running.ID).Status)
	s.Equal(types.EVENT_DRAFT, testutil.ReloadEvent(s.T(), s.db, draft.ID).Status)
	s.Equal(1, s.sink.Count(audit.EventsFinalized))
}

func (s *ReaperTestSuite) TestStartRunsOnSchedulerUntilStopped() {
	ended := testutil.CreateEvent(s.T(), s.db, testutil.EventOpts{Capacity: 10, Start: testutil.Epoch.Add(-48 * time.Hour), End: testutil.Epoch.Add(-time.Hour)})
	sched, err := gocron.NewScheduler()
	s.Require().NoError(err)
	defer sched.Shutdown()
	s.reaper.cfg.Interval = 50 * time.Millisecond

	s.Require().NoError(s.reaper.Start(s.ctx, sched))
	s.Error(s.reaper.Start(s.ctx, sched))
	sched.Start()

	s.Eventually(func() bool {
		var e models.Event
		return s.db.First(&e, ended.ID).Error == nil && e.Status == types.EVENT_FINALIZED
	}, 2*time.Second, 20*time.Millisecond)

	s.reaper.Stop()
	s.Eventually(func() bool { return len(sched.Jobs()) == 0 }, time.Second, 10*time.Millisecond)
	s.NotPanics(s.reaper.Stop)
}

func TestReaperTestSuite(t *testing.T) {
	suite.Run(t, new(ReaperTestSuite))
}
