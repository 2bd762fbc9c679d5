// Package testutil opens throwaway databases and seeds them for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"ticketing/src/models"
	"ticketing/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is a fixed instant tests build their timelines around.
var Epoch = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// NewDB returns a migrated in-memory database private to the test. It holds
// a single connection so concurrent transactions queue up behind each
// other.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

type EventOpts struct {
	Title    string
	Capacity int
	Status   types.EventStatus
	Start    time.Time
	End      time.Time
}

func CreateEvent(t testing.TB, db *gorm.DB, opts EventOpts) *models.Event {
	t.Helper()
	if opts.Title == "" {
		opts.Title = "Rock Fest"
	}
	if opts.Status == "" {
		opts.Status = types.EVENT_PUBLISHED
	}
	if opts.Start.IsZero() {
		opts.Start = Epoch.Add(7 * 24 * time.Hour)
	}
	if opts.End.IsZero() {
		opts.End = opts.Start.Add(6 * time.Hour)
	}
	event := &models.Event{
		Title:       opts.Title,
		OrganizerID: 1,
		Status:      opts.Status,
		Capacity:    opts.Capacity,
		StartDate:   opts.Start,
		EndDate:     opts.End,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func CreateTier(t testing.TB, db *gorm.DB, eventID uint, name, price string, qty int) *models.TicketType {
	t.Helper()
	tier := &models.TicketType{
		EventID:  eventID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
	require.NoError(t, db.Create(tier).Error)
	return tier
}

func CreateDevice(t testing.TB, db *gorm.DB, eventID *uint) *models.Device {
	t.Helper()
	device := &models.Device{Name: "gate-1", EventID: eventID}
	require.NoError(t, db.Create(device).Error)
	return device
}

func ReloadEvent(t testing.TB, db *gorm.DB, id uint) *models.Event {
	t.Helper()
	var event models.Event
	require.NoError(t, db.First(&event, id).Error)
	return &event
}

func ReloadTier(t testing.TB, db *gorm.DB, id uint) *models.TicketType {
	t.Helper()
	var tier models.TicketType
	require.NoError(t, db.First(&tier, id).Error)
	return &tier
}

func ReloadOrder(t testing.TB, db *gorm.DB, id uint) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.Preload("Tickets").First(&order, id).Error)
	return &order
}

func ReloadTicket(t testing.TB, db *gorm.DB, id uint) *models.Ticket {
	t.Helper()
	var ticket models.Ticket
	require.NoError(t, db.First(&ticket, id).Error)
	return &ticket
}

func CountPayments(t testing.TB, db *gorm.DB, orderID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&n).Error)
	return n
}
