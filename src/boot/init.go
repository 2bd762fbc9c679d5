package boot

import (
	"context"
	"log"

	"ticketing/src/audit"
	"ticketing/src/catalog"
	"ticketing/src/checkin"
	"ticketing/src/codes"
	"ticketing/src/config"
	"ticketing/src/db"
	"ticketing/src/lib"
	"ticketing/src/models"
	"ticketing/src/orders"
	"ticketing/src/reaper"

	"gorm.io/gorm"
)

const auditBuffer = 1024

// Services is everything the HTTP handlers and the reaper need.
type Services struct {
	Store   *db.Store
	Orders  *orders.Service
	CheckIn *checkin.Service
	Catalog *catalog.Service
	Reaper  *reaper.Reaper
}

func InitDb() *gorm.DB {
	gdb := db.GetDb()
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	return gdb
}

// InitAudit publishes audit events to kafka when a broker is configured and
// logs them otherwise. The returned func flushes pending events.
func InitAudit(cfg *config.Config) (audit.Sink, func()) {
	if cfg.KafkaBroker == "" {
		return audit.LogSink{}, func() {}
	}
	if _, err := lib.KafkaCreateTopics(cfg.AuditTopic); err != nil {
		log.Printf("Could not create topic %s: %s\n", cfg.AuditTopic, err.Error())
	}
	p, err := lib.NewKafkaProducer("ticketing-api")
	if err != nil {
		log.Println("Falling back to log audit sink")
		return audit.LogSink{}, func() {}
	}
	ks := audit.NewKafkaSink(p, cfg.AuditTopic)
	async := audit.NewAsync(ks, auditBuffer)
	return async, func() {
		async.Close()
		ks.Close()
	}
}

// InitAllocator returns the redis backed order code allocator when asked
// for and reachable, the store backed one otherwise.
func InitAllocator(ctx context.Context, cfg *config.Config) codes.Allocator {
	if cfg.OrderCodeAllocator != "redis" {
		return codes.NewStoreAllocator()
	}
	if err := lib.PingRedis(ctx); err != nil {
		log.Println("Redis unavailable, allocating order codes from the database")
		return codes.NewStoreAllocator()
	}
	return codes.NewRedisAllocator(lib.GetRedisClient())
}

func InitServices(ctx context.Context, cfg *config.Config, gdb *gorm.DB, sink audit.Sink) *Services {
	store := db.New(gdb, db.WithMaxRetries(cfg.TxMaxRetries))
	return &Services{
		Store:   store,
		Orders:  orders.New(store, orders.WithAllocator(InitAllocator(ctx, cfg)), orders.WithAuditSink(sink)),
		CheckIn: checkin.New(store, checkin.WithAuditSink(sink)),
		Catalog: catalog.New(store, catalog.WithAuditSink(sink)),
		Reaper: reaper.New(store, reaper.Config{
			TTL:       cfg.ReservationTTL,
			Interval:  cfg.ReaperInterval,
			BatchSize: cfg.ReaperBatchSize,
		}, reaper.WithAuditSink(sink)),
	}
}

func InitScheduler(ctx context.Context, r *reaper.Reaper) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	if err := r.Start(ctx, sched); err != nil {
		log.Printf("Error scheduling reaper: %s\n", err.Error())
		return
	}
	sched.Start()
	log.Println("Jobs in queue:", lib.JobNames())
}

func StopScheduler(r *reaper.Reaper) {
	r.Stop()
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Error shutting down scheduler: %s\n", err.Error())
	}
}
