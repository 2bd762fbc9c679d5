package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	TicketsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_reclaimed_total",
			Help: "Unpaid tickets canceled by the reaper",
		},
	)

	EventsFinalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_events_finalized_total",
			Help: "Events moved to finalized after their end date",
		},
	)

	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_checkins_total",
			Help: "Check-in attempts by outcome",
		},
		[]string{"outcome"},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tx_retries_total",
			Help: "Transactions retried after a serialization failure or deadlock",
		},
	)

	ReaperTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_reaper_tick_duration_seconds",
			Help:    "Duration of a reaper pass",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
)
