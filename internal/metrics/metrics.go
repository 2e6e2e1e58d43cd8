package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsReserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_tickets_reserved_total",
		Help: "Total number of tickets reserved",
	}, []string{"ticket_type_id"})

	TicketsPaid = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_tickets_paid_total",
		Help: "Total number of tickets confirmed as paid",
	}, []string{"ticket_type_id"})

	TicketsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_tickets_cancelled_total",
		Help: "Total number of tickets cancelled",
	}, []string{"ticket_type_id"})

	TicketsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketing_tickets_expired_total",
		Help: "Total number of reservation holds expired by the sweep",
	})

	ReservationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_reservations_rejected_total",
		Help: "Total number of reservations rejected, by reason",
	}, []string{"reason"})

	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_scans_total",
		Help: "Total number of gate scan attempts, by outcome",
	}, []string{"result"})

	HoldDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ticketing_hold_to_payment_seconds",
		Help:    "Time between reservation and payment confirmation",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 900},
	})

	ExpirySweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ticketing_expiry_sweep_seconds",
		Help:    "Duration of a single expiry sweep pass",
		Buckets: prometheus.DefBuckets,
	})

	ActiveHolds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ticketing_active_holds",
		Help: "Current number of live reservation holds",
	})
)
