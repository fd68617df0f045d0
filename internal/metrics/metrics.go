package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	paymentsVerified = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "payments_verified_total",
			Help:      "Payment confirmations with a valid signature.",
		},
	)

	paymentsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "payments_failed_total",
			Help:      "Payment confirmations rejected on verification.",
		},
	)

	ticketsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "tickets_issued_total",
			Help:      "Tickets issued across all bookings.",
		},
	)

	redemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "redemptions_total",
			Help:      "Redemption attempts by result.",
		},
		[]string{"result"},
	)

	ticketsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "tickets_expired_total",
			Help:      "Tickets invalidated by the expiry sweeper.",
		},
	)

	bookingsAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "bookings_abandoned_total",
			Help:      "Stale pending bookings moved to abandoned.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			paymentsVerified,
			paymentsFailed,
			ticketsIssued,
			redemptions,
			ticketsExpired,
			bookingsAbandoned,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncPaymentVerified() { paymentsVerified.Inc() }

func IncPaymentFailed() { paymentsFailed.Inc() }

// AddTicketsIssued records a batch of issued tickets.
func AddTicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

// IncRedemption records a redemption attempt result: "ok",
// "already_used", "expired" or "not_found".
func IncRedemption(result string) {
	redemptions.WithLabelValues(result).Inc()
}

func AddTicketsExpired(n int64) {
	ticketsExpired.Add(float64(n))
}

func AddBookingsAbandoned(n int64) {
	bookingsAbandoned.Add(float64(n))
}
