// Package metrics exposes Prometheus collectors for the reservation engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reservation groups counters for holds, verification, payment and the
// expiration sweeper.
type Reservation struct {
	holds         *prometheus.CounterVec
	verifications *prometheus.CounterVec
	payments      *prometheus.CounterVec
	swept         *prometheus.CounterVec
	sweepLatency  prometheus.Histogram
}

var (
	reservationOnce sync.Once
	reservationReg  *Reservation
)

// Reservations returns the lazily-initialised registry.
func Reservations() *Reservation {
	reservationOnce.Do(func() {
		reservationReg = &Reservation{
			holds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "homestay",
				Subsystem: "reservation",
				Name:      "holds_total",
				Help:      "Booking hold attempts segmented by outcome.",
			}, []string{"outcome"}),
			verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "homestay",
				Subsystem: "reservation",
				Name:      "verifications_total",
				Help:      "Verification code submissions segmented by outcome.",
			}, []string{"outcome"}),
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "homestay",
				Subsystem: "reservation",
				Name:      "payments_total",
				Help:      "Payment finalizations segmented by outcome.",
			}, []string{"outcome"}),
			swept: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "homestay",
				Subsystem: "sweeper",
				Name:      "rows_total",
				Help:      "Rows changed by the expiration sweeper segmented by pass.",
			}, []string{"pass"}),
			sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "homestay",
				Subsystem: "sweeper",
				Name:      "run_duration_seconds",
				Help:      "Duration of a full sweeper cycle.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			reservationReg.holds,
			reservationReg.verifications,
			reservationReg.payments,
			reservationReg.swept,
			reservationReg.sweepLatency,
		)
	})
	return reservationReg
}

func (m *Reservation) Hold(outcome string) {
	if m == nil {
		return
	}
	m.holds.WithLabelValues(outcome).Inc()
}

func (m *Reservation) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Reservation) Payment(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

// Swept records rows changed by a sweeper pass.
func (m *Reservation) Swept(pass string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.WithLabelValues(pass).Add(float64(n))
}

func (m *Reservation) SweepDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepLatency.Observe(d.Seconds())
}
