package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestReservationsIsSingleton(t *testing.T) {
	assert.Same(t, Reservations(), Reservations())
}

func TestCounters(t *testing.T) {
	m := Reservations()
	before := testutil.ToFloat64(m.holds.WithLabelValues("conflict"))
	m.Hold("conflict")
	assert.Equal(t, before+1, testutil.ToFloat64(m.holds.WithLabelValues("conflict")))

	swept := testutil.ToFloat64(m.swept.WithLabelValues("locks"))
	m.Swept("locks", 3)
	m.Swept("locks", 0)
	assert.Equal(t, swept+3, testutil.ToFloat64(m.swept.WithLabelValues("locks")))
	m.SweepDuration(time.Millisecond)
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Reservation
	m.Hold("ok")
	m.Swept("holds", 1)
}
