package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryCounter(t *testing.T) {
	m := New()

	m.Delivery("chain", ResultDelivered)
	m.Delivery("chain", ResultDelivered)
	m.Delivery("direct", ResultDropped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("chain", ResultDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("direct", ResultDropped)))
}

func TestGaugesAndCounters(t *testing.T) {
	m := New()

	m.SetConnections(3)
	m.SetRooms(2)
	m.ShareRecompute()
	m.Renewal("renewed")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.shareRecomputes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renewals.WithLabelValues("renewed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.SetConnections(1)
	m.SetRooms(1)
	m.Delivery("direct", ResultDelivered)
	m.ShareRecompute()
	m.Renewal("expired")
	assert.Nil(t, m.Registry())
}
