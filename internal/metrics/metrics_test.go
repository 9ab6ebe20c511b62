package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBlock(100, 0.02)
	m.ObserveBlock(101, 0.03)
	m.AddTx(TxParsed, 5)
	m.AddTx(TxFailed, 0)
	m.AddEvents(map[string]int{"TRADE": 3, "CREATE": 1})
	m.AddSkips(map[string]int{"unknown_discriminator": 2})
	m.AddKafkaFailures(1)
	m.IncMissingSlot()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.blocks))
	assert.Equal(t, 101.0, testutil.ToFloat64(m.latestSlot))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.txs.WithLabelValues(TxParsed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.events.WithLabelValues("TRADE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skips.WithLabelValues("unknown_discriminator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.kafkaFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.missingSlots))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBlock(1, 0.1)
		m.AddTx(TxParsed, 1)
		m.AddEvents(map[string]int{"TRADE": 1})
		m.AddSkips(map[string]int{"panic": 1})
		m.AddKafkaFailures(1)
		m.IncMissingSlot()
	})
}
