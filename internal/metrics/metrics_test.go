package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncOp(OpSet)
	m.IncOp(OpSet)
	m.IncOp(OpGet)
	m.IncOpError(OpGet)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.opsTotal.WithLabelValues(OpSet)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues(OpGet)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opErrors.WithLabelValues(OpGet)))
}

func TestObserveReplay(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReplay(3, false)
	m.ObserveReplay(2, true)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.walReplayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walCorrupt))
}

func TestSetSegments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetSegments("prod", "users", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.segments.WithLabelValues("prod", "users")))

	// Registered collectors are gatherable.
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
