package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledMetricsAreNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	require.NotNil(t, m)

	// Must not panic with no registry behind them.
	m.RecordPlanGenerated("ok")
	m.RecordActionPlanned("provision", "webapi")
	m.RecordActionApplied("provision", "webapi", "ok")
	m.RecordExecuteDuration("ok", time.Second)

	assert.Nil(t, m.Handler())
}

func TestEnabledMetricsExposeHandler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "fleetplan"})
	m.RecordPlanGenerated("ok")
	m.RecordActionApplied("deprovision", "moray", "error")

	assert.NotNil(t, m.Handler())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", ParseLevel("debug").String())
	assert.Equal(t, "info", ParseLevel("").String())
	assert.Equal(t, "info", ParseLevel("bogus").String())
}
