package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ScenarioFinished("s", "passed", time.Second)
	m.StepFinished("click", true, time.Millisecond)
	m.Retried()
	m.SessionOpened()
	m.SessionClosed()
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ScenarioFinished("quickstart", "passed", 2*time.Second)
	m.ScenarioFinished("quickstart", "failed", time.Second)
	m.ScenarioFinished("quickstart", "passed", time.Second)
	m.Retried()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range metric.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, values["webscenario_scenario_results_total,state=passed,suite=quickstart"])
	assert.Equal(t, 1.0, values["webscenario_scenario_results_total,state=failed,suite=quickstart"])
	assert.Equal(t, 1.0, values["webscenario_scenario_retries_total"])
	assert.Equal(t, 1.0, values["webscenario_session_active"])
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.StepFinished("navigate", true, 120*time.Millisecond)
	m.ScenarioFinished("quickstart", "passed", time.Second)

	path := filepath.Join(t.TempDir(), "webscenario.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `webscenario_scenario_results_total{state="passed",suite="quickstart"} 1`), text)
	assert.Contains(t, text, "webscenario_step_duration_seconds_bucket")
	assert.Contains(t, text, "webscenario_last_run_timestamp_seconds")
}
