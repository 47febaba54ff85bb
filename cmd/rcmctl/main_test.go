package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-rcm/internal/api"
	"github.com/miradorstack/mirador-rcm/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestScoreJSON(t *testing.T) {
	out, err := run(t, "score", "-s", "8", "-o", "6", "-d", "5", "--json")
	require.NoError(t, err)

	var crit models.Criticality
	require.NoError(t, json.Unmarshal([]byte(out), &crit))
	assert.Equal(t, 240, crit.RPN)
	assert.Equal(t, models.CriticalityCritical, crit.Index)
}

func TestScoreSaveTable(t *testing.T) {
	out, err := run(t, "score", "--failure-mode", "fm-7", "-s", "2", "-o", "5", "-d", "5", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "fm-7")
	assert.Contains(t, out, "50")
	assert.Contains(t, out, "created")
}

func TestScoreRejectsOutOfRange(t *testing.T) {
	_, err := run(t, "score", "-s", "0", "-o", "6", "-d", "5")
	require.Error(t, err)
	assert.Contains(t, describe(err), "InvalidArgument")
}

func TestDecideSafety(t *testing.T) {
	out, err := run(t, "decide", "--evident", "--safety", "--rtf", "--json")
	require.NoError(t, err)

	var d models.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, models.StrategyRedesign, d.Strategy)
	assert.Equal(t, models.CategorySafetyOrEnvironmental, d.Category)
}

func TestEvaluateKeepsInfiniteHazardInJSON(t *testing.T) {
	out, err := run(t, "evaluate", "--beta", "0.5", "--eta", "100", "--horizon", "100", "-n", "4", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Infinity"`)

	var resp api.EvaluateReliabilityResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Points, 5)
}

func TestEvaluateTable(t *testing.T) {
	out, err := run(t, "evaluate", "--beta", "2", "--eta", "100", "--horizon", "100", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "R(t)")
	assert.Contains(t, out, "MTBF")
}

func TestFitFromArguments(t *testing.T) {
	out, err := run(t, "fit", "120", "340", "560", "800", "1400", "--json")
	require.NoError(t, err)

	var resp api.FitWeibullResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 1.111, resp.Fit.Beta, 0.01)
	assert.Equal(t, models.PatternWearOut, resp.Fit.Pattern)
}

func TestFitFromEventFile(t *testing.T) {
	path := writeFile(t, "events.yaml", `windowStart: 2024-01-01T00:00:00Z
windowEnd: 2024-01-15T06:00:00Z
timeUnit: hours
events:
  - failedAt: 2024-01-03T00:00:00Z
    restoredAt: 2024-01-03T02:00:00Z
  - failedAt: 2024-01-06T02:00:00Z
  - failedAt: 2024-01-10T06:00:00Z
`)
	out, err := run(t, "fit", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "suspensions")
	assert.Contains(t, out, "history of unknown: 3 failures")
}

func TestFitNeedsInput(t *testing.T) {
	_, err := run(t, "fit")
	require.Error(t, err)
}

func TestComposeFile(t *testing.T) {
	path := writeFile(t, "system.yaml", `topology:
  kind: voting-2oo3
components:
  - name: a
    reliability: 0.9
    availability: 0.99
  - name: b
    reliability: 0.9
    availability: 0.99
  - name: c
    reliability: 0.9
    availability: 0.99
`)
	out, err := run(t, "compose", "-f", path, "--json")
	require.NoError(t, err)

	var res models.SystemRamResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 0.972, res.Reliability, 1e-9)
	assert.Equal(t, 2, res.Topology.Required)
}

func TestHierarchyFile(t *testing.T) {
	path := writeFile(t, "plant.yaml", `nodes:
  - key: plant
    systemId: s1
  - key: pumps
    systemId: s1
    parent: plant
    topology: {kind: active, required: 1}
  - key: pump-a
    systemId: s1
    parent: pumps
    metric: {reliability: 0.9, availability: 0.99}
  - key: pump-b
    systemId: s1
    parent: pumps
    metric: {reliability: 0.9, availability: 0.99}
`)
	out, err := run(t, "hierarchy", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pumps")
	assert.Contains(t, out, "0.99")
}

func TestParseObservations(t *testing.T) {
	obs, err := parseObservations([]string{"100", "250+"})
	require.NoError(t, err)
	assert.Equal(t, []models.Observation{{Time: 100}, {Time: 250, Censored: true}}, obs)

	_, err = parseObservations([]string{"ten"})
	require.Error(t, err)
}
