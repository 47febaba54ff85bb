package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-rcm/internal/models"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	p, err := Parse([]byte(`
criticality:
  medium: 40
  high: 120
  critical: 250
decision:
  costRanking: [cm, pm, ff]
`))
	require.NoError(t, err)
	assert.Equal(t, CriticalityPolicy{Medium: 40, High: 120, Critical: 250}, p.Criticality)
	assert.Equal(t, []string{"cm", "pm", "ff"}, p.Decision.CostRanking)
	// untouched sections keep their defaults
	assert.Equal(t, 0.9, p.Decision.TargetReliability)
	assert.Equal(t, 4380.0, p.Decision.Tasks[models.TaskPreventive].Interval)
}

func TestParseRejectsInconsistentBands(t *testing.T) {
	_, err := Parse([]byte("criticality: {medium: 100, high: 100, critical: 200}\n"))
	require.Error(t, err)

	_, err = Parse([]byte("decision: {costRanking: [pm, pm, ff]}\n"))
	require.Error(t, err)

	_, err = Parse([]byte("reliability: {randomLower: 1.2, randomUpper: 1.3}\n"))
	require.Error(t, err)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Criticality, p.Criticality)
}

func TestStaticSource(t *testing.T) {
	assert.Equal(t, 200, Static{}.Current().Criticality.Critical)
	custom := Default()
	custom.Criticality.Critical = 300
	assert.Equal(t, 300, Static{P: custom}.Current().Criticality.Critical)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("criticality: {medium: 50, high: 100, critical: 200}\n"), 0o644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("criticality: {medium: 60, high: 150, critical: 300}\n"), 0o644))
	require.Eventually(t, func() bool {
		return w.Current().Criticality.Critical == 300
	}, 5*time.Second, 20*time.Millisecond)

	// an invalid edit keeps the last good policy
	require.NoError(t, os.WriteFile(path, []byte("criticality: {medium: 500, high: 100, critical: 50}\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 300, w.Current().Criticality.Critical)
}

func TestWatcherKeepsPolicyWhenFileMovesAway(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("criticality: {medium: 10, high: 20, critical: 30}\n"), 0o644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.Rename(path, path+".bak"))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, CriticalityPolicy{Medium: 10, High: 20, Critical: 30}, w.Current().Criticality)
	assert.Equal(t, int64(0), w.Reloads())

	// the file coming back is a normal reload
	require.NoError(t, os.WriteFile(path, []byte("criticality: {medium: 15, high: 25, critical: 35}\n"), 0o644))
	require.Eventually(t, func() bool {
		return w.Current().Criticality.Critical == 35
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, w.Reloads(), int64(1))
}
