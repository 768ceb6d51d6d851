package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealgraph/engine/layout"
)

func TestTuningWatcher_MissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")

	w, err := NewTuningWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, layout.DefaultTuning(), w.Current())
}

func TestTuningWatcher_LoadsInitialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("charge_strength: 2400\n"), 0o644))

	w, err := NewTuningWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	// A sparse file overrides only what it names.
	assert.Equal(t, 2400.0, w.Current().ChargeStrength)
	assert.Equal(t, layout.DefaultTuning().SpringStrength, w.Current().SpringStrength)
}

func TestTuningWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("charge_strength: 1000\n"), 0o644))

	w, err := NewTuningWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan layout.Tuning, 1)
	w.OnChange(func(tuning layout.Tuning) {
		select {
		case changed <- tuning:
		default:
		}
	})
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("charge_strength: 1800\n"), 0o644))

	select {
	case tuning := <-changed:
		assert.Equal(t, 1800.0, tuning.ChargeStrength)
	case <-time.After(3 * time.Second):
		t.Fatal("tuning reload never fired")
	}
	assert.Equal(t, 1800.0, w.Current().ChargeStrength)
}

func TestTuningWatcher_KeepsCurrentOnParseFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("charge_strength: 1000\n"), 0o644))

	w, err := NewTuningWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("charge_strength: [broken"), 0o644))

	// The broken file must not clobber the last good values.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1000.0, w.Current().ChargeStrength)
}

func TestTuningWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")

	w, err := NewTuningWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, layout.DefaultTuning(), w.Current())
}
