package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dealgraph/engine/layout"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TuningWatcher watches the layout tuning file and pushes updates to
// registered listeners without a restart.
type TuningWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  layout.Tuning
	mu       sync.RWMutex
	onChange []func(layout.Tuning)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewTuningWatcher loads the tuning file and starts tracking it. A
// missing file is not an error; defaults apply until it appears.
func NewTuningWatcher(path string, logger *zap.Logger) (*TuningWatcher, error) {
	tuning, err := loadTuningFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load initial tuning: %w", err)
		}
		logger.Info("tuning file not found, using defaults", zap.String("path", path))
		tuning = layout.DefaultTuning()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory rather than the file so atomic saves
	// (write to temp, rename over) keep working.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch tuning directory: %w", err)
	}

	return &TuningWatcher{
		path:    path,
		watcher: watcher,
		current: tuning,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for tuning changes
func (w *TuningWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("tuning watcher started", zap.String("path", w.path))
}

// Stop stops watching for tuning changes
func (w *TuningWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

// OnChange registers a callback invoked after each successful reload
func (w *TuningWatcher) OnChange(handler func(layout.Tuning)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the most recently loaded tuning
func (w *TuningWatcher) Current() layout.Tuning {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *TuningWatcher) watchLoop() {
	// Editors and atomic saves produce bursts of events; debounce them
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("tuning watcher error", zap.Error(err))
		}
	}
}

func (w *TuningWatcher) reload() {
	tuning, err := loadTuningFile(w.path)
	if err != nil {
		w.logger.Error("failed to reload tuning, keeping current",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.mu.Lock()
	w.current = tuning
	handlers := make([]func(layout.Tuning), len(w.onChange))
	copy(handlers, w.onChange)
	w.mu.Unlock()

	w.logger.Info("layout tuning reloaded",
		zap.Float64("charge_strength", tuning.ChargeStrength),
		zap.Float64("spring_strength", tuning.SpringStrength),
		zap.Float64("alpha_decay", tuning.AlphaDecay),
	)

	for _, handler := range handlers {
		handler(tuning)
	}
}

func loadTuningFile(path string) (layout.Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return layout.Tuning{}, err
	}

	tuning := layout.DefaultTuning()
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return layout.Tuning{}, fmt.Errorf("failed to parse tuning YAML: %w", err)
	}
	return tuning, nil
}
