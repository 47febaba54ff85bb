package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/miradorstack/mirador-rcm/internal/metrics"
)

// Watcher keeps the policy loaded from a file and swaps in new versions when the file changes.
// An invalid edit, or the file moving away, is logged and the previous policy stays active.
type Watcher struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Policy]
	fs      *fsnotify.Watcher
	reloads atomic.Int64
}

// NewWatcher loads path once and prepares a filesystem watch on its directory.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy watcher: %w", err)
	}
	// Watch the directory: editors and config-map mounts replace the file rather than write it.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch policy dir: %w", err)
	}

	w := &Watcher{path: filepath.Clean(path), logger: logger, fs: fsw}
	w.current.Store(p)
	return w, nil
}

// Current returns the active policy snapshot.
func (w *Watcher) Current() *Policy {
	return w.current.Load()
}

// Reloads reports how many successful reloads happened since start.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("policy watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) reload() {
	p, err := loadFile(w.path)
	if err != nil {
		w.logger.Warn("policy reload rejected, keeping previous policy", slog.String("path", w.path), slog.Any("error", err))
		return
	}
	w.current.Store(p)
	w.reloads.Add(1)
	metrics.ObservePolicyReload()
	w.logger.Info("policy reloaded",
		slog.String("path", w.path),
		slog.Int("critical", p.Criticality.Critical),
		slog.Int("high", p.Criticality.High),
		slog.Int("medium", p.Criticality.Medium),
	)
}
