// Package provisioning loads dashboards from JSON files on disk and keeps
// them in sync while the files change.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// User is recorded as the author of provisioned dashboards.
const User = "provisioning"

// DefaultDebounce is the quiet period before a changed file is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// Service is the part of dashboards.Service the provisioner needs.
type Service interface {
	ImportFrom(ctx context.Context, source string, raw []byte, user string) (*core.Dashboard, error)
	Update(ctx context.Context, d *core.Dashboard, user string) (*core.Dashboard, error)
}

// Provisioner imports dashboard files from a directory. A file imported once
// is linked to its dashboard; later changes update that dashboard instead of
// creating a new one.
type Provisioner struct {
	dir      string
	svc      Service
	onChange func()
	logger   *slog.Logger
	debounce time.Duration

	mu    sync.Mutex
	files map[string]string // path -> dashboard id
}

// Config holds the provisioner settings.
type Config struct {
	Dir     string
	Service Service
	// OnChange runs after a file change was applied.
	OnChange func()
	Logger   *slog.Logger
	Debounce time.Duration
}

// New creates a provisioner for cfg.Dir.
func New(cfg Config) *Provisioner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func() {}
	}
	return &Provisioner{
		dir:      cfg.Dir,
		svc:      cfg.Service,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
		debounce: cfg.Debounce,
		files:    make(map[string]string),
	}
}

// LoadDir imports every dashboard file below the directory. Files that fail
// to import are logged and skipped; the number of loaded files is returned.
func (p *Provisioner) LoadDir(ctx context.Context) (int, error) {
	loaded := 0
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDashboardFile(path) {
			return nil
		}
		if err := p.Sync(ctx, path); err != nil {
			p.logger.Warn("failed to provision dashboard", "file", path, "error", err)
			return nil
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to load dashboards from %s: %w", p.dir, err)
	}

	p.logger.Info("provisioned dashboards", "dir", p.dir, "count", loaded)
	return loaded, nil
}

// Sync imports path, or updates the dashboard previously imported from it.
func (p *Provisioner) Sync(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	p.mu.Lock()
	id, known := p.files[path]
	p.mu.Unlock()

	if known {
		data, err := dashboards.ParseDocument(raw)
		if err != nil {
			return err
		}
		_, err = p.svc.Update(ctx, &core.Dashboard{ID: id, Data: data}, User)
		if err == nil {
			p.logger.Debug("updated provisioned dashboard", "file", path, "id", id)
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		// The dashboard was deleted; import the file again.
	}

	d, err := p.svc.ImportFrom(ctx, dashboards.SourceFile, raw, User)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.files[path] = d.ID
	p.mu.Unlock()
	return nil
}

// DashboardID returns the id of the dashboard imported from path.
func (p *Provisioner) DashboardID(path string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.files[path]
	return id, ok
}

// Watch applies file changes until ctx is cancelled.
func (p *Provisioner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, p.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p.dir, err)
	}

	debouncer := dashboards.NewDebouncer(p.debounce)
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDirRecursive(watcher, event.Name)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isDashboardFile(event.Name) {
				continue
			}

			path := event.Name
			debouncer.Do(path, func() {
				if ctx.Err() != nil {
					return
				}
				p.logger.Debug("dashboard file changed", "file", path)
				if err := p.Sync(ctx, path); err != nil {
					p.logger.Error("failed to provision dashboard", "file", path, "error", err)
					return
				}
				p.onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("watcher error", "error", err)
		}
	}
}

func isDashboardFile(path string) bool {
	return filepath.Ext(path) == ".json"
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
