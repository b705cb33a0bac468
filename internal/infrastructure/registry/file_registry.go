package registry

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/logger"
)

var _ service.RuleRegistry = (*FileRegistry)(nil)

// FileRegistry serves rules from a YAML file and hot-reloads on change. A
// reload that fails validation is logged and discarded; the last good snapshot
// keeps serving, so a bad edit never drops the active limits.
//
// The watch covers the file's directory rather than the file itself: editors
// and config maps replace files by rename, which would silently detach a
// per-file watch.
type FileRegistry struct {
	path     string
	logger   logger.Logger
	snapshot atomic.Value // []models.LimitRule
	watcher  *fsnotify.Watcher
}

// ruleFile is the YAML document shape of the rule file.
type ruleFile struct {
	Rules []models.LimitRule `mapstructure:"rules"`
}

// NewFileRegistry loads the rule file and starts watching it. The initial load
// must succeed; later reload failures only log.
func NewFileRegistry(ctx context.Context, path string, log logger.Logger) (*FileRegistry, error) {
	r := &FileRegistry{
		path:   path,
		logger: log.WithComponent("file_registry"),
	}

	rules, err := r.load()
	if err != nil {
		return nil, err
	}
	r.snapshot.Store(rules)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	r.watcher = watcher

	go r.watch(ctx)
	return r, nil
}

// ActiveRules returns the current immutable snapshot.
func (r *FileRegistry) ActiveRules() []models.LimitRule {
	return r.snapshot.Load().([]models.LimitRule)
}

// Close stops the file watch.
func (r *FileRegistry) Close() error {
	return r.watcher.Close()
}

func (r *FileRegistry) load() ([]models.LimitRule, error) {
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var doc ruleFile
	if err := v.Unmarshal(&doc); err != nil {
		return nil, err
	}
	return prepareRules(doc.Rules)
}

func (r *FileRegistry) watch(ctx context.Context) {
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}

			rules, err := r.load()
			if err != nil {
				r.logger.Error(ctx, "rule file reload rejected, keeping previous rules", err,
					logger.String("path", r.path),
				)
				continue
			}
			r.snapshot.Store(rules)
			r.logger.Info(ctx, "rule file reloaded",
				logger.String("path", r.path),
				logger.Int("rules", len(rules)),
			)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error(ctx, "rule file watch error", err, logger.String("path", r.path))
		}
	}
}
