package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/deckplan/internal/logging"
	"github.com/msageha/deckplan/internal/model"
	"github.com/msageha/deckplan/internal/store"
)

// ConfigStore persists operator-authored deck configurations, one YAML
// file per configuration, keyed by an opaque id.
type ConfigStore struct {
	dir      string
	kv       *store.FileKV
	logger   *log.Logger
	logLevel logging.Level

	mu     sync.Mutex
	cache  map[string]model.DeckConfiguration
	loaded bool
}

func NewConfigStore(dir string, logger *log.Logger, level logging.Level) (*ConfigStore, error) {
	kv, err := store.NewFileKV(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	return &ConfigStore{
		dir:      dir,
		kv:       kv,
		logger:   logger,
		logLevel: level,
		cache:    make(map[string]model.DeckConfiguration),
	}, nil
}

// Save persists a configuration, assigning an id on first save.
func (cs *ConfigStore) Save(cfg *model.DeckConfiguration) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	content, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal deck configuration: %w", err)
	}
	if err := cs.kv.Set(cs.key(cfg.ID), content); err != nil {
		return fmt.Errorf("save deck configuration %s: %w", cfg.ID, err)
	}

	cs.mu.Lock()
	if cs.loaded {
		cs.cache[cfg.ID] = *cfg
	}
	cs.mu.Unlock()

	cs.log(logging.LevelDebug, "config_saved id=%s name=%s", cfg.ID, cfg.Name)
	return nil
}

// Get retrieves one configuration by id.
func (cs *ConfigStore) Get(id string) (*model.DeckConfiguration, bool, error) {
	content, ok, err := cs.kv.Get(cs.key(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var cfg model.DeckConfiguration
	if err := yamlv3.Unmarshal(content, &cfg); err != nil {
		return nil, false, fmt.Errorf("parse deck configuration %s: %w", id, err)
	}
	return &cfg, true, nil
}

// Delete removes one configuration.
func (cs *ConfigStore) Delete(id string) error {
	if err := cs.kv.Delete(cs.key(id)); err != nil {
		return err
	}
	cs.mu.Lock()
	delete(cs.cache, id)
	cs.mu.Unlock()
	return nil
}

// List returns all saved configurations sorted by name. Results are
// cached until Invalidate (or a watched filesystem change) clears them.
func (cs *ConfigStore) List() ([]model.DeckConfiguration, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.loaded {
		if err := cs.reloadLocked(); err != nil {
			return nil, err
		}
	}

	out := make([]model.DeckConfiguration, 0, len(cs.cache))
	for _, cfg := range cs.cache {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ForMachine filters saved configurations to those plausibly usable on
// the given machine. Compatibility is a coarse substring match between
// the machine identifier and the configuration's base deck family;
// false positives and negatives are accepted.
func (cs *ConfigStore) ForMachine(machineID string) ([]model.DeckConfiguration, error) {
	all, err := cs.List()
	if err != nil {
		return nil, err
	}

	machineDef, machineKnown := DeckDefinition(machineID)
	var out []model.DeckConfiguration
	for _, cfg := range all {
		if machineKnown && cfg.DeckFamily == machineDef.Family {
			out = append(out, cfg)
			continue
		}
		if model.LooseTypeMatch(machineID, cfg.DeckFamily) {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// Invalidate drops the list cache; the next List reloads from disk.
func (cs *ConfigStore) Invalidate() {
	cs.mu.Lock()
	cs.loaded = false
	cs.mu.Unlock()
}

// Watch invalidates the cache whenever a configuration file changes on
// disk. Blocks until ctx is cancelled.
func (cs *ConfigStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cs.dir); err != nil {
		return fmt.Errorf("watch %s: %w", cs.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(event.Name, ".yaml") {
				cs.log(logging.LevelDebug, "config_changed file=%s op=%s", filepath.Base(event.Name), event.Op)
				cs.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cs.log(logging.LevelWarn, "watcher_error err=%v", err)
		}
	}
}

func (cs *ConfigStore) reloadLocked() error {
	entries, err := os.ReadDir(cs.dir)
	if err != nil {
		return fmt.Errorf("read config dir: %w", err)
	}

	cs.cache = make(map[string]model.DeckConfiguration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(cs.dir, name))
		if err != nil {
			cs.log(logging.LevelWarn, "config_read_failed file=%s err=%v", name, err)
			continue
		}
		var cfg model.DeckConfiguration
		if err := yamlv3.Unmarshal(content, &cfg); err != nil {
			cs.log(logging.LevelWarn, "config_parse_failed file=%s err=%v", name, err)
			continue
		}
		cs.cache[cfg.ID] = cfg
	}
	cs.loaded = true
	return nil
}

func (cs *ConfigStore) key(id string) string {
	return strings.ToLower(id) + ".yaml"
}

func (cs *ConfigStore) log(level logging.Level, format string, args ...any) {
	if level < cs.logLevel {
		return
	}
	cs.logger.Printf("[%s] configstore: %s", level, fmt.Sprintf(format, args...))
}
