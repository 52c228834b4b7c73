package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/dshills/wdir/internal/config/notify"
)

// Store owns the process configuration. It loads once, validates every
// mutation before committing it, and persists the whole tree after each
// successful overwrite.
type Store struct {
	mu        sync.Mutex
	persister Persister
	defaults  Config
	cfg       Config
	loaded    bool
	notifier  *notify.Notifier
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults replaces the built-in defaults.
func WithDefaults(c Config) Option {
	return func(s *Store) {
		s.defaults = c.Clone()
	}
}

// WithNotifier sets the notifier that receives committed changes.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// NewStore creates a Store over p. Nothing is read until Load.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		defaults:  Defaults(DefaultPluginDir()),
		notifier:  notify.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the configuration. The first call reads and validates
// persisted state; later calls return the cached tree.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Config{}, err
	}
	return s.cfg.Clone(), nil
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	data, err := s.persister.Read()
	if isNotExist(err) {
		s.cfg = s.defaults.Clone()
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := decode(data, s.defaults)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.loaded = true
	return nil
}

// Snapshot returns a copy of the loaded configuration, or the defaults when
// Load has not succeeded yet.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return s.defaults.Clone()
	}
	return s.cfg.Clone()
}

// Overwrite sets the setting at key to value.
func (s *Store) Overwrite(key string, value any) error {
	return s.OverwriteFrom("", key, value)
}

// OverwriteFrom is Overwrite with the change attributed to source. On any
// error the store is unchanged.
func (s *Store) OverwriteFrom(source, key string, value any) error {
	s.mu.Lock()
	if err := s.ensureLoaded(); err != nil {
		s.mu.Unlock()
		return err
	}

	next := s.cfg.Clone()
	old, typ, err := apply(&next, key, value)
	if err == nil {
		err = next.Validate()
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	data, err := encode(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.persister.Write(data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist config: %w", err)
	}
	s.cfg = next
	s.mu.Unlock()

	s.notifier.Notify(notify.Change{
		Path:     key,
		Type:     typ,
		OldValue: old,
		NewValue: value,
		Source:   source,
	})
	return nil
}

// apply validates value for key and writes it into c.
func apply(c *Config, key string, value any) (any, notify.ChangeType, error) {
	if st, ok := lookup(key); ok {
		if err := st.validate(value); err != nil {
			return nil, notify.ChangeSet, err
		}
		old := st.get(c)
		st.set(c, value)
		return old, notify.ChangeSet, nil
	}

	if key == pluginLevelsKey {
		old := c.Clone().Log.PluginLevels
		if err := applyPluginLevels(c, value); err != nil {
			return nil, notify.ChangeSet, err
		}
		return old, notify.ChangeSet, nil
	}

	if name, ok := strings.CutPrefix(key, pluginLevelsKey+"."); ok {
		old, had := c.Log.PluginLevels[name]
		if err := applyPluginLevel(c, name, value); err != nil {
			return nil, notify.ChangeSet, err
		}
		if _, has := c.Log.PluginLevels[name]; had && !has {
			return old, notify.ChangeDelete, nil
		}
		return old, notify.ChangeSet, nil
	}

	return nil, notify.ChangeSet, unknownKey(key)
}

// Get returns the value at a dot path. Sections and the plugin level map
// are returned as maps.
func (s *Store) Get(key string) (any, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	if st, ok := lookup(key); ok {
		return st.get(&cfg), nil
	}
	if key == pluginLevelsKey {
		levels := make(map[string]any, len(cfg.Log.PluginLevels))
		for name, lvl := range cfg.Log.PluginLevels {
			levels[name] = lvl
		}
		return levels, nil
	}

	doc, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	r := gjson.GetBytes(doc, key)
	if !r.Exists() {
		return nil, unknownKey(key)
	}
	return r.Value(), nil
}

// Close stops change notifications. The store stays usable.
func (s *Store) Close() {
	s.notifier.Close()
}

// Subscribe registers an observer for committed changes at path and below.
// An empty path observes everything.
func (s *Store) Subscribe(path string, observer notify.Observer) *notify.Subscription {
	return s.notifier.SubscribePath(path, observer)
}
