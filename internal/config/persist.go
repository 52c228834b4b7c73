package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Persister stores the serialized configuration document.
type Persister interface {
	// Read returns the stored document. A missing document is reported as
	// an error matching fs.ErrNotExist.
	Read() ([]byte, error)

	// Write replaces the stored document.
	Write(data []byte) error
}

// FilePersister keeps the document in a single file.
type FilePersister struct {
	Path string
}

// Read implements Persister.
func (p FilePersister) Read() ([]byte, error) {
	return os.ReadFile(p.Path)
}

// Write implements Persister. The file is replaced atomically.
func (p FilePersister) Write(data []byte) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// memPersister is an in-memory Persister.
type memPersister struct {
	data []byte
}

// NewMemPersister returns a Persister backed by memory, seeded with data.
// A nil data behaves like a missing file.
func NewMemPersister(data []byte) Persister {
	return &memPersister{data: data}
}

func (m *memPersister) Read() ([]byte, error) {
	if m.data == nil {
		return nil, fs.ErrNotExist
	}
	return bytes.Clone(m.data), nil
}

func (m *memPersister) Write(data []byte) error {
	m.data = bytes.Clone(data)
	return nil
}

// escapeKey quotes gjson/sjson path metacharacters in a single key.
func escapeKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

// encode renders cfg as the persisted document: fixed key order, two-space
// indentation, trailing newline.
func encode(cfg Config) ([]byte, error) {
	doc := []byte(`{}`)
	set := func(path string, v any) error {
		var err error
		doc, err = sjson.SetBytes(doc, path, v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		return nil
	}

	for _, s := range settings {
		v := s.get(&cfg)
		if s.path == "log.file" && v == "" {
			continue
		}
		if err := set(s.path, v); err != nil {
			return nil, err
		}
	}
	// sjson appends new keys to the end of the existing log object.
	if err := encodePluginLevels(cfg, set); err != nil {
		return nil, err
	}

	out := pretty.PrettyOptions(doc, &pretty.Options{Width: 80, Indent: "  "})
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out, nil
}

func encodePluginLevels(cfg Config, set func(string, any) error) error {
	names := make([]string, 0, len(cfg.Log.PluginLevels))
	for name := range cfg.Log.PluginLevels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := set(pluginLevelsKey+"."+escapeKey(name), cfg.Log.PluginLevels[name]); err != nil {
			return err
		}
	}
	return nil
}

// decode validates a persisted document and merges it over base.
func decode(data []byte, base Config) (Config, error) {
	if !gjson.ValidBytes(data) {
		return base, &Error{Code: CodeMalformed, Message: "persisted config is not valid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return base, &Error{Code: CodeMalformed, Message: "persisted config must be a JSON object"}
	}

	for _, section := range requiredSections {
		r := root.Get(section)
		if !r.Exists() {
			return base, &Error{Key: section, Code: CodeMissingSection, Message: "missing required section"}
		}
		if !r.IsObject() {
			return base, typeMismatch(section, "object", r.Value())
		}
	}

	cfg := base.Clone()
	for _, s := range settings {
		r := root.Get(s.path)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		v := r.Value()
		if err := s.validate(v); err != nil {
			return base, err
		}
		s.set(&cfg, v)
	}

	if r := root.Get(pluginLevelsKey); r.Exists() && r.Type != gjson.Null {
		if !r.IsObject() {
			return base, typeMismatch(pluginLevelsKey, "object", r.Value())
		}
		if err := applyPluginLevels(&cfg, r.Value()); err != nil {
			return base, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// isNotExist reports whether err means the document has never been written.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
