package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/wdir/internal/logger"
)

// Plugin layout, relative to the plugin folder.
const (
	SourceDir    = "src"
	ManifestFile = "manifest.json"
)

// DefaultEntryExt is appended to entries declared without an extension.
const DefaultEntryExt = ".lua"

// Manifest describes a plugin.
type Manifest struct {
	Name        string `json:"name"`                  // Unique identifier, also the logger context and config key
	Entry       string `json:"entry"`                 // Entry module, relative to src/
	Description string `json:"description,omitempty"` // Short description
	Version     string `json:"version,omitempty"`     // Free-form version
	Author      string `json:"author,omitempty"`      // Author name or org
	LogLevel    string `json:"logLevel,omitempty"`    // Level override for the plugin's logger

	// Internal: the plugin's src directory
	srcDir string
}

// namePattern validates plugin names. Dots are excluded so names can be
// used as config path segments.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ManifestPath returns the manifest location for a plugin folder.
func ManifestPath(pluginDir string) string {
	return filepath.Join(pluginDir, SourceDir, ManifestFile)
}

// LoadManifest loads and validates a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.srcDir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidManifest)
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: name %q must be letters, digits, '-' or '_'", ErrInvalidManifest, m.Name)
	}
	if strings.TrimSpace(m.Entry) == "" {
		return fmt.Errorf("%w: entry is required", ErrInvalidManifest)
	}
	if filepath.IsAbs(m.Entry) {
		return fmt.Errorf("%w: entry %q must be relative", ErrInvalidManifest, m.Entry)
	}
	if m.LogLevel != "" {
		if _, err := logger.ParseLevel(m.LogLevel); err != nil {
			return fmt.Errorf("%w: logLevel: %v", ErrInvalidManifest, err)
		}
	}
	return nil
}

// EntryPath resolves the entry module under src/. Entries without an
// extension get DefaultEntryExt. The result never escapes src/.
func (m *Manifest) EntryPath() (string, error) {
	entry := filepath.FromSlash(m.Entry)
	if filepath.Ext(entry) == "" {
		entry += DefaultEntryExt
	}
	path := filepath.Join(m.srcDir, entry)

	rel, err := filepath.Rel(m.srcDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: entry %q escapes %s", ErrInvalidManifest, m.Entry, SourceDir)
	}
	return path, nil
}

// SourceDir returns the plugin's src directory.
func (m *Manifest) SourceDir() string {
	return m.srcDir
}

// Meta returns the manifest fields as a plain map.
func (m *Manifest) Meta() map[string]any {
	meta := map[string]any{
		"name":  m.Name,
		"entry": m.Entry,
	}
	for k, v := range map[string]string{
		"description": m.Description,
		"version":     m.Version,
		"author":      m.Author,
		"logLevel":    m.LogLevel,
	} {
		if v != "" {
			meta[k] = v
		}
	}
	return meta
}
