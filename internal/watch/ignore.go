package watch

import (
	"path/filepath"
	"strings"
	"sync"
)

// DefaultIgnore lists patterns ignored unless overridden.
var DefaultIgnore = []string{".git/", ".hg/", ".svn/"}

// Ignore matches paths against gitignore-style patterns. Supported forms:
//   - *.log      match any file whose name ends in .log
//   - build/     match a directory named build at any depth
//   - /dist      match dist only directly under the root
//   - !keep.log  re-include a previously ignored path
type Ignore struct {
	mu       sync.RWMutex
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negation bool
	dirOnly  bool
	rooted   bool
}

// NewIgnore creates a matcher from patterns. Blank lines and comments are
// skipped.
func NewIgnore(patterns ...string) *Ignore {
	ig := &Ignore{}
	for _, p := range patterns {
		ig.Add(p)
	}
	return ig
}

// Add appends one pattern.
func (ig *Ignore) Add(pattern string) {
	pattern = strings.TrimRight(pattern, " \t")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	var p ignorePattern
	if rest, ok := strings.CutPrefix(pattern, "!"); ok {
		p.negation = true
		pattern = rest
	}
	if rest, ok := strings.CutSuffix(pattern, "/"); ok {
		p.dirOnly = true
		pattern = rest
	}
	if rest, ok := strings.CutPrefix(pattern, "/"); ok {
		p.rooted = true
		pattern = rest
	}
	p.pattern = pattern

	ig.mu.Lock()
	ig.patterns = append(ig.patterns, p)
	ig.mu.Unlock()
}

// Match reports whether rel, a slash or OS separated path relative to the
// watch root, is ignored. Later patterns override earlier ones.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return false
	}

	ig.mu.RLock()
	defer ig.mu.RUnlock()

	ignored := false
	for _, p := range ig.patterns {
		if p.matches(rel, isDir) {
			ignored = !p.negation
		}
	}
	return ignored
}

func (p ignorePattern) matches(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")

	if p.rooted {
		if strings.Contains(p.pattern, "/") {
			ok, _ := filepath.Match(p.pattern, rel)
			return ok && (isDir || !p.dirOnly)
		}
		ok, _ := filepath.Match(p.pattern, parts[0])
		// Anything below a matched root entry is ignored with it.
		return ok && (len(parts) > 1 || isDir || !p.dirOnly)
	}

	for i, part := range parts {
		ok, _ := filepath.Match(p.pattern, part)
		if !ok {
			continue
		}
		last := i == len(parts)-1
		if !last || isDir || !p.dirOnly {
			return true
		}
	}

	if strings.Contains(p.pattern, "/") {
		for i := range parts {
			if ok, _ := filepath.Match(p.pattern, strings.Join(parts[i:], "/")); ok {
				return true
			}
		}
	}
	return false
}
