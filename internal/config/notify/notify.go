// Package notify delivers committed configuration changes to observers.
//
// Observers subscribe either to every change or to a dot path. A path
// subscription also receives changes below it, so subscribing to "log"
// receives "log.level" and "log.pluginLevels.git".
package notify

import (
	"slices"
	"sync"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was removed.
	ChangeDelete
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one committed configuration change.
type Change struct {
	// Path is the dot path of the changed setting.
	Path string

	Type     ChangeType
	OldValue any
	NewValue any

	// Source identifies who made the change (for example "cli" or a plugin name).
	Source string
}

// Observer is called after a change is committed.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type entry struct {
	id       uint64
	path     string
	observer Observer
}

// Notifier fans changes out to observers in subscription order.
type Notifier struct {
	mu      sync.RWMutex
	entries []entry
	nextID  uint64
	closed  bool
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.SubscribePath("", observer)
}

// SubscribePath registers an observer for path and everything below it.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.entries = append(n.entries, entry{id: n.nextID, path: path, observer: observer})
	return &Subscription{id: n.nextID, notifier: n}
}

// Notify delivers change synchronously. Observers run outside the lock.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	var observers []Observer
	for _, e := range n.entries {
		if e.path == "" || e.path == change.Path || isParentPath(e.path, change.Path) {
			observers = append(observers, e.observer)
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// Close drops all subscriptions. Later notifications are ignored.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.entries = nil
	n.mu.Unlock()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = slices.DeleteFunc(n.entries, func(e entry) bool { return e.id == id })
}

// isParentPath checks if parent is a parent path of child.
// e.g., "log" is parent of "log.level".
func isParentPath(parent, child string) bool {
	return len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == '.'
}
