// Package watch relays filesystem changes under the watch root to plugin
// callbacks.
//
// A Bus fans add, change and unlink events out to subscribers. A Watcher
// turns fsnotify events into Bus triggers. Plugins only ever see the
// Subscriber half of the Bus.
package watch

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/wdir/internal/logger"
)

// Kind is the kind of filesystem event.
type Kind string

// Event kinds.
const (
	Add    Kind = "add"
	Change Kind = "change"
	Unlink Kind = "unlink"
)

// Kinds lists every event kind.
var Kinds = []Kind{Add, Change, Unlink}

// ParseKind converts an event name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Add, Change, Unlink:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Callback receives the path of a changed file.
type Callback func(path string) error

// Subscriber is the half of the bus handed to plugins.
type Subscriber interface {
	// On registers cb for kind and returns a subscription id.
	On(kind Kind, cb Callback) (string, error)

	// Off removes a subscription. It reports whether the id was known.
	Off(id string) bool
}

type subscription struct {
	id string
	cb Callback
}

// Stats counts bus activity.
type Stats struct {
	Triggered uint64
	Delivered uint64
	Failed    uint64
	Panicked  uint64
}

// Bus dispatches events to callbacks in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]subscription
	log  *logger.Logger

	triggered atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

// NewBus creates an empty bus. Callback failures are reported to log.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		subs: make(map[Kind][]subscription),
		log:  log,
	}
}

// On implements Subscriber.
func (b *Bus) On(kind Kind, cb Callback) (string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return "", err
	}
	if cb == nil {
		return "", ErrNilCallback
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], subscription{id: id, cb: cb})
	b.mu.Unlock()
	return id, nil
}

// Off implements Subscriber.
func (b *Bus) Off(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.subs {
		for i, s := range subs {
			if s.id == id {
				b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Count returns the number of callbacks registered for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Trigger calls every callback registered for kind with path, in
// registration order. A failing or panicking callback is logged and the
// rest still run. It returns the number of callbacks that failed.
func (b *Bus) Trigger(kind Kind, path string) int {
	b.triggered.Add(1)

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[kind]))
	copy(subs, b.subs[kind])
	b.mu.RUnlock()

	failed := 0
	for _, s := range subs {
		if err := b.deliver(s, path); err != nil {
			failed++
			b.failed.Add(1)
			b.log.Error("Watch callback failed", "event", string(kind), "path", path, "err", err)
			continue
		}
		b.delivered.Add(1)
	}
	return failed
}

// deliver runs one callback, converting a panic into an error.
func (b *Bus) deliver(s subscription, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panicked.Add(1)
			b.log.Debug("Watch callback panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()
	return s.cb(path)
}

// Stats returns a snapshot of the counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Triggered: b.triggered.Load(),
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
		Panicked:  b.panicked.Load(),
	}
}

var _ Subscriber = (*Bus)(nil)
