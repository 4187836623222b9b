package fswatch

import (
	"sync"
	"time"

	"github.com/pushbridge/pushbridge/internal/domain/events"
)

// pendingChange is a file change waiting out its debounce window.
type pendingChange struct {
	change events.FileChangeType
	timer  *time.Timer
}

// Debouncer coalesces rapid file system events per path.
type Debouncer struct {
	window   time.Duration
	callback func(path string, change events.FileChangeType)

	mu      sync.Mutex
	pending map[string]*pendingChange
	stopped bool
}

// NewDebouncer creates a debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, change events.FileChangeType)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*pendingChange),
	}
}

// Add queues a change for debouncing. A change already pending for the same
// path has its window reset and its type merged.
func (d *Debouncer) Add(path string, change events.FileChangeType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
		existing.change = mergeChanges(existing.change, change)
		existing.timer = time.AfterFunc(d.window, func() {
			d.fire(path)
		})
		return
	}

	d.pending[path] = &pendingChange{
		change: change,
		timer: time.AfterFunc(d.window, func() {
			d.fire(path)
		}),
	}
}

// fire executes the callback for a path.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	change, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback(path, change.change)
	}
}

// Stop cancels all pending timers. No callback fires after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, change := range d.pending {
		change.timer.Stop()
	}
	d.pending = make(map[string]*pendingChange)
}

// mergeChanges combines two change types, preferring the more significant.
func mergeChanges(existing, next events.FileChangeType) events.FileChangeType {
	if next == events.FileChangeDeleted {
		return events.FileChangeDeleted
	}
	if existing == events.FileChangeCreated {
		return events.FileChangeCreated
	}
	return next
}
