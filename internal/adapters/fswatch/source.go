// Package fswatch implements a file-system push source using fsnotify.
//
// The source satisfies the stream.Source contract: it accepts exactly one
// sink, and once activated it invokes the sink's callbacks from its own
// watch goroutine. A fsnotify error is forwarded to the sink as a producer
// failure, which terminates the bridged stream for every subscriber.
package fswatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/pkg/stream"
)

// Sentinel errors for source lifecycle misuse.
var (
	ErrAlreadyActive = errors.New("fswatch: source already active")
)

// Source watches a directory tree and pushes file-change events to its sink.
type Source struct {
	rootPath       string
	debounceWindow time.Duration

	mu             sync.Mutex
	sink           stream.Sink[events.Event]
	watcher        *fsnotify.Watcher
	ignorePatterns []string
	active         bool
	done           chan struct{}
	debouncer      *Debouncer
}

// New creates a file-system source rooted at rootPath. Events are coalesced
// per path over the debounce window before reaching the sink.
func New(rootPath string, debounce time.Duration, ignorePatterns []string) *Source {
	return &Source{
		rootPath:       rootPath,
		debounceWindow: debounce,
		ignorePatterns: ignorePatterns,
	}
}

// SetSink registers the sink. A source accepts exactly one sink for its
// lifetime.
func (s *Source) SetSink(sink stream.Sink[events.Event]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return stream.ErrSinkRegistered
	}
	s.sink = sink
	return nil
}

// Activate starts the watch goroutine. Activating an already-active source
// is an error; this is source-defined behavior, not a bridge guarantee.
func (s *Source) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return stream.ErrNoSink
	}
	if s.active {
		return ErrAlreadyActive
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	s.debouncer = NewDebouncer(s.debounceWindow, s.emitChange)

	if err := s.addWatchRecursive(s.rootPath); err != nil {
		_ = watcher.Close()
		s.watcher = nil
		return fmt.Errorf("watch %s: %w", s.rootPath, err)
	}

	s.active = true
	go s.watchLoop(watcher, s.done)

	log.Info().
		Str("path", s.rootPath).
		Dur("debounce", s.debounceWindow).
		Msg("file source activated")

	return nil
}

// Deactivate stops the watcher. Events already picked up by the watch
// goroutine or sitting in the debouncer may still reach the sink.
// Deactivating an inactive source is a no-op.
func (s *Source) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	s.active = false

	close(s.done)
	s.debouncer.Stop()

	err := s.watcher.Close()
	s.watcher = nil

	log.Info().Str("path", s.rootPath).Msg("file source deactivated")
	return err
}

// IsActive reports whether the watch goroutine is running.
func (s *Source) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// watchLoop drains fsnotify until the watcher closes or Deactivate fires.
// It is the arbitrary execution context from which sink callbacks arrive.
func (s *Source) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Producer failure terminates the whole shared stream.
			log.Error().Err(err).Msg("watcher failed")
			s.sink.OnError(fmt.Errorf("fswatch: %w", err))
			return
		}
	}
}

// handleEvent maps one fsnotify event onto a debounced change.
func (s *Source) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(s.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	if s.shouldIgnore(event.Name) || s.shouldIgnore(relPath) {
		return
	}

	var change events.FileChangeType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		change = events.FileChangeCreated
		// Watch directories as they appear.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = s.addWatchRecursive(event.Name)
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		change = events.FileChangeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		change = events.FileChangeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// The old path disappears; the new path arrives as a CREATE.
		change = events.FileChangeDeleted
	default:
		// Chmod and unknown ops carry no content change.
		return
	}

	s.debouncer.Add(relPath, change)
}

// emitChange fires after the debounce window and pushes the event to the
// sink. It runs on a timer goroutine; the sink must cope with that.
func (s *Source) emitChange(path string, change events.FileChangeType) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	log.Debug().
		Str("path", path).
		Str("change", string(change)).
		Msg("file change")

	sink.OnEvent(events.NewFileChangedEvent(path, change))
}

// addWatchRecursive adds watches to a directory and all subdirectories.
func (s *Source) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip entries we can't access
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && s.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
		}
		return nil
	})
}

// shouldIgnore checks the path's base name and every component against the
// ignore patterns.
func (s *Source) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range s.ignorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}
