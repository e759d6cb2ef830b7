package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kestrel-labs/facebridge/internal/metrics"
	"github.com/kestrel-labs/facebridge/internal/realtime"
)

// Cache persists the last-successful config document, so a cold restart
// after a catastrophic parse failure can still recover a real prior
// snapshot rather than refusing to start (spec.md §7's fatal-path rule
// only triggers when no last-good exists at all, not merely in-process).
type Cache interface {
	SaveConfigSnapshot(data []byte) error
	LoadConfigSnapshot() ([]byte, bool, error)
}

// Store owns the Config Store: the parsed Document, a file watcher that
// re-parses on change and retains the last-good view on a malformed
// document, and change announcement over the event bus. Grounded on the
// Rules Repository's same shape (internal/rules/repository.go), adapted for
// the difference spec.md §4.F calls out explicitly: the Config Store
// re-parses itself inside the watch loop and fires ConfigChanged directly,
// rather than only announcing and leaving reparsing to the Orchestrator.
type Store struct {
	path      string
	logger    *slog.Logger
	publisher *realtime.EventPublisher
	cache     Cache

	mu      sync.RWMutex
	current *Document
	version string
}

// NewStore loads the config document at path and constructs a Store.
// If the initial load fails, it falls back to the durable cache (if one is
// configured); if that also has nothing, the error is returned to the
// caller, who per spec.md §7 must treat this as fatal.
func NewStore(path string, logger *slog.Logger, publisher *realtime.EventPublisher, cache Cache) (*Store, error) {
	s := &Store{
		path:      path,
		logger:    logger.With("component", "config_store"),
		publisher: publisher,
		cache:     cache,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s.recoverFromCache(fmt.Errorf("reading config file: %w", err))
	}

	doc, parseErr := parseDocument(data)
	if parseErr != nil {
		return s.recoverFromCache(fmt.Errorf("parsing config file: %w", parseErr))
	}

	s.current = doc
	s.version = versionOf(data)
	if s.cache != nil {
		if err := s.cache.SaveConfigSnapshot(data); err != nil {
			s.logger.Warn("failed to persist config snapshot to durable cache", "error", err)
		}
	}
	return s, nil
}

func (s *Store) recoverFromCache(loadErr error) (*Store, error) {
	if s.cache == nil {
		return nil, loadErr
	}
	data, ok, err := s.cache.LoadConfigSnapshot()
	if err != nil || !ok {
		return nil, loadErr
	}
	doc, parseErr := parseDocument(data)
	if parseErr != nil {
		return nil, loadErr
	}
	s.logger.Warn("config load failed, serving durable cached snapshot", "error", loadErr)
	s.current = doc
	s.version = versionOf(data)
	return s, nil
}

// Document returns a snapshot of the current parsed config. Document's
// fields are all plain values, so the copy returned here is safe to read
// without holding any lock afterward.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.current
}

// Version returns a short hash of the currently loaded config document,
// changing only when the document's bytes actually change on disk.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// StartWatching begins a single-path file watch on the config document. On
// each write/create/rename event it re-reads and re-parses the file; on
// success it swaps the current document and fires ConfigChanged with the
// list of sections whose value actually differs; on a malformed document it
// logs a warning and keeps serving the last-good view, never crashing.
func (s *Store) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return err
	}

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config file watcher error", "error", err)
		}
	}
}

func (s *Store) reload() {
	start := time.Now()
	defer func() { metrics.ConfigReloadDuration.Observe(time.Since(start).Seconds()) }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("config reload failed to read file, keeping last-good", "error", err)
		metrics.ConfigReloadErrors.WithLabelValues("unreadable").Inc()
		metrics.ConfigReloadRollbacks.WithLabelValues("unreadable").Inc()
		metrics.ConfigReloadTotal.WithLabelValues("error").Inc()
		return
	}

	doc, err := parseDocument(data)
	if err != nil {
		s.logger.Warn("config reload failed to parse, keeping last-good", "error", err)
		metrics.ConfigReloadErrors.WithLabelValues("malformed").Inc()
		metrics.ConfigReloadRollbacks.WithLabelValues("malformed").Inc()
		metrics.ConfigReloadTotal.WithLabelValues("error").Inc()
		return
	}

	s.mu.Lock()
	changed := changedSections(s.current, doc)
	s.current = doc
	s.version = versionOf(data)
	version := s.version
	s.mu.Unlock()

	if len(changed) == 0 {
		metrics.ConfigReloadTotal.WithLabelValues("unchanged").Inc()
		return
	}

	if s.cache != nil {
		if err := s.cache.SaveConfigSnapshot(data); err != nil {
			s.logger.Warn("failed to persist config snapshot to durable cache", "error", err)
		}
	}

	metrics.ConfigReloadTotal.WithLabelValues("success").Inc()
	metrics.ConfigReloadLastSuccess.SetToCurrentTime()

	s.logger.Info("config reloaded", "changed_sections", changed)
	if s.publisher != nil {
		if err := s.publisher.PublishConfigChanged(version, changed); err != nil {
			s.logger.Debug("failed to publish config_changed event", "error", err)
		}
	}
}

func parseDocument(data []byte) (*Document, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, err
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func versionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

func changedSections(old, new *Document) []string {
	if old == nil {
		return []string{"GeneralSettings", "PhoneClient", "PCClient", "TransformationEngine"}
	}
	var changed []string
	if !reflect.DeepEqual(old.GeneralSettings, new.GeneralSettings) {
		changed = append(changed, "GeneralSettings")
	}
	if !reflect.DeepEqual(old.PhoneClient, new.PhoneClient) {
		changed = append(changed, "PhoneClient")
	}
	if !reflect.DeepEqual(old.PCClient, new.PCClient) {
		changed = append(changed, "PCClient")
	}
	if !reflect.DeepEqual(old.TransformationEngine, new.TransformationEngine) {
		changed = append(changed, "TransformationEngine")
	}
	return changed
}
