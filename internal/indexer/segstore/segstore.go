// Package segstore is the file-backed index.Store. Postings live in an
// in-memory store; the indexer flushes full snapshots to .dlix segments and
// searchers reload the newest segment on an interval.
package segstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/segment"
	"github.com/prometheus/client_golang/prometheus"
)

// retainSegments is how many snapshots survive a flush. Keeping the previous
// one lets a reader that listed the directory just before a flush still open
// its file.
const retainSegments = 2

// Config selects the data directory and whether this process writes.
type Config struct {
	DataDir  string
	ReadOnly bool
	// Flushes, when set, counts flushes by status ("ok", "error").
	Flushes *prometheus.CounterVec
}

// Store embeds the in-memory store, so every index.Store method is served
// from memory.
type Store struct {
	*index.MemoryStore

	cfg    Config
	writer *segment.Writer
	logger *slog.Logger

	mu       sync.Mutex
	flushed  uint64
	loaded   string
	closeErr error
}

// Open creates the data directory if needed and restores the newest readable
// segment. Corrupt segments are skipped in favour of older ones.
func Open(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("segment store: empty data directory")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	s := &Store{
		MemoryStore: index.NewMemoryStore(),
		cfg:         cfg,
		writer:      segment.NewWriter(cfg.DataDir),
		logger:      slog.Default().With("component", "segstore", "dir", cfg.DataDir),
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	s.flushed = s.Version()
	return s, nil
}

// Flush writes a snapshot if anything changed since the last one.
func (s *Store) Flush() error {
	if s.cfg.ReadOnly {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.Version()
	if version == s.flushed {
		return nil
	}
	entries, stats := s.Snapshot()
	name, err := s.writer.Write(entries, stats)
	if err != nil {
		s.countFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}
	s.countFlush("ok")
	s.flushed = version
	s.loaded = name
	s.logger.Info("segment flushed",
		"segment", name,
		"terms", len(entries),
		"docs", len(stats),
	)
	s.prune()
	return nil
}

func (s *Store) countFlush(status string) {
	if s.cfg.Flushes != nil {
		s.cfg.Flushes.WithLabelValues(status).Inc()
	}
}

// Reload restores the newest readable segment if it differs from the one
// already loaded. It reports whether the store changed.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.segments()
	if err != nil {
		return false, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		if name == s.loaded {
			return false, nil
		}
		r, err := segment.OpenReader(filepath.Join(s.cfg.DataDir, name))
		if err != nil {
			s.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		entries, stats, err := r.ReadAll()
		r.Close()
		if err != nil {
			s.logger.Error("failed to read segment, skipping", "segment", name, "error", err)
			continue
		}
		s.Restore(entries, stats)
		s.loaded = name
		s.logger.Info("loaded segment", "segment", name, "terms", len(entries), "docs", len(stats))
		return true, nil
	}
	return false, nil
}

// StartFlushLoop flushes every interval and once more when ctx ends.
func (s *Store) StartFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("flush loop stopping, performing final flush")
				if err := s.Flush(); err != nil {
					s.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.Flush(); err != nil {
					s.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// StartReloadLoop picks up segments written by the indexer until ctx ends.
func (s *Store) StartReloadLoop(ctx context.Context, interval time.Duration, onReload func()) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				changed, err := s.Reload()
				if err != nil {
					s.logger.Error("segment reload failed", "error", err)
					continue
				}
				if changed && onReload != nil {
					onReload()
				}
			}
		}
	}()
}

// Close flushes pending changes.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) segments() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.Extension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) prune() {
	names, err := s.segments()
	if err != nil || len(names) <= retainSegments {
		return
	}
	for _, name := range names[:len(names)-retainSegments] {
		if err := os.Remove(filepath.Join(s.cfg.DataDir, name)); err != nil {
			s.logger.Warn("failed to remove old segment", "segment", name, "error", err)
		}
	}
}
