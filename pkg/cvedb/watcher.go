// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cvedb

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches the CVE database file and reloads it when the file
// changes, so long-lived sessions pick up database updates without a
// restart.
type Watcher struct {
	db      *Database
	watcher *fsnotify.Watcher

	// debounceDelay coalesces rapid successive writes into one reload.
	debounceDelay time.Duration

	logger zerolog.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the database's backing file.
func NewWatcher(db *Database, logger zerolog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		db:            db,
		watcher:       watcher,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "cvedb.watcher").Logger(),
	}, nil
}

// Start begins watching and blocks until the context is canceled. Run it in
// its own goroutine:
//
//	go watcher.Start(ctx)
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify watches directories, not files directly.
	dbDir := filepath.Dir(w.db.Path())
	dbFile := filepath.Base(w.db.Path())

	if err := w.watcher.Add(dbDir); err != nil {
		w.logger.Error().Err(err).Str("dir", dbDir).Msg("Failed to watch database directory")
		return err
	}

	w.logger.Info().
		Str("file", w.db.Path()).
		Dur("debounce", w.debounceDelay).
		Msg("Started watching CVE database file")

	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != dbFile {
				continue
			}
			// Remove is covered by the create event of the next write.
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				w.logger.Debug().
					Str("op", event.Op.String()).
					Str("file", event.Name).
					Msg("Detected CVE database change")
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// scheduleReload schedules a reload after the debounce delay, resetting any
// pending timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		if err := w.db.Reload(); err != nil {
			w.logger.Error().Err(err).Msg("Failed to reload CVE database")
		} else {
			w.logger.Info().Int("entries", w.db.Len()).Msg("CVE database reloaded")
		}
	})
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
