// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/vulnfinder/vulnfinder/pkg/scan"
)

// WriteFile renders the report and writes it to path atomically: the content
// lands in a temp file first and is renamed into place, under an exclusive
// advisory lock so concurrent runs pointed at the same artifact do not
// interleave.
func WriteFile(path string, r *scan.Report, format Format, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	if !locked {
		return fmt.Errorf("report file %s is locked by another run", path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to release report lock")
		}
		_ = os.Remove(lock.Path())
	}()

	var buf bytes.Buffer
	if err := Render(&buf, r, format, opts); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("finalize report: %w", err)
	}

	log.Info().Str("path", path).Str("format", string(format)).Msg("Report written")
	return nil
}
