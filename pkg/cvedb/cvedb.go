// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package cvedb loads the local CVE database and correlates observed
// product/version pairs against known-vulnerable version ranges.
package cvedb

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Entry is one known-vulnerable version range for a product. Duplicate CVE
// IDs are legal; every entry is evaluated independently.
type Entry struct {
	Product      string   `json:"product"`
	VersionRange string   `json:"version_range"`
	CVEID        string   `json:"cve_id"`
	CVSS         *float64 `json:"cvss"`
	Summary      string   `json:"summary"`
	References   []string `json:"references"`
	Remediation  string   `json:"remediation"`
}

// Match is one correlation hit, carrying the matching mode so consumers can
// flag lexical matches as lower confidence.
type Match struct {
	CVEID       string   `json:"cve_id"`
	CVSS        *float64 `json:"cvss"`
	Summary     string   `json:"summary"`
	References  []string `json:"references"`
	Remediation string   `json:"remediation"`
	Mode        Mode     `json:"match_mode"`
}

// Database holds the loaded entries. Reads are lock-free against concurrent
// matching; the only writer is Reload.
type Database struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
	skipped int
}

// Load reads a JSON array of entries from path. Entries whose version range
// does not parse are skipped with a warning rather than failing the load, so
// one bad entry cannot blank the whole database.
func Load(path string) (*Database, error) {
	db := &Database{path: path}
	if err := db.Reload(); err != nil {
		return nil, err
	}
	return db, nil
}

// Reload re-reads the database file. On error the previous entries remain in
// effect.
func (db *Database) Reload() error {
	data, err := os.ReadFile(db.path)
	if err != nil {
		return fmt.Errorf("read cve database: %w", err)
	}

	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse cve database: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	skipped := 0
	for _, e := range raw {
		if err := ValidateRange(e.VersionRange); err != nil {
			skipped++
			log.Warn().
				Str("cve_id", e.CVEID).
				Str("product", e.Product).
				Str("version_range", e.VersionRange).
				Err(err).
				Msg("Skipping CVE entry with unparsable version range")
			continue
		}
		entries = append(entries, e)
	}

	db.mu.Lock()
	db.entries = entries
	db.skipped = skipped
	db.mu.Unlock()

	log.Debug().
		Str("path", db.path).
		Int("entries", len(entries)).
		Int("skipped", skipped).
		Msg("CVE database loaded")
	return nil
}

// Path returns the file the database was loaded from.
func (db *Database) Path() string { return db.path }

// Len returns the number of usable entries.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.entries)
}

// Skipped returns how many entries were dropped at load time.
func (db *Database) Skipped() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.skipped
}

// MatchService returns every entry whose product matches (case-insensitive)
// and whose version range contains the observed version. An empty version
// means no version information was observed: that is not an error, it simply
// yields zero matches.
func (db *Database) MatchService(product, version string) []Match {
	if product == "" || version == "" {
		return nil
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Match
	for i := range db.entries {
		e := &db.entries[i]
		if !strings.EqualFold(e.Product, product) {
			continue
		}
		ok, mode := VersionInRange(version, e.VersionRange)
		if !ok {
			continue
		}
		out = append(out, Match{
			CVEID:       e.CVEID,
			CVSS:        e.CVSS,
			Summary:     e.Summary,
			References:  e.References,
			Remediation: e.Remediation,
			Mode:        mode,
		})
	}
	return out
}
