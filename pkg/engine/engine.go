// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package engine is the front door of the scanner: it validates a scan
// configuration, enforces the authorization assertion, expands targets and
// ports, and drives the scheduler while fanning events out to sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vulnfinder/vulnfinder/pkg/cvedb"
	"github.com/vulnfinder/vulnfinder/pkg/ports"
	"github.com/vulnfinder/vulnfinder/pkg/scan"
	"github.com/vulnfinder/vulnfinder/pkg/target"
)

// ErrUnauthorized is returned when the caller has not asserted that they own
// or are authorized to scan the targets. No network I/O happens before this
// check.
var ErrUnauthorized = errors.New("authorization not asserted: scanning requires explicit permission for the targets")

// Config is one validated scan request.
type Config struct {
	Targets         []string      `koanf:"targets" validate:"required,min=1,dive,required"`
	Ports           string        `koanf:"ports"`
	PortsFile       string        `koanf:"ports_file"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	Concurrency     int           `koanf:"concurrency" validate:"gte=1"`
	CollectEvidence bool          `koanf:"evidence"`
	CVEDBPath       string        `koanf:"cve_db"`
	Authorized      bool          `koanf:"authorized"`
}

// EventSink consumes scan events as they happen. Sinks run on the engine
// goroutine; slow sinks slow event delivery, not the probes themselves.
type EventSink interface {
	OnEvent(ev scan.Event)
}

// Engine runs scans.
type Engine struct {
	validate *validator.Validate
	sinks    []EventSink
	lookup   target.LookupFunc
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSink registers an event sink. Sinks receive every event in order.
func WithSink(sink EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sinks = append(e.sinks, sink)
		}
	}
}

// WithLookup overrides hostname resolution, mainly for tests.
func WithLookup(lookup target.LookupFunc) Option {
	return func(e *Engine) { e.lookup = lookup }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{validate: validator.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one scan and returns its report. The authorization assertion
// is checked before anything else; concurrency below one is clamped rather
// than rejected.
func (e *Engine) Run(ctx context.Context, cfg Config) (*scan.Report, error) {
	if !cfg.Authorized {
		return nil, ErrUnauthorized
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if err := e.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}

	portSet, err := ports.Build(cfg.Ports, cfg.PortsFile)
	if err != nil {
		return nil, err
	}

	hosts, err := e.expandTargets(ctx, cfg.Targets)
	if err != nil {
		return nil, err
	}

	var matcher scan.Matcher
	if cfg.CVEDBPath != "" {
		db, err := cvedb.Load(cfg.CVEDBPath)
		if err != nil {
			return nil, err
		}
		matcher = db
	}

	log.Info().
		Int("hosts", len(hosts)).
		Int("ports", len(portSet)).
		Dur("timeout", cfg.Timeout).
		Int("concurrency", cfg.Concurrency).
		Bool("evidence", cfg.CollectEvidence).
		Msg("Scan configured")

	sched := scan.NewScheduler(scan.Options{
		Hosts:           hosts,
		Ports:           portSet,
		Timeout:         cfg.Timeout,
		Concurrency:     cfg.Concurrency,
		CollectEvidence: cfg.CollectEvidence,
		Matcher:         matcher,
	})

	var report *scan.Report
	for ev := range sched.Run(ctx) {
		for _, sink := range e.sinks {
			sink.OnEvent(ev)
		}
		if ev.Kind == scan.EventScanFinished {
			report = ev.Report
		}
	}
	if report == nil {
		return nil, errors.New("scan ended without a final report")
	}
	return report, nil
}

// expandTargets expands every target specification and resolves hostnames to
// all of their addresses, deduplicating across specifications.
func (e *Engine) expandTargets(ctx context.Context, specs []string) ([]string, error) {
	var all []string
	for _, spec := range specs {
		hosts, err := target.Expand(spec)
		if err != nil {
			return nil, err
		}
		all = append(all, hosts...)
	}

	resolved, err := target.Resolve(ctx, all, e.lookup)
	if err != nil {
		return nil, err
	}
	if len(resolved) > target.MaxHosts {
		return nil, fmt.Errorf("%w: %d hosts exceed the %d host cap",
			target.ErrTargetTooLarge, len(resolved), target.MaxHosts)
	}
	return resolved, nil
}
