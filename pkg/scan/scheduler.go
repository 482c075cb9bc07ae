// Copyright 2025 Vulnfinder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package scan

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulnfinder/vulnfinder/pkg/cvedb"
	"github.com/vulnfinder/vulnfinder/pkg/fingerprint"
	"github.com/vulnfinder/vulnfinder/pkg/probe"
)

// Matcher correlates an observed product/version pair against known CVEs.
// *cvedb.Database satisfies it; a nil Matcher disables correlation.
type Matcher interface {
	MatchService(product, version string) []cvedb.Match
}

// Options configures one scan run.
type Options struct {
	Hosts           []string
	Ports           []int
	Timeout         time.Duration
	Concurrency     int
	CollectEvidence bool
	Matcher         Matcher
}

// Scheduler fans the host×port task matrix out over a bounded worker pool and
// folds the outcomes into an ordered event stream.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// NewScheduler creates a scheduler. Concurrency is clamped to at least one
// worker rather than rejected.
func NewScheduler(opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Scheduler{
		opts:   opts,
		logger: log.With().Str("component", "scan.scheduler").Logger(),
	}
}

// Run executes the scan and returns the event stream. The stream always ends
// with exactly one ScanFinished event carrying the final report, after which
// the channel is closed. Canceling the context stops task issuance; probes
// already in flight finish at their own timeout and are included in the
// report.
func (s *Scheduler) Run(ctx context.Context) <-chan Event {
	events := make(chan Event, s.opts.Concurrency)
	go s.run(ctx, events)
	return events
}

func (s *Scheduler) run(ctx context.Context, events chan<- Event) {
	defer close(events)

	totalTasks := len(s.opts.Hosts) * len(s.opts.Ports)
	agg := NewAggregator()
	agg.SetTotals(len(s.opts.Hosts), totalTasks)

	s.logger.Info().
		Int("hosts", len(s.opts.Hosts)).
		Int("ports", len(s.opts.Ports)).
		Int("tasks", totalTasks).
		Int("concurrency", s.opts.Concurrency).
		Msg("Starting scan")

	tasks := make(chan probe.Task)
	outcomes := make(chan probe.Outcome)

	var workers sync.WaitGroup
	for i := 0; i < s.opts.Concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for task := range tasks {
				// In-flight probes run to their own timeout even after
				// cancellation; only issuance is stopped.
				outcomes <- probe.Run(context.Background(), task)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, host := range s.opts.Hosts {
			for _, port := range s.opts.Ports {
				task := probe.Task{
					Host:            host,
					Port:            port,
					Timeout:         s.opts.Timeout,
					CollectEvidence: s.opts.CollectEvidence,
				}
				select {
				case tasks <- task:
				case <-ctx.Done():
					s.logger.Warn().Msg("Scan canceled, draining in-flight probes")
					return
				}
			}
		}
	}()

	go func() {
		workers.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		s.emit(events, agg, out)
	}

	report := agg.Finalize()
	report.RunID = NewRunID()
	s.logger.Info().
		Str("run_id", report.RunID).
		Int("completed", report.Counters.Completed).
		Int("open", report.Counters.Open).
		Int("matches", report.Counters.Matches).
		Msg("Scan finished")

	events <- Event{Kind: EventScanFinished, Counters: agg.Counters(), Report: report}
}

// emit folds one outcome into the aggregator and publishes the resulting
// events: the outcome itself, any CVE matches, then a progress snapshot.
func (s *Scheduler) emit(events chan<- Event, agg *Aggregator, out probe.Outcome) {
	ev := Event{Kind: EventProbeCompleted, Outcome: &out}
	agg.Observe(ev)

	var matches []Event
	if out.Status == probe.StatusOpen {
		fp := fingerprint.FromEvidence(out.Port, out.Evidence)
		agg.ObserveFingerprint(out.Host, out.Port, fp.Service, fp.Product, fp.Version)

		if s.opts.Matcher != nil && fp.Product != "" && fp.Version != "" {
			for _, m := range s.opts.Matcher.MatchService(fp.Product, fp.Version) {
				match := Event{Kind: EventMatchFound, Match: &MatchResult{
					Host:        out.Host,
					Port:        out.Port,
					Fingerprint: fp,
					Match:       m,
				}}
				agg.Observe(match)
				matches = append(matches, match)
			}
		}
	}

	ev.Counters = agg.Counters()
	events <- ev
	for _, match := range matches {
		match.Counters = agg.Counters()
		events <- match
	}
	events <- Event{Kind: EventProgressTick, Counters: agg.Counters()}
}
